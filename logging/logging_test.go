package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigure(t *testing.T) {
	prev := L
	defer func() { L = prev }()

	var buf bytes.Buffer
	require.NoError(t, Configure(&buf, "debug", "json"))

	Debugf("hello %s", "dbg")
	Infof("info %d", 1)
	Warnf("warn")
	Errorf("err %v", "E")

	out := buf.String()
	assert.Contains(t, out, `"msg":"hello dbg"`)
	assert.Contains(t, out, `"msg":"info 1"`)
	assert.Contains(t, out, `"msg":"warn"`)
	assert.Contains(t, out, `"msg":"err E"`)
}

func TestConfigure_LevelFilters(t *testing.T) {
	prev := L
	defer func() { L = prev }()

	var buf bytes.Buffer
	require.NoError(t, Configure(&buf, "warn", "text"))

	Infof("hidden")
	Warnf("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestConfigure_Invalid(t *testing.T) {
	prev := L
	defer func() { L = prev }()

	var buf bytes.Buffer
	assert.Error(t, Configure(&buf, "loud", "text"))
	assert.Error(t, Configure(&buf, "info", "xml"))
	assert.Same(t, prev, L)
}
