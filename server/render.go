package server

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/andrejsstepanovs/docqa/chat"
	"github.com/andrejsstepanovs/docqa/models"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// renderHistory renders the conversation as an HTML page. Message content is
// markdown; raw HTML in it is not passed through.
func renderHistory(messages []models.Message) ([]byte, error) {
	var src strings.Builder
	src.WriteString("# 📝 Conversation History\n\n")
	if len(messages) == 0 {
		src.WriteString("No conversation history yet.\n")
	}
	for _, m := range messages {
		fmt.Fprintf(&src, "**%s:** %s\n\n", chat.Label(m.Role), m.Content)
	}

	var buf bytes.Buffer
	buf.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>Conversation History</title></head><body>\n")
	if err := markdown.Convert([]byte(src.String()), &buf); err != nil {
		return nil, fmt.Errorf("failed to render history: %w", err)
	}
	buf.WriteString("</body></html>\n")
	return buf.Bytes(), nil
}
