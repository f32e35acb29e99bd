package server

import (
	"errors"
	"net/http"

	"github.com/andrejsstepanovs/docqa/analysis"
	"github.com/andrejsstepanovs/docqa/client"
	"github.com/andrejsstepanovs/docqa/ingest"
	"github.com/andrejsstepanovs/docqa/logging"
	"github.com/andrejsstepanovs/docqa/qa"
	"github.com/gin-gonic/gin"
)

const (
	CodeValidation     = "VALIDATION_ERROR"
	CodeUnsupported    = "UNSUPPORTED_TYPE"
	CodeNoIndex        = "NO_INDEX"
	CodeNotFound       = "NOT_FOUND"
	CodeNotImplemented = "NOT_IMPLEMENTED"
	CodeForbidden      = "FORBIDDEN"
	CodeInternal       = "INTERNAL_ERROR"
)

// statusOf maps domain errors to an HTTP status and error code.
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, ingest.ErrValidation), errors.Is(err, qa.ErrEmptyQuestion):
		return http.StatusBadRequest, CodeValidation
	case errors.Is(err, ingest.ErrUnsupportedType):
		return http.StatusUnsupportedMediaType, CodeUnsupported
	case errors.Is(err, qa.ErrNoIndexes):
		return http.StatusConflict, CodeNoIndex
	case errors.Is(err, analysis.ErrNoData), errors.Is(err, analysis.ErrUnknownChart):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, client.ErrUnsupported):
		return http.StatusNotImplemented, CodeNotImplemented
	}
	return http.StatusInternalServerError, CodeInternal
}

// respondError sends {error, code} and logs server-side failures.
func respondError(c *gin.Context, err error) {
	status, code := statusOf(err)
	if status >= http.StatusInternalServerError {
		logging.Errorf("[%d] %s %s: %v", status, c.Request.Method, c.Request.URL.Path, err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error(), "code": code})
}

func respondValidation(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg, "code": CodeValidation})
}
