package server

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/andrejsstepanovs/docqa/analysis"
	"github.com/andrejsstepanovs/docqa/chat"
	"github.com/andrejsstepanovs/docqa/db"
	"github.com/andrejsstepanovs/docqa/ingest"
	"github.com/andrejsstepanovs/docqa/models"
	"github.com/gin-gonic/gin"
)

type YouTubeRequest struct {
	URL string `json:"url" binding:"required"`
}

type QuestionRequest struct {
	Question string `json:"question" binding:"required"`
}

// UploadFailure reports a file that could not be processed.
type UploadFailure struct {
	File  string `json:"file"`
	Error string `json:"error"`
	Code  string `json:"code"`
}

type HistoryEntry struct {
	models.Message
	Label string `json:"label"`
}

func (s *handlers) info(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":        "Agentic Document QA System",
		"description": "Upload PDFs or images, process YouTube videos, and ask questions from your data.",
		"version":     s.opts.Version,
	})
}

func (s *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *handlers) upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.opts.MaxUploadBytes)

	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error(), "code": CodeValidation})
			return
		}
		respondValidation(c, "Please upload a file or provide a YouTube URL.")
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		respondValidation(c, "Please upload a file or provide a YouTube URL.")
		return
	}

	var results []ingest.Result
	var failures []UploadFailure
	var firstErr error
	for _, fh := range files {
		res, err := s.uploadOne(c.Request.Context(), fh)
		if err != nil {
			_, code := statusOf(err)
			failures = append(failures, UploadFailure{File: fh.Filename, Error: err.Error(), Code: code})
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		results = append(results, res)
	}

	if len(results) == 0 {
		respondError(c, firstErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results, "failures": failures})
}

func (s *handlers) uploadOne(ctx context.Context, fh *multipart.FileHeader) (ingest.Result, error) {
	f, err := fh.Open()
	if err != nil {
		return ingest.Result{File: fh.Filename}, err
	}
	defer f.Close()
	return s.opts.Bot.Upload(ctx, fh.Filename, fh.Header.Get("Content-Type"), f)
}

func (s *handlers) youtube(c *gin.Context) {
	var req YouTubeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "no YouTube URL was provided")
		return
	}

	res, err := s.opts.Bot.YouTube(c.Request.Context(), req.URL)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *handlers) question(c *gin.Context) {
	var req QuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "question cannot be empty")
		return
	}

	reply, err := s.opts.Bot.Ask(c.Request.Context(), req.Question)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reply)
}

func (s *handlers) history(c *gin.Context) {
	messages, err := s.opts.Bot.History()
	if err != nil {
		respondError(c, err)
		return
	}

	if c.Query("format") == "html" {
		page, err := renderHistory(messages)
		if err != nil {
			respondError(c, err)
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", page)
		return
	}

	entries := make([]HistoryEntry, len(messages))
	for i, m := range messages {
		entries[i] = HistoryEntry{Message: m, Label: chat.Label(m.Role)}
	}
	c.JSON(http.StatusOK, gin.H{"messages": entries})
}

func (s *handlers) clearHistory(c *gin.Context) {
	if err := s.opts.Bot.ClearHistory(); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// chart serves a rendered chart, drawing it first when missing or when
// refresh is requested.
func (s *handlers) chart(c *gin.Context) {
	name := c.Param("name")
	fileName, ok := analysis.ChartFile(name)
	if !ok {
		respondError(c, analysis.ErrUnknownChart)
		return
	}

	path := filepath.Join(s.opts.GraphDir, fileName)
	refresh, _ := strconv.ParseBool(c.Query("refresh"))
	if _, err := os.Stat(path); err != nil || refresh {
		if path, err = s.opts.Charts.Render(c.Request.Context(), name); err != nil {
			respondError(c, err)
			return
		}
	}
	c.File(path)
}

func (s *handlers) indexes(c *gin.Context) {
	indexes, err := db.ListIndexes(s.opts.DB)
	if err != nil {
		respondError(c, err)
		return
	}
	if indexes == nil {
		indexes = []models.Index{}
	}
	c.JSON(http.StatusOK, gin.H{"indexes": indexes})
}

func (s *handlers) sync(c *gin.Context) {
	rebuild, _ := strconv.ParseBool(c.Query("rebuild"))
	report, err := s.opts.Syncer.Sync(c.Request.Context(), rebuild)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
