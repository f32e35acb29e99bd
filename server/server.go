package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/andrejsstepanovs/docqa/chat"
	"github.com/andrejsstepanovs/docqa/config"
	"github.com/andrejsstepanovs/docqa/ingest"
	"github.com/andrejsstepanovs/docqa/logging"
	"github.com/andrejsstepanovs/docqa/models"
	"github.com/gin-gonic/gin"
)

type Bot interface {
	Ask(ctx context.Context, question string) (chat.Reply, error)
	Upload(ctx context.Context, name, contentType string, r io.Reader) (ingest.Result, error)
	YouTube(ctx context.Context, videoURL string) (ingest.Result, error)
	History() ([]models.Message, error)
	ClearHistory() error
}

type Syncer interface {
	Sync(ctx context.Context, rebuild bool) (*ingest.SyncReport, error)
}

type Options struct {
	Bot            Bot
	Syncer         Syncer
	Charts         chat.ChartRenderer
	DB             *sql.DB
	GraphDir       string
	EnableCORS     bool
	EnableXSRF     bool
	MaxUploadBytes int64
	Version        string
}

type handlers struct {
	opts Options
}

// NewRouter builds the HTTP API.
func NewRouter(opts Options) *gin.Engine {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 200 << 20
	}
	h := &handlers{opts: opts}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	if opts.EnableCORS {
		r.Use(cors())
	}
	if opts.EnableXSRF {
		r.Use(xsrfGuard())
	}

	r.GET("/", h.info)
	r.GET("/health", h.health)

	api := r.Group("/api")
	api.POST("/uploads", h.upload)
	api.POST("/youtube", h.youtube)
	api.POST("/questions", h.question)
	api.GET("/history", h.history)
	api.DELETE("/history", h.clearHistory)
	api.GET("/charts/:name", h.chart)
	api.GET("/indexes", h.indexes)
	api.POST("/sync", h.sync)

	return r
}

// Server runs the API until its context is cancelled.
type Server struct {
	http            *http.Server
	headless        bool
	shutdownTimeout time.Duration
}

func New(cfg config.ServerConfig, handler http.Handler) *Server {
	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Server{
		http: &http.Server{
			Addr:              net.JoinHostPort(cfg.Address, strconv.Itoa(cfg.Port)),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
		},
		headless:        cfg.Headless,
		shutdownTimeout: timeout,
	}
}

func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.http.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln and shuts down gracefully once ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	logging.Infof("Listening on %s", ln.Addr())
	if !s.headless {
		_, port, _ := net.SplitHostPort(ln.Addr().String())
		logging.Infof("You can now view docqa in your browser: http://localhost:%s", port)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logging.Infof("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logging.Infof("Server exiting")
	return nil
}
