package cmd

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/andrejsstepanovs/docqa/analysis"
	"github.com/andrejsstepanovs/docqa/chat"
	"github.com/andrejsstepanovs/docqa/client"
	"github.com/andrejsstepanovs/docqa/config"
	"github.com/andrejsstepanovs/docqa/db"
	"github.com/andrejsstepanovs/docqa/extract"
	"github.com/andrejsstepanovs/docqa/ingest"
	"github.com/andrejsstepanovs/docqa/logging"
	"github.com/andrejsstepanovs/docqa/models"
	"github.com/andrejsstepanovs/docqa/ocr"
	"github.com/andrejsstepanovs/docqa/qa"
	"github.com/andrejsstepanovs/docqa/splitter"
	"github.com/spf13/pflag"
)

// App holds the configuration and the services built from it.
type App struct {
	configFile string

	cfg    *config.Config
	conn   *sql.DB
	ai     *client.Client
	ocr    *ocr.Engine
	ingest *ingest.Service
	charts *analysis.Charts
	bot    *chat.Bot
}

func (a *App) loadConfig(flags *pflag.FlagSet) error {
	cfg, err := config.Load(a.configFile, flags)
	if err != nil {
		return err
	}
	if err := logging.Configure(os.Stderr, cfg.Log.Level, cfg.Log.Format); err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

// open creates the data directories and wires every service.
func (a *App) open() error {
	if a.conn != nil {
		return nil
	}
	cfg := a.cfg

	if err := cfg.EnsureDirs(); err != nil {
		return err
	}

	conn, err := db.InitDB(cfg.Paths.IndexDB)
	if err != nil {
		return fmt.Errorf("failed to open index store: %w", err)
	}

	cache, err := client.NewEmbeddingCache(cfg.Models.CacheDir)
	if err != nil {
		_ = conn.Close()
		return err
	}

	ai, err := client.New(client.Options{
		Provider:       cfg.Models.Provider,
		BaseURL:        cfg.Models.BaseURL,
		Token:          cfg.Models.Token,
		EmbeddingModel: cfg.Models.EmbeddingModel,
		LLM:            cfg.Models.LLM,
		ASRModel:       cfg.Models.ASRModel,
		Temperature:    cfg.Models.LLMTemperature,
		MaxTokens:      cfg.Models.LLMMaxTokens,
		Cache:          cache,
	})
	if err != nil {
		_ = conn.Close()
		return err
	}

	sp, err := splitter.New(cfg.Processing.ChunkSize, cfg.Processing.ChunkOverlap)
	if err != nil {
		_ = conn.Close()
		return err
	}

	a.conn = conn
	a.ai = ai
	a.ocr = ocr.New(cfg.TextFromImageDir(), cfg.TableDir())
	a.ingest = ingest.New(ingest.Options{
		DB:       conn,
		Embedder: ai,
		Splitter: sp,
		Images:   a.ocr,
		Transcriber: &extract.Transcriber{
			Source:   &extract.YouTubeAudio{},
			ASR:      ai,
			AudioDir: cfg.AudioDir(),
			TextDir:  cfg.YouTubeDir(),
		},
		ReadPDF:       extract.PDF,
		Dirs:          a.dirs(),
		MaxNameLength: cfg.Processing.MaxNameLength,
	})
	a.charts = &analysis.Charts{
		GraphDir:     cfg.GraphDir(),
		FinancialDir: cfg.FinancialDir(),
		PDFDir:       cfg.PDFDir(),
		Quotes:       client.NewQuoteClient(cfg.Models.QuotesURL),
		ReadPDF:      extract.PDF,
	}
	a.bot = chat.New(conn, a.ingest, a.charts, a.newAgent)

	logging.Debugf("Using %s models from %s, index store %s", cfg.Models.Provider, cfg.Models.BaseURL, cfg.Paths.IndexDB)
	return nil
}

func (a *App) newAgent() (chat.Answerer, error) {
	agent, err := qa.New(a.conn, a.ai, a.ai, a.cfg.Processing.RetrieverK, a.cfg.Processing.SimilarityThreshold)
	if err != nil {
		return nil, err
	}
	return agent, nil
}

func (a *App) dirs() ingest.Dirs {
	return ingest.Dirs{
		PDF:     a.cfg.PDFDir(),
		Image:   a.cfg.ImageDir(),
		YouTube: a.cfg.YouTubeDir(),
	}
}

func (a *App) dirFor(kind models.SourceKind) string {
	switch kind {
	case models.KindPDF:
		return a.cfg.PDFDir()
	case models.KindImage:
		return a.cfg.ImageDir()
	}
	return a.cfg.YouTubeDir()
}

func (a *App) close() {
	if a.conn != nil {
		if err := a.conn.Close(); err != nil {
			logging.Warnf("Failed to close index store: %v", err)
		}
		a.conn = nil
	}
}
