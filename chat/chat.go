package chat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/andrejsstepanovs/docqa/analysis"
	"github.com/andrejsstepanovs/docqa/db"
	"github.com/andrejsstepanovs/docqa/ingest"
	"github.com/andrejsstepanovs/docqa/logging"
	"github.com/andrejsstepanovs/docqa/models"
	"github.com/andrejsstepanovs/docqa/qa"
)

type Answerer interface {
	Answer(ctx context.Context, question string) (string, error)
}

// AgentFactory builds the QA agent. It returns qa.ErrNoIndexes until a
// document has been ingested.
type AgentFactory func() (Answerer, error)

type ChartRenderer interface {
	Render(ctx context.Context, name string) (string, error)
}

type Ingester interface {
	ProcessUpload(ctx context.Context, name, contentType string, r io.Reader) (ingest.Result, error)
	ProcessYouTube(ctx context.Context, videoURL string) (ingest.Result, error)
}

// Reply is the answer to one question. Chart names the rendered chart, if any.
type Reply struct {
	Answer string `json:"answer"`
	Chart  string `json:"chart,omitempty"`
}

var chartReplies = map[string]string{
	analysis.ChartVehicles:    "📊 Generated graph: vehicles sold per year.",
	analysis.ChartStock:       "📊 Compared Renault stock vs CAC40.",
	analysis.ChartCorrelation: "📊 Analyzed correlation between sales and stock.",
}

// Route returns the chart a question asks for, or "" for a document question.
func Route(question string) string {
	q := strings.ToLower(question)
	switch {
	case strings.Contains(q, "vehicles sold per year"):
		return analysis.ChartVehicles
	case strings.Contains(q, "stock price") && strings.Contains(q, "cac40"):
		return analysis.ChartStock
	case strings.Contains(q, "correlation") && strings.Contains(q, "sales") && strings.Contains(q, "stock"):
		return analysis.ChartCorrelation
	}
	return ""
}

// Bot routes questions to charts or the QA agent and keeps the conversation.
type Bot struct {
	db       *sql.DB
	ingester Ingester
	charts   ChartRenderer
	newAgent AgentFactory

	mu    sync.Mutex
	agent Answerer
}

func New(conn *sql.DB, ingester Ingester, charts ChartRenderer, newAgent AgentFactory) *Bot {
	return &Bot{db: conn, ingester: ingester, charts: charts, newAgent: newAgent}
}

// Ask answers a question and records both sides in the history.
func (b *Bot) Ask(ctx context.Context, question string) (Reply, error) {
	if strings.TrimSpace(question) == "" {
		return Reply{}, qa.ErrEmptyQuestion
	}

	var reply Reply
	if chart := Route(question); chart != "" {
		logging.Infof("Generating graph: %s", chart)
		if _, err := b.charts.Render(ctx, chart); err != nil {
			return Reply{}, fmt.Errorf("failed to generate %s graph: %w", chart, err)
		}
		reply = Reply{Answer: chartReplies[chart], Chart: chart}
	} else {
		agent, err := b.qaAgent()
		if err != nil {
			return Reply{}, err
		}
		answer, err := agent.Answer(ctx, question)
		if err != nil {
			return Reply{}, err
		}
		reply = Reply{Answer: answer}
	}

	if err := b.log(question, reply.Answer); err != nil {
		return reply, err
	}
	return reply, nil
}

func (b *Bot) qaAgent() (Answerer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.agent != nil {
		return b.agent, nil
	}
	agent, err := b.newAgent()
	if err != nil {
		if errors.Is(err, qa.ErrNoIndexes) {
			logging.Warnf("Error loading QA system: %v", err)
		}
		return nil, err
	}
	b.agent = agent
	return agent, nil
}

// Upload ingests an uploaded PDF or image.
func (b *Bot) Upload(ctx context.Context, name, contentType string, r io.Reader) (ingest.Result, error) {
	res, err := b.ingester.ProcessUpload(ctx, name, contentType, r)
	if err != nil {
		return res, err
	}

	label := "image"
	if res.Kind == string(models.KindPDF) {
		label = "PDF"
	}
	return res, b.logFile(res.File, label)
}

// YouTube transcribes and ingests a video.
func (b *Bot) YouTube(ctx context.Context, videoURL string) (ingest.Result, error) {
	res, err := b.ingester.ProcessYouTube(ctx, videoURL)
	if err != nil {
		return res, err
	}
	return res, b.logFile(strings.TrimSpace(videoURL), "YouTube URL")
}

func (b *Bot) logFile(name, kind string) error {
	return b.log("Uploaded "+kind+": "+name, "Processed "+name+" as "+kind+".")
}

func (b *Bot) log(human, ai string) error {
	if _, err := db.AppendMessage(b.db, models.Message{Role: models.RoleHuman, Content: human}); err != nil {
		return err
	}
	if _, err := db.AppendMessage(b.db, models.Message{Role: models.RoleAI, Content: ai}); err != nil {
		return err
	}
	return nil
}

func (b *Bot) History() ([]models.Message, error) {
	return db.ListMessages(b.db)
}

func (b *Bot) ClearHistory() error {
	return db.ClearMessages(b.db)
}

// Label is the display name of a message author.
func Label(role models.Role) string {
	if role == models.RoleHuman {
		return "🧑 User"
	}
	return "🤖 AI"
}
