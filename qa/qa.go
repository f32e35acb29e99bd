package qa

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/andrejsstepanovs/docqa/db"
	"github.com/andrejsstepanovs/docqa/logging"
	"github.com/andrejsstepanovs/docqa/models"
)

const systemInstruction = "You are a helpful and precise AI assistant. " +
	"Use the context to answer the user's question as accurately as possible. " +
	"If the context does not contain a clear answer, respond with: 'Not found in context.'"

var (
	ErrNoIndexes     = errors.New("no document index found, upload a document first")
	ErrEmptyQuestion = errors.New("question cannot be empty")
)

type Embedder interface {
	Embeddings(ctx context.Context, texts []string) ([]models.Embedding, error)
}

type LLM interface {
	Chat(ctx context.Context, messages []models.ChatMessage) (string, error)
}

// Agent answers questions from the chunks of every stored index.
type Agent struct {
	db            *sql.DB
	embedder      Embedder
	llm           LLM
	k             int
	minSimilarity float64
}

// New fails with ErrNoIndexes while nothing has been ingested. Answers use the
// k nearest chunks; minSimilarity only applies to Find.
func New(conn *sql.DB, embedder Embedder, llm LLM, k int, minSimilarity float64) (*Agent, error) {
	n, err := db.CountIndexes(conn)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrNoIndexes
	}
	logging.Debugf("QA agent loaded %d indexes", n)

	return &Agent{
		db:            conn,
		embedder:      embedder,
		llm:           llm,
		k:             k,
		minSimilarity: minSimilarity,
	}, nil
}

// BuildPrompt renders the instruction, the retrieved context and the question.
func BuildPrompt(context, question string) string {
	return systemInstruction + "\n\n" +
		"Context:\n" + strings.TrimSpace(context) + "\n\n" +
		"Question: " + strings.TrimSpace(question) + "\n\n" +
		"Answer:"
}

// ExtractAnswer keeps the text after the last "Answer:" marker, if any.
func ExtractAnswer(text string) string {
	if i := strings.LastIndex(text, "Answer:"); i >= 0 {
		return strings.TrimSpace(text[i+len("Answer:"):])
	}
	return strings.TrimSpace(text)
}

func (a *Agent) embedQuestion(ctx context.Context, question string) ([]float32, error) {
	embeddings, err := a.embedder.Embeddings(ctx, []string{question})
	if err != nil {
		return nil, fmt.Errorf("error generating embeddings for question: %w", err)
	}
	if len(embeddings) != 1 {
		return nil, fmt.Errorf("expected 1 embedding, got %d", len(embeddings))
	}
	return embeddings[0].Float32(), nil
}

// Retrieve returns the k chunks closest to the question.
func (a *Agent) Retrieve(ctx context.Context, question string) ([]db.SearchResult, error) {
	embedding, err := a.embedQuestion(ctx, question)
	if err != nil {
		return nil, err
	}

	results, err := db.Search(a.db, embedding, a.k)
	if err != nil {
		return nil, fmt.Errorf("error searching for similar chunks: %w", err)
	}
	return results, nil
}

// Find returns at most k chunks at least minSimilarity similar to the query,
// cut at the first clear gap. Distance holds the similarity.
func (a *Agent) Find(ctx context.Context, query string) ([]db.SearchResult, error) {
	embedding, err := a.embedQuestion(ctx, query)
	if err != nil {
		return nil, err
	}

	results, err := db.SearchWithSimilarity(a.db, embedding, a.minSimilarity, a.k)
	if err != nil {
		return nil, fmt.Errorf("error searching for similar chunks: %w", err)
	}
	return results, nil
}

// Answer retrieves context and asks the LLM. A failed completion is reported
// in the returned text so it can be shown in the conversation as is.
func (a *Agent) Answer(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyQuestion
	}

	results, err := a.Retrieve(ctx, question)
	if err != nil {
		return "", err
	}

	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = r.Content
	}
	logging.Debugf("Retrieved %d chunks for %q", len(results), question)

	prompt := BuildPrompt(strings.Join(parts, "\n\n"), question)
	text, err := a.llm.Chat(ctx, []models.ChatMessage{{Role: "user", Content: prompt}})
	if err != nil {
		logging.Errorf("LLM completion failed: %v", err)
		return fmt.Sprintf("❌ Error generating answer. Question: %q. Exception: %v", question, err), nil
	}

	return ExtractAnswer(text), nil
}
