package models

import "time"

// SourceKind tells which extractor produced an index.
type SourceKind string

const (
	KindPDF     SourceKind = "pdf"
	KindImage   SourceKind = "image"
	KindYouTube SourceKind = "youtube"
)

// Index is one vectorized source document. Every ingested file gets its own
// index so it can be skipped or removed independently.
type Index struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Kind      SourceKind `json:"kind"`
	Source    string     `json:"source"`
	Chunks    int        `json:"chunks"`
	CreatedAt time.Time  `json:"created_at"`
}

// Chunk is a piece of source text stored next to its vector.
type Chunk struct {
	ID      int64
	IndexID int64
	Ordinal int
	Content string
	Source  string
}

type Role string

const (
	RoleHuman Role = "human"
	RoleAI    Role = "ai"
)

// Message is a conversation memory entry.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
