package splitter

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
)

// Splitter cuts extracted document text into overlapping chunks, preferring
// paragraph, then line, then word boundaries.
type Splitter struct {
	size    int
	overlap int
	rs      textsplitter.RecursiveCharacter
}

func New(chunkSize, chunkOverlap int) (*Splitter, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", chunkSize, chunkOverlap)
	}

	rs := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(chunkSize),
		textsplitter.WithChunkOverlap(chunkOverlap),
		textsplitter.WithSeparators([]string{"\n\n", "\n", " ", ""}),
	)
	return &Splitter{size: chunkSize, overlap: chunkOverlap, rs: rs}, nil
}

// Split returns the non-blank chunks of text. Blank input yields no chunks.
func (s *Splitter) Split(text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	parts, err := s.rs.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("failed to split text: %w", err)
	}

	chunks := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			continue
		}
		chunks = append(chunks, p)
	}
	return chunks, nil
}
