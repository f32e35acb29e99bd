package models

type EmbeddingUsage struct {
	PromptTokens int `json:"prompt_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

type Embedding []float64

type EmbeddingData struct {
	Object    string    `json:"object"`
	Embedding Embedding `json:"embedding"`
	Index     int       `json:"index"`
}

type EmbeddingResponse struct {
	Object     string          `json:"object"`
	Embeddings []Embedding     `json:"embeddings"` // ollama response
	Data       []EmbeddingData `json:"data"`       // litellm response
	Model      string          `json:"model"`
	Usage      EmbeddingUsage  `json:"usage"`
}

// GetEmbeddings returns the vectors in input order regardless of which
// provider produced the response.
func (er EmbeddingResponse) GetEmbeddings() []Embedding {
	if len(er.Embeddings) > 0 {
		return er.Embeddings
	}
	if len(er.Data) == 0 {
		return nil
	}
	out := make([]Embedding, len(er.Data))
	for i, d := range er.Data {
		if d.Index >= 0 && d.Index < len(out) {
			out[d.Index] = d.Embedding
			continue
		}
		out[i] = d.Embedding
	}
	return out
}

func (e *Embedding) Float32() []float32 {
	float32s := make([]float32, len(*e))
	for i, v := range *e {
		float32s[i] = float32(v)
	}
	return float32s
}

type EmbeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// FeatureExtractionRequest is the Hugging Face inference payload for
// sentence embedding pipelines.
type FeatureExtractionRequest struct {
	Inputs []string `json:"inputs"`
}
