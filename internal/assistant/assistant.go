// Package assistant answers free-text questions about the Rigveda with
// cited riks, and keeps the question/answer transcript of a page.
package assistant

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"rigveda-go/internal/corpus"
	"rigveda-go/internal/logging"
)

const (
	DefaultMaxResults = 5
	// citationSimilarity is deliberately lower than interactive search so
	// loosely related riks still reach the prompt.
	citationSimilarity = 0.1
)

// NoCitationsAnswer is returned when no rik matches the question.
const NoCitationsAnswer = "I apologize, but I couldn't find any verses in the Rigveda that specifically mention your query. " +
	"Could you try:\n" +
	"1. Using different keywords or terms\n" +
	"2. Being more specific about what aspect you're interested in\n" +
	"3. Checking if there's a different way to phrase your question"

// Asker answers a question with citations. *api.Client implements it
// through the remote assistant endpoint.
type Asker interface {
	Ask(ctx context.Context, q corpus.Question) (corpus.Answer, error)
}

// Searcher finds citation candidates.
type Searcher interface {
	Search(ctx context.Context, q corpus.SearchQuery) (corpus.SearchPage, error)
}

// Generator turns a prompt into text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GenAI generates text with a Gemini model.
type GenAI struct {
	client *genai.Client
	model  string
}

// NewGenAI creates a Gemini generator.
func NewGenAI(ctx context.Context, apiKey, model string) (*GenAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GenAI{client: client, model: model}, nil
}

func (g *GenAI) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("generate content: %v: %w", err, corpus.ErrNetwork)
	}
	return resp.Text(), nil
}

// Gemini answers locally: it searches for citations and asks the model
// to explain them.
type Gemini struct {
	search Searcher
	gen    Generator
	logger *zap.Logger
}

// NewGemini creates an Asker over search and gen.
func NewGemini(search Searcher, gen Generator, logger *zap.Logger) *Gemini {
	return &Gemini{
		search: search,
		gen:    gen,
		logger: logging.OrNop(logger).Named("assistant"),
	}
}

func (g *Gemini) Ask(ctx context.Context, q corpus.Question) (corpus.Answer, error) {
	query := strings.TrimSpace(q.Query)
	if query == "" {
		return corpus.Answer{}, fmt.Errorf("ask: %w", corpus.ErrEmptyInput)
	}
	limit := q.MaxResults
	if limit <= 0 {
		limit = DefaultMaxResults
	}
	fields := q.Fields
	if len(fields) == 0 {
		fields = []corpus.Field{corpus.FieldTranslation}
	}

	page, err := g.search.Search(ctx, corpus.SearchQuery{
		Query:         query,
		Fields:        fields,
		Page:          1,
		PageSize:      limit,
		MinSimilarity: citationSimilarity,
	})
	if err != nil {
		return corpus.Answer{}, fmt.Errorf("find citations: %w", err)
	}
	if len(page.Hits) == 0 {
		return corpus.Answer{Query: query, Text: NoCitationsAnswer, Citations: []corpus.SearchHit{}}, nil
	}

	g.logger.Debug("asking model", zap.String("query", query), zap.Int("citations", len(page.Hits)))
	text, err := g.gen.Generate(ctx, BuildPrompt(query, page.Hits))
	if err != nil {
		return corpus.Answer{}, fmt.Errorf("answer %q: %w", query, err)
	}
	return corpus.Answer{Query: query, Text: text, Citations: page.Hits}, nil
}

// BuildPrompt renders the question and its citations for the model.
func BuildPrompt(query string, hits []corpus.SearchHit) string {
	var ctx strings.Builder
	for _, h := range hits {
		fmt.Fprintf(&ctx, "Mandala %d, Sukta %d, Rik %d (Relevance: %.2f):\n",
			h.Ref.Mandala, h.Ref.Sukta, h.Ref.Rik, h.Similarity)
		if h.Translation != "" {
			fmt.Fprintf(&ctx, "Translation: %s\n", h.Translation)
		}
		if h.Devanagari != "" {
			fmt.Fprintf(&ctx, "Devanagari: %s\n", h.Devanagari)
		}
		if h.Transliteration != "" {
			fmt.Fprintf(&ctx, "Transliteration: %s\n", h.Transliteration)
		}
		ctx.WriteString("\n")
	}

	var b strings.Builder
	b.WriteString("You are an expert on the Rigveda, one of the most ancient and sacred texts of Hinduism.\n\n")
	fmt.Fprintf(&b, "A user asked: %q\n", query)
	b.WriteString("Work out what the user actually wants to know.\n\n")
	b.WriteString("Here is the relevant Rigveda context that mentions this topic:\n\n")
	b.WriteString(ctx.String())
	b.WriteString("Based on the above verses from the Rigveda:\n")
	b.WriteString("1. Understand the concept, deity or topic the user asked about\n")
	b.WriteString("2. Understand its significance in Vedic literature\n")
	b.WriteString("3. If relevant, mention how this connects to broader Hindu philosophy\n")
	b.WriteString("4. Understand the purpose of these verses\n")
	b.WriteString("Then answer the user's question based on these points.\n\n")
	b.WriteString("Keep the answer focused on what these specific verses say while explaining clearly. Cite riks as mandala.sukta.rik.\n")
	return b.String()
}
