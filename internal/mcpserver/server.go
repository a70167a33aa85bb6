// Package mcpserver exposes the corpus, search and assistant as Model
// Context Protocol tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"rigveda-go/internal/assistant"
	"rigveda-go/internal/corpus"
	"rigveda-go/internal/logging"
	"rigveda-go/internal/pager"
	"rigveda-go/internal/store"
)

// Corpus is the read side of the remote API.
type Corpus interface {
	Books(ctx context.Context) ([]int, error)
	Hymns(ctx context.Context, mandala int) ([]int, error)
	Verses(ctx context.Context, hymn corpus.HymnRef) ([]int, error)
	Verse(ctx context.Context, ref corpus.Reference) (corpus.Verse, error)
	Search(ctx context.Context, q corpus.SearchQuery) (corpus.SearchPage, error)
	DailyVerse(ctx context.Context) (corpus.SearchHit, error)
	Random(ctx context.Context) (corpus.SearchHit, error)
}

// Bookmarks lists the reader's saved riks.
type Bookmarks interface {
	Bookmarks(ctx context.Context) ([]store.Bookmark, error)
}

// Options configures the tool handlers.
type Options struct {
	Bookmarks     Bookmarks // optional
	PageSize      int
	MinSimilarity float64
	Logger        *zap.Logger
}

// Server holds the dependencies of the tool handlers.
type Server struct {
	corpus        Corpus
	asker         assistant.Asker
	bookmarks     Bookmarks
	pageSize      int
	minSimilarity float64
	logger        *zap.Logger
}

// New creates the handlers.
func New(c Corpus, asker assistant.Asker, opts Options) *Server {
	size := opts.PageSize
	if size < 1 || size > pager.MaxPageSize {
		size = pager.DefaultPageSize
	}
	return &Server{
		corpus:        c,
		asker:         asker,
		bookmarks:     opts.Bookmarks,
		pageSize:      size,
		minSimilarity: opts.MinSimilarity,
		logger:        logging.OrNop(opts.Logger).Named("mcp"),
	}
}

// MCPServer builds the MCP server with every tool registered.
func (s *Server) MCPServer(version string) *server.MCPServer {
	m := server.NewMCPServer(
		"Rigveda",
		version,
		server.WithToolCapabilities(true),
		server.WithPromptCapabilities(true),
	)

	m.AddTool(
		mcp.NewTool("list_mandalas",
			mcp.WithDescription("List the mandala (book) numbers of the Rigveda."),
		),
		s.handleListMandalas,
	)

	m.AddTool(
		mcp.NewTool("list_suktas",
			mcp.WithDescription("List the sukta (hymn) numbers of a mandala."),
			mcp.WithNumber("mandala",
				mcp.Required(),
				mcp.Description("Mandala number, 1 to 10"),
			),
		),
		s.handleListSuktas,
	)

	m.AddTool(
		mcp.NewTool("list_riks",
			mcp.WithDescription("List the rik (verse) numbers of a sukta."),
			mcp.WithNumber("mandala", mcp.Required(), mcp.Description("Mandala number")),
			mcp.WithNumber("sukta", mcp.Required(), mcp.Description("Sukta number")),
		),
		s.handleListRiks,
	)

	m.AddTool(
		mcp.NewTool("read_rik",
			mcp.WithDescription("Read one rik: samhita and padapatha in Devanagari, transliteration and translation."),
			mcp.WithString("reference",
				mcp.Required(),
				mcp.Description("Rik reference such as '1.1.1' or 'mandala 1 sukta 1 rik 1'"),
			),
		),
		s.handleReadRik,
	)

	m.AddTool(
		mcp.NewTool("search",
			mcp.WithDescription("Search the Rigveda by meaning. Returns one page of matching riks with similarity scores."),
			mcp.WithString("query", mcp.Required(), mcp.Description("Words or a phrase to search for")),
			mcp.WithString("fields",
				mcp.Description("Comma separated fields to search and return: devanagari, transliteration, translation, deity"),
				mcp.DefaultString("translation"),
			),
			mcp.WithNumber("page", mcp.Description("Page number, from 1 (default: 1)")),
			mcp.WithNumber("page_size", mcp.Description("Results per page, 1 to 100")),
		),
		s.handleSearch,
	)

	m.AddTool(
		mcp.NewTool("ask",
			mcp.WithDescription("Ask a question about the Rigveda. Returns an answer with the riks it is based on."),
			mcp.WithString("query", mcp.Required(), mcp.Description("The question")),
			mcp.WithNumber("max_results", mcp.Description("Maximum number of cited riks (default: 5)")),
		),
		s.handleAsk,
	)

	m.AddTool(
		mcp.NewTool("daily_verse",
			mcp.WithDescription("The rik of the day."),
		),
		s.handleDailyVerse,
	)

	m.AddTool(
		mcp.NewTool("random_verse",
			mcp.WithDescription("A random rik."),
		),
		s.handleRandomVerse,
	)

	if s.bookmarks != nil {
		m.AddTool(
			mcp.NewTool("list_bookmarks",
				mcp.WithDescription("List the riks the reader has bookmarked."),
			),
			s.handleListBookmarks,
		)
	}

	m.AddPrompt(
		mcp.NewPrompt("explain_rik",
			mcp.WithPromptDescription("Explain the meaning and context of one rik"),
			mcp.WithArgument("reference",
				mcp.ArgumentDescription("Rik reference such as '1.1.1'"),
				mcp.RequiredArgument(),
			),
		),
		s.handleExplainRikPrompt,
	)

	return m
}

// ServeStdio serves the tools on stdin/stdout until the client disconnects.
func (s *Server) ServeStdio(version string) error {
	s.logger.Info("serving MCP on stdio", zap.String("version", version))
	return server.ServeStdio(s.MCPServer(version))
}

func (s *Server) handleListMandalas(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	books, err := s.corpus.Books(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error listing mandalas: %v", err)), nil
	}
	return jsonResult(books)
}

func (s *Server) handleListSuktas(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	mandala := req.GetInt("mandala", 0)
	if mandala < 1 {
		return mcp.NewToolResultError("mandala is required"), nil
	}

	hymns, err := s.corpus.Hymns(ctx, mandala)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error listing suktas of mandala %d: %v", mandala, err)), nil
	}
	return jsonResult(hymns)
}

func (s *Server) handleListRiks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	hymn := corpus.HymnRef{Mandala: req.GetInt("mandala", 0), Sukta: req.GetInt("sukta", 0)}
	if hymn.Mandala < 1 || hymn.Sukta < 1 {
		return mcp.NewToolResultError("mandala and sukta are required"), nil
	}

	riks, err := s.corpus.Verses(ctx, hymn)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error listing riks of %s: %v", hymn, err)), nil
	}
	return jsonResult(riks)
}

func (s *Server) handleReadRik(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, ok := corpus.ParseReference(req.GetString("reference", ""))
	if !ok || !ref.Valid() {
		return mcp.NewToolResultError("reference must look like mandala.sukta.rik, e.g. 1.1.1"), nil
	}

	v, err := s.corpus.Verse(ctx, ref)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error reading rik %s: %v", ref, err)), nil
	}
	return mcp.NewToolResultText(v.PlainText()), nil
}

func (s *Server) handleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := strings.TrimSpace(req.GetString("query", ""))
	if query == "" {
		return mcp.NewToolResultError("query is required"), nil
	}
	fields := corpus.ParseFields(req.GetString("fields", "translation"))
	if len(fields) == 0 {
		fields = []corpus.Field{corpus.FieldTranslation}
	}
	size := req.GetInt("page_size", s.pageSize)
	if size < 1 || size > pager.MaxPageSize {
		return mcp.NewToolResultError(fmt.Sprintf("page_size must be between 1 and %d", pager.MaxPageSize)), nil
	}

	page, err := s.corpus.Search(ctx, corpus.SearchQuery{
		Query:         query,
		Fields:        fields,
		Page:          max(req.GetInt("page", 1), 1),
		PageSize:      size,
		MinSimilarity: s.minSimilarity,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error searching: %v", err)), nil
	}
	if len(page.Hits) == 0 {
		return mcp.NewToolResultText("No riks found for: " + query), nil
	}
	if page.TotalPages == 0 {
		page.TotalPages = corpus.PageCount(page.TotalResults, size)
	}
	return jsonResult(page)
}

func (s *Server) handleAsk(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := strings.TrimSpace(req.GetString("query", ""))
	if query == "" {
		return mcp.NewToolResultError("query is required"), nil
	}

	ans, err := s.asker.Ask(ctx, corpus.Question{
		Query:      query,
		MaxResults: req.GetInt("max_results", assistant.DefaultMaxResults),
		Fields:     []corpus.Field{corpus.FieldTranslation},
	})
	if err != nil {
		s.logger.Warn("ask failed", zap.String("query", query), zap.Error(err))
		return mcp.NewToolResultError(fmt.Sprintf("Error answering: %v", err)), nil
	}

	var b strings.Builder
	b.WriteString(ans.Text)
	if len(ans.Citations) > 0 {
		b.WriteString("\n\nCited riks:\n")
		for _, c := range ans.Citations {
			fmt.Fprintf(&b, "- %s: %s\n", c.Ref, c.Summary())
		}
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) handleDailyVerse(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	hit, err := s.corpus.DailyVerse(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error fetching the rik of the day: %v", err)), nil
	}
	return jsonResult(hit)
}

func (s *Server) handleRandomVerse(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	hit, err := s.corpus.Random(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error fetching a random rik: %v", err)), nil
	}
	return jsonResult(hit)
}

func (s *Server) handleListBookmarks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	bookmarks, err := s.bookmarks.Bookmarks(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error listing bookmarks: %v", err)), nil
	}
	if len(bookmarks) == 0 {
		return mcp.NewToolResultText("No bookmarks yet."), nil
	}

	var b strings.Builder
	for _, bm := range bookmarks {
		b.WriteString(bm.Ref.String())
		if bm.Label != "" {
			b.WriteString("  " + bm.Label)
		}
		b.WriteString("\n")
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) handleExplainRikPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	ref, ok := corpus.ParseReference(req.Params.Arguments["reference"])
	if !ok || !ref.Valid() {
		return nil, fmt.Errorf("reference %q: %w", req.Params.Arguments["reference"], corpus.ErrEmptyInput)
	}

	v, err := s.corpus.Verse(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("read rik %s: %w", ref, err)
	}

	promptText := fmt.Sprintf(`Explain Rigveda %s.

%s
Describe the deity addressed, the imagery, and the place of this rik in its sukta.`, ref, v.PlainText())

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Explain Rigveda %s", ref),
		Messages: []mcp.PromptMessage{
			{
				Role:    mcp.RoleUser,
				Content: mcp.NewTextContent(promptText),
			},
		},
	}, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	result, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error encoding result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(result)), nil
}
