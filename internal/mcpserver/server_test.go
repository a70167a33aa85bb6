package mcpserver

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rigveda-go/internal/corpus"
	"rigveda-go/internal/store"
)

type fakeCorpus struct {
	lastSearch corpus.SearchQuery
	err        error
}

func (f *fakeCorpus) Books(context.Context) ([]int, error) {
	return []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, f.err
}

func (f *fakeCorpus) Hymns(_ context.Context, mandala int) ([]int, error) {
	return []int{1, 2, 3}, f.err
}

func (f *fakeCorpus) Verses(context.Context, corpus.HymnRef) ([]int, error) {
	return []int{1, 2, 3, 4, 5, 6, 7, 8, 9}, f.err
}

func (f *fakeCorpus) Verse(_ context.Context, ref corpus.Reference) (corpus.Verse, error) {
	if f.err != nil {
		return corpus.Verse{}, f.err
	}
	return corpus.Verse{
		Ref:             ref,
		Samhita:         "अग्निमीळे पुरोहितं",
		Transliteration: "agním īḷe puróhitaṃ",
		Translation:     "I praise Agni, the chosen priest",
		Deity:           "Agni",
	}, nil
}

func (f *fakeCorpus) Search(_ context.Context, q corpus.SearchQuery) (corpus.SearchPage, error) {
	f.lastSearch = q
	if f.err != nil {
		return corpus.SearchPage{}, f.err
	}
	if q.Query == "nothing" {
		return corpus.SearchPage{Query: q.Query, Page: 1, PageSize: q.PageSize}, nil
	}
	return corpus.SearchPage{
		Query:        q.Query,
		Page:         q.Page,
		PageSize:     q.PageSize,
		TotalResults: 23,
		Hits:         []corpus.SearchHit{{Ref: corpus.Reference{Mandala: 1, Sukta: 1, Rik: 1}, Similarity: 0.8}},
	}, nil
}

func (f *fakeCorpus) DailyVerse(context.Context) (corpus.SearchHit, error) {
	return corpus.SearchHit{Ref: corpus.Reference{Mandala: 10, Sukta: 129, Rik: 1}, Translation: "Then was not non-existent"}, f.err
}

func (f *fakeCorpus) Random(context.Context) (corpus.SearchHit, error) {
	return corpus.SearchHit{Ref: corpus.Reference{Mandala: 3, Sukta: 62, Rik: 10}}, f.err
}

type fakeAsker struct{ got corpus.Question }

func (a *fakeAsker) Ask(_ context.Context, q corpus.Question) (corpus.Answer, error) {
	a.got = q
	return corpus.Answer{
		Query:     q.Query,
		Text:      "Agni is the messenger between gods and men.",
		Citations: []corpus.SearchHit{{Ref: corpus.Reference{Mandala: 1, Sukta: 1, Rik: 1}, Translation: "I praise Agni"}},
	}, nil
}

type fakeBookmarks []store.Bookmark

func (f fakeBookmarks) Bookmarks(context.Context) ([]store.Bookmark, error) { return f, nil }

func callTool(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "content is %T", res.Content[0])
	return text.Text
}

func newTestServer() (*Server, *fakeCorpus, *fakeAsker) {
	c := &fakeCorpus{}
	a := &fakeAsker{}
	return New(c, a, Options{PageSize: 10, MinSimilarity: 0.4, Bookmarks: fakeBookmarks{
		{Ref: corpus.Reference{Mandala: 1, Sukta: 1, Rik: 1}, Label: "opening"},
	}}), c, a
}

func TestReadRik(t *testing.T) {
	s, _, _ := newTestServer()

	res, err := s.handleReadRik(context.Background(), callTool("read_rik", map[string]any{"reference": "mandala 1 sukta 1 rik 1"}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	text := resultText(t, res)
	assert.Contains(t, text, "Rigveda 1.1.1")
	assert.Contains(t, text, "Deity: Agni")
	assert.Contains(t, text, "Translation:\nI praise Agni")

	res, err = s.handleReadRik(context.Background(), callTool("read_rik", map[string]any{"reference": "agni"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestSearchTool(t *testing.T) {
	s, c, _ := newTestServer()

	res, err := s.handleSearch(context.Background(), callTool("search", map[string]any{
		"query":     "dawn",
		"fields":    "translation, deity",
		"page":      float64(2),
		"page_size": float64(5),
	}))
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(t, res))

	assert.Equal(t, 2, c.lastSearch.Page)
	assert.Equal(t, 5, c.lastSearch.PageSize)
	assert.Equal(t, 0.4, c.lastSearch.MinSimilarity)
	assert.Equal(t, []corpus.Field{corpus.FieldTranslation, corpus.FieldDeity}, c.lastSearch.Fields)

	var page corpus.SearchPage
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &page))
	assert.Equal(t, 5, page.TotalPages)
	assert.Len(t, page.Hits, 1)
}

func TestSearchToolRejectsBadInput(t *testing.T) {
	s, _, _ := newTestServer()

	res, err := s.handleSearch(context.Background(), callTool("search", map[string]any{"query": "  "}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = s.handleSearch(context.Background(), callTool("search", map[string]any{"query": "dawn", "page_size": float64(500)}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = s.handleSearch(context.Background(), callTool("search", map[string]any{"query": "nothing"}))
	require.NoError(t, err)
	assert.Equal(t, "No riks found for: nothing", resultText(t, res))
}

func TestAskTool(t *testing.T) {
	s, _, a := newTestServer()

	res, err := s.handleAsk(context.Background(), callTool("ask", map[string]any{"query": "who is Agni", "max_results": float64(3)}))
	require.NoError(t, err)
	text := resultText(t, res)
	assert.Contains(t, text, "messenger between gods")
	assert.Contains(t, text, "- 1.1.1: I praise Agni")
	assert.Equal(t, 3, a.got.MaxResults)
}

func TestListTools(t *testing.T) {
	s, _, _ := newTestServer()
	ctx := context.Background()

	res, err := s.handleListMandalas(ctx, callTool("list_mandalas", nil))
	require.NoError(t, err)
	var books []int
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &books))
	assert.Len(t, books, 10)

	res, err = s.handleListSuktas(ctx, callTool("list_suktas", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = s.handleListRiks(ctx, callTool("list_riks", map[string]any{"mandala": float64(1), "sukta": float64(1)}))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	res, err = s.handleListBookmarks(ctx, callTool("list_bookmarks", nil))
	require.NoError(t, err)
	assert.Equal(t, "1.1.1  opening\n", resultText(t, res))
}

func TestUpstreamErrorsBecomeToolErrors(t *testing.T) {
	s, c, _ := newTestServer()
	c.err = corpus.ErrNetwork

	res, err := s.handleDailyVerse(context.Background(), callTool("daily_verse", nil))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "network error")
}

func TestExplainRikPrompt(t *testing.T) {
	s, _, _ := newTestServer()

	req := mcp.GetPromptRequest{}
	req.Params.Name = "explain_rik"
	req.Params.Arguments = map[string]string{"reference": "1.1.1"}

	res, err := s.handleExplainRikPrompt(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, res.Messages, 1)
	assert.Equal(t, mcp.RoleUser, res.Messages[0].Role)

	req.Params.Arguments = map[string]string{}
	_, err = s.handleExplainRikPrompt(context.Background(), req)
	assert.ErrorIs(t, err, corpus.ErrEmptyInput)
}

func TestMCPServerBuilds(t *testing.T) {
	s, _, _ := newTestServer()
	assert.NotNil(t, s.MCPServer("test"))
}
