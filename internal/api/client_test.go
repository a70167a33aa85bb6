package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rigveda-go/internal/corpus"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(DefaultConfig(srv.URL+"/"), nil)
}

func TestBooksAndHymns(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/mandalas":
			w.Write([]byte(`{"mandalas":["Mandala 10","Mandala 1","Mandala 2"]}`))
		case "/mandala/1/suktas":
			w.Write([]byte(`{"mandala":1,"suktas":["Sukta 2","Sukta 1"]}`))
		case "/mandala/1/sukta/2/riks":
			w.Write([]byte(`{"mandala":1,"sukta":2,"riks":[1,2,3]}`))
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	books, err := c.Books(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 10}, books)

	hymns, err := c.Hymns(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, hymns)

	riks, err := c.Verses(ctx, corpus.HymnRef{Mandala: 1, Sukta: 2})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, riks)
}

func TestVerseDecodesNestedRecord(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/mandala/1/sukta/1/rik/1", r.URL.Path)
		w.Write([]byte(`{
			"rik_number": 1,
			"samhita": {"devanagari": {"text": "अग्निमीळे पुरोहितं"}},
			"padapatha": {"devanagari": {"text": "अग्निम् । ईळे ।"}, "transliteration": {"text": "agnim | īḷe |"}},
			"translation": "I praise Agni",
			"deity": "Agni"
		}`))
	})

	got, err := c.Verse(context.Background(), corpus.Reference{Mandala: 1, Sukta: 1, Rik: 1})
	require.NoError(t, err)

	want := corpus.Verse{
		Ref:             corpus.Reference{Mandala: 1, Sukta: 1, Rik: 1},
		Samhita:         "अग्निमीळे पुरोहितं",
		Padapatha:       "अग्निम् । ईळे ।",
		Transliteration: "agnim | īḷe |",
		Translation:     "I praise Agni",
		Deity:           "Agni",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Verse() mismatch (-want +got):\n%s", diff)
	}
}

func TestSearchSendsQuery(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "agni", q.Get("query"))
		assert.Equal(t, []string{"translation", "deity"}, q["fields"])
		assert.Equal(t, "2", q.Get("page"))
		assert.Equal(t, "10", q.Get("page_size"))
		assert.Equal(t, "0.4", q.Get("min_similarity"))
		w.Write([]byte(`{"query":"agni","page":2,"page_size":10,"total_results":23,
			"results":[{"mandala":1,"sukta":1,"rik_number":3,"similarity_score":0.71,"translation":"Agni, the priest"}]}`))
	})

	page, err := c.Search(context.Background(), corpus.SearchQuery{
		Query:         "agni",
		Fields:        []corpus.Field{corpus.FieldTranslation, corpus.FieldDeity},
		Page:          2,
		PageSize:      10,
		MinSimilarity: 0.4,
	})
	require.NoError(t, err)
	assert.Equal(t, 23, page.TotalResults)
	assert.Equal(t, 0, page.TotalPages, "omitted by the endpoint")
	require.Len(t, page.Hits, 1)
	assert.Equal(t, corpus.Reference{Mandala: 1, Sukta: 1, Rik: 3}, page.Hits[0].Ref)
	assert.Equal(t, "Agni, the priest", page.Hits[0].Translation)
}

func TestSearchRejectsBlankQuery(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	_, err := c.Search(context.Background(), corpus.SearchQuery{Query: "  "})
	assert.ErrorIs(t, err, corpus.ErrEmptyInput)
}

func TestHymnViewToleratesObjectTranslation(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"mandala":1,"sukta":1,"audio_url":"https://audio.example/01-001.mp3",
			"riks":[{"rik_number":1,"samhita_devanagari":"a","translation":"one"},
			        {"rik_number":2,"samhita_devanagari":"b","translation":{}}]}`))
	})

	view, err := c.HymnView(context.Background(), corpus.HymnRef{Mandala: 1, Sukta: 1})
	require.NoError(t, err)
	assert.Equal(t, "https://audio.example/01-001.mp3", view.AudioURL)
	require.Len(t, view.Riks, 2)
	assert.Equal(t, "one", view.Riks[0].Translation)
	assert.Equal(t, "", view.Riks[1].Translation)
	assert.Equal(t, 2, view.Riks[1].Ref.Rik)
}

func TestAsk(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "who is agni", r.URL.Query().Get("query"))
		assert.Equal(t, "3", r.URL.Query().Get("max_results"))
		w.Write([]byte(`{"query":"who is agni","answer":"Agni is fire.",
			"context":[{"mandala":1,"sukta":1,"rik_number":1,"similarity_score":0.5,"translation":"I praise Agni"}]}`))
	})

	ans, err := c.Ask(context.Background(), corpus.Question{Query: "who is agni", MaxResults: 3})
	require.NoError(t, err)
	assert.Equal(t, "Agni is fire.", ans.Text)
	require.Len(t, ans.Citations, 1)
	assert.Equal(t, 1, ans.Citations[0].Ref.Rik)
}

func TestAskSurfacesBodyError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":"quota exceeded"}`))
	})
	_, err := c.Ask(context.Background(), corpus.Question{Query: "q"})
	require.Error(t, err)
	assert.ErrorIs(t, err, corpus.ErrNetwork)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestStatusErrors(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/mandala/99/suktas" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"detail":"Mandala not found"}`))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.Hymns(context.Background(), 99)
	assert.ErrorIs(t, err, corpus.ErrNetwork)
	assert.ErrorIs(t, err, corpus.ErrNotFound)
	assert.Contains(t, err.Error(), "Mandala not found")

	_, err = c.Books(context.Background())
	assert.ErrorIs(t, err, corpus.ErrNetwork)
	assert.NotErrorIs(t, err, corpus.ErrNotFound)
}

func TestTransportErrorIsNetworkError(t *testing.T) {
	c := New(Config{BaseURL: "http://127.0.0.1:1", Timeout: time.Second}, nil)
	_, err := c.Books(context.Background())
	assert.ErrorIs(t, err, corpus.ErrNetwork)
}

func TestExportPDF(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/export_pdf/1/2", r.URL.Path)
		assert.Equal(t, "false", r.URL.Query().Get("include_padapatha"))
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4 fake"))
	})

	var buf bytes.Buffer
	opts := corpus.DefaultExportOptions()
	opts.Padapatha = false
	n, err := c.ExportPDF(context.Background(), corpus.HymnRef{Mandala: 1, Sukta: 2}, opts, &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(13), n)
	assert.Equal(t, "%PDF-1.4 fake", buf.String())
}

func TestExportPDFJSONError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"error":"Sukta not found"}`))
	})

	var buf bytes.Buffer
	_, err := c.ExportPDF(context.Background(), corpus.HymnRef{Mandala: 1, Sukta: 999}, corpus.DefaultExportOptions(), &buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Sukta not found")
	assert.Zero(t, buf.Len())
}

func TestDailyVerse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/daily-verse", r.URL.Path)
		assert.Len(t, r.URL.Query()["fields"], 4)
		w.Write([]byte(`{"mandala":3,"sukta":62,"rik_number":10,"translation":"May we attain"}`))
	})
	hit, err := c.DailyVerse(context.Background())
	require.NoError(t, err)
	assert.Equal(t, corpus.Reference{Mandala: 3, Sukta: 62, Rik: 10}, hit.Ref)
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "1", "exp": exp.Unix()})
	s, err := tok.SignedString([]byte("secret"))
	require.NoError(t, err)
	return s
}

func TestBearerToken(t *testing.T) {
	valid := signedToken(t, time.Now().Add(time.Hour))
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		w.Write([]byte(`{"mandalas":[]}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Timeout: time.Second, Token: valid}, nil)
	_, err := c.Books(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer "+valid, got)

	got = ""
	expired := New(Config{BaseURL: srv.URL, Timeout: time.Second, Token: signedToken(t, time.Now().Add(-time.Hour))}, nil)
	_, err = expired.Books(context.Background())
	assert.True(t, errors.Is(err, ErrTokenExpired))
	assert.Empty(t, got, "expired token must not be sent")

	opaque := New(Config{BaseURL: srv.URL, Timeout: time.Second, Token: "opaque-token"}, nil)
	_, err = opaque.Books(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer opaque-token", got)
}
