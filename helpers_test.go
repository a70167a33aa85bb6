package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"rigveda-go/internal/config"
)

// fakeAPI serves a two mandala corpus: mandala 1 has suktas 1 and 2,
// mandala 2 has sukta 1, and every sukta has three riks.
type fakeAPI struct {
	rikHits    atomic.Int32
	searchHits atomic.Int32

	mu         sync.Mutex
	lastExport url.Values
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	num := func(i int) int {
		n, _ := strconv.Atoi(parts[i])
		return n
	}

	switch {
	case r.URL.Path == "/mandalas":
		writeJSON(w, map[string]any{"mandalas": []string{"Mandala 2", "Mandala 1"}})
	case len(parts) == 3 && parts[0] == "mandala" && parts[2] == "suktas":
		if num(1) > 2 {
			http.NotFound(w, r)
			return
		}
		suktas := []string{"Sukta 1"}
		if num(1) == 1 {
			suktas = append(suktas, "Sukta 2")
		}
		writeJSON(w, map[string]any{"mandala": num(1), "suktas": suktas})
	case len(parts) == 5 && parts[4] == "riks":
		writeJSON(w, map[string]any{"mandala": num(1), "sukta": num(3), "riks": []int{1, 2, 3}})
	case len(parts) == 5 && parts[4] == "view":
		var riks []map[string]any
		for rik := 1; rik <= 3; rik++ {
			riks = append(riks, map[string]any{
				"rik_number":         rik,
				"samhita_devanagari": fmt.Sprintf("ऋक् %d", rik),
				"transliteration":    fmt.Sprintf("rik %d", rik),
				"translation":        fmt.Sprintf("Rik %d.%d.%d", num(1), num(3), rik),
			})
		}
		writeJSON(w, map[string]any{
			"mandala":   num(1),
			"sukta":     num(3),
			"audio_url": "http://" + r.Host + "/audio.mp3",
			"riks":      riks,
		})
	case len(parts) == 6 && parts[4] == "rik":
		f.rikHits.Add(1)
		writeJSON(w, map[string]any{
			"rik_number":  num(5),
			"samhita":     map[string]any{"devanagari": map[string]string{"text": "अग्निमीळे पुरोहितं"}},
			"padapatha":   map[string]any{"devanagari": map[string]string{"text": "अग्निम् । ईळे ।"}, "transliteration": map[string]string{"text": "agnim | īḷe |"}},
			"translation": fmt.Sprintf("Rik %d.%d.%d", num(1), num(3), num(5)),
			"deity":       "Agni",
		})
	case r.URL.Path == "/search":
		f.searchHits.Add(1)
		q := r.URL.Query()
		page, _ := strconv.Atoi(q.Get("page"))
		size, _ := strconv.Atoi(q.Get("page_size"))
		total := 23
		if q.Get("query") == "nothing" {
			total = 0
		}
		var results []map[string]any
		for k := (page - 1) * size; k < min(total, page*size); k++ {
			results = append(results, map[string]any{
				"mandala":          1,
				"sukta":            2,
				"rik_number":       k%3 + 1,
				"similarity_score": 0.9,
				"translation":      fmt.Sprintf("hit %d", k+1),
			})
		}
		writeJSON(w, map[string]any{"query": q.Get("query"), "page": page, "page_size": size, "total_results": total, "results": results})
	case r.URL.Path == "/daily-verse":
		writeJSON(w, map[string]any{"mandala": 1, "sukta": 1, "rik_number": 1, "translation": "Rik 1.1.1"})
	case r.URL.Path == "/random":
		writeJSON(w, map[string]any{"mandala": 2, "sukta": 1, "rik_number": 3, "translation": "Rik 2.1.3"})
	case r.URL.Path == "/ai-assistant":
		writeJSON(w, map[string]any{
			"query":  r.URL.Query().Get("query"),
			"answer": "Agni is the divine priest.",
			"context": []map[string]any{
				{"mandala": 1, "sukta": 1, "rik_number": 1, "similarity_score": 0.8, "translation": "Rik 1.1.1"},
			},
		})
	case len(parts) == 3 && parts[0] == "export_pdf":
		f.mu.Lock()
		f.lastExport = r.URL.Query()
		f.mu.Unlock()
		if num(1) != 1 {
			writeJSON(w, map[string]string{"error": "Sukta not found"})
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4 test"))
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeAPI) exportQuery() url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastExport
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// setupTestApp points the global runtime at a fake API with an in-memory
// database and a private export dir.
func setupTestApp(t *testing.T) *fakeAPI {
	t.Helper()
	api := &fakeAPI{}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	c := config.DefaultConfig()
	c.API.BaseURL = srv.URL
	c.Storage.DatabasePath = ":memory:"
	c.Storage.ExportDir = t.TempDir()
	c.Logging.File = ""

	a, err := newApp(context.Background(), c, zap.NewNop())
	require.NoError(t, err)

	cfg, logger, rt = c, zap.NewNop(), a
	dir := t.TempDir()
	stateDir = func() (string, error) { return dir, nil }
	t.Cleanup(func() {
		a.Close()
		rt = nil
		stateDir = config.EnsureDir
	})
	return api
}

func newTestCmd() (*cobra.Command, *bytes.Buffer) {
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	var out bytes.Buffer
	cmd.SetOut(&out)
	return cmd, &out
}
