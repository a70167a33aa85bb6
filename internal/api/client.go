// Package api is the HTTP client for the remote RigVeda API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"rigveda-go/internal/corpus"
	"rigveda-go/internal/logging"
)

// ErrTokenExpired is returned before sending a request with an expired bearer token.
var ErrTokenExpired = errors.New("api token expired")

// Config holds API connection configuration.
type Config struct {
	// BaseURL is the API endpoint (e.g., http://127.0.0.1:8000)
	BaseURL string

	// Timeout for HTTP requests
	Timeout time.Duration

	// Token is sent as a bearer token when set
	Token string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL: baseURL,
		Timeout: 30 * time.Second,
	}
}

// Client talks to the RigVeda API. It is safe for concurrent use.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
	now        func() time.Time
}

// New creates a client.
func New(cfg Config, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		token:   cfg.Token,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logging.OrNop(logger).Named("api"),
		now:    time.Now,
	}
}

// Books lists mandala numbers in order.
func (c *Client) Books(ctx context.Context) ([]int, error) {
	var resp struct {
		Mandalas []string `json:"mandalas"`
	}
	if err := c.getJSON(ctx, "/mandalas", nil, &resp); err != nil {
		return nil, err
	}
	return corpus.SortOrdinals(resp.Mandalas), nil
}

// Hymns lists sukta numbers within a mandala.
func (c *Client) Hymns(ctx context.Context, mandala int) ([]int, error) {
	var resp struct {
		Suktas []string `json:"suktas"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("/mandala/%d/suktas", mandala), nil, &resp); err != nil {
		return nil, err
	}
	return corpus.SortOrdinals(resp.Suktas), nil
}

// Verses lists rik numbers within a sukta.
func (c *Client) Verses(ctx context.Context, hymn corpus.HymnRef) ([]int, error) {
	var resp struct {
		Riks []int `json:"riks"`
	}
	path := fmt.Sprintf("/mandala/%d/sukta/%d/riks", hymn.Mandala, hymn.Sukta)
	if err := c.getJSON(ctx, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Riks, nil
}

// Verse fetches the full content of one rik.
func (c *Client) Verse(ctx context.Context, ref corpus.Reference) (corpus.Verse, error) {
	var rik rikDetail
	path := fmt.Sprintf("/mandala/%d/sukta/%d/rik/%d", ref.Mandala, ref.Sukta, ref.Rik)
	if err := c.getJSON(ctx, path, nil, &rik); err != nil {
		return corpus.Verse{}, err
	}
	return rik.toVerse(ref.Hymn()), nil
}

// Search requests one page of full-text results.
func (c *Client) Search(ctx context.Context, q corpus.SearchQuery) (corpus.SearchPage, error) {
	if strings.TrimSpace(q.Query) == "" {
		return corpus.SearchPage{}, fmt.Errorf("search: %w", corpus.ErrEmptyInput)
	}

	params := url.Values{}
	params.Set("query", q.Query)
	for _, f := range q.Fields {
		params.Add("fields", string(f))
	}
	if q.Page > 0 {
		params.Set("page", strconv.Itoa(q.Page))
	}
	if q.PageSize > 0 {
		params.Set("page_size", strconv.Itoa(q.PageSize))
	}
	if q.MinSimilarity > 0 {
		params.Set("min_similarity", strconv.FormatFloat(q.MinSimilarity, 'f', -1, 64))
	}

	var resp searchResponse
	if err := c.getJSON(ctx, "/search", params, &resp); err != nil {
		return corpus.SearchPage{}, err
	}

	page := corpus.SearchPage{
		Query:        resp.Query,
		Page:         resp.Page,
		PageSize:     resp.PageSize,
		TotalResults: resp.TotalResults,
		TotalPages:   resp.TotalPages,
		Hits:         make([]corpus.SearchHit, 0, len(resp.Results)),
	}
	for _, h := range resp.Results {
		page.Hits = append(page.Hits, h.toHit())
	}
	return page, nil
}

// HymnView fetches a sukta with its narration URL.
func (c *Client) HymnView(ctx context.Context, hymn corpus.HymnRef) (corpus.HymnView, error) {
	var resp viewResponse
	path := fmt.Sprintf("/mandala/%d/sukta/%d/view", hymn.Mandala, hymn.Sukta)
	if err := c.getJSON(ctx, path, nil, &resp); err != nil {
		return corpus.HymnView{}, err
	}

	view := corpus.HymnView{
		Ref:      hymn,
		AudioURL: resp.AudioURL,
		Riks:     make([]corpus.Verse, 0, len(resp.Riks)),
	}
	for _, r := range resp.Riks {
		view.Riks = append(view.Riks, corpus.Verse{
			Ref:             corpus.Reference{Mandala: hymn.Mandala, Sukta: hymn.Sukta, Rik: r.RikNumber},
			Samhita:         r.SamhitaDevanagari,
			Padapatha:       r.PadapathaDevanagari,
			Transliteration: r.Transliteration,
			Translation:     string(r.Translation),
		})
	}
	return view, nil
}

// Ask sends a question to the assistant endpoint.
func (c *Client) Ask(ctx context.Context, q corpus.Question) (corpus.Answer, error) {
	if strings.TrimSpace(q.Query) == "" {
		return corpus.Answer{}, fmt.Errorf("ask: %w", corpus.ErrEmptyInput)
	}

	params := url.Values{}
	params.Set("query", q.Query)
	if q.MaxResults > 0 {
		params.Set("max_results", strconv.Itoa(q.MaxResults))
	}
	for _, f := range q.Fields {
		params.Add("fields", string(f))
	}

	var resp struct {
		Query   string      `json:"query"`
		Answer  string      `json:"answer"`
		Context []searchHit `json:"context"`
		Error   string      `json:"error"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/ai-assistant", params, &resp); err != nil {
		return corpus.Answer{}, err
	}
	if resp.Error != "" {
		return corpus.Answer{}, fmt.Errorf("%w: assistant: %s", corpus.ErrNetwork, resp.Error)
	}

	answer := corpus.Answer{Query: q.Query, Text: resp.Answer}
	for _, h := range resp.Context {
		answer.Citations = append(answer.Citations, h.toHit())
	}
	return answer, nil
}

// Random returns a random rik with the default fields.
func (c *Client) Random(ctx context.Context) (corpus.SearchHit, error) {
	return c.single(ctx, "/random")
}

// DailyVerse returns the rik of the day.
func (c *Client) DailyVerse(ctx context.Context) (corpus.SearchHit, error) {
	return c.single(ctx, "/daily-verse")
}

func (c *Client) single(ctx context.Context, path string) (corpus.SearchHit, error) {
	params := url.Values{}
	for _, f := range corpus.AllFields {
		params.Add("fields", string(f))
	}
	var hit searchHit
	if err := c.getJSON(ctx, path, params, &hit); err != nil {
		return corpus.SearchHit{}, err
	}
	return hit.toHit(), nil
}

// ExportPDF streams the generated document for a sukta into w.
func (c *Client) ExportPDF(ctx context.Context, hymn corpus.HymnRef, opts corpus.ExportOptions, w io.Writer) (int64, error) {
	params := url.Values{}
	params.Set("include_padapatha", strconv.FormatBool(opts.Padapatha))
	params.Set("include_transliteration", strconv.FormatBool(opts.Transliteration))
	params.Set("include_translation", strconv.FormatBool(opts.Translation))

	resp, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/export_pdf/%d/%d", hymn.Mandala, hymn.Sukta), params)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	// the API reports export failures as a JSON body with status 200
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		var body struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return 0, fmt.Errorf("%w: decode export response: %v", corpus.ErrNetwork, err)
		}
		return 0, fmt.Errorf("%w: export %s: %s", corpus.ErrNetwork, hymn, body.Error)
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("%w: read export: %v", corpus.ErrNetwork, err)
	}
	return n, nil
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	return c.doJSON(ctx, http.MethodGet, path, params, out)
}

func (c *Client) doJSON(ctx context.Context, method, path string, params url.Values, out any) error {
	resp, err := c.do(ctx, method, path, params)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", corpus.ErrNetwork, path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values) (*http.Response, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if err := c.authorize(req); err != nil {
		return nil, err
	}

	start := c.now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return nil, fmt.Errorf("%w: %s %s: %w", corpus.ErrNetwork, method, path, err)
	}
	c.logger.Debug("request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", c.now().Sub(start)))

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		detail := apiDetail(body)
		if resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %w: %s %s: %s", corpus.ErrNetwork, corpus.ErrNotFound, method, path, detail)
		}
		return nil, fmt.Errorf("%w: %s %s: %s - %s", corpus.ErrNetwork, method, path, resp.Status, detail)
	}
	return resp, nil
}

// authorize attaches the bearer token, refusing JWTs that have already
// expired. Opaque tokens are sent as-is.
func (c *Client) authorize(req *http.Request) error {
	if c.token == "" {
		return nil
	}

	tok, _, err := jwt.NewParser().ParseUnverified(c.token, jwt.MapClaims{})
	if err == nil {
		exp, err := tok.Claims.GetExpirationTime()
		if err == nil && exp != nil && exp.Before(c.now()) {
			return fmt.Errorf("%w at %s", ErrTokenExpired, exp.Format(time.RFC3339))
		}
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	return nil
}

// apiDetail extracts FastAPI's {"detail": ...} message, falling back to the raw body.
func apiDetail(body []byte) string {
	var payload struct {
		Detail any `json:"detail"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Detail != nil {
		if s, ok := payload.Detail.(string); ok {
			return s
		}
		b, _ := json.Marshal(payload.Detail)
		return string(b)
	}
	return strings.TrimSpace(string(body))
}
