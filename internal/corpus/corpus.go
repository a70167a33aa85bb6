// Package corpus holds the Rigveda domain types shared by the client, the
// controllers and the UI.
package corpus

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

var (
	// ErrNetwork marks a rejected request or a non-success status from the API.
	ErrNetwork = errors.New("network error")

	// ErrEmptyInput marks a blank query or a missing selection.
	ErrEmptyInput = errors.New("empty input")

	// ErrNotFound marks a reference the API does not know.
	ErrNotFound = errors.New("not found")
)

// Field is a searchable/returnable part of a rik.
type Field string

const (
	FieldDevanagari      Field = "devanagari"
	FieldTransliteration Field = "transliteration"
	FieldTranslation     Field = "translation"
	FieldDeity           Field = "deity"
)

// AllFields lists fields in display order.
var AllFields = []Field{FieldDevanagari, FieldTransliteration, FieldTranslation, FieldDeity}

// ParseFields accepts a comma separated list and drops unknown names.
func ParseFields(s string) []Field {
	var fields []Field
	for _, part := range strings.Split(s, ",") {
		f := Field(strings.ToLower(strings.TrimSpace(part)))
		for _, known := range AllFields {
			if f == known {
				fields = append(fields, f)
				break
			}
		}
	}
	return fields
}

// HymnRef addresses a sukta within a mandala.
type HymnRef struct {
	Mandala int `json:"mandala"`
	Sukta   int `json:"sukta"`
}

func (h HymnRef) String() string {
	return fmt.Sprintf("Mandala %d, Sukta %d", h.Mandala, h.Sukta)
}

// Reference is the three-level address of a rik.
type Reference struct {
	Mandala int `json:"mandala"`
	Sukta   int `json:"sukta"`
	Rik     int `json:"rik_number"`
}

// Hymn returns the enclosing sukta.
func (r Reference) Hymn() HymnRef {
	return HymnRef{Mandala: r.Mandala, Sukta: r.Sukta}
}

func (r Reference) String() string {
	return fmt.Sprintf("%d.%d.%d", r.Mandala, r.Sukta, r.Rik)
}

// Valid reports whether every level is addressed.
func (r Reference) Valid() bool {
	return r.Mandala > 0 && r.Sukta > 0 && r.Rik > 0
}

// Verse is the full content of one rik.
type Verse struct {
	Ref             Reference `json:"ref"`
	Samhita         string    `json:"samhita"`
	Padapatha       string    `json:"padapatha"`
	Transliteration string    `json:"transliteration"`
	Translation     string    `json:"translation"`
	Deity           string    `json:"deity,omitempty"`
}

// PlainText renders the rik with a heading and one block per present text.
func (v Verse) PlainText() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Rigveda %s\n", v.Ref)
	if v.Deity != "" {
		fmt.Fprintf(&b, "Deity: %s\n", v.Deity)
	}
	for _, s := range []struct{ title, text string }{
		{"Samhita", v.Samhita},
		{"Padapatha", v.Padapatha},
		{"Transliteration", v.Transliteration},
		{"Translation", v.Translation},
	} {
		if s.text != "" {
			fmt.Fprintf(&b, "\n%s:\n%s\n", s.title, s.text)
		}
	}
	return b.String()
}

// HymnView is a sukta prepared for playback.
type HymnView struct {
	Ref      HymnRef `json:"ref"`
	AudioURL string  `json:"audio_url"`
	Riks     []Verse `json:"riks"`
}

// SearchQuery describes one page request to the search endpoint.
type SearchQuery struct {
	Query         string
	Fields        []Field
	Page          int
	PageSize      int
	MinSimilarity float64
}

// SearchHit is one result summary. Only requested fields are populated.
type SearchHit struct {
	Ref             Reference `json:"ref"`
	Similarity      float64   `json:"similarity_score"`
	Devanagari      string    `json:"devanagari,omitempty"`
	Transliteration string    `json:"transliteration,omitempty"`
	Translation     string    `json:"translation,omitempty"`
	Deity           string    `json:"deity,omitempty"`
}

// Summary picks the most readable populated field.
func (h SearchHit) Summary() string {
	switch {
	case h.Translation != "":
		return h.Translation
	case h.Transliteration != "":
		return h.Transliteration
	case h.Devanagari != "":
		return h.Devanagari
	}
	return h.Deity
}

// SearchPage is one page of results plus the remote pagination metadata.
// TotalPages is zero when the endpoint omitted it.
type SearchPage struct {
	Query        string      `json:"query"`
	Page         int         `json:"page"`
	PageSize     int         `json:"page_size"`
	TotalResults int         `json:"total_results"`
	TotalPages   int         `json:"total_pages,omitempty"`
	Hits         []SearchHit `json:"results"`
}

// PageCount returns ceil(total/size), and 1 for an empty result set.
func PageCount(total, size int) int {
	if total <= 0 || size <= 0 {
		return 1
	}
	return (total + size - 1) / size
}

// Question is a free-text query for the assistant.
type Question struct {
	Query      string
	MaxResults int
	Fields     []Field
}

// Answer is generated text plus the verses it cites.
type Answer struct {
	Query     string      `json:"query"`
	Text      string      `json:"answer"`
	Citations []SearchHit `json:"context"`
}

// ExportOptions toggles optional sections of an exported document.
type ExportOptions struct {
	Padapatha       bool
	Transliteration bool
	Translation     bool
}

// DefaultExportOptions includes every section.
func DefaultExportOptions() ExportOptions {
	return ExportOptions{Padapatha: true, Transliteration: true, Translation: true}
}

// ParseOrdinal extracts the number from labels such as "Mandala 10".
func ParseOrdinal(label string) (int, error) {
	fields := strings.Fields(label)
	if len(fields) == 0 {
		return 0, fmt.Errorf("empty label: %w", ErrEmptyInput)
	}
	n, err := strconv.Atoi(fields[len(fields)-1])
	if err != nil {
		return 0, fmt.Errorf("label %q has no number: %w", label, err)
	}
	return n, nil
}

// SortOrdinals converts labels to their numbers in ascending order,
// skipping anything unparsable.
func SortOrdinals(labels []string) []int {
	numbers := make([]int, 0, len(labels))
	for _, label := range labels {
		if n, err := ParseOrdinal(label); err == nil {
			numbers = append(numbers, n)
		}
	}
	sort.Ints(numbers)
	return numbers
}
