package api

import (
	"encoding/json"

	"rigveda-go/internal/corpus"
)

type textBlock struct {
	Text string `json:"text"`
}

// rikDetail mirrors a rik record of the corpus JSON.
type rikDetail struct {
	RikNumber int `json:"rik_number"`
	Samhita   struct {
		Devanagari textBlock `json:"devanagari"`
	} `json:"samhita"`
	Padapatha struct {
		Devanagari      textBlock `json:"devanagari"`
		Transliteration textBlock `json:"transliteration"`
	} `json:"padapatha"`
	Translation flexText `json:"translation"`
	Deity       flexText `json:"deity"`
}

func (r rikDetail) toVerse(hymn corpus.HymnRef) corpus.Verse {
	return corpus.Verse{
		Ref:             corpus.Reference{Mandala: hymn.Mandala, Sukta: hymn.Sukta, Rik: r.RikNumber},
		Samhita:         r.Samhita.Devanagari.Text,
		Padapatha:       r.Padapatha.Devanagari.Text,
		Transliteration: r.Padapatha.Transliteration.Text,
		Translation:     string(r.Translation),
		Deity:           string(r.Deity),
	}
}

type searchHit struct {
	Mandala         int      `json:"mandala"`
	Sukta           int      `json:"sukta"`
	RikNumber       int      `json:"rik_number"`
	Similarity      float64  `json:"similarity_score"`
	Devanagari      flexText `json:"devanagari"`
	Transliteration flexText `json:"transliteration"`
	Translation     flexText `json:"translation"`
	Deity           flexText `json:"deity"`
}

func (h searchHit) toHit() corpus.SearchHit {
	return corpus.SearchHit{
		Ref:             corpus.Reference{Mandala: h.Mandala, Sukta: h.Sukta, Rik: h.RikNumber},
		Similarity:      h.Similarity,
		Devanagari:      string(h.Devanagari),
		Transliteration: string(h.Transliteration),
		Translation:     string(h.Translation),
		Deity:           string(h.Deity),
	}
}

type searchResponse struct {
	Query        string      `json:"query"`
	Page         int         `json:"page"`
	PageSize     int         `json:"page_size"`
	TotalResults int         `json:"total_results"`
	TotalPages   int         `json:"total_pages"`
	Results      []searchHit `json:"results"`
}

type viewResponse struct {
	Mandala  int    `json:"mandala"`
	Sukta    int    `json:"sukta"`
	AudioURL string `json:"audio_url"`
	Riks     []struct {
		RikNumber           int      `json:"rik_number"`
		SamhitaDevanagari   string   `json:"samhita_devanagari"`
		PadapathaDevanagari string   `json:"padapatha_devanagari"`
		Transliteration     string   `json:"transliteration"`
		Translation         flexText `json:"translation"`
	} `json:"riks"`
}

// flexText decodes a string and treats any other JSON value (the corpus
// uses {} for a missing translation) as empty.
type flexText string

func (f *flexText) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		*f = ""
		return nil
	}
	*f = flexText(s)
	return nil
}
