package corpus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageCount(t *testing.T) {
	tests := []struct {
		total, size, want int
	}{
		{23, 10, 3},
		{20, 10, 2},
		{1, 10, 1},
		{0, 10, 1},
		{23, 50, 1},
		{5, 0, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PageCount(tt.total, tt.size), "PageCount(%d, %d)", tt.total, tt.size)
	}
}

func TestParseFields(t *testing.T) {
	assert.Equal(t,
		[]Field{FieldTranslation, FieldDevanagari},
		ParseFields(" Translation,devanagari, bogus"))
	assert.Empty(t, ParseFields(""))
}

func TestSortOrdinals(t *testing.T) {
	got := SortOrdinals([]string{"Mandala 10", "Mandala 2", "Mandala 1", "Preface"})
	assert.Equal(t, []int{1, 2, 10}, got)

	_, err := ParseOrdinal("")
	require.ErrorIs(t, err, ErrEmptyInput)
}

func TestVersePlainText(t *testing.T) {
	v := Verse{
		Ref:         Reference{Mandala: 1, Sukta: 1, Rik: 1},
		Samhita:     "अग्निमीळे पुरोहितं",
		Translation: "I praise Agni",
		Deity:       "Agni",
	}
	want := "Rigveda 1.1.1\nDeity: Agni\n\nSamhita:\nअग्निमीळे पुरोहितं\n\nTranslation:\nI praise Agni\n"
	assert.Equal(t, want, v.PlainText())
}

func TestSearchHitSummary(t *testing.T) {
	assert.Equal(t, "dawn", SearchHit{Translation: "dawn", Devanagari: "उषः"}.Summary())
	assert.Equal(t, "उषः", SearchHit{Devanagari: "उषः"}.Summary())
	assert.Equal(t, "Ushas", SearchHit{Deity: "Ushas"}.Summary())
}
