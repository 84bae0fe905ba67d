// file: internal/metadata/merge_test.go
// version: 1.0.0
// guid: 7e980eeb-7604-4136-97f1-0063e8327746

package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNumbersInString(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"Dune", 0},
		{"Dune 2", 1},
		{"One Piece, Vol. 12", 2},
		{"Vol 1.5 - Part 3", 2},
		{"", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, numbersInString(tt.in), tt.in)
	}
}

func TestMerge_TitleWithMoreNumbersWins(t *testing.T) {
	got := Merge(VolumeInfo{Title: "Dune"}, VolumeInfo{Title: "Dune 2"})
	assert.Equal(t, "Dune 2", got.Title)

	got = Merge(VolumeInfo{Title: "Dune 2"}, VolumeInfo{Title: "Dune"})
	assert.Equal(t, "Dune 2", got.Title)
}

func TestMerge_TitleTieKeepsAccumulated(t *testing.T) {
	got := Merge(VolumeInfo{Title: "Saga 1"}, VolumeInfo{Title: "Saga Volume 1"})
	assert.Equal(t, "Saga 1", got.Title)
}

func TestMerge_EmptyAccumulatorAdoptsTitle(t *testing.T) {
	got := Merge(VolumeInfo{}, VolumeInfo{Title: "Dune"})
	assert.Equal(t, "Dune", got.Title)

	got = Merge(VolumeInfo{Title: "Dune"}, VolumeInfo{})
	assert.Equal(t, "Dune", got.Title)
}

func TestMerge_FalsyValuesNeverOverwrite(t *testing.T) {
	acc := VolumeInfo{
		PageCount:   412,
		Description: "A desert planet.",
		Authors:     []string{"Frank Herbert"},
		Incomplete:  true,
	}
	got := Merge(acc, VolumeInfo{PageCount: 0, Description: "", Authors: []string{}})
	assert.Equal(t, 412, got.PageCount)
	assert.Equal(t, "A desert planet.", got.Description)
	assert.Equal(t, []string{"Frank Herbert"}, got.Authors)
	assert.True(t, got.Incomplete)
}

func TestMerge_DefinedValuesFillGaps(t *testing.T) {
	acc := VolumeInfo{Title: "Dune", Publisher: "Chilton"}
	got := Merge(acc, VolumeInfo{Description: "...", Language: "en", PrintedPageCount: 896})
	assert.Equal(t, "...", got.Description)
	assert.Equal(t, "en", got.Language)
	assert.Equal(t, 896, got.PrintedPageCount)
	assert.Equal(t, "Chilton", got.Publisher)
}

func TestMerge_DefinedValuesOverwrite(t *testing.T) {
	acc := VolumeInfo{Publisher: "Chilton", Authors: []string{"F. Herbert"}}
	got := Merge(acc, VolumeInfo{Publisher: "Ace", Authors: []string{"Frank Herbert"}})
	assert.Equal(t, "Ace", got.Publisher)
	assert.Equal(t, []string{"Frank Herbert"}, got.Authors)
}

func TestMerge_DoesNotAliasInputs(t *testing.T) {
	in := VolumeInfo{Authors: []string{"A"}}
	got := Merge(VolumeInfo{}, in)
	got.Authors[0] = "B"
	assert.Equal(t, "A", in.Authors[0])
}
