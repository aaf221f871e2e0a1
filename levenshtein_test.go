package searchpager

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_levenshtein(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want int
	}{
		{"same alias", "created_at", "created_at", 0},
		{"missing underscore", "createdat", "created_at", 1},
		{"kitten sitting", "kitten", "sitting", 3},
		{"empty left", "", "score", 5},
		{"empty right", "score", "", 5},
		{"swapped letters", "nmae", "name", 2},
		{"runes not bytes", "prïce", "price", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, levenshtein([]rune(tt.a), []rune(tt.b)))
			assert.Equal(t, tt.want, levenshtein([]rune(tt.b), []rune(tt.a)), "distance is symmetric")
		})
	}
}

func Test_min3(t *testing.T) {
	for _, in := range [][3]int{{3, 2, 1}, {1, 3, 2}, {2, 1, 3}, {1, 1, 1}} {
		assert.Equal(t, 1, min3(in[0], in[1], in[2]))
	}
}
