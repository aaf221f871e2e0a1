package searchpager

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_SortDirection_Valid_And_Flip(t *testing.T) {
	tests := []struct {
		name    string
		in      SortDirection
		valid   bool
		flipped SortDirection
	}{
		{"asc flips to desc", SortAsc, true, SortDesc},
		{"desc flips to asc", SortDesc, true, SortAsc},
	}
	for _, tt := range tests {
		if got := tt.in.Valid(); got != tt.valid {
			t.Errorf("%s: Valid=%v want %v", tt.name, got, tt.valid)
		}
		if got := tt.in.Flip(); got != tt.flipped {
			t.Errorf("%s: Flip=%v want %v", tt.name, got, tt.flipped)
		}
	}

	assert.False(t, SortDirection("sideways").Valid())
	assert.Panics(t, func() { SortDirection("sideways").Flip() })
}

func Test_SortSpec_Resolve(t *testing.T) {
	spec := SortSpec{{Field: "created_at", Order: SortDesc}, {Field: "id", Order: SortAsc}}

	assert.Equal(t, spec, spec.Resolve(Forward))
	assert.Equal(t,
		SortSpec{{Field: "created_at", Order: SortAsc}, {Field: "id", Order: SortDesc}},
		spec.Resolve(Backward),
	)
	assert.Equal(t, spec, spec.Resolve(Backward).Resolve(Backward))

	// Resolve never aliases the receiver.
	resolved := spec.Resolve(Forward)
	resolved[0].Order = SortAsc
	assert.Equal(t, SortDesc, spec[0].Order)

	assert.Nil(t, SortSpec(nil).Resolve(Backward))
}

func Test_SortSpec_validate(t *testing.T) {
	tests := []struct {
		name string
		spec SortSpec
		ok   bool
	}{
		{"empty returns error", SortSpec{}, false},
		{"invalid direction", SortSpec{{Field: "id", Order: "bad"}}, false},
		{"empty field", SortSpec{{Field: "", Order: SortAsc}}, false},
		{"forbidden symbols", SortSpec{{Field: "id; drop", Order: SortAsc}}, false},
		{"duplicate field", SortSpec{{Field: "id", Order: SortAsc}, {Field: "id", Order: SortDesc}}, false},
		{"valid list", SortSpec{{Field: "name.keyword", Order: SortAsc}, {Field: "id", Order: SortAsc}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.validate()
			if tt.ok {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrConfiguration)
		})
	}
}

func Test_SortSpec_ToBody(t *testing.T) {
	spec := SortSpec{{Field: "created_at", Order: SortDesc}, {Field: "id", Order: SortAsc}}

	assert.Equal(t, []map[string]any{
		{"created_at": map[string]any{"order": "desc"}},
		{"id": map[string]any{"order": "asc"}},
	}, spec.ToBody())
	assert.Equal(t, []string{"created_at", "id"}, spec.Fields())
	assert.Equal(t, "created_at desc, id asc", spec.String())
}

func Test_ParseSort(t *testing.T) {
	mapping := FieldMapping{
		"id":    "id",
		"name":  "name.keyword",
		"title": "name.keyword",
	}

	tests := []struct {
		name  string
		in    []string
		ok    bool
		first SortField
	}{
		{"bare field sorts ascending", []string{"id"}, true, SortField{Field: "id", Order: SortAsc}},
		{"too many parts", []string{"id asc now"}, false, SortField{}},
		{"unknown alias", []string{"idx asc"}, false, SortField{}},
		{"bad direction", []string{"id up"}, false, SortField{}},
		{"same field twice", []string{"id asc", "id desc"}, false, SortField{}},
		{"two aliases of one field", []string{"name", "title desc"}, false, SortField{}},
		{"valid asc", []string{"id asc"}, true, SortField{Field: "id", Order: SortAsc}},
		{"valid desc upper case", []string{"name DESC"}, true, SortField{Field: "name.keyword", Order: SortDesc}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSort(tt.in, mapping)
			if (err == nil) != tt.ok {
				t.Errorf("%s: ok=%v err=%v", tt.name, tt.ok, err)
				return
			}
			if tt.ok {
				if len(got) == 0 || got[0] != tt.first {
					t.Errorf("%s: first=%v want %v", tt.name, got, tt.first)
				}
			}
		})
	}
}

func Test_ParseSort_closestInError(t *testing.T) {
	_, err := ParseSort([]string{"nme"}, FieldMapping{"id": "id", "name": "name"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "closest: 'name'")
}

func Test_ParseSortSpec(t *testing.T) {
	spec, err := ParseSortSpec("price desc", "id")
	require.NoError(t, err)
	assert.Equal(t, SortSpec{{Field: "price", Order: SortDesc}, {Field: "id", Order: SortAsc}}, spec)
}

func Test_closestAlias(t *testing.T) {
	aliases := []FieldAlias{"id", "name", "created_at"}
	tests := []struct {
		name string
		in   FieldAlias
		out  FieldAlias
	}{
		{"closest to id", "idx", "id"},
		{"closest to name", "nme", "name"},
		{"closest to created_at", "createdat", "created_at"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := closestAlias(tt.in, aliases); got != tt.out {
				t.Errorf("%s: got %s want %s", tt.name, got, tt.out)
			}
		})
	}
}
