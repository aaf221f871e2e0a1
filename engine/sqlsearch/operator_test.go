package sqlsearch

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Alp4ka/searchpager"
)

func Test_Operator_Valid_And_ForSort(t *testing.T) {
	tests := []struct {
		name  string
		in    Operator
		valid bool
		sort  searchpager.SortDirection
	}{
		{"GT valid maps to asc", OperatorGT, true, searchpager.SortAsc},
		{"LT valid maps to desc", OperatorLT, true, searchpager.SortDesc},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.in.Valid())
			assert.Equal(t, tt.sort, tt.in.ForSort())
			assert.Equal(t, tt.in, operatorFor(tt.sort))
		})
	}

	assert.False(t, operatorEq.Valid())
	assert.Panics(t, func() { operatorEq.ForSort() })
	assert.Panics(t, func() { operatorFor("sideways") })
}
