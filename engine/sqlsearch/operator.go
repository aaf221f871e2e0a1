package sqlsearch

import (
	"fmt"

	"github.com/Alp4ka/searchpager"
)

// Operator is a comparison operator used in keyset conditions.
type Operator string

const (
	OperatorGT Operator = ">"
	OperatorLT Operator = "<"

	// operatorEq is private: it only appears in the equality prefix of a
	// keyset disjunct.
	operatorEq Operator = "="
)

func (o Operator) Valid() bool {
	return o == OperatorGT || o == OperatorLT
}

// ForSort maps an operator to the sort direction it continues.
func (o Operator) ForSort() searchpager.SortDirection {
	switch o {
	case OperatorGT:
		return searchpager.SortAsc
	case OperatorLT:
		return searchpager.SortDesc
	default:
		panic(fmt.Errorf("cannot map operator '%s' to sort direction", o))
	}
}

// operatorFor returns the operator that selects rows after a value in the
// given direction.
func operatorFor(d searchpager.SortDirection) Operator {
	switch d {
	case searchpager.SortAsc:
		return OperatorGT
	case searchpager.SortDesc:
		return OperatorLT
	default:
		panic(fmt.Errorf("cannot map sort direction '%s' to operator", d))
	}
}
