package searchpager

const (
	DefaultPerPage = 15
	MaxPerPage     = 100
)

// IsNormalizedPerPageMax clamps perPage to [1, maxPerPage], substituting
// DefaultPerPage for non-positive values. The bool reports whether perPage
// was already valid.
func IsNormalizedPerPageMax(perPage int, maxPerPage int) (int, bool) {
	if perPage <= 0 {
		return min(DefaultPerPage, maxPerPage), false
	} else if perPage > maxPerPage {
		return maxPerPage, false
	}

	return perPage, true
}

func NormalizePerPageMax(perPage int, maxPerPage int) int {
	ret, _ := IsNormalizedPerPageMax(perPage, maxPerPage)
	return ret
}

func NormalizePerPage(perPage int) int {
	return NormalizePerPageMax(perPage, MaxPerPage)
}
