package searchpager

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
)

const DefaultPageParam = "page"

// OffsetPage is a classic numbered page.
type OffsetPage struct {
	Items       []*Entity `json:"data"`
	Total       int64     `json:"total"`
	PerPage     int       `json:"per_page"`
	CurrentPage int       `json:"current_page"`
	LastPage    int       `json:"last_page"`
	NextPageURL string    `json:"next_page_url,omitempty"`
	PrevPageURL string    `json:"prev_page_url,omitempty"`
	// From and To are 1-based positions of the first and last item, zero on
	// an empty page.
	From int `json:"from,omitempty"`
	To   int `json:"to,omitempty"`
}

// PageState is the position of a cursor page in the result set.
type PageState int

const (
	PageFirst PageState = iota
	PageMiddle
	PageLast
)

func (s PageState) String() string {
	switch s {
	case PageFirst:
		return "first"
	case PageMiddle:
		return "middle"
	case PageLast:
		return "last"
	default:
		return fmt.Sprintf("PageState(%d)", int(s))
	}
}

func (s PageState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// CursorPage is a keyset page with navigation tokens.
type CursorPage struct {
	Items       []*Entity `json:"data"`
	PerPage     int       `json:"per_page"`
	State       PageState `json:"state"`
	NextCursor  string    `json:"next_cursor,omitempty"`
	PrevCursor  string    `json:"prev_cursor,omitempty"`
	NextPageURL string    `json:"next_page_url,omitempty"`
	PrevPageURL string    `json:"prev_page_url,omitempty"`
}

// OffsetPage renders the collection as page number `page` of `perPage`
// items. Pages below 1 are treated as 1.
func (c *ResultCollection) OffsetPage(page, perPage int) OffsetPage {
	if perPage <= 0 {
		perPage = NormalizePerPage(c.PerPage())
	}
	page = max(page, 1)

	total := c.TotalHits()
	lastPage := max(int(math.Ceil(float64(total)/float64(perPage))), 1)

	ret := OffsetPage{
		Items:       c.Items(),
		Total:       total,
		PerPage:     perPage,
		CurrentPage: page,
		LastPage:    lastPage,
	}

	if n := len(ret.Items); n > 0 {
		ret.From = (page-1)*perPage + 1
		ret.To = ret.From + n - 1
	}

	if page < lastPage {
		ret.NextPageURL = c.pageURL(page + 1)
	}
	if page > 1 {
		ret.PrevPageURL = c.pageURL(page - 1)
	}

	return ret
}

// pageURL merges the page number into the current query. Page 1 drops the
// parameter altogether.
func (c *ResultCollection) pageURL(page int) string {
	param := c.pageParamOrDefault()
	query := c.currentQuery()

	if page <= 1 {
		query.Del(param)
	} else {
		query.Set(param, strconv.Itoa(page))
	}

	return buildURL(c.basePath(), query)
}

// CursorPage renders the collection as a keyset page.
//
// The next token encodes the last item's sort tuple walking forward; the
// previous token encodes the first item's tuple walking backward. There is no
// next token on the last page and no previous token on the first one.
func (c *ResultCollection) CursorPage() (CursorPage, error) {
	ret := CursorPage{
		Items:   c.Items(),
		PerPage: c.PerPage(),
		State:   c.PageState(),
	}

	if len(ret.Items) == 0 {
		return ret, nil
	}

	if len(c.sort) == 0 {
		return CursorPage{}, fmt.Errorf("%w: cursor page without sort", ErrConfiguration)
	}

	if c.hasNextCursor() {
		next, err := c.cursorForItem(ret.Items[len(ret.Items)-1], Forward)
		if err != nil {
			return CursorPage{}, err
		}
		ret.NextCursor = next.String()
		ret.NextPageURL = c.cursorURL(ret.NextCursor)
	}

	if c.hasPrevCursor() {
		prev, err := c.cursorForItem(ret.Items[0], Backward)
		if err != nil {
			return CursorPage{}, err
		}
		ret.PrevCursor = prev.String()
		ret.PrevPageURL = c.cursorURL(ret.PrevCursor)
	}

	return ret, nil
}

// PageState derives the page position from the inbound cursor and the
// overfetch sentinel alone.
func (c *ResultCollection) PageState() PageState {
	cursor := c.Cursor()
	hasMore := c.HasMore()

	switch {
	case cursor.IsEmpty():
		return PageFirst
	case cursor.PointsToNext() && !hasMore:
		return PageLast
	case cursor.PointsToPrevious() && !hasMore:
		return PageFirst
	default:
		return PageMiddle
	}
}

// hasNextCursor: walking forward (or from the start) a next page exists only
// if the sentinel was seen; walking backward we came from a later page.
func (c *ResultCollection) hasNextCursor() bool {
	return c.Cursor().PointsToPrevious() || c.HasMore()
}

// hasPrevCursor: the first request has no previous page; walking backward a
// previous page exists only if the sentinel was seen.
func (c *ResultCollection) hasPrevCursor() bool {
	cursor := c.Cursor()
	if cursor.IsEmpty() {
		return false
	}

	return cursor.PointsToNext() || c.HasMore()
}

func (c *ResultCollection) cursorForItem(e *Entity, t Traversal) (*Cursor, error) {
	values := e.SortValues()
	if len(values) < len(c.sort) {
		return nil, fmt.Errorf(
			"%w: entity '%v' has %d sort values, sort has %d fields",
			ErrMissingSortValues, e.ID(), len(values), len(c.sort),
		)
	}

	return NewCursor(values[:len(c.sort)], t)
}

func (c *ResultCollection) cursorURL(token string) string {
	query := c.currentQuery()
	query.Set(cursorParamOrDefault(c.cursorParam), token)

	return buildURL(c.basePath(), query)
}

func (c *ResultCollection) currentQuery() url.Values {
	ret := make(url.Values, len(c.query))
	for k, v := range c.query {
		ret[k] = append([]string(nil), v...)
	}

	return ret
}

func (c *ResultCollection) basePath() string {
	if c.path == "" || c.path == "/" {
		return "/"
	}

	return strings.TrimRight(c.path, "/")
}

func (c *ResultCollection) pageParamOrDefault() string {
	if c.pageParam == "" {
		return DefaultPageParam
	}

	return c.pageParam
}

func buildURL(path string, query url.Values) string {
	if len(query) == 0 {
		return path
	}

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}

	return path + sep + query.Encode()
}
