package searchpager

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Mode selects the pagination flavour of a search.
type Mode string

const (
	ModeOffset Mode = "offset"
	ModeCursor Mode = "cursor"
)

const DefaultCursorParam = "cursor"

func (m Mode) Valid() bool {
	return m == ModeOffset || m == ModeCursor
}

// ParseMode accepts "offset" (also "", "base", "page") and "cursor".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "offset", "base", "page":
		return ModeOffset, nil
	case "cursor":
		return ModeCursor, nil
	default:
		return "", fmt.Errorf("%w: unknown pagination mode '%s'", ErrConfiguration, s)
	}
}

// QueryParams is what a caller asks for.
type QueryParams struct {
	Query        map[string]any
	Aggregations map[string]any
	SourceFields []string
	Limit        int
	Offset       int
	Sort         SortSpec
	Mode         Mode
	// CursorToken overrides the token read from the request context.
	CursorToken string
	// CursorParam is the query parameter the token is read from.
	CursorParam string
}

// Request is the outbound search request.
type Request struct {
	Index        string
	Query        map[string]any
	Aggregations map[string]any
	SourceFields []string
	Size         int
	// From is nil when the request must not carry an offset.
	From        *int
	Sort        SortSpec
	SearchAfter []any
	// Extra holds raw body keys for custom searches. Typed fields win on
	// conflict.
	Extra map[string]any
}

// Body renders the request body in the engine's JSON DSL.
func (r *Request) Body() map[string]any {
	body := maps.Clone(r.Extra)
	if body == nil {
		body = make(map[string]any)
	}

	body["size"] = r.Size
	if r.From != nil {
		body["from"] = *r.From
	}
	if len(r.Query) > 0 {
		body["query"] = r.Query
	}
	if len(r.Aggregations) > 0 {
		body["aggs"] = r.Aggregations
	}
	if len(r.SourceFields) > 0 {
		body["_source"] = map[string]any{"includes": slices.Clone(r.SourceFields)}
	}
	if len(r.Sort) > 0 {
		body["sort"] = r.Sort.ToBody()
	}
	if len(r.SearchAfter) > 0 {
		body["search_after"] = slices.Clone(r.SearchAfter)
	}

	return body
}

// Assemble builds the outbound request and returns the inbound cursor it was
// positioned with (nil on the first page or in offset mode).
//
// Cursor mode fetches limit+1 documents, never sets from, and flips the sort
// when the cursor walks backward. The token comes from params.CursorToken or,
// when that is empty, from the request context.
func Assemble(params QueryParams, rc RequestContext) (*Request, *Cursor, error) {
	if params.Limit <= 0 {
		return nil, nil, fmt.Errorf("%w: limit must be positive, got %d", ErrConfiguration, params.Limit)
	}

	req := &Request{
		Query:        params.Query,
		Aggregations: params.Aggregations,
		SourceFields: params.SourceFields,
		Sort:         params.Sort.Clone(),
	}

	switch params.Mode {
	case ModeOffset, "":
		if len(params.Sort) > 0 {
			if err := params.Sort.validate(); err != nil {
				return nil, nil, err
			}
		}

		req.Size = params.Limit
		if params.Offset > 0 {
			from := params.Offset
			req.From = &from
		}

		return req, nil, nil
	case ModeCursor:
		if err := params.Sort.validate(); err != nil {
			return nil, nil, fmt.Errorf("cursor pagination requires a sort: %w", err)
		}

		token := params.CursorToken
		if token == "" && rc != nil {
			token = rc.Query().Get(cursorParamOrDefault(params.CursorParam))
		}

		cursor, err := DecodeCursor(token)
		if err != nil {
			return nil, nil, err
		}
		if err = cursor.validate(params.Sort); err != nil {
			return nil, nil, err
		}

		req.Sort = params.Sort.Resolve(cursor.Traversal())
		if cursor != nil {
			req.SearchAfter = cursor.Values()
		}
		req.Size = params.Limit + 1

		return req, cursor, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown pagination mode '%s'", ErrConfiguration, params.Mode)
	}
}

func cursorParamOrDefault(name string) string {
	if name == "" {
		return DefaultCursorParam
	}

	return name
}
