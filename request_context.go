package searchpager

import (
	"net/http"
	"net/url"
)

// RequestContext supplies the current path and query string. Cursor mode
// reads the inbound token from it; pages build their navigation URLs from it.
type RequestContext interface {
	Path() string
	Query() url.Values
}

// HTTPRequestContext adapts an *http.Request.
type HTTPRequestContext struct {
	r *http.Request
}

func NewHTTPRequestContext(r *http.Request) HTTPRequestContext {
	return HTTPRequestContext{r: r}
}

func (c HTTPRequestContext) Path() string {
	if c.r == nil || c.r.URL == nil {
		return "/"
	}

	return c.r.URL.Path
}

func (c HTTPRequestContext) Query() url.Values {
	if c.r == nil || c.r.URL == nil {
		return url.Values{}
	}

	return c.r.URL.Query()
}

// StaticRequestContext is a fixed path and query, handy outside HTTP handlers.
type StaticRequestContext struct {
	URLPath string
	Params  url.Values
}

func (c StaticRequestContext) Path() string {
	if c.URLPath == "" {
		return "/"
	}

	return c.URLPath
}

func (c StaticRequestContext) Query() url.Values {
	ret := make(url.Values, len(c.Params))
	for k, v := range c.Params {
		ret[k] = append([]string(nil), v...)
	}

	return ret
}

var (
	_ RequestContext = HTTPRequestContext{}
	_ RequestContext = StaticRequestContext{}
)
