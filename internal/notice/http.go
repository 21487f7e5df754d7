package notice

import (
	"net"
	"net/http"
)

// HTTPContext carries the request that was being served when the error
// happened.
type HTTPContext struct {
	URL       string
	Method    string
	UserAgent string
	UserAddr  string
	Component string
	Action    string

	Params      map[string]any
	Session     map[string]any
	Environment map[string]any
}

// HTTPContextFromRequest extracts an HTTPContext from r. Query parameters
// become params; headers become environment entries.
func HTTPContextFromRequest(r *http.Request) HTTPContext {
	h := HTTPContext{
		Method:    r.Method,
		UserAgent: r.UserAgent(),
		UserAddr:  remoteHost(r.RemoteAddr),
	}
	if r.URL != nil {
		u := *r.URL
		if u.Host == "" {
			u.Host = r.Host
		}
		if u.Scheme == "" {
			u.Scheme = "http"
			if r.TLS != nil {
				u.Scheme = "https"
			}
		}
		u.RawQuery = ""
		h.URL = u.String()

		if q := r.URL.Query(); len(q) > 0 {
			h.Params = make(map[string]any, len(q))
			for k, v := range q {
				h.Params[k] = flatten(v)
			}
		}
	}
	if len(r.Header) > 0 {
		h.Environment = make(map[string]any, len(r.Header))
		for k, v := range r.Header {
			h.Environment[k] = flatten(v)
		}
	}
	return h
}

func flatten(v []string) any {
	if len(v) == 1 {
		return v[0]
	}
	return v
}

func remoteHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
