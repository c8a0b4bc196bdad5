package fuzzer

import (
	"net/http"
	"sort"
	"strings"
)

// Session holds the configured headers, cookies and credentials added to
// every outgoing request. Values recorded in the base request always win
// over configured ones, so the probe only ever changes the mutated value.
type Session struct {
	headers   map[string]string
	cookies   map[string]string
	authType  string
	authToken string
	userAgent string
}

// NewSession creates a session from the HTTP settings
func NewSession(headers, cookies map[string]string, authHeader, userAgent string) *Session {
	s := &Session{
		headers:   make(map[string]string, len(headers)),
		cookies:   make(map[string]string, len(cookies)),
		userAgent: userAgent,
	}
	for k, v := range headers {
		s.headers[k] = v
	}
	for k, v := range cookies {
		s.cookies[k] = v
	}
	if authHeader != "" {
		s.parseAuthHeader(authHeader)
	}
	return s
}

// Apply fills the gaps of req with session state
func (s *Session) Apply(req *http.Request) {
	for key, value := range s.headers {
		if req.Header.Get(key) == "" {
			req.Header.Set(key, value)
		}
	}

	if s.authToken != "" && req.Header.Get("Authorization") == "" {
		switch s.authType {
		case "bearer":
			req.Header.Set("Authorization", "Bearer "+s.authToken)
		case "basic":
			req.Header.Set("Authorization", "Basic "+s.authToken)
		default:
			req.Header.Set("Authorization", s.authToken)
		}
	}

	if len(s.cookies) > 0 {
		present := make(map[string]bool)
		for _, c := range req.Cookies() {
			present[c.Name] = true
		}
		names := make([]string, 0, len(s.cookies))
		for name := range s.cookies {
			if !present[name] {
				names = append(names, name)
			}
		}
		sort.Strings(names)
		for _, name := range names {
			req.AddCookie(&http.Cookie{Name: name, Value: s.cookies[name]})
		}
	}

	if s.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
}

// parseAuthHeader accepts "Authorization: Bearer xxx", "Bearer xxx" or a
// raw token
func (s *Session) parseAuthHeader(header string) {
	header = strings.TrimPrefix(header, "Authorization:")
	header = strings.TrimSpace(header)

	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 {
		s.authType = strings.ToLower(parts[0])
		s.authToken = parts[1]
	} else {
		s.authToken = header
	}
}
