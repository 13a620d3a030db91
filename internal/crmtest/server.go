// Package crmtest provides an in-process fake of the remote object API for
// tests. It keeps objects in memory, assigns keys on save and answers in the
// same three response grammars as the real service.
package crmtest

import (
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	DefaultEmail    = "ops@example.org"
	DefaultPassword = "s3cret"
	DefaultToken    = "TESTSESSION"
)

// Field is one ordered name/value pair.
type Field struct {
	Name  string
	Value string
}

// Call records one request received by the server.
type Call struct {
	Path    string
	Query   string
	Session string
}

// SaveFunc decides the outcome of a save. Returning result "success" stores
// the fields under key.
type SaveFunc func(object string, fields []Field) (result, key string, messages []string)

// Server is the fake API. Use New to start one.
type Server struct {
	URL string

	srv *httptest.Server

	mu        sync.Mutex
	email     string
	password  string
	token     string
	schemas   map[string][]string
	objects   map[string]map[string][]Field
	nextKey   int
	calls     []Call
	save      SaveFunc
	overrides map[string]http.HandlerFunc
}

// Option configures a Server.
type Option func(*Server)

// WithSchema registers the describe answer for object.
func WithSchema(object string, fields ...string) Option {
	return func(s *Server) { s.schemas[object] = fields }
}

// WithObject preloads an object so delete and getObject can find it.
func WithObject(object, key string, fields ...Field) Option {
	return func(s *Server) { s.put(object, key, fields) }
}

// WithSave replaces the default save behaviour.
func WithSave(fn SaveFunc) Option {
	return func(s *Server) { s.save = fn }
}

// WithRawResponse makes path answer with status and body verbatim.
func WithRawResponse(path string, status int, body string) Option {
	return func(s *Server) {
		s.overrides[path] = func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(body))
		}
	}
}

// New starts a fake server and registers its shutdown with t.Cleanup.
func New(t testing.TB, opts ...Option) *Server {
	t.Helper()

	s := &Server{
		email:     DefaultEmail,
		password:  DefaultPassword,
		token:     DefaultToken,
		schemas:   make(map[string][]string),
		objects:   make(map[string]map[string][]Field),
		nextKey:   1000,
		overrides: make(map[string]http.HandlerFunc),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.srv = httptest.NewServer(s.routes())
	s.URL = s.srv.URL
	t.Cleanup(s.srv.Close)
	return s
}

// Close stops the server early, e.g. to provoke transport failures.
func (s *Server) Close() { s.srv.Close() }

// Calls returns a copy of the requests received so far.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallsTo returns the recorded requests for one path.
func (s *Server) CallsTo(path string) []Call {
	var out []Call
	for _, c := range s.Calls() {
		if c.Path == path {
			out = append(out, c)
		}
	}
	return out
}

// Object returns the stored fields of object/key.
func (s *Server) Object(object, key string) ([]Field, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.objects[object][key]
	return f, ok
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.record)

	r.Get("/api/authenticate.sjs", s.route("/api/authenticate.sjs", s.handleAuthenticate))

	r.Group(func(r chi.Router) {
		r.Use(s.requireSession)
		r.Get("/api/describe2.sjs", s.route("/api/describe2.sjs", s.handleDescribe))
		r.Get("/api/getObject.sjs", s.route("/api/getObject.sjs", s.handleGetObject))
		r.Get("/save", s.route("/save", s.handleSave))
		r.Get("/delete", s.route("/delete", s.handleDelete))
	})
	return r
}

func (s *Server) route(path string, fallback http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		h, ok := s.overrides[path]
		s.mu.Unlock()
		if ok {
			h(w, r)
			return
		}
		fallback(w, r)
	}
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := Call{Path: r.URL.Path, Query: r.URL.RawQuery}
		if ck, err := r.Cookie("JSESSIONID"); err == nil {
			c.Session = ck.Value
		}
		s.mu.Lock()
		s.calls = append(s.calls, c)
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ck, err := r.Cookie("JSESSIONID")
		if err != nil || ck.Value != s.token {
			http.Error(w, "not logged in", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleAuthenticate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("email") != s.email || q.Get("password") != s.password {
		writeJSON(w, map[string]string{"status": "error", "message": "Invalid login"})
		return
	}
	writeJSON(w, map[string]string{"status": "success", "jsessionid": s.token})
}

func (s *Server) handleDescribe(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	fields := s.schemas[r.URL.Query().Get("object")]
	s.mu.Unlock()

	out := make([]map[string]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, map[string]string{"name": f, "type": "varchar"})
	}
	writeJSON(w, out)
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	var object string
	var fields []Field
	for _, f := range orderedQuery(r.URL.RawQuery) {
		switch f.Name {
		case "json":
		case "object":
			object = f.Value
		default:
			fields = append(fields, f)
		}
	}

	result, key, messages := s.decideSave(object, fields)

	entry := map[string]any{
		"object":   object,
		"key":      key,
		"result":   result,
		"messages": messages,
	}
	line, _ := json.Marshal([]any{entry})

	// The real endpoint prefixes the JSON with template output.
	w.Header().Set("Content-Type", "text/html")
	fmt.Fprintf(w, "<html>\n<body><!-- saved --></body>\n</html>\n%s\n", line)
}

func (s *Server) decideSave(object string, fields []Field) (string, string, []string) {
	if s.save != nil {
		result, key, messages := s.save(object, fields)
		if result == "success" {
			s.put(object, key, fields)
		}
		return result, key, messages
	}

	key := ""
	for _, f := range fields {
		if f.Name == "key" && f.Value != "" {
			key = f.Value
		}
	}
	if key == "" {
		s.mu.Lock()
		s.nextKey++
		key = strconv.Itoa(s.nextKey)
		s.mu.Unlock()
	}
	s.put(object, key, fields)
	return "success", key, []string{}
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	object, key := q.Get("object"), q.Get("key")

	s.mu.Lock()
	_, ok := s.objects[object][key]
	if ok {
		delete(s.objects[object], key)
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "text/xml")
	if ok {
		fmt.Fprintf(w, `<?xml version="1.0"?><response><success table="%s" key="%s">Deleted entry %s</success></response>`,
			html.EscapeString(object), html.EscapeString(key), html.EscapeString(key))
		return
	}
	fmt.Fprintf(w, `<?xml version="1.0"?><response><error table="%s" key="%s" exc="NotFound">No such entry %s</error></response>`,
		html.EscapeString(object), html.EscapeString(key), html.EscapeString(key))
}

func (s *Server) handleGetObject(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	object, key := q.Get("object"), q.Get("key")

	fields, ok := s.Object(object, key)
	if !ok {
		writeJSON(w, map[string]string{})
		return
	}

	// Encode by hand so the field order is stable.
	var b strings.Builder
	b.WriteString("{")
	name, _ := json.Marshal(object + "_KEY")
	val, _ := json.Marshal(key)
	fmt.Fprintf(&b, "%s:%s", name, val)
	for _, f := range fields {
		if f.Name == "key" || f.Name == object+"_KEY" {
			continue
		}
		name, _ := json.Marshal(f.Name)
		val, _ := json.Marshal(f.Value)
		fmt.Fprintf(&b, ",%s:%s", name, val)
	}
	b.WriteString("}")

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(b.String()))
}

func (s *Server) put(object, key string, fields []Field) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.objects[object] == nil {
		s.objects[object] = make(map[string][]Field)
	}
	s.objects[object][key] = append([]Field(nil), fields...)
}

// orderedQuery decodes a raw query string without losing argument order.
func orderedQuery(raw string) []Field {
	var out []Field
	for _, part := range strings.Split(raw, "&") {
		if part == "" {
			continue
		}
		k, v, _ := strings.Cut(part, "=")
		name, err := url.QueryUnescape(k)
		if err != nil {
			name = k
		}
		value, err := url.QueryUnescape(v)
		if err != nil {
			value = v
		}
		out = append(out, Field{Name: name, Value: value})
	}
	return out
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
