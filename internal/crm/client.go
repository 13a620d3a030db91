package crm

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Endpoint paths and the format flag each one expects.
const (
	pathAuthenticate = "/api/authenticate.sjs"
	pathDescribe     = "/api/describe2.sjs"
	pathGetObject    = "/api/getObject.sjs"
	pathSave         = "/save"
	pathDelete       = "/delete"

	flagJSON = "json"
	flagXML  = "xml"

	sessionCookie = "JSESSIONID"

	// errorBodyLimit caps how much of an error response is kept.
	errorBodyLimit = 1024
)

// Config holds client settings. It is built by the caller from the loaded
// configuration; the client reads nothing from the environment.
type Config struct {
	BaseURL            string
	OrganizationKey    string
	InsecureSkipVerify bool
	Timeout            time.Duration
	UserAgent          string

	// Transport replaces the default transport when set. Tests use it.
	Transport http.RoundTripper
}

// Client talks to the remote object API.
type Client struct {
	base   string
	orgKey string
	agent  string
	http   *http.Client
}

// New builds a Client. TLS verification stays on unless InsecureSkipVerify
// is set explicitly.
func New(cfg Config) (*Client, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", cfg.BaseURL)
	}

	next := cfg.Transport
	if next == nil {
		tr := http.DefaultTransport.(*http.Transport).Clone()
		if cfg.InsecureSkipVerify {
			slog.Warn("TLS certificate verification disabled", "base_url", cfg.BaseURL)
			tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // explicit opt-in
		}
		next = tr
	}

	return &Client{
		base:   strings.TrimRight(cfg.BaseURL, "/"),
		orgKey: cfg.OrganizationKey,
		agent:  cfg.UserAgent,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: &loggingTransport{next: next},
		},
	}, nil
}

type authResponse struct {
	Status     *string `json:"status"`
	JSessionID *string `json:"jsessionid"`
}

// Authenticate opens a session. Rejected credentials and unreadable
// responses are both *AuthError.
func (c *Client) Authenticate(ctx context.Context, creds Credentials) (*Session, error) {
	var args Args
	if c.orgKey != "" {
		args.Add("organization_KEY", c.orgKey)
	}
	args.Add("email", creds.Email)
	args.Add("password", creds.Password)

	resp, err := Run[authResponse](ctx, c, nil, JSONCall[authResponse]{
		Name:     "authenticate",
		Endpoint: endpoint(pathAuthenticate, flagJSON, args),
	})
	if err != nil {
		var pe *ProtocolError
		if errors.As(err, &pe) && pe.Reason == ReasonUnparseable {
			return nil, &AuthError{Malformed: true, Err: err}
		}
		return nil, err
	}

	if resp.Status == nil {
		return nil, &AuthError{Malformed: true, Err: errors.New(`no "status" field`)}
	}
	if *resp.Status != "success" {
		return nil, &AuthError{Status: *resp.Status}
	}
	if resp.JSessionID == nil || *resp.JSessionID == "" {
		return nil, &AuthError{Malformed: true, Err: errors.New(`no "jsessionid" field`)}
	}

	return &Session{Token: *resp.JSessionID}, nil
}

// Describe fetches the field names of objectType.
func (c *Client) Describe(ctx context.Context, sess *Session, objectType string) (SchemaDescriptor, error) {
	var args Args
	args.Add("object", objectType)

	call := JSONCall[[]map[string]json.RawMessage]{
		Name:     "describe",
		Endpoint: endpoint(pathDescribe, flagJSON, args),
	}
	entries, err := Run[[]map[string]json.RawMessage](ctx, c, sess, call)
	if err != nil {
		return SchemaDescriptor{}, err
	}
	if entries == nil {
		return SchemaDescriptor{}, &ProtocolError{Op: call.Name, Reason: ReasonMissingElement,
			Err: errors.New("null field list")}
	}

	desc := SchemaDescriptor{Object: objectType, Fields: make([]string, 0, len(entries))}
	for i, e := range entries {
		raw, ok := e["name"]
		if !ok {
			return SchemaDescriptor{}, &ProtocolError{Op: call.Name, Reason: ReasonMissingAttributes,
				Err: fmt.Errorf("field %d has no name", i)}
		}
		desc.Fields = append(desc.Fields, scalarText(raw))
	}
	return desc, nil
}

// Save creates or updates one object. args carries the record's fields;
// the object argument is appended here.
func (c *Client) Save(ctx context.Context, sess *Session, objectType string, args Args) (OperationResult, error) {
	wire := make(Args, 0, len(args)+1)
	wire = append(wire, args...)
	wire.Add("object", objectType)

	return Run[OperationResult](ctx, c, sess, NoisyJSONLastLineCall{
		Name:     "save",
		Endpoint: endpoint(pathSave, flagJSON, wire),
	})
}

// Delete removes the object identified by key.
func (c *Client) Delete(ctx context.Context, sess *Session, objectType, key string) (OperationResult, error) {
	var args Args
	args.Add("object", objectType)
	args.Add("key", key)

	return Run[OperationResult](ctx, c, sess, XMLEnvelopeCall{
		Name:     "delete",
		Endpoint: endpoint(pathDelete, flagXML, args),
	})
}

// GetObject fetches a single object, preserving the field order of the
// response.
func (c *Client) GetObject(ctx context.Context, sess *Session, objectType, key string) (Object, error) {
	var args Args
	args.Add("object", objectType)
	args.Add("key", key)

	return Run[Object](ctx, c, sess, objectCall{
		Endpoint: endpoint(pathGetObject, flagJSON, args),
	})
}

// Run executes call and decodes its body. It is a function rather than a
// method because methods cannot take type parameters.
func Run[T any](ctx context.Context, c *Client, sess *Session, call RemoteCall[T]) (T, error) {
	var zero T

	body, err := c.do(ctx, sess, call.Op(), call.Path())
	if err != nil {
		return zero, err
	}
	return call.Parse(body)
}

func (c *Client) do(ctx context.Context, sess *Session, op, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return nil, fmt.Errorf("crm %s: create request: %w", op, err)
	}
	if c.agent != "" {
		req.Header.Set("User-Agent", c.agent)
	}
	if sess != nil {
		req.AddCookie(&http.Cookie{Name: sessionCookie, Value: sess.Token})
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return nil, &ProtocolError{
			Op:      op,
			Reason:  ReasonHTTPStatus,
			Status:  resp.StatusCode,
			Snippet: strings.TrimSpace(string(body)),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("read body: %w", err)}
	}
	return body, nil
}

// objectCall decodes a flat JSON object token by token so field order
// survives; map decoding would lose it.
type objectCall struct {
	Endpoint string
}

func (objectCall) Op() string     { return "getObject" }
func (c objectCall) Path() string { return c.Endpoint }

func (c objectCall) Parse(body []byte) (Object, error) {
	fail := func(err error) (Object, error) {
		return Object{}, &ProtocolError{Op: c.Op(), Reason: ReasonUnparseable, Err: err}
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	tok, err := dec.Token()
	if err != nil {
		return fail(err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fail(fmt.Errorf("expected object, got %v", tok))
	}

	var obj Object
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fail(err)
		}
		name, ok := tok.(string)
		if !ok {
			return fail(fmt.Errorf("expected field name, got %v", tok))
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fail(fmt.Errorf("field %q: %w", name, err))
		}
		obj.Fields = append(obj.Fields, name)
		obj.Values = append(obj.Values, scalarText(raw))
	}
	if _, err := dec.Token(); err != nil {
		return fail(err)
	}
	if len(obj.Fields) == 0 {
		return Object{}, &ProtocolError{Op: c.Op(), Reason: ReasonMissingElement,
			Err: errors.New("empty object")}
	}
	return obj, nil
}
