package crm

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// RemoteCall describes one request and how to decode its response body.
type RemoteCall[T any] interface {
	// Op names the call in logs and errors.
	Op() string
	// Path is the request path plus query string.
	Path() string
	// Parse decodes the body. Failures are *ProtocolError.
	Parse(body []byte) (T, error)
}

// JSONCall decodes a body that is exactly one JSON document into T.
type JSONCall[T any] struct {
	Name     string
	Endpoint string
}

func (c JSONCall[T]) Op() string   { return c.Name }
func (c JSONCall[T]) Path() string { return c.Endpoint }

func (c JSONCall[T]) Parse(body []byte) (T, error) {
	var v T
	if err := json.Unmarshal(body, &v); err != nil {
		return v, &ProtocolError{Op: c.Name, Reason: ReasonUnparseable, Err: err}
	}
	return v, nil
}

// saveEntry is one element of the save response array.
type saveEntry struct {
	Object   flexString   `json:"object"`
	Key      flexString   `json:"key"`
	Result   *string      `json:"result"`
	Messages []flexString `json:"messages"`
}

// NoisyJSONLastLineCall handles save, whose body carries markup noise
// followed by a JSON array on the last non-empty line.
type NoisyJSONLastLineCall struct {
	Name     string
	Endpoint string
}

func (c NoisyJSONLastLineCall) Op() string   { return c.Name }
func (c NoisyJSONLastLineCall) Path() string { return c.Endpoint }

func (c NoisyJSONLastLineCall) Parse(body []byte) (OperationResult, error) {
	line := lastNonEmptyLine(string(body))
	if line == "" {
		return OperationResult{}, &ProtocolError{Op: c.Name, Reason: ReasonUnparseable,
			Err: errors.New("empty body")}
	}

	var entries []saveEntry
	if err := json.Unmarshal([]byte(line), &entries); err != nil {
		return OperationResult{}, &ProtocolError{Op: c.Name, Reason: ReasonUnparseable,
			Snippet: snippet(line), Err: err}
	}
	if len(entries) == 0 {
		return OperationResult{}, &ProtocolError{Op: c.Name, Reason: ReasonMissingElement,
			Err: errors.New("empty result array")}
	}

	e := entries[0]
	if e.Result == nil {
		return OperationResult{}, &ProtocolError{Op: c.Name, Reason: ReasonMissingAttributes,
			Err: errors.New(`result entry has no "result" field`)}
	}

	res := OperationResult{
		Outcome: OutcomeError,
		Object:  string(e.Object),
		Key:     string(e.Key),
	}
	if *e.Result == "success" {
		res.Outcome = OutcomeSuccess
	}
	for i, m := range e.Messages {
		if i == 0 {
			res.Message = string(m)
			continue
		}
		res.ExtraMessages = append(res.ExtraMessages, string(m))
	}
	return res, nil
}

func lastNonEmptyLine(s string) string {
	lines := strings.Split(s, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}

// XMLEnvelopeCall handles delete, whose body is
// <response><success|error table=".." key="..">text</...></response>.
type XMLEnvelopeCall struct {
	Name     string
	Endpoint string
}

func (c XMLEnvelopeCall) Op() string   { return c.Name }
func (c XMLEnvelopeCall) Path() string { return c.Endpoint }

func (c XMLEnvelopeCall) Parse(body []byte) (OperationResult, error) {
	env, err := decodeEnvelope(body)
	if err != nil {
		return OperationResult{}, &ProtocolError{Op: c.Name, Reason: ReasonUnparseable,
			Snippet: snippet(string(body)), Err: err}
	}
	if env.child == nil {
		return OperationResult{}, &ProtocolError{Op: c.Name, Reason: ReasonMissingElement,
			Err: fmt.Errorf("<%s> has no child element", env.root)}
	}

	table, hasTable := attr(env.child, "table")
	key, hasKey := attr(env.child, "key")
	if !hasTable || !hasKey {
		return OperationResult{}, &ProtocolError{Op: c.Name, Reason: ReasonMissingAttributes,
			Err: fmt.Errorf("<%s> needs table and key attributes", env.child.Name.Local)}
	}

	res := OperationResult{
		Outcome: OutcomeError,
		Object:  table,
		Key:     key,
		Message: strings.TrimSpace(env.text),
	}
	if env.child.Name.Local == "success" {
		res.Outcome = OutcomeSuccess
	}
	if exc, ok := attr(env.child, "exc"); ok && exc != "" {
		res.ExtraMessages = append(res.ExtraMessages, exc)
	}
	return res, nil
}

type envelope struct {
	root  string
	child *xml.StartElement
	text  string
}

// decodeEnvelope walks the whole token stream so that malformed or trailing
// content anywhere in the document is rejected, not just before the child.
func decodeEnvelope(body []byte) (envelope, error) {
	var env envelope
	dec := xml.NewDecoder(bytes.NewReader(body))

	depth := 0
	seenRoot := false
	inChild := false
	// Only text before the child's first nested element is its message.
	textDone := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return env, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if depth == 0 {
				if seenRoot {
					return env, fmt.Errorf("unexpected second root element <%s>", t.Name.Local)
				}
				seenRoot = true
				env.root = t.Name.Local
			} else if depth == 1 && env.child == nil {
				el := t.Copy()
				env.child = &el
				inChild = true
			} else if inChild && depth == 2 {
				textDone = true
			}
			depth++
		case xml.EndElement:
			depth--
			if depth == 1 {
				inChild = false
			}
		case xml.CharData:
			if depth == 0 {
				if len(bytes.TrimSpace(t)) > 0 {
					return env, errors.New("text outside root element")
				}
				continue
			}
			if inChild && depth == 2 && !textDone {
				env.text += string(t)
			}
		}
	}

	if !seenRoot {
		return env, errors.New("no root element")
	}
	return env, nil
}

func attr(el *xml.StartElement, name string) (string, bool) {
	for _, a := range el.Attr {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

func snippet(s string) string {
	const limit = 200
	s = strings.TrimSpace(s)
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
