// Package crm is a client for the remote object API: authenticate, describe,
// save, delete and getObject. Every call is a query-string GET; the three
// response grammars (plain JSON, JSON on the last line of a noisy body, and
// an XML envelope) are decoded by RemoteCall implementations so callers only
// ever see typed results.
package crm

import (
	"encoding/json"
	"slices"
	"strings"
)

// Credentials identify the account used to open a session.
type Credentials struct {
	Email    string
	Password string
}

// Session is the token returned by authenticate. It is obtained once per run
// and sent as the JSESSIONID cookie on every later call.
type Session struct {
	Token string
}

// SchemaDescriptor lists the field names the remote side knows for one
// object type, in the order describe returned them.
type SchemaDescriptor struct {
	Object string
	Fields []string
}

// Has reports whether name is a known field.
func (s SchemaDescriptor) Has(name string) bool {
	return slices.Contains(s.Fields, name)
}

// Outcome is the per-operation result kind.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeError   Outcome = "error"
)

// OperationResult is the normalized answer of a save or delete call.
type OperationResult struct {
	Outcome       Outcome
	Object        string
	Key           string
	Message       string
	ExtraMessages []string
}

// Succeeded reports whether the remote side accepted the operation.
func (r OperationResult) Succeeded() bool { return r.Outcome == OutcomeSuccess }

// Messages returns Message followed by ExtraMessages, empty entries
// included. A result that carries no message at all yields nil.
func (r OperationResult) Messages() []string {
	if r.Message == "" && len(r.ExtraMessages) == 0 {
		return nil
	}
	return append([]string{r.Message}, r.ExtraMessages...)
}

// Object is a single remote object as returned by getObject, keeping the
// field order of the response.
type Object struct {
	Fields []string
	Values []string
}

// Get returns the value of field name.
func (o Object) Get(name string) (string, bool) {
	i := slices.Index(o.Fields, name)
	if i < 0 {
		return "", false
	}
	return o.Values[i], true
}

// flexString accepts a JSON string, number, bool or null and keeps its text.
// The API returns keys as numbers on some objects and strings on others.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	*f = flexString(scalarText(b))
	return nil
}

// scalarText renders a raw JSON value as text: strings are unquoted, null
// becomes "", anything else is kept verbatim.
func scalarText(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	switch {
	case s == "null":
		return ""
	case strings.HasPrefix(s, `"`):
		var out string
		if err := json.Unmarshal(raw, &out); err == nil {
			return out
		}
		return s
	default:
		return s
	}
}
