package crm

import (
	"fmt"
	"net/http"
)

// Reason classifies why a response could not be understood.
type Reason string

const (
	// ReasonUnparseable means the body is not a well-formed document of the
	// expected grammar (bad JSON, bad XML, trailing content, empty body).
	ReasonUnparseable Reason = "unparseable"

	// ReasonMissingElement means the document parsed but lacks the element
	// carrying the result (XML root without a child, empty JSON array).
	ReasonMissingElement Reason = "missing element"

	// ReasonMissingAttributes means the result element lacks a required
	// attribute or field (table, key, result).
	ReasonMissingAttributes Reason = "missing attributes"

	// ReasonHTTPStatus means the server answered with a 4xx or 5xx status.
	ReasonHTTPStatus Reason = "http status"
)

// ProtocolError reports a response that violates the expected wire grammar.
// It is always fatal for the run.
type ProtocolError struct {
	Op      string
	Reason  Reason
	Status  int
	Snippet string
	Err     error
}

func (e *ProtocolError) Error() string {
	switch {
	case e.Reason == ReasonHTTPStatus:
		return fmt.Sprintf("crm %s: http %d %s: %s", e.Op, e.Status, http.StatusText(e.Status), e.Snippet)
	case e.Err != nil:
		return fmt.Sprintf("crm %s: %s response: %v", e.Op, e.Reason, e.Err)
	default:
		return fmt.Sprintf("crm %s: %s response", e.Op, e.Reason)
	}
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// AuthError reports a failed login. Malformed is set when the response could
// not be read at all, as opposed to the server rejecting the credentials.
type AuthError struct {
	Status    string
	Malformed bool
	Err       error
}

func (e *AuthError) Error() string {
	if e.Malformed {
		if e.Err != nil {
			return fmt.Sprintf("authentication response malformed: %v", e.Err)
		}
		return "authentication response malformed"
	}
	return fmt.Sprintf("authentication failed: status %q", e.Status)
}

func (e *AuthError) Unwrap() error { return e.Err }

// TransportError reports a network-level failure. Calls are never retried.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("crm %s: transport: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
