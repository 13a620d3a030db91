package crm

import (
	"net/url"
	"strings"
)

// Arg is one query-string argument.
type Arg struct {
	Key   string
	Value string
}

// Args is an ordered argument list. Unlike url.Values it keeps insertion
// order, so the wire request mirrors the input column order.
type Args []Arg

// Add appends key=value.
func (a *Args) Add(key, value string) {
	*a = append(*a, Arg{Key: key, Value: value})
}

// Get returns the first value stored under key.
func (a Args) Get(key string) (string, bool) {
	for _, arg := range a {
		if arg.Key == key {
			return arg.Value, true
		}
	}
	return "", false
}

// Encode form-escapes keys and values and joins them with '&'.
// Spaces become '+'; everything outside the unreserved set is percent-encoded.
func (a Args) Encode() string {
	var b strings.Builder
	for i, arg := range a {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(arg.Key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(arg.Value))
	}
	return b.String()
}

// endpoint builds "<path>?<flag>&<args>", the shape every call uses.
func endpoint(path, flag string, args Args) string {
	q := flag
	if enc := args.Encode(); enc != "" {
		q += "&" + enc
	}
	return path + "?" + q
}
