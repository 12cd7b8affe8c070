package headers

import (
	"bytes"
	"encoding/json"
	"net/http"
)

// Canonical header names used by the isolation set.
const (
	OpenerPolicy   = "Cross-Origin-Opener-Policy"
	EmbedderPolicy = "Cross-Origin-Embedder-Policy"
	CacheControl   = "Cache-Control"
	Pragma         = "Pragma"
	Expires        = "Expires"
)

// Field is a single header name/value pair.
type Field struct {
	Name  string
	Value string
}

// Set is an ordered, read-only list of response headers.
type Set struct {
	fields []Field
}

var isolation = Set{fields: []Field{
	{Name: OpenerPolicy, Value: "same-origin"},
	{Name: EmbedderPolicy, Value: "credentialless"},
	{Name: CacheControl, Value: "no-cache, no-store, must-revalidate"},
	{Name: Pragma, Value: "no-cache"},
	{Name: Expires, Value: "0"},
}}

// Isolation returns the cross-origin isolation and cache-disabling headers
// attached to every response.
func Isolation() Set {
	return isolation
}

// Fields returns a copy of the pairs in order.
func (s Set) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Get returns the value for name, or "" if the set has no such header.
func (s Set) Get(name string) string {
	name = http.CanonicalHeaderKey(name)
	for _, f := range s.fields {
		if f.Name == name {
			return f.Value
		}
	}
	return ""
}

// Apply sets every pair on h, replacing existing values.
func (s Set) Apply(h http.Header) {
	for _, f := range s.fields {
		h.Set(f.Name, f.Value)
	}
}

// MarshalJSON encodes the set as an object whose keys keep set order.
func (s Set) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range s.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Middleware applies s before next runs so that every response, including
// ones written by outer middleware short-circuiting on errors, carries it.
func Middleware(s Set, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.Apply(w.Header())
		next.ServeHTTP(w, r)
	})
}
