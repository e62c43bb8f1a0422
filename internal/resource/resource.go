// Package resource identifies the subjects of update notifications.
package resource

import (
	"sort"
	"strings"
)

// Resource is an addressable unit of change notification.
type Resource struct {
	// Path is the resource path as known by the build server (e.g. "app/page.js").
	Path string `json:"path" yaml:"path"`

	// Headers optionally narrow the resource. Two resources with the same path
	// but different headers are different resources.
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// Key is the canonical identifier of a Resource. Keys compare equal exactly
// when path and header set are equal.
type Key string

// Key returns the canonical key for r.
//
// Header names are sorted, and every component is quoted so that a path or
// header value containing separators cannot collide with another resource.
func (r Resource) Key() Key {
	var b strings.Builder
	b.WriteString(quote(r.Path))
	if len(r.Headers) == 0 {
		return Key(b.String())
	}

	names := make([]string, 0, len(r.Headers))
	for name := range r.Headers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		b.WriteByte(';')
		b.WriteString(quote(name))
		b.WriteByte('=')
		b.WriteString(quote(r.Headers[name]))
	}
	return Key(b.String())
}

// String returns a human readable form used in logs.
func (r Resource) String() string {
	if len(r.Headers) == 0 {
		return r.Path
	}
	return r.Path + " " + string(r.Key())[len(quote(r.Path)):]
}

// Clone returns a deep copy of r.
func (r Resource) Clone() Resource {
	out := Resource{Path: r.Path}
	if r.Headers != nil {
		out.Headers = make(map[string]string, len(r.Headers))
		for k, v := range r.Headers {
			out.Headers[k] = v
		}
	}
	return out
}

func quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '"' || c == '\\' {
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}
	b.WriteByte('"')
	return b.String()
}
