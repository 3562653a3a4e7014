package schema

import (
	"fmt"
	"regexp"
)

// Filter is an inclusion pattern tested against an object's bare name.
// It is safe for concurrent use.
type Filter struct {
	pattern string
	re      *regexp.Regexp
}

// NewFilter compiles pattern case-insensitively. An empty pattern matches every name.
func NewFilter(pattern string) (*Filter, error) {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid filter %q: %w", pattern, err)
	}
	return &Filter{pattern: pattern, re: re}, nil
}

// MustFilter is like NewFilter but panics on an invalid pattern.
func MustFilter(pattern string) *Filter {
	f, err := NewFilter(pattern)
	if err != nil {
		panic(err)
	}
	return f
}

// Match reports whether name is included. A nil Filter matches everything.
func (f *Filter) Match(name string) bool {
	if f == nil {
		return true
	}
	return f.re.MatchString(name)
}

func (f *Filter) String() string {
	if f == nil {
		return ""
	}
	return f.pattern
}
