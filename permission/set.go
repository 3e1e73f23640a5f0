package permission

import (
	"sort"
	"strings"
)

// Set is an immutable, flat set of permission tokens.
//
// The zero value is the empty set.
type Set struct {
	keys []string
}

// NewSet builds a set from tokens. Blank tokens are dropped and duplicates collapse.
func NewSet(tokens ...string) Set {
	if len(tokens) == 0 {
		return Set{}
	}
	seen := make(map[string]struct{}, len(tokens))
	keys := make([]string, 0, len(tokens))
	for _, t := range tokens {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		keys = append(keys, t)
	}
	sort.Strings(keys)
	return Set{keys: keys}
}

// Has reports whether token is a member of s.
func (s Set) Has(token string) bool {
	i := sort.SearchStrings(s.keys, token)
	return i < len(s.keys) && s.keys[i] == token
}

// Len returns the number of tokens.
func (s Set) Len() int {
	return len(s.keys)
}

// Empty reports whether s grants nothing.
func (s Set) Empty() bool {
	return len(s.keys) == 0
}

// Tokens returns a sorted copy of the members.
func (s Set) Tokens() []string {
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

// With returns a new set containing s plus tokens.
func (s Set) With(tokens ...string) Set {
	return NewSet(append(s.Tokens(), tokens...)...)
}

// Without returns a new set with tokens removed.
func (s Set) Without(tokens ...string) Set {
	drop := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		drop[t] = struct{}{}
	}
	keep := make([]string, 0, len(s.keys))
	for _, k := range s.keys {
		if _, ok := drop[k]; !ok {
			keep = append(keep, k)
		}
	}
	return Set{keys: keep}
}

// Equal reports whether both sets contain the same tokens.
func (s Set) Equal(other Set) bool {
	if len(s.keys) != len(other.keys) {
		return false
	}
	for i := range s.keys {
		if s.keys[i] != other.keys[i] {
			return false
		}
	}
	return true
}

// String renders the set as a comma separated list.
func (s Set) String() string {
	return "{" + strings.Join(s.keys, ",") + "}"
}

// Ptr returns a pointer to a copy of s. Useful for optional overrides where
// nil means "inherit".
func (s Set) Ptr() *Set {
	c := Set{keys: s.Tokens()}
	return &c
}
