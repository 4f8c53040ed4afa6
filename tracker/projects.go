package tracker

import (
	"sort"
	"strings"
)

// ProjectSet is a set of lower-case project names.
type ProjectSet map[string]struct{}

// ParseProjects parses a list of project names separated by commas,
// semicolons, slashes or white space.
func ParseProjects(s string) ProjectSet {
	set := make(ProjectSet)
	for _, name := range SplitList(s) {
		set[strings.ToLower(name)] = struct{}{}
	}
	return set
}

// NewProjectSet returns a set holding the named projects.
func NewProjectSet(names ...string) ProjectSet {
	set := make(ProjectSet, len(names))
	for _, name := range names {
		set[strings.ToLower(name)] = struct{}{}
	}
	return set
}

// SplitList splits s on commas, semicolons, slashes and white space,
// dropping empty elements.
func SplitList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		switch r {
		case ',', ';', '/', ' ', '\t', '\n', '\r':
			return true
		}
		return false
	})
}

func (s ProjectSet) Contains(name string) bool {
	_, ok := s[strings.ToLower(name)]
	return ok
}

// Names returns the members of s in sorted order.
func (s ProjectSet) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s ProjectSet) String() string {
	return strings.Join(s.Names(), ",")
}
