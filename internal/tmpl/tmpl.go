// Package tmpl fills source skeletons that contain named holes.
//
// A hole is written ${name}. Each name may appear at most once in a
// skeleton, and every hole must receive exactly one value. Substitution
// is a single pass over the parsed skeleton, so a value that happens to
// contain "${...}" is copied verbatim and never expanded.
package tmpl

import (
	"fmt"
	"sort"
	"strings"

	"github.com/robert-at-pretension-io/scfmu/internal/generr"
)

type segment struct {
	text string
	hole string // empty for literal text
}

// Template is a parsed skeleton. It is immutable and safe to share.
type Template struct {
	name     string
	segments []segment
	holes    []string
}

// Parse splits a skeleton into literal text and holes
func Parse(name, skeleton string) (*Template, error) {
	t := &Template{name: name}
	seen := make(map[string]bool)
	rest := skeleton

	for {
		start := strings.Index(rest, "${")
		if start < 0 {
			if rest != "" {
				t.segments = append(t.segments, segment{text: rest})
			}
			break
		}
		if start > 0 {
			t.segments = append(t.segments, segment{text: rest[:start]})
		}
		end := strings.IndexByte(rest[start:], '}')
		if end < 0 {
			return nil, generr.Consistency(name, "unterminated hole in template")
		}
		hole := rest[start+2 : start+end]
		if !validHole(hole) {
			return nil, generr.Consistency(name, fmt.Sprintf("invalid hole name %q", hole))
		}
		if seen[hole] {
			return nil, generr.Consistency(name, fmt.Sprintf("hole %q appears more than once", hole))
		}
		seen[hole] = true
		t.holes = append(t.holes, hole)
		t.segments = append(t.segments, segment{hole: hole})
		rest = rest[start+end+1:]
	}

	return t, nil
}

// MustParse is like Parse but panics on error. Used for built-in skeletons.
func MustParse(name, skeleton string) *Template {
	t, err := Parse(name, skeleton)
	if err != nil {
		panic(err)
	}
	return t
}

// Name returns the template name used in errors
func (t *Template) Name() string {
	return t.name
}

// Holes returns the hole names in order of appearance
func (t *Template) Holes() []string {
	out := make([]string, len(t.holes))
	copy(out, t.holes)
	return out
}

// Render substitutes every hole. It fails if a hole has no value or a
// value has no hole; on failure no partial text is returned.
func (t *Template) Render(values map[string]string) (string, error) {
	var missing []string
	for _, hole := range t.holes {
		if _, ok := values[hole]; !ok {
			missing = append(missing, hole)
		}
	}
	if len(missing) > 0 {
		return "", generr.Consistency(t.name, "unresolved holes: "+strings.Join(missing, ", "))
	}

	if len(values) != len(t.holes) {
		var unused []string
		for key := range values {
			if !t.hasHole(key) {
				unused = append(unused, key)
			}
		}
		sort.Strings(unused)
		return "", generr.Consistency(t.name, "values without a matching hole: "+strings.Join(unused, ", "))
	}

	var b strings.Builder
	for _, seg := range t.segments {
		if seg.hole == "" {
			b.WriteString(seg.text)
			continue
		}
		b.WriteString(values[seg.hole])
	}
	return b.String(), nil
}

func (t *Template) hasHole(name string) bool {
	for _, h := range t.holes {
		if h == name {
			return true
		}
	}
	return false
}

func validHole(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
