package extractor

import (
	"regexp"
	"strings"
)

var (
	// Pattern: SC_MODULE(<name>)
	scModulePattern = regexp.MustCompile(`\bSC_MODULE\s*\(\s*(\w+)\s*\)`)

	// Pattern: class|struct <name> : [public] [sc_core::]sc_module
	classModulePattern = regexp.MustCompile(`\b(?:class|struct)\s+(\w+)\s*(?:final\s*)?:\s*(?:public\s+)?(?:::)?(?:sc_core\s*::\s*)?sc_module\b`)

	// Pattern: sc_in / sc_out / sc_inout / sc_in_clk, optionally sc_core:: qualified
	portKeywordPattern = regexp.MustCompile(`\b(?:sc_core\s*::\s*)?sc_(in|out|inout)(_clk)?\b`)

	// Pattern: lines that begin the module's internal wiring
	wiringPattern = regexp.MustCompile(`\bsc_signal\s*<|\bSC_CTOR\s*\(|\bSC_HAS_PROCESS\s*\(`)

	identPattern = regexp.MustCompile(`^[A-Za-z_]\w*$`)
)

// matchModule returns the module name if line declares a SystemC module
func matchModule(line string) (name string, end int, ok bool) {
	if m := scModulePattern.FindStringSubmatchIndex(line); m != nil {
		return line[m[2]:m[3]], m[1], true
	}
	if m := classModulePattern.FindStringSubmatchIndex(line); m != nil {
		return line[m[2]:m[3]], m[1], true
	}
	return "", 0, false
}

// constructorPattern matches a constructor of module taking sc_module_name
func constructorPattern(module string) *regexp.Regexp {
	return regexp.MustCompile(`\b` + regexp.QuoteMeta(module) + `\s*\([^)]*\bsc_module_name\b`)
}

// matchWiring returns the offset in line where the module's internal
// wiring starts. A constructor taking sc_module_name counts as wiring too.
func matchWiring(line string, ctor *regexp.Regexp) (int, bool) {
	pos := -1
	if loc := wiringPattern.FindStringIndex(line); loc != nil {
		pos = loc[0]
	}
	if ctor != nil {
		if loc := ctor.FindStringIndex(line); loc != nil && (pos < 0 || loc[0] < pos) {
			pos = loc[0]
		}
	}
	return pos, pos >= 0
}

// stripComments blanks // and /* */ comments while keeping line breaks,
// so line numbers still match the source.
func stripComments(src string) string {
	var b strings.Builder
	b.Grow(len(src))

	inLine, inBlock, inString := false, false, false
	for i := 0; i < len(src); i++ {
		c := src[i]
		switch {
		case inLine:
			if c == '\n' {
				inLine = false
				b.WriteByte(c)
			}
		case inBlock:
			if c == '*' && i+1 < len(src) && src[i+1] == '/' {
				inBlock = false
				i++
				b.WriteByte(' ')
			} else if c == '\n' {
				b.WriteByte(c)
			}
		case inString:
			b.WriteByte(c)
			if c == '\\' && i+1 < len(src) {
				i++
				b.WriteByte(src[i])
			} else if c == '"' {
				inString = false
			}
		case c == '"':
			inString = true
			b.WriteByte(c)
		case c == '/' && i+1 < len(src) && src[i+1] == '/':
			inLine = true
			i++
		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			inBlock = true
			i++
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// matchTemplateArg returns the text between the '<' at s[0] and its
// matching '>', and the index just past the closing bracket.
func matchTemplateArg(s string) (arg string, end int, ok bool) {
	if s == "" || s[0] != '<' {
		return "", 0, false
	}
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<':
			depth++
		case '>':
			depth--
			if depth == 0 {
				return strings.TrimSpace(s[1:i]), i + 1, true
			}
		case ';':
			return "", 0, false
		}
	}
	return "", 0, false
}

// splitPortNames splits "a, b{"b"}, c(\"c\")" into bare identifiers.
// Names that are not plain identifiers (arrays, pointers) are returned
// unchanged for the caller to reject.
func splitPortNames(list string) []string {
	var names []string
	depth := 0
	start := 0
	flush := func(end int) {
		name := strings.TrimSpace(list[start:end])
		if i := strings.IndexAny(name, "{("); i > 0 {
			name = strings.TrimSpace(name[:i])
		}
		names = append(names, name)
	}
	for i := 0; i < len(list); i++ {
		switch list[i] {
		case '(', '{':
			depth++
		case ')', '}':
			depth--
		case ',':
			if depth == 0 {
				flush(i)
				start = i + 1
			}
		}
	}
	flush(len(list))
	return names
}
