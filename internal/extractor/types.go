package extractor

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/robert-at-pretension-io/scfmu/internal/scalar"
)

var (
	// Pattern: sc_uint<N>, sc_biguint<N>, sc_int<N>, sc_bigint<N>
	scIntPattern = regexp.MustCompile(`^sc_(big)?(u?)int\s*<\s*([^<>]+?)\s*>$`)

	// Pattern: uint16_t, int8_t
	fixedIntPattern = regexp.MustCompile(`^(u?)int(8|16|32|64)_t$`)

	namespacePrefix = regexp.MustCompile(`\b(?:sc_dt|sc_core|std)\s*::\s*`)
	spaceRun        = regexp.MustCompile(`\s+`)
)

// C integer spellings with their (semantic, width) on an LP64 target
var cIntegerTypes = map[string]struct {
	sem   scalar.Semantic
	width int
}{
	"char":                   {scalar.Int, 8},
	"signed char":            {scalar.Int, 8},
	"unsigned char":          {scalar.Uint, 8},
	"short":                  {scalar.Int, 16},
	"short int":              {scalar.Int, 16},
	"signed short":           {scalar.Int, 16},
	"unsigned short":         {scalar.Uint, 16},
	"unsigned short int":     {scalar.Uint, 16},
	"int":                    {scalar.Int, 32},
	"signed":                 {scalar.Int, 32},
	"signed int":             {scalar.Int, 32},
	"unsigned":               {scalar.Uint, 32},
	"unsigned int":           {scalar.Uint, 32},
	"long":                   {scalar.Int, 64},
	"long int":               {scalar.Int, 64},
	"unsigned long":          {scalar.Uint, 64},
	"unsigned long int":      {scalar.Uint, 64},
	"long long":              {scalar.Int, 64},
	"long long int":          {scalar.Int, 64},
	"unsigned long long":     {scalar.Uint, 64},
	"unsigned long long int": {scalar.Uint, 64},
}

// TypeInfo is the classification of a declared port or field type
type TypeInfo struct {
	Semantic scalar.Semantic
	// Width is nil when the type does not fix a bit width
	Width *int
	// Native is the normalized spelling used in generated code
	Native string
}

// NormalizeType strips SystemC/std namespace qualifiers, const, and
// redundant whitespace from a type spelling.
func NormalizeType(typ string) string {
	t := namespacePrefix.ReplaceAllString(typ, "")
	t = strings.ReplaceAll(t, "const ", "")
	t = spaceRun.ReplaceAllString(strings.TrimSpace(t), " ")
	t = strings.ReplaceAll(t, "< ", "<")
	t = strings.ReplaceAll(t, " >", ">")
	return t
}

// ClassifyType maps a C++/SystemC type spelling to its semantic type and
// width. ok is false when the type has no scalar meaning; detail then
// explains why.
func ClassifyType(typ string) (info TypeInfo, ok bool, detail string) {
	t := NormalizeType(typ)
	info.Native = t

	switch t {
	case "bool":
		info.Semantic = scalar.Bool
		return info, true, ""
	case "float":
		info.Semantic = scalar.Float
		return info, true, ""
	case "double":
		info.Semantic = scalar.Double
		return info, true, ""
	}

	if c, found := cIntegerTypes[t]; found {
		w := c.width
		info.Semantic = c.sem
		info.Width = &w
		return info, true, ""
	}

	if m := fixedIntPattern.FindStringSubmatch(t); m != nil {
		w, _ := strconv.Atoi(m[2])
		info.Semantic = scalar.Int
		if m[1] == "u" {
			info.Semantic = scalar.Uint
		}
		info.Width = &w
		return info, true, ""
	}

	if m := scIntPattern.FindStringSubmatch(t); m != nil {
		info.Semantic = scalar.Int
		if m[2] == "u" {
			info.Semantic = scalar.Uint
		}
		w, err := strconv.Atoi(m[3])
		if err != nil {
			return info, false, "bit width " + strconv.Quote(m[3]) + " must be an integer literal"
		}
		info.Width = &w
		return info, true, ""
	}

	return info, false, "unsupported type " + strconv.Quote(t)
}
