package extractor

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/robert-at-pretension-io/scfmu/internal/generr"
	"github.com/robert-at-pretension-io/scfmu/internal/model"
	"github.com/robert-at-pretension-io/scfmu/internal/scalar"
)

// portDecl is one "sc_in<T> a, b;" group found on a line
type portDecl struct {
	dir   string
	typ   string
	names []string
}

// ParseModulePorts extracts the ordered port list of the SystemC module
// called moduleName from a header. Scanning starts after the module
// declaration and stops at the module's internal wiring (signals,
// SC_CTOR, SC_HAS_PROCESS or a constructor) or at the end of its body.
func ParseModulePorts(file string, content []byte, moduleName string) (model.Module, error) {
	mod := model.Module{
		Name:   moduleName,
		Kind:   model.ModulePort,
		File:   file,
		Header: file,
	}

	lines := splitLines(stripComments(string(content)))

	declLine, declEnd := -1, 0
	var declared []string
	for i, line := range lines {
		name, end, ok := matchModule(line)
		if !ok {
			continue
		}
		declared = append(declared, name)
		if name == moduleName {
			declLine, declEnd = i, end
			break
		}
	}
	if declLine < 0 {
		if len(declared) > 0 {
			return mod, generr.NameMismatch(file, declared[0], moduleName)
		}
		return mod, generr.Parse(file, 0, moduleName, "no SC_MODULE or sc_module class declaration found")
	}

	seen := make(map[string]int)
	ctor := constructorPattern(moduleName)
	depth := 0
	opened := false

	for i := declLine; i < len(lines); i++ {
		line := lines[i]
		if i == declLine {
			line = line[declEnd:]
		}
		lineNum := i + 1

		if strings.TrimSpace(line) == "" {
			continue
		}
		// ports declared before the wiring on the same line still count
		pos, wiring := matchWiring(line, ctor)
		if wiring {
			line = line[:pos]
		}

		decls, err := scanPortDecls(line)
		if err != nil {
			return mod, generr.Parse(file, lineNum, strings.TrimSpace(line), err.Error())
		}
		for _, decl := range decls {
			if decl.dir == "inout" {
				return mod, generr.Parse(file, lineNum, strings.Join(decl.names, ", "),
					"sc_inout ports are not supported; direction must be in or out")
			}
			info, ok, detail := ClassifyType(decl.typ)
			for _, name := range decl.names {
				if !identPattern.MatchString(name) {
					return mod, generr.Parse(file, lineNum, name, "port name must be a plain identifier")
				}
				if !ok {
					return mod, generr.New(generr.KindTypeMapping).
						File(file).Line(lineNum).Construct(name).Detail("%s", detail).Build()
				}
				if prev, dup := seen[name]; dup {
					return mod, generr.Parse(file, lineNum, name,
						fmt.Sprintf("port already declared on line %d", prev))
				}
				seen[name] = lineNum

				dir := model.In
				if decl.dir == "out" {
					dir = model.Out
				}
				mod.Ports = append(mod.Ports, model.Port{
					Name:       name,
					Direction:  dir,
					Semantic:   info.Semantic,
					Width:      copyWidth(info),
					NativeType: info.Native,
					Line:       lineNum,
				})
			}
		}

		if wiring {
			Logger().Debug("port scan stopped at wiring",
				zap.String("file", file), zap.Int("line", lineNum))
			break
		}

		// Track the module body so trailing declarations of other classes are ignored
		for _, c := range line {
			switch c {
			case '{':
				depth++
				opened = true
			case '}':
				depth--
			}
		}
		if opened && depth <= 0 {
			break
		}
	}

	if len(mod.Ports) == 0 {
		Logger().Warn("module declares no ports", zap.String("module", moduleName), zap.String("file", file))
	}
	return mod, nil
}

// scanPortDecls finds every port declaration group on a line
func scanPortDecls(line string) ([]portDecl, error) {
	var decls []portDecl
	rest := line
	for {
		loc := portKeywordPattern.FindStringSubmatchIndex(rest)
		if loc == nil {
			return decls, nil
		}
		decl := portDecl{dir: rest[loc[2]:loc[3]]}
		after := strings.TrimLeft(rest[loc[1]:], " \t")

		if loc[4] >= 0 {
			// sc_in_clk carries a bool
			decl.typ = "bool"
		} else {
			arg, end, ok := matchTemplateArg(after)
			if !ok {
				return nil, fmt.Errorf("sc_%s without a complete <type> argument", decl.dir)
			}
			decl.typ = arg
			after = after[end:]
		}

		semi := strings.IndexByte(after, ';')
		if semi < 0 {
			return nil, fmt.Errorf("port declaration is not terminated by ';' on the same line")
		}
		decl.names = splitPortNames(after[:semi])
		decls = append(decls, decl)
		rest = after[semi+1:]
	}
}

func copyWidth(info TypeInfo) *int {
	if info.Width == nil {
		return nil
	}
	w := *info.Width
	if info.Semantic == scalar.Bool || info.Semantic == scalar.Float || info.Semantic == scalar.Double {
		return nil
	}
	return &w
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, strings.TrimSuffix(s[start:i], "\r"))
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}
