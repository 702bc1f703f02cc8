package extractor

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/cpp"
	"go.uber.org/zap"

	"github.com/robert-at-pretension-io/scfmu/internal/generr"
	"github.com/robert-at-pretension-io/scfmu/internal/model"
)

// Direction annotation values recognised on "<field>_dir" members
const (
	annotationInput  = "PORT_INPUT"
	annotationOutput = "PORT_OUTPUT"
	annotationSuffix = "_dir"
)

// Unannotated decides the direction of payload fields without a
// "<field>_dir" annotation
type Unannotated string

const (
	RejectUnannotated  Unannotated = "reject"
	InputUnannotated   Unannotated = "input"
	OutputUnannotated  Unannotated = "output"
	ExcludeUnannotated Unannotated = "exclude"
)

// Extractor uses Tree-sitter to parse C++ payload headers
type Extractor struct {
	parser *sitter.Parser
	lang   *sitter.Language
}

// PayloadRequest names the payload to extract
type PayloadRequest struct {
	File       string
	StructName string
	// ModuleName is the transaction-level top module exchanging the payload
	ModuleName  string
	Header      string
	Unannotated Unannotated
}

// payloadField is a member of the payload struct in declaration order
type payloadField struct {
	name   string
	typ    string
	value  string // default member initializer, if any
	line   int
	scalar bool   // plain identifier declarator
	reason string // why a non-scalar field is skipped
}

// New creates a new Extractor for the C++ grammar
func New() *Extractor {
	parser := sitter.NewParser()
	lang := cpp.GetLanguage()
	parser.SetLanguage(lang)
	return &Extractor{
		parser: parser,
		lang:   lang,
	}
}

// Close releases the underlying parser
func (e *Extractor) Close() {
	e.parser.Close()
}

// ParsePayload locates the payload struct and turns its scalar members
// into ports. "<field>_dir" members are kept as bookkeeping and decide
// the direction of <field>.
func (e *Extractor) ParsePayload(ctx context.Context, req PayloadRequest, content []byte) (model.Module, error) {
	mod := model.Module{
		Name:        req.ModuleName,
		Kind:        model.PayloadField,
		File:        req.File,
		Header:      req.Header,
		PayloadType: req.StructName,
	}

	tree, err := e.parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return mod, generr.New(generr.KindParse).File(req.File).Construct(req.StructName).
			Detail("parsing payload header").Cause(err).Build()
	}
	defer tree.Close()

	body := findStructBody(tree.RootNode(), content, req.StructName)
	if body == nil {
		return mod, generr.Parse(req.File, 0, req.StructName, "payload struct definition not found")
	}

	fields := collectFields(body, content)

	annotations := make(map[string]model.BookkeepingField)
	byName := make(map[string]payloadField)
	for _, f := range fields {
		if strings.HasSuffix(f.name, annotationSuffix) {
			bk := model.BookkeepingField{
				Name:   f.name,
				Target: strings.TrimSuffix(f.name, annotationSuffix),
				Value:  f.value,
				Line:   f.line,
			}
			annotations[bk.Target] = bk
			mod.Bookkeeping = append(mod.Bookkeeping, bk)
			continue
		}
		if prev, dup := byName[f.name]; dup {
			return mod, generr.Parse(req.File, f.line, f.name,
				fmt.Sprintf("field already declared on line %d", prev.line))
		}
		byName[f.name] = f
	}

	for _, bk := range mod.Bookkeeping {
		if _, ok := byName[bk.Target]; !ok {
			return mod, generr.Parse(req.File, bk.Line, bk.Name, fmt.Sprintf("direction annotation for unknown field %q", bk.Target))
		}
		if bk.Value != annotationInput && bk.Value != annotationOutput {
			return mod, generr.Parse(req.File, bk.Line, bk.Name,
				fmt.Sprintf("direction must be %s or %s, got %q", annotationInput, annotationOutput, bk.Value))
		}
	}

	for _, f := range fields {
		if strings.HasSuffix(f.name, annotationSuffix) {
			continue
		}
		if !f.scalar {
			Logger().Warn("skipping non-scalar payload field",
				zap.String("struct", req.StructName), zap.String("field", f.name), zap.String("reason", f.reason))
			continue
		}
		info, ok, detail := ClassifyType(f.typ)
		if !ok {
			Logger().Warn("skipping payload field with unsupported type",
				zap.String("struct", req.StructName), zap.String("field", f.name), zap.String("reason", detail))
			continue
		}

		var dir model.Direction
		if bk, annotated := annotations[f.name]; annotated {
			dir = model.In
			if bk.Value == annotationOutput {
				dir = model.Out
			}
		} else {
			switch req.Unannotated {
			case InputUnannotated:
				dir = model.In
			case OutputUnannotated:
				dir = model.Out
			case ExcludeUnannotated:
				Logger().Info("excluding unannotated payload field",
					zap.String("struct", req.StructName), zap.String("field", f.name))
				continue
			default:
				return mod, generr.Parse(req.File, f.line, f.name,
					fmt.Sprintf("field has no %s%s direction annotation", f.name, annotationSuffix))
			}
		}

		mod.Ports = append(mod.Ports, model.Port{
			Name:       f.name,
			Direction:  dir,
			Semantic:   info.Semantic,
			Width:      copyWidth(info),
			NativeType: info.Native,
			Line:       f.line,
		})
	}

	if len(mod.Ports) == 0 {
		Logger().Warn("payload exposes no ports", zap.String("struct", req.StructName), zap.String("file", req.File))
	}
	return mod, nil
}

// findStructBody walks the tree for "typedef struct {...} name;" or
// "struct name {...};" and returns the field list node
func findStructBody(node *sitter.Node, source []byte, name string) *sitter.Node {
	if node == nil {
		return nil
	}

	switch node.Type() {
	case "type_definition":
		typeNode := node.ChildByFieldName("type")
		if typeNode != nil && typeNode.Type() == "struct_specifier" {
			for i := 0; i < int(node.ChildCount()); i++ {
				if node.FieldNameForChild(i) != "declarator" {
					continue
				}
				if node.Child(i).Content(source) == name {
					if body := typeNode.ChildByFieldName("body"); body != nil {
						return body
					}
				}
			}
		}

	case "struct_specifier":
		nameNode := node.ChildByFieldName("name")
		body := node.ChildByFieldName("body")
		if nameNode != nil && body != nil && nameNode.Content(source) == name {
			return body
		}
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		if found := findStructBody(node.Child(i), source, name); found != nil {
			return found
		}
	}
	return nil
}

// collectFields lists the members of a field_declaration_list in order.
// "int a, b;" yields two fields.
func collectFields(body *sitter.Node, source []byte) []payloadField {
	var fields []payloadField
	for i := 0; i < int(body.NamedChildCount()); i++ {
		decl := body.NamedChild(i)
		if decl.Type() != "field_declaration" {
			continue
		}
		typeNode := decl.ChildByFieldName("type")
		if typeNode == nil {
			continue
		}
		typ := typeNode.Content(source)

		var value string
		if v := decl.ChildByFieldName("default_value"); v != nil {
			value = strings.TrimSpace(v.Content(source))
		}

		for j := 0; j < int(decl.ChildCount()); j++ {
			if decl.FieldNameForChild(j) != "declarator" {
				continue
			}
			d := decl.Child(j)
			f := payloadField{
				typ:   typ,
				value: value,
				line:  int(d.StartPoint().Row) + 1,
			}
			switch d.Type() {
			case "field_identifier":
				f.name = d.Content(source)
				f.scalar = true
			default:
				f.name = declaratorName(d, source)
				f.reason = strings.TrimSuffix(d.Type(), "_declarator") + " declarator"
			}
			if f.name != "" {
				fields = append(fields, f)
			}
		}
	}
	return fields
}

// declaratorName digs the identifier out of a nested declarator
func declaratorName(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	if node.Type() == "field_identifier" || node.Type() == "identifier" {
		return node.Content(source)
	}
	if inner := node.ChildByFieldName("declarator"); inner != nil {
		return declaratorName(inner, source)
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		if name := declaratorName(node.NamedChild(i), source); name != "" {
			return name
		}
	}
	return ""
}

// ClassMethods reports whether the header declares a class or struct
// named className, and which member functions it declares or defines
func (e *Extractor) ClassMethods(ctx context.Context, content []byte, className string) (found bool, methods []string, err error) {
	tree, err := e.parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return false, nil, fmt.Errorf("parsing: %w", err)
	}
	defer tree.Close()

	body := findClassBody(tree.RootNode(), content, className)
	if body == nil {
		return false, nil, nil
	}

	for i := 0; i < int(body.NamedChildCount()); i++ {
		member := body.NamedChild(i)
		switch member.Type() {
		case "field_declaration", "function_definition", "declaration":
		default:
			continue
		}
		d := member.ChildByFieldName("declarator")
		for d != nil && d.Type() != "function_declarator" {
			// pointer/reference return types wrap the function declarator
			d = d.ChildByFieldName("declarator")
		}
		if d == nil {
			continue
		}
		if name := d.ChildByFieldName("declarator"); name != nil {
			methods = append(methods, name.Content(content))
		}
	}
	return true, methods, nil
}

func findClassBody(node *sitter.Node, src []byte, name string) *sitter.Node {
	if node == nil {
		return nil
	}
	switch node.Type() {
	case "class_specifier", "struct_specifier":
		nameNode := node.ChildByFieldName("name")
		body := node.ChildByFieldName("body")
		if nameNode != nil && body != nil && nameNode.Content(src) == name {
			return body
		}
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		if found := findClassBody(node.Child(i), src, name); found != nil {
			return found
		}
	}
	return nil
}
