package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/cpp"
)

// debug prints the tree-sitter C++ tree of a header, or of one struct or
// class in it, the way the payload extractor sees it.
func main() {
	name := flag.String("struct", "", "only dump the struct, class or typedef with this name")
	depth := flag.Int("depth", 0, "stop below this depth (0 = unlimited)")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: debug [--struct name] [--depth n] <header>")
		os.Exit(1)
	}

	source, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(cpp.GetLanguage())

	tree, err := parser.ParseCtx(context.Background(), nil, source)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing: %v\n", err)
		os.Exit(1)
	}
	defer tree.Close()
	root := tree.RootNode()

	if *name != "" {
		root = findNamed(root, source, *name)
		if root == nil {
			fmt.Printf("No struct, class or typedef named %s found\n", *name)
			os.Exit(1)
		}
	}
	dump(root, source, 0, *depth, "")
}

func findNamed(n *sitter.Node, source []byte, name string) *sitter.Node {
	switch n.Type() {
	case "struct_specifier", "class_specifier":
		if id := n.ChildByFieldName("name"); id != nil && id.Content(source) == name {
			return n
		}
	case "type_definition":
		if d := n.ChildByFieldName("declarator"); d != nil && d.Content(source) == name {
			return n
		}
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if found := findNamed(n.NamedChild(i), source, name); found != nil {
			return found
		}
	}
	return nil
}

func dump(n *sitter.Node, source []byte, level, maxDepth int, field string) {
	indent := strings.Repeat("  ", level)
	label := n.Type()
	if field != "" {
		label = field + ": " + label
	}
	if n.IsError() || n.IsMissing() {
		label += " !"
	}

	line := n.StartPoint().Row + 1
	if n.ChildCount() == 0 || (maxDepth > 0 && level >= maxDepth) {
		fmt.Printf("%s%s [%d] %q\n", indent, label, line, n.Content(source))
		return
	}
	fmt.Printf("%s%s [%d]\n", indent, label, line)
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if !child.IsNamed() {
			continue
		}
		dump(child, source, level+1, maxDepth, n.FieldNameForChild(i))
	}
}
