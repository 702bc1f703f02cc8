package emit

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/robert-at-pretension-io/scfmu/internal/model"
	"github.com/robert-at-pretension-io/scfmu/internal/tmpl"
)

var structSkeleton = tmpl.MustParse("struct.h", `// ${provenance}
#pragma once

#include "fmi3Functions.h"
#include "${header}"

struct ${struct_name} {
    // Variables of the FMU
${fields}
    // SystemC variables
    sc_time current_time;
${instance}${signals}};
`)

// Struct renders the adapter record: time, one field per port typed by
// its tag, the kernel time and the module instance, then any
// adapter-specific members
func (e *Emitter) Struct(l *model.Layout) (Artifact, error) {
	var fields strings.Builder
	time := model.TimeBinding()
	fmt.Fprintf(&fields, "    %s %s;\n", time.Tag.CType(), time.Port.Name)
	for _, b := range l.Bindings {
		fmt.Fprintf(&fields, "    %s %s;\n", b.Tag.CType(), b.Port.Name)
	}

	var signals strings.Builder
	if extra := e.adapter.Signals(l); len(extra) > 0 {
		signals.WriteString("\n    // signals declaration\n")
		writeLines(&signals, 1, extra)
	}

	content, err := structSkeleton.Render(map[string]string{
		"provenance":  Provenance,
		"header":      l.Module.Header,
		"struct_name": l.StructName,
		"fields":      strings.TrimSuffix(fields.String(), "\n"),
		"instance":    fmt.Sprintf("    %s *%s;\n", l.Module.Name, l.InstanceField),
		"signals":     signals.String(),
	})
	if err != nil {
		return Artifact{}, err
	}
	return Artifact{Path: filepath.ToSlash(e.cfg.StructOutputFilePath), Content: content, Formattable: true}, nil
}

// writeLines writes each line indented by depth levels of four spaces
func writeLines(b *strings.Builder, depth int, lines []string) {
	indent := strings.Repeat("    ", depth)
	for _, line := range lines {
		b.WriteString(indent)
		b.WriteString(line)
		b.WriteByte('\n')
	}
}
