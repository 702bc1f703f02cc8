package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/robert-at-pretension-io/scfmu/internal/config"
	"github.com/robert-at-pretension-io/scfmu/internal/facts"
	"github.com/robert-at-pretension-io/scfmu/internal/format"
	"github.com/robert-at-pretension-io/scfmu/internal/pipeline"
)

func main() {
	output := flag.String("output", "", "write facts JSON to file (default: stdout)")
	flag.StringVar(output, "o", "", "write facts JSON to file (shorthand)")
	manifest := flag.String("manifest", "", "read facts from a manifest instead of regenerating")
	ports := flag.String("ports", "", "comma-separated port names to keep (default: all rows)")
	deltaFrom := flag.String("delta-from", "", "previous facts JSON or manifest to compute delta from")
	deltaOut := flag.String("delta-out", "", "write delta JSON to file (requires --delta-from)")
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 && *manifest == "" {
		fmt.Fprintln(os.Stderr, "Usage: scfmu-facts [--output file] [--ports a,b] [--delta-from prev --delta-out delta.json] <config|dir>")
		fmt.Fprintln(os.Stderr, "       scfmu-facts --manifest scfmu.manifest [--output file]")
		os.Exit(1)
	}

	var (
		tables facts.Tables
		err    error
	)
	if *manifest != "" {
		tables, err = readTables(*manifest)
	} else {
		tables, err = generate(args[0])
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	names := portSet(*ports)
	if names != nil {
		tables = facts.FilterTablesByPorts(tables, names)
	}

	if *output != "" {
		if err := writeJSON(*output, tables); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing facts: %v\n", err)
			os.Exit(1)
		}
	} else {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(tables); err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding facts: %v\n", err)
			os.Exit(1)
		}
	}

	if *deltaFrom != "" || *deltaOut != "" {
		if *deltaFrom == "" || *deltaOut == "" {
			fmt.Fprintln(os.Stderr, "Error: --delta-from and --delta-out must be used together")
			os.Exit(1)
		}
		prev, err := readTables(*deltaFrom)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading delta-from: %v\n", err)
			os.Exit(1)
		}
		if names != nil {
			prev = facts.FilterTablesByPorts(prev, names)
		}
		delta := facts.ComputeDelta(prev, tables)
		if err := writeJSON(*deltaOut, delta); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing delta: %v\n", err)
			os.Exit(1)
		}
	}
}

// generate runs the pipeline in memory for the config file (or the
// directory holding one) at path. Nothing is written.
func generate(path string) (facts.Tables, error) {
	var (
		cfg *config.Config
		err error
	)
	if info, statErr := os.Stat(path); statErr == nil && !info.IsDir() {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load(path)
	}
	if err != nil {
		return facts.Tables{}, err
	}

	set, err := pipeline.New(cfg, pipeline.WithFormatter(format.None{})).Run(context.Background())
	if err != nil {
		return facts.Tables{}, err
	}
	return set.Manifest.Tables, nil
}

func portSet(list string) map[string]bool {
	if strings.TrimSpace(list) == "" {
		return nil
	}
	names := make(map[string]bool)
	for _, name := range strings.Split(list, ",") {
		if name = strings.TrimSpace(name); name != "" {
			names[name] = true
		}
	}
	return names
}

// readTables accepts either a binary manifest or a facts JSON dump
func readTables(path string) (facts.Tables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return facts.Tables{}, err
	}
	m, err := facts.Decode(data)
	if err == nil {
		return m.Tables, nil
	}
	if errors.Is(err, facts.ErrSchemaMismatch) {
		return facts.Tables{}, fmt.Errorf("%s: %w", path, err)
	}

	var tables facts.Tables
	if err := json.Unmarshal(data, &tables); err != nil {
		return facts.Tables{}, fmt.Errorf("%s is neither a manifest nor facts JSON: %w", path, err)
	}
	return tables, nil
}

func writeJSON(path string, data interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}
