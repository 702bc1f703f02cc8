package policy

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/open-policy-agent/opa/v1/rego"
	"go.uber.org/zap"

	"github.com/robert-at-pretension-io/scfmu/internal/generr"
	"github.com/robert-at-pretension-io/scfmu/internal/model"
)

//go:embed ports.rego
var portsModule string

const (
	violationsQuery = "data.scfmu.ports.violations"
	summaryQuery    = "data.scfmu.ports.summary"
)

// Severities reported by the rules
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
	SeverityInfo    = "info"
)

// Engine evaluates the port rules against a layout
type Engine struct {
	queries map[string]rego.PreparedEvalQuery
}

// Violation represents a policy violation
type Violation struct {
	Rule     string `json:"rule"`
	Severity string `json:"severity"`
	File     string `json:"file"`
	Line     int    `json:"line"`
	Port     string `json:"port"`
	Message  string `json:"message"`
}

// Result contains the evaluation results
type Result struct {
	Violations []Violation
	Summary    Summary
}

// Summary provides aggregate counts
type Summary struct {
	TotalViolations int `json:"total_violations"`
	Errors          int `json:"errors"`
	Warnings        int `json:"warnings"`
	Info            int `json:"info"`
}

// Input is the data structure passed to OPA
type Input struct {
	Module        string `json:"module"`
	Kind          string `json:"kind"`
	File          string `json:"file"`
	StructName    string `json:"struct_name"`
	InstanceField string `json:"instance_field"`
	Ports         []Port `json:"ports"`
}

// Port is one numbered port as the rules see it
type Port struct {
	Name      string `json:"name"`
	Direction string `json:"direction"`
	Tag       string `json:"tag"`
	Ref       uint32 `json:"ref"`
	Line      int    `json:"line"`
}

// InputFromLayout flattens a layout into rule input. The implicit time
// binding is not a port and is left out.
func InputFromLayout(l *model.Layout) Input {
	in := Input{
		Module:        l.Module.Name,
		Kind:          string(l.Module.Kind),
		File:          l.Module.File,
		StructName:    l.StructName,
		InstanceField: l.InstanceField,
		Ports:         make([]Port, 0, len(l.Bindings)),
	}
	for _, b := range l.Bindings {
		in.Ports = append(in.Ports, Port{
			Name:      b.Port.Name,
			Direction: string(b.Port.Direction),
			Tag:       b.Tag.String(),
			Ref:       uint32(b.Ref),
			Line:      b.Port.Line,
		})
	}
	return in
}

// New prepares the embedded port rules
func New(ctx context.Context) (*Engine, error) {
	engine := &Engine{
		queries: make(map[string]rego.PreparedEvalQuery),
	}
	module := rego.Module("ports.rego", portsModule)

	for name, q := range map[string]string{"violations": violationsQuery, "summary": summaryQuery} {
		query, err := rego.New(module, rego.Query(q)).PrepareForEval(ctx)
		if err != nil {
			return nil, fmt.Errorf("preparing %s query: %w", name, err)
		}
		engine.queries[name] = query
	}
	return engine, nil
}

// Evaluate runs the rules against the input data. Violations come back
// ordered by line, then rule.
func (e *Engine) Evaluate(ctx context.Context, input Input) (*Result, error) {
	// nil would reach the rules as null, and count(null) is undefined
	if input.Ports == nil {
		input.Ports = []Port{}
	}
	inputMap, err := structToMap(input)
	if err != nil {
		return nil, fmt.Errorf("converting input: %w", err)
	}

	result := &Result{}

	rs, err := e.queries["violations"].Eval(ctx, rego.EvalInput(inputMap))
	if err != nil {
		return nil, fmt.Errorf("evaluating violations: %w", err)
	}
	if len(rs) > 0 && len(rs[0].Expressions) > 0 {
		violations, ok := rs[0].Expressions[0].Value.([]interface{})
		if ok {
			for _, v := range violations {
				vmap, ok := v.(map[string]interface{})
				if !ok {
					continue
				}
				result.Violations = append(result.Violations, Violation{
					Rule:     getString(vmap, "rule"),
					Severity: getString(vmap, "severity"),
					File:     getString(vmap, "file"),
					Line:     getInt(vmap, "line"),
					Port:     getString(vmap, "port"),
					Message:  getString(vmap, "message"),
				})
			}
		}
	}
	sort.SliceStable(result.Violations, func(i, j int) bool {
		a, b := result.Violations[i], result.Violations[j]
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.Rule != b.Rule {
			return a.Rule < b.Rule
		}
		return a.Port < b.Port
	})

	rs, err = e.queries["summary"].Eval(ctx, rego.EvalInput(inputMap))
	if err != nil {
		return nil, fmt.Errorf("evaluating summary: %w", err)
	}
	if len(rs) > 0 && len(rs[0].Expressions) > 0 {
		smap, ok := rs[0].Expressions[0].Value.(map[string]interface{})
		if ok {
			result.Summary = Summary{
				TotalViolations: getInt(smap, "total_violations"),
				Errors:          getInt(smap, "errors"),
				Warnings:        getInt(smap, "warnings"),
				Info:            getInt(smap, "info"),
			}
		}
	}

	return result, nil
}

// Check evaluates a layout, logs warnings and info findings, and fails
// with a PolicyError naming the first error-severity violation.
func (e *Engine) Check(ctx context.Context, l *model.Layout) (*Result, error) {
	result, err := e.Evaluate(ctx, InputFromLayout(l))
	if err != nil {
		return nil, err
	}

	var first *Violation
	for i, v := range result.Violations {
		switch v.Severity {
		case SeverityError:
			if first == nil {
				first = &result.Violations[i]
			}
		case SeverityWarning:
			Logger().Warn("port policy", zap.String("rule", v.Rule),
				zap.String("port", v.Port), zap.String("file", v.File),
				zap.Int("line", v.Line), zap.String("message", v.Message))
		default:
			Logger().Debug("port policy", zap.String("rule", v.Rule), zap.String("message", v.Message))
		}
	}
	if first == nil {
		return result, nil
	}

	detail := fmt.Sprintf("%s: %s", first.Rule, first.Message)
	if more := result.Summary.Errors - 1; more > 0 {
		detail = fmt.Sprintf("%s (and %d more)", detail, more)
	}
	return result, generr.New(generr.KindPolicy).File(first.File).Line(first.Line).
		Construct(first.Port).Detail("%s", detail).Build()
}

// Helper functions
func structToMap(v interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var result map[string]interface{}
	err = json.Unmarshal(data, &result)
	return result, err
}

func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func getInt(m map[string]interface{}, key string) int {
	if v, ok := m[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case float64:
			return int(n)
		case json.Number:
			i, _ := n.Int64()
			return int(i)
		}
	}
	return 0
}
