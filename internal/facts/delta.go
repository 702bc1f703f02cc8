package facts

import "strconv"

// Delta captures added and removed fact rows between two snapshots.
type Delta struct {
	Added   Tables `json:"added"`
	Removed Tables `json:"removed"`
}

// Empty reports whether the snapshots had identical rows
func (d Delta) Empty() bool {
	return d.Added.rows() == 0 && d.Removed.rows() == 0
}

// ComputeDelta computes row-level additions and removals between two snapshots.
func ComputeDelta(prev, next Tables) Delta {
	return Delta{
		Added:   diffTables(prev, next),
		Removed: diffTables(next, prev),
	}
}

func diffTables(from, to Tables) Tables {
	out := emptyTables()

	out.Variables = diffRows(from.Variables, to.Variables, variableKey)
	out.Functions = diffRows(from.Functions, to.Functions, func(r FunctionRow) string {
		return r.Name + "|" + r.Return + "|" + r.File
	})
	out.Dispatch = diffRows(from.Dispatch, to.Dispatch, func(r DispatchRow) string {
		return r.Function + "|" + refKey(r.Ref) + "|" + r.Field
	})
	out.Artifacts = diffRows(from.Artifacts, to.Artifacts, func(r ArtifactRow) string {
		return r.Path + "|" + r.Digest
	})
	out.Sources = diffRows(from.Sources, to.Sources, func(r SourceRow) string {
		return r.Path + "|" + r.Digest
	})

	return out
}

func emptyTables() Tables {
	return Tables{
		Variables: []VariableRow{},
		Functions: []FunctionRow{},
		Dispatch:  []DispatchRow{},
		Artifacts: []ArtifactRow{},
		Sources:   []SourceRow{},
	}
}

func (t Tables) rows() int {
	return len(t.Variables) + len(t.Functions) + len(t.Dispatch) + len(t.Artifacts) + len(t.Sources)
}

// Line numbers are not part of the key: moving a declaration without
// changing it is not a change of the generated unit.
func variableKey(r VariableRow) string {
	return r.Name + "|" + refKey(r.Ref) + "|" + r.Tag + "|" + r.Causality + "|" + r.Variability + "|" + r.NativeType + "|" + r.Ident
}

func diffRows[T any](from, to []T, key func(T) string) []T {
	fromSet := make(map[string]T, len(from))
	for _, row := range from {
		fromSet[key(row)] = row
	}
	var diff []T
	for _, row := range to {
		rowKey := key(row)
		if _, ok := fromSet[rowKey]; !ok {
			diff = append(diff, row)
		}
	}
	if diff == nil {
		diff = []T{}
	}
	return diff
}

func refKey(v uint32) string {
	return strconv.FormatUint(uint64(v), 10)
}

// Change is one port whose generated interface differs between snapshots
type Change struct {
	Name string `json:"name"`
	// Kind is "added", "removed" or "changed"
	Kind   string `json:"kind"`
	OldRef uint32 `json:"old_ref,omitempty"`
	NewRef uint32 `json:"new_ref,omitempty"`
	OldTag string `json:"old_tag,omitempty"`
	NewTag string `json:"new_tag,omitempty"`
}

// Drift reports variables whose value reference or tag changed, and
// variables present in only one snapshot. A drifted variable breaks any
// importer compiled against the previous model description.
func Drift(prev, next Tables) []Change {
	var changes []Change
	for _, n := range next.Variables {
		p, ok := prev.Variable(n.Name)
		if !ok {
			changes = append(changes, Change{Name: n.Name, Kind: "added", NewRef: n.Ref, NewTag: n.Tag})
			continue
		}
		if p.Ref != n.Ref || p.Tag != n.Tag {
			changes = append(changes, Change{
				Name:   n.Name,
				Kind:   "changed",
				OldRef: p.Ref,
				NewRef: n.Ref,
				OldTag: p.Tag,
				NewTag: n.Tag,
			})
		}
	}
	for _, p := range prev.Variables {
		if _, ok := next.Variable(p.Name); !ok {
			changes = append(changes, Change{Name: p.Name, Kind: "removed", OldRef: p.Ref, OldTag: p.Tag})
		}
	}
	return changes
}
