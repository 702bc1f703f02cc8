package facts

// FilterTablesByPorts returns a new Tables object containing only the rows
// that concern the named variables: their variable rows and the dispatch
// cases that serve them. Function and artifact rows are not per port and
// are left out.
func FilterTablesByPorts(tables Tables, names map[string]bool) Tables {
	out := emptyTables()
	if len(names) == 0 {
		return out
	}

	for _, row := range tables.Variables {
		if names[row.Name] {
			out.Variables = append(out.Variables, row)
		}
	}
	for _, row := range tables.Dispatch {
		if names[row.Field] {
			out.Dispatch = append(out.Dispatch, row)
		}
	}

	return out
}

// FilterDeltaByPorts returns a new Delta containing only rows for the named ports.
func FilterDeltaByPorts(delta Delta, names map[string]bool) Delta {
	return Delta{
		Added:   FilterTablesByPorts(delta.Added, names),
		Removed: FilterTablesByPorts(delta.Removed, names),
	}
}
