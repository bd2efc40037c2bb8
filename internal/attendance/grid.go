package attendance

// Grid indexes a derived entry list for rendering.
type Grid struct {
	Entries []Entry
	index   map[key]int
}

// Row is one employee's entries across the visible dates.
type Row struct {
	EmployeeID   string
	EmployeeName string
	Days         []Entry
	Summary      Summary
}

// Summary counts an employee's days per status.
type Summary map[Status]int

// NewGrid wraps entries produced by Derive.
func NewGrid(entries []Entry) *Grid {
	g := &Grid{Entries: entries, index: make(map[key]int, len(entries))}
	for i, e := range entries {
		g.index[key{e.EmployeeID, e.Date}] = i
	}
	return g
}

// Lookup returns the entry for an employee on a date.
func (g *Grid) Lookup(employeeID, date string) (Entry, bool) {
	i, ok := g.index[key{employeeID, date}]
	if !ok {
		return Entry{}, false
	}
	return g.Entries[i], true
}

// Rows regroups the entries per employee, keeping the first-seen employee
// order and date order.
func (g *Grid) Rows() []Row {
	var rows []Row
	pos := make(map[string]int)
	for _, e := range g.Entries {
		i, ok := pos[e.EmployeeID]
		if !ok {
			i = len(rows)
			pos[e.EmployeeID] = i
			rows = append(rows, Row{EmployeeID: e.EmployeeID, EmployeeName: e.EmployeeName, Summary: Summary{}})
		}
		rows[i].Days = append(rows[i].Days, e)
		rows[i].Summary[e.Status]++
	}
	return rows
}

// Summarize counts statuses for each employee.
func Summarize(entries []Entry) map[string]Summary {
	out := make(map[string]Summary)
	for _, e := range entries {
		s, ok := out[e.EmployeeID]
		if !ok {
			s = Summary{}
			out[e.EmployeeID] = s
		}
		s[e.Status]++
	}
	return out
}
