package attendance

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/dukerupert/presenze/internal/dateutil"
	"github.com/dukerupert/presenze/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var mario = model.Employee{ID: "e1", FullName: "Mario Rossi", Role: model.RoleEmployee}

func TestDeriveEmptyMonth(t *testing.T) {
	days := dateutil.MonthDays(2024, time.June)
	entries := Derive([]model.Employee{mario}, nil, nil, days)

	require.Len(t, entries, 30)
	for i, e := range entries {
		assert.Equal(t, "e1", e.EmployeeID)
		assert.Equal(t, "Mario Rossi", e.EmployeeName)
		assert.Equal(t, days[i], e.Date)
		assert.Equal(t, NonRegistrato, e.Status)
		assert.False(t, e.HasDailyReport)
		assert.Empty(t, e.RecordID)
	}
}

func TestDeriveStoredStatus(t *testing.T) {
	created := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	records := []model.AttendanceRecord{{
		ID: "r1", EmployeeID: "e1", Date: "2024-06-05", Status: "Ferie", Notes: "mare",
		CreatedAt: created, UpdatedAt: created,
	}}

	g := NewGrid(Derive([]model.Employee{mario}, records, nil, dateutil.MonthDays(2024, time.June)))

	e, ok := g.Lookup("e1", "2024-06-05")
	require.True(t, ok)
	assert.Equal(t, Ferie, e.Status)
	assert.Equal(t, "mare", e.Notes)
	assert.Equal(t, "r1", e.RecordID)
	require.NotNil(t, e.CreatedAt)
	assert.True(t, e.CreatedAt.Equal(created))

	other, _ := g.Lookup("e1", "2024-06-06")
	assert.Equal(t, NonRegistrato, other.Status)
}

func TestDeriveReportOverridesRecord(t *testing.T) {
	records := []model.AttendanceRecord{{ID: "r1", EmployeeID: "e1", Date: "2024-06-05", Status: "Ferie"}}
	reports := []model.DailyReport{{ID: "d1", EmployeeID: "e1", Date: "2024-06-05"}}

	g := NewGrid(Derive([]model.Employee{mario}, records, reports, dateutil.MonthDays(2024, time.June)))

	e, ok := g.Lookup("e1", "2024-06-05")
	require.True(t, ok)
	assert.Equal(t, Presente, e.Status)
	assert.True(t, e.HasDailyReport)
	// The raw record is still exposed for the edit dialog.
	assert.Equal(t, "r1", e.RecordID)
}

func TestDeriveEveryStoredStatus(t *testing.T) {
	for _, s := range RecordStatuses() {
		records := []model.AttendanceRecord{{EmployeeID: "e1", Date: "2024-06-10", Status: s.String()}}
		entries := Derive([]model.Employee{mario}, records, nil, []string{"2024-06-10"})
		require.Len(t, entries, 1)
		assert.Equal(t, s, entries[0].Status)
	}
}

func TestDeriveUnknownStatusIsNotRecorded(t *testing.T) {
	records := []model.AttendanceRecord{
		{EmployeeID: "e1", Date: "2024-06-10", Status: "Smart working"},
		{EmployeeID: "e1", Date: "2024-06-11", Status: "Presente"},
	}
	entries := Derive([]model.Employee{mario}, records, nil, []string{"2024-06-10", "2024-06-11"})
	for _, e := range entries {
		assert.Equal(t, NonRegistrato, e.Status, e.Date)
	}
}

func TestDeriveDenseGrid(t *testing.T) {
	employees := []model.Employee{
		mario,
		{ID: "e2", FullName: "Luigi Verdi", Role: model.RoleEmployee},
		{ID: "e3", FullName: "Anna Bianchi", Role: model.RoleEmployee},
	}
	days := dateutil.MonthDays(2024, time.February)
	records := []model.AttendanceRecord{
		{EmployeeID: "e2", Date: "2024-02-29", Status: "Permesso"},
		// Outside the visible days: must not create extra entries.
		{EmployeeID: "e2", Date: "2024-03-01", Status: "Assente"},
		// Unknown employee.
		{EmployeeID: "ghost", Date: "2024-02-01", Status: "Assente"},
	}
	reports := []model.DailyReport{{EmployeeID: "e3", Date: "2024-02-14"}}

	entries := Derive(employees, records, reports, days)
	require.Len(t, entries, len(employees)*len(days))

	seen := make(map[string]bool)
	for _, e := range entries {
		k := e.EmployeeID + "|" + e.Date
		assert.False(t, seen[k], "duplicate entry %s", k)
		seen[k] = true
	}

	g := NewGrid(entries)
	e, _ := g.Lookup("e2", "2024-02-29")
	assert.Equal(t, Permesso, e.Status)
	e, _ = g.Lookup("e3", "2024-02-14")
	assert.Equal(t, Presente, e.Status)
	_, ok := g.Lookup("ghost", "2024-02-01")
	assert.False(t, ok)
}

func TestGridRows(t *testing.T) {
	employees := []model.Employee{mario, {ID: "e2", FullName: "Luigi Verdi"}}
	records := []model.AttendanceRecord{{EmployeeID: "e1", Date: "2024-06-03", Status: "Assente"}}
	reports := []model.DailyReport{
		{EmployeeID: "e1", Date: "2024-06-04"},
		{EmployeeID: "e2", Date: "2024-06-04"},
	}
	days := []string{"2024-06-03", "2024-06-04", "2024-06-05"}

	rows := NewGrid(Derive(employees, records, reports, days)).Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, "e1", rows[0].EmployeeID)
	assert.Equal(t, "e2", rows[1].EmployeeID)
	require.Len(t, rows[0].Days, 3)
	assert.Equal(t, "2024-06-03", rows[0].Days[0].Date)

	assert.Equal(t, 1, rows[0].Summary[Assente])
	assert.Equal(t, 1, rows[0].Summary[Presente])
	assert.Equal(t, 1, rows[0].Summary[NonRegistrato])
	assert.Equal(t, 2, rows[1].Summary[NonRegistrato])

	sums := Summarize(NewGrid(Derive(employees, records, reports, days)).Entries)
	assert.Equal(t, rows[0].Summary, sums["e1"])
}

func TestStatusText(t *testing.T) {
	for _, s := range Statuses() {
		got, err := ParseStatus(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	assert.Equal(t, "Non registrato", NonRegistrato.String())

	_, err := ParseRecordStatus("Presente")
	assert.Error(t, err)
	_, err = ParseRecordStatus("Non registrato")
	assert.Error(t, err)
	_, err = ParseStatus("")
	assert.Error(t, err)

	var zero Status
	assert.False(t, zero.Valid())
	_, err = json.Marshal(zero)
	assert.Error(t, err)

	data, err := json.Marshal(Entry{EmployeeID: "e1", Date: "2024-06-05", Status: Ferie})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"status":"Ferie"`)
}
