// Package attendance derives the per-day display status of every employee
// from the raw lists returned by the backend.
package attendance

import (
	"log/slog"
	"time"

	"github.com/dukerupert/presenze/internal/model"
)

// Entry is the derived status of one employee on one date.
type Entry struct {
	EmployeeID     string     `json:"employeeId"`
	EmployeeName   string     `json:"employeeName"`
	Date           string     `json:"date"`
	Status         Status     `json:"status"`
	HasDailyReport bool       `json:"hasDailyReport"`
	Notes          string     `json:"notes,omitempty"`
	RecordID       string     `json:"recordId,omitempty"`
	CreatedAt      *time.Time `json:"createdAt,omitempty"`
	UpdatedAt      *time.Time `json:"updatedAt,omitempty"`
}

type key struct {
	employeeID string
	date       string
}

// Derive computes one Entry for every date × employee pair. Entries are
// ordered by date, then by the order of employees. A daily report always
// yields Presente; otherwise a stored record's status is used; otherwise the
// day is NonRegistrato.
func Derive(employees []model.Employee, records []model.AttendanceRecord, reports []model.DailyReport, days []string) []Entry {
	reported := make(map[key]struct{}, len(reports))
	for _, r := range reports {
		reported[key{r.EmployeeID, r.Date}] = struct{}{}
	}

	byKey := make(map[key]model.AttendanceRecord, len(records))
	for _, r := range records {
		byKey[key{r.EmployeeID, r.Date}] = r
	}

	entries := make([]Entry, 0, len(days)*len(employees))
	for _, day := range days {
		for _, emp := range employees {
			entries = append(entries, resolve(emp, day, reported, byKey))
		}
	}
	return entries
}

func resolve(emp model.Employee, day string, reported map[key]struct{}, records map[key]model.AttendanceRecord) Entry {
	k := key{emp.ID, day}
	e := Entry{
		EmployeeID:   emp.ID,
		EmployeeName: emp.FullName,
		Date:         day,
		Status:       NonRegistrato,
	}

	rec, hasRecord := records[k]
	if hasRecord {
		e.Notes = rec.Notes
		e.RecordID = rec.ID
		if !rec.CreatedAt.IsZero() {
			created := rec.CreatedAt
			e.CreatedAt = &created
		}
		if !rec.UpdatedAt.IsZero() {
			updated := rec.UpdatedAt
			e.UpdatedAt = &updated
		}
	}

	if _, ok := reported[k]; ok {
		e.HasDailyReport = true
		e.Status = Presente
		return e
	}

	if hasRecord {
		s, err := ParseRecordStatus(rec.Status)
		if err != nil {
			slog.Warn("ignoring attendance record with unknown status", "record_id", rec.ID, "status", rec.Status, "error", err)
			return e
		}
		e.Status = s
	}
	return e
}
