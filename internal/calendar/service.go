// Package calendar loads the monthly attendance grid and applies edits made
// in the edit dialog.
package calendar

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dukerupert/presenze/internal/attendance"
	"github.com/dukerupert/presenze/internal/auth"
	"github.com/dukerupert/presenze/internal/dateutil"
	"github.com/dukerupert/presenze/internal/model"
	"github.com/dukerupert/presenze/internal/query"
)

// ErrBusy is returned when the same (employee, date) already has a mutation
// in flight.
var ErrBusy = errors.New("an update for this day is already in progress")

// Query families cached by the service.
const (
	QueryEmployees    = "employees"
	QueryAttendance   = "attendance"
	QueryDailyReports = "daily-reports"
)

// API is the part of the backend client the calendar needs.
type API interface {
	ListEmployees(ctx context.Context) ([]model.Employee, error)
	ListAttendance(ctx context.Context, startDate, endDate string) ([]model.AttendanceRecord, error)
	ListDailyReports(ctx context.Context) ([]model.DailyReport, error)
	UpsertAttendance(ctx context.Context, req model.UpsertAttendance) (*model.AttendanceRecord, error)
	DeleteAttendance(ctx context.Context, employeeID, date string) error
}

// Change describes a successful mutation.
type Change struct {
	Action     string `json:"action"` // "saved" or "deleted"
	EmployeeID string `json:"employeeId"`
	Date       string `json:"date"`
	Status     string `json:"status,omitempty"`
}

// Service builds month views and forwards edits to the backend.
type Service struct {
	api      API
	cache    *query.Cache
	logger   *slog.Logger
	onChange func(Change)

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewService creates a calendar service. onChange may be nil.
func NewService(api API, cache *query.Cache, logger *slog.Logger, onChange func(Change)) *Service {
	return &Service{
		api:      api,
		cache:    cache,
		logger:   logger,
		onChange: onChange,
		inflight: make(map[string]struct{}),
	}
}

// Day is one column of the month grid.
type Day struct {
	ISO     string
	Display string
	Number  int
	Weekday time.Weekday
	Weekend bool
	Today   bool
}

// MonthView is everything needed to render a month.
type MonthView struct {
	Year      int
	Month     time.Month
	Start     string
	End       string
	Days      []Day
	Employees []model.Employee
	Entries   []attendance.Entry
	Rows      []attendance.Row
	Prev      string
	Next      string
	grid      *attendance.Grid
}

// Lookup returns the derived entry for an employee on an ISO date.
func (v *MonthView) Lookup(employeeID, date string) (attendance.Entry, bool) {
	return v.grid.Lookup(employeeID, date)
}

// Title is the month heading, e.g. "Giugno 2024".
func (v *MonthView) Title() string {
	return fmt.Sprintf("%s %d", monthNames[v.Month-1], v.Year)
}

var monthNames = [12]string{
	"Gennaio", "Febbraio", "Marzo", "Aprile", "Maggio", "Giugno",
	"Luglio", "Agosto", "Settembre", "Ottobre", "Novembre", "Dicembre",
}

// Month loads employees, attendance records and daily reports for the month
// and derives the grid.
func (s *Service) Month(ctx context.Context, year int, month time.Month) (*MonthView, error) {
	start, end := dateutil.MonthRange(year, month)
	scope := scopeOf(ctx)

	var (
		employees []model.Employee
		records   []model.AttendanceRecord
		reports   []model.DailyReport
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		employees, err = query.Fetch(gctx, s.cache, query.Key{QueryEmployees, scope}, s.api.ListEmployees)
		return err
	})
	g.Go(func() error {
		var err error
		records, err = query.Fetch(gctx, s.cache, query.Key{QueryAttendance, scope, start, end}, func(ctx context.Context) ([]model.AttendanceRecord, error) {
			return s.api.ListAttendance(ctx, start, end)
		})
		return err
	})
	g.Go(func() error {
		var err error
		reports, err = query.Fetch(gctx, s.cache, query.Key{QueryDailyReports, scope}, s.api.ListDailyReports)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load month %d-%02d: %w", year, int(month), err)
	}

	records = recordsInRange(records, start, end)
	reports = reportsInRange(reports, start, end)

	isoDays := dateutil.MonthDays(year, month)
	entries := attendance.Derive(employees, records, reports, isoDays)
	grid := attendance.NewGrid(entries)

	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	today := dateutil.TodayISO()
	days := make([]Day, len(isoDays))
	for i, iso := range isoDays {
		d := first.AddDate(0, 0, i)
		days[i] = Day{
			ISO:     iso,
			Display: dateutil.ToDisplay(iso),
			Number:  d.Day(),
			Weekday: d.Weekday(),
			Weekend: d.Weekday() == time.Saturday || d.Weekday() == time.Sunday,
			Today:   iso == today,
		}
	}

	return &MonthView{
		Year:      year,
		Month:     month,
		Start:     start,
		End:       end,
		Days:      days,
		Employees: employees,
		Entries:   entries,
		Rows:      grid.Rows(),
		Prev:      first.AddDate(0, -1, 0).Format("2006-01"),
		Next:      first.AddDate(0, 1, 0).Format("2006-01"),
		grid:      grid,
	}, nil
}

// Save validates req locally and upserts the record. Validation failures
// return ValidationErrors without contacting the backend.
func (s *Service) Save(ctx context.Context, req EditRequest) (*model.AttendanceRecord, error) {
	req.EmployeeID = strings.TrimSpace(req.EmployeeID)
	req.Date = strings.TrimSpace(req.Date)
	req.Status = strings.TrimSpace(req.Status)
	req.Notes = strings.TrimSpace(req.Notes)
	if err := req.Validate(); err != nil {
		return nil, err
	}

	date := dateutil.ToISO(req.Date)
	release, err := s.acquire(req.EmployeeID, date)
	if err != nil {
		return nil, err
	}
	defer release()

	rec, err := s.api.UpsertAttendance(ctx, model.UpsertAttendance{
		EmployeeID: req.EmployeeID,
		Date:       date,
		Status:     req.Status,
		Notes:      req.Notes,
	})
	if err != nil {
		s.logger.Error("save attendance", "employee_id", req.EmployeeID, "date", date, "error", err)
		return nil, err
	}

	s.invalidate(Change{Action: "saved", EmployeeID: req.EmployeeID, Date: date, Status: req.Status})
	return rec, nil
}

// Delete removes the explicit record for an employee on a date.
func (s *Service) Delete(ctx context.Context, employeeID, date string) error {
	employeeID = strings.TrimSpace(employeeID)
	date = strings.TrimSpace(date)

	var verrs ValidationErrors
	if employeeID == "" {
		verrs = append(verrs, FieldError{Field: "employeeId", Message: fieldMessages["employeeId/required"]})
	}
	if !validDate(date) {
		verrs = append(verrs, FieldError{Field: "date", Message: fieldMessages["date/attendance_date"]})
	}
	if len(verrs) > 0 {
		return verrs
	}

	date = dateutil.ToISO(date)
	release, err := s.acquire(employeeID, date)
	if err != nil {
		return err
	}
	defer release()

	if err := s.api.DeleteAttendance(ctx, employeeID, date); err != nil {
		s.logger.Error("delete attendance", "employee_id", employeeID, "date", date, "error", err)
		return err
	}

	s.invalidate(Change{Action: "deleted", EmployeeID: employeeID, Date: date})
	return nil
}

// invalidate drops both sources the derived status depends on.
func (s *Service) invalidate(c Change) {
	n := s.cache.Invalidate(QueryAttendance)
	n += s.cache.Invalidate(QueryDailyReports)
	s.logger.Debug("attendance changed", "action", c.Action, "employee_id", c.EmployeeID, "date", c.Date, "invalidated", n)
	if s.onChange != nil {
		s.onChange(c)
	}
}

func (s *Service) acquire(employeeID, date string) (func(), error) {
	k := employeeID + "|" + date
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[k]; busy {
		return nil, ErrBusy
	}
	s.inflight[k] = struct{}{}
	return func() {
		s.mu.Lock()
		delete(s.inflight, k)
		s.mu.Unlock()
	}, nil
}

// scopeOf keys cached lists by caller so users with different backend
// permissions never share results.
func scopeOf(ctx context.Context) string {
	token := auth.Token(ctx)
	if token == "" {
		return "agent"
	}
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:8])
}

func normalizeDate(s string) string {
	return dateutil.ToISO(dateutil.ToDisplay(s))
}

func recordsInRange(records []model.AttendanceRecord, start, end string) []model.AttendanceRecord {
	out := make([]model.AttendanceRecord, 0, len(records))
	for _, r := range records {
		r.Date = normalizeDate(r.Date)
		if r.Date >= start && r.Date <= end {
			out = append(out, r)
		}
	}
	return out
}

func reportsInRange(reports []model.DailyReport, start, end string) []model.DailyReport {
	out := make([]model.DailyReport, 0, len(reports))
	for _, r := range reports {
		r.Date = normalizeDate(r.Date)
		if r.Date >= start && r.Date <= end {
			out = append(out, r)
		}
	}
	return out
}
