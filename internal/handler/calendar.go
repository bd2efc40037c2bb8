package handler

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dukerupert/presenze/internal/attendance"
	"github.com/dukerupert/presenze/internal/calendar"
	"github.com/dukerupert/presenze/internal/dateutil"
	"github.com/dukerupert/presenze/internal/model"
	"github.com/dukerupert/presenze/internal/push"
)

// Calendar is the calendar service as the handlers use it.
type Calendar interface {
	Month(ctx context.Context, year int, month time.Month) (*calendar.MonthView, error)
	Save(ctx context.Context, req calendar.EditRequest) (*model.AttendanceRecord, error)
	Delete(ctx context.Context, employeeID, date string) error
}

// PushState reports the current push control state.
type PushState interface {
	State() push.State
}

type CalendarHandler struct {
	calendar  Calendar
	push      PushState
	templates *template.Template
	logger    *slog.Logger
}

func NewCalendarHandler(cal Calendar, pushState PushState, templates fs.FS, logger *slog.Logger) *CalendarHandler {
	tmpl := template.Must(template.New("").Funcs(templateFuncs).ParseFS(templates, "*.html"))
	return &CalendarHandler{
		calendar:  cal,
		push:      pushState,
		templates: tmpl,
		logger:    logger,
	}
}

var weekdayAbbr = [7]string{"Dom", "Lun", "Mar", "Mer", "Gio", "Ven", "Sab"}

var pushLabels = map[push.State]string{
	push.StateUnsupported:   "Notifiche non disponibili",
	push.StateChecking:      "Verifica notifiche…",
	push.StateUnsubscribed:  "Attiva notifiche",
	push.StateSubscribed:    "Disattiva notifiche",
	push.StateTransitioning: "Attendere…",
}

var templateFuncs = template.FuncMap{
	"weekday":     func(d time.Weekday) string { return weekdayAbbr[d] },
	"displayDate": dateutil.ToDisplay,
	"pushLabel":   func(s push.State) string { return pushLabels[s] },
	"abbr": func(s attendance.Status) string {
		switch s {
		case attendance.Presente:
			return "P"
		case attendance.Ferie:
			return "F"
		case attendance.Assente:
			return "A"
		case attendance.Permesso:
			return "PE"
		}
		return "·"
	},
}

// editForm is the edit dialog content when it is rendered open.
type editForm struct {
	EmployeeID   string
	EmployeeName string
	Date         string
	Status       string
	Notes        string
	Recorded     bool
}

type calendarPage struct {
	View           *calendar.MonthView
	Month          string
	Statuses       []attendance.Status
	RecordStatuses []attendance.Status
	Push           push.State
	Edit           *editForm
	Errors         map[string]string
	Notice         string
}

// Root handles GET /{$}
func (h *CalendarHandler) Root(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/calendar", http.StatusSeeOther)
}

// Page handles GET /calendar?month=YYYY-MM. With employee and date set the
// edit dialog is rendered open.
func (h *CalendarHandler) Page(w http.ResponseWriter, r *http.Request) {
	year, month, ok := monthParam(w, r)
	if !ok {
		return
	}
	view, err := h.calendar.Month(r.Context(), year, month)
	if err != nil {
		h.logger.Error("load month", "month", monthKey(year, month), "error", err)
		status, msg := errorStatus(err, msgLoadFailed)
		http.Error(w, msg, status)
		return
	}

	page := h.newPage(view)
	q := r.URL.Query()
	if emp, date := q.Get("employee"), q.Get("date"); emp != "" && date != "" {
		page.Edit = editFor(view, emp, dateutil.ToISO(date))
	}
	h.render(w, http.StatusOK, page)
}

// Month handles GET /api/calendar?month=YYYY-MM
func (h *CalendarHandler) Month(w http.ResponseWriter, r *http.Request) {
	year, month, ok := monthParam(w, r)
	if !ok {
		return
	}
	view, err := h.calendar.Month(r.Context(), year, month)
	if err != nil {
		h.logger.Error("load month", "month", monthKey(year, month), "error", err)
		writeDomainError(w, err, msgLoadFailed)
		return
	}
	writeJSON(w, http.StatusOK, newMonthResponse(view))
}

// Save handles PUT /api/attendance
func (h *CalendarHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req calendar.EditRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16<<10)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	rec, err := h.calendar.Save(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, msgSaveFailed)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Delete handles DELETE /api/attendance/{employeeId}/{date}
func (h *CalendarHandler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.calendar.Delete(r.Context(), r.PathValue("employeeId"), r.PathValue("date"))
	if err != nil {
		writeDomainError(w, err, msgDeleteFailed)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// FormSave handles POST /calendar/attendance from the edit dialog.
func (h *CalendarHandler) FormSave(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	req := calendar.EditRequest{
		EmployeeID: r.PostForm.Get("employeeId"),
		Date:       r.PostForm.Get("date"),
		Status:     r.PostForm.Get("status"),
		Notes:      r.PostForm.Get("notes"),
	}
	_, err := h.calendar.Save(r.Context(), req)
	h.afterForm(w, r, req, err, msgSaveFailed)
}

// FormDelete handles POST /calendar/attendance/delete from the edit dialog.
func (h *CalendarHandler) FormDelete(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	req := calendar.EditRequest{
		EmployeeID: r.PostForm.Get("employeeId"),
		Date:       r.PostForm.Get("date"),
		Status:     r.PostForm.Get("status"),
		Notes:      r.PostForm.Get("notes"),
	}
	err := h.calendar.Delete(r.Context(), req.EmployeeID, req.Date)
	h.afterForm(w, r, req, err, msgDeleteFailed)
}

// afterForm redirects back to the month on success and re-renders the page
// with the dialog open otherwise.
func (h *CalendarHandler) afterForm(w http.ResponseWriter, r *http.Request, req calendar.EditRequest, err error, fallback string) {
	monthStr := r.PostForm.Get("month")
	if err == nil {
		http.Redirect(w, r, "/calendar?month="+url.QueryEscape(redirectMonth(monthStr, req.Date)), http.StatusSeeOther)
		return
	}

	year, month, perr := dateutil.ParseMonth(redirectMonth(monthStr, req.Date))
	if perr != nil {
		now := dateutil.Now()
		year, month = now.Year(), now.Month()
	}
	view, verr := h.calendar.Month(r.Context(), year, month)
	if verr != nil {
		h.logger.Error("reload month after failed edit", "error", verr)
		status, msg := errorStatus(err, fallback)
		http.Error(w, msg, status)
		return
	}

	status, msg := errorStatus(err, fallback)
	page := h.newPage(view)
	page.Edit = editFor(view, req.EmployeeID, dateutil.ToISO(req.Date))
	page.Edit.Status = req.Status
	page.Edit.Notes = req.Notes

	var verrs calendar.ValidationErrors
	if errors.As(err, &verrs) {
		page.Errors = verrs.ToMap()
	} else {
		page.Notice = msg
		if status >= http.StatusInternalServerError {
			h.logger.Error("attendance form", "employee_id", req.EmployeeID, "date", req.Date, "error", err)
		}
	}
	h.render(w, status, page)
}

func (h *CalendarHandler) newPage(view *calendar.MonthView) *calendarPage {
	return &calendarPage{
		View:           view,
		Month:          monthKey(view.Year, view.Month),
		Statuses:       attendance.Statuses(),
		RecordStatuses: attendance.RecordStatuses(),
		Push:           h.push.State(),
	}
}

func (h *CalendarHandler) render(w http.ResponseWriter, status int, page *calendarPage) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.templates.ExecuteTemplate(w, "calendar", page); err != nil {
		h.logger.Error("render calendar", "error", err)
	}
}

func editFor(view *calendar.MonthView, employeeID, date string) *editForm {
	form := &editForm{EmployeeID: employeeID, Date: date}
	if e, ok := view.Lookup(employeeID, date); ok {
		form.EmployeeName = e.EmployeeName
		form.Notes = e.Notes
		form.Recorded = e.RecordID != ""
		if e.Status.Storable() {
			form.Status = e.Status.String()
		}
	}
	return form
}

// monthParam parses ?month=, defaulting to the current month.
func monthParam(w http.ResponseWriter, r *http.Request) (int, time.Month, bool) {
	raw := r.URL.Query().Get("month")
	if raw == "" {
		now := dateutil.Now()
		return now.Year(), now.Month(), true
	}
	year, month, err := dateutil.ParseMonth(raw)
	if err != nil {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			writeError(w, http.StatusBadRequest, "month must be YYYY-MM")
		} else {
			http.Error(w, "month must be YYYY-MM", http.StatusBadRequest)
		}
		return 0, 0, false
	}
	return year, month, true
}

func monthKey(year int, month time.Month) string {
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).Format("2006-01")
}

// redirectMonth prefers the month the form was posted from, then the
// edited date's month.
func redirectMonth(month, date string) string {
	if _, _, err := dateutil.ParseMonth(month); err == nil {
		return month
	}
	if t, err := dateutil.ParseISO(dateutil.ToISO(date)); err == nil {
		return t.Format("2006-01")
	}
	return dateutil.Now().Format("2006-01")
}

type dayJSON struct {
	Date    string `json:"date"`
	Display string `json:"display"`
	Weekend bool   `json:"weekend"`
	Today   bool   `json:"today"`
}

type monthResponse struct {
	Month     string                        `json:"month"`
	Title     string                        `json:"title"`
	Start     string                        `json:"start"`
	End       string                        `json:"end"`
	Prev      string                        `json:"prev"`
	Next      string                        `json:"next"`
	Days      []dayJSON                     `json:"days"`
	Employees []model.Employee              `json:"employees"`
	Entries   []attendance.Entry            `json:"entries"`
	Summary   map[string]attendance.Summary `json:"summary"`
}

func newMonthResponse(v *calendar.MonthView) monthResponse {
	days := make([]dayJSON, len(v.Days))
	for i, d := range v.Days {
		days[i] = dayJSON{Date: d.ISO, Display: d.Display, Weekend: d.Weekend, Today: d.Today}
	}
	employees := v.Employees
	if employees == nil {
		employees = []model.Employee{}
	}
	entries := v.Entries
	if entries == nil {
		entries = []attendance.Entry{}
	}
	return monthResponse{
		Month:     monthKey(v.Year, v.Month),
		Title:     v.Title(),
		Start:     v.Start,
		End:       v.End,
		Prev:      v.Prev,
		Next:      v.Next,
		Days:      days,
		Employees: employees,
		Entries:   entries,
		Summary:   attendance.Summarize(v.Entries),
	}
}
