package calendar

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/dukerupert/presenze/internal/attendance"
	"github.com/dukerupert/presenze/internal/dateutil"
)

// EditRequest is the content of the edit dialog. Date may be DD/MM/YYYY or
// YYYY-MM-DD.
type EditRequest struct {
	EmployeeID string `json:"employeeId" validate:"required"`
	Date       string `json:"date" validate:"required,attendance_date"`
	Status     string `json:"status" validate:"required,attendance_status"`
	Notes      string `json:"notes" validate:"max=500"`
}

// FieldError is a user-facing message for one invalid field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is returned before any network call when an edit is
// rejected locally.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	msgs := make([]string, 0, len(v))
	for _, e := range v {
		msgs = append(msgs, e.Field+": "+e.Message)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func (v ValidationErrors) ToMap() map[string]string {
	m := make(map[string]string, len(v))
	for _, e := range v {
		m[e.Field] = e.Message
	}
	return m
}

// IsValidation reports whether err carries ValidationErrors.
func IsValidation(err error) bool {
	var v ValidationErrors
	return errors.As(err, &v)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		return name
	})
	v.RegisterValidation("attendance_date", func(fl validator.FieldLevel) bool {
		return validDate(fl.Field().String())
	})
	v.RegisterValidation("attendance_status", func(fl validator.FieldLevel) bool {
		_, err := attendance.ParseRecordStatus(fl.Field().String())
		return err == nil
	})
	return v
}

func validDate(s string) bool {
	if dateutil.IsISO(s) {
		return dateutil.IsValidDisplayDate(dateutil.ToDisplay(s))
	}
	return dateutil.IsValidDisplayDate(s)
}

var fieldMessages = map[string]string{
	"employeeId/required":      "Seleziona un dipendente",
	"date/required":            "Inserisci una data",
	"date/attendance_date":     "Data non valida (GG/MM/AAAA)",
	"status/required":          "Seleziona uno stato",
	"status/attendance_status": "Stato non valido",
	"notes/max":                "Le note non possono superare 500 caratteri",
}

// Validate checks req and returns ValidationErrors, or nil.
func (req EditRequest) Validate() error {
	req.Status = strings.TrimSpace(req.Status)
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := make(ValidationErrors, 0, len(verrs))
	for _, fe := range verrs {
		msg, ok := fieldMessages[fe.Field()+"/"+fe.Tag()]
		if !ok {
			msg = "Valore non valido"
		}
		out = append(out, FieldError{Field: fe.Field(), Message: msg})
	}
	return out
}
