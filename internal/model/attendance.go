package model

import "time"

// AttendanceRecord is the explicit attendance entry stored by the backend for
// one (employee, date) pair. Status holds one of "Ferie", "Assente" or
// "Permesso".
type AttendanceRecord struct {
	ID         string    `json:"id"`
	EmployeeID string    `json:"employeeId"`
	Date       string    `json:"date"`
	Status     string    `json:"status"`
	Notes      string    `json:"notes,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// UpsertAttendance is the body of PUT /api/attendance.
type UpsertAttendance struct {
	EmployeeID string `json:"employeeId"`
	Date       string `json:"date"`
	Status     string `json:"status"`
	Notes      string `json:"notes,omitempty"`
}

// DailyReport marks that an employee submitted a work log for a date.
type DailyReport struct {
	ID         string    `json:"id"`
	EmployeeID string    `json:"employeeId"`
	Date       string    `json:"date"`
	CreatedAt  time.Time `json:"createdAt"`
}
