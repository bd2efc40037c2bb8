package attendance

import "fmt"

// Status is the display state of an employee on a date. The zero value is
// not a valid status.
type Status uint8

const (
	Presente Status = iota + 1
	Ferie
	Assente
	Permesso
	NonRegistrato
)

var statusLabels = [...]string{
	Presente:      "Presente",
	Ferie:         "Ferie",
	Assente:       "Assente",
	Permesso:      "Permesso",
	NonRegistrato: "Non registrato",
}

// Statuses lists every display status in presentation order.
func Statuses() []Status {
	return []Status{Presente, Ferie, Assente, Permesso, NonRegistrato}
}

// RecordStatuses lists the statuses that can be stored on an attendance
// record. Presente is always derived from a daily report and Non registrato
// is the absence of data.
func RecordStatuses() []Status {
	return []Status{Ferie, Assente, Permesso}
}

func (s Status) Valid() bool {
	return s >= Presente && s <= NonRegistrato
}

// Storable reports whether s may be stored on an attendance record.
func (s Status) Storable() bool {
	return s == Ferie || s == Assente || s == Permesso
}

func (s Status) String() string {
	if !s.Valid() {
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
	return statusLabels[s]
}

// Slug is a CSS-friendly identifier for the status.
func (s Status) Slug() string {
	switch s {
	case Presente:
		return "presente"
	case Ferie:
		return "ferie"
	case Assente:
		return "assente"
	case Permesso:
		return "permesso"
	case NonRegistrato:
		return "non-registrato"
	}
	return "invalid"
}

// ParseStatus maps a display label to its Status.
func ParseStatus(label string) (Status, error) {
	for _, s := range Statuses() {
		if statusLabels[s] == label {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown attendance status %q", label)
}

// ParseRecordStatus parses a status stored on an attendance record.
func ParseRecordStatus(label string) (Status, error) {
	s, err := ParseStatus(label)
	if err != nil {
		return 0, err
	}
	if !s.Storable() {
		return 0, fmt.Errorf("status %q cannot be stored on an attendance record", label)
	}
	return s, nil
}

func (s Status) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("marshal invalid attendance status %d", uint8(s))
	}
	return []byte(statusLabels[s]), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	v, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
