package model

// RoleEmployee is the only role shown in the attendance calendar.
const RoleEmployee = "employee"

// User is an account as returned by the backend user listing.
type User struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role"`
}

// Employee is a user with role "employee".
type Employee = User

// Employees filters users down to those with the employee role, keeping the
// backend order.
func Employees(users []User) []Employee {
	out := make([]Employee, 0, len(users))
	for _, u := range users {
		if u.Role == RoleEmployee {
			out = append(out, u)
		}
	}
	return out
}
