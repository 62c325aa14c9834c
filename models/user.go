package models

import "time"

type UserRole string

const (
	RoleStudent UserRole = "student"
	RoleGkvian  UserRole = "gkvian"
	RoleFetian  UserRole = "fetian"
	RoleFaculty UserRole = "faculty"
)

// SpecialRole grants access beyond the base role (scanning, publishing, admin).
type SpecialRole string

const (
	SpecialRoleAdmin            SpecialRole = "admin"
	SpecialRoleEventCoordinator SpecialRole = "event_coordinator"
	SpecialRoleVolunteer        SpecialRole = "volunteer"
	SpecialRoleCategoryLead     SpecialRole = "category_lead"
	SpecialRoleFinanceTeam      SpecialRole = "finance_team"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentVerified PaymentStatus = "verified"
	PaymentFailed   PaymentStatus = "failed"
)

type User struct {
	ID           int           `json:"id" db:"id"`
	Name         string        `json:"name" db:"name"`
	Email        string        `json:"email" db:"email"`
	JnanagniID   string        `json:"jnanagni_id" db:"jnanagni_id"`
	College      *string       `json:"college,omitempty" db:"college"`
	ContactNo    *string       `json:"contact_no,omitempty" db:"contact_no"`
	PasswordHash string        `json:"-" db:"password_hash"`
	Role         UserRole      `json:"role" db:"role"`
	SpecialRoles []SpecialRole `json:"special_roles" db:"special_roles"`
	IsVerified   bool          `json:"is_verified" db:"is_verified"`
	Payment      PaymentStatus `json:"payment_status" db:"payment_status"`
	CreatedAt    time.Time     `json:"created_at" db:"created_at"`
}

func (u *User) HasSpecialRole(role SpecialRole) bool {
	for _, r := range u.SpecialRoles {
		if r == role {
			return true
		}
	}
	return false
}

func (u *User) IsAdmin() bool {
	return u.HasSpecialRole(SpecialRoleAdmin)
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
