package models

import "time"

// StaffRole discriminates the staff variant.
type StaffRole string

const (
	StaffRoleTeacher  StaffRole = "teacher"
	StaffRoleEmployee StaffRole = "employee"
)

// Valid returns true when the role is a supported value.
func (r StaffRole) Valid() bool {
	return r == StaffRoleTeacher || r == StaffRoleEmployee
}

// TeacherProfile holds the fields that only apply to teaching staff.
type TeacherProfile struct {
	Formation    string   `json:"formation"`
	SubjectCodes []string `json:"subject_codes"`
}

// EmployeeProfile holds the fields that only apply to non-teaching staff.
type EmployeeProfile struct {
	EducationLevel string `json:"education_level"`
	Skills         string `json:"skills"`
}

// StaffMember is a school employee account. Exactly one of Teacher or
// Employee is set, matching Role.
type StaffMember struct {
	ID           string    `db:"id" json:"id"`
	CPF          string    `db:"cpf" json:"cpf"`
	FullName     string    `db:"full_name" json:"full_name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Phone        string    `db:"phone" json:"phone"`
	Address      string    `db:"address" json:"address"`
	WorkHours    string    `db:"work_hours" json:"work_hours"`
	BirthDate    time.Time `db:"birth_date" json:"birth_date"`
	Role         StaffRole `db:"role" json:"role"`

	Teacher  *TeacherProfile  `json:"teacher,omitempty"`
	Employee *EmployeeProfile `json:"employee,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// staffRow is the flat persisted shape; the repository folds it into the
// tagged variant above.
type StaffRow struct {
	ID             string    `db:"id"`
	CPF            string    `db:"cpf"`
	FullName       string    `db:"full_name"`
	Email          string    `db:"email"`
	PasswordHash   string    `db:"password_hash"`
	Phone          string    `db:"phone"`
	Address        string    `db:"address"`
	WorkHours      string    `db:"work_hours"`
	BirthDate      time.Time `db:"birth_date"`
	Role           StaffRole `db:"role"`
	Formation      *string   `db:"formation"`
	EducationLevel *string   `db:"education_level"`
	Skills         *string   `db:"skills"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// Member folds the flat row plus subject codes into the tagged variant.
func (r StaffRow) Member(subjectCodes []string) StaffMember {
	m := StaffMember{
		ID:           r.ID,
		CPF:          r.CPF,
		FullName:     r.FullName,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		Phone:        r.Phone,
		Address:      r.Address,
		WorkHours:    r.WorkHours,
		BirthDate:    r.BirthDate,
		Role:         r.Role,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	switch r.Role {
	case StaffRoleTeacher:
		profile := &TeacherProfile{SubjectCodes: subjectCodes}
		if r.Formation != nil {
			profile.Formation = *r.Formation
		}
		m.Teacher = profile
	case StaffRoleEmployee:
		profile := &EmployeeProfile{}
		if r.EducationLevel != nil {
			profile.EducationLevel = *r.EducationLevel
		}
		if r.Skills != nil {
			profile.Skills = *r.Skills
		}
		m.Employee = profile
	}
	return m
}
