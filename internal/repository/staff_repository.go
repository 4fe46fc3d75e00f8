package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/escolardev/escolar-api/internal/models"
)

// StaffRepository handles persistence for staff members. Teachers carry
// a subject list in staff_subjects; employees carry education/skills
// columns on the staff row itself.
type StaffRepository struct {
	db *sqlx.DB
}

// NewStaffRepository constructs the repository.
func NewStaffRepository(db *sqlx.DB) *StaffRepository {
	return &StaffRepository{db: db}
}

const staffColumns = `id, cpf, full_name, email, password_hash, phone, address, work_hours,
birth_date, role, formation, education_level, skills, created_at, updated_at`

// List returns all staff members, optionally filtered by role.
func (r *StaffRepository) List(ctx context.Context, role models.StaffRole) ([]models.StaffMember, error) {
	query := fmt.Sprintf("SELECT %s FROM staff", staffColumns)
	var args []interface{}
	if role != "" {
		query += " WHERE role = $1"
		args = append(args, role)
	}
	query += " ORDER BY full_name"

	var rows []models.StaffRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list staff: %w", err)
	}

	members := make([]models.StaffMember, 0, len(rows))
	for _, row := range rows {
		var codes []string
		if row.Role == models.StaffRoleTeacher {
			var err error
			codes, err = r.subjectCodes(ctx, row.ID)
			if err != nil {
				return nil, err
			}
		}
		members = append(members, row.Member(codes))
	}
	return members, nil
}

// FindByID returns a staff member by primary key.
func (r *StaffRepository) FindByID(ctx context.Context, id string) (*models.StaffMember, error) {
	query := fmt.Sprintf(`SELECT %s FROM staff WHERE id = $1`, staffColumns)
	var row models.StaffRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, err
	}
	return r.fold(ctx, row)
}

// FindByEmail returns a staff member by email. Used by authentication.
func (r *StaffRepository) FindByEmail(ctx context.Context, email string) (*models.StaffMember, error) {
	query := fmt.Sprintf(`SELECT %s FROM staff WHERE email = $1`, staffColumns)
	var row models.StaffRow
	if err := r.db.GetContext(ctx, &row, query, email); err != nil {
		return nil, err
	}
	return r.fold(ctx, row)
}

// EmailExists checks whether another staff member already uses an email.
func (r *StaffRepository) EmailExists(ctx context.Context, email, excludeID string) (bool, error) {
	query := `SELECT 1 FROM staff WHERE email = $1`
	args := []interface{}{email}
	if excludeID != "" {
		query += ` AND id <> $2`
		args = append(args, excludeID)
	}
	query += ` LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check staff email: %w", err)
	}
	return true, nil
}

// Create persists a new staff member, including the teacher subject list
// when the member is a teacher.
func (r *StaffRepository) Create(ctx context.Context, member *models.StaffMember) error {
	member.ID = uuid.New().String()
	now := time.Now().UTC()
	member.CreatedAt = now
	member.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	row := flatten(member)
	const query = `INSERT INTO staff (id, cpf, full_name, email, password_hash, phone, address, work_hours,
birth_date, role, formation, education_level, skills, created_at, updated_at)
VALUES (:id, :cpf, :full_name, :email, :password_hash, :phone, :address, :work_hours,
:birth_date, :role, :formation, :education_level, :skills, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("create staff member: %w", err)
	}

	if member.Role == models.StaffRoleTeacher && member.Teacher != nil {
		if err := insertSubjects(ctx, tx, member.ID, member.Teacher.SubjectCodes); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}

// Update overwrites the mutable fields of a staff member and replaces
// the teacher subject list.
func (r *StaffRepository) Update(ctx context.Context, member *models.StaffMember) error {
	member.UpdatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	row := flatten(member)
	const query = `UPDATE staff SET cpf = :cpf, full_name = :full_name, email = :email,
phone = :phone, address = :address, work_hours = :work_hours, birth_date = :birth_date,
formation = :formation, education_level = :education_level, skills = :skills, updated_at = :updated_at
WHERE id = :id`
	res, err := tx.NamedExecContext(ctx, query, row)
	if err != nil {
		return fmt.Errorf("update staff member: %w", err)
	}
	if err := requireRow(res); err != nil {
		return err
	}

	if member.Role == models.StaffRoleTeacher {
		if _, err := tx.ExecContext(ctx, `DELETE FROM staff_subjects WHERE staff_id = $1`, member.ID); err != nil {
			return fmt.Errorf("clear staff subjects: %w", err)
		}
		if member.Teacher != nil {
			if err := insertSubjects(ctx, tx, member.ID, member.Teacher.SubjectCodes); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}

// UpdatePassword replaces the stored password hash.
func (r *StaffRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE staff SET password_hash = $2, updated_at = $3 WHERE id = $1`,
		id, passwordHash, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update staff password: %w", err)
	}
	return requireRow(res)
}

// Delete removes a staff member and their subject list.
func (r *StaffRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM staff_subjects WHERE staff_id = $1`, id); err != nil {
		return fmt.Errorf("delete staff subjects: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM staff WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete staff member: %w", err)
	}
	if err := requireRow(res); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}

func (r *StaffRepository) fold(ctx context.Context, row models.StaffRow) (*models.StaffMember, error) {
	var codes []string
	if row.Role == models.StaffRoleTeacher {
		var err error
		codes, err = r.subjectCodes(ctx, row.ID)
		if err != nil {
			return nil, err
		}
	}
	member := row.Member(codes)
	return &member, nil
}

func (r *StaffRepository) subjectCodes(ctx context.Context, staffID string) ([]string, error) {
	var codes []string
	err := r.db.SelectContext(ctx, &codes,
		`SELECT subject_code FROM staff_subjects WHERE staff_id = $1 ORDER BY subject_code`, staffID)
	if err != nil {
		return nil, fmt.Errorf("list staff subjects: %w", err)
	}
	return codes, nil
}

func insertSubjects(ctx context.Context, tx *sqlx.Tx, staffID string, codes []string) error {
	for _, code := range codes {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO staff_subjects (staff_id, subject_code) VALUES ($1, $2)`, staffID, code); err != nil {
			return fmt.Errorf("insert staff subject: %w", err)
		}
	}
	return nil
}

func flatten(member *models.StaffMember) models.StaffRow {
	row := models.StaffRow{
		ID:           member.ID,
		CPF:          member.CPF,
		FullName:     member.FullName,
		Email:        member.Email,
		PasswordHash: member.PasswordHash,
		Phone:        member.Phone,
		Address:      member.Address,
		WorkHours:    member.WorkHours,
		BirthDate:    member.BirthDate,
		Role:         member.Role,
		CreatedAt:    member.CreatedAt,
		UpdatedAt:    member.UpdatedAt,
	}
	if member.Teacher != nil {
		row.Formation = &member.Teacher.Formation
	}
	if member.Employee != nil {
		row.EducationLevel = &member.Employee.EducationLevel
		row.Skills = &member.Employee.Skills
	}
	return row
}
