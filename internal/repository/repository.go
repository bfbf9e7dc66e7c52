package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shreemayahome-lgtm/tutor-managment-system/internal/model"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const accountColumns = `id, email, name, role, password_hash, created_at, updated_at`

func scanAccount(row pgx.Row) (model.Account, error) {
	var account model.Account
	err := row.Scan(
		&account.ID,
		&account.Email,
		&account.Name,
		&account.Role,
		&account.PasswordHash,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	return account, err
}

func (s *Store) GetAccountByEmail(ctx context.Context, email string) (model.Account, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE email = $1
	`, email)
	return scanAccount(row)
}

func (s *Store) GetAccountByID(ctx context.Context, accountID string) (model.Account, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = $1
	`, accountID)
	return scanAccount(row)
}

// GetRole resolves an account's role from storage. Privileged handlers
// call this on every request instead of trusting the token's role claim.
func (s *Store) GetRole(ctx context.Context, accountID string) (model.Role, error) {
	var role model.Role
	row := s.pool.QueryRow(ctx, `SELECT role FROM accounts WHERE id = $1`, accountID)
	if err := row.Scan(&role); err != nil {
		return "", err
	}
	return role, nil
}

// CreateAccount inserts the account and its role profile in one
// transaction so a half-created tutor or student can never be observed.
func (s *Store) CreateAccount(ctx context.Context, account model.Account, tutor *model.TutorProfile, student *model.StudentProfile) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO accounts (id, email, name, role, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, account.ID, account.Email, account.Name, account.Role, account.PasswordHash, account.CreatedAt, account.UpdatedAt)
	if err != nil {
		return err
	}

	switch account.Role {
	case model.RoleTutor:
		profile := tutor
		if profile == nil {
			profile = &model.TutorProfile{}
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO tutor_profiles (account_id, subjects, qualification, experience_years, bio, is_verified)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, account.ID, profile.Subjects, profile.Qualification, profile.ExperienceYears, profile.Bio, profile.IsVerified)
	case model.RoleStudent:
		profile := student
		if profile == nil {
			profile = &model.StudentProfile{}
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO student_profiles (account_id, class, school, contact_number, board)
			VALUES ($1, $2, $3, $4, $5)
		`, account.ID, profile.Class, profile.School, profile.ContactNumber, profile.Board)
	}
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

type AccountUpdate struct {
	Name         *string
	PasswordHash *string
}

func (s *Store) UpdateAccount(ctx context.Context, accountID string, update AccountUpdate) (model.Account, error) {
	sets := []string{"updated_at = $1"}
	args := []interface{}{time.Now().UTC()}

	if update.Name != nil {
		args = append(args, *update.Name)
		sets = append(sets, fmt.Sprintf("name = $%d", len(args)))
	}
	if update.PasswordHash != nil {
		args = append(args, *update.PasswordHash)
		sets = append(sets, fmt.Sprintf("password_hash = $%d", len(args)))
	}

	args = append(args, accountID)
	query := fmt.Sprintf(`
		UPDATE accounts
		SET %s
		WHERE id = $%d
		RETURNING `+accountColumns,
		strings.Join(sets, ", "), len(args))
	return scanAccount(s.pool.QueryRow(ctx, query, args...))
}

func (s *Store) GetTutorProfile(ctx context.Context, accountID string) (model.TutorProfile, error) {
	var profile model.TutorProfile
	row := s.pool.QueryRow(ctx, `
		SELECT account_id, subjects, qualification, experience_years, bio, is_verified
		FROM tutor_profiles
		WHERE account_id = $1
	`, accountID)
	err := row.Scan(&profile.AccountID, &profile.Subjects, &profile.Qualification, &profile.ExperienceYears, &profile.Bio, &profile.IsVerified)
	return profile, err
}

func (s *Store) GetStudentProfile(ctx context.Context, accountID string) (model.StudentProfile, error) {
	var profile model.StudentProfile
	row := s.pool.QueryRow(ctx, `
		SELECT account_id, class, school, contact_number, board
		FROM student_profiles
		WHERE account_id = $1
	`, accountID)
	err := row.Scan(&profile.AccountID, &profile.Class, &profile.School, &profile.ContactNumber, &profile.Board)
	return profile, err
}

type TutorProfileUpdate struct {
	Subjects        *string
	Qualification   *string
	ExperienceYears *int
	Bio             *string
}

// UpdateTutorProfile writes only the provided fields so a profile save
// cannot clobber a concurrent verification toggle on the same row.
func (s *Store) UpdateTutorProfile(ctx context.Context, accountID string, update TutorProfileUpdate) error {
	var sets []string
	var args []interface{}

	if update.Subjects != nil {
		args = append(args, *update.Subjects)
		sets = append(sets, fmt.Sprintf("subjects = $%d", len(args)))
	}
	if update.Qualification != nil {
		args = append(args, *update.Qualification)
		sets = append(sets, fmt.Sprintf("qualification = $%d", len(args)))
	}
	if update.ExperienceYears != nil {
		args = append(args, *update.ExperienceYears)
		sets = append(sets, fmt.Sprintf("experience_years = $%d", len(args)))
	}
	if update.Bio != nil {
		args = append(args, *update.Bio)
		sets = append(sets, fmt.Sprintf("bio = $%d", len(args)))
	}
	if len(sets) == 0 {
		return nil
	}

	args = append(args, accountID)
	query := fmt.Sprintf(`UPDATE tutor_profiles SET %s WHERE account_id = $%d`, strings.Join(sets, ", "), len(args))
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

type StudentProfileUpdate struct {
	Class         *string
	School        *string
	ContactNumber *string
	Board         *string
}

func (s *Store) UpdateStudentProfile(ctx context.Context, accountID string, update StudentProfileUpdate) error {
	var sets []string
	var args []interface{}

	if update.Class != nil {
		args = append(args, *update.Class)
		sets = append(sets, fmt.Sprintf("class = $%d", len(args)))
	}
	if update.School != nil {
		args = append(args, *update.School)
		sets = append(sets, fmt.Sprintf("school = $%d", len(args)))
	}
	if update.ContactNumber != nil {
		args = append(args, *update.ContactNumber)
		sets = append(sets, fmt.Sprintf("contact_number = $%d", len(args)))
	}
	if update.Board != nil {
		args = append(args, *update.Board)
		sets = append(sets, fmt.Sprintf("board = $%d", len(args)))
	}
	if len(sets) == 0 {
		return nil
	}

	args = append(args, accountID)
	query := fmt.Sprintf(`UPDATE student_profiles SET %s WHERE account_id = $%d`, strings.Join(sets, ", "), len(args))
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (s *Store) SetTutorVerified(ctx context.Context, accountID string, verified bool) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE tutor_profiles
		SET is_verified = $1
		WHERE account_id = $2
	`, verified, accountID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

type TutorRecord struct {
	Account model.Account
	Profile model.TutorProfile
}

// ListTutors returns tutor accounts joined with their profiles. A
// non-empty filter matches the subjects field case-insensitively.
func (s *Store) ListTutors(ctx context.Context, subjectFilter string) ([]TutorRecord, error) {
	query := `
		SELECT a.id, a.email, a.name, a.role, a.password_hash, a.created_at, a.updated_at,
		       p.account_id, p.subjects, p.qualification, p.experience_years, p.bio, p.is_verified
		FROM accounts a
		JOIN tutor_profiles p ON p.account_id = a.id
		WHERE a.role = 'TUTOR'
	`
	var args []interface{}
	if subjectFilter != "" {
		args = append(args, "%"+subjectFilter+"%")
		query += fmt.Sprintf(" AND p.subjects ILIKE $%d", len(args))
	}
	query += " ORDER BY a.created_at"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tutors []TutorRecord
	for rows.Next() {
		var record TutorRecord
		if err := rows.Scan(
			&record.Account.ID, &record.Account.Email, &record.Account.Name, &record.Account.Role,
			&record.Account.PasswordHash, &record.Account.CreatedAt, &record.Account.UpdatedAt,
			&record.Profile.AccountID, &record.Profile.Subjects, &record.Profile.Qualification,
			&record.Profile.ExperienceYears, &record.Profile.Bio, &record.Profile.IsVerified,
		); err != nil {
			return nil, err
		}
		tutors = append(tutors, record)
	}
	return tutors, rows.Err()
}

func (s *Store) ListAccounts(ctx context.Context, limit int) ([]model.Account, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		ORDER BY created_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []model.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

func (s *Store) CountsByRole(ctx context.Context) (model.RoleCounts, error) {
	var counts model.RoleCounts
	row := s.pool.QueryRow(ctx, `
		SELECT
			count(*) FILTER (WHERE role = 'TUTOR'),
			count(*) FILTER (WHERE role = 'STUDENT'),
			count(*) FILTER (WHERE role = 'ADMIN')
		FROM accounts
	`)
	err := row.Scan(&counts.Tutors, &counts.Students, &counts.Admins)
	return counts, err
}
