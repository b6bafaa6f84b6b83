package store

import (
	"database/sql"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/hbkim/iljeong/internal/model"
)

// Authentication failure causes. Callers map these to user-facing
// messages; each cause gets its own message rather than a generic one.
var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrWrongPassword   = errors.New("wrong password")
	ErrNotApproved     = errors.New("profile pending approval")
	ErrDuplicateTitle  = errors.New("position title already registered")
)

type ProfileStore struct {
	db *sql.DB
}

func NewProfileStore(db *sql.DB) *ProfileStore {
	return &ProfileStore{db: db}
}

func scanProfile(scanner interface{ Scan(...any) error }) (*model.Profile, error) {
	var p model.Profile
	var approved int
	err := scanner.Scan(&p.ID, &p.PositionTitle, &p.Role, &approved, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.IsApproved = approved != 0
	return &p, nil
}

const profileCols = `id, position_title, role, is_approved, created_at, updated_at`

// Create registers a new profile in the pending-approval state. The
// password is bcrypt-hashed before storage. Duplicate position titles
// are rejected with ErrDuplicateTitle before insert.
func (s *ProfileStore) Create(positionTitle, password, role string) (*model.Profile, error) {
	existing, err := s.GetByPositionTitle(positionTitle)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrDuplicateTitle
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	result, err := s.db.Exec(
		`INSERT INTO profiles (position_title, password_hash, role, is_approved) VALUES (?, ?, ?, 0)`,
		positionTitle, string(hash), role,
	)
	if err != nil {
		return nil, fmt.Errorf("insert profile: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

// Count returns the total number of profiles, approved or not.
func (s *ProfileStore) Count() (int64, error) {
	var n int64
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM profiles`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count profiles: %w", err)
	}
	return n, nil
}

func (s *ProfileStore) GetByID(id int64) (*model.Profile, error) {
	row := s.db.QueryRow(`SELECT `+profileCols+` FROM profiles WHERE id = ?`, id)
	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

func (s *ProfileStore) GetByPositionTitle(title string) (*model.Profile, error) {
	row := s.db.QueryRow(`SELECT `+profileCols+` FROM profiles WHERE position_title = ?`, title)
	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile by title: %w", err)
	}
	return p, nil
}

// Authenticate verifies the credentials and the approval gate. The error
// distinguishes unknown title, wrong password, and pending approval.
// Unapproved profiles cannot authenticate regardless of role.
func (s *ProfileStore) Authenticate(positionTitle, password string) (*model.Profile, error) {
	var p model.Profile
	var approved int
	var hash string
	err := s.db.QueryRow(
		`SELECT id, position_title, role, is_approved, password_hash, created_at, updated_at
		 FROM profiles WHERE position_title = ?`,
		positionTitle,
	).Scan(&p.ID, &p.PositionTitle, &p.Role, &approved, &hash, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query profile: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return nil, ErrWrongPassword
	}
	if approved == 0 {
		return nil, ErrNotApproved
	}

	p.IsApproved = true
	return &p, nil
}

// ListPending returns unapproved profiles, oldest first, for the admin
// approval queue.
func (s *ProfileStore) ListPending() ([]model.Profile, error) {
	rows, err := s.db.Query(`SELECT ` + profileCols + ` FROM profiles WHERE is_approved = 0 ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("query pending profiles: %w", err)
	}
	defer rows.Close()

	var profiles []model.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		profiles = append(profiles, *p)
	}
	return profiles, rows.Err()
}

func (s *ProfileStore) Approve(id int64) (*model.Profile, error) {
	_, err := s.db.Exec(`UPDATE profiles SET is_approved = 1 WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("approve profile: %w", err)
	}
	return s.GetByID(id)
}

func (s *ProfileStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM profiles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	return nil
}
