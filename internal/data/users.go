package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// UsersStore performs user queries.
type UsersStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewUsersStore returns a UsersStore using the provided handle.
func NewUsersStore(db *sql.DB) *UsersStore {
	return &UsersStore{db: db, now: time.Now}
}

// FindOrCreateByPhone returns the user registered under phone, creating it
// with name when the phone is new. created reports whether this call inserted
// the row. An existing user's name is left untouched.
func (u *UsersStore) FindOrCreateByPhone(ctx context.Context, phone, name string) (user *User, created bool, err error) {
	user, err = u.GetUserByPhone(ctx, phone)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	createdAt := u.now().UTC()
	res, err := u.db.ExecContext(ctx,
		`INSERT INTO users (phone, name, created_at) VALUES (?, ?, ?)`,
		phone, name, toMillis(createdAt))
	if err != nil {
		if isUniqueViolation(err) {
			// Lost a race against a concurrent first login.
			user, err = u.GetUserByPhone(ctx, phone)
			return user, false, err
		}
		return nil, false, fmt.Errorf("create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, false, fmt.Errorf("create user: %w", err)
	}
	return &User{ID: id, Phone: phone, Name: name, CreatedAt: fromMillis(toMillis(createdAt))}, true, nil
}

// GetUserByPhone finds a user by phone.
func (u *UsersStore) GetUserByPhone(ctx context.Context, phone string) (*User, error) {
	return u.getUser(ctx, `SELECT id, phone, name, created_at FROM users WHERE phone = ?`, phone)
}

// GetUserByID finds a user by id.
func (u *UsersStore) GetUserByID(ctx context.Context, id int64) (*User, error) {
	return u.getUser(ctx, `SELECT id, phone, name, created_at FROM users WHERE id = ?`, id)
}

func (u *UsersStore) getUser(ctx context.Context, query string, arg any) (*User, error) {
	var (
		user      User
		createdAt int64
	)
	err := u.db.QueryRowContext(ctx, query, arg).Scan(&user.ID, &user.Phone, &user.Name, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	user.CreatedAt = fromMillis(createdAt)
	return &user, nil
}

// UserExists checks if a user with id exists.
func (u *UsersStore) UserExists(ctx context.Context, id int64) (bool, error) {
	var one int
	err := u.db.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = ?`, id).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("user exists: %w", err)
	}
	return true, nil
}

// ListContacts returns every user except userID, ordered by name.
func (u *UsersStore) ListContacts(ctx context.Context, userID int64) ([]Contact, error) {
	rows, err := u.db.QueryContext(ctx,
		`SELECT id, name, phone FROM users WHERE id != ? ORDER BY name, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	contacts := []Contact{}
	for rows.Next() {
		var c Contact
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone); err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	return contacts, nil
}
