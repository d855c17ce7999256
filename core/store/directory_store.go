package store

import (
	"context"
	"database/sql"
	"errors"
)

var ErrUnknownUser = errors.New("unknown user")

// DirectoryUser is a row in the external user directory. The directory is
// authoritative; nothing here is ever written back.
type DirectoryUser struct {
	UserID      int64
	LoginName   string
	Email       string
	DisplayName string
	CustomerID  string
}

// Customer is a directory customer record, surfaced as the employee-side
// customer picker.
type Customer struct {
	CustomerID string `json:"customerId"`
	Name       string `json:"customerName"`
}

type DirectoryStore interface {
	// FindActiveUser returns the non-deleted directory row for a user id,
	// or ErrUnknownUser.
	FindActiveUser(ctx context.Context, userID int64) (*DirectoryUser, error)
	// UserRoles returns the user's current role names. Queried per request;
	// never cached.
	UserRoles(ctx context.Context, userID int64) ([]string, error)
	// ListCustomers returns every known customer, name order.
	ListCustomers(ctx context.Context) ([]Customer, error)
}

type directoryStore struct {
	db *sql.DB
}

func NewDirectoryStore(db *sql.DB) DirectoryStore {
	return &directoryStore{db: db}
}

func (s *directoryStore) FindActiveUser(ctx context.Context, userID int64) (*DirectoryUser, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT u.user_id, u.login_name, u.email, u.display_name, COALESCE(c.customer_id, '')
		FROM directory_users u
		LEFT JOIN directory_user_customers c ON c.login_name = u.login_name
		WHERE u.user_id=? AND u.is_deleted=0`, userID)
	u := DirectoryUser{}
	if err := row.Scan(&u.UserID, &u.LoginName, &u.Email, &u.DisplayName, &u.CustomerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUnknownUser
		}
		return nil, err
	}
	return &u, nil
}

func (s *directoryStore) UserRoles(ctx context.Context, userID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.role_name
		FROM directory_user_roles ur
		JOIN directory_roles r ON r.role_id = ur.role_id
		WHERE ur.user_id=?
		ORDER BY r.role_name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func (s *directoryStore) ListCustomers(ctx context.Context) ([]Customer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT customer_id, customer_name
		FROM directory_customers
		ORDER BY customer_name, customer_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Customer{}
	for rows.Next() {
		c := Customer{}
		if err := rows.Scan(&c.CustomerID, &c.Name); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
