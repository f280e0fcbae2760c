package staff

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/MaxymChyncha/house-security-system/internal/access"
	"github.com/MaxymChyncha/house-security-system/pkg/database"
)

// Repository defines the staff repository interface. Lookups take a
// visibility filter; a user outside it is reported as ErrUserNotFound.
type Repository interface {
	// Create inserts the user and attaches it to its role group in one
	// transaction.
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id int64, filter access.Filter) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	List(ctx context.Context, filter access.Filter, role access.Role) ([]*User, error)
	// Update writes every column; when roleChanged the group membership is
	// replaced in the same transaction.
	Update(ctx context.Context, user *User, roleChanged bool) error
	Delete(ctx context.Context, id int64) error
}

const userColumns = `u.id, u.username, u.email, u.password_hash, u.first_name, u.last_name, u.role, u.is_active, u.date_joined`

type repository struct {
	db *database.DB
}

// NewRepository creates a new staff repository
func NewRepository(db *database.DB) Repository {
	return &repository{db: db}
}

// filterClause renders the visibility filter as a predicate on alias u
func filterClause(filter access.Filter, next int) (string, []interface{}) {
	switch filter.Relation {
	case access.RelationAny:
		return "TRUE", nil
	case access.RelationSelf:
		return fmt.Sprintf("u.id = $%d", next), []interface{}{filter.UserID}
	default:
		return "FALSE", nil
	}
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row scanner) (*User, error) {
	var u User
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.FirstName,
		&u.LastName,
		&u.Role,
		&u.IsActive,
		&u.DateJoined,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func mapWriteError(err error) error {
	if ce, ok := database.AsConstraintError(err); ok && ce.Kind == database.ConstraintUnique && ce.Constraint == "users_username_key" {
		return ErrUsernameTaken
	}
	return err
}

// attachGroup links the user to the group named after its role. Zero
// inserted rows means the group is missing.
func attachGroup(ctx context.Context, tx *sql.Tx, userID int64, role access.Role) error {
	result, err := tx.ExecContext(ctx, `
		INSERT INTO user_groups (user_id, group_name)
		SELECT $1, name FROM role_groups WHERE name = $2
	`, userID, role.Group())
	if err != nil {
		return fmt.Errorf("failed to attach role group: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrGroupNotFound
	}
	return nil
}

// Create inserts a user and its group membership atomically
func (r *repository) Create(ctx context.Context, user *User) error {
	return database.WithTx(ctx, r.db.DB, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO users (username, email, password_hash, first_name, last_name, role, is_active)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id, date_joined
		`,
			user.Username,
			user.Email,
			user.PasswordHash,
			user.FirstName,
			user.LastName,
			user.Role,
			user.IsActive,
		).Scan(&user.ID, &user.DateJoined)
		if err != nil {
			if mapped := mapWriteError(err); mapped != err {
				return mapped
			}
			return fmt.Errorf("failed to create user: %w", err)
		}

		return attachGroup(ctx, tx, user.ID, user.Role)
	})
}

// GetByID retrieves a user by ID within the filter
func (r *repository) GetByID(ctx context.Context, id int64, filter access.Filter) (*User, error) {
	clause, args := filterClause(filter, 2)
	query := `SELECT ` + userColumns + ` FROM users u WHERE u.id = $1 AND ` + clause

	user, err := scanUser(r.db.QueryRowContext(ctx, query, append([]interface{}{id}, args...)...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetByUsername retrieves a user for authentication
func (r *repository) GetByUsername(ctx context.Context, username string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users u WHERE u.username = $1`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, username))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// List returns the users within the filter, optionally of one role
func (r *repository) List(ctx context.Context, filter access.Filter, role access.Role) ([]*User, error) {
	clause, args := filterClause(filter, 1)
	conditions := []string{clause}
	if role.Valid() {
		args = append(args, role)
		conditions = append(conditions, fmt.Sprintf("u.role = $%d", len(args)))
	}

	query := `SELECT ` + userColumns + ` FROM users u WHERE ` + strings.Join(conditions, " AND ") + ` ORDER BY u.id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []*User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}

	return users, nil
}

// Update writes the user and, on a role change, swaps its group
func (r *repository) Update(ctx context.Context, user *User, roleChanged bool) error {
	return database.WithTx(ctx, r.db.DB, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE users
			SET username = $1, email = $2, password_hash = $3, first_name = $4, last_name = $5, role = $6, is_active = $7
			WHERE id = $8
		`,
			user.Username,
			user.Email,
			user.PasswordHash,
			user.FirstName,
			user.LastName,
			user.Role,
			user.IsActive,
			user.ID,
		)
		if err != nil {
			if mapped := mapWriteError(err); mapped != err {
				return mapped
			}
			return fmt.Errorf("failed to update user: %w", err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rows == 0 {
			return ErrUserNotFound
		}

		if !roleChanged {
			return nil
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM user_groups WHERE user_id = $1`, user.ID); err != nil {
			return fmt.Errorf("failed to detach role group: %w", err)
		}
		return attachGroup(ctx, tx, user.ID, user.Role)
	})
}

// Delete removes a user. Buildings and entrances referencing it keep existing
// with the reference cleared by the schema.
func (r *repository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}
