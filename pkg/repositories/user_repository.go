package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-sales/pkg/models"
)

// UserRepository defines the interface for user data access.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	// GetByEmail matches case-insensitively; used to map SSO identities onto local users.
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
	Update(ctx context.Context, user *models.User) error
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	RecordLogin(ctx context.Context, id uuid.UUID, ip string) error
	Delete(ctx context.Context, id uuid.UUID) error
	CountActiveAdmins(ctx context.Context) (int, error)
}

// userRepository implements UserRepository using PostgreSQL.
type userRepository struct{}

// NewUserRepository creates a new user repository.
func NewUserRepository() UserRepository {
	return &userRepository{}
}

var _ UserRepository = (*userRepository)(nil)

const userColumns = `id, username, email, password_hash, first_name, last_name, role,
	department, employee_id, phone, is_active, last_login_at, last_login_ip,
	created_at, updated_at`

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	scope, err := getScope(ctx)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO users (username, email, password_hash, first_name, last_name, role,
		                   department, employee_id, phone, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`

	err = scope.Conn.QueryRow(ctx, query,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.Role,
		user.Department,
		user.EmployeeID,
		user.Phone,
		user.IsActive,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	return wrapErr("create user", err)
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE lower(email) = lower($1) AND email <> ''
		ORDER BY created_at
		LIMIT 1`, email)
}

func (r *userRepository) getOne(ctx context.Context, query string, arg any) (*models.User, error) {
	scope, err := getScope(ctx)
	if err != nil {
		return nil, err
	}

	user, err := scanUser(scope.Conn.QueryRow(ctx, query, arg))
	if err != nil {
		return nil, wrapErr("get user", err)
	}
	return user, nil
}

func (r *userRepository) List(ctx context.Context) ([]*models.User, error) {
	scope, err := getScope(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := scope.Conn.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY username`)
	if err != nil {
		return nil, wrapErr("list users", err)
	}
	defer rows.Close()

	users := make([]*models.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, wrapErr("scan user", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	scope, err := getScope(ctx)
	if err != nil {
		return err
	}

	query := `
		UPDATE users
		SET email = $2, first_name = $3, last_name = $4, role = $5, department = $6,
		    employee_id = $7, phone = $8, is_active = $9
		WHERE id = $1
		RETURNING updated_at`

	err = scope.Conn.QueryRow(ctx, query,
		user.ID,
		user.Email,
		user.FirstName,
		user.LastName,
		user.Role,
		user.Department,
		user.EmployeeID,
		user.Phone,
		user.IsActive,
	).Scan(&user.UpdatedAt)
	return wrapErr("update user", err)
}

func (r *userRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return execOne(ctx, "update password", `UPDATE users SET password_hash = $2 WHERE id = $1`, id, passwordHash)
}

func (r *userRepository) RecordLogin(ctx context.Context, id uuid.UUID, ip string) error {
	return execOne(ctx, "record login",
		`UPDATE users SET last_login_at = now(), last_login_ip = $2 WHERE id = $1`, id, nullString(ip))
}

func (r *userRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return execOne(ctx, "delete user", `DELETE FROM users WHERE id = $1`, id)
}

func (r *userRepository) CountActiveAdmins(ctx context.Context) (int, error) {
	scope, err := getScope(ctx)
	if err != nil {
		return 0, err
	}

	var count int
	err = scope.Conn.QueryRow(ctx,
		`SELECT count(*) FROM users WHERE role = $1 AND is_active`, models.RoleAdmin).Scan(&count)
	if err != nil {
		return 0, wrapErr("count admins", err)
	}
	return count, nil
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.FirstName,
		&u.LastName,
		&u.Role,
		&u.Department,
		&u.EmployeeID,
		&u.Phone,
		&u.IsActive,
		&u.LastLoginAt,
		&u.LastLoginIP,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
