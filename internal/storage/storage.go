package storage

import (
	"account_service/internal/models"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

const (
	usersTable      = "users"
	roleClaimsTable = "role_claims"

	uniqueViolation = "23505"
	emailIndex      = "users_email_key"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrEmailTaken   = errors.New("email already in use")
	ErrRoleClaimed  = errors.New("role already claimed")
	ErrInvalidRoles = errors.New("roles must not be empty")
)

// Storage is the credential store. Every mutation touches a single user row
// in one statement, except CreateUser which also records role claims in the
// same transaction.
type Storage interface {

	// Users
	CreateUser(ctx context.Context, user models.User, claims models.Roles) (models.User, error)
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	UpdateUser(ctx context.Context, userID uuid.UUID, upd models.UserUpdate) (models.User, error)
	DeleteUser(ctx context.Context, userID uuid.UUID) error

	// Account lifecycle
	Deactivate(ctx context.Context, userID uuid.UUID) error
	Suspend(ctx context.Context, userID uuid.UUID, until time.Time) (models.User, error)

	// Credentials
	UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string, changedAt time.Time) (models.User, error)
	SetPasswordResetToken(ctx context.Context, userID uuid.UUID, tokenHash string, expires time.Time) error
	ClearPasswordResetToken(ctx context.Context, userID uuid.UUID, tokenHash string) error
	ResetPassword(ctx context.Context, tokenHash, passwordHash string, now time.Time) (models.User, error)

	Close()
}

type PostgresStorage struct {
	db *pgxpool.Pool
}

func NewPostgresStorage(ctx context.Context, DbURL string) (*PostgresStorage, error) {
	const op = "storage.NewPostgresStorage"

	conn, err := pgxpool.Connect(ctx, DbURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &PostgresStorage{
		db: conn,
	}, nil
}

const userColumns = `id, name, email, password_hash, roles, password_changed_at, password_version,
	password_reset_token, password_reset_expires, suspended, suspension_end_date, active, created_at`

func scanUser(row pgx.Row) (models.User, error) {
	var (
		user  models.User
		roles []string
	)

	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&roles,
		&user.PasswordChangedAt,
		&user.PasswordVersion,
		&user.PasswordResetTokenHash,
		&user.PasswordResetExpires,
		&user.Suspended,
		&user.SuspensionEndDate,
		&user.Active,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, err
	}

	user.Roles = models.RolesFromStrings(roles)

	return user, nil
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == uniqueViolation && (constraint == "" || pgErr.ConstraintName == constraint)
}

func (p *PostgresStorage) CreateUser(ctx context.Context, user models.User, claims models.Roles) (models.User, error) {
	const op = "storage.CreateUser"

	if len(user.Roles) == 0 {
		return models.User{}, fmt.Errorf("%s: %w", op, ErrInvalidRoles)
	}

	if user.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return models.User{}, fmt.Errorf("%s: %w", op, err)
		}
		user.ID = id
	}

	var created models.User
	err := p.db.BeginFunc(ctx, func(tx pgx.Tx) error {
		claimQuery := fmt.Sprintf(`INSERT INTO %s(email, role) VALUES ($1, $2) ON CONFLICT DO NOTHING`, roleClaimsTable)
		for _, role := range claims {
			tag, err := tx.Exec(ctx, claimQuery, models.NormalizeEmail(user.Email), string(role))
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				return ErrRoleClaimed
			}
		}

		query := fmt.Sprintf(`INSERT INTO %s(id, name, email, password_hash, roles, password_changed_at)
		VALUES ($1, $2, lower($3), $4, $5, $6)
		RETURNING %s`, usersTable, userColumns)

		var err error
		created, err = scanUser(tx.QueryRow(ctx, query,
			user.ID, user.Name, user.Email, user.PasswordHash, user.Roles.Strings(), user.PasswordChangedAt))
		return err
	})
	if err != nil {
		if isUniqueViolation(err, emailIndex) {
			return models.User{}, fmt.Errorf("%s: %w", op, ErrEmailTaken)
		}
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return created, nil
}

func (p *PostgresStorage) GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error) {
	const op = "storage.GetUserByID"

	query := fmt.Sprintf("SELECT %s FROM %s WHERE id=$1 AND active;", userColumns, usersTable)

	user, err := scanUser(p.db.QueryRow(ctx, query, userID))
	if err != nil {
		return user, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

func (p *PostgresStorage) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	const op = "storage.GetUserByEmail"

	query := fmt.Sprintf("SELECT %s FROM %s WHERE lower(email)=lower($1) AND active;", userColumns, usersTable)

	user, err := scanUser(p.db.QueryRow(ctx, query, email))
	if err != nil {
		return user, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

func (p *PostgresStorage) ListUsers(ctx context.Context) ([]models.User, error) {
	const op = "storage.ListUsers"

	users := []models.User{}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE active ORDER BY created_at;", userColumns, usersTable)

	rows, err := p.db.Query(ctx, query)
	if err != nil {
		return users, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return users, fmt.Errorf("%s: %w", op, err)
		}

		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s (rows): %w", op, err)
	}

	return users, nil
}

func (p *PostgresStorage) UpdateUser(ctx context.Context, userID uuid.UUID, upd models.UserUpdate) (models.User, error) {
	const op = "storage.UpdateUser"

	var roles []string
	if upd.Roles != nil {
		if len(upd.Roles) == 0 {
			return models.User{}, fmt.Errorf("%s: %w", op, ErrInvalidRoles)
		}
		roles = upd.Roles.Strings()
	}

	query := fmt.Sprintf(`UPDATE %s
	SET name = COALESCE($2::text, name),
	    email = COALESCE(lower($3::text), email),
	    roles = COALESCE($4::text[], roles)
	WHERE id=$1 AND active
	RETURNING %s`, usersTable, userColumns)

	user, err := scanUser(p.db.QueryRow(ctx, query, userID, upd.Name, upd.Email, roles))
	if err != nil {
		if isUniqueViolation(err, emailIndex) {
			return models.User{}, fmt.Errorf("%s: %w", op, ErrEmailTaken)
		}
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

func (p *PostgresStorage) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	const op = "storage.DeleteUser"

	query := fmt.Sprintf("DELETE FROM %s WHERE id=$1", usersTable)

	tag, err := p.db.Exec(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	return nil
}

func (p *PostgresStorage) Deactivate(ctx context.Context, userID uuid.UUID) error {
	const op = "storage.Deactivate"

	query := fmt.Sprintf("UPDATE %s SET active=FALSE WHERE id=$1 AND active", usersTable)

	tag, err := p.db.Exec(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	return nil
}

func (p *PostgresStorage) Suspend(ctx context.Context, userID uuid.UUID, until time.Time) (models.User, error) {
	const op = "storage.Suspend"

	query := fmt.Sprintf(`UPDATE %s SET suspended=TRUE, suspension_end_date=$2
	WHERE id=$1 AND active
	RETURNING %s`, usersTable, userColumns)

	user, err := scanUser(p.db.QueryRow(ctx, query, userID, until))
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

func (p *PostgresStorage) UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string, changedAt time.Time) (models.User, error) {
	const op = "storage.UpdatePassword"

	query := fmt.Sprintf(`UPDATE %s SET password_hash=$2, password_changed_at=$3, password_version=password_version+1
	WHERE id=$1 AND active
	RETURNING %s`, usersTable, userColumns)

	user, err := scanUser(p.db.QueryRow(ctx, query, userID, passwordHash, changedAt))
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// SetPasswordResetToken replaces any previous reset token of the user.
func (p *PostgresStorage) SetPasswordResetToken(ctx context.Context, userID uuid.UUID, tokenHash string, expires time.Time) error {
	const op = "storage.SetPasswordResetToken"

	query := fmt.Sprintf(`UPDATE %s SET password_reset_token=$2, password_reset_expires=$3
	WHERE id=$1 AND active`, usersTable)

	tag, err := p.db.Exec(ctx, query, userID, tokenHash, expires)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	return nil
}

// ClearPasswordResetToken removes tokenHash from the user. A token stored by
// a later request is left in place.
func (p *PostgresStorage) ClearPasswordResetToken(ctx context.Context, userID uuid.UUID, tokenHash string) error {
	const op = "storage.ClearPasswordResetToken"

	query := fmt.Sprintf(`UPDATE %s SET password_reset_token=NULL, password_reset_expires=NULL
	WHERE id=$1 AND password_reset_token=$2`, usersTable)

	if _, err := p.db.Exec(ctx, query, userID, tokenHash); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// ResetPassword consumes a live reset token and sets a new password in one
// statement, so a token can be used at most once.
func (p *PostgresStorage) ResetPassword(ctx context.Context, tokenHash, passwordHash string, now time.Time) (models.User, error) {
	const op = "storage.ResetPassword"

	query := fmt.Sprintf(`UPDATE %s
	SET password_hash=$2,
	    password_changed_at=$3,
	    password_version=password_version+1,
	    password_reset_token=NULL,
	    password_reset_expires=NULL
	WHERE password_reset_token=$1 AND password_reset_expires > $3 AND active
	RETURNING %s`, usersTable, userColumns)

	user, err := scanUser(p.db.QueryRow(ctx, query, tokenHash, passwordHash, now))
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

func (p *PostgresStorage) Close() {
	p.db.Close()
}
