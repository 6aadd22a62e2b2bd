package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"account_service/internal/apperror"
	"account_service/internal/auth"
	"account_service/internal/models"
	"account_service/internal/notify"
	"account_service/internal/storage"

	"github.com/gofrs/uuid"
)

const (
	msgNotLoggedIn       = "You are not logged in! Please log in to get access."
	msgInvalidToken      = "Invalid token. Please log in again!"
	msgExpiredToken      = "Your token has expired! Please log in again."
	msgUserGone          = "The user belonging to this token does no longer exist."
	msgPasswordChanged   = "User recently changed password! Please log in again."
	msgCookieMissing     = "Token is missing. Please log in to get a token."
	msgCookieExpired     = "Token has expired. Please log in again."
	msgMissingCreds      = "Please provide email and password!"
	msgBadCredentials    = "Incorrect email or password"
	msgWrongCurrent      = "Your current password is wrong."
	msgEmailTaken        = "Email already in use"
	msgRoleClaimed       = "A user with this role existed already."
	msgSignupRole        = "Invalid user role for self-registration. Please provide a single \"user\" role."
	msgInvalidRoles      = "Invalid role(s). Allowed roles: %s."
	msgMissingRoles      = "Please provide at least one role."
	msgInvalidEmail      = "Please provide a valid email address."
	msgPasswordShort     = "Password must be at least 8 characters long."
	msgPasswordLong      = "Password must be at most 72 bytes long."
	msgPasswordMismatch  = "Passwords are not the same!"
	msgResetInvalid      = "Token is invalid or has expired"
	msgEmailFailed       = "There was an error sending the email. Try again later!"
	msgNotForPassword    = "This route is not for password updates. Please use /update-password."
	msgUserNotFound      = "User not found"
	msgInvalidSuspension = "Suspension period must be a positive number and unit one of days, weeks, months."
)

type Service interface {
	// Registration
	Signup(ctx context.Context, reg Registration) (Session, error)
	RegisterAdmin(ctx context.Context, reg Registration) (Session, error)
	RegisterTeamMember(ctx context.Context, reg Registration) (Session, error)

	// Credentials
	Login(ctx context.Context, email, password string) (Session, error)
	Authenticate(ctx context.Context, token string) (models.User, error)
	VerifyToken(token string) error
	ForgotPassword(ctx context.Context, email, resetURLBase string) error
	ResetPassword(ctx context.Context, rawToken, password, passwordConfirm string) (Session, error)
	UpdatePassword(ctx context.Context, user models.User, change PasswordChange) (Session, error)

	// Account lifecycle
	UpdateMe(ctx context.Context, userID uuid.UUID, upd MeUpdate) (models.User, error)
	DeleteMe(ctx context.Context, userID uuid.UUID) error
	Suspend(ctx context.Context, userID uuid.UUID, period int, unit string) (models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	GetUser(ctx context.Context, userID uuid.UUID) (models.User, error)
	UpdateUser(ctx context.Context, userID uuid.UUID, upd models.UserUpdate) (models.User, error)
	DeleteUser(ctx context.Context, userID uuid.UUID) error
}

// Registration is the payload of every self-registration endpoint. A nil
// Roles means the client did not send any.
type Registration struct {
	Name            string
	Email           string
	Password        string
	PasswordConfirm string
	Roles           []string
}

// Session is a signed-in user together with the bearer token issued for it.
type Session struct {
	User      models.User
	Token     string
	ExpiresAt time.Time
}

type PasswordChange struct {
	Current         string
	New             string
	PasswordConfirm string
}

// MeUpdate carries the fields a user may change on their own profile. The
// password fields are only present so that attempts to use them can be
// rejected.
type MeUpdate struct {
	Name            *string
	Email           *string
	Password        *string
	PasswordConfirm *string
}

type service struct {
	storage  storage.Storage
	hasher   *auth.Hasher
	tokens   *auth.TokenManager
	notifier notify.Notifier
	log      *slog.Logger
	now      func() time.Time

	dummyMu   sync.Mutex
	dummyHash string
}

func NewService(st storage.Storage, hasher *auth.Hasher, tokens *auth.TokenManager, notifier notify.Notifier, log *slog.Logger) *service {
	return &service{
		storage:  st,
		hasher:   hasher,
		tokens:   tokens,
		notifier: notifier,
		log:      log,
		now:      time.Now,
	}
}

// WithClock replaces the time source; used by tests.
func (s *service) WithClock(now func() time.Time) *service {
	s.now = now
	return s
}

func (s *service) issue(user models.User) (Session, error) {
	const op = "service.issue"

	token, exp, err := s.tokens.Issue(user.ID, user.PasswordVersion)
	if err != nil {
		return Session{}, fmt.Errorf("%s: %w", op, err)
	}

	return Session{User: user, Token: token, ExpiresAt: exp}, nil
}

// notFound maps storage.ErrNotFound to a typed error with msg and wraps the
// rest with op.
func notFound(op string, err error, msg string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperror.Wrap(err, apperror.KindNotFound, msg)
	}
	return fmt.Errorf("%s: %w", op, err)
}
