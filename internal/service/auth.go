package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"account_service/internal/apperror"
	"account_service/internal/auth"
	"account_service/internal/models"
	"account_service/internal/notify"
	"account_service/internal/storage"
)

const resetMailSubject = "Your password reset token (valid for 10 min)"

func (s *service) Signup(ctx context.Context, reg Registration) (Session, error) {
	roles := models.Roles{models.RoleUser}
	if reg.Roles != nil {
		if len(reg.Roles) != 1 || reg.Roles[0] != string(models.RoleUser) {
			return Session{}, apperror.Validation(msgSignupRole)
		}
	}

	return s.register(ctx, "service.Signup", reg, roles, nil)
}

// RegisterAdmin lets a caller pick any combination of roles. Each email can
// claim the admin role only once, ever.
func (s *service) RegisterAdmin(ctx context.Context, reg Registration) (Session, error) {
	allowed := []models.Role{models.RoleAdmin, models.RoleTeamMember, models.RoleUser}

	roles, err := requestedRoles(reg.Roles, allowed)
	if err != nil {
		return Session{}, err
	}

	var claims models.Roles
	if roles.Has(models.RoleAdmin) {
		claims = models.Roles{models.RoleAdmin}
	}

	return s.register(ctx, "service.RegisterAdmin", reg, roles, claims)
}

func (s *service) RegisterTeamMember(ctx context.Context, reg Registration) (Session, error) {
	allowed := []models.Role{models.RoleTeamMember, models.RoleUser}

	roles, err := requestedRoles(reg.Roles, allowed)
	if err != nil {
		return Session{}, err
	}

	var claims models.Roles
	if roles.Has(models.RoleTeamMember) {
		claims = models.Roles{models.RoleTeamMember}
	}

	return s.register(ctx, "service.RegisterTeamMember", reg, roles, claims)
}

func requestedRoles(requested []string, allowed []models.Role) (models.Roles, error) {
	if len(requested) == 0 {
		return nil, apperror.Validation(msgMissingRoles)
	}

	roles := models.RolesFromStrings(requested).Normalize()
	if !roles.Allowed(allowed...) {
		return nil, apperror.Validation(fmt.Sprintf(msgInvalidRoles, strings.Join(models.Roles(allowed).Strings(), ", ")))
	}

	return roles, nil
}

func (s *service) register(ctx context.Context, op string, reg Registration, roles, claims models.Roles) (Session, error) {
	log := s.log.With(slog.String("op", op))

	email := models.NormalizeEmail(reg.Email)
	if err := validateEmail(email); err != nil {
		return Session{}, err
	}
	if err := validatePassword(reg.Password, reg.PasswordConfirm); err != nil {
		return Session{}, err
	}

	hash, err := s.hasher.Hash(ctx, reg.Password)
	if err != nil {
		return Session{}, fmt.Errorf("%s: %w", op, err)
	}

	user, err := s.storage.CreateUser(ctx, models.User{
		Name:         strings.TrimSpace(reg.Name),
		Email:        email,
		PasswordHash: hash,
		Roles:        roles,
	}, claims)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrEmailTaken):
			return Session{}, apperror.Wrap(err, apperror.KindConflict, msgEmailTaken)
		case errors.Is(err, storage.ErrRoleClaimed):
			return Session{}, apperror.Wrap(err, apperror.KindConflict, msgRoleClaimed)
		}
		return Session{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user registered", slog.String("user_id", user.ID.String()), slog.Any("roles", user.Roles.Strings()))

	return s.issue(user)
}

func (s *service) Login(ctx context.Context, email, password string) (Session, error) {
	const op = "service.Login"

	if email == "" || password == "" {
		return Session{}, apperror.Validation(msgMissingCreds)
	}

	user, err := s.storage.GetUserByEmail(ctx, models.NormalizeEmail(email))
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return Session{}, fmt.Errorf("%s: %w", op, err)
		}
		// same amount of hashing work as for a real account
		s.hasher.Verify(ctx, password, s.dummy(ctx))
		return Session{}, apperror.Authentication(msgBadCredentials)
	}

	if !s.hasher.Verify(ctx, password, user.PasswordHash) {
		return Session{}, apperror.Authentication(msgBadCredentials)
	}

	return s.issue(user)
}

const dummyPassword = "not-a-real-password"

// dummy returns a hash to verify against when the email is unknown. It is
// computed once, detached from the request so a cancelled first caller
// cannot leave it empty.
func (s *service) dummy(ctx context.Context) string {
	s.dummyMu.Lock()
	defer s.dummyMu.Unlock()

	if s.dummyHash == "" {
		hash, err := s.hasher.Hash(context.WithoutCancel(ctx), dummyPassword)
		if err != nil {
			s.log.Error("failed to compute dummy hash", slog.Any("error", err))
			return ""
		}
		s.dummyHash = hash
	}
	return s.dummyHash
}

// Authenticate resolves a bearer token to its user. Every failure is an
// authentication error describing which check rejected the token.
func (s *service) Authenticate(ctx context.Context, token string) (models.User, error) {
	const op = "service.Authenticate"

	if token == "" {
		return models.User{}, apperror.Authentication(msgNotLoggedIn)
	}

	claims, err := s.tokens.Verify(token)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return models.User{}, apperror.Wrap(err, apperror.KindAuthentication, msgExpiredToken)
		}
		return models.User{}, apperror.Wrap(err, apperror.KindAuthentication, msgInvalidToken)
	}

	user, err := s.storage.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.User{}, apperror.Wrap(err, apperror.KindAuthentication, msgUserGone)
		}
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	if user.ChangedPasswordAfter(claims.IssuedAt.Time, claims.PasswordVersion) {
		return models.User{}, apperror.Authentication(msgPasswordChanged)
	}

	return user, nil
}

// VerifyToken only checks the token itself; it does not look the user up.
func (s *service) VerifyToken(token string) error {
	if token == "" {
		return apperror.Authentication(msgCookieMissing)
	}
	if _, err := s.tokens.Verify(token); err != nil {
		return apperror.Wrap(err, apperror.KindAuthentication, msgCookieExpired)
	}
	return nil
}

// ForgotPassword mails a reset link to the account owner. Unknown emails are
// not reported to the caller. If the mail cannot be delivered the stored
// token is cleared again.
func (s *service) ForgotPassword(ctx context.Context, email, resetURLBase string) error {
	const op = "service.ForgotPassword"

	log := s.log.With(slog.String("op", op))

	email = models.NormalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return err
	}

	user, err := s.storage.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			log.Debug("password reset requested for unknown email")
			return nil
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	token, err := auth.GenerateResetToken(s.now())
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.storage.SetPasswordResetToken(ctx, user.ID, token.Hash, token.ExpiresAt); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	resetURL := strings.TrimRight(resetURLBase, "/") + "/" + token.Raw
	msg := notify.Message{
		To:      user.Email,
		Subject: resetMailSubject,
		Body: fmt.Sprintf("Forgot your password? Submit a PATCH request with your new password and passwordConfirm to: %s.\n"+
			"If you didn't forget your password, please ignore this email!", resetURL),
	}

	if err := s.notifier.Send(ctx, msg); err != nil {
		log.Error("failed to send reset email", slog.String("user_id", user.ID.String()), slog.Any("error", err))

		// the request may already be cancelled; the rollback must still run
		if clearErr := s.storage.ClearPasswordResetToken(context.WithoutCancel(ctx), user.ID, token.Hash); clearErr != nil {
			log.Error("failed to clear reset token", slog.String("user_id", user.ID.String()), slog.Any("error", clearErr))
			err = errors.Join(err, clearErr)
		}

		return apperror.Wrap(err, apperror.KindDelivery, msgEmailFailed)
	}

	log.Info("reset token sent", slog.String("user_id", user.ID.String()))

	return nil
}

func (s *service) ResetPassword(ctx context.Context, rawToken, password, passwordConfirm string) (Session, error) {
	const op = "service.ResetPassword"

	if rawToken == "" {
		return Session{}, apperror.Validation(msgResetInvalid)
	}
	if err := validatePassword(password, passwordConfirm); err != nil {
		return Session{}, err
	}

	hash, err := s.hasher.Hash(ctx, password)
	if err != nil {
		return Session{}, fmt.Errorf("%s: %w", op, err)
	}

	user, err := s.storage.ResetPassword(ctx, auth.HashResetToken(rawToken), hash, s.now())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Session{}, apperror.Wrap(err, apperror.KindValidation, msgResetInvalid)
		}
		return Session{}, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("password reset", slog.String("op", op), slog.String("user_id", user.ID.String()))

	return s.issue(user)
}

func (s *service) UpdatePassword(ctx context.Context, user models.User, change PasswordChange) (Session, error) {
	const op = "service.UpdatePassword"

	if !s.hasher.Verify(ctx, change.Current, user.PasswordHash) {
		return Session{}, apperror.Authentication(msgWrongCurrent)
	}
	if err := validatePassword(change.New, change.PasswordConfirm); err != nil {
		return Session{}, err
	}

	hash, err := s.hasher.Hash(ctx, change.New)
	if err != nil {
		return Session{}, fmt.Errorf("%s: %w", op, err)
	}

	updated, err := s.storage.UpdatePassword(ctx, user.ID, hash, s.now())
	if err != nil {
		return Session{}, notFound(op, err, msgUserGone)
	}

	return s.issue(updated)
}
