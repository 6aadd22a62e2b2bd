package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"account_service/internal/apperror"
	"account_service/internal/models"
	"account_service/internal/storage"

	"github.com/gofrs/uuid"
)

// SuspensionEnd adds period units to from. Only days, weeks and months are
// accepted.
func SuspensionEnd(from time.Time, period int, unit string) (time.Time, error) {
	if period <= 0 {
		return time.Time{}, apperror.Validation(msgInvalidSuspension)
	}

	switch unit {
	case "days":
		return from.AddDate(0, 0, period), nil
	case "weeks":
		return from.AddDate(0, 0, 7*period), nil
	case "months":
		return from.AddDate(0, period, 0), nil
	default:
		return time.Time{}, apperror.Validation(msgInvalidSuspension)
	}
}

func (s *service) Suspend(ctx context.Context, userID uuid.UUID, period int, unit string) (models.User, error) {
	const op = "service.Suspend"

	until, err := SuspensionEnd(s.now(), period, unit)
	if err != nil {
		return models.User{}, err
	}

	user, err := s.storage.Suspend(ctx, userID, until)
	if err != nil {
		return models.User{}, notFound(op, err, msgUserNotFound)
	}

	s.log.Info("user suspended",
		slog.String("op", op),
		slog.String("user_id", userID.String()),
		slog.Time("until", until),
	)

	return user, nil
}

func (s *service) UpdateMe(ctx context.Context, userID uuid.UUID, upd MeUpdate) (models.User, error) {
	const op = "service.UpdateMe"

	if upd.Password != nil || upd.PasswordConfirm != nil {
		return models.User{}, apperror.Validation(msgNotForPassword)
	}

	fields := models.UserUpdate{}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		fields.Name = &name
	}
	if upd.Email != nil {
		email := models.NormalizeEmail(*upd.Email)
		if err := validateEmail(email); err != nil {
			return models.User{}, err
		}
		fields.Email = &email
	}

	return s.update(ctx, op, userID, fields)
}

func (s *service) DeleteMe(ctx context.Context, userID uuid.UUID) error {
	const op = "service.DeleteMe"

	if err := s.storage.Deactivate(ctx, userID); err != nil {
		return notFound(op, err, msgUserNotFound)
	}

	s.log.Info("user deactivated", slog.String("op", op), slog.String("user_id", userID.String()))

	return nil
}

func (s *service) ListUsers(ctx context.Context) ([]models.User, error) {
	const op = "service.ListUsers"

	users, err := s.storage.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return users, nil
}

func (s *service) GetUser(ctx context.Context, userID uuid.UUID) (models.User, error) {
	const op = "service.GetUser"

	user, err := s.storage.GetUserByID(ctx, userID)
	if err != nil {
		return models.User{}, notFound(op, err, msgUserNotFound)
	}

	return user, nil
}

// UpdateUser is the admin variant of UpdateMe; it may also replace roles.
func (s *service) UpdateUser(ctx context.Context, userID uuid.UUID, upd models.UserUpdate) (models.User, error) {
	const op = "service.UpdateUser"

	if upd.Email != nil {
		email := models.NormalizeEmail(*upd.Email)
		if err := validateEmail(email); err != nil {
			return models.User{}, err
		}
		upd.Email = &email
	}
	if upd.Roles != nil {
		all := []models.Role{models.RoleAdmin, models.RoleTeamMember, models.RoleUser}
		if !upd.Roles.Allowed(all...) {
			return models.User{}, apperror.Validation(fmt.Sprintf(msgInvalidRoles, strings.Join(models.Roles(all).Strings(), ", ")))
		}
		upd.Roles = upd.Roles.Normalize()
	}

	return s.update(ctx, op, userID, upd)
}

func (s *service) update(ctx context.Context, op string, userID uuid.UUID, upd models.UserUpdate) (models.User, error) {
	user, err := s.storage.UpdateUser(ctx, userID, upd)
	if err != nil {
		if errors.Is(err, storage.ErrEmailTaken) {
			return models.User{}, apperror.Wrap(err, apperror.KindConflict, msgEmailTaken)
		}
		return models.User{}, notFound(op, err, msgUserNotFound)
	}

	return user, nil
}

func (s *service) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	const op = "service.DeleteUser"

	if err := s.storage.DeleteUser(ctx, userID); err != nil {
		return notFound(op, err, msgUserNotFound)
	}

	s.log.Info("user deleted", slog.String("op", op), slog.String("user_id", userID.String()))

	return nil
}
