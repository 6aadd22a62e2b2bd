// Package storagetest provides an in-memory storage.Storage with the same
// visibility and uniqueness rules as the Postgres implementation.
package storagetest

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"account_service/internal/models"
	"account_service/internal/storage"

	"github.com/gofrs/uuid"
)

type claimKey struct {
	email string
	role  models.Role
}

type Memory struct {
	mu     sync.Mutex
	users  map[uuid.UUID]*models.User
	order  []uuid.UUID
	claims map[claimKey]time.Time

	// Err, when set, is returned by every call.
	Err error
	// ClearErr, when set, is returned by ClearPasswordResetToken only.
	ClearErr error
}

var _ storage.Storage = (*Memory)(nil)

func New() *Memory {
	return &Memory{
		users:  make(map[uuid.UUID]*models.User),
		claims: make(map[claimKey]time.Time),
	}
}

func clone(u *models.User) models.User {
	c := *u
	c.Roles = slices.Clone(u.Roles)
	return c
}

func (m *Memory) findActive(id uuid.UUID) (*models.User, bool) {
	u, ok := m.users[id]
	if !ok || !u.Active {
		return nil, false
	}
	return u, true
}

func (m *Memory) emailTaken(email string, except uuid.UUID) bool {
	for id, u := range m.users {
		if id != except && u.Email == email {
			return true
		}
	}
	return false
}

func (m *Memory) CreateUser(_ context.Context, user models.User, claims models.Roles) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return models.User{}, m.Err
	}
	if len(user.Roles) == 0 {
		return models.User{}, storage.ErrInvalidRoles
	}

	email := models.NormalizeEmail(user.Email)
	for _, r := range claims {
		if _, ok := m.claims[claimKey{email, r}]; ok {
			return models.User{}, fmt.Errorf("storagetest.CreateUser: %w", storage.ErrRoleClaimed)
		}
	}
	if m.emailTaken(email, uuid.Nil) {
		return models.User{}, fmt.Errorf("storagetest.CreateUser: %w", storage.ErrEmailTaken)
	}

	if user.ID == uuid.Nil {
		user.ID = uuid.Must(uuid.NewV4())
	}
	user.Email = email
	user.Active = true
	user.CreatedAt = time.Now().UTC()

	now := time.Now()
	for _, r := range claims {
		m.claims[claimKey{email, r}] = now
	}

	u := clone(&user)
	m.users[user.ID] = &u
	m.order = append(m.order, user.ID)

	return clone(&u), nil
}

func (m *Memory) GetUserByID(_ context.Context, userID uuid.UUID) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return models.User{}, m.Err
	}
	u, ok := m.findActive(userID)
	if !ok {
		return models.User{}, storage.ErrNotFound
	}
	return clone(u), nil
}

func (m *Memory) GetUserByEmail(_ context.Context, email string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return models.User{}, m.Err
	}
	email = models.NormalizeEmail(email)
	for _, u := range m.users {
		if u.Active && u.Email == email {
			return clone(u), nil
		}
	}
	return models.User{}, storage.ErrNotFound
}

func (m *Memory) ListUsers(_ context.Context) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	users := []models.User{}
	for _, id := range m.order {
		if u, ok := m.findActive(id); ok {
			users = append(users, clone(u))
		}
	}
	return users, nil
}

func (m *Memory) UpdateUser(_ context.Context, userID uuid.UUID, upd models.UserUpdate) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return models.User{}, m.Err
	}
	if upd.Roles != nil && len(upd.Roles) == 0 {
		return models.User{}, storage.ErrInvalidRoles
	}
	u, ok := m.findActive(userID)
	if !ok {
		return models.User{}, storage.ErrNotFound
	}
	if upd.Email != nil {
		email := models.NormalizeEmail(*upd.Email)
		if m.emailTaken(email, userID) {
			return models.User{}, storage.ErrEmailTaken
		}
		u.Email = email
	}
	if upd.Name != nil {
		u.Name = *upd.Name
	}
	if upd.Roles != nil {
		u.Roles = slices.Clone(upd.Roles)
	}
	return clone(u), nil
}

func (m *Memory) DeleteUser(_ context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	if _, ok := m.users[userID]; !ok {
		return storage.ErrNotFound
	}
	delete(m.users, userID)
	m.order = slices.DeleteFunc(m.order, func(id uuid.UUID) bool { return id == userID })
	return nil
}

func (m *Memory) Deactivate(_ context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	u, ok := m.findActive(userID)
	if !ok {
		return storage.ErrNotFound
	}
	u.Active = false
	return nil
}

func (m *Memory) Suspend(_ context.Context, userID uuid.UUID, until time.Time) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return models.User{}, m.Err
	}
	u, ok := m.findActive(userID)
	if !ok {
		return models.User{}, storage.ErrNotFound
	}
	u.Suspended = true
	u.SuspensionEndDate = &until
	return clone(u), nil
}

func (m *Memory) UpdatePassword(_ context.Context, userID uuid.UUID, passwordHash string, changedAt time.Time) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return models.User{}, m.Err
	}
	u, ok := m.findActive(userID)
	if !ok {
		return models.User{}, storage.ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.PasswordChangedAt = &changedAt
	u.PasswordVersion++
	return clone(u), nil
}

func (m *Memory) SetPasswordResetToken(_ context.Context, userID uuid.UUID, tokenHash string, expires time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	u, ok := m.findActive(userID)
	if !ok {
		return storage.ErrNotFound
	}
	u.PasswordResetTokenHash = &tokenHash
	u.PasswordResetExpires = &expires
	return nil
}

func (m *Memory) ClearPasswordResetToken(_ context.Context, userID uuid.UUID, tokenHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	if m.ClearErr != nil {
		return m.ClearErr
	}
	if u, ok := m.users[userID]; ok && u.PasswordResetTokenHash != nil && *u.PasswordResetTokenHash == tokenHash {
		u.PasswordResetTokenHash = nil
		u.PasswordResetExpires = nil
	}
	return nil
}

func (m *Memory) ResetPassword(_ context.Context, tokenHash, passwordHash string, now time.Time) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return models.User{}, m.Err
	}
	for _, u := range m.users {
		if !u.Active || u.PasswordResetTokenHash == nil || *u.PasswordResetTokenHash != tokenHash {
			continue
		}
		if u.PasswordResetExpires == nil || !u.PasswordResetExpires.After(now) {
			return models.User{}, storage.ErrNotFound
		}
		u.PasswordHash = passwordHash
		u.PasswordChangedAt = &now
		u.PasswordVersion++
		u.PasswordResetTokenHash = nil
		u.PasswordResetExpires = nil
		return clone(u), nil
	}
	return models.User{}, storage.ErrNotFound
}

func (m *Memory) Close() {}

// Raw returns the stored record including inactive users; ok is false if
// the id was never created or has been deleted.
func (m *Memory) Raw(userID uuid.UUID) (models.User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID]
	if !ok {
		return models.User{}, false
	}
	return clone(u), true
}
