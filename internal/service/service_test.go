package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"account_service/internal/apperror"
	"account_service/internal/auth"
	"account_service/internal/models"
	"account_service/internal/notify"
	"account_service/internal/storage/storagetest"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const resetBase = "http://localhost:8080/api/v1/users/reset-password"

var _ Service = (*service)(nil)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notify.Message
	err  error
	// before runs ahead of every delivery attempt.
	before func()
}

func (n *fakeNotifier) Send(_ context.Context, msg notify.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.before != nil {
		n.before()
	}
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, msg)
	return nil
}

func (n *fakeNotifier) last(t *testing.T) notify.Message {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.sent)
	return n.sent[len(n.sent)-1]
}

type fixture struct {
	svc      *service
	store    *storagetest.Memory
	notifier *fakeNotifier
	clock    *clock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	c := &clock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	store := storagetest.New()
	n := &fakeNotifier{}

	tokens := auth.NewTokenManager("0123456789abcdef0123456789abcdef", time.Hour).WithClock(c.Now)
	hasher := auth.NewHasher(bcrypt.MinCost, 4)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	return &fixture{
		svc:      NewService(store, hasher, tokens, n, log).WithClock(c.Now),
		store:    store,
		notifier: n,
		clock:    c,
	}
}

func (f *fixture) signup(t *testing.T, email, password string) Session {
	t.Helper()
	sess, err := f.svc.Signup(context.Background(), Registration{Email: email, Password: password})
	require.NoError(t, err)
	return sess
}

func requireAppError(t *testing.T, err error, kind apperror.Kind, msg string) {
	t.Helper()
	require.Error(t, err)
	ae, ok := apperror.As(err)
	require.True(t, ok, "expected *apperror.Error, got %v", err)
	assert.Equal(t, kind, ae.Kind)
	assert.Equal(t, msg, ae.Message)
}

var rawTokenRe = regexp.MustCompile(`reset-password/([0-9a-f]{64})`)

func rawToken(t *testing.T, msg notify.Message) string {
	t.Helper()
	m := rawTokenRe.FindStringSubmatch(msg.Body)
	require.Len(t, m, 2, "no reset link in %q", msg.Body)
	return m[1]
}

func TestSignup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sess, err := f.svc.Signup(ctx, Registration{Email: "a@x.com", Password: "Secret123"})
	require.NoError(t, err)

	assert.Equal(t, models.Roles{models.RoleUser}, sess.User.Roles)
	assert.NotEmpty(t, sess.Token)
	assert.Equal(t, f.clock.Now().Add(time.Hour), sess.ExpiresAt)

	body, err := json.Marshal(sess.User)
	require.NoError(t, err)
	assert.NotContains(t, strings.ToLower(string(body)), "password")
	assert.NotContains(t, string(body), sess.User.PasswordHash)

	user, err := f.svc.Authenticate(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, user.ID)
	assert.NotEqual(t, "Secret123", user.PasswordHash)
}

func TestSignup_Roles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Signup(ctx, Registration{Email: "a@x.com", Password: "Secret123", Roles: []string{"user"}})
	require.NoError(t, err)

	for _, roles := range [][]string{{}, {"admin"}, {"user", "admin"}, {"user", "user"}, {"team member"}} {
		_, err := f.svc.Signup(ctx, Registration{Email: "b@x.com", Password: "Secret123", Roles: roles})
		requireAppError(t, err, apperror.KindValidation, msgSignupRole)
	}
}

func TestSignup_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		reg  Registration
		msg  string
	}{
		{"bad email", Registration{Email: "not-an-email", Password: "Secret123"}, msgInvalidEmail},
		{"display name email", Registration{Email: "A <a@x.com>", Password: "Secret123"}, msgInvalidEmail},
		{"short password", Registration{Email: "a@x.com", Password: "short"}, msgPasswordShort},
		{"long password", Registration{Email: "a@x.com", Password: strings.Repeat("x", 73)}, msgPasswordLong},
		{"mismatch", Registration{Email: "a@x.com", Password: "Secret123", PasswordConfirm: "Secret124"}, msgPasswordMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Signup(ctx, tt.reg)
			requireAppError(t, err, apperror.KindValidation, tt.msg)
		})
	}
}

func TestSignup_DuplicateEmail(t *testing.T) {
	f := newFixture(t)
	f.signup(t, "a@x.com", "Secret123")

	_, err := f.svc.Signup(context.Background(), Registration{Email: " A@X.com ", Password: "Secret123"})
	requireAppError(t, err, apperror.KindConflict, msgEmailTaken)
}

func TestRegisterAdmin_ClaimOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	reg := Registration{Email: "boss@x.com", Password: "Secret123", Roles: []string{"admin", "user"}}

	sess, err := f.svc.RegisterAdmin(ctx, reg)
	require.NoError(t, err)
	assert.Equal(t, models.Roles{models.RoleAdmin, models.RoleUser}, sess.User.Roles)

	_, err = f.svc.RegisterAdmin(ctx, reg)
	requireAppError(t, err, apperror.KindConflict, msgRoleClaimed)

	// the claim outlives the account
	require.NoError(t, f.svc.DeleteUser(ctx, sess.User.ID))
	_, err = f.svc.RegisterAdmin(ctx, reg)
	requireAppError(t, err, apperror.KindConflict, msgRoleClaimed)

	// roles without admin do not need the claim
	_, err = f.svc.RegisterAdmin(ctx, Registration{Email: "boss@x.com", Password: "Secret123", Roles: []string{"team member"}})
	require.NoError(t, err)
}

func TestRegisterAdmin_InvalidRoles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.RegisterAdmin(ctx, Registration{Email: "a@x.com", Password: "Secret123", Roles: []string{"admin", "root"}})
	requireAppError(t, err, apperror.KindValidation, "Invalid role(s). Allowed roles: admin, team member, user.")

	_, err = f.svc.RegisterAdmin(ctx, Registration{Email: "a@x.com", Password: "Secret123"})
	requireAppError(t, err, apperror.KindValidation, msgMissingRoles)
}

func TestRegisterTeamMember(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.RegisterTeamMember(ctx, Registration{Email: "tm@x.com", Password: "Secret123", Roles: []string{"admin"}})
	requireAppError(t, err, apperror.KindValidation, "Invalid role(s). Allowed roles: team member, user.")

	sess, err := f.svc.RegisterTeamMember(ctx, Registration{Email: "tm@x.com", Password: "Secret123", Roles: []string{"team member", "team member"}})
	require.NoError(t, err)
	assert.Equal(t, models.Roles{models.RoleTeamMember}, sess.User.Roles)

	_, err = f.svc.RegisterTeamMember(ctx, Registration{Email: "tm@x.com", Password: "Secret123", Roles: []string{"team member"}})
	requireAppError(t, err, apperror.KindConflict, msgRoleClaimed)
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.signup(t, "a@x.com", "Secret123")

	sess, err := f.svc.Login(ctx, "A@x.com", "Secret123")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", sess.User.Email)
	assert.NotEmpty(t, sess.Token)

	_, err = f.svc.Login(ctx, "a@x.com", "Wrong1234")
	requireAppError(t, err, apperror.KindAuthentication, msgBadCredentials)

	_, err = f.svc.Login(ctx, "nobody@x.com", "Wrong1234")
	requireAppError(t, err, apperror.KindAuthentication, msgBadCredentials)

	_, err = f.svc.Login(ctx, "a@x.com", "")
	requireAppError(t, err, apperror.KindValidation, msgMissingCreds)
}

func TestLogin_StoreFailure(t *testing.T) {
	f := newFixture(t)
	f.store.Err = errors.New("db down")

	_, err := f.svc.Login(context.Background(), "a@x.com", "Secret123")
	require.Error(t, err)
	assert.Equal(t, apperror.KindInternal, apperror.KindOf(err))
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()

	t.Run("no token", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Authenticate(ctx, "")
		requireAppError(t, err, apperror.KindAuthentication, msgNotLoggedIn)
	})

	t.Run("garbage", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Authenticate(ctx, "abc.def.ghi")
		requireAppError(t, err, apperror.KindAuthentication, msgInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		f := newFixture(t)
		sess := f.signup(t, "a@x.com", "Secret123")

		f.clock.Advance(59 * time.Minute)
		_, err := f.svc.Authenticate(ctx, sess.Token)
		require.NoError(t, err)

		f.clock.Advance(2 * time.Minute)
		_, err = f.svc.Authenticate(ctx, sess.Token)
		requireAppError(t, err, apperror.KindAuthentication, msgExpiredToken)
	})

	t.Run("deleted user", func(t *testing.T) {
		f := newFixture(t)
		sess := f.signup(t, "a@x.com", "Secret123")
		require.NoError(t, f.svc.DeleteUser(ctx, sess.User.ID))

		_, err := f.svc.Authenticate(ctx, sess.Token)
		requireAppError(t, err, apperror.KindAuthentication, msgUserGone)
	})

	t.Run("deactivated user", func(t *testing.T) {
		f := newFixture(t)
		sess := f.signup(t, "a@x.com", "Secret123")
		require.NoError(t, f.svc.DeleteMe(ctx, sess.User.ID))

		_, err := f.svc.Authenticate(ctx, sess.Token)
		requireAppError(t, err, apperror.KindAuthentication, msgUserGone)

		_, err = f.svc.Login(ctx, "a@x.com", "Secret123")
		requireAppError(t, err, apperror.KindAuthentication, msgBadCredentials)
	})

	t.Run("password changed after issue", func(t *testing.T) {
		f := newFixture(t)
		old := f.signup(t, "a@x.com", "Secret123")

		f.clock.Advance(2 * time.Second)
		user, err := f.svc.Authenticate(ctx, old.Token)
		require.NoError(t, err)

		fresh, err := f.svc.UpdatePassword(ctx, user, PasswordChange{Current: "Secret123", New: "Secret456", PasswordConfirm: "Secret456"})
		require.NoError(t, err)

		_, err = f.svc.Authenticate(ctx, old.Token)
		requireAppError(t, err, apperror.KindAuthentication, msgPasswordChanged)

		_, err = f.svc.Authenticate(ctx, fresh.Token)
		require.NoError(t, err)
	})

	t.Run("password changed within the same second", func(t *testing.T) {
		f := newFixture(t)
		old := f.signup(t, "a@x.com", "Secret123")

		fresh, err := f.svc.UpdatePassword(ctx, old.User, PasswordChange{Current: "Secret123", New: "Secret456"})
		require.NoError(t, err)

		_, err = f.svc.Authenticate(ctx, old.Token)
		requireAppError(t, err, apperror.KindAuthentication, msgPasswordChanged)

		_, err = f.svc.Authenticate(ctx, fresh.Token)
		require.NoError(t, err)
	})

	t.Run("password reset within the same second", func(t *testing.T) {
		f := newFixture(t)
		old := f.signup(t, "a@x.com", "Secret123")

		require.NoError(t, f.svc.ForgotPassword(ctx, "a@x.com", resetBase))
		fresh, err := f.svc.ResetPassword(ctx, rawToken(t, f.notifier.last(t)), "Secret456", "")
		require.NoError(t, err)

		_, err = f.svc.Authenticate(ctx, old.Token)
		requireAppError(t, err, apperror.KindAuthentication, msgPasswordChanged)

		_, err = f.svc.Authenticate(ctx, fresh.Token)
		require.NoError(t, err)
	})
}

func TestVerifyToken(t *testing.T) {
	f := newFixture(t)
	sess := f.signup(t, "a@x.com", "Secret123")

	requireAppError(t, f.svc.VerifyToken(""), apperror.KindAuthentication, msgCookieMissing)
	require.NoError(t, f.svc.VerifyToken(sess.Token))

	f.clock.Advance(2 * time.Hour)
	requireAppError(t, f.svc.VerifyToken(sess.Token), apperror.KindAuthentication, msgCookieExpired)
}

func TestUpdatePassword_WrongCurrent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.signup(t, "a@x.com", "Secret123")

	_, err := f.svc.UpdatePassword(ctx, sess.User, PasswordChange{Current: "nope", New: "Secret456"})
	requireAppError(t, err, apperror.KindAuthentication, msgWrongCurrent)

	_, err = f.svc.UpdatePassword(ctx, sess.User, PasswordChange{Current: "Secret123", New: "short"})
	requireAppError(t, err, apperror.KindValidation, msgPasswordShort)
}

func TestForgotAndResetPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.signup(t, "a@x.com", "Secret123")

	require.NoError(t, f.svc.ForgotPassword(ctx, "A@x.com", resetBase+"/"))

	msg := f.notifier.last(t)
	assert.Equal(t, "a@x.com", msg.To)
	assert.Equal(t, "Your password reset token (valid for 10 min)", msg.Subject)
	raw := rawToken(t, msg)

	stored, ok := f.store.Raw(sess.User.ID)
	require.True(t, ok)
	require.NotNil(t, stored.PasswordResetTokenHash)
	assert.NotEqual(t, raw, *stored.PasswordResetTokenHash)
	assert.Equal(t, auth.HashResetToken(raw), *stored.PasswordResetTokenHash)

	f.clock.Advance(time.Minute)
	reset, err := f.svc.ResetPassword(ctx, raw, "NewSecret1", "NewSecret1")
	require.NoError(t, err)
	assert.NotEmpty(t, reset.Token)

	stored, _ = f.store.Raw(sess.User.ID)
	assert.Nil(t, stored.PasswordResetTokenHash)
	assert.Nil(t, stored.PasswordResetExpires)

	_, err = f.svc.ResetPassword(ctx, raw, "Another12", "Another12")
	requireAppError(t, err, apperror.KindValidation, msgResetInvalid)

	_, err = f.svc.Login(ctx, "a@x.com", "NewSecret1")
	require.NoError(t, err)
	_, err = f.svc.Login(ctx, "a@x.com", "Secret123")
	requireAppError(t, err, apperror.KindAuthentication, msgBadCredentials)
}

func TestResetPassword_Expired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.signup(t, "a@x.com", "Secret123")

	require.NoError(t, f.svc.ForgotPassword(ctx, "a@x.com", resetBase))
	raw := rawToken(t, f.notifier.last(t))

	f.clock.Advance(auth.ResetTokenTTL + time.Second)

	_, err := f.svc.ResetPassword(ctx, raw, "NewSecret1", "NewSecret1")
	requireAppError(t, err, apperror.KindValidation, msgResetInvalid)
}

func TestResetPassword_WrongToken(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ResetPassword(context.Background(), strings.Repeat("ab", 32), "NewSecret1", "")
	requireAppError(t, err, apperror.KindValidation, msgResetInvalid)
}

func TestForgotPassword_NewTokenReplacesOld(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.signup(t, "a@x.com", "Secret123")

	require.NoError(t, f.svc.ForgotPassword(ctx, "a@x.com", resetBase))
	first := rawToken(t, f.notifier.last(t))
	require.NoError(t, f.svc.ForgotPassword(ctx, "a@x.com", resetBase))
	second := rawToken(t, f.notifier.last(t))
	require.NotEqual(t, first, second)

	_, err := f.svc.ResetPassword(ctx, first, "NewSecret1", "")
	requireAppError(t, err, apperror.KindValidation, msgResetInvalid)

	_, err = f.svc.ResetPassword(ctx, second, "NewSecret1", "")
	require.NoError(t, err)
}

func TestForgotPassword_DeliveryFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.signup(t, "a@x.com", "Secret123")

	f.notifier.err = errors.New("smtp: 421 service not available")

	err := f.svc.ForgotPassword(ctx, "a@x.com", resetBase)
	requireAppError(t, err, apperror.KindDelivery, msgEmailFailed)
	assert.Equal(t, 500, apperror.StatusCode(apperror.KindOf(err)))

	stored, ok := f.store.Raw(sess.User.ID)
	require.True(t, ok)
	assert.Nil(t, stored.PasswordResetTokenHash)
	assert.Nil(t, stored.PasswordResetExpires)
}

func TestForgotPassword_RollbackKeepsNewerToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.signup(t, "a@x.com", "Secret123")

	// a second request stores its token while the first delivery is failing
	newer := strings.Repeat("b", 64)
	f.notifier.err = errors.New("smtp: 421 service not available")
	f.notifier.before = func() {
		err := f.store.SetPasswordResetToken(ctx, sess.User.ID, auth.HashResetToken(newer), f.clock.Now().Add(auth.ResetTokenTTL))
		require.NoError(t, err)
	}

	err := f.svc.ForgotPassword(ctx, "a@x.com", resetBase)
	requireAppError(t, err, apperror.KindDelivery, msgEmailFailed)

	stored, ok := f.store.Raw(sess.User.ID)
	require.True(t, ok)
	require.NotNil(t, stored.PasswordResetTokenHash)
	assert.Equal(t, auth.HashResetToken(newer), *stored.PasswordResetTokenHash)

	_, err = f.svc.ResetPassword(ctx, newer, "NewSecret1", "")
	require.NoError(t, err)
}

func TestLogin_DummyHashSurvivesCancelledRequest(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.Login(ctx, "nobody@x.com", "Wrong1234")
	requireAppError(t, err, apperror.KindAuthentication, msgBadCredentials)
	assert.NotEmpty(t, f.svc.dummy(context.Background()))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(f.svc.dummy(context.Background())), []byte(dummyPassword)))
}

func TestForgotPassword_RollbackFailure(t *testing.T) {
	f := newFixture(t)
	f.signup(t, "a@x.com", "Secret123")

	f.notifier.err = errors.New("broker down")
	f.store.ClearErr = errors.New("db down")

	err := f.svc.ForgotPassword(context.Background(), "a@x.com", resetBase)
	requireAppError(t, err, apperror.KindDelivery, msgEmailFailed)
	assert.ErrorContains(t, err, "db down")
}

func TestForgotPassword_UnknownEmail(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.svc.ForgotPassword(context.Background(), "ghost@x.com", resetBase))
	assert.Empty(t, f.notifier.sent)

	err := f.svc.ForgotPassword(context.Background(), "", resetBase)
	requireAppError(t, err, apperror.KindValidation, msgInvalidEmail)
}

func TestSuspensionEnd(t *testing.T) {
	from := time.Date(2024, 1, 31, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		period int
		unit   string
		want   time.Time
	}{
		{3, "days", time.Date(2024, 2, 3, 10, 0, 0, 0, time.UTC)},
		{2, "weeks", time.Date(2024, 2, 14, 10, 0, 0, 0, time.UTC)},
		{1, "months", time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, err := SuspensionEnd(from, tt.period, tt.unit)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%d %s", tt.period, tt.unit)
	}

	_, err := SuspensionEnd(from, 1, "fortnights")
	requireAppError(t, err, apperror.KindValidation, msgInvalidSuspension)
	_, err = SuspensionEnd(from, 0, "days")
	requireAppError(t, err, apperror.KindValidation, msgInvalidSuspension)
}

func TestSuspend(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.signup(t, "a@x.com", "Secret123")

	_, err := f.svc.Suspend(ctx, sess.User.ID, 1, "years")
	requireAppError(t, err, apperror.KindValidation, msgInvalidSuspension)
	stored, _ := f.store.Raw(sess.User.ID)
	assert.False(t, stored.Suspended)

	user, err := f.svc.Suspend(ctx, sess.User.ID, 2, "days")
	require.NoError(t, err)
	assert.True(t, user.Suspended)
	require.NotNil(t, user.SuspensionEndDate)
	assert.Equal(t, f.clock.Now().AddDate(0, 0, 2), *user.SuspensionEndDate)

	_, err = f.svc.Suspend(ctx, uuid.Must(uuid.NewV4()), 2, "days")
	requireAppError(t, err, apperror.KindNotFound, msgUserNotFound)
}

func TestUpdateMe(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.signup(t, "a@x.com", "Secret123")
	f.signup(t, "b@x.com", "Secret123")

	pw := "Secret999"
	_, err := f.svc.UpdateMe(ctx, sess.User.ID, MeUpdate{Password: &pw})
	requireAppError(t, err, apperror.KindValidation, msgNotForPassword)

	name, email := " Alice ", "Alice@X.com"
	user, err := f.svc.UpdateMe(ctx, sess.User.ID, MeUpdate{Name: &name, Email: &email})
	require.NoError(t, err)
	assert.Equal(t, "Alice", user.Name)
	assert.Equal(t, "alice@x.com", user.Email)
	assert.Equal(t, models.Roles{models.RoleUser}, user.Roles)

	taken := "b@x.com"
	_, err = f.svc.UpdateMe(ctx, sess.User.ID, MeUpdate{Email: &taken})
	requireAppError(t, err, apperror.KindConflict, msgEmailTaken)
}

func TestAdminUserManagement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.signup(t, "a@x.com", "Secret123")
	b := f.signup(t, "b@x.com", "Secret123")

	users, err := f.svc.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)

	require.NoError(t, f.svc.DeleteMe(ctx, b.User.ID))
	users, err = f.svc.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, a.User.ID, users[0].ID)

	_, err = f.svc.GetUser(ctx, b.User.ID)
	requireAppError(t, err, apperror.KindNotFound, msgUserNotFound)

	user, err := f.svc.UpdateUser(ctx, a.User.ID, models.UserUpdate{Roles: models.Roles{models.RoleTeamMember, models.RoleTeamMember}})
	require.NoError(t, err)
	assert.Equal(t, models.Roles{models.RoleTeamMember}, user.Roles)

	_, err = f.svc.UpdateUser(ctx, a.User.ID, models.UserUpdate{Roles: models.Roles{}})
	require.Error(t, err)
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))

	require.NoError(t, f.svc.DeleteUser(ctx, a.User.ID))
	err = f.svc.DeleteUser(ctx, a.User.ID)
	requireAppError(t, err, apperror.KindNotFound, msgUserNotFound)
}
