package models

import (
	"strings"
	"time"

	"github.com/gofrs/uuid"
)

type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleTeamMember Role = "team member"
)

// Roles is a set of role tags. Order carries no meaning.
type Roles []Role

// Allowed reports whether every role in rs is in allow and rs is non-empty.
func (rs Roles) Allowed(allow ...Role) bool {
	if len(rs) == 0 {
		return false
	}
	for _, r := range rs {
		if !Roles(allow).Has(r) {
			return false
		}
	}
	return true
}

func (rs Roles) Has(role Role) bool {
	for _, r := range rs {
		if r == role {
			return true
		}
	}
	return false
}

// Intersects reports whether rs and required share at least one role.
func (rs Roles) Intersects(required ...Role) bool {
	for _, r := range required {
		if rs.Has(r) {
			return true
		}
	}
	return false
}

// Normalize drops duplicates keeping first occurrence order.
func (rs Roles) Normalize() Roles {
	out := make(Roles, 0, len(rs))
	for _, r := range rs {
		if !out.Has(r) {
			out = append(out, r)
		}
	}
	return out
}

func (rs Roles) Strings() []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = string(r)
	}
	return out
}

func RolesFromStrings(ss []string) Roles {
	out := make(Roles, len(ss))
	for i, s := range ss {
		out[i] = Role(s)
	}
	return out
}

// NormalizeEmail lower-cases and trims an address; emails are unique case-insensitively.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type User struct {
	ID                     uuid.UUID  `json:"id"`
	Name                   string     `json:"name,omitempty"`
	Email                  string     `json:"email"`
	PasswordHash           string     `json:"-"`
	Roles                  Roles      `json:"roles"`
	PasswordChangedAt      *time.Time `json:"-"`
	PasswordVersion        int        `json:"-"`
	PasswordResetTokenHash *string    `json:"-"`
	PasswordResetExpires   *time.Time `json:"-"`
	Suspended              bool       `json:"suspended"`
	SuspensionEndDate      *time.Time `json:"suspensionEndDate,omitempty"`
	Active                 bool       `json:"-"`
	CreatedAt              time.Time  `json:"createdAt"`
}

// ChangedPasswordAfter reports whether the password was changed after a token
// issued at iat with password version pwv. Every password change bumps
// PasswordVersion, so a token minted before a change is caught even within
// the second its iat was truncated to.
func (u *User) ChangedPasswordAfter(iat time.Time, pwv int) bool {
	if pwv != u.PasswordVersion {
		return true
	}
	if u.PasswordChangedAt == nil {
		return false
	}
	return u.PasswordChangedAt.Unix() > iat.Unix()
}

// RoleClaim marks that an email has used its one-time claim on a privileged role.
type RoleClaim struct {
	Email     string
	Role      Role
	ClaimedAt time.Time
}

// UserUpdate lists the profile fields a caller may change; nil fields are kept.
type UserUpdate struct {
	Name  *string
	Email *string
	Roles Roles
}
