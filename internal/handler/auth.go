package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"account_service/internal/service"

	"github.com/gin-gonic/gin"
)

const resetPath = "/api/v1/users/reset-password"

type registrationRequest struct {
	Name            string   `json:"name"`
	Email           string   `json:"email"`
	Password        string   `json:"password"`
	PasswordConfirm string   `json:"passwordConfirm"`
	Roles           []string `json:"roles"`
	// Role is accepted as an alias of Roles.
	Role []string `json:"role"`
}

func (r registrationRequest) toRegistration() service.Registration {
	roles := r.Roles
	if roles == nil {
		roles = r.Role
	}
	return service.Registration{
		Name:            r.Name,
		Email:           r.Email,
		Password:        r.Password,
		PasswordConfirm: r.PasswordConfirm,
		Roles:           roles,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

type updatePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
	PasswordConfirm string `json:"passwordConfirm"`
}

func (h *Handler) setTokenCookie(c *gin.Context, value string, expires time.Time) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     tokenCookie,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) sendSession(c *gin.Context, status int, sess service.Session) {
	h.setTokenCookie(c, sess.Token, sess.ExpiresAt)

	c.JSON(status, sessionResponse{
		Status: "success",
		Token:  sess.Token,
		Data:   userData{User: sess.User},
	})
}

// register serves the three self-registration endpoints, which differ only
// in the service call.
func (h *Handler) register(create func(context.Context, service.Registration) (service.Session, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registrationRequest
		if err := bindJSON(c, &req); err != nil {
			fail(c, err)
			return
		}

		sess, err := create(c.Request.Context(), req.toRegistration())
		if err != nil {
			fail(c, err)
			return
		}

		h.sendSession(c, http.StatusCreated, sess)
	}
}

// POST /api/v1/users/login
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}

	sess, err := h.serviceLayer.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		fail(c, err)
		return
	}

	h.sendSession(c, http.StatusOK, sess)
}

// GET /api/v1/users/logout
func (h *Handler) Logout(c *gin.Context) {
	h.setTokenCookie(c, loggedOut, time.Now().Add(logoutExpires*time.Second))

	c.JSON(http.StatusOK, messageResponse{Status: "success"})
}

// GET /api/v1/users/verify-token
func (h *Handler) VerifyToken(c *gin.Context) {
	token, _ := c.Cookie(tokenCookie)

	if err := h.serviceLayer.VerifyToken(token); err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, messageResponse{
		Status:  "success",
		Message: "Token is valid and has not expired yet.",
	})
}

// POST /api/v1/users/forgot-password
func (h *Handler) ForgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}

	if err := h.serviceLayer.ForgotPassword(c.Request.Context(), req.Email, h.resetURLBase()); err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, messageResponse{
		Status:  "success",
		Message: "If that email address is registered, a reset link has been sent to it.",
	})
}

// resetURLBase is built from configuration only; request headers such as
// Host are client controlled.
func (h *Handler) resetURLBase() string {
	return strings.TrimRight(h.opts.PublicURL, "/") + resetPath
}

// PATCH /api/v1/users/reset-password/:token
func (h *Handler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}

	sess, err := h.serviceLayer.ResetPassword(c.Request.Context(), c.Param("token"), req.Password, req.PasswordConfirm)
	if err != nil {
		fail(c, err)
		return
	}

	h.sendSession(c, http.StatusOK, sess)
}

// PATCH /api/v1/users/update-password
func (h *Handler) UpdatePassword(c *gin.Context) {
	user, _ := currentUser(c)

	var req updatePasswordRequest
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}

	sess, err := h.serviceLayer.UpdatePassword(c.Request.Context(), user, service.PasswordChange{
		Current:         req.CurrentPassword,
		New:             req.NewPassword,
		PasswordConfirm: req.PasswordConfirm,
	})
	if err != nil {
		fail(c, err)
		return
	}

	h.sendSession(c, http.StatusOK, sess)
}
