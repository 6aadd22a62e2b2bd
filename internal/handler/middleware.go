package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"account_service/internal/apperror"
	"account_service/internal/config"
	"account_service/internal/models"
	"account_service/internal/ratelimit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "requestID"
	currentUserKey  = "currentUser"

	msgForbidden    = "You do not have permission to perform this action"
	msgTooMany      = "Too many requests from this IP, please try again later!"
	msgUnhandledErr = "Something went very wrong!"
)

type ctxKey struct{}

func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}

		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)

		c.Next()
	}
}

func RequestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		log.Info("request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)),
			slog.String("client_ip", c.ClientIP()),
			slog.String("request_id", c.GetString(requestIDKey)),
		)
	}
}

// ErrorHandler turns the last error recorded on the context into the JSON
// error body. Typed errors keep their message; anything else is an internal
// failure whose details are hidden in prod.
func ErrorHandler(log *slog.Logger, env string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		status := apperror.StatusCode(apperror.KindOf(err))

		message := msgUnhandledErr
		if ae, ok := apperror.As(err); ok {
			message = ae.Message
		} else if env != config.EnvProd {
			message = err.Error()
		}

		if status >= http.StatusInternalServerError {
			log.Error("request failed",
				slog.String("path", c.Request.URL.Path),
				slog.String("request_id", c.GetString(requestIDKey)),
				slog.Any("error", err),
			)
		}

		newErrorResponse(c, status, message)
	}
}

func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "no-referrer")
		c.Header("Cross-Origin-Resource-Policy", "same-origin")
		c.Next()
	}
}

func BodyLimit(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		}
		c.Next()
	}
}

// RateLimit rejects clients over their budget. Limiter failures let the
// request through.
func RateLimit(l ratelimit.Limiter, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := l.Allow(c.Request.Context(), "ip:"+c.ClientIP())
		if err != nil {
			log.Warn("rate limiter unavailable", slog.Any("error", err))
		}
		if !ok {
			fail(c, apperror.New(apperror.KindRateLimited, msgTooMany))
			return
		}
		c.Next()
	}
}

func bearerToken(header string) string {
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

// Protect admits only requests carrying a valid bearer token of an existing
// user whose password has not changed since the token was issued.
func (h *Handler) Protect(c *gin.Context) {
	user, err := h.serviceLayer.Authenticate(c.Request.Context(), bearerToken(c.GetHeader("Authorization")))
	if err != nil {
		fail(c, err)
		return
	}

	c.Set(currentUserKey, user)
	c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), ctxKey{}, user))

	c.Next()
}

// RestrictTo must run after Protect.
func RestrictTo(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok || !user.Roles.Intersects(roles...) {
			fail(c, apperror.Authorization(msgForbidden))
			return
		}
		c.Next()
	}
}

func currentUser(c *gin.Context) (models.User, bool) {
	v, ok := c.Get(currentUserKey)
	if !ok {
		return models.User{}, false
	}
	user, ok := v.(models.User)
	return user, ok
}

// UserFromContext returns the user attached by Protect.
func UserFromContext(ctx context.Context) (models.User, bool) {
	user, ok := ctx.Value(ctxKey{}).(models.User)
	return user, ok
}
