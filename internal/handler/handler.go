package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"account_service/internal/apperror"
	"account_service/internal/config"
	"account_service/internal/models"
	"account_service/internal/ratelimit"
	"account_service/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
)

const (
	maxBodyBytes = 10 << 10

	tokenCookie   = "jwt"
	loggedOut     = "loggedout"
	logoutExpires = 10
)

type Options struct {
	Env           string
	SecureCookies bool
	// PublicURL is the origin used in links mailed to users.
	PublicURL string
	// Limiter is applied to every /api route when set.
	Limiter ratelimit.Limiter
}

type Handler struct {
	serviceLayer service.Service
	log          *slog.Logger
	opts         Options
}

type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type messageResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type userData struct {
	User models.User `json:"user"`
}

type sessionResponse struct {
	Status string   `json:"status"`
	Token  string   `json:"token"`
	Data   userData `json:"data"`
}

type userResponse struct {
	Status string   `json:"status"`
	Data   userData `json:"data"`
}

type usersResponse struct {
	Status  string `json:"status"`
	Results int    `json:"results"`
	Data    struct {
		Users []models.User `json:"users"`
	} `json:"data"`
}

func newErrorResponse(c *gin.Context, statusCode int, errMessage string) {
	status := "fail"
	if statusCode >= http.StatusInternalServerError {
		status = "error"
	}
	c.AbortWithStatusJSON(statusCode, errorResponse{Status: status, Message: errMessage})
}

// fail hands err to ErrorHandler and stops the chain.
func fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// bindJSON decodes the request body into obj. An empty body leaves obj
// untouched so that missing fields are reported by the service.
func bindJSON(c *gin.Context, obj any) error {
	err := c.ShouldBindJSON(obj)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperror.Wrap(err, apperror.KindValidation, "Request body is too large.")
	}

	return apperror.Wrap(err, apperror.KindValidation, "Invalid request body.")
}

func parseUserID(c *gin.Context, param string) (uuid.UUID, error) {
	id, err := uuid.FromString(c.Param(param))
	if err != nil {
		return uuid.Nil, apperror.Wrap(err, apperror.KindValidation, "Invalid user id.")
	}
	return id, nil
}

func NewHandler(srvc service.Service, lgr *slog.Logger, opts Options) *Handler {
	return &Handler{
		serviceLayer: srvc,
		log:          lgr,
		opts:         opts,
	}
}

func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()

	router.Use(
		RequestID(),
		RequestLogger(h.log),
		ErrorHandler(h.log, h.opts.Env),
		gin.CustomRecoveryWithWriter(io.Discard, h.recoverPanic),
		SecurityHeaders(),
		BodyLimit(maxBodyBytes),
	)

	router.GET("/healthz", h.Healthz)
	router.NoRoute(h.NotFound)

	api := router.Group("/api")
	if h.opts.Limiter != nil {
		api.Use(RateLimit(h.opts.Limiter, h.log))
	}

	users := api.Group("/v1/users")
	{
		users.POST("/signup", h.register(h.serviceLayer.Signup))
		users.POST("/register-admin", h.register(h.serviceLayer.RegisterAdmin))
		users.POST("/register-team-member", h.register(h.serviceLayer.RegisterTeamMember))
		users.POST("/login", h.Login)
		users.GET("/logout", h.Logout)
		users.GET("/verify-token", h.VerifyToken)
		users.POST("/forgot-password", h.ForgotPassword)
		users.PATCH("/reset-password/:token", h.ResetPassword)

		protected := users.Group("", h.Protect)
		{
			protected.PATCH("/update-password", h.UpdatePassword)
			protected.PATCH("/update-me", h.UpdateMe)
			protected.DELETE("/delete-me", h.DeleteMe)
		}

		admin := users.Group("", h.Protect, RestrictTo(models.RoleAdmin))
		{
			admin.PATCH("/suspend/:userId", h.Suspend)
			admin.GET("/users", h.GetAllUsers)
			admin.GET("/users/:id", h.GetUser)
			admin.PATCH("/users/:id", h.UpdateUser)
			admin.DELETE("/users/:id", h.DeleteUser)
		}
	}

	return router
}

func (h *Handler) recoverPanic(c *gin.Context, recovered any) {
	h.log.Error("panic recovered", slog.Any("panic", recovered), slog.String("path", c.Request.URL.Path))
	fail(c, fmt.Errorf("panic: %v", recovered))
}

// GET /healthz
func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, messageResponse{Status: "ok"})
}

func (h *Handler) NotFound(c *gin.Context) {
	fail(c, apperror.NotFound(fmt.Sprintf("Can't find %s on this server!", c.Request.URL.RequestURI())))
}

// ServerConfig returns the http.Server settings for h.
func ServerConfig(cfg config.HTTPServer, h http.Handler) *http.Server {
	return &http.Server{
		Addr:         cfg.Address,
		Handler:      h,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}
