package handler

import (
	"net/http"

	"account_service/internal/models"
	"account_service/internal/service"

	"github.com/gin-gonic/gin"
)

type suspendRequest struct {
	SuspensionPeriod int    `json:"suspensionPeriod"`
	SuspensionUnit   string `json:"suspensionUnit"`
}

type updateMeRequest struct {
	Name            *string `json:"name"`
	Email           *string `json:"email"`
	Password        *string `json:"password"`
	PasswordConfirm *string `json:"passwordConfirm"`
}

type updateUserRequest struct {
	Name  *string  `json:"name"`
	Email *string  `json:"email"`
	Roles []string `json:"roles"`
}

// PATCH /api/v1/users/update-me
func (h *Handler) UpdateMe(c *gin.Context) {
	me, _ := currentUser(c)

	var req updateMeRequest
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}

	user, err := h.serviceLayer.UpdateMe(c.Request.Context(), me.ID, service.MeUpdate{
		Name:            req.Name,
		Email:           req.Email,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
	})
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, userResponse{Status: "success", Data: userData{User: user}})
}

// DELETE /api/v1/users/delete-me
func (h *Handler) DeleteMe(c *gin.Context) {
	me, _ := currentUser(c)

	if err := h.serviceLayer.DeleteMe(c.Request.Context(), me.ID); err != nil {
		fail(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// PATCH /api/v1/users/suspend/:userId
func (h *Handler) Suspend(c *gin.Context) {
	id, err := parseUserID(c, "userId")
	if err != nil {
		fail(c, err)
		return
	}

	var req suspendRequest
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}

	user, err := h.serviceLayer.Suspend(c.Request.Context(), id, req.SuspensionPeriod, req.SuspensionUnit)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, userResponse{Status: "success", Data: userData{User: user}})
}

// GET /api/v1/users/users
func (h *Handler) GetAllUsers(c *gin.Context) {
	users, err := h.serviceLayer.ListUsers(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}

	resp := usersResponse{Status: "success", Results: len(users)}
	resp.Data.Users = users

	c.JSON(http.StatusOK, resp)
}

// GET /api/v1/users/users/:id
func (h *Handler) GetUser(c *gin.Context) {
	id, err := parseUserID(c, "id")
	if err != nil {
		fail(c, err)
		return
	}

	user, err := h.serviceLayer.GetUser(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, userResponse{Status: "success", Data: userData{User: user}})
}

// PATCH /api/v1/users/users/:id
func (h *Handler) UpdateUser(c *gin.Context) {
	id, err := parseUserID(c, "id")
	if err != nil {
		fail(c, err)
		return
	}

	var req updateUserRequest
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}

	upd := models.UserUpdate{Name: req.Name, Email: req.Email}
	if req.Roles != nil {
		upd.Roles = models.RolesFromStrings(req.Roles)
	}

	user, err := h.serviceLayer.UpdateUser(c.Request.Context(), id, upd)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, userResponse{Status: "success", Data: userData{User: user}})
}

// DELETE /api/v1/users/users/:id
func (h *Handler) DeleteUser(c *gin.Context) {
	id, err := parseUserID(c, "id")
	if err != nil {
		fail(c, err)
		return
	}

	if err := h.serviceLayer.DeleteUser(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
