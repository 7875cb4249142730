package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"classtrack/internal/apperr"
	"classtrack/internal/auth"
	"classtrack/internal/users"
)

// CreateUser provisions an account with any role, including ADMIN.
// Admin only; the public register route does not accept ADMIN.
func (h *Handler) CreateUser(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	u, err := h.users.Register(c.Request.Context(), req.input())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": u})
}

// ListUsers returns users, optionally filtered by ?role=. Admin only.
func (h *Handler) ListUsers(c *gin.Context) {
	limit, offset := 50, 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}
	list, err := h.users.List(c.Request.Context(), users.Role(c.Query("role")), limit, offset)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": list})
}

// GetUser returns one user. Admins may read anyone; others only themselves.
func (h *Handler) GetUser(c *gin.Context) {
	ident, _ := auth.CurrentIdentity(c)
	id := c.Param("id")
	if ident.Role != string(users.RoleAdmin) && ident.ID != id {
		fail(c, apperr.Authorization("forbidden", "cannot read other users"))
		return
	}
	u, err := h.users.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u})
}

// UpdateUser changes account fields. Admins or the user themselves.
func (h *Handler) UpdateUser(c *gin.Context) {
	ident, _ := auth.CurrentIdentity(c)
	id := c.Param("id")
	if ident.Role != string(users.RoleAdmin) && ident.ID != id {
		fail(c, apperr.Authorization("forbidden", "cannot update other users"))
		return
	}
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	u, err := h.users.Update(c.Request.Context(), id, req.Name)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u})
}

// ChangeRole reassigns a user's role, replacing the profile atomically.
// Admin only.
func (h *Handler) ChangeRole(c *gin.Context) {
	var req struct {
		Role string `json:"role" binding:"required,oneof=STUDENT TEACHER ADMIN"`

		GradeLevel    string `json:"grade_level"`
		Section       string `json:"section"`
		GuardianPhone string `json:"guardian_phone"`
		Subject       string `json:"subject"`
		Department    string `json:"department"`
		Title         string `json:"title"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	u, err := h.users.ChangeRole(c.Request.Context(), c.Param("id"), users.RegisterInput{
		Role:          users.Role(req.Role),
		GradeLevel:    req.GradeLevel,
		Section:       req.Section,
		GuardianPhone: req.GuardianPhone,
		Subject:       req.Subject,
		Department:    req.Department,
		Title:         req.Title,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u})
}

// DeleteUser removes a user and all dependents. Admin only.
func (h *Handler) DeleteUser(c *gin.Context) {
	if err := h.users.Delete(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
