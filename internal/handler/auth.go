package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"classtrack/internal/apperr"
	"classtrack/internal/auth"
	"classtrack/internal/users"
)

type registerRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Name     string `json:"name" binding:"required"`
	Role     string `json:"role" binding:"required,oneof=STUDENT TEACHER ADMIN"`

	GradeLevel    string `json:"grade_level"`
	Section       string `json:"section"`
	GuardianPhone string `json:"guardian_phone"`
	Subject       string `json:"subject"`
	Department    string `json:"department"`
	Title         string `json:"title"`
}

func (r registerRequest) input() users.RegisterInput {
	return users.RegisterInput{
		Email:         r.Email,
		Password:      r.Password,
		Name:          r.Name,
		Role:          users.Role(r.Role),
		GradeLevel:    r.GradeLevel,
		Section:       r.Section,
		GuardianPhone: r.GuardianPhone,
		Subject:       r.Subject,
		Department:    r.Department,
		Title:         r.Title,
	}
}

// Register creates a student or teacher account with its role profile.
// Admin accounts come from the seed config or an existing admin (CreateUser).
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Role == string(users.RoleAdmin) {
		fail(c, apperr.Authorization("admin_signup_forbidden", "admin accounts are provisioned by an administrator"))
		return
	}
	u, err := h.users.Register(c.Request.Context(), req.input())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": u})
}

// Login verifies credentials and returns a token pair.
func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	u, pair, err := h.users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user":          u,
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"expires_at":    pair.AccessExp.Unix(),
	})
}

// Refresh rotates a refresh token.
func (h *Handler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	pair, err := h.users.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"expires_at":    pair.AccessExp.Unix(),
	})
}

// Me returns the authenticated user.
func (h *Handler) Me(c *gin.Context) {
	ident, _ := auth.CurrentIdentity(c)
	u, err := h.users.Get(c.Request.Context(), ident.ID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u})
}
