package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"classtrack/internal/auth"
	"classtrack/internal/classes"
)

type classRequest struct {
	Name      string           `json:"name"`
	Subject   string           `json:"subject"`
	Grade     string           `json:"grade"`
	Section   string           `json:"section"`
	TeacherID string           `json:"teacher_id"`
	Schedule  classes.Schedule `json:"schedule"`
}

func (r classRequest) input() classes.Input {
	return classes.Input{
		Name:      r.Name,
		Subject:   r.Subject,
		Grade:     r.Grade,
		Section:   r.Section,
		TeacherID: r.TeacherID,
		Schedule:  r.Schedule,
	}
}

// CreateClass adds a class owned by a teacher.
func (h *Handler) CreateClass(c *gin.Context) {
	ident, _ := auth.CurrentIdentity(c)
	var req classRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	cls, err := h.classes.Create(c.Request.Context(), req.input(), ident)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"class": cls})
}

// ListClasses returns the classes visible to the requester.
func (h *Handler) ListClasses(c *gin.Context) {
	ident, _ := auth.CurrentIdentity(c)
	list, err := h.classes.List(c.Request.Context(), ident)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"classes": list})
}

// GetClass returns one class.
func (h *Handler) GetClass(c *gin.Context) {
	cls, err := h.classes.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"class": cls})
}

// UpdateClass rewrites a class.
func (h *Handler) UpdateClass(c *gin.Context) {
	ident, _ := auth.CurrentIdentity(c)
	var req classRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	cls, err := h.classes.Update(c.Request.Context(), c.Param("id"), req.input(), ident)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"class": cls})
}

// DeleteClass removes a class.
func (h *Handler) DeleteClass(c *gin.Context) {
	ident, _ := auth.CurrentIdentity(c)
	if err := h.classes.Delete(c.Request.Context(), c.Param("id"), ident); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Enroll adds a student to a class.
func (h *Handler) Enroll(c *gin.Context) {
	ident, _ := auth.CurrentIdentity(c)
	var req struct {
		StudentID string `json:"student_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	e, err := h.classes.Enroll(c.Request.Context(), c.Param("id"), req.StudentID, ident)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"enrollment": e})
}

// Unenroll removes a student from a class.
func (h *Handler) Unenroll(c *gin.Context) {
	ident, _ := auth.CurrentIdentity(c)
	if err := h.classes.Unenroll(c.Request.Context(), c.Param("id"), c.Param("studentID"), ident); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Roster lists a class's enrollments.
func (h *Handler) Roster(c *gin.Context) {
	ident, _ := auth.CurrentIdentity(c)
	list, err := h.classes.Roster(c.Request.Context(), c.Param("id"), ident)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"enrollments": list})
}
