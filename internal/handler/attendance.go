package handler

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"classtrack/internal/attendance"
	"classtrack/internal/auth"
	"classtrack/internal/queue"
)

// GenerateQR issues a check-in token for a class and returns its QR image.
func (h *Handler) GenerateQR(c *gin.Context) {
	ident, _ := auth.CurrentIdentity(c)
	var req struct {
		ClassID string `json:"class_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	issued, err := h.attendance.Issue(c.Request.Context(), req.ClassID, ident)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"code":       issued.Code,
		"expires_at": issued.ExpiresAt,
		"image":      issued.Image,
	})
}

// Scan redeems a check-in code for the authenticated student.
func (h *Handler) Scan(c *gin.Context) {
	ident, _ := auth.CurrentIdentity(c)
	var req struct {
		QRCode string `json:"qr_code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	rec, err := h.attendance.Redeem(c.Request.Context(), req.QRCode, ident.ID)
	if err != nil {
		fail(c, err)
		return
	}

	if h.queue != nil {
		body, _ := json.Marshal(rec)
		if err := h.queue.Publish(c.Request.Context(), queue.Message{Type: "attendance.marked", Body: body}); err != nil {
			log.Printf("queue publish failed: %v", err)
		}
	}

	c.JSON(http.StatusCreated, gin.H{"attendance": rec})
}

// ClassAttendance returns the per-day summary for a class.
func (h *Handler) ClassAttendance(c *gin.Context) {
	ident, _ := auth.CurrentIdentity(c)
	sum, err := h.attendance.ClassSummary(c.Request.Context(), c.Param("classID"), c.Query("date"), ident)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": sum})
}

// StudentAttendance returns the authenticated student's records and percentage.
func (h *Handler) StudentAttendance(c *gin.Context) {
	ident, _ := auth.CurrentIdentity(c)
	sum, err := h.attendance.Student(c.Request.Context(), ident.ID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": sum.Records, "percentage": sum.Percent})
}

// MarkAttendance manually sets a student's status for a class day.
func (h *Handler) MarkAttendance(c *gin.Context) {
	ident, _ := auth.CurrentIdentity(c)
	var req struct {
		ClassID   string `json:"class_id" binding:"required"`
		StudentID string `json:"student_id" binding:"required"`
		Date      string `json:"date"`
		Status    string `json:"status" binding:"required,oneof=PRESENT ABSENT LATE"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	rec, err := h.attendance.Mark(c.Request.Context(), req.ClassID, req.StudentID, req.Date, attendance.Status(req.Status), ident)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attendance": rec})
}
