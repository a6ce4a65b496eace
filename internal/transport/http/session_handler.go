package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"quiz-agent-service/internal/app"
	"quiz-agent-service/internal/domain"
)

type SessionHandler struct {
	service *app.QuizService
}

func NewSessionHandler(service *app.QuizService) *SessionHandler {
	return &SessionHandler{service: service}
}

type createSessionRequest struct {
	MaxQuestions int    `json:"maxQuestions"`
	Difficulty   string `json:"difficulty"`
	UserID       string `json:"userId"`
	Mode         string `json:"mode"`
	Category     string `json:"category"`
	Language     string `json:"language"`
	TTLMinutes   int    `json:"ttlMinutes"`
}

// CreateSession starts a new idle session.
func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	session, err := h.service.Create(c.Request.Context(), app.CreateRequest{
		MaxQuestions: req.MaxQuestions,
		Difficulty:   req.Difficulty,
		UserID:       req.UserID,
		Mode:         domain.Mode(req.Mode),
		Category:     req.Category,
		Language:     req.Language,
		TTL:          time.Duration(req.TTLMinutes) * time.Minute,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

func (h *SessionHandler) GetSession(c *gin.Context) {
	session, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *SessionHandler) DeleteSession(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ExtendSession pushes the expiry out to now plus the given minutes.
func (h *SessionHandler) ExtendSession(c *gin.Context) {
	var req struct {
		Minutes int `json:"minutes" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	session, err := h.service.Extend(c.Request.Context(), c.Param("id"), req.Minutes)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessionId": session.ID, "expiresAt": session.ExpiresAt})
}

func (h *SessionHandler) StartSession(c *gin.Context) {
	res, err := h.service.Start(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// SubmitInput runs one turn with free text from a player.
func (h *SessionHandler) SubmitInput(c *gin.Context) {
	var req struct {
		Text          string `json:"text"`
		ParticipantID string `json:"participantId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.service.SubmitInput(c.Request.Context(), c.Param("id"), req.Text, req.ParticipantID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *SessionHandler) Advance(c *gin.Context) {
	res, err := h.service.Advance(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *SessionHandler) CurrentQuestion(c *gin.Context) {
	view, err := h.service.CurrentQuestion(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Rate accepts a rating for the current question. Delivery happens in the background.
func (h *SessionHandler) Rate(c *gin.Context) {
	var req struct {
		Rating        int    `json:"rating" binding:"required"`
		Feedback      string `json:"feedback"`
		ParticipantID string `json:"participantId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.service.Rate(c.Request.Context(), c.Param("id"), req.Rating, req.Feedback, req.ParticipantID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

func (h *SessionHandler) AddParticipant(c *gin.Context) {
	var req struct {
		DisplayName string `json:"displayName" binding:"required"`
		UserID      string `json:"userId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	p, err := h.service.AddParticipant(c.Request.Context(), c.Param("id"), req.DisplayName, req.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *SessionHandler) RemoveParticipant(c *gin.Context) {
	if err := h.service.RemoveParticipant(c.Request.Context(), c.Param("id"), c.Param("pid")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
