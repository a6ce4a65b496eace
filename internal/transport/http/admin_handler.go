package http

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"quiz-agent-service/internal/app"
	"quiz-agent-service/internal/domain"
	"quiz-agent-service/internal/feedback"
	"quiz-agent-service/internal/generation"
)

type AdminHandler struct {
	admin *app.AdminService
}

func NewAdminHandler(admin *app.AdminService) *AdminHandler {
	return &AdminHandler{admin: admin}
}

// PatchQuestion edits allow-listed question fields. Unknown keys are rejected.
func (h *AdminHandler) PatchQuestion(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		badRequest(c, err)
		return
	}
	patch, err := domain.DecodeQuestionPatchBytes(body)
	if err != nil {
		writeError(c, err)
		return
	}
	q, err := h.admin.PatchQuestion(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		writeError(c, err)
		return
	}
	q.Embedding = nil
	c.JSON(http.StatusOK, q)
}

type generateRequest struct {
	Count          int      `json:"count" binding:"required"`
	Multiplier     int      `json:"multiplier"`
	Difficulty     string   `json:"difficulty"`
	Topics         []string `json:"topics"`
	Categories     []string `json:"categories"`
	ExcludedTopics []string `json:"excludedTopics"`
	Floor          *float64 `json:"floor"`
}

// Generate runs a Best-of-N batch and stores the winners as pending review.
func (h *AdminHandler) Generate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.admin.Generate(c.Request.Context(), generation.Request{
		Count:          req.Count,
		Multiplier:     req.Multiplier,
		Difficulty:     domain.Difficulty(req.Difficulty),
		Topics:         req.Topics,
		Categories:     req.Categories,
		ExcludedTopics: req.ExcludedTopics,
		Floor:          req.Floor,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	selected := make([]gin.H, len(res.Selected))
	for i, cand := range res.Selected {
		q := cand.Question
		q.Embedding = nil
		selected[i] = gin.H{"question": q, "score": cand.Score, "critique": cand.Critique}
	}
	c.JSON(http.StatusOK, gin.H{
		"generated":       res.Generated,
		"selected":        selected,
		"belowFloorCount": res.BelowFloor,
		"floor":           res.Floor,
	})
}

func (h *AdminHandler) QuestionRating(c *gin.Context) {
	summary, err := h.admin.QuestionRating(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// LowRated lists questions averaging below ?threshold= (default 2.5).
func (h *AdminHandler) LowRated(c *gin.Context) {
	threshold := feedback.DefaultLowRatedThreshold
	if raw := c.Query("threshold"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 1 || v > 5 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "threshold must be a number between 1 and 5"})
			return
		}
		threshold = v
	}
	low, err := h.admin.LowRated(c.Request.Context(), threshold)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"threshold": threshold, "questions": low})
}
