package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/stellarlinkco/checkrank/internal/ranking"
	"github.com/stellarlinkco/checkrank/internal/store"
)

func respondError(c *gin.Context, status int, err error) {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, gin.H{"error": msg})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) taskID(c *gin.Context) (string, bool) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		respondError(c, http.StatusBadRequest, errors.New("task id is required"))
		return "", false
	}
	return id, true
}

func (s *Server) handleGetTask(c *gin.Context) {
	id, ok := s.taskID(c)
	if !ok {
		return
	}

	task, err := s.store.GetTask(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		respondError(c, http.StatusNotFound, errors.New("task not found"))
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":         task.ID,
		"dataset":    task.Dataset,
		"judge":      task.Judge,
		"created_at": task.CreatedAt,
	})
}

func (s *Server) handleGetRanking(c *gin.Context) {
	id, ok := s.taskID(c)
	if !ok {
		return
	}

	rows, err := s.store.GetRanking(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		respondError(c, http.StatusNotFound, errors.New("ranking not found"))
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{"rank": row.Rank, "model": row.Model, "score": row.Score})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleGetScores(c *gin.Context) {
	id, ok := s.taskID(c)
	if !ok {
		return
	}

	rows, err := s.store.GetScores(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		respondError(c, http.StatusNotFound, errors.New("scores not found"))
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{"model": row.Model, "prompt_id": row.PromptID, "score": row.Score})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleGetPairwise(c *gin.Context) {
	id, ok := s.taskID(c)
	if !ok {
		return
	}

	rows, err := s.store.GetScores(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		respondError(c, http.StatusNotFound, errors.New("scores not found"))
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	records := ranking.Pairwise(rows)
	out := make([]gin.H, 0, len(records))
	for _, rec := range records {
		out = append(out, gin.H{
			"model_a":   rec.ModelA,
			"model_b":   rec.ModelB,
			"prompt_id": rec.PromptID,
			"outcome":   rec.Outcome,
		})
	}
	c.JSON(http.StatusOK, out)
}
