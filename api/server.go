// Package api exposes a read-only HTTP view over stored task artifacts:
// rankings, score tables, and pairwise exports.
package api

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/stellarlinkco/checkrank/internal/store"
)

type Server struct {
	router *gin.Engine
	store  store.Store
}

func NewServer(st store.Store) (*Server, error) {
	if st == nil {
		return nil, errors.New("api: nil store")
	}

	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{router: r, store: st}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	api := s.router.Group("/api/v1")
	api.GET("/health", s.handleHealth)
	api.GET("/tasks/:id", s.handleGetTask)
	api.GET("/tasks/:id/ranking", s.handleGetRanking)
	api.GET("/tasks/:id/scores", s.handleGetScores)
	api.GET("/tasks/:id/pairwise", s.handleGetPairwise)
}

func (s *Server) Run(addr string) error {
	if s == nil || s.router == nil {
		return errors.New("api: nil server")
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		addr = ":8080"
	}
	return s.router.Run(addr)
}
