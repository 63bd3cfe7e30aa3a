// Package httpapi serves a loopback-only, read-only status view of the Task
// Board and Merge Queue over HTTP, grounded on codeready-toolchain-tarsy's
// gin-based API server. No authentication (the process only ever binds
// 127.0.0.1) and no mutation endpoints — a second thin wrapper over core
// state alongside the CLI and TUI.
package httpapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harrison/undercity/internal/board"
	"github.com/harrison/undercity/internal/merge"
)

// Server is the loopback debug/status HTTP API.
type Server struct {
	board *board.Board
	queue *merge.Queue
	http  *http.Server
}

// New constructs a Server bound to 127.0.0.1:port.
func New(b *board.Board, q *merge.Queue, port int) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{board: b, queue: q}
	router.GET("/healthz", s.handleHealthz)
	router.GET("/tasks", s.handleTasks)
	router.GET("/tasks/:id", s.handleTask)
	router.GET("/merge-queue", s.handleMergeQueue)

	s.http = &http.Server{
		Addr:    fmt.Sprintf("127.0.0.1:%d", port),
		Handler: router,
	}
	return s
}

// ListenAndServe blocks serving until the server errors or is shut down.
func (s *Server) ListenAndServe() error {
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleTasks(c *gin.Context) {
	tasks, err := s.board.All()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, tasks)
}

func (s *Server) handleTask(c *gin.Context) {
	task, err := s.board.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, task)
}

func (s *Server) handleMergeQueue(c *gin.Context) {
	if s.queue == nil {
		c.JSON(http.StatusOK, gin.H{"pending": 0, "merging": 0})
		return
	}
	c.JSON(http.StatusOK, s.queue.GetQueueSummary())
}
