// Package httpapi exposes the coordinator over HTTP: a stateless REST
// surface and the websocket upgrade endpoint for the real-time channel.
package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/chesslive/coordinator/internal/coordinator"
	"github.com/chesslive/coordinator/internal/domain"
	"github.com/chesslive/coordinator/internal/obslog"
	"github.com/chesslive/coordinator/internal/ws"
)

type Server struct {
	coord        *coordinator.Coordinator
	pingInterval time.Duration
}

func NewServer(coord *coordinator.Coordinator, pingInterval time.Duration) *Server {
	return &Server{coord: coord, pingInterval: pingInterval}
}

// Router builds the gin engine with all routes attached.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/ws", s.serveWebSocket)

	api := r.Group("/api")
	api.POST("/games", s.createGame)
	api.GET("/games/:id", s.getGame)
	api.GET("/games", s.availableGames)
	api.POST("/games/:id/move", s.makeMove)
	api.POST("/webhooks", s.registerWebhook)

	return r
}

func (s *Server) serveWebSocket(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		obslog.L().Warn("ws_accept_error", zap.Error(err))
		return
	}
	ws.Serve(c.Request.Context(), conn, s.coord, s.pingInterval)
}

func (s *Server) createGame(c *gin.Context) {
	g, err := s.coord.CreateGame(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	s.coord.AnnounceGame(g, "")
	c.JSON(http.StatusCreated, gin.H{"success": true, "game": g})
}

func (s *Server) getGame(c *gin.Context) {
	g, err := s.coord.GetGame(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "game": g})
}

func (s *Server) availableGames(c *gin.Context) {
	games, err := s.coord.AvailableGames(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	if games == nil {
		games = []*domain.Game{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "games": games})
}

type moveRequest struct {
	Move        string `json:"move"`
	PlayerColor string `json:"playerColor"`
}

func (s *Server) makeMove(c *gin.Context) {
	var req moveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
		return
	}
	g, err := s.coord.Move(c.Request.Context(), c.Param("id"), req.Move, domain.Color(req.PlayerColor))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "game": g})
}

type webhookRequest struct {
	URL    string             `json:"url"`
	Events []domain.EventKind `json:"events"`
	GameID string             `json:"gameId"`
}

func (s *Server) registerWebhook(c *gin.Context) {
	var req webhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
		return
	}
	w, err := s.coord.RegisterWebhook(c.Request.Context(), req.URL, req.Events, req.GameID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "webhook": gin.H{
		"id":     w.ID,
		"url":    w.URL,
		"events": w.Events,
		"gameId": w.GameID,
	}})
}

// fail maps coordinator errors onto the REST error envelope: unknown
// games are 404, other validation failures 400, everything else 500.
func (s *Server) fail(c *gin.Context, err error) {
	var rej *coordinator.Rejection
	if errors.As(err, &rej) {
		status := http.StatusBadRequest
		if rej.NotFound() {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"success": false, "error": rej.Message})
		return
	}
	obslog.L().Error("http_internal_error", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal error"})
}
