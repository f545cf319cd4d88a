package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const secretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// UpdateHandler consumes one decoded webhook update.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, update tgbotapi.Update)
}

type Config struct {
	Address string
	// WebhookSecret, when set, must match the platform's secret-token
	// header on every webhook call.
	WebhookSecret string
}

// Server exposes the webhook and health endpoints. The webhook always
// acknowledges with 200 so the platform never retries a call whose side
// effects already happened; gin's recovery middleware backstops panics.
type Server struct {
	engine  *gin.Engine
	handler UpdateHandler
	logger  *zap.Logger
	cfg     Config
}

func New(handler UpdateHandler, cfg Config, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		engine:  engine,
		handler: handler,
		logger:  logger,
		cfg:     cfg,
	}
	engine.POST("/webhook", s.handleWebhook)
	engine.GET("/healthz", s.handleHealth)
	return s
}

func (s *Server) Run() error {
	return s.engine.Run(s.cfg.Address)
}

// Engine exposes the router for tests.
func (s *Server) Engine() http.Handler {
	return s.engine
}

func (s *Server) handleWebhook(c *gin.Context) {
	if s.cfg.WebhookSecret != "" && c.GetHeader(secretTokenHeader) != s.cfg.WebhookSecret {
		c.String(http.StatusUnauthorized, "forbidden")
		return
	}

	var update tgbotapi.Update
	if err := c.ShouldBindJSON(&update); err != nil {
		// Malformed payloads are acknowledged and dropped.
		s.logger.Debug("Dropping undecodable webhook payload", zap.Error(err))
		c.String(http.StatusOK, "ok")
		return
	}

	s.handler.HandleUpdate(c.Request.Context(), update)
	c.String(http.StatusOK, "ok")
}

func (s *Server) handleHealth(c *gin.Context) {
	c.String(http.StatusOK, "Bot is running!")
}
