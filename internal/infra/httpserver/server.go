package httpserver

import (
	"context"
	"fmt"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/FuturICT2/FIN4NotificationServer/internal/config"
	"github.com/FuturICT2/FIN4NotificationServer/internal/infra/pushhub"
	"github.com/FuturICT2/FIN4NotificationServer/internal/services"
)

type Server struct {
	cfg    config.Config
	echo   *echo.Echo
	addr   string
	log    *zap.Logger
	mailer *services.MailSignupService
	subs   *services.SubscriptionStore
}

// NewServer builds the echo server: public health, push socket, and mail
// signup/unsubscribe endpoints, plus a JWT-protected admin surface.
func NewServer(cfg config.Config, mailer *services.MailSignupService, subs *services.SubscriptionStore, hub *pushhub.Hub, log *zap.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.Logger())
	e.Use(echojwt.WithConfig(echojwt.Config{
		SigningKey: []byte(cfg.JWTSecret),
		Skipper: func(c echo.Context) bool {
			// only the admin surface needs a token
			switch c.Path() {
			case "/health", "/auth/login", "/ws", "/email/signup", "/email/unsubscribe":
				return true
			}
			return false
		},
	}))

	s := &Server{
		cfg:    cfg,
		echo:   e,
		addr:   fmt.Sprintf(":%s", cfg.AppPort),
		log:    log,
		mailer: mailer,
		subs:   subs,
	}

	e.GET("/health", HealthHandler)
	e.GET("/ws", hub.Handler)
	e.POST("/auth/login", LoginHandler(cfg))
	e.POST("/email/signup", SignupHandler(mailer))
	e.GET("/email/unsubscribe", UnsubscribeHandler(mailer))
	e.GET("/admin/subscribers", SubscribersHandler(subs))

	return s
}

func (s *Server) Start() error {
	s.log.Info("http listening", zap.String("addr", s.addr))
	return s.echo.Start(s.addr)
}

func (s *Server) Stop(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
