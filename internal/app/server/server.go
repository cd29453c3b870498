package server

import (
	"context"
	"huddle/internal/app/server/handlers"
	"huddle/internal/app/server/session"
	"huddle/internal/config"
	"huddle/internal/core/contracts"
	"huddle/internal/core/services"
	"huddle/pkg/middleware"
	"log/slog"
	"net/http"
	"time"
)

type Server struct {
	mux            *http.ServeMux
	log            *slog.Logger
	cfg            *config.Config
	authHandler    *handlers.AuthHandler
	channelHandler *handlers.ChannelHandler
	messageHandler *handlers.MessageHandler
	wsHandler      *handlers.WSHandler
	tokenSvc       *services.TokenService
}

func NewServer(
	log *slog.Logger,
	cfg *config.Config,
	userSvc *services.UserService,
	tokenSvc *services.TokenService,
	channelSvc *services.ChannelService,
	messageSvc *services.MessageService,
	dispatcher contracts.Broadcaster,
	presence contracts.PresenceStore,
	sessionDeps session.Deps,
) *Server {
	s := &Server{
		mux:            http.NewServeMux(),
		log:            log,
		cfg:            cfg,
		authHandler:    handlers.NewAuthHandler(userSvc, tokenSvc),
		channelHandler: handlers.NewChannelHandler(channelSvc),
		messageHandler: handlers.NewMessageHandler(messageSvc, dispatcher, presence),
		wsHandler:      handlers.NewWSHandler(sessionDeps),
		tokenSvc:       tokenSvc,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	auth := middleware.AuthMiddleware(s.tokenSvc)

	// Public
	s.mux.HandleFunc("POST /auth/register", s.authHandler.Register)
	s.mux.HandleFunc("POST /auth/login", s.authHandler.Login)

	// Protected REST. Message creation here broadcasts through the same
	// dispatcher as the WebSocket path.
	s.mux.Handle("POST /api/workspaces/{workspace_id}/channels", auth(http.HandlerFunc(s.channelHandler.Create)))
	s.mux.Handle("GET /api/channels/{channel_id}", auth(http.HandlerFunc(s.channelHandler.Get)))
	s.mux.Handle("POST /api/channels/{channel_id}/join", auth(http.HandlerFunc(s.channelHandler.Join)))
	s.mux.Handle("POST /api/channels/{channel_id}/messages", auth(http.HandlerFunc(s.messageHandler.Create)))
	s.mux.Handle("GET /api/channels/{channel_id}/messages", auth(http.HandlerFunc(s.messageHandler.List)))
	s.mux.Handle("GET /api/users/{user_id}/presence", auth(http.HandlerFunc(s.messageHandler.Presence)))

	// WebSocket. The credential travels as a query parameter; the session
	// answers a bad one with a policy-violation close, so no middleware here.
	s.mux.HandleFunc("/ws", s.wsHandler.Handler)
}

// Handler returns the fully wrapped root handler; tests mount it on an
// httptest server.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = middleware.TracerMiddleware(s.cfg.Service.Name)(h)
	h = middleware.RequestLogger(s.log)(h)
	return h
}

// Start serves until ctx is canceled, then drains with a timeout.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:        s.cfg.Service.Addr,
		Handler:     s.Handler(),
		ReadTimeout: 15 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server - start - listening", "addr", s.cfg.Service.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
