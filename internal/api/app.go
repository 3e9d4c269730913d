package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/siphyr/dmserver/internal/config"
	"github.com/siphyr/dmserver/internal/database"
	"github.com/siphyr/dmserver/internal/server"
	"github.com/siphyr/dmserver/internal/store"
)

type MessagingApp struct {
	log            *log.Logger
	db             database.MessagingRepository
	mux            *http.Server
	ms             *server.MessagingServer
	reader         *store.ConversationReader
	signingKey     []byte
	allowedOrigins []string
}

func NewMessagingApp(mux *http.ServeMux, logger *log.Logger, ms *server.MessagingServer, db database.MessagingRepository, reader *store.ConversationReader, cfg *config.Config) *MessagingApp {
	s := &MessagingApp{
		log:            logger,
		db:             db,
		ms:             ms,
		reader:         reader,
		signingKey:     cfg.SigningKey,
		allowedOrigins: cfg.AllowedOrigins,
	}

	mux.Handle("POST /api/messages", s.authMiddleware(s.sendMessage))
	mux.Handle("GET /api/messages", s.authMiddleware(s.getMessages))
	mux.Handle("GET /api/conversations", s.authMiddleware(s.getConversations))
	mux.Handle("GET /api/users", s.authMiddleware(s.listUsers))
	mux.Handle("GET /api/profile", s.authMiddleware(s.getProfile))
	mux.Handle("PUT /api/profile", s.authMiddleware(s.updateProfile))
	mux.Handle("GET /ws", s.authMiddleware(s.serveWs))

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept", "Authorization"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	s.mux = srv
	return s
}

func (s *MessagingApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *MessagingApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
