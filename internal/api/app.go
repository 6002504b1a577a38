package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/nfukui/chatline/internal/chat"
	"github.com/nfukui/chatline/internal/config"
	"github.com/nfukui/chatline/internal/database"
	"github.com/nfukui/chatline/internal/stats"
)

type App struct {
	log             *log.Logger
	db              database.ChatRepository
	chat            *chat.Service
	stats           stats.StatsProvider
	mux             *http.Server
	signingKey      []byte
	unreadPollDelay time.Duration
}

func NewApp(mux *http.ServeMux, logger *log.Logger, svc *chat.Service, db database.ChatRepository, sp stats.StatsProvider, cfg *config.Config) *App {
	s := &App{
		log:             logger,
		db:              db,
		chat:            svc,
		stats:           sp,
		signingKey:      cfg.SigningKey,
		unreadPollDelay: cfg.UnreadPollDelay,
	}

	mux.HandleFunc("GET /healthz", s.healthCheck)
	mux.HandleFunc("GET /initialize", s.initialize)

	mux.HandleFunc("POST /api/register", s.register)
	mux.HandleFunc("POST /api/login", s.login)
	mux.HandleFunc("GET /api/session", s.authMiddleware(s.session))
	mux.Handle("POST /api/logout", s.authMiddleware(s.logout))
	mux.Handle("GET /api/channels", s.authMiddleware(s.listChannels))
	mux.Handle("POST /api/channels", s.authMiddleware(s.createChannel))

	mux.Handle("GET /message", s.authMiddleware(s.getMessage))
	mux.Handle("POST /message", s.authMiddleware(s.postMessage))
	mux.Handle("GET /fetch", s.authMiddleware(s.fetchUnread))
	mux.Handle("GET /history/{channel_id}", s.authMiddleware(s.getHistory))

	mux.Handle("GET /profile/{user_name}", s.authMiddleware(s.getProfile))
	mux.Handle("POST /profile", s.authMiddleware(s.postProfile))
	mux.Handle("GET /icons/{file_name}", s.authMiddleware(s.getIcon))

	if sp != nil {
		sp.RegisterMetric(stats.MessagesPosted)
		sp.RegisterMetric(stats.IncrementalFetches)
		sp.RegisterMetric(stats.UnreadPolls)
		sp.RegisterMetric(stats.HistoryViews)
	}

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.requestLogger(h)
	h = s.errorHandler(h)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	s.mux = srv
	return s
}

func (s *App) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *App) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
