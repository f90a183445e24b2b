package apiapp

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/IdrisKulubi/demo-site-sub001/internal/config"
	"github.com/IdrisKulubi/demo-site-sub001/internal/transport/http/handlers"
)

type Dependencies struct {
	Tokens     tokenParser
	Candidates handlers.CandidateSource
	Swipes     handlers.SwipeRecorder
	Matches    handlers.MatchLister
	Messages   handlers.MessageService
	Stream     handlers.StreamSubscriber
	Logger     *zap.Logger
	Config     config.Config
}

func RegisterRoutes(r chi.Router, deps Dependencies) {
	candidateHandler := handlers.NewCandidateHandler(deps.Candidates)
	swipeHandler := handlers.NewSwipeHandler(deps.Swipes)
	matchesHandler := handlers.NewMatchesHandler(deps.Matches)
	messagesHandler := handlers.NewMessagesHandler(deps.Messages)
	streamHandler := handlers.NewStreamHandler(deps.Stream, deps.Messages, handlers.StreamConfig{
		PingInterval:   deps.Config.Chat.PingInterval,
		WriteTimeout:   deps.Config.HTTP.WriteTimeout,
		AllowedOrigins: deps.Config.HTTP.AllowedOrigins,
	}, deps.Logger)
	streamGuard := newIPLimiter(deps.Config.HTTP.StreamRPS, deps.Config.HTTP.StreamBurst)

	r.Get("/healthz", handlers.Health)

	r.Route("/v1", func(v1 chi.Router) {
		v1.Use(AuthMiddleware(deps.Tokens, deps.Logger))

		v1.Group(func(api chi.Router) {
			api.Use(chimiddleware.Timeout(requestTimeout))

			api.Get("/candidates", candidateHandler.List)
			api.Post("/swipes", swipeHandler.Handle)
			api.Get("/matches", matchesHandler.Handle)

			api.Get("/matches/{match_id}/messages", messagesHandler.List)
			api.Post("/matches/{match_id}/messages", messagesHandler.Send)
			api.Post("/matches/{match_id}/read", messagesHandler.Read)
			api.Post("/matches/{match_id}/delivered", messagesHandler.Delivered)
			api.Post("/matches/{match_id}/typing", messagesHandler.Typing)
			api.Get("/matches/{match_id}/unread", messagesHandler.Unread)
		})

		v1.Group(func(stream chi.Router) {
			stream.Use(streamGuard.middleware)

			stream.Get("/stream", streamHandler.User)
			stream.Get("/matches/{match_id}/stream", streamHandler.Match)
		})
	})
}

// newServer builds the HTTP server. WriteTimeout is left to handlers because
// it would cut WebSocket streams.
func newServer(cfg config.HTTPConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}
