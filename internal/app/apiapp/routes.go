package apiapp

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	authsvc "github.com/ivankudzin/matchcore/internal/services/auth"
	blocksvc "github.com/ivankudzin/matchcore/internal/services/blocks"
	convsvc "github.com/ivankudzin/matchcore/internal/services/conversations"
	matchessvc "github.com/ivankudzin/matchcore/internal/services/matches"
	"github.com/ivankudzin/matchcore/internal/services/notify"
	relsvc "github.com/ivankudzin/matchcore/internal/services/relationships"
	swipesvc "github.com/ivankudzin/matchcore/internal/services/swipes"
	"github.com/ivankudzin/matchcore/internal/transport/http/handlers"
)

type Dependencies struct {
	AuthService         *authsvc.Service
	Resolver            handlers.Resolver
	RateLimiter         handlers.RateLimiter
	SwipeService        *swipesvc.Service
	MatchEngine         *matchessvc.Engine
	BlockService        *blocksvc.Service
	ConversationService *convsvc.Service
	RelationshipService *relsvc.Service
	Inbox               *notify.Inbox
	HealthChecks        map[string]handlers.Pinger
	Logger              *zap.Logger
}

func RegisterRoutes(r chi.Router, deps Dependencies) {
	healthHandler := handlers.NewHealthHandler(deps.HealthChecks)
	swipeHandler := handlers.NewSwipeHandler(deps.SwipeService, deps.Resolver, deps.RateLimiter)
	matchesHandler := handlers.NewMatchesHandler(deps.MatchEngine, deps.Resolver)
	blockHandler := handlers.NewBlockHandler(deps.BlockService, deps.Resolver, deps.RateLimiter)
	messageHandler := handlers.NewMessageHandler(deps.ConversationService, deps.Resolver, deps.RateLimiter)
	relationshipHandler := handlers.NewRelationshipHandler(deps.RelationshipService, deps.Resolver)
	notificationHandler := handlers.NewNotificationHandler(deps.Inbox)
	authMW := AuthMiddleware(deps.AuthService, deps.Logger)

	r.Get("/healthz", healthHandler.Get)

	r.Route("/v1", func(r chi.Router) {
		r.Use(authMW)

		r.Post("/swipes", swipeHandler.Handle)
		r.Post("/swipes/batch", swipeHandler.Batch)
		r.Get("/swipes", swipeHandler.List)
		r.Get("/swipes/stats", swipeHandler.Stats)
		r.Get("/swipes/{target}", swipeHandler.Get)
		r.Delete("/swipes/{target}", swipeHandler.Delete)

		r.Get("/matches", matchesHandler.Handle)
		r.Post("/matches/unmatch", matchesHandler.Unmatch)

		r.Post("/blocks", blockHandler.Block)
		r.Get("/blocks", blockHandler.ListBlocked)
		r.Get("/blocks/blockers", blockHandler.ListBlockers)
		r.Get("/blocks/{target}", blockHandler.Check)
		r.Delete("/blocks/{target}", blockHandler.Unblock)

		r.Get("/relationships/{target}", relationshipHandler.Get)
		r.Get("/connections", relationshipHandler.Connections)

		r.Post("/messages", messageHandler.Send)
		r.Post("/messages/read", messageHandler.MarkRead)
		r.Patch("/messages/{id}", messageHandler.Edit)
		r.Delete("/messages/{id}", messageHandler.Delete)
		r.Get("/conversations", messageHandler.Conversations)
		r.Get("/conversations/{target}", messageHandler.History)

		r.Get("/notifications", notificationHandler.List)
		r.Get("/notifications/unread-count", notificationHandler.UnreadCount)
		r.Post("/notifications/read", notificationHandler.MarkRead)
	})
}
