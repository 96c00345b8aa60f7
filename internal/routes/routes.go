package routes

import (
	"github.com/CejeJoe/gymcoach-sub001/internal/config"
	"github.com/CejeJoe/gymcoach-sub001/internal/handlers"
	"github.com/CejeJoe/gymcoach-sub001/internal/middleware"
	"github.com/CejeJoe/gymcoach-sub001/internal/repository"
	"github.com/CejeJoe/gymcoach-sub001/internal/services"
	chatws "github.com/CejeJoe/gymcoach-sub001/internal/websocket"
	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RegisterRoutes wires repositories, services, and handlers onto the app and
// returns the broadcast service so the caller can drive the periodic sweep.
func RegisterRoutes(app *fiber.App, cfg *config.Config, db *pgxpool.Pool) *services.BroadcastService {
	userRepo := repository.NewUserRepository(db)
	rosterRepo := repository.NewRosterRepository(db)
	workoutRepo := repository.NewWorkoutRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	groupMessageRepo := repository.NewGroupMessageRepository(db)
	recipientRepo := repository.NewRecipientRepository(db)
	deliveryRepo := repository.NewDeliveryRepository(db)

	hub := chatws.NewHub()
	go hub.Run()

	threadService := services.NewThreadService(db, messageRepo, rosterRepo, hub)
	resolver := services.NewAudienceResolver(rosterRepo)
	dispatcher := services.NewFanoutDispatcher(resolver, deliveryRepo, hub)
	broadcastService := services.NewBroadcastService(
		groupMessageRepo,
		recipientRepo,
		messageRepo,
		workoutRepo,
		dispatcher,
	)

	authHandler := handlers.NewAuthHandler(userRepo, cfg.JWTSecret)
	threadHandler := handlers.NewThreadHandler(threadService)
	broadcastHandler := handlers.NewBroadcastHandler(broadcastService)
	rosterHandler := handlers.NewRosterHandler(rosterRepo, userRepo)
	workoutHandler := handlers.NewWorkoutHandler(workoutRepo)
	wsHandler := handlers.NewWebSocketHandler(hub, cfg.JWTSecret)

	api := app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Get("/me", middleware.AuthRequired(cfg.JWTSecret), authHandler.Me)

	authProtected := api.Group("/v1", middleware.AuthRequired(cfg.JWTSecret))

	threads := authProtected.Group("/threads")
	threads.Get("", threadHandler.ListThreads)
	threads.Get("/:partnerId/messages", threadHandler.ListMessages)
	threads.Post("/:partnerId/messages", threadHandler.SendMessage)
	threads.Post("/:partnerId/read", threadHandler.MarkRead)

	broadcasts := authProtected.Group("/broadcasts")
	broadcasts.Post("", broadcastHandler.Schedule)
	broadcasts.Get("", broadcastHandler.List)
	broadcasts.Get("/:id", broadcastHandler.Status)
	broadcasts.Post("/:id/send", broadcastHandler.SendNow)
	broadcasts.Delete("/:id", broadcastHandler.Cancel)

	authProtected.Post("/deliveries/:id/confirm", broadcastHandler.Confirm)

	clients := authProtected.Group("/clients")
	clients.Get("", rosterHandler.List)
	clients.Post("", rosterHandler.Attach)
	clients.Put("/:id/status", rosterHandler.SetStatus)

	workouts := authProtected.Group("/workouts")
	workouts.Get("", workoutHandler.List)
	workouts.Post("", workoutHandler.Create)

	api.Use("/v1/ws", wsHandler.WebSocketAuth)
	api.Get("/v1/ws", websocket.New(wsHandler.HandleWebSocket))

	return broadcastService
}
