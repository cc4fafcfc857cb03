package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/etag"
	"github.com/gofiber/utils"

	"halaqat_backend/internals/configs"
	database "halaqat_backend/internals/databases"
	"halaqat_backend/internals/features/meetings/realtime"
	meetingService "halaqat_backend/internals/features/meetings/service"
	notifService "halaqat_backend/internals/features/notifications/service"
	attScheduler "halaqat_backend/internals/features/sessions/attendance/scheduler"
	attService "halaqat_backend/internals/features/sessions/attendance/service"
	schedService "halaqat_backend/internals/features/sessions/scheduling/service"
	"halaqat_backend/internals/helpers/clock"
	middlewares "halaqat_backend/internals/middlewares"
	routes "halaqat_backend/internals/route"
)

func main() {
	configs.LoadEnv()

	app := fiber.New(fiber.Config{
		JSONEncoder:             sonic.Marshal,
		JSONDecoder:             sonic.Unmarshal,
		DisableStartupMessage:   true,
		ProxyHeader:             fiber.HeaderXForwardedFor,
		EnableTrustedProxyCheck: true,
		TrustedProxies:          []string{"0.0.0.0/0"},
	})

	app.Use(compress.New(compress.Config{Level: compress.LevelDefault}))
	app.Use(etag.New())

	// Request-ID + timing
	app.Use(func(c *fiber.Ctx) error {
		id := c.Get("X-Request-ID")
		if id == "" {
			id = utils.UUID()
		}
		c.Set("X-Request-ID", id)
		c.Locals("reqid", id)
		start := time.Now()
		ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
		defer cancel()
		c.SetUserContext(ctx)
		err := c.Next()
		dur := time.Since(start)
		log.Printf("[REQ] id=%s %s %s status=%d dur=%s", id, c.Method(), c.OriginalURL(), c.Response().StatusCode(), dur)
		return err
	})

	middlewares.SetupMiddlewares(app)

	database.ConnectDB()
	database.TunePool()
	database.Migrate()
	database.WarmUpQueries()
	db := database.DB

	clk := clock.System()

	// realtime hub for meeting presence broadcasts
	hub := realtime.NewHub()

	notifier := notifService.NewOutboxNotifier(db)
	scheduler := schedService.NewSchedulerService(db, clk)
	tracker := attService.NewTrackerService(db, clk, nil, hub)
	tracker.Rooms = meetingService.NewInProcessRoomService(configs.GetEnvOr("MEET_BASE_URL", ""))
	classifier := attService.NewClassifierService(db, clk, notifier)
	stats := attService.NewStatsService(db)

	attScheduler.StartAttendanceMaintenanceScheduler(db, tracker, classifier)

	rootCtx, stop := context.WithCancel(context.Background())
	dispatcher := notifService.NewDispatcher(db, notifService.LogSender{}, clk)
	go dispatcher.Start(rootCtx)

	// websocket listener runs beside fiber on its own port
	wsPort := configs.GetEnvOr("WS_PORT", "3001")
	wsServer := &http.Server{Addr: "0.0.0.0:" + wsPort, Handler: hub}
	go func() {
		log.Printf("🔌 WebSocket hub listening on :%s", wsPort)
		if err := wsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[ERROR] websocket server: %v", err)
		}
	}()

	routes.SetupRoutes(app, db, routes.Deps{
		Scheduler:  scheduler,
		Tracker:    tracker,
		Classifier: classifier,
		Stats:      stats,
		Clock:      clk,
	})

	app.Server().ReadTimeout = 15 * time.Second
	app.Server().WriteTimeout = 30 * time.Second
	app.Server().IdleTimeout = 90 * time.Second

	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}

	go func() {
		log.Printf("✅ Listening on :%s", port)
		if err := app.Listen("0.0.0.0:" + port); err != nil {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = wsServer.Shutdown(ctx)
	_ = app.ShutdownWithContext(ctx)

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
