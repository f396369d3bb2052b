package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/streamvault/streamvault/internal/pkg/cache"
	"github.com/streamvault/streamvault/internal/pkg/database"
	"github.com/streamvault/streamvault/internal/pkg/env"
	"github.com/streamvault/streamvault/internal/pkg/jobqueue"
	"github.com/streamvault/streamvault/internal/pkg/notify"
	"github.com/streamvault/streamvault/internal/pkg/planchange"
	"github.com/streamvault/streamvault/internal/pkg/provisioning"
	"github.com/streamvault/streamvault/internal/pkg/resellerbalance"
	"github.com/streamvault/streamvault/internal/pkg/router"
)

func main() {
	app, manager := NewApplication()

	// Graceful shutdown: drain workers before the listener dies
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		manager.Stop()
		_ = app.Shutdown()
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	if err != nil {
		log.Fatal(err)
	}
}

// NewApplication wires persistence, the panel client, the background job
// manager and the HTTP surface.
func NewApplication() (*fiber.App, *jobqueue.Manager) {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	db := database.GetDB()
	client := provisioning.NewClientFromEnv()
	notifier := notify.NewSMTPDispatcher()

	tracker := resellerbalance.NewTracker(
		client,
		resellerbalance.NewRepository(db),
		resellerbalance.NewRedisAlertStore(),
		notifier,
	)

	engine := provisioning.NewEngine(provisioning.NewRepository(db), client, notifier).
		WithBalanceSnapshots(func(ctx context.Context, reason string, logID *uint) error {
			_, err := tracker.Snapshot(ctx, reason, logID)
			return err
		})

	planChanges := planchange.NewService(planchange.NewRepository(db), client, queueEnqueuer{}, notifier)

	manager := jobqueue.Setup(engine, planChanges, tracker)
	manager.Start()

	app := fiber.New(fiber.Config{
		AppName: "streamvault",
	})
	app.Use(recover.New(), logger.New())

	router.InstallRouter(app)

	return app, manager
}

// queueEnqueuer resolves the queue lazily; the plan change service is wired
// before the manager exists.
type queueEnqueuer struct{}

func (queueEnqueuer) EnqueuePlanChange(planChangeID uint) error {
	return jobqueue.GetManager().GetQueue().EnqueuePlanChange(planChangeID)
}
