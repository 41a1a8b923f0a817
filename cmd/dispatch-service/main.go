package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-dispatch/internal/catalog"
	catalogdb "ms-dispatch/internal/catalog/db"
	"ms-dispatch/internal/config"
	"ms-dispatch/internal/database/migrations"
	"ms-dispatch/internal/fleet"
	fleetdb "ms-dispatch/internal/fleet/db"
	"ms-dispatch/internal/kafka"
	"ms-dispatch/internal/logger"
	"ms-dispatch/internal/session"
	sessiondb "ms-dispatch/internal/session/db"
	"ms-dispatch/internal/tickets"
	ticketsdb "ms-dispatch/internal/tickets/db"
	ticketsqr "ms-dispatch/internal/tickets/qr"
	ticketsredis "ms-dispatch/internal/tickets/redis"
	"ms-dispatch/internal/transfers"
	transfersdb "ms-dispatch/internal/transfers/db"
)

func openDatabase(cfg config.DatabaseConfig, log *logger.Logger) *bun.DB {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database)
	sqldb, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to open Postgres: %v", err))
	}
	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)
	if err := sqldb.Ping(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to Postgres: %v", err))
	}
	log.Info("DATABASE", "Postgres connection successful")
	return bun.NewDB(sqldb, pgdialect.New())
}

func main() {
	_ = godotenv.Load() // Loads .env file if present

	cfg := config.Load()
	log := logger.NewLogger()
	defer log.Close()

	ctx := context.Background()

	bunDB := openDatabase(cfg.Database, log)
	defer bunDB.Close()

	runner := migrations.NewRunner(bunDB, migrations.DefaultOptions())
	if err := runner.RunMigrations(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Migrations failed: %v", err))
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal("REDIS", fmt.Sprintf("Failed to connect to Redis: %v", err))
	}
	defer rdb.Close()

	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		topics := []string{
			cfg.Kafka.Topics.DispatchCreated,
			cfg.Kafka.Topics.DispatchFinished,
			cfg.Kafka.Topics.TicketSold,
			cfg.Kafka.Topics.TicketCancelled,
			cfg.Kafka.Topics.TransferCreated,
			cfg.Kafka.Topics.TransferDelivered,
		}
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, topics); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic bootstrap failed: %v", err))
		}
		producer = kafka.NewProducer(cfg.Kafka.Brokers)
		defer producer.Close()
	}
	events := kafka.NewEvents(producer, cfg.Kafka.Topics, log, cfg.Kafka.Enabled)

	catalogSvc := catalog.NewService(&catalogdb.DB{Bun: bunDB})
	fleetSvc := fleet.NewService(&fleetdb.DB{Bun: bunDB}, catalogSvc, events, log,
		cfg.Dispatch.LongHaulDistanceKm)
	manifestLock := ticketsredis.NewLock(rdb, cfg.Tickets.ManifestLockTTL)
	ticketSvc := tickets.NewService(&ticketsdb.DB{Bun: bunDB}, manifestLock, events,
		ticketsqr.NewGenerator(cfg.Tickets.QRSecret), log)
	sessionSvc := session.NewService(&sessiondb.DB{Bun: bunDB}, log, cfg.Session.IdleTimeout)
	transferSvc := transfers.NewService(&transfersdb.DB{Bun: bunDB}, events, log,
		cfg.Dispatch.TransferCommissionPercent)

	app := &App{
		Catalog:   catalogSvc,
		Fleet:     fleetSvc,
		Tickets:   ticketSvc,
		Sessions:  sessionSvc,
		Transfers: transferSvc,
		Logger:    log,
	}

	sweepCtx, cancelSweep := context.WithCancel(ctx)
	defer cancelSweep()
	go app.sweepIdleSessions(sweepCtx)

	log.Info("STARTUP", "Dispatch core ready; engines wired")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("SHUTDOWN", "Dispatch service shutdown complete")
}

// App bundles the wired engines for embedding callers; the daemon itself only
// runs housekeeping.
type App struct {
	Catalog   *catalog.Service
	Fleet     *fleet.Service
	Tickets   *tickets.Service
	Sessions  *session.Service
	Transfers *transfers.Service
	Logger    *logger.Logger
}

// sweepIdleSessions closes sessions past the idle timeout once a minute.
func (a *App) sweepIdleSessions(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := a.Sessions.ExpireIdle(ctx); err != nil {
				a.Logger.Error("SESSION", fmt.Sprintf("Idle session sweep failed: %v", err))
			}
		}
	}
}
