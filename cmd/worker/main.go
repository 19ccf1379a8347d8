package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Domenick1991/airticketing/config"
	"github.com/Domenick1991/airticketing/internal/cache"
	"github.com/Domenick1991/airticketing/internal/email"
	"github.com/Domenick1991/airticketing/internal/kafka"
	"github.com/Domenick1991/airticketing/internal/repository"
	"github.com/Domenick1991/airticketing/internal/service/seatmap"
	"github.com/Domenick1991/airticketing/internal/service/ticket"
	"github.com/Domenick1991/airticketing/internal/worker"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		logrus.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	redisCache := cache.NewRedisCache(cfg.Redis, time.Duration(cfg.Booking.FlightsCacheTTL)*time.Second)
	producer := kafka.NewProducer(cfg.Kafka.Brokers)
	defer producer.Close()

	flightRepo := repository.NewFlightRepository(pool)
	seatMapRepo := repository.NewSeatMapRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)

	seatMapService := seatmap.NewSeatMapService(seatMapRepo, flightRepo)
	ticketService := ticket.NewTicketService(
		ticketRepo,
		flightRepo,
		seatMapService,
		redisCache,
		producer,
		cfg.Kafka.TicketEventsTopic,
		time.Duration(cfg.Booking.PaymentWindowMinutes)*time.Minute,
		time.Duration(cfg.Booking.FlightLockSeconds)*time.Second,
		ticket.WithNotificationsTopic(cfg.Kafka.NotificationsTopic),
	)

	emailSender := email.NewSender()

	// Deliver notification-topic events as emails.
	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic)
	defer consumer.Close()

	go func() {
		if err := consumer.ConsumeTicketEvents(ctx, func(ctx context.Context, event kafka.TicketEvent) error {
			emailSender.Send(ctx, event.Email, event.Type, map[string]interface{}{
				"ticket_code": event.TicketCode,
				"flight_id":   event.FlightID,
				"seat_ids":    event.SeatIDs,
			})
			return nil
		}); err != nil {
			logrus.WithError(err).Info("consumer stopped")
		}
	}()

	sweeper := worker.NewExpirationSweeper(
		ticketService,
		emailSender,
		redisCache,
		time.Duration(cfg.Worker.ExpirationSweepMinutes)*time.Minute,
		time.Duration(cfg.Booking.NotifyDedupHours)*time.Hour,
	)

	logrus.WithField("interval_minutes", cfg.Worker.ExpirationSweepMinutes).Info("expiration sweeper started")
	sweeper.Run(ctx)
}
