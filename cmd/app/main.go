package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Domenick1991/airticketing/config"
	"github.com/Domenick1991/airticketing/internal/bootstrap"
	"github.com/Domenick1991/airticketing/internal/cache"
	"github.com/Domenick1991/airticketing/internal/kafka"
	"github.com/Domenick1991/airticketing/internal/payment"
	"github.com/Domenick1991/airticketing/internal/repository"
	"github.com/Domenick1991/airticketing/internal/service/flights"
	"github.com/Domenick1991/airticketing/internal/service/seatmap"
	"github.com/Domenick1991/airticketing/internal/service/ticket"
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

	if err := repository.InitSchema(ctx, pool); err != nil {
		logrus.Fatalf("init schema: %v", err)
	}

	redisCache := cache.NewRedisCache(cfg.Redis, time.Duration(cfg.Booking.FlightsCacheTTL)*time.Second)
	producer := kafka.NewProducer(cfg.Kafka.Brokers)
	defer producer.Close()

	flightRepo := repository.NewFlightRepository(pool)
	seatMapRepo := repository.NewSeatMapRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)

	flightService := flights.NewFlightService(flightRepo, redisCache, producer,
		flights.WithScheduleChangeTopic(cfg.Kafka.NotificationsTopic))
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

	payments := payment.NewStubGateway()

	if err := bootstrap.Run(ctx, cfg, flightService, seatMapService, ticketService, payments); err != nil {
		logrus.Fatalf("server error: %v", err)
	}
}
