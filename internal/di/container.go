// Package di wires the application's dependency graph.
package di

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/nipark/booking/internal/dataapi"
	"github.com/nipark/booking/internal/handler"
	"github.com/nipark/booking/internal/metrics"
	"github.com/nipark/booking/internal/pricing"
	"github.com/nipark/booking/internal/service"
	"github.com/nipark/booking/internal/ticket"
	"github.com/nipark/booking/internal/voucher"
	"github.com/nipark/booking/pkg/config"
	"github.com/nipark/booking/pkg/kafka"
	"github.com/nipark/booking/pkg/logger"
	pkgredis "github.com/nipark/booking/pkg/redis"
)

// Container holds all wired application dependencies
type Container struct {
	Config *config.Config
	Logger *logger.Logger

	Redis    *pkgredis.Client
	Producer *kafka.Producer

	DataAPI *dataapi.Client
	Service service.BookingService

	BookingHandler *handler.BookingHandler
	HealthHandler  *handler.HealthHandler
}

// NewContainer builds the dependency graph. Redis is required; Kafka
// is optional and degrades to a no-op publisher so an unavailable
// broker never takes bookings down.
func NewContainer(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Container, error) {
	c := &Container{Config: cfg, Logger: log}

	metrics.Init()

	redisClient, err := pkgredis.NewClient(ctx, &pkgredis.Config{
		Host:          cfg.Redis.Host,
		Port:          cfg.Redis.Port,
		Password:      cfg.Redis.Password,
		DB:            cfg.Redis.DB,
		PoolSize:      cfg.Redis.PoolSize,
		MinIdleConns:  cfg.Redis.MinIdleConns,
		DialTimeout:   cfg.Redis.DialTimeout,
		ReadTimeout:   cfg.Redis.ReadTimeout,
		WriteTimeout:  cfg.Redis.WriteTimeout,
		MaxRetries:    3,
		RetryInterval: time.Second,
	})
	if err != nil {
		return nil, err
	}
	c.Redis = redisClient

	var events service.EventPublisher = service.NoOpEventPublisher{}
	producer, err := kafka.NewProducer(ctx, &kafka.ProducerConfig{
		Brokers:       cfg.Kafka.Brokers,
		ClientID:      cfg.Kafka.ClientID,
		MaxRetries:    3,
		RetryInterval: 2 * time.Second,
		BatchSize:     100,
		LingerMs:      10,
	})
	if err != nil {
		log.Warn("kafka unavailable, booking events disabled", zap.Error(err))
	} else {
		c.Producer = producer
		events = service.NewKafkaEventPublisher(producer, cfg.Kafka.Topic)
	}

	c.DataAPI = dataapi.NewClient(cfg.DataAPI, log)

	store := voucher.StoreFunc(c.DataAPI.FindVoucherByCode)

	c.Service = service.NewBookingService(service.ServiceConfig{
		DataAPI:    c.DataAPI,
		Validator:  voucher.NewValidator(store),
		Usage:      voucher.NewRedisUsageCounter(redisClient),
		Calculator: pricing.NewCalculator(cfg.Pricing),
		Tickets:    ticket.NewGenerator(),
		Events:     events,
		Booking:    cfg.Booking,
		Logger:     log,
	})

	c.BookingHandler = handler.NewBookingHandler(c.Service, log)
	c.HealthHandler = handler.NewHealthHandler(cfg, redisClient)

	return c, nil
}

// Close releases all held resources
func (c *Container) Close() {
	if c.Producer != nil {
		c.Producer.Close()
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			c.Logger.Warn("failed to close redis client", zap.Error(err))
		}
	}
}
