package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"weatherbench/internal/analytics"
	"weatherbench/internal/anomaly"
	"weatherbench/internal/execution/queue"
	"weatherbench/internal/readings"
)

func main() {
	_ = godotenv.Load()
	logger := log.New(os.Stdout, "worker ", log.LstdFlags)

	dataFile := os.Getenv("DATA_FILE")
	if dataFile == "" {
		logger.Fatal("DATA_FILE is required")
	}
	amqpURL := os.Getenv("AMQP_URL")
	if amqpURL == "" {
		logger.Fatal("AMQP_URL is required")
	}
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		logger.Fatal("REDIS_ADDR is required")
	}

	rs, err := readings.ReadCSVFile(dataFile)
	if err != nil {
		logger.Fatalf("read data file: %v", err)
	}
	data := readings.NewDataset(rs)
	logger.Printf("dataset loaded: readings=%d stations=%d regions=%d",
		data.Len(), len(data.Stations()), len(data.Regions()))

	bounds := anomaly.DefaultFixedBounds()
	var rule anomaly.Rule = bounds
	if rulesFile := os.Getenv("RULES_FILE"); rulesFile != "" {
		bounds, err = anomaly.LoadBoundsFile(rulesFile)
		if err != nil {
			logger.Fatalf("load rules file: %v", err)
		}
		rule = bounds
	}
	if os.Getenv("ANOMALY_RULE") == "statistical" {
		rule, err = anomaly.NewStatisticalDeviation(3.0)
		if err != nil {
			logger.Fatalf("statistical rule: %v", err)
		}
	}
	engine, err := analytics.NewEngine(rule)
	if err != nil {
		logger.Fatalf("analytics engine: %v", err)
	}

	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		logger.Fatalf("amqp dial error: %v", err)
	}
	defer conn.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer redisClient.Close()
	store := queue.NewRedisStore(redisClient)

	worker, err := queue.NewWorker(data, engine, store, logger)
	if err != nil {
		logger.Fatalf("worker: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Printf("consuming %s", queue.TaskQueue)
	if err := worker.Consume(ctx, conn); err != nil {
		logger.Fatalf("consume: %v", err)
	}
}
