package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"weatherbench/internal/analytics"
	"weatherbench/internal/anomaly"
	apihttp "weatherbench/internal/api/http"
	"weatherbench/internal/auth"
	"weatherbench/internal/bench"
	"weatherbench/internal/execution"
	enginebackend "weatherbench/internal/execution/engine"
	"weatherbench/internal/execution/pool"
	"weatherbench/internal/execution/queue"
	"weatherbench/internal/observability/metrics"
	"weatherbench/internal/readings"
	"weatherbench/internal/runstore"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	_ = godotenv.Load()
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	metrics.Init()

	rs, err := readings.ReadCSVFile(cfg.DataFile)
	if err != nil {
		logger.Fatalf("read data file: %v", err)
	}
	truth, err := readings.ReadTruthCSVFile(cfg.TruthFile)
	if err != nil {
		logger.Fatalf("read truth file: %v", err)
	}
	data := readings.NewDataset(rs)
	logger.Printf("dataset loaded: readings=%d stations=%d regions=%d truth=%d",
		data.Len(), len(data.Stations()), len(data.Regions()), len(truth))

	bounds := anomaly.DefaultFixedBounds()
	if cfg.RulesFile != "" {
		bounds, err = anomaly.LoadBoundsFile(cfg.RulesFile)
		if err != nil {
			logger.Fatalf("load rules file: %v", err)
		}
	}
	var rule anomaly.Rule = bounds
	if cfg.Rule == "statistical" {
		rule, err = anomaly.NewStatisticalDeviation(cfg.DeviationFactor)
		if err != nil {
			logger.Fatalf("statistical rule: %v", err)
		}
	}
	engine, err := analytics.NewEngine(rule)
	if err != nil {
		logger.Fatalf("analytics engine: %v", err)
	}

	poolBackend, err := pool.New(engine, cfg.PoolParallelism)
	if err != nil {
		logger.Fatalf("pool backend: %v", err)
	}
	backends := []execution.Backend{poolBackend}

	var store runstore.Store
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			logger.Fatalf("db open error: %v", err)
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			logger.Fatalf("db ping error: %v", err)
		}

		sqlBackend, err := enginebackend.New(db, rule, logger)
		if err != nil {
			logger.Fatalf("engine backend: %v", err)
		}
		backends = append(backends, sqlBackend)

		pgStore := runstore.NewPostgresStore(db)
		if err := pgStore.EnsureSchema(context.Background()); err != nil {
			logger.Fatalf("run store schema: %v", err)
		}
		store = pgStore
	} else {
		fileStore, err := runstore.NewFileStore(cfg.RunLogPath)
		if err != nil {
			logger.Fatalf("run store: %v", err)
		}
		store = fileStore
	}

	if cfg.AMQPURL != "" && cfg.RedisAddr != "" {
		conn, err := amqp.Dial(cfg.AMQPURL)
		if err != nil {
			logger.Fatalf("amqp dial error: %v", err)
		}
		defer conn.Close()
		broker, err := queue.NewAMQPBroker(conn)
		if err != nil {
			logger.Fatalf("amqp broker: %v", err)
		}
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
		fragments := queue.NewRedisStore(redisClient)

		dispatcher, err := queue.NewDispatcher(broker, fragments, cfg.QueueWait, 0, logger)
		if err != nil {
			logger.Fatalf("queue dispatcher: %v", err)
		}
		backends = append(backends, dispatcher)
	}

	registry := execution.NewRegistry(backends...)
	svc, err := bench.NewService(data, truth, registry, bounds, store, logger)
	if err != nil {
		logger.Fatalf("bench service: %v", err)
	}
	logger.Printf("backends configured: %v", registry.Names())

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/runs", apihttp.NewRunsHandler(svc))
	mux.Handle("/api/v1/runs/", apihttp.NewExportHandler(svc))
	mux.Handle("/api/v1/backends", apihttp.NewBackendsHandler(svc))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

type config struct {
	DataFile        string
	TruthFile       string
	RulesFile       string
	Rule            string
	DeviationFactor float64
	PoolParallelism int
	QueueWait       time.Duration
	DatabaseURL     string
	AMQPURL         string
	RedisAddr       string
	RunLogPath      string
	HTTPAddr        string
	JWTSecret       string
}

func loadConfig() config {
	cfg := config{
		DataFile:        getenvDefault("DATA_FILE", ""),
		TruthFile:       getenvDefault("TRUTH_FILE", ""),
		RulesFile:       getenvDefault("RULES_FILE", ""),
		Rule:            getenvDefault("ANOMALY_RULE", "fixed"),
		DeviationFactor: getenvFloatDefault("DEVIATION_FACTOR", 3.0),
		PoolParallelism: getenvIntDefault("POOL_PARALLELISM", 0),
		QueueWait:       getenvDuration("QUEUE_WAIT", 0),
		DatabaseURL:     getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		AMQPURL:         getenvDefault("AMQP_URL", ""),
		RedisAddr:       getenvDefault("REDIS_ADDR", ""),
		RunLogPath:      getenvDefault("RUN_LOG", "runs.jsonl"),
		HTTPAddr:        getenvDefault("HTTP_ADDR", ":8080"),
		JWTSecret:       getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
	}
	if cfg.DataFile == "" {
		log.Fatal("DATA_FILE is required")
	}
	if cfg.Rule != "fixed" && cfg.Rule != "statistical" {
		log.Fatal("ANOMALY_RULE must be fixed or statistical")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvFloatDefault(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
