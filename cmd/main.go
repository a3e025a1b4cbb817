package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fjod/go_cart/cartstore/internal/catalog"
	"github.com/fjod/go_cart/cartstore/internal/domain"
	h "github.com/fjod/go_cart/cartstore/internal/http"
	"github.com/fjod/go_cart/cartstore/internal/notify"
	"github.com/fjod/go_cart/cartstore/internal/storage"
	"github.com/fjod/go_cart/cartstore/internal/store"
	"github.com/redis/go-redis/v9"
)

type Config struct {
	HTTPPort        string
	CatalogBaseURL  string
	CatalogTimeout  time.Duration
	RequestTimeout  time.Duration
	MaxSessions     int
	ShutdownTimeout time.Duration
	StorageBackend  string
	RedisAddr       string
	RedisPassword   string
	RedisCartTTL    time.Duration
	MongoURI        string
	MongoDBName     string
	KafkaBrokers    []string
	NotifyTopic     string
}

// Seed catalog used when CATALOG_BASE_URL is not set
var seedProducts = []struct {
	product domain.Product
	stock   int
}{
	{domain.Product{ID: 1, Title: "Tênis de Caminhada Leve Confortável", Price: 179.9, Image: "https://rocketseat-cdn.s3-sa-east-1.amazonaws.com/modulo-redux/tenis1.jpg"}, 3},
	{domain.Product{ID: 2, Title: "Tênis VR Caminhada Confortável Detalhes Couro Masculino", Price: 139.9, Image: "https://rocketseat-cdn.s3-sa-east-1.amazonaws.com/modulo-redux/tenis2.jpg"}, 5},
	{domain.Product{ID: 3, Title: "Tênis Adidas Duramo Lite 2.0", Price: 219.9, Image: "https://rocketseat-cdn.s3-sa-east-1.amazonaws.com/modulo-redux/tenis3.jpg"}, 2},
	{domain.Product{ID: 4, Title: "Tênis de Caminhada Leve Confortável", Price: 179.9, Image: "https://rocketseat-cdn.s3-sa-east-1.amazonaws.com/modulo-redux/tenis1.jpg"}, 1},
	{domain.Product{ID: 5, Title: "Tênis VR Caminhada Confortável Detalhes Couro Masculino", Price: 139.9, Image: "https://rocketseat-cdn.s3-sa-east-1.amazonaws.com/modulo-redux/tenis2.jpg"}, 5},
	{domain.Product{ID: 6, Title: "Tênis Adidas Duramo Lite 2.0", Price: 219.9, Image: "https://rocketseat-cdn.s3-sa-east-1.amazonaws.com/modulo-redux/tenis3.jpg"}, 10},
}

func loadConfig() *Config {
	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		CatalogBaseURL:  getEnv("CATALOG_BASE_URL", ""),
		CatalogTimeout:  getDuration("CATALOG_TIMEOUT", 5*time.Second),
		RequestTimeout:  30 * time.Second,
		MaxSessions:     getInt("MAX_SESSIONS", store.DefaultMaxSessions),
		ShutdownTimeout: 10 * time.Second,
		StorageBackend:  getEnv("STORAGE_BACKEND", "redis"),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisCartTTL:    getDuration("REDIS_CART_TTL", storage.RetentionPeriod),
		MongoURI:        getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName:     getEnv("MONGO_DB_NAME", "cartdb"),
		KafkaBrokers:    splitList(getEnv("KAFKA_BROKERS", "")),
		NotifyTopic:     getEnv("NOTIFY_TOPIC", "cart-notifications"),
	}
}

func main() {
	cfg := loadConfig()
	ctx := context.Background()

	st, closeStorage := setupStorage(ctx, cfg)
	defer closeStorage()

	var products store.ProductCatalog
	var stock store.StockService
	if cfg.CatalogBaseURL != "" {
		client := catalog.NewHTTPClient(cfg.CatalogBaseURL, cfg.CatalogTimeout)
		products, stock = client, client
		log.Printf("Using catalog at %s", cfg.CatalogBaseURL)
	} else {
		mem := catalog.NewMemoryCatalog()
		for _, seed := range seedProducts {
			mem.SetProduct(seed.product, seed.stock)
		}
		products, stock = mem, mem
		log.Printf("Using in-memory catalog with %d products", len(seedProducts))
	}

	notifiers := notify.Multi{notify.NewLogNotifier(nil)}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaNotifier := notify.NewKafkaNotifier(cfg.NotifyTopic, cfg.KafkaBrokers...)
		defer func() {
			if err := kafkaNotifier.Close(); err != nil {
				log.Printf("failed to close kafka notifier: %v", err)
			}
		}()
		notifiers = append(notifiers, kafkaNotifier)
		log.Printf("Publishing notifications to %s on %v", cfg.NotifyTopic, cfg.KafkaBrokers)
	}

	registry, err := store.NewRegistry(store.Config{
		Catalog:  products,
		Stock:    stock,
		Storage:  st,
		Notifier: notifiers,
	}, cfg.MaxSessions)
	if err != nil {
		log.Fatalf("Failed to create cart registry: %v", err)
	}
	cartHandler := h.NewCartHandler(registry, cfg.RequestTimeout)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      h.NewRouter(cartHandler, cfg.RequestTimeout),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Cart store listening on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down cart store...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server forced to shutdown: %v", err)
	}
	log.Println("cart store stopped")
}

func setupStorage(ctx context.Context, cfg *Config) (storage.Storage, func()) {
	switch cfg.StorageBackend {
	case "redis":
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		})
		s := storage.NewRedisStorage(redisClient, cfg.RedisCartTTL)
		if err := s.Ping(ctx); err != nil {
			log.Fatal("Redis connection failed:", err)
		}
		log.Printf("Connected to Redis at %s", cfg.RedisAddr)
		return s, func() { redisClient.Close() }

	case "mongo":
		mongoDB, err := storage.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
		if err != nil {
			log.Fatalf("Failed to connect to MongoDB: %v", err)
		}
		s := storage.NewMongoStorage(mongoDB)
		if err := s.CreateIndexes(ctx); err != nil {
			log.Fatalf("Failed to create indexes: %v", err)
		}
		log.Printf("Connected to MongoDB at %s", cfg.MongoURI)
		return s, func() { mongoDB.Client().Disconnect(context.Background()) }

	case "memory":
		log.Println("Using in-memory storage, carts will not survive a restart")
		return storage.NewMemoryStorage(), func() {}

	default:
		log.Fatalf("unknown STORAGE_BACKEND %q", cfg.StorageBackend)
		return nil, nil
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("invalid %s %q, using %s", key, value, defaultValue)
		return defaultValue
	}
	return d
}

func getInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("invalid %s %q, using %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
