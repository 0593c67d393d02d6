package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/lokeshjavvadi/Smart-taskhub-React/api"
	"github.com/lokeshjavvadi/Smart-taskhub-React/broadcast"
	"github.com/lokeshjavvadi/Smart-taskhub-React/domain"
	"github.com/lokeshjavvadi/Smart-taskhub-React/storage"
)

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}
	logger := log.StandardLogger()

	connStr := os.Getenv("STORAGE_CONNECTION_STRING")
	if connStr == "" {
		log.Fatal("missing storage config")
	}
	store, err := storage.New(connStr,
		envOr("TASKS_TABLE", "tasks"),
		envOr("PROJECTS_TABLE", "projects"),
		envOr("MEMBERSHIPS_TABLE", "memberships"))
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := broadcast.NewHub(logger)
	var (
		publishers = broadcast.Fanout{}
		tasks      domain.TaskStorage = store
		deduper    api.Deduper
		health     func(context.Context) error
	)

	if redisConn := os.Getenv("REDIS_CONNECTION_STRING"); redisConn != "" {
		rc := redis.NewClient(redisOptions(redisConn))
		defer rc.Close()

		relay := broadcast.NewRedisRelay(rc, envOr("TASK_UPDATES_CHANNEL", broadcast.DefaultUpdatesChannel), hub, logger)
		go relay.Run(ctx)
		publishers = append(publishers, relay)

		tasks = storage.NewCache(store, rc, envDuration("TASKS_CACHE_TTL", 5*time.Minute))
		deduper = api.NewRedisDeduper(rc, envDuration("DEDUPER_TTL", 24*time.Hour))
		health = func(ctx context.Context) error { return rc.Ping(ctx).Err() }
	} else {
		log.Warn("REDIS_CONNECTION_STRING not set; events reach this instance only")
		publishers = append(publishers, hub)
	}

	if queueName := os.Getenv("TASK_EVENTS_QUEUE"); queueName != "" {
		queue, err := storage.NewQueue(connStr, queueName)
		if err != nil {
			log.Fatalf("queue: %v", err)
		}
		forwarder := broadcast.NewQueueForwarder(queue, broadcast.ForwarderConfig{
			Workers:        envInt("FORWARD_WORKERS", 4),
			Buffer:         envInt("FORWARD_BUFFER", 1024),
			EnqueueTimeout: envDuration("FORWARD_TIMEOUT", 30*time.Second),
			HandoffTimeout: envDuration("FORWARD_HANDOFF_TIMEOUT", 50*time.Millisecond),
		}, logger)
		defer forwarder.Close()
		publishers = append(publishers, forwarder)
	}

	auth, err := newAuth()
	if err != nil {
		log.Fatalf("auth: %v", err)
	}

	clientURL := envOr("CLIENT_URL", "http://localhost:3000")
	e := echo.New()
	e.HideBanner = true
	e.JSONSerializer = api.SonicSerializer{}
	e.Use(middleware.Recover())
	e.Use(api.RequestLogger(logger))
	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "SAMEORIGIN",
		HSTSMaxAge:         15552000,
		ReferrerPolicy:     "no-referrer",
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{clientURL},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, echo.HeaderContentEncoding, "Idempotency-Key"},
		AllowCredentials: true,
	}))
	// 100 requests per 15 minutes per client IP
	e.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Skipper: func(c echo.Context) bool { return c.Path() == "/healthz" },
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      100.0 / (15 * 60),
			Burst:     100,
			ExpiresIn: 15 * time.Minute,
		}),
		IdentifierExtractor: func(c echo.Context) (string, error) { return c.RealIP(), nil },
	}))
	e.Use(api.GzipRequestMiddleware())

	api.Register(e, api.Deps{
		Tasks:            domain.NewTaskService(tasks, store, publishers, domain.NewPriorityScorer()),
		Projects:         domain.NewProjectService(store),
		Auth:             auth,
		Hub:              hub,
		Logger:           logger,
		Deduper:          deduper,
		Health:           health,
		MailboxSize:      envInt("SUBSCRIBER_MAILBOX", broadcast.DefaultMailboxSize),
		WSOriginPatterns: originPatterns(clientURL),
	})

	listenAddr := ":" + envOr("PORT", "5030")
	go func() {
		if err := e.Start(listenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server shutdown")
	}
}

// newAuth prefers a shared HS256 secret and falls back to Auth0 JWKS.
func newAuth() (*api.Auth, error) {
	audience := os.Getenv("AUTH0_AUDIENCE")
	auth0Domain := os.Getenv("AUTH0_DOMAIN")
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		return api.NewSecretAuth([]byte(secret), audience, ""), nil
	}
	if audience == "" || auth0Domain == "" {
		return nil, errors.New("set JWT_SECRET or AUTH0_DOMAIN and AUTH0_AUDIENCE")
	}
	jwksURL := fmt.Sprintf("https://%s/.well-known/jwks.json", auth0Domain)
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{RefreshInterval: time.Hour, RefreshUnknownKID: true})
	if err != nil {
		return nil, fmt.Errorf("jwks: %w", err)
	}
	return api.NewAuth(jwks, audience, "https://"+auth0Domain+"/"), nil
}

// redisOptions accepts a redis:// URL or an Azure style
// "host:port,password=...,ssl=true" connection string.
func redisOptions(conn string) *redis.Options {
	opts, err := redis.ParseURL(conn)
	if err == nil {
		return opts
	}
	parts := strings.Split(conn, ",")
	opts = &redis.Options{Addr: strings.TrimSpace(parts[0])}
	for _, p := range parts[1:] {
		k, v, ok := strings.Cut(p, "=")
		if !ok {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(k)) {
		case "password":
			opts.Password = v
		case "ssl":
			if strings.EqualFold(v, "true") {
				opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
			}
		}
	}
	return opts
}

// originPatterns turns the client URL into the host pattern websocket
// upgrades are checked against.
func originPatterns(clientURL string) []string {
	u, err := url.Parse(clientURL)
	if err != nil || u.Host == "" {
		return nil
	}
	return []string{u.Host}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Fatalf("invalid %s: %q", key, v)
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		log.Fatalf("invalid %s: %q", key, v)
	}
	return d
}
