package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/nfukui/chatline/internal/api"
	"github.com/nfukui/chatline/internal/cache"
	"github.com/nfukui/chatline/internal/chat"
	"github.com/nfukui/chatline/internal/config"
	"github.com/nfukui/chatline/internal/database"
	"github.com/nfukui/chatline/internal/stats"
)

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

var (
	addr           string
	dsn            string
	redisAddr      string
	signingKey     string
	cursorPolicy   string
	unreadDelay    time.Duration
	allowedOrigins stringSliceFlag
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	// a missing .env is fine; the environment may be set elsewhere
	godotenv.Load()

	flag.StringVar(&addr, "addr", envOr("CHATLINE_ADDR", "localhost:8000"), "server address")
	flag.StringVar(&dsn, "dsn", envOr("CHATLINE_DSN", "host=localhost user=postgres password=postgres dbname=chatline sslmode=disable"), "database connection string")
	flag.StringVar(&redisAddr, "redis-addr", os.Getenv("CHATLINE_REDIS_ADDR"), "redis address for the channel cache (empty disables caching)")
	flag.StringVar(&signingKey, "signing-key", os.Getenv("CHATLINE_SIGNING_KEY"), "base64 encoded signing key")
	flag.StringVar(&cursorPolicy, "cursor-policy", envOr("CHATLINE_CURSOR_POLICY", "overwrite"), "read cursor update policy: overwrite or max")
	flag.DurationVar(&unreadDelay, "unread-delay", 0, "artificial delay applied to the unread poll endpoint")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.Parse()

	logger := log.New(os.Stderr, "[chatline] ", log.LstdFlags)

	cfg, err := config.NewConfig(addr, dsn, redisAddr, signingKey, allowedOrigins, cursorPolicy, unreadDelay)
	if err != nil {
		logger.Fatal("config: ", err)
	}

	dbConn, err := database.NewPgChatRepository(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("db open: ", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Fatal("db close: ", err)
		}
	}()

	if err := dbConn.Migrate(); err != nil {
		logger.Fatal("migrate: ", err)
	}

	var channelCache *cache.ChannelCache
	if cfg.RedisAddr != "" {
		redisCache, err := cache.NewRedisCache(cfg.RedisAddr)
		if err != nil {
			logger.Fatal("redis: ", err)
		}
		defer redisCache.Close()
		channelCache = cache.NewChannelCache(redisCache)
	}

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)

	chatService := chat.NewService(logger, dbConn, channelCache, cfg.CursorPolicy)

	srv := api.NewApp(mux, logger, chatService, dbConn, statsUpdater, cfg)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("HTTP server shutdown:", err)
	}

	logger.Println("shutdown complete")
}
