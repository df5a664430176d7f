// Command attendbot is the main entrypoint for the attendance chat bot.
// It:
//   - Loads configuration and initializes structured logging.
//   - Connects to Postgres and creates the auth and user record tables.
//   - Restores (or synthesizes) the chat session credentials.
//   - Runs the supervised chat connection and routes inbound commands.
//   - Exposes a minimal HTTP server with /healthz, /readyz, and /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tharunkd/attendbot/attendance"
	"github.com/tharunkd/attendbot/bot"
	"github.com/tharunkd/attendbot/config"
	"github.com/tharunkd/attendbot/crypto"
	"github.com/tharunkd/attendbot/db"
	"github.com/tharunkd/attendbot/directory"
	"github.com/tharunkd/attendbot/server"
	"github.com/tharunkd/attendbot/session"
	"github.com/tharunkd/attendbot/store"
	"github.com/tharunkd/attendbot/telemetry"
	"github.com/tharunkd/attendbot/transport"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	var handler slog.Handler
	if strings.ToLower(os.Getenv("LOG_FORMAT")) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	// Metrics / telemetry init
	telemetry.Init()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdown, err := telemetry.InitTracing("attendbot", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	database, err := db.Connect(cfg.DBDsn)
	if err != nil {
		slog.Error("failed to open db", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		if err := database.Close(); err != nil {
			slog.Error("failed to close database", slog.Any("err", err))
		}
	}()

	slog.Info("running database migrations", slog.String("component", "db_migrate"))
	if err := db.Migrate(context.Background(), database, cfg.AuthTable, cfg.UserTable); err != nil {
		slog.Error("failed to migrate db", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	authKV, err := store.NewPG(database, cfg.AuthTable)
	if err != nil {
		slog.Error("invalid auth table", slog.Any("err", err))
		os.Exit(1)
	}
	userKV, err := store.NewPG(database, cfg.UserTable)
	if err != nil {
		slog.Error("invalid user table", slog.Any("err", err))
		os.Exit(1)
	}

	// Alias secrets are encrypted at rest when ENCRYPTION_KEY is set.
	var enc crypto.Encryptor
	if key := os.Getenv("ENCRYPTION_KEY"); key != "" {
		enc, err = crypto.NewAESEncryptor(key)
		if err != nil {
			slog.Error("invalid ENCRYPTION_KEY", slog.Any("err", err))
			os.Exit(1)
		}
	} else {
		slog.Warn("ENCRYPTION_KEY not set, storing alias secrets in plaintext")
	}

	sess := session.New(store.New(authKV))
	if _, err := sess.Load(ctx); err != nil {
		slog.Error("failed to load session credentials", slog.Any("err", err))
		os.Exit(1)
	}

	tw := transport.NewTwitch(cfg.TwitchChannel, cfg.TwitchBotUsername, cfg.TwitchOAuthToken)
	tw.MinBackoff = cfg.ReconnectMinBackoff
	tw.MaxBackoff = cfg.ReconnectMaxBackoff

	router := &bot.Router{
		Directory:  directory.New(store.New(userKV), enc),
		Session:    sess,
		Attendance: &attendance.Client{BaseURL: cfg.AttendanceAPIBase},
		Sender:     tw,
		HelpURL:    cfg.HelpDocURL,
		// Give the logout reply a moment to flush before dropping the connection.
		Reconnect: func() { time.AfterFunc(3*time.Second, tw.Kick) },
	}

	if err := cfg.ValidateChatReady(); err == nil {
		go tw.Run(ctx, router.Handle)
	} else {
		slog.Warn("chat connection disabled", slog.Any("err", err))
	}

	go func() {
		if err := server.Start(ctx, database, cfg.HTTPAddr, cfg.AuthTable, cfg.UserTable); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")
}
