// Command authd runs the authentication service: the authcore engine
// behind the Echo HTTP API, backed by MySQL and Redis, with optional
// AMQP security alerts.
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/harborgate/authcore"
	"github.com/harborgate/authcore/alert"
	"github.com/harborgate/authcore/httpapi"
)

func main() {
	_ = godotenv.Load()

	log := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("APP_ENV") != "production" {
		log = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	if err := run(log); err != nil {
		log.Fatal().Err(err).Msg("authd exited")
	}
}

func run(log zerolog.Logger) error {
	cfg, err := authcore.FromEnv()
	if err != nil {
		return err
	}

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     envOr("REDIS_ADDR", "localhost:6379"),
		Password: os.Getenv("REDIS_PASSWORD"),
	})
	defer rdb.Close()

	builder := authcore.NewBuilder(cfg).
		WithLogger(log).
		WithDB(db).
		WithRedis(rdb).
		WithAccountProvider(authcore.NewSQLAccounts(db))

	if url := os.Getenv("AMQP_URL"); url != "" {
		queue := envOr("AMQP_ALERT_QUEUE", "auth.alerts")
		builder = builder.WithNotifier(alert.NewAMQPNotifier(url, queue, log))
	}

	svc, err := builder.Build()
	if err != nil {
		return err
	}
	defer svc.Close()

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	httpapi.New(svc, log).Register(e)

	addr := ":" + envOr("PORT", "8080")
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("authd listening")
		errCh <- e.Start(addr)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(ctx); err != nil {
			return err
		}
	}
	return nil
}

// openDB connects to MySQL with parseTime so DATETIME columns scan into
// time.Time, and verifies the connection before returning.
func openDB() (*sql.DB, error) {
	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		user := envOr("MYSQL_USER", "root")
		pass := os.Getenv("MYSQL_PASSWORD")
		host := envOr("MYSQL_HOST", "localhost")
		port := envOr("MYSQL_PORT", "3306")
		name := envOr("MYSQL_DATABASE", "authcore")
		auth := user
		if pass != "" {
			auth = user + ":" + pass
		}
		dsn = auth + "@tcp(" + host + ":" + port + ")/" + name +
			"?charset=utf8mb4&parseTime=true&loc=UTC"
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
