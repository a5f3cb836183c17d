package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cowrow/cowrow/internal/auth"
	"github.com/cowrow/cowrow/internal/backend/console"
	"github.com/cowrow/cowrow/internal/backend/httpapi"
	"github.com/cowrow/cowrow/internal/backend/socket"
	"github.com/cowrow/cowrow/internal/cache"
	"github.com/cowrow/cowrow/internal/config"
	"github.com/cowrow/cowrow/internal/game"
	"github.com/cowrow/cowrow/internal/queue"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

// errLoopDone stops the other goroutines once nobody wants to keep playing.
var errLoopDone = errors.New("match loop finished")

func main() {
	if err := run(); err != nil {
		logrus.WithError(err).Fatal("Server stopped.")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := configureLogger(cfg); err != nil {
		return err
	}
	log := logrus.WithField("env", cfg.Env)

	rules, err := cfg.Rules()
	if err != nil {
		return err
	}
	secret := cfg.JWTSecret
	if secret == "" {
		secret = uuid.NewString()
		log.Warn("JWT_SECRET not set, tokens will not survive a restart.")
	}
	issuer, err := auth.NewIssuer(secret, cfg.TokenTTL)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpBackend := httpapi.New(issuer, log)
	socketBackend := socket.New(cfg.AllowedOrigins, log)
	backends := []game.Backend{httpBackend, socketBackend}
	var term *console.Backend
	if cfg.ConsoleEnabled {
		term = console.New(os.Stdin, os.Stdout, log)
		backends = append(backends, term)
	}

	opts := game.Options{
		Rules:         rules,
		PromptTimeout: cfg.PromptTimeout,
		Backends:      backends,
		Logger:        log,
	}
	if cfg.RedisAddr != "" {
		rdb, err := cache.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.WithError(err).Warn("Redis unavailable, action feed disabled.")
		} else {
			defer rdb.Close()
			opts.Recorder = cache.NewActionFeed(rdb, "")
		}
	}
	if cfg.AMQPURL != "" {
		opts.Results = queue.NewPublisher(cfg.AMQPURL, log)
	}
	match, err := game.NewMatch(opts)
	if err != nil {
		return err
	}

	e := httpapi.NewEcho(log)
	httpBackend.Register(e)
	e.GET("/ws", echo.WrapHandler(socketBackend))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithField("addr", cfg.HTTPAddr).Info("Listening.")
		if err := e.Start(cfg.HTTPAddr); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return e.Shutdown(sctx)
	})
	g.Go(func() error {
		err := match.Run(gctx)
		switch {
		case err == nil:
			return errLoopDone
		case game.IsShutdown(err):
			return nil
		}
		return err
	})
	if term != nil {
		g.Go(func() error { return term.Run(gctx) })
	}

	err = g.Wait()
	if errors.Is(err, errLoopDone) {
		log.Info("Nobody is playing anymore, shutting down.")
		return nil
	}
	return err
}

func configureLogger(cfg config.Config) error {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logrus.SetLevel(level)
	if cfg.LogFormat == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	// stdout belongs to the console player.
	logrus.SetOutput(os.Stderr)
	return nil
}
