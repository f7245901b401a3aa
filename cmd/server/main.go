package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/Tyrowin/linechat/internal/auth"
	"github.com/Tyrowin/linechat/internal/config"
	"github.com/Tyrowin/linechat/internal/eventlog"
	"github.com/Tyrowin/linechat/internal/logger"
	"github.com/Tyrowin/linechat/internal/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "chat server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "Config file path (optional)")
	listenAddr := flag.String("addr", "", "TCP chat listen address (overrides config)")
	httpAddr := flag.String("http", "", "HTTP admin/websocket address (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}
	if *httpAddr != "" {
		cfg.HTTPAddr = *httpAddr
	}

	log := logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	log.Info("starting chat server", "config", cfg.String())

	secret, err := auth.NewAdminSecret(cfg.AdminPassword, cfg.AdminPasswordCost)
	if err != nil {
		return err
	}
	cfg.AdminPassword = ""

	sink, err := eventlog.Open(cfg.EventLog, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := sink.Close(); err != nil {
			log.Error("failed to close event log", "error", err)
		}
	}()

	chat, err := server.New(server.OptionsFromConfig(cfg, secret, sink, log))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := chat.ListenAndServe(cfg.ListenAddr)
		if errors.Is(err, server.ErrServerClosed) {
			return nil
		}
		return err
	})

	var httpServer *http.Server
	if cfg.HTTPAddr != "" {
		gin.SetMode(gin.ReleaseMode)
		httpServer = server.NewHTTPServer(cfg.HTTPAddr, chat.Routes())
		g.Go(func() error {
			log.Info("http server listening", "addr", cfg.HTTPAddr)
			err := httpServer.ListenAndServe()
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if httpServer != nil {
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				log.Warn("http server shutdown error", "error", err)
			}
		}
		if err := chat.Shutdown(shutdownCtx); err != nil {
			log.Warn("chat server shutdown error", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("chat server stopped with error", "error", err)
		return err
	}
	return nil
}
