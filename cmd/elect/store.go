package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/calehh/hac-election/agent"
	"github.com/calehh/hac-election/config"
	"github.com/calehh/hac-election/state"
)

type storeArguments struct {
	Listen string
}

var storeArgs storeArguments

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Serve the local document store for nodes using the http backend",
	Run:   storeRun,
}

func init() {
	storeCmd.Flags().StringVarP(&storeArgs.Listen, "listen", "l", "127.0.0.1:8090", "listen address")
}

func storeRun(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(home())
	if err != nil {
		log.Fatalf("%v", err)
	}
	logger, err := newLogger(cfg.App.LogLevel)
	if err != nil {
		log.Fatalf("failed to parse log level: %v", err)
	}
	var transport state.Transport
	switch cfg.Store.Backend {
	case config.BackendTree:
		transport, err = state.NewTreeTransport(cfg.Path(cfg.Store.Dir), logger)
	case config.BackendBadger:
		transport, err = state.NewBadgerTransport(cfg.Path(cfg.Store.Dir), logger)
	case config.BackendMemory:
		transport = state.NewMemoryTransport()
	default:
		log.Fatalf("store backend %q cannot be served", cfg.Store.Backend)
	}
	if err != nil {
		log.Fatalf("open store err %s", err.Error())
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	agent.NewDocumentServer(transport, logger).Register(r)
	server := &http.Server{Addr: storeArgs.Listen, Handler: r}
	go func() {
		logger.Info("document store listening", "addr", storeArgs.Listen, "backend", cfg.Store.Backend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve store err %s", err.Error())
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("stop store fail", "err", err)
	}
	if closer, ok := transport.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			logger.Error("close store fail", "err", err)
		}
	}
}
