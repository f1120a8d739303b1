package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/calehh/hac-election/agent"
	"github.com/calehh/hac-election/app"
	"github.com/calehh/hac-election/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the election api",
	Run:   serveRun,
}

func serveRun(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(home())
	if err != nil {
		log.Fatalf("%v", err)
	}
	logger, err := newLogger(cfg.App.LogLevel)
	if err != nil {
		log.Fatalf("failed to parse log level: %v", err)
	}

	var opts []app.Option
	var indexer *agent.Indexer
	if cfg.Indexer.Enabled {
		indexer, err = agent.NewIndexer(logger, cfg.Path(cfg.Indexer.DBPath))
		if err != nil {
			log.Fatalf("new indexer err %s", err.Error())
		}
		opts = append(opts, app.WithEventSink(indexer))
	}
	a, err := app.NewApp(cfg, logger, opts...)
	if err != nil {
		log.Fatalf("new App err:%v", err)
	}
	var docs *agent.DocumentServer
	if cfg.API.ServeDocuments {
		docs = agent.NewDocumentServer(a.Store().Transport(), logger)
	}
	if !cfg.API.Loopback() {
		logger.Error("api listens beyond loopback and trusts the user and admin fields of every command", "addr", cfg.API.ListenAddress)
	}
	svc := agent.NewService(cfg.API.ListenAddress, a, indexer, docs, logger)
	go func() {
		if err := svc.Start(); err != nil {
			log.Fatalf("start api err %s", err.Error())
		}
	}()

	defer func() {
		log.Println("shut down...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := svc.Stop(ctx); err != nil {
			logger.Error("stop api fail", "err", err)
		}
		a.Stop()
		if indexer != nil {
			if err := indexer.Close(); err != nil {
				logger.Error("close indexer fail", "err", err)
			}
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
}
