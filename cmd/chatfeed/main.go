package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jaffarkeikei/smart-stellar-demo/internal/api"
	"github.com/jaffarkeikei/smart-stellar-demo/internal/config"
	"github.com/jaffarkeikei/smart-stellar-demo/internal/feed"
	"github.com/jaffarkeikei/smart-stellar-demo/internal/indexer"
	"github.com/jaffarkeikei/smart-stellar-demo/internal/ledger"
	"github.com/jaffarkeikei/smart-stellar-demo/internal/relay"
	"github.com/jaffarkeikei/smart-stellar-demo/internal/source"
)

// Version is set at build time via -ldflags "-X main.Version=..."
var Version = "dev"

func main() {
	var (
		cfgPath  = flag.String("config", "config.yml", "path to YAML config")
		interval = flag.Duration("interval", 0, "override poll interval")
		once     = flag.Bool("once", false, "run one reconcile cycle, print messages as JSON, exit")
		verbose  = flag.Bool("verbose", false, "enable debug logging")
	)
	flag.Parse()

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if *verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.Infof("chatfeed %s starting", Version)

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}
	if *interval > 0 {
		cfg.Feed.Interval = *interval
	}

	rpc := ledger.New(cfg.RPC.URL, cfg.RPC.Timeout)
	var idx *indexer.Client
	if cfg.Indexer.URL != "" {
		idx = indexer.New(cfg.Indexer.URL, cfg.Indexer.Token, cfg.Indexer.Timeout)
	} else {
		logrus.Warn("no indexer configured, starting without historical backlog")
	}

	hist := source.NewHistorical(idx, cfg.ContractID)
	live := source.NewLive(rpc, cfg.ContractID, cfg.RPC.PageLimit)
	f := feed.New(hist, live, feed.Options{
		Interval: cfg.Feed.Interval,
		Lookback: cfg.Feed.LookbackLedgers,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := f.Start(ctx); err != nil {
		logrus.Fatalf("start feed: %v", err)
	}

	if *once {
		b, _ := json.MarshalIndent(f.Snapshot(), "", "  ")
		fmt.Println(string(b))
		f.Stop()
		return
	}

	var submitter api.Submitter
	if cfg.Relay.URL != "" {
		submitter = relay.New(cfg.Relay.URL, cfg.Relay.Token, relay.Options{
			Timeout:    cfg.Relay.Timeout,
			MaxRetries: cfg.Relay.MaxRetries,
			Backoff:    cfg.Relay.Backoff,
			MaxBackoff: cfg.Relay.MaxBackoff,
		})
	} else {
		logrus.Warn("no relay configured, POST /api/messages disabled")
	}

	srv := api.NewServer(cfg.ListenAddr, f, submitter)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Error("api server exited")
			cancel()
		}
	}()

	logrus.WithFields(logrus.Fields{
		"contract": cfg.ContractID,
		"interval": cfg.Feed.Interval.String(),
		"lookback": cfg.Feed.LookbackLedgers,
	}).Info("chatfeed running")

	<-ctx.Done()
	logrus.Info("shutting down")

	f.Stop()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("api shutdown")
	}
}
