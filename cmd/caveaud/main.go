package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/sirupsen/logrus"

	"github.com/caveau-digitale/caveaud/api"
	"github.com/caveau-digitale/caveaud/config"
	"github.com/caveau-digitale/caveaud/internal/chain"
	"github.com/caveau-digitale/caveaud/internal/session"
	"github.com/caveau-digitale/caveaud/internal/swap"
	"github.com/caveau-digitale/caveaud/storage"
)

func main() {
	logger := logrus.WithField("service", "caveaud").Logger

	cfg, err := config.ReadConfig("config")
	if err != nil {
		logger.Fatal(err)
	}

	store, err := storage.NewCredentialStore(cfg.Storage.Path)
	if err != nil {
		logger.Fatal(err)
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		cancel()
	}()

	sess := session.New(store)
	if _, err := sess.Start(ctx); err != nil {
		logger.Fatal(err)
	}

	var chainClient *chain.Client
	if cfg.Chain.RpcURL != "" {
		chainClient, err = chain.NewClient(cfg.Chain.RpcURL, cfg.Chain.Confirmations)
		if err != nil {
			logger.WithError(err).Warn("chain provider unavailable, balances disabled")
			chainClient = nil
		} else {
			defer chainClient.Close()
		}
	}

	var swapClient *swap.Client
	var poller *swap.Poller
	if cfg.Swap.ProviderURL != "" {
		swapClient = swap.NewClient(cfg.Swap.ProviderURL)
		poller = swap.NewPoller(swapClient, sess, time.Duration(cfg.Swap.PollInterval)*time.Second)
		go poller.Run(ctx)
	}

	var sdClient *statsd.Client
	if cfg.Datadog.Host != "" {
		sdClient, err = statsd.New(fmt.Sprintf("%s:%s", cfg.Datadog.Host, cfg.Datadog.Port))
		if err != nil {
			logger.WithError(err).Warn("statsd unavailable, metrics disabled")
			sdClient = nil
		}
	}

	server := api.NewServer(cfg.Server.Host, cfg.Server.Port, sess, chainClient, swapClient, poller, sdClient)
	if err := server.StartServer(); err != nil {
		logger.Fatalf("fail to start server, err: %v", err)
	}
}
