package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/quimera/catalog-ingest/internal/config"
	"github.com/quimera/catalog-ingest/internal/service"
	"github.com/quimera/catalog-ingest/internal/service/api"
	"github.com/quimera/catalog-ingest/internal/service/catalog"
	"github.com/quimera/catalog-ingest/internal/service/ingest"
	"github.com/quimera/catalog-ingest/internal/service/notification"
	"github.com/quimera/catalog-ingest/internal/service/scheduler"
	"github.com/quimera/catalog-ingest/internal/service/scraper"
	applog "github.com/quimera/catalog-ingest/pkg/log"
)

func main() {
	configFile := flag.String("config", config.DefaultFilename, "path to the configuration file")
	flag.Parse()

	// configuration first, the log setup depends on it
	appConfig, err := config.LoadWithFile(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[FATAL] failed to load the configuration: %v\n", err)
		os.Exit(1)
	}

	var logOpts applog.Options
	if appConfig.Debug {
		logOpts = applog.NewDevelopmentOptions(config.AppName)
	} else {
		logOpts = applog.NewProductionOptions(config.AppName)
	}
	logOpts.Dir = appConfig.Log.Dir
	logOpts.MaxSizeMB = appConfig.Log.MaxSizeMB
	logOpts.MaxBackups = appConfig.Log.MaxBackups

	logCloser, err := applog.Setup(logOpts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[FATAL] failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	applog.SetDebugMode(appConfig.Debug)

	for _, warning := range appConfig.VerifyRecommendations() {
		applog.WithComponent("main").Warn(warning)
	}

	orchestrator, scrapers, err := buildPipeline(appConfig)
	if err != nil {
		applog.WithComponentAndFields("main", log.Fields{
			"error": err,
		}).Fatal("failed to assemble the scrape pipeline")
	}
	defer scrapers.Close()

	apiService := api.NewService(appConfig, orchestrator)
	schedulerService := scheduler.NewService(appConfig.Scheduler, orchestrator)

	serviceStopCtx, cancel := context.WithCancel(context.Background())
	serviceStopWG := &sync.WaitGroup{}

	services := []service.Service{apiService, schedulerService}
	for _, s := range services {
		serviceStopWG.Add(1)
		if err := s.Start(serviceStopCtx, serviceStopWG); err != nil {
			applog.WithComponentAndFields("main", log.Fields{
				"error": err,
			}).Error("failed to start a service")

			cancel()
			serviceStopWG.Wait()

			log.Fatal("terminating after a service failed to start")
		}
	}

	termC := make(chan os.Signal, 1)
	signal.Notify(termC, syscall.SIGINT, syscall.SIGTERM)

	applog.WithComponent("main").Info("catalog-ingest is up")

	<-termC

	applog.WithComponent("main").Info("shutdown signal received")
	cancel()
	serviceStopWG.Wait()
}

// buildPipeline wires the scrape pipeline from the configuration: catalog
// client, reconciliation engine, per-store scrapers and the notifier.
func buildPipeline(appConfig *config.AppConfig) (*ingest.Orchestrator, *scraper.Scraper, error) {
	tokens := catalog.NewTokenSource(catalog.AuthConfig{
		TokenURL:     appConfig.Catalog.Auth.TokenURL,
		ClientID:     appConfig.Catalog.Auth.ClientID,
		ClientSecret: appConfig.Catalog.Auth.ClientSecret,
		Audience:     appConfig.Catalog.Auth.Audience,
		Scope:        appConfig.Catalog.Auth.Scope,
	}, nil)
	client := catalog.NewClient(appConfig.Catalog.BaseURL, tokens, nil)

	sourceConfigs := make([]scraper.SourceConfig, 0, len(appConfig.Scrape.Sources))
	for _, src := range appConfig.Scrape.Sources {
		sourceConfigs = append(sourceConfigs, scraper.SourceConfig{
			StoreID: src.StoreID,
			Kind:    src.Kind,
			Options: src.Options,
		})
	}

	scrapers, err := scraper.New(sourceConfigs, nil)
	if err != nil {
		return nil, nil, err
	}

	var notifier ingest.Notifier = notification.NopSender{}
	if appConfig.Notifier.Telegram.Enabled {
		sender, err := notification.NewTelegramSender(notification.TelegramConfig{
			Token:  appConfig.Notifier.Telegram.BotToken,
			ChatID: appConfig.Notifier.Telegram.ChatID,
		})
		if err != nil {
			scrapers.Close()
			return nil, nil, err
		}
		notifier = sender
	}

	orchestrator := ingest.NewOrchestrator(
		client,
		ingest.NewEngine(client),
		scrapers,
		ingest.NewNormalizer(appConfig.Scrape.BrandAliases),
		notifier,
		ingest.DefaultOptions(),
	)

	return orchestrator, scrapers, nil
}
