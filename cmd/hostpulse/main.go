package main

import (
	"context"
	"flag"
	"log"
	"os"
	"sync"
	"time"

	"github.com/hostpulse/hostpulse/pkg/alerting"
	"github.com/hostpulse/hostpulse/pkg/api"
	"github.com/hostpulse/hostpulse/pkg/collector"
	"github.com/hostpulse/hostpulse/pkg/config"
	"github.com/hostpulse/hostpulse/pkg/lifecycle"
	"github.com/hostpulse/hostpulse/pkg/metricstore"
	"github.com/hostpulse/hostpulse/pkg/monitoring"
	"github.com/hostpulse/hostpulse/pkg/notify"
	"github.com/hostpulse/hostpulse/pkg/provider"
	"github.com/hostpulse/hostpulse/pkg/trend"
)

// cmd/hostpulse/main.go

// retentionEvery is how often old samples and alerts are evicted. The cutoff
// itself comes from the configured retention period.
const retentionEvery = time.Hour

type pulseService struct {
	cfg         *config.Config
	collector   *collector.Collector
	identity    *collector.Identity
	metricStore metricstore.Store
	alertStore  alerting.AlertStore
	dispatcher  *notify.Dispatcher
	apiServer   *api.APIServer

	monitors []*monitoring.Monitor
	wg       sync.WaitGroup
}

func (s *pulseService) Start(ctx context.Context) error {
	s.runMonitor(ctx, monitoring.NewMonitor("collection", time.Duration(s.cfg.SampleInterval)),
		func(ctx context.Context) error {
			if err := s.collector.Tick(ctx); err != nil {
				return err
			}

			s.apiServer.Broadcast()

			return nil
		})

	s.runMonitor(ctx, monitoring.NewMonitor("flush", time.Duration(s.cfg.FlushInterval)),
		s.metricStore.Flush)

	s.runMonitor(ctx, monitoring.NewMonitor("retention", retentionEvery),
		func(ctx context.Context) error {
			retention := time.Duration(s.cfg.RetentionPeriod)

			if err := s.metricStore.Evict(ctx, retention); err != nil {
				return err
			}

			return s.alertStore.Evict(ctx, retention)
		})

	s.runMonitor(ctx, monitoring.NewMonitor("name refresh", time.Duration(s.cfg.NameRefreshInterval)),
		s.identity.RefreshName)

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		_ = s.apiServer.Start(ctx)
	}()

	return nil
}

func (s *pulseService) runMonitor(ctx context.Context, m *monitoring.Monitor, check func(context.Context) error) {
	s.monitors = append(s.monitors, m)

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		m.Run(ctx, check)
	}()
}

// Stop flushes buffered samples, drains in-flight notifications, and closes
// both stores. Unflushed samples are the only data a hard kill can lose.
func (s *pulseService) Stop(ctx context.Context) error {
	for _, m := range s.monitors {
		m.Stop(ctx)
	}

	if err := s.apiServer.Stop(ctx); err != nil {
		log.Printf("Error stopping API server: %v", err)
	}

	s.wg.Wait()

	if err := s.metricStore.Flush(ctx); err != nil {
		log.Printf("Error flushing metric store on shutdown: %v", err)
	}

	s.dispatcher.Wait()

	if err := s.metricStore.Close(); err != nil {
		log.Printf("Error closing metric store: %v", err)
	}

	if err := s.alertStore.Close(); err != nil {
		log.Printf("Error closing alert store: %v", err)
	}

	return nil
}

func buildDispatcher(cfg *config.Config) *notify.Dispatcher {
	notifiers := make([]notify.Notifier, 0, len(cfg.Webhooks)+1)

	for i := range cfg.Webhooks {
		notifiers = append(notifiers, notify.NewWebhookNotifier(cfg.Webhooks[i]))
	}

	notifiers = append(notifiers, notify.NewSMTPNotifier(cfg.SMTP))

	return notify.NewDispatcher(notifiers...)
}

func run() error {
	configPath := flag.String("config", "/etc/hostpulse/hostpulse.json", "Path to config file")
	flag.Parse()

	path := *configPath
	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Printf("Config file %s not found, using defaults", path)

		path = ""
	}

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	identity, err := collector.LoadIdentity(cfg.StateDir)
	if err != nil {
		return err
	}

	metricStore, err := metricstore.New(cfg.DBPath)
	if err != nil {
		return err
	}

	alertStore, err := alerting.NewStore(cfg.DBPath)
	if err != nil {
		return err
	}

	dispatcher := buildDispatcher(cfg)
	engine := alerting.NewEngine(cfg.Thresholds, alertStore, dispatcher)

	coll := collector.New(
		provider.NewSystemProvider(),
		metricStore,
		engine,
		identity,
		time.Duration(cfg.SampleInterval),
	)

	analyzer := trend.NewAnalyzer(metricStore, cfg.Thresholds, time.Duration(cfg.SampleInterval))
	apiServer := api.NewAPIServer(coll, metricStore, alertStore, analyzer)

	svc := &pulseService{
		cfg:         cfg,
		collector:   coll,
		identity:    identity,
		metricStore: metricStore,
		alertStore:  alertStore,
		dispatcher:  dispatcher,
		apiServer:   apiServer,
	}

	return lifecycle.RunServer(context.Background(), &lifecycle.ServerOptions{
		ListenAddr:  cfg.ListenAddr,
		ServiceName: "hostpulse",
		Service:     svc,
		Handler:     apiServer.Router(),
	})
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}
