// Command privacyrun drives a single privacy request through to completion
// (or pause) against the datasets, policies, and connectors declared in a
// bootstrap file.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ethyca-go/privacyrun/internal/catalog"
	"github.com/ethyca-go/privacyrun/internal/config"
	"github.com/ethyca-go/privacyrun/internal/connector"
	"github.com/ethyca-go/privacyrun/internal/connector/memtest"
	"github.com/ethyca-go/privacyrun/internal/masking"
	"github.com/ethyca-go/privacyrun/internal/model"
	"github.com/ethyca-go/privacyrun/internal/repository"
	"github.com/ethyca-go/privacyrun/internal/resultstore"
	"github.com/ethyca-go/privacyrun/internal/runner"
	"github.com/ethyca-go/privacyrun/internal/webhook"
)

func main() {
	requestID := flag.String("request", "", "id of the privacy request to run")
	policyKey := flag.String("policy", "", "policy key to seed a new request with, if -request does not already exist")
	identityEmail := flag.String("identity-email", "", "email identity to seed a new request with, if -request does not already exist")
	flag.Parse()

	if *requestID == "" {
		flag.Usage()
		os.Exit(2)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg := config.Load()

	doc, err := config.ReadFile(cfg.BootstrapPath)
	if err != nil {
		logger.Fatal("failed to read bootstrap file", zap.Error(err))
	}

	registry := model.NewConverterRegistry()
	bootstrap, err := config.LoadBootstrap(doc, registry)
	if err != nil {
		logger.Fatal("failed to parse bootstrap file", zap.Error(err))
	}

	repo := repository.NewInMemory()
	for _, ds := range bootstrap.Datasets {
		repo.PutDataset(ds)
	}
	for _, p := range bootstrap.Policies {
		repo.PutPolicy(p)
	}

	cat, err := catalog.New(repo, logger)
	if err != nil {
		logger.Fatal("failed to build dataset catalog", zap.Error(err))
	}
	if err := cat.Reindex(context.Background()); err != nil {
		logger.Warn("failed to build initial dataset catalog index", zap.Error(err))
	} else if matches, err := cat.SearchCategory(context.Background(), "user.provided.identifiable", 5); err == nil {
		logger.Info("catalog ready", zap.Int("sample_matches", len(matches)))
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddress})
	defer redisClient.Close()

	secrets, err := masking.NewRedisCache(redisClient, cfg.SecretTTL, logger)
	if err != nil {
		logger.Fatal("failed to build secret cache", zap.Error(err))
	}
	strategies := masking.NewRegistry(secrets, logger)

	results, err := resultstore.NewRedisStore(redisClient, cfg.ResultTTL, logger)
	if err != nil {
		logger.Fatal("failed to build result store", zap.Error(err))
	}

	connectors := connector.NewRegistry()
	registerDemoConnectors(connectors, bootstrap.Datasets, strategies)

	natsConn, err := nats.Connect(cfg.NATSAddress)
	var audit *runner.AuditPublisher
	if err != nil {
		logger.Warn("failed to connect to NATS, audit events will not be published", zap.Error(err))
	} else {
		defer natsConn.Close()
		audit = runner.NewAuditPublisher(natsConn, "privacyrun.execution_logs", logger, 1000)
	}

	httpClient := &http.Client{Timeout: cfg.WebhookTimeout}
	transport := webhook.NewHTTPTransport(httpClient, resolveConnection)
	webhookRunner := webhook.NewRunner(transport, cfg.WebhookTimeout, logger)

	uploader := runner.NewNoopUploader(logger)

	r := runner.New(repo, repo, repo, connectors, strategies, secrets, results, webhookRunner, uploader, audit, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, cancelling run")
		cancel()
	}()

	if err := ensureRequest(ctx, repo, *requestID, *policyKey, *identityEmail); err != nil {
		logger.Fatal("failed to prepare privacy request", zap.Error(err))
	}

	if err := r.Run(ctx, *requestID); err != nil {
		logger.Fatal("privacy request run failed", zap.String("request_id", *requestID), zap.Error(err))
	}

	logger.Info("privacy request run finished", zap.String("request_id", *requestID))
}

// ensureRequest seeds a pending PrivacyRequest for requestID if the
// repository doesn't already have one, so a first invocation can be driven
// by just -request and -identity-email instead of a separate creation step.
func ensureRequest(ctx context.Context, repo *repository.InMemory, requestID, policyKey, identityEmail string) error {
	if _, err := repo.GetRequest(ctx, requestID); err == nil {
		return nil
	}
	req := model.PrivacyRequest{
		ID:          requestID,
		PolicyKey:   policyKey,
		RequestedAt: time.Now(),
		Status:      model.StatusPending,
		Identity:    model.Identity{},
	}
	if identityEmail != "" {
		req.Identity["email"] = identityEmail
	}
	return repo.SaveRequest(ctx, req)
}

// registerDemoConnectors registers an in-memory memtest.Connector for every
// distinct ConnectionRef in datasets. Concrete backend drivers (SQL,
// document store) are an application-level integration outside this
// module's committed dependency surface; this keeps the binary runnable
// end to end against the bootstrap file alone.
func registerDemoConnectors(registry *connector.Registry, datasets []model.Dataset, strategies *masking.Registry) {
	seen := map[string]bool{}
	for _, ds := range datasets {
		if seen[ds.ConnectionRef] {
			continue
		}
		seen[ds.ConnectionRef] = true
		registry.Register(ds.ConnectionRef, memtest.New(ds.ConnectionRef, connector.AccessReadWrite, strategies, nil))
	}
}

// resolveConnection maps a webhook's connection reference to the URL its
// HTTP transport should post to. Resolving real connection configuration is
// an application concern outside this module; the convention here treats
// the reference as already being a URL.
func resolveConnection(connectionRef string) (string, error) {
	return connectionRef, nil
}
