// Copyright (C) 2024 The Dagu Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nexuscp/sagactl/internal/authz"
	"github.com/nexuscp/sagactl/internal/config"
	"github.com/nexuscp/sagactl/internal/datastore"
	"github.com/nexuscp/sagactl/internal/logger"
	"github.com/nexuscp/sagactl/internal/metrics"
	"github.com/nexuscp/sagactl/internal/remote"
	"github.com/nexuscp/sagactl/internal/saga"
	"github.com/nexuscp/sagactl/internal/snapshotsaga"
)

// deps bundles everything a snapshot subcommand needs to build and
// drive a saga instance, assembled fresh for every invocation from
// loaded configuration. sagactl is a one-shot CLI, not a daemon: the
// action log on disk (and the params/result sidecars next to it) is
// the only state that survives between commands.
type deps struct {
	cfg      config.Config
	log      logger.Logger
	store    datastore.Store
	verifier *authz.Verifier
	issuer   *authz.Issuer
	manager  *saga.Manager
}

func buildDeps(cfg config.Config) (*deps, func(), error) {
	logOpts := []logger.Option{logger.WithFormat(cfg.LogFormat)}
	if cfg.LogDebug {
		logOpts = append(logOpts, logger.WithDebug())
	}
	log := logger.NewLogger(logOpts...)

	store, err := openStore(cfg)
	if err != nil {
		return nil, nil, err
	}
	adapter := datastore.NewAdapter(store)

	if cfg.TokenSecret == "" {
		_ = store.Close()
		return nil, nil, fmt.Errorf("token_secret is not configured; capability tokens cannot be minted or verified")
	}
	secret, err := authz.NewTokenSecret([]byte(cfg.TokenSecret))
	if err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("load token secret: %w", err)
	}
	verifier := authz.NewVerifier(secret)
	issuer, err := authz.NewIssuer(secret, 0)
	if err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("build token issuer: %w", err)
	}

	resolver := remote.NewResolverAdapter(buildDirectory(cfg))

	promReg := prometheus.NewRegistry()
	metricsReg := metrics.NewRegistry(promReg)
	var stopMetrics func()
	if cfg.MetricsAddr != "" {
		stopMetrics = serveMetrics(cfg.MetricsAddr, promReg, log)
	}

	actionRegistry := saga.NewRegistry()
	if err := snapshotsaga.RegisterActions(actionRegistry); err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("register snapshot saga actions: %w", err)
	}
	engine := saga.NewEngine(actionRegistry, metricsReg, cfg.SagaDeadline)

	openLog := func(sagaID string) (saga.Log, error) {
		return saga.OpenFileLog(cfg.ActionLogDir, sagaID)
	}
	newContext := func(sagaID string, params map[string]json.RawMessage) *saga.Context {
		return saga.NewContext(sagaID, params, log.With("saga_id", sagaID), verifyAuthToken(verifier, params, log), adapter, resolver, nil)
	}
	manager := saga.NewManager(engine, openLog, newContext)

	d := &deps{
		cfg:      cfg,
		log:      log,
		store:    store,
		verifier: verifier,
		issuer:   issuer,
		manager:  manager,
	}
	cleanup := func() {
		if stopMetrics != nil {
			stopMetrics()
		}
		_ = store.Close()
	}
	return d, cleanup, nil
}

func openStore(cfg config.Config) (datastore.Store, error) {
	if cfg.DatastoreDSN == "" {
		return datastore.NewMemStore(), nil
	}
	store, err := datastore.NewPostgresStore(context.Background(), cfg.DatastoreDSN)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres datastore: %w", err)
	}
	return store, nil
}

// buildDirectory assembles the service directory a saga's nodes
// resolve storage agent / pantry / sled agent endpoints through. The
// three base URLs are a placeholder for a real directory service;
// wrapping them in a Redis cache (when configured) is what production
// deployments actually want, since a saga's nodes resolve the same
// handful of services over and over within one run.
func buildDirectory(cfg config.Config) remote.Directory {
	var dir remote.Directory = remote.NewStaticDirectory(map[string]string{
		"storageagent": cfg.StorageAgentBaseURL,
		"pantry":       cfg.PantryBaseURL,
		"sledagent":    cfg.SledAgentBaseURL,
	})
	if cfg.RedisAddr != "" {
		dir = remote.NewRedisEndpointCache(cfg.RedisAddr, dir, 0)
	}
	return dir
}

// verifyAuthToken re-verifies the saga's auth_token parameter into a
// capability Token for this run's Context. A raw token string, not a
// live Token object, is what survives a crash-restart resume (see
// snapshot_retry.go), so every Context build re-verifies it rather
// than trusting a cached claim.
func verifyAuthToken(verifier *authz.Verifier, params map[string]json.RawMessage, log logger.Logger) authz.Token {
	raw, ok := params["auth_token"]
	if !ok {
		return authz.Token{}
	}
	var tokenStr string
	if err := json.Unmarshal(raw, &tokenStr); err != nil {
		log.Warnf("auth_token param is not a string: %v", err)
		return authz.Token{}
	}
	token, err := verifier.Verify(tokenStr)
	if err != nil {
		log.Warnf("capability token failed verification: %v", err)
		return authz.Token{}
	}
	return token
}

func serveMetrics(addr string, reg *prometheus.Registry, log logger.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("metrics server: %v", err)
		}
	}()
	return func() {
		_ = srv.Close()
	}
}
