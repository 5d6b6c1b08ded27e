package main

import (
	"context"
	"log"

	"slipway/config"
	"slipway/consul"
	"slipway/dispatch"
	"slipway/platform"
	"slipway/report"
	"slipway/saga"
	"slipway/storage"
	"slipway/store"
)

// runOnce executes a single dispatch run as a pipeline job: inputs come
// from the environment, the terminal signal goes to the orchestrator
// callback, and the exit code reflects whether that signal was delivered.
// A failed run still exits 0: the run's outcome is the orchestrator's to
// judge. Only an undelivered signal, or input so broken no run could
// start, is our own failure.
func runOnce(cfg *config.Config) int {
	ctx := context.Background()

	var consulClient *consul.Client
	if c, err := consul.NewClient(cfg.ConsulAddr); err == nil && c.Healthy() == nil {
		consulClient = c
	}

	callbackURL, err := report.ResolveURL(cfg.OrchestratorURL, cfg.OrchestratorService, consulClient)
	if err != nil {
		log.Printf("ERROR: %v", err)
		return 1
	}
	reporter := report.NewReporter(callbackURL, cfg.OrchestratorToken)

	inputs, err := config.LoadRunInputs(cfg.TargetsFile)
	if err != nil {
		// Malformed invocation input: no target is touched, but the
		// orchestrator still gets its failure signal.
		log.Printf("ERROR: %v", err)
		if derr := reporter.Deliver(ctx, report.ConfigFailure(err)); derr != nil {
			log.Printf("ERROR: %v", derr)
		}
		return 1
	}

	platformClient, err := platform.NewClient(platform.Config{Addr: cfg.NomadAddr, EvalTimeout: cfg.EvalTimeout})
	if err != nil {
		log.Printf("ERROR: nomad: %v", err)
		if derr := reporter.Deliver(ctx, report.ConfigFailure(err)); derr != nil {
			log.Printf("ERROR: %v", derr)
		}
		return 1
	}

	dispatcher := &dispatch.Dispatcher{
		Platform:  platformClient,
		SagaStore: saga.NewMemoryStore(),
	}

	if cfg.S3Endpoint != "" {
		s3Client, err := storage.NewClient(storage.Config{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Region:    cfg.S3Region,
			UseSSL:    cfg.S3UseSSL,
		})
		if err != nil {
			log.Printf("WARNING: S3 storage unavailable (%v)", err)
		} else {
			dispatcher.Artifacts = s3Client
		}
	}

	// Run history is best-effort in one-shot mode.
	if db, err := store.Connect(cfg.DatabaseURL); err == nil {
		if err := store.Migrate(db); err == nil {
			dispatcher.DB = db
			dispatcher.SagaStore = saga.NewPostgresStore(db.Pool)
		}
		defer db.Close()
	}

	result, run := dispatcher.Run(ctx, inputs.Artifact, inputs.Targets)

	sig := report.FromResult(result)
	sig.RunID = run.ID
	if err := reporter.Deliver(ctx, sig); err != nil {
		// The one unrecoverable condition: without the signal the
		// orchestrator waits out its timeout.
		log.Printf("ERROR: %v", err)
		return 1
	}

	log.Printf("run %s: %s: %s", run.ID, sig.Result, sig.Message)
	return 0
}
