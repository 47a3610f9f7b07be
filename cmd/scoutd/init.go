// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package main

import (
	"context"
	"os"

	"github.com/casparianflow/flow/internal/config"
	"github.com/casparianflow/flow/internal/queue"
	"github.com/casparianflow/flow/internal/repository"
	"github.com/casparianflow/flow/internal/schema"
	"github.com/casparianflow/flow/internal/scheduler"
	"github.com/casparianflow/flow/internal/store"
	"github.com/casparianflow/flow/pkg/log"
)

const envString = `
# Generated by scoutd -init. Replace before deploying.
`

const configString = `
{
    "addr": ":8180",
    "workspace-root": "./var/watched",
    "db-driver": "row",
    "db": "./var/scout.db",
    "scheduler": {
        "dead-letter-sweep": "5m",
        "retry-scan": "30s",
        "health-ticker": "1m"
    },
    "parsers": [],
    "topic-routes": []
}
`

func initEnv() {
	if _, err := os.Stat("var"); err == nil {
		log.Fatal("directory ./var already exists, refusing to overwrite an existing workspace")
	}

	if err := os.WriteFile("config.json", []byte(configString), 0o666); err != nil {
		log.Fatalf("could not write default ./config.json: %s", err.Error())
	}
	if err := os.WriteFile(".env", []byte(envString), 0o666); err != nil {
		log.Fatalf("could not write default ./.env: %s", err.Error())
	}
	if err := os.MkdirAll("var/watched", 0o777); err != nil {
		log.Fatalf("could not create default ./var/watched: %s", err.Error())
	}

	ctx := context.Background()
	b, err := store.OpenSQLite(ctx, "./var/scout.db", store.ReadWrite)
	if err != nil {
		log.Fatalf("could not open default ./var/scout.db: %s", err.Error())
	}
	defer b.Close()
	if err := schema.Apply(ctx, b); err != nil {
		log.Fatalf("could not apply schema to ./var/scout.db: %s", err.Error())
	}
	if _, err := repository.New(b).EnsureDefaultWorkspace(ctx); err != nil {
		log.Fatalf("could not create default workspace: %s", err.Error())
	}
}

// daemon bundles every long-lived handle main needs to tear down on
// shutdown.
type daemon struct {
	backend store.Backend
	repo    *repository.Repository
	q       *queue.Queue
	sched   *scheduler.Scheduler
}

// bootstrap opens the configured backend, applies schema, ensures the
// default workspace exists, registers every configured parser and topic
// route, and builds the housekeeping scheduler. Order matters: each
// step depends on state the previous one created.
func bootstrap(ctx context.Context) (*daemon, error) {
	var b store.Backend
	var err error
	switch config.Keys.DBDriver {
	case "columnar":
		b, err = store.OpenColumnar(ctx, config.Keys.DB, store.ReadWrite)
	default:
		b, err = store.OpenSQLite(ctx, config.Keys.DB, store.ReadWrite)
	}
	if err != nil {
		return nil, err
	}

	if err := schema.Apply(ctx, b); err != nil {
		b.Close()
		return nil, err
	}

	repo := repository.New(b)
	if _, err := repo.EnsureDefaultWorkspace(ctx); err != nil {
		b.Close()
		return nil, err
	}

	q := queue.New(b)
	for _, p := range config.Keys.Parsers {
		if err := q.RegisterPlugin(ctx, queue.PluginManifest{
			PluginName:  p.PluginName,
			Version:     p.Version,
			RuntimeKind: p.RuntimeKind,
			Entrypoint:  p.Entrypoint,
			SourceHash:  p.SourceHash,
			Signature:   p.Signature,
		}); err != nil {
			b.Close()
			return nil, err
		}
	}
	for _, route := range config.Keys.TopicRoutes {
		if err := q.SetTopicConfig(ctx, queue.TopicConfig{
			Topic:      route.Topic,
			PluginName: route.PluginName,
			SinkTarget: route.SinkTarget,
			Enabled:    route.Enabled,
		}); err != nil {
			b.Close()
			return nil, err
		}
	}

	var iv scheduler.Intervals
	if d, err := config.Keys.SchedulerTiming.DeadLetterSweepInterval(scheduler.DefaultDeadLetterSweepInterval); err == nil {
		iv.DeadLetterSweep = d
	}
	if d, err := config.Keys.SchedulerTiming.RetryScanInterval(scheduler.DefaultRetryScanInterval); err == nil {
		iv.RetryScan = d
	}
	if d, err := config.Keys.SchedulerTiming.HealthTickerInterval(scheduler.DefaultHealthTickerInterval); err == nil {
		iv.HealthTicker = d
	}
	sch, err := scheduler.New(q, iv)
	if err != nil {
		b.Close()
		return nil, err
	}

	return &daemon{backend: b, repo: repo, q: q, sched: sch}, nil
}

func (d *daemon) shutdown() {
	if err := d.sched.Shutdown(); err != nil {
		log.Errorf("scoutd: scheduler shutdown: %v", err)
	}
	if err := d.backend.Close(); err != nil {
		log.Errorf("scoutd: closing backend: %v", err)
	}
}
