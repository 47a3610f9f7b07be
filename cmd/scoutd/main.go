// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/casparianflow/flow/internal/config"
	"github.com/casparianflow/flow/pkg/log"
	"github.com/google/gops/agent"
)

var (
	version = "development"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	cliInit()
	log.SetLogDateTime(flagLogDateTime)
	log.SetLogLevel(flagLogLevel)

	if flagVersion {
		fmt.Printf("scoutd version %s, commit %s, built %s\n", version, commit, date)
		return
	}

	if flagInit {
		initEnv()
		return
	}

	if flagGops {
		if err := agent.Listen(agent.Options{}); err != nil {
			log.Fatalf("scoutd: gops/agent.Listen failed: %s", err.Error())
		}
	}

	if err := config.LoadEnv(flagEnvFile); err != nil {
		log.Fatalf("scoutd: loading %s failed: %s", flagEnvFile, err.Error())
	}
	if err := config.Init(flagConfigFile); err != nil {
		log.Fatalf("scoutd: loading %s failed: %s", flagConfigFile, err.Error())
	}
	if config.Keys.Gops && !flagGops {
		if err := agent.Listen(agent.Options{Addr: config.Keys.GopsAddr}); err != nil {
			log.Fatalf("scoutd: gops/agent.Listen failed: %s", err.Error())
		}
	}

	if !flagServer {
		log.Info("scoutd: -server not set, exiting after initialization")
		return
	}

	ctx := context.Background()
	d, err := bootstrap(ctx)
	if err != nil {
		log.Fatalf("scoutd: bootstrap failed: %s", err.Error())
	}
	d.sched.Start()

	serverInit(d)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		serverStart()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	log.Info("scoutd: shutting down")

	serverShutdown()
	d.shutdown()
	wg.Wait()
	log.Info("scoutd: graceful shutdown complete")
}
