// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/casparianflow/flow/internal/config"
	"github.com/casparianflow/flow/internal/queue"
	"github.com/casparianflow/flow/internal/repository"
	"github.com/casparianflow/flow/pkg/log"
	"github.com/casparianflow/flow/pkg/metrics"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	router *mux.Router
	server *http.Server
)

var errJobNotFound = errors.New("job not found")

func writeJSON(rw http.ResponseWriter, status int, v interface{}) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	json.NewEncoder(rw).Encode(v)
}

func writeError(rw http.ResponseWriter, status int, err error) {
	writeJSON(rw, status, map[string]string{"error": err.Error()})
}

// serverInit builds the router: this daemon's queue/health/rule
// status-and-control surface, with no templated HTML or GraphQL
// endpoint behind it.
func serverInit(d *daemon) {
	router = mux.NewRouter()

	router.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		writeJSON(rw, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	router.Handle("/metrics", promhttp.HandlerFor(metrics.Handler(), promhttp.HandlerOpts{}))

	api := router.PathPrefix("/api").Subrouter()
	mountQueueRoutes(api, d)
	mountHealthRoutes(api, d)
	mountRuleRoutes(api, d)
	mountParserRoutes(api, d)

	router.Use(handlers.CompressHandler)
	router.Use(handlers.RecoveryHandler(handlers.PrintRecoveryStack(true)))
	router.Use(handlers.CORS(
		handlers.AllowedHeaders([]string{"Content-Type"}),
		handlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
		handlers.AllowedOrigins([]string{"*"})))
}

func mountQueueRoutes(api *mux.Router, d *daemon) {
	api.HandleFunc("/queue/stats", func(rw http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()
		stats, err := d.q.Stats(ctx)
		if err != nil {
			writeError(rw, http.StatusInternalServerError, err)
			return
		}
		dueRetries, err := d.q.CountDueRetries(ctx)
		if err != nil {
			writeError(rw, http.StatusInternalServerError, err)
			return
		}
		metrics.SetQueueDepth(stats.Queued, stats.Running, stats.Completed, stats.Failed)
		metrics.SetDueRetries(dueRetries)
		writeJSON(rw, http.StatusOK, map[string]interface{}{
			"queued": stats.Queued, "running": stats.Running,
			"completed": stats.Completed, "failed": stats.Failed,
			"due_retries": dueRetries, "scheduler": d.sched.Stats(),
		})
	}).Methods(http.MethodGet)

	api.HandleFunc("/queue/dead-letters", func(rw http.ResponseWriter, r *http.Request) {
		limit := int64(50)
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				limit = n
			}
		}
		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()
		entries, err := d.q.ListDeadLetters(ctx, limit)
		if err != nil {
			writeError(rw, http.StatusInternalServerError, err)
			return
		}
		writeJSON(rw, http.StatusOK, entries)
	}).Methods(http.MethodGet)

	api.HandleFunc("/queue/jobs/{id}", func(rw http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
		if err != nil {
			writeError(rw, http.StatusBadRequest, err)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()
		details, err := d.q.GetJobDetails(ctx, id)
		if err != nil {
			writeError(rw, http.StatusInternalServerError, err)
			return
		}
		if details == nil {
			writeError(rw, http.StatusNotFound, errJobNotFound)
			return
		}
		dispatch, err := d.q.GetDispatchMetadata(ctx, id)
		if err != nil {
			writeError(rw, http.StatusInternalServerError, err)
			return
		}
		writeJSON(rw, http.StatusOK, map[string]interface{}{"details": details, "dispatch_metadata": dispatch})
	}).Methods(http.MethodGet)

	api.HandleFunc("/queue/dead-letters/{id}/replay", func(rw http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
		if err != nil {
			writeError(rw, http.StatusBadRequest, err)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()
		job, err := d.q.ReplayDeadLetter(ctx, id)
		if err != nil {
			writeError(rw, http.StatusInternalServerError, err)
			return
		}
		writeJSON(rw, http.StatusOK, job)
	}).Methods(http.MethodPost)
}

func mountHealthRoutes(api *mux.Router, d *daemon) {
	api.HandleFunc("/health/parsers", func(rw http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()
		health, err := d.q.ListParserHealth(ctx)
		if err != nil {
			writeError(rw, http.StatusInternalServerError, err)
			return
		}
		writeJSON(rw, http.StatusOK, health)
	}).Methods(http.MethodGet)

	api.HandleFunc("/health/parsers/{name}/pause", func(rw http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()
		if err := d.q.PauseParser(ctx, mux.Vars(r)["name"]); err != nil {
			writeError(rw, http.StatusInternalServerError, err)
			return
		}
		writeJSON(rw, http.StatusOK, map[string]string{"status": "paused"})
	}).Methods(http.MethodPost)

	api.HandleFunc("/health/parsers/{name}/resume", func(rw http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()
		if err := d.q.ResumeParser(ctx, mux.Vars(r)["name"]); err != nil {
			writeError(rw, http.StatusInternalServerError, err)
			return
		}
		writeJSON(rw, http.StatusOK, map[string]string{"status": "resumed"})
	}).Methods(http.MethodPost)
}

func mountRuleRoutes(api *mux.Router, d *daemon) {
	api.HandleFunc("/rules/tagging", func(rw http.ResponseWriter, r *http.Request) {
		ws, err := d.repo.EnsureDefaultWorkspace(r.Context())
		if err != nil {
			writeError(rw, http.StatusInternalServerError, err)
			return
		}
		switch r.Method {
		case http.MethodGet:
			rules, err := d.repo.ListTaggingRulesByPriority(r.Context(), ws.ID)
			if err != nil {
				writeError(rw, http.StatusInternalServerError, err)
				return
			}
			writeJSON(rw, http.StatusOK, rules)
		case http.MethodPost:
			var rule repository.TaggingRule
			if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
				writeError(rw, http.StatusBadRequest, err)
				return
			}
			rule.WorkspaceID = ws.ID
			created, err := d.repo.CreateTaggingRule(r.Context(), rule)
			if err != nil {
				writeError(rw, http.StatusInternalServerError, err)
				return
			}
			writeJSON(rw, http.StatusCreated, created)
		}
	}).Methods(http.MethodGet, http.MethodPost)

	api.HandleFunc("/rules/tagging/{id}", func(rw http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
		if err != nil {
			writeError(rw, http.StatusBadRequest, err)
			return
		}
		if err := d.repo.DeleteTaggingRule(r.Context(), id); err != nil {
			writeError(rw, http.StatusInternalServerError, err)
			return
		}
		rw.WriteHeader(http.StatusNoContent)
	}).Methods(http.MethodDelete)

	api.HandleFunc("/rules/extraction", func(rw http.ResponseWriter, r *http.Request) {
		ws, err := d.repo.EnsureDefaultWorkspace(r.Context())
		if err != nil {
			writeError(rw, http.StatusInternalServerError, err)
			return
		}
		switch r.Method {
		case http.MethodGet:
			rules, err := d.repo.ListExtractionRules(r.Context(), ws.ID)
			if err != nil {
				writeError(rw, http.StatusInternalServerError, err)
				return
			}
			writeJSON(rw, http.StatusOK, rules)
		case http.MethodPost:
			var rule repository.ExtractionRule
			if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
				writeError(rw, http.StatusBadRequest, err)
				return
			}
			rule.WorkspaceID = ws.ID
			created, err := d.repo.CreateExtractionRule(r.Context(), rule)
			if err != nil {
				writeError(rw, http.StatusInternalServerError, err)
				return
			}
			writeJSON(rw, http.StatusCreated, created)
		}
	}).Methods(http.MethodGet, http.MethodPost)
}

// mountParserRoutes accepts a parser manifest upload, schema-validated
// against the same shape internal/config validates config.json's own
// "parsers" array against, then registers it into the queue's plugin
// registry.
func mountParserRoutes(api *mux.Router, d *daemon) {
	api.HandleFunc("/parsers", func(rw http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			writeError(rw, http.StatusBadRequest, err)
			return
		}
		if err := config.ValidateParserManifest(strings.NewReader(string(body))); err != nil {
			writeError(rw, http.StatusUnprocessableEntity, err)
			return
		}
		var wire config.ParserManifest
		if err := json.Unmarshal(body, &wire); err != nil {
			writeError(rw, http.StatusBadRequest, err)
			return
		}
		manifest := queue.PluginManifest{
			PluginName: wire.PluginName, Version: wire.Version,
			RuntimeKind: wire.RuntimeKind, Entrypoint: wire.Entrypoint,
			SourceHash: wire.SourceHash, Signature: wire.Signature,
		}
		if err := d.q.RegisterPlugin(r.Context(), manifest); err != nil {
			writeError(rw, http.StatusInternalServerError, err)
			return
		}
		writeJSON(rw, http.StatusCreated, manifest)
	}).Methods(http.MethodPost)
}

func serverStart() {
	logged := handlers.CustomLoggingHandler(io.Discard, router, func(_ io.Writer, params handlers.LogFormatterParams) {
		log.Debugf("%s %s (%d, %dms)", params.Request.Method, params.URL.RequestURI(),
			params.StatusCode, time.Since(params.TimeStamp).Milliseconds())
	})

	server = &http.Server{
		ReadTimeout:  20 * time.Second,
		WriteTimeout: 20 * time.Second,
		Handler:      logged,
		Addr:         config.Keys.Addr,
	}

	listener, err := net.Listen("tcp", config.Keys.Addr)
	if err != nil {
		log.Fatalf("scoutd: listen on %s: %v", config.Keys.Addr, err)
	}

	log.Infof("scoutd: listening at %s", config.Keys.Addr)
	if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
		log.Fatalf("scoutd: serve: %v", err)
	}
}

func serverShutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	server.Shutdown(ctx)
}
