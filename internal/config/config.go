// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config loads and validates the daemon's JSON configuration
// file and its accompanying .env file: a package-level Keys value
// decoded from disk, schema-validated before the decode so a malformed
// file fails with a readable error instead of a zero-valued struct.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// ParserManifest is one parser plugin to register at startup, mirroring
// queue.PluginManifest in config-file form (SourceHash/Signature are
// optional, so they stay pointers).
type ParserManifest struct {
	PluginName  string  `json:"plugin-name"`
	Version     string  `json:"version"`
	RuntimeKind string  `json:"runtime-kind"`
	Entrypoint  string  `json:"entrypoint"`
	SourceHash  *string `json:"source-hash,omitempty"`
	Signature   *string `json:"signature,omitempty"`
}

// TopicRoute is one cf_topic_config entry to seed at startup.
type TopicRoute struct {
	Topic      string `json:"topic"`
	PluginName string `json:"plugin-name"`
	SinkTarget string `json:"sink-target"`
	Enabled    bool   `json:"enabled"`
}

// SchedulerIntervals controls the housekeeping scheduler's three jobs.
// Each is a duration string parsed with time.ParseDuration; the zero
// value means "use the scheduler package's own default".
type SchedulerIntervals struct {
	DeadLetterSweep string `json:"dead-letter-sweep"`
	RetryScan       string `json:"retry-scan"`
	HealthTicker    string `json:"health-ticker"`
}

// duration parses one of the three interval strings, returning def if
// the string is empty.
func (s SchedulerIntervals) duration(value string, def time.Duration) (time.Duration, error) {
	if value == "" {
		return def, nil
	}
	return time.ParseDuration(value)
}

func (s SchedulerIntervals) DeadLetterSweepInterval(def time.Duration) (time.Duration, error) {
	return s.duration(s.DeadLetterSweep, def)
}

func (s SchedulerIntervals) RetryScanInterval(def time.Duration) (time.Duration, error) {
	return s.duration(s.RetryScan, def)
}

func (s SchedulerIntervals) HealthTickerInterval(def time.Duration) (time.Duration, error) {
	return s.duration(s.HealthTicker, def)
}

// Config is the daemon's top-level configuration, decoded from JSON.
type Config struct {
	Addr            string             `json:"addr"`
	WorkspaceRoot   string             `json:"workspace-root"`
	DBDriver        string             `json:"db-driver"`
	DB              string             `json:"db"`
	Gops            bool               `json:"gops"`
	GopsAddr        string             `json:"gops-addr"`
	SchedulerTiming SchedulerIntervals `json:"scheduler"`
	Parsers         []ParserManifest   `json:"parsers"`
	TopicRoutes     []TopicRoute       `json:"topic-routes"`
}

// Keys holds the process-wide configuration once Init has run. Its
// initial value is a usable default for tests that never call Init.
var Keys = Config{
	Addr:     ":8180",
	DBDriver: "row",
	DB:       "./var/scout.db",
}

// Init reads flagConfigFile, schema-validates it, and decodes it into
// Keys. A missing file is not an error — Keys keeps its defaults, so a
// first run before `scoutd -init` has written one out still starts.
func Init(flagConfigFile string) error {
	raw, err := os.ReadFile(flagConfigFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", flagConfigFile, err)
	}

	if err := Validate(bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("config: validate %s: %w", flagConfigFile, err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&Keys); err != nil {
		return fmt.Errorf("config: decode %s: %w", flagConfigFile, err)
	}
	if Keys.WorkspaceRoot == "" {
		return fmt.Errorf("config: workspace-root is required")
	}
	return nil
}

// LoadEnv loads a .env file into the process environment via godotenv.
// A missing file is not an error, matching the daemon's optional-.env
// convention.
func LoadEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("config: load %s: %w", path, err)
	}
	return nil
}
