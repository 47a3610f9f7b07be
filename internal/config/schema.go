// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package config

var configSchema = `
{
  "type": "object",
  "properties": {
    "addr": {
      "description": "Address the internal status/control HTTP server listens on.",
      "type": "string"
    },
    "workspace-root": {
      "description": "Filesystem root the daemon owns: backend database, columnar segments, advisory lock file.",
      "type": "string"
    },
    "db-driver": {
      "description": "Which store.Backend variant to open: 'row' or 'columnar'.",
      "type": "string",
      "enum": ["row", "columnar"]
    },
    "db": {
      "description": "Path to the backend's primary database file.",
      "type": "string"
    },
    "gops": {
      "description": "Start the gops debug agent.",
      "type": "boolean"
    },
    "gops-addr": {
      "description": "Address the gops agent listens on, if enabled.",
      "type": "string"
    },
    "scheduler": {
      "description": "Housekeeping scheduler intervals, as time.ParseDuration strings.",
      "type": "object",
      "properties": {
        "dead-letter-sweep": { "type": "string" },
        "retry-scan": { "type": "string" },
        "health-ticker": { "type": "string" }
      }
    },
    "parsers": {
      "description": "Parser plugins to register at startup.",
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "plugin-name": { "type": "string" },
          "version": { "type": "string" },
          "runtime-kind": { "type": "string" },
          "entrypoint": { "type": "string" },
          "source-hash": { "type": "string" },
          "signature": { "type": "string" }
        },
        "required": ["plugin-name", "version", "runtime-kind", "entrypoint"]
      }
    },
    "topic-routes": {
      "description": "Ingestion-topic-to-plugin-and-sink routing to seed at startup.",
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "topic": { "type": "string" },
          "plugin-name": { "type": "string" },
          "sink-target": { "type": "string" },
          "enabled": { "type": "boolean" }
        },
        "required": ["topic", "plugin-name", "sink-target"]
      }
    }
  },
  "required": ["workspace-root"]
}`
