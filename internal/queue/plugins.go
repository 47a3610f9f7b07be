// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Plugin registry and topic dispatch configuration: a complete queue
// worker needs to know which binary to run for a job and where its
// output should land, on top of the job state machine itself.
package queue

import (
	"context"

	"github.com/casparianflow/flow/internal/store"
)

// PluginManifest mirrors one cf_plugin_manifest row: the registered
// identity of one parser plugin a queue worker can dispatch to.
type PluginManifest struct {
	PluginName   string
	Version      string
	RuntimeKind  string
	Entrypoint   string
	SourceHash   *string
	Signature    *string
	RegisteredAt int64
}

// RegisterPlugin upserts a plugin's manifest, re-registering on a
// version bump or entrypoint change.
func (q *Queue) RegisterPlugin(ctx context.Context, m PluginManifest) error {
	now := nowMillis()
	_, err := q.db.Execute(ctx,
		`INSERT INTO cf_plugin_manifest (plugin_name, version, runtime_kind, entrypoint, source_hash, signature, registered_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(plugin_name) DO UPDATE SET
		   version = excluded.version, runtime_kind = excluded.runtime_kind, entrypoint = excluded.entrypoint,
		   source_hash = excluded.source_hash, signature = excluded.signature, registered_at = excluded.registered_at`,
		m.PluginName, m.Version, m.RuntimeKind, m.Entrypoint, m.SourceHash, m.Signature, now)
	return err
}

func (q *Queue) GetPluginManifest(ctx context.Context, pluginName string) (*PluginManifest, error) {
	row, err := q.db.QueryOptional(ctx, "SELECT * FROM cf_plugin_manifest WHERE plugin_name = ?", pluginName)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	get := func(col string) store.DbValue { return row.MustGet(col) }
	version, err := store.FromDbValue[string](get("version"))
	if err != nil {
		return nil, err
	}
	runtimeKind, err := store.FromDbValue[string](get("runtime_kind"))
	if err != nil {
		return nil, err
	}
	entrypoint, err := store.FromDbValue[string](get("entrypoint"))
	if err != nil {
		return nil, err
	}
	sourceHash, err := store.OptionalFromDbValue[string](get("source_hash"))
	if err != nil {
		return nil, err
	}
	signature, err := store.OptionalFromDbValue[string](get("signature"))
	if err != nil {
		return nil, err
	}
	registeredAt, err := store.FromDbValue[int64](get("registered_at"))
	if err != nil {
		return nil, err
	}
	return &PluginManifest{
		PluginName: pluginName, Version: version, RuntimeKind: runtimeKind, Entrypoint: entrypoint,
		SourceHash: sourceHash, Signature: signature, RegisteredAt: registeredAt,
	}, nil
}

// SetPluginEnvironment upserts one environment key/value pair a
// plugin's subprocess should be launched with (e.g. credentials paths,
// feature flags). The pair is stored once per plugin and read back by
// GetPluginEnvironment; jobs carry no copy of it.
func (q *Queue) SetPluginEnvironment(ctx context.Context, pluginName, key, value string) error {
	_, err := q.db.Execute(ctx,
		`INSERT INTO cf_plugin_environment (plugin_name, key, value) VALUES (?, ?, ?)
		 ON CONFLICT(plugin_name, key) DO UPDATE SET value = excluded.value`,
		pluginName, key, value)
	return err
}

// GetPluginEnvironment returns the full key/value environment a
// plugin should launch with.
func (q *Queue) GetPluginEnvironment(ctx context.Context, pluginName string) (map[string]string, error) {
	rows, err := q.db.QueryAll(ctx, "SELECT key, value FROM cf_plugin_environment WHERE plugin_name = ? ORDER BY key ASC", pluginName)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(rows))
	for _, row := range rows {
		key, err := store.FromDbValue[string](row.MustGet("key"))
		if err != nil {
			return nil, err
		}
		value, err := store.FromDbValue[string](row.MustGet("value"))
		if err != nil {
			return nil, err
		}
		out[key] = value
	}
	return out, nil
}

// TopicConfig mirrors one cf_topic_config row: which plugin handles a
// named ingestion topic and which sink its output should be routed to.
type TopicConfig struct {
	Topic      string
	PluginName string
	SinkTarget string
	Enabled    bool
}

func (q *Queue) SetTopicConfig(ctx context.Context, cfg TopicConfig) error {
	_, err := q.db.Execute(ctx,
		`INSERT INTO cf_topic_config (topic, plugin_name, sink_target, enabled) VALUES (?, ?, ?, ?)
		 ON CONFLICT(topic) DO UPDATE SET
		   plugin_name = excluded.plugin_name, sink_target = excluded.sink_target, enabled = excluded.enabled`,
		cfg.Topic, cfg.PluginName, cfg.SinkTarget, boolToInt(cfg.Enabled))
	return err
}

func (q *Queue) GetTopicConfig(ctx context.Context, topic string) (*TopicConfig, error) {
	row, err := q.db.QueryOptional(ctx, "SELECT * FROM cf_topic_config WHERE topic = ?", topic)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	pluginName, err := store.FromDbValue[string]((*row).MustGet("plugin_name"))
	if err != nil {
		return nil, err
	}
	sinkTarget, err := store.FromDbValue[string]((*row).MustGet("sink_target"))
	if err != nil {
		return nil, err
	}
	enabledInt, err := store.FromDbValue[int64]((*row).MustGet("enabled"))
	if err != nil {
		return nil, err
	}
	return &TopicConfig{Topic: topic, PluginName: pluginName, SinkTarget: sinkTarget, Enabled: enabledInt != 0}, nil
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
