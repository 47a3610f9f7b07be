// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func resetKeys() {
	Keys = Config{Addr: ":8180", DBDriver: "row", DB: "./var/scout.db"}
}

func TestInitDecodesFullConfig(t *testing.T) {
	resetKeys()
	path := writeConfigFile(t, `{
		"addr": ":9090",
		"workspace-root": "/var/lib/scoutd",
		"db-driver": "columnar",
		"db": "/var/lib/scoutd/data.db",
		"scheduler": {"dead-letter-sweep": "5m", "retry-scan": "30s"},
		"parsers": [{"plugin-name": "csv", "version": "1.0.0", "runtime-kind": "subprocess", "entrypoint": "/usr/bin/csv-parser"}],
		"topic-routes": [{"topic": "sensors", "plugin-name": "csv", "sink-target": "s3://bucket/prefix", "enabled": true}]
	}`)

	require.NoError(t, Init(path))
	require.Equal(t, ":9090", Keys.Addr)
	require.Equal(t, "columnar", Keys.DBDriver)
	require.Len(t, Keys.Parsers, 1)
	require.Equal(t, "csv", Keys.Parsers[0].PluginName)
	require.Len(t, Keys.TopicRoutes, 1)
	require.True(t, Keys.TopicRoutes[0].Enabled)

	sweep, err := Keys.SchedulerTiming.DeadLetterSweepInterval(0)
	require.NoError(t, err)
	require.Equal(t, int64(5*60*1e9), sweep.Nanoseconds())
}

func TestInitMissingFileKeepsDefaults(t *testing.T) {
	resetKeys()
	require.NoError(t, Init(filepath.Join(t.TempDir(), "does-not-exist.json")))
	require.Equal(t, ":8180", Keys.Addr)
}

func TestInitRequiresWorkspaceRoot(t *testing.T) {
	resetKeys()
	path := writeConfigFile(t, `{"addr": ":9090"}`)
	err := Init(path)
	require.Error(t, err)
}

func TestInitRejectsUnknownFields(t *testing.T) {
	resetKeys()
	path := writeConfigFile(t, `{"workspace-root": "/x", "bogus-field": true}`)
	err := Init(path)
	require.Error(t, err)
}

func TestInitRejectsBadDBDriver(t *testing.T) {
	resetKeys()
	path := writeConfigFile(t, `{"workspace-root": "/x", "db-driver": "not-a-kind"}`)
	err := Init(path)
	require.Error(t, err)
}

func TestSchedulerIntervalsDefaultOnEmpty(t *testing.T) {
	var s SchedulerIntervals
	d, err := s.HealthTickerInterval(90 * 1e9)
	require.NoError(t, err)
	require.Equal(t, int64(90*1e9), d.Nanoseconds())
}

func TestLoadEnvMissingFileIsNotAnError(t *testing.T) {
	require.NoError(t, LoadEnv(filepath.Join(t.TempDir(), "missing.env")))
}

func TestLoadEnvSetsVariables(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("SCOUTD_TEST_VAR=hello\n"), 0o644))
	require.NoError(t, LoadEnv(path))
	t.Cleanup(func() { os.Unsetenv("SCOUTD_TEST_VAR") })
	require.Equal(t, "hello", os.Getenv("SCOUTD_TEST_VAR"))
}

func TestResolveS3SinkRejectsNonS3Target(t *testing.T) {
	_, err := ResolveS3Sink(nil, "file:///tmp/x") //nolint:staticcheck // nil Context is fine, LoadDefaultConfig is never reached
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "not an s3://"))
}

func TestValidateParserManifestRejectsMissingFields(t *testing.T) {
	err := ValidateParserManifest(strings.NewReader(`{"plugin-name": "csv"}`))
	require.Error(t, err)
}

func TestValidateParserManifestAcceptsComplete(t *testing.T) {
	err := ValidateParserManifest(strings.NewReader(`{"plugin-name": "csv", "version": "1.0.0", "runtime-kind": "subprocess", "entrypoint": "/bin/csv"}`))
	require.NoError(t, err)
}
