package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	opts, err := Load("draftd", []string{"-c", filepath.Join(t.TempDir(), "missing.json")}, nil)
	require.NoError(t, err)

	assert.Equal(t, "localhost:8090", opts.Addr)
	assert.Equal(t, DriverFile, opts.StorageDriver)
	assert.Equal(t, time.Second, opts.Debounce())
	assert.Equal(t, 5*time.Second, opts.ProbeInterval)
	assert.Equal(t, []string{"http://localhost:*", "http://127.0.0.1:*"}, opts.Origins())
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(cfg, []byte(`{
		"address": "127.0.0.1:9000",
		"storage_driver": "sqlite",
		"storage_dsn": "file:drafts.db",
		"probe_interval": "30s",
		"debounce_ms": 250
	}`), 0600))

	opts, err := Load("draftd",
		[]string{"-a", "127.0.0.1:1", "-l", "debug"},
		[]string{
			"CONFIG=" + cfg,
			"DRAFTD_ADDRESS=127.0.0.1:9999",
			"ALLOWED_ORIGINS=http://localhost:3000, https://school.example",
			"PROBE_INTERVAL=2s",
		})
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9999", opts.Addr, "env wins over file and flags")
	assert.Equal(t, "debug", opts.LogLevel, "flag survives when nothing overrides it")
	assert.Equal(t, DriverSQLite, opts.StorageDriver)
	assert.Equal(t, "file:drafts.db", opts.StorageDSN)
	assert.Equal(t, 250*time.Millisecond, opts.Debounce())
	assert.Equal(t, 2*time.Second, opts.ProbeInterval)
	assert.Equal(t, []string{"http://localhost:3000", "https://school.example"}, opts.Origins())
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0600))
	badInterval := filepath.Join(dir, "interval.json")
	require.NoError(t, os.WriteFile(badInterval, []byte(`{"probe_interval":"soon"}`), 0600))
	missing := filepath.Join(dir, "missing.json")

	tests := []struct {
		name    string
		args    []string
		environ []string
	}{
		{"bad json", []string{"-c", bad}, nil},
		{"bad interval", []string{"-c", badInterval}, nil},
		{"unknown flag", []string{"-zzz"}, nil},
		{"unknown driver", []string{"-c", missing, "-s", "redis"}, nil},
		{"sqlite without dsn", []string{"-c", missing, "-s", "sqlite"}, nil},
		{"bad env duration", []string{"-c", missing}, []string{"PROBE_INTERVAL=often"}},
		{"negative debounce", []string{"-c", missing}, []string{"DEBOUNCE_MS=-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load("draftd", tt.args, tt.environ)
			assert.Error(t, err)
		})
	}
}
