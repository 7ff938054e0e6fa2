package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealdossier/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "project-files", cfg.Storage.Bucket)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadHeaderTimeout)
	assert.Equal(t, 10*time.Minute, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Minute, cfg.Server.WriteTimeout)
	assert.Equal(t, "s3", cfg.Storage.Driver)
	assert.Equal(t, int64(100), cfg.Ingest.MaxFileSizeMB)
	assert.Equal(t, int64(100*1024*1024), cfg.Ingest.MaxFileSizeBytes())
	assert.Equal(t, 1, cfg.Ingest.Concurrency)
	assert.Equal(t, 60*time.Second, cfg.Ingest.StepTimeout)
	assert.Equal(t, "memory", cfg.Progress.Driver)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, []string{"http://localhost:3000", "http://127.0.0.1:3000"}, cfg.CORS.AllowedOrigins)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DOSSIER_STORAGE_DRIVER", "MinIO")
	t.Setenv("DOSSIER_INGEST_CONCURRENCY", "4")
	t.Setenv("DOSSIER_INGEST_STEP_TIMEOUT", "5s")
	t.Setenv("DOSSIER_CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("DOSSIER_ANALYSIS_POLICY_FILE", "/etc/dossier/policy.yaml")
	t.Setenv("DOSSIER_SERVER_WRITE_TIMEOUT", "45m")
	t.Setenv("DOSSIER_SERVER_READ_HEADER_TIMEOUT", "5s")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "minio", cfg.Storage.Driver)
	assert.Equal(t, 4, cfg.Ingest.Concurrency)
	assert.Equal(t, 5*time.Second, cfg.Ingest.StepTimeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "/etc/dossier/policy.yaml", cfg.Analysis.PolicyFile)
	assert.Equal(t, 45*time.Minute, cfg.Server.WriteTimeout)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadHeaderTimeout)
}

func TestLoad_PortFallback(t *testing.T) {
	t.Setenv("PORT", "9090")
	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Port)
}

func TestLoad_ConcurrencyFloor(t *testing.T) {
	t.Setenv("DOSSIER_INGEST_CONCURRENCY", "0")
	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Ingest.Concurrency)
}

func TestLoad_RejectsUnknownDrivers(t *testing.T) {
	t.Setenv("DOSSIER_STORAGE_DRIVER", "ftp")
	_, err := config.Load()
	assert.Error(t, err)
}

func TestDBConfig_DSN(t *testing.T) {
	d := config.DBConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "n", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@db:5432/n?sslmode=disable", d.DSN())
}
