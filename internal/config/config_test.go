package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
ranking:
  metric: ranked_score
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("port: got %d, want 9000", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 5*time.Second {
		t.Errorf("read timeout default: got %v", cfg.Server.ReadTimeout)
	}
	if cfg.Ranking.Metric != "ranked_score" {
		t.Errorf("metric: got %q", cfg.Ranking.Metric)
	}
	if cfg.Replay.UploadTimeout != 10*time.Second {
		t.Errorf("upload timeout default: got %v", cfg.Replay.UploadTimeout)
	}
	if cfg.Kafka.RecalcTopic != "droid-recalc-jobs" {
		t.Errorf("recalc topic default: got %q", cfg.Kafka.RecalcTopic)
	}
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("TEST_PG_PASSWORD", "sekrit")
	path := writeConfig(t, `
postgres:
  password: ${TEST_PG_PASSWORD}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Postgres.Password != "sekrit" {
		t.Errorf("password: got %q", cfg.Postgres.Password)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestRankingMetricFallsBackToPP(t *testing.T) {
	cfg := RankingConfig{Metric: "bogus"}
	if got := cfg.RankingMetric(); got != "pp" {
		t.Errorf("got %q, want pp", got)
	}

	cfg.Metric = "total_score"
	if got := cfg.RankingMetric(); got != "total_score" {
		t.Errorf("got %q, want total_score", got)
	}
}

func TestConnectionString(t *testing.T) {
	cfg := PostgresConfig{
		Host: "db", Port: 5432, User: "droid", Password: "pw", Database: "scores",
	}
	want := "postgres://droid:pw@db:5432/scores?sslmode=disable"
	if got := cfg.ConnectionString(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
