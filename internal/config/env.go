package config

import (
	"os"
	"strconv"
	"strings"
)

// FromEnv overlays SPOOL_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	str := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if v := os.Getenv(name); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	str("SPOOL_DATA_DIR", &cfg.DataDir)
	str("SPOOL_BACKEND", &cfg.Backend)
	num("SPOOL_CAPACITY", &cfg.Capacity)
	str("SPOOL_FSYNC", &cfg.Fsync)
	num("SPOOL_FSYNC_INTERVAL_MS", &cfg.FsyncIntervalMs)
	str("SPOOL_CODEC", &cfg.Codec)
	str("SPOOL_COMPRESSION", &cfg.Compression)
	str("SPOOL_FILTER", &cfg.Filter)
	str("SPOOL_INGESTION_URL", &cfg.Ingestion.URL)
	str("SPOOL_INGESTION_APP_SECRET", &cfg.Ingestion.AppSecret)
	str("SPOOL_INGESTION_INSTALL_ID", &cfg.Ingestion.InstallID)
	str("SPOOL_INGESTION_AUTH_TOKEN", &cfg.Ingestion.AuthToken)
	num("SPOOL_INGESTION_TIMEOUT_MS", &cfg.Ingestion.TimeoutMs)
	num("SPOOL_FLUSH_INTERVAL_MS", &cfg.Flush.IntervalMs)
	num("SPOOL_FLUSH_BATCH_SIZE", &cfg.Flush.BatchSize)
	if v := os.Getenv("SPOOL_FLUSH_RATE_PER_SECOND"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Flush.RatePerSecond = f
		}
	}
	str("SPOOL_LOG_LEVEL", &cfg.Log.Level)
	str("SPOOL_LOG_FORMAT", &cfg.Log.Format)
	str("SPOOL_HTTP_ADDR", &cfg.HTTPAddr)
	str("SPOOL_GRPC_ADDR", &cfg.GRPCAddr)

	if v := os.Getenv("SPOOL_GROUPS"); v != "" {
		parts := strings.Split(v, ",")
		cfg.Groups = nil
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cfg.Groups = append(cfg.Groups, p)
			}
		}
	}
}
