package storage

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"logward/config"
	"logward/core"
)

// ClickHouse holds the log event store connection.
type ClickHouse struct {
	Conn   driver.Conn
	Config *config.Config
	Logger *zap.SugaredLogger
}

// NewClickHouse connects to ClickHouse and ensures the logs table exists.
func NewClickHouse(cfg *config.Config, logger *zap.SugaredLogger) (*ClickHouse, error) {
	options := &clickhouse.Options{
		Addr: []string{cfg.ClickHouse.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.ClickHouse.Database,
			Username: cfg.ClickHouse.Username,
			Password: cfg.ClickHouse.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout: 10 * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		MaxOpenConns:     cfg.ClickHouse.MaxPoolSize,
		MaxIdleConns:     cfg.ClickHouse.MaxPoolSize / 2,
		ConnMaxLifetime:  1 * time.Hour,
		ConnOpenStrategy: clickhouse.ConnOpenInOrder,
		DialContext: func(ctx context.Context, addr string) (net.Conn, error) {
			// TCP keepalive to detect broken connections.
			var d net.Dialer
			d.Timeout = 10 * time.Second
			d.KeepAlive = 30 * time.Second
			return d.DialContext(ctx, "tcp", addr)
		},
	}

	if cfg.ClickHouse.TLS {
		options.TLS = &tls.Config{
			MinVersion: tls.VersionTLS13,
		}
	}

	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, fmt.Errorf("connect to clickhouse: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}

	ch := &ClickHouse{Conn: conn, Config: cfg, Logger: logger}
	if err := ch.migrate(ctx); err != nil {
		return nil, fmt.Errorf("clickhouse migrations: %w", err)
	}
	logger.Infow("clickhouse ready", "addr", cfg.ClickHouse.Addr, "database", cfg.ClickHouse.Database)
	return ch, nil
}

func (c *ClickHouse) migrate(ctx context.Context) error {
	return c.Conn.Exec(ctx, `CREATE TABLE IF NOT EXISTS logs (
		id UUID,
		organization_id String,
		project_id String,
		time DateTime64(3, 'UTC'),
		service LowCardinality(String),
		level LowCardinality(String),
		message String,
		trace_id String,
		metadata String
	) ENGINE = MergeTree()
	PARTITION BY toYYYYMMDD(time)
	ORDER BY (organization_id, project_id, time)
	TTL toDateTime(time) + INTERVAL 90 DAY`)
}

// Close shuts down the connection pool.
func (c *ClickHouse) Close() error {
	return c.Conn.Close()
}

// InsertLogs writes a batch of log entries.
func (c *ClickHouse) InsertLogs(ctx context.Context, entries []*core.LogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	batch, err := c.Conn.PrepareBatch(ctx, `INSERT INTO logs
		(id, organization_id, project_id, time, service, level, message, trace_id, metadata)`)
	if err != nil {
		return fmt.Errorf("prepare log batch: %w", err)
	}
	for _, entry := range entries {
		metadata := "{}"
		if len(entry.Metadata) > 0 {
			raw, err := json.Marshal(entry.Metadata)
			if err != nil {
				return fmt.Errorf("marshal metadata for log %s: %w", entry.ID, err)
			}
			metadata = string(raw)
		}
		err = batch.Append(entry.ID, entry.OrganizationID, entry.ProjectID,
			entry.Time.UTC(), entry.Service, entry.Level, entry.Message, entry.TraceID, metadata)
		if err != nil {
			return fmt.Errorf("append log %s: %w", entry.ID, err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send log batch: %w", err)
	}
	return nil
}

// CountLogs counts logs matching the filter. Logs carrying the "unknown"
// service always pass the service filter so that unclassified traffic
// still counts toward thresholds. The After bound is exclusive.
func (c *ClickHouse) CountLogs(ctx context.Context, filter LogCountFilter) (int, error) {
	if len(filter.ProjectIDs) == 0 {
		return 0, fmt.Errorf("count requires at least one project id")
	}

	var sb strings.Builder
	sb.WriteString(`SELECT count() FROM logs WHERE time > ? AND project_id IN (?)`)
	args := []interface{}{filter.After.UTC(), filter.ProjectIDs}

	if len(filter.Levels) > 0 {
		sb.WriteString(` AND level IN (?)`)
		args = append(args, filter.Levels)
	}
	if filter.Service != "" {
		sb.WriteString(` AND (service = ? OR service = ?)`)
		args = append(args, filter.Service, core.UnknownValue)
	}

	var count uint64
	if err := c.Conn.QueryRow(ctx, sb.String(), args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count logs: %w", err)
	}
	return int(count), nil
}
