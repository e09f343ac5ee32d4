package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/RecoveryAshes/AdScout/internal/models"
	"github.com/RecoveryAshes/AdScout/internal/utils"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS adscout_reports (
	run_id      TEXT NOT NULL,
	kind        TEXT NOT NULL,
	keywords    TEXT NOT NULL,
	status      TEXT NOT NULL,
	total_ads   INTEGER NOT NULL,
	unique_keys INTEGER NOT NULL,
	saved_at    TIMESTAMPTZ NOT NULL,
	bundle      JSONB NOT NULL,
	PRIMARY KEY (run_id, kind)
);

CREATE TABLE IF NOT EXISTS adscout_records (
	run_id     TEXT NOT NULL,
	kind       TEXT NOT NULL,
	record_key TEXT NOT NULL,
	total_ads  INTEGER NOT NULL,
	search_url TEXT,
	title      TEXT,
	PRIMARY KEY (run_id, kind, record_key)
);
`

// PostgresConfig 连接参数
type PostgresConfig struct {
	DSN      string
	MaxConns int
	// ViaBouncer 经由pgbouncer连接时使用简单协议
	ViaBouncer bool
	BatchSize  int
}

// PostgresStore 将报告写入PostgreSQL
// 广告条目只保存在报告JSON中,记录表用于跨运行查询
type PostgresStore struct {
	pool      *pgxpool.Pool
	batchSize int
}

// OpenPostgres 连接数据库并建表
func OpenPostgres(ctx context.Context, config PostgresConfig) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(config.DSN)
	if err != nil {
		return nil, &models.ConfigError{Field: "storage.postgres_dsn", Cause: err}
	}
	if config.MaxConns <= 0 {
		config.MaxConns = 2
	}
	cfg.MaxConns = int32(config.MaxConns)
	if config.ViaBouncer {
		cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("连接PostgreSQL失败: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("连接PostgreSQL失败: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("建表失败: %w", err)
	}

	batch := config.BatchSize
	if batch <= 0 {
		batch = 200
	}
	utils.Debugf("PostgreSQL已连接: %s", cfg.ConnConfig.Host)
	return &PostgresStore{pool: pool, batchSize: batch}, nil
}

// Close 关闭连接池
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Save 实现 core.Sink,返回 "postgres://<kind>/<runID>"
func (s *PostgresStore) Save(ctx context.Context, bundle *models.ReportBundle) (string, error) {
	payload, err := bundle.ToJSON()
	if err != nil {
		return "", fmt.Errorf("序列化报告失败: %w", err)
	}

	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO adscout_reports (run_id, kind, keywords, status, total_ads, unique_keys, saved_at, bundle)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (run_id, kind) DO UPDATE SET
				status = EXCLUDED.status,
				total_ads = EXCLUDED.total_ads,
				unique_keys = EXCLUDED.unique_keys,
				saved_at = EXCLUDED.saved_at,
				bundle = EXCLUDED.bundle`,
			bundle.RunID, string(bundle.Kind), bundle.SearchKeywords, string(bundle.Status),
			bundle.TotalAdsFound, bundle.UniqueKeyCount, bundle.Timestamp, string(payload),
		)
		if err != nil {
			return fmt.Errorf("写入报告失败: %w", err)
		}
		if bundle.Kind == models.KindAds {
			return nil
		}

		if _, err := tx.Exec(ctx, `DELETE FROM adscout_records WHERE run_id = $1 AND kind = $2`,
			bundle.RunID, string(bundle.Kind)); err != nil {
			return fmt.Errorf("清理旧记录失败: %w", err)
		}
		return s.insertRecords(ctx, tx, bundle)
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("postgres://%s/%s", bundle.Kind, bundle.RunID), nil
}

// insertRecords 分批写入记录
func (s *PostgresStore) insertRecords(ctx context.Context, tx pgx.Tx, bundle *models.ReportBundle) error {
	keys := models.SortedKeys(bundle.Records)
	for i := 0; i < len(keys); i += s.batchSize {
		j := i + s.batchSize
		if j > len(keys) {
			j = len(keys)
		}

		b := &pgx.Batch{}
		for _, key := range keys[i:j] {
			rec := bundle.Records[key]
			b.Queue(`
				INSERT INTO adscout_records (run_id, kind, record_key, total_ads, search_url, title)
				VALUES ($1, $2, $3, $4, $5, $6)`,
				bundle.RunID, string(bundle.Kind), key, rec.TotalAds, rec.SearchURL, rec.Title,
			)
		}

		br := tx.SendBatch(ctx, b)
		for k := i; k < j; k++ {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return fmt.Errorf("写入记录失败 [%s]: %w", keys[k], err)
			}
		}
		if err := br.Close(); err != nil {
			return err
		}
	}
	return nil
}
