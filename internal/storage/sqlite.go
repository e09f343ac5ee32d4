package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/RecoveryAshes/AdScout/internal/models"
	"github.com/RecoveryAshes/AdScout/internal/utils"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS reports (
	run_id      TEXT NOT NULL,
	kind        TEXT NOT NULL,
	keywords    TEXT NOT NULL,
	status      TEXT NOT NULL,
	total_ads   INTEGER NOT NULL,
	unique_keys INTEGER NOT NULL,
	saved_at    DATETIME NOT NULL,
	bundle_json TEXT NOT NULL,
	PRIMARY KEY (run_id, kind)
);

CREATE INDEX IF NOT EXISTS idx_reports_keywords ON reports(keywords);

CREATE TABLE IF NOT EXISTS records (
	run_id     TEXT NOT NULL,
	kind       TEXT NOT NULL,
	record_key TEXT NOT NULL,
	total_ads  INTEGER NOT NULL,
	search_url TEXT,
	title      TEXT,
	PRIMARY KEY (run_id, kind, record_key)
);

CREATE TABLE IF NOT EXISTS ads (
	run_id   TEXT NOT NULL,
	position INTEGER NOT NULL,
	title    TEXT,
	quantity TEXT,
	links    TEXT NOT NULL,
	PRIMARY KEY (run_id, position)
);
`

// SQLiteStore 将报告写入本地SQLite数据库
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLite 打开(必要时创建)数据库并建表
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("创建数据库目录失败: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}
	// 只有一个写入者
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("启用WAL失败: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("建表失败: %w", err)
	}

	utils.Debugf("SQLite数据库: %s", path)
	return &SQLiteStore{db: db, path: path}, nil
}

// Close 关闭数据库
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Save 实现 core.Sink,返回 "sqlite://<path>#<kind>/<runID>"
func (s *SQLiteStore) Save(ctx context.Context, bundle *models.ReportBundle) (location string, err error) {
	payload, err := bundle.ToJSON()
	if err != nil {
		return "", fmt.Errorf("序列化报告失败: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("开始事务失败: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO reports (run_id, kind, keywords, status, total_ads, unique_keys, saved_at, bundle_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, kind) DO UPDATE SET
			status = excluded.status,
			total_ads = excluded.total_ads,
			unique_keys = excluded.unique_keys,
			saved_at = excluded.saved_at,
			bundle_json = excluded.bundle_json`,
		bundle.RunID, string(bundle.Kind), bundle.SearchKeywords, string(bundle.Status),
		bundle.TotalAdsFound, bundle.UniqueKeyCount, bundle.Timestamp, string(payload),
	)
	if err != nil {
		return "", fmt.Errorf("写入报告失败: %w", err)
	}

	if bundle.Kind == models.KindAds {
		err = s.replaceAds(ctx, tx, bundle)
	} else {
		err = s.replaceRecords(ctx, tx, bundle)
	}
	if err != nil {
		return "", err
	}

	if err = tx.Commit(); err != nil {
		return "", fmt.Errorf("提交事务失败: %w", err)
	}
	return fmt.Sprintf("sqlite://%s#%s/%s", s.path, bundle.Kind, bundle.RunID), nil
}

func (s *SQLiteStore) replaceRecords(ctx context.Context, tx *sql.Tx, bundle *models.ReportBundle) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE run_id = ? AND kind = ?`, bundle.RunID, string(bundle.Kind)); err != nil {
		return fmt.Errorf("清理旧记录失败: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (run_id, kind, record_key, total_ads, search_url, title)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("准备语句失败: %w", err)
	}
	defer stmt.Close()

	for _, key := range models.SortedKeys(bundle.Records) {
		rec := bundle.Records[key]
		if _, err := stmt.ExecContext(ctx, bundle.RunID, string(bundle.Kind), key, rec.TotalAds, rec.SearchURL, rec.Title); err != nil {
			return fmt.Errorf("写入记录失败 [%s]: %w", key, err)
		}
	}
	return nil
}

func (s *SQLiteStore) replaceAds(ctx context.Context, tx *sql.Tx, bundle *models.ReportBundle) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM ads WHERE run_id = ?`, bundle.RunID); err != nil {
		return fmt.Errorf("清理旧广告失败: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO ads (run_id, position, title, quantity, links)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("准备语句失败: %w", err)
	}
	defer stmt.Close()

	for i, ad := range bundle.Ads {
		links, err := json.Marshal(ad.Links)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, bundle.RunID, i, ad.Title, ad.Quantity, string(links)); err != nil {
			return fmt.Errorf("写入广告失败 [%d]: %w", i, err)
		}
	}
	return nil
}

// ErrReportNotFound 数据库中没有对应的报告
var ErrReportNotFound = errors.New("报告不存在")

// LoadReport 读取保存时的完整报告
func (s *SQLiteStore) LoadReport(ctx context.Context, runID string, kind models.BundleKind) (*models.ReportBundle, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT bundle_json FROM reports WHERE run_id = ? AND kind = ?`, runID, string(kind),
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", ErrReportNotFound, kind, runID)
	}
	if err != nil {
		return nil, err
	}

	var bundle models.ReportBundle
	if err := bundle.FromJSON([]byte(payload)); err != nil {
		return nil, fmt.Errorf("解析报告失败: %w", err)
	}
	return &bundle, nil
}

// TopRecords 按广告数降序返回某次运行的前n条记录
func (s *SQLiteStore) TopRecords(ctx context.Context, runID string, kind models.BundleKind, n int) ([]models.AggregateRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT record_key, total_ads, COALESCE(search_url, ''), COALESCE(title, '')
		FROM records
		WHERE run_id = ? AND kind = ?
		ORDER BY total_ads DESC, record_key ASC
		LIMIT ?`, runID, string(kind), n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.AggregateRecord
	for rows.Next() {
		var rec models.AggregateRecord
		if err := rows.Scan(&rec.URL, &rec.TotalAds, &rec.SearchURL, &rec.Title); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// RunsForKeywords 某组关键词的历史运行,最新的在前
func (s *SQLiteStore) RunsForKeywords(ctx context.Context, keywords string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id FROM reports
		WHERE keywords = ? AND kind = ?
		ORDER BY saved_at DESC`, strings.TrimSpace(keywords), string(models.KindAds))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		runs = append(runs, id)
	}
	return runs, rows.Err()
}
