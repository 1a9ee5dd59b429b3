// Package store 在关机前持久化任务时钟基准，供下次上电参考。
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"sampler/clock"
)

// ErrNoRecord 尚无记录
var ErrNoRecord = errors.New("没有时钟记录")

// ClockRecord 一次运行结束时的时钟状态
type ClockRecord struct {
	ID         int64  `json:"id"`
	SavedAtMs  int64  `json:"savedAtMs"`
	T0Ms       int64  `json:"t0Ms"`
	TPlusMs    int64  `json:"tPlusMs"`
	Ready      bool   `json:"ready"`
	DriftMs    int64  `json:"driftMs"`
	Correction int32  `json:"corrections"`
	Note       string `json:"note,omitempty"`
}

// FromSnapshot 由时钟快照生成记录
func FromSnapshot(s clock.Snapshot, note string) ClockRecord {
	return ClockRecord{
		SavedAtMs:  s.NowMs,
		T0Ms:       s.T0Ms,
		TPlusMs:    s.TPlusMs,
		Ready:      s.Ready,
		DriftMs:    s.DriftMs,
		Correction: s.Corrections,
		Note:       note,
	}
}

// ClockStore sqlite 时钟记录
type ClockStore struct {
	db   *sql.DB
	path string
}

// Open 打开或创建数据库
func Open(path string) (*ClockStore, error) {
	if path == "" {
		path = "sampler.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("创建数据库目录失败：%w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败：%w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS clock_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		saved_at_ms INTEGER NOT NULL,
		t0_ms INTEGER NOT NULL,
		t_plus_ms INTEGER NOT NULL,
		ready INTEGER NOT NULL,
		drift_ms INTEGER NOT NULL,
		corrections INTEGER NOT NULL,
		note TEXT NOT NULL DEFAULT ''
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("创建时钟表失败：%w", err)
	}
	return &ClockStore{db: db, path: path}, nil
}

// Save 追加一条记录，返回其 ID
func (s *ClockStore) Save(ctx context.Context, rec ClockRecord) (int64, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO clock_records
		(saved_at_ms, t0_ms, t_plus_ms, ready, drift_ms, corrections, note)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.SavedAtMs, rec.T0Ms, rec.TPlusMs, rec.Ready, rec.DriftMs, rec.Correction, rec.Note)
	if err != nil {
		return 0, fmt.Errorf("保存时钟记录失败：%w", err)
	}
	return res.LastInsertId()
}

// Latest 最近一条记录
func (s *ClockStore) Latest(ctx context.Context) (ClockRecord, error) {
	var rec ClockRecord
	err := s.db.QueryRowContext(ctx, `SELECT id, saved_at_ms, t0_ms, t_plus_ms, ready, drift_ms, corrections, note
		FROM clock_records ORDER BY id DESC LIMIT 1`).
		Scan(&rec.ID, &rec.SavedAtMs, &rec.T0Ms, &rec.TPlusMs, &rec.Ready, &rec.DriftMs, &rec.Correction, &rec.Note)
	if errors.Is(err, sql.ErrNoRows) {
		return ClockRecord{}, ErrNoRecord
	}
	if err != nil {
		return ClockRecord{}, fmt.Errorf("读取时钟记录失败：%w", err)
	}
	return rec, nil
}

// Close 关闭数据库
func (s *ClockStore) Close() error { return s.db.Close() }
