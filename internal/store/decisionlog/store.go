package decisionlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"okxagent/internal/decision"
	"okxagent/internal/logger"

	_ "modernc.org/sqlite"
)

// ErrNotFound 表示 trace id 不存在。
var ErrNotFound = errors.New("decision log not found")

// Store 每轮循环一条记录，保存模型输入/输出，方便排查与展示。
type Store struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

// Record 一轮决策日志。
type Record struct {
	ID               int64               `json:"id"`
	TraceID          string              `json:"trace_id"`
	Timestamp        int64               `json:"ts"`
	ProviderID       string              `json:"provider_id"`
	Symbols          []string            `json:"symbols,omitempty"`
	System           string              `json:"system_prompt"`
	User             string              `json:"user_prompt"`
	RawOutput        string              `json:"raw_output"`
	RawJSON          string              `json:"raw_json"`
	Decisions        []decision.Decision `json:"decisions"`
	ActionSummary    string              `json:"action_summary,omitempty"`
	ReasoningSummary string              `json:"reasoning_summary,omitempty"`
	ImageCount       int                 `json:"image_count"`
	DurationMs       int64               `json:"duration_ms"`
	Error            string              `json:"error,omitempty"`
}

// Open 初始化 SQLite 存储（modernc 纯 Go 驱动）。
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("decision log path 不能为空")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, path: path}, nil
}

func (s *Store) Path() string { return s.path }

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func ensureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS decision_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			trace_id TEXT NOT NULL UNIQUE,
			ts INTEGER NOT NULL,
			provider_id TEXT,
			symbols TEXT,
			system_prompt TEXT,
			user_prompt TEXT,
			raw_output TEXT,
			raw_json TEXT,
			decisions_json TEXT,
			action_summary TEXT,
			reasoning_summary TEXT,
			image_count INTEGER NOT NULL DEFAULT 0,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			error TEXT,
			created_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_decision_logs_ts ON decision_logs(ts DESC, id DESC);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("decision log schema: %w", err)
		}
	}
	return nil
}

func (s *Store) conn() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, fmt.Errorf("decision log store 已关闭")
	}
	return s.db, nil
}

// Insert 写入一条记录并返回自增 id。
func (s *Store) Insert(ctx context.Context, rec Record) (int64, error) {
	db, err := s.conn()
	if err != nil {
		return 0, err
	}
	if strings.TrimSpace(rec.TraceID) == "" {
		return 0, fmt.Errorf("trace id 不能为空")
	}
	if rec.Timestamp == 0 {
		rec.Timestamp = time.Now().UnixMilli()
	}
	decisions := rec.Decisions
	if decisions == nil {
		decisions = []decision.Decision{}
	}
	decJSON, err := json.Marshal(decisions)
	if err != nil {
		return 0, err
	}
	res, err := db.ExecContext(ctx, `INSERT INTO decision_logs
		(trace_id, ts, provider_id, symbols, system_prompt, user_prompt, raw_output, raw_json,
		 decisions_json, action_summary, reasoning_summary, image_count, duration_ms, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.TraceID, rec.Timestamp, rec.ProviderID, strings.Join(rec.Symbols, ","),
		rec.System, rec.User, rec.RawOutput, rec.RawJSON, string(decJSON),
		rec.ActionSummary, rec.ReasoningSummary, rec.ImageCount, rec.DurationMs, rec.Error,
		time.Now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("insert decision log: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	logger.Debugf("决策日志已写入 trace=%s id=%d", rec.TraceID, id)
	return id, nil
}

const selectColumns = `id, trace_id, ts, provider_id, symbols, system_prompt, user_prompt,
	raw_output, raw_json, decisions_json, action_summary, reasoning_summary, image_count, duration_ms, error`

// Recent 按时间倒序返回最近 limit 条（limit<=0 时默认 20）。
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.QueryContext(ctx, `SELECT `+selectColumns+` FROM decision_logs ORDER BY ts DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Get 按 trace id 查询。
func (s *Store) Get(ctx context.Context, traceID string) (Record, error) {
	db, err := s.conn()
	if err != nil {
		return Record{}, err
	}
	row := db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM decision_logs WHERE trace_id = ?`, traceID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return rec, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (Record, error) {
	var (
		rec                                   Record
		provider, symbols, system, user       sql.NullString
		rawOut, rawJSON, decJSON, act, reason sql.NullString
		errStr                                sql.NullString
	)
	if err := sc.Scan(&rec.ID, &rec.TraceID, &rec.Timestamp, &provider, &symbols, &system, &user,
		&rawOut, &rawJSON, &decJSON, &act, &reason, &rec.ImageCount, &rec.DurationMs, &errStr); err != nil {
		return Record{}, err
	}
	rec.ProviderID = provider.String
	if symbols.String != "" {
		rec.Symbols = strings.Split(symbols.String, ",")
	}
	rec.System, rec.User = system.String, user.String
	rec.RawOutput, rec.RawJSON = rawOut.String, rawJSON.String
	rec.ActionSummary, rec.ReasoningSummary = act.String, reason.String
	rec.Error = errStr.String
	if decJSON.String != "" {
		if err := json.Unmarshal([]byte(decJSON.String), &rec.Decisions); err != nil {
			logger.Warnf("解析决策日志 %s 的 decisions 失败: %v", rec.TraceID, err)
		}
	}
	return rec, nil
}
