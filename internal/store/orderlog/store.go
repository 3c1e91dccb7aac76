package orderlog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"okxagent/internal/trade"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

// Store 订单日志，实现 trade.Journal。
type Store struct {
	db *gorm.DB
}

var _ trade.Journal = (*Store)(nil)

// Open 打开（必要时创建）订单日志库。
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("order log path 不能为空")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.New(sqlite.Config{DriverName: "sqlite", DSN: dsn}), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	return NewFromDB(db)
}

func NewFromDB(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("gorm db 不能为空")
	}
	if err := db.AutoMigrate(&OrderLogModel{}); err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(2)
		sqlDB.SetMaxIdleConns(2)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Record 写入一条下单记录。
func (s *Store) Record(ctx context.Context, e trade.JournalEntry) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("order log store 未初始化")
	}
	at := e.At
	if at.IsZero() {
		at = time.Now()
	}
	row := OrderLogModel{
		TraceID:   e.TraceID,
		Kind:      e.Kind,
		InstID:    e.InstID,
		Side:      e.Side,
		PosSide:   e.PosSide,
		ClOrdID:   e.ClOrdID,
		OrdID:     e.OrdID,
		Status:    e.Status,
		Request:   toJSON(e.Request),
		Response:  toJSON(e.Response),
		Error:     e.Error,
		Timestamp: at.UnixMilli(),
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

// Recent 最近的订单记录，instID 为空时不过滤。
func (s *Store) Recent(ctx context.Context, limit int, instID string) ([]OrderLogModel, error) {
	if limit <= 0 {
		limit = 50
	}
	q := s.db.WithContext(ctx).Model(&OrderLogModel{})
	if instID = strings.TrimSpace(instID); instID != "" {
		q = q.Where("inst_id = ?", strings.ToUpper(instID))
	}
	var rows []OrderLogModel
	err := q.Order("timestamp DESC").Order("id DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

// ByTrace 某一轮循环产生的所有订单记录。
func (s *Store) ByTrace(ctx context.Context, traceID string) ([]OrderLogModel, error) {
	var rows []OrderLogModel
	err := s.db.WithContext(ctx).Where("trace_id = ?", traceID).Order("id ASC").Find(&rows).Error
	return rows, err
}

func toJSON(v any) datatypes.JSON {
	switch t := v.(type) {
	case nil:
		return nil
	case []byte:
		if json.Valid(t) {
			return datatypes.JSON(t)
		}
	case json.RawMessage:
		return datatypes.JSON(t)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		raw, _ = json.Marshal(map[string]string{"marshal_error": err.Error()})
	}
	return datatypes.JSON(raw)
}
