package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// DailyFile 按日期切分的日志文件：<dir>/<prefix>_YYYYMMDD.log，跨日自动重开。
type DailyFile struct {
	mu     sync.Mutex
	dir    string
	prefix string
	day    string
	file   *os.File
	nowFn  func() time.Time
}

func NewDailyFile(dir, prefix string) (*DailyFile, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		dir = "log"
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "okx_trade_agent_log"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	d := &DailyFile{dir: dir, prefix: prefix, nowFn: time.Now}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.rotateLocked(); err != nil {
		return nil, err
	}
	return d, nil
}

// Path returns the file currently written to.
func (d *DailyFile) Path() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pathFor(d.day)
}

func (d *DailyFile) pathFor(day string) string {
	return filepath.Join(d.dir, fmt.Sprintf("%s_%s.log", d.prefix, day))
}

func (d *DailyFile) rotateLocked() error {
	day := d.nowFn().Format("20060102")
	if d.file != nil && day == d.day {
		return nil
	}
	f, err := os.OpenFile(d.pathFor(day), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if d.file != nil {
		_ = d.file.Close()
	}
	d.file = f
	d.day = day
	return nil
}

func (d *DailyFile) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.rotateLocked(); err != nil {
		return 0, err
	}
	return d.file.Write(p)
}

func (d *DailyFile) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	return err
}
