package prompt

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"text/template"

	"okxagent/internal/logger"

	"github.com/fsnotify/fsnotify"
)

// Store 持有当前系统提示词与用户模板，可从目录加载并热更新。
// 目录中缺失的文件回退到内置默认模板。
type Store struct {
	dir        string
	systemFile string
	userFile   string

	mu       sync.RWMutex
	system   string
	userTpl  *template.Template
	onReload func()
}

// NewStore loads templates from dir (may be empty for embedded defaults).
func NewStore(dir, systemFile, userFile string) (*Store, error) {
	s := &Store{
		dir:        strings.TrimSpace(dir),
		systemFile: strings.TrimSpace(systemFile),
		userFile:   strings.TrimSpace(userFile),
	}
	if s.systemFile == "" {
		s.systemFile = "system_prompt.txt"
	}
	if s.userFile == "" {
		s.userFile = "user_prompt.tmpl"
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads both templates. A broken user template keeps the previous one.
func (s *Store) Reload() error {
	system, sysSrc, err := s.read(s.systemFile, defaultSystemName)
	if err != nil {
		return err
	}
	userText, userSrc, err := s.read(s.userFile, defaultUserName)
	if err != nil {
		return err
	}
	tpl, err := parseUser(userSrc, userText)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.system = system
	s.userTpl = tpl
	cb := s.onReload
	s.mu.Unlock()
	logger.Debugf("prompt 模板已加载 system=%s user=%s", sysSrc, userSrc)
	if cb != nil {
		cb()
	}
	return nil
}

func (s *Store) read(name, fallback string) (string, string, error) {
	if s.dir != "" {
		path := filepath.Join(s.dir, name)
		data, err := os.ReadFile(path)
		if err == nil {
			return string(data), path, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", "", fmt.Errorf("read prompt %s: %w", path, err)
		}
	}
	data, err := defaultFS.ReadFile(fallback)
	if err != nil {
		return "", "", fmt.Errorf("read embedded prompt %s: %w", fallback, err)
	}
	return string(data), "embedded:" + filepath.Base(fallback), nil
}

// System renders the system prompt with safe substitution.
func (s *Store) System(vars map[string]string) string {
	s.mu.RLock()
	text := s.system
	s.mu.RUnlock()
	return Substitute(text, vars)
}

// RenderUser executes the user template.
func (s *Store) RenderUser(in UserInput) (string, error) {
	s.mu.RLock()
	tpl := s.userTpl
	s.mu.RUnlock()
	var b strings.Builder
	if err := tpl.Execute(&b, in); err != nil {
		return "", fmt.Errorf("render user prompt: %w", err)
	}
	return b.String(), nil
}

// OnReload registers a callback fired after every successful reload.
func (s *Store) OnReload(fn func()) {
	s.mu.Lock()
	s.onReload = fn
	s.mu.Unlock()
}

// Watch reloads templates when files in dir change, until ctx is done.
func (s *Store) Watch(ctx context.Context) error {
	if s.dir == "" {
		return fmt.Errorf("prompt watch: no directory configured")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("prompt watch: %w", err)
	}
	if err := watcher.Add(s.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("prompt watch %s: %w", s.dir, err)
	}
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-watcher.Events:
				if !ok {
					return
				}
				base := filepath.Base(evt.Name)
				if base != s.systemFile && base != s.userFile {
					continue
				}
				if !evt.Has(fsnotify.Write) && !evt.Has(fsnotify.Create) && !evt.Has(fsnotify.Rename) {
					continue
				}
				if err := s.Reload(); err != nil {
					logger.Errorf("prompt reload failed (%s): %v", evt.Name, err)
					continue
				}
				logger.Infof("prompt 模板热更新: %s", base)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warnf("prompt watcher error: %v", err)
			}
		}
	}()
	return nil
}
