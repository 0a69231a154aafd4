package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/bytedance/sonic"
)

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// FileLog stores each key as a JSON array in its own file under dir.
// Writes are full read-modify-write cycles followed by an atomic rename.
type FileLog struct {
	dir string
	mu  sync.Mutex
}

// NewFileLog creates dir if needed.
func NewFileLog(dir string) (*FileLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	return &FileLog{dir: dir}, nil
}

// Path returns the file backing key.
func (f *FileLog) Path(key string) string {
	return filepath.Join(f.dir, unsafeKeyChars.ReplaceAllString(key, "_")+".json")
}

func (f *FileLog) PushFront(ctx context.Context, key string, record []byte, limit int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	existing, err := f.read(key)
	if err != nil && !errors.Is(err, ErrCorrupt) {
		return err
	}

	list := make([][]byte, 0, len(existing)+1)
	list = append(list, record)
	list = append(list, existing...)
	return f.write(key, trim(list, limit))
}

func (f *FileLog) ReadAll(ctx context.Context, key string) ([][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.read(key)
}

func (f *FileLog) Replace(ctx context.Context, key string, records [][]byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.write(key, records)
}

func (f *FileLog) Clear(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.Path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clear log: %w", err)
	}
	return nil
}

func (f *FileLog) Close() error { return nil }

func (f *FileLog) read(key string) ([][]byte, error) {
	data, err := os.ReadFile(f.Path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}

	var raw []json.RawMessage
	if err := sonic.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, key, err)
	}

	out := make([][]byte, len(raw))
	for i, r := range raw {
		out[i] = []byte(r)
	}
	return out, nil
}

func (f *FileLog) write(key string, records [][]byte) error {
	raw := make([]json.RawMessage, 0, len(records))
	for _, r := range records {
		if !json.Valid(r) {
			return fmt.Errorf("record is not valid JSON")
		}
		raw = append(raw, json.RawMessage(r))
	}

	data, err := sonic.Marshal(raw)
	if err != nil {
		return fmt.Errorf("encode log: %w", err)
	}

	tmp, err := os.CreateTemp(f.dir, ".log-*")
	if err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write log: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write log: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.Path(key)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}
