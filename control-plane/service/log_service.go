package service

import (
	"context"

	"github.com/QTuan97/HC-API-Plat/control-plane/storage"
)

// DefaultLogLimit is the page size used when a request doesn't give one.
const DefaultLogLimit = 20

// LogPage is one page of recorded requests.
type LogPage struct {
	Logs  []*storage.LogEntry `json:"logs"`
	Total int                 `json:"total"`
}

// LogService provides read and clear access to recorded requests.
type LogService struct {
	store    storage.ILogStore
	maxLimit int
}

// NewLogService creates a new LogService. A maxLimit of zero disables the cap.
func NewLogService(store storage.ILogStore, maxLimit int) *LogService {
	return &LogService{store: store, maxLimit: maxLimit}
}

// ListLogs returns one page of entries, newest first. Zero values select page 1
// and the default limit; limits above the cap are clamped.
func (s *LogService) ListLogs(ctx context.Context, page, limit int) (*LogPage, error) {
	if page < 0 || limit < 0 {
		return nil, ErrInvalidInput
	}
	if page == 0 {
		page = 1
	}
	if limit == 0 {
		limit = DefaultLogLimit
	}
	if s.maxLimit > 0 && limit > s.maxLimit {
		limit = s.maxLimit
	}

	logs, total, err := s.store.List(ctx, page, limit)
	if err != nil {
		return nil, err
	}
	if logs == nil {
		logs = []*storage.LogEntry{}
	}
	return &LogPage{Logs: logs, Total: total}, nil
}

// RecordLog stores an entry produced by the mock engine.
func (s *LogService) RecordLog(ctx context.Context, entry *storage.LogEntry) error {
	if entry == nil || entry.Method == "" || entry.Path == "" {
		return ErrInvalidInput
	}
	entry.Method = NormalizeMethod(entry.Method)
	return s.store.Append(ctx, entry)
}

// ClearLogs removes every recorded entry and returns how many were removed.
func (s *LogService) ClearLogs(ctx context.Context) (int, error) {
	return s.store.Clear(ctx)
}
