// internal/domain/notification/repository.go
package notification

import "context"

type LogRepository interface {
	AppendLogEntry(ctx context.Context, entry *LogEntry) error
	ListLogEntriesByRecord(ctx context.Context, recordID string) ([]*LogEntry, error)
}
