package audit

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrNotFound is returned when no entry has the requested ID.
var ErrNotFound = errors.New("audit log not found")

const maxRecordSize = 16 * 1024 * 1024

// Reader scans audit log files written by Writer.
type Reader struct {
	basePath string
}

// NewReader creates a new audit log reader
func NewReader(basePath string) (*Reader, error) {
	info, err := os.Stat(basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("audit log path %s is not a directory", basePath)
	}

	return &Reader{basePath: basePath}, nil
}

// Query returns entries matching the filter, newest first
func (r *Reader) Query(filter QueryFilter) ([]*AuditLog, error) {
	var logs []*AuditLog
	err := r.scan(func(entry *AuditLog) bool {
		if filter.Matches(entry) {
			logs = append(logs, entry)
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(logs, func(i, j int) bool {
		return logs[i].CreatedAt.After(logs[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(logs) {
			return []*AuditLog{}, nil
		}
		logs = logs[filter.Offset:]
	}
	if filter.Limit > 0 && len(logs) > filter.Limit {
		logs = logs[:filter.Limit]
	}

	return logs, nil
}

// GetByID retrieves a single audit log by ID
func (r *Reader) GetByID(id string) (*AuditLog, error) {
	var found *AuditLog
	err := r.scan(func(entry *AuditLog) bool {
		if entry.ID == id {
			found = entry
			return false
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return found, nil
}

// scan visits every entry in file order until fn returns false
func (r *Reader) scan(fn func(*AuditLog) bool) error {
	files, err := filepath.Glob(filepath.Join(r.basePath, "audit-*.log"))
	if err != nil {
		return fmt.Errorf("failed to list audit log files: %w", err)
	}
	sort.Strings(files)

	for _, name := range files {
		more, err := scanFile(name, fn)
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
	return nil
}

func scanFile(name string, fn func(*AuditLog) bool) (bool, error) {
	file, err := os.Open(name)
	if err != nil {
		return false, fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer file.Close()

	br := bufio.NewReader(file)
	header := make([]byte, 4)

	for {
		if _, err := io.ReadFull(br, header); err != nil {
			if errors.Is(err, io.EOF) {
				return true, nil
			}
			// a torn length prefix means the writer was interrupted mid-record
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return true, nil
			}
			return false, fmt.Errorf("failed to read length prefix: %w", err)
		}

		length := binary.BigEndian.Uint32(header)
		if length > maxRecordSize {
			return false, fmt.Errorf("corrupt audit record in %s: length %d", name, length)
		}

		data := make([]byte, length)
		if _, err := io.ReadFull(br, data); err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return true, nil
			}
			return false, fmt.Errorf("failed to read data: %w", err)
		}

		var entry AuditLog
		if err := msgpack.Unmarshal(data, &entry); err != nil {
			return false, fmt.Errorf("failed to decode audit log: %w", err)
		}

		if !fn(&entry) {
			return false, nil
		}
	}
}
