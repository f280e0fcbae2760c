package audit

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/MaxymChyncha/house-security-system/pkg/logger"
)

// Writer handles async batch writing of audit logs.
//
// Each file is a sequence of records: a 4 byte big-endian length followed by
// the msgpack encoded entry.
type Writer struct {
	basePath      string
	batchSize     int
	flushInterval time.Duration
	maxFileSize   int64
	log           *logger.Logger

	buffer   []*AuditLog
	bufferMu sync.Mutex

	fileMu      sync.Mutex
	currentFile *os.File
	currentSize int64
	sequence    int

	stopCh    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// WriterConfig holds configuration for the audit writer
type WriterConfig struct {
	BasePath      string        // Base directory for audit logs
	BatchSize     int           // Number of entries to batch before flush
	FlushInterval time.Duration // Maximum time between flushes
	MaxFileSize   int64         // Maximum size of a single file before rotation
	Logger        *logger.Logger
}

// NewWriter creates a new audit log writer
func NewWriter(config WriterConfig) (*Writer, error) {
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = 5 * time.Second
	}
	if config.MaxFileSize <= 0 {
		config.MaxFileSize = 100 * 1024 * 1024 // 100MB
	}
	if config.Logger == nil {
		config.Logger = logger.New("info", "production")
	}

	if err := os.MkdirAll(config.BasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}

	w := &Writer{
		basePath:      config.BasePath,
		batchSize:     config.BatchSize,
		flushInterval: config.FlushInterval,
		maxFileSize:   config.MaxFileSize,
		log:           config.Logger,
		buffer:        make([]*AuditLog, 0, config.BatchSize),
		stopCh:        make(chan struct{}),
	}

	if err := w.rotateFile(); err != nil {
		return nil, fmt.Errorf("failed to create initial audit log file: %w", err)
	}

	w.wg.Add(1)
	go w.flushLoop()

	return w, nil
}

// Write adds an audit log entry to the buffer
func (w *Writer) Write(entry *AuditLog) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	w.bufferMu.Lock()
	w.buffer = append(w.buffer, entry)
	shouldFlush := len(w.buffer) >= w.batchSize
	w.bufferMu.Unlock()

	if shouldFlush {
		return w.Flush()
	}

	return nil
}

// Flush writes all buffered entries to disk
func (w *Writer) Flush() error {
	w.bufferMu.Lock()
	if len(w.buffer) == 0 {
		w.bufferMu.Unlock()
		return nil
	}
	toWrite := w.buffer
	w.buffer = make([]*AuditLog, 0, w.batchSize)
	w.bufferMu.Unlock()

	w.fileMu.Lock()
	defer w.fileMu.Unlock()

	for _, entry := range toWrite {
		if err := w.writeEntry(entry); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}
	}

	if err := w.currentFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync audit log file: %w", err)
	}

	return nil
}

// writeEntry must be called with fileMu held
func (w *Writer) writeEntry(entry *AuditLog) error {
	if w.currentSize >= w.maxFileSize {
		if err := w.rotateFile(); err != nil {
			return err
		}
	}

	data, err := msgpack.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode audit log: %w", err)
	}

	record := make([]byte, 4+len(data))
	binary.BigEndian.PutUint32(record, uint32(len(data)))
	copy(record[4:], data)

	if _, err := w.currentFile.Write(record); err != nil {
		return fmt.Errorf("failed to write audit log data: %w", err)
	}

	w.currentSize += int64(len(record))
	return nil
}

func (w *Writer) rotateFile() error {
	if w.currentFile != nil {
		if err := w.currentFile.Close(); err != nil {
			return fmt.Errorf("failed to close current file: %w", err)
		}
	}

	// the sequence keeps names unique when rotating twice within a second
	w.sequence++
	timestamp := time.Now().UTC().Format("2006-01-02T15-04-05")
	filename := filepath.Join(w.basePath, fmt.Sprintf("audit-%s-%04d.log", timestamp, w.sequence))

	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create audit log file: %w", err)
	}

	w.currentFile = file
	w.currentSize = 0

	return nil
}

func (w *Writer) flushLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.Flush(); err != nil {
				w.log.Error("error flushing audit logs", err)
			}
		case <-w.stopCh:
			if err := w.Flush(); err != nil {
				w.log.Error("error during final audit flush", err)
			}
			return
		}
	}
}

// Close flushes pending entries and closes the current file
func (w *Writer) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.stopCh)
		w.wg.Wait()

		w.fileMu.Lock()
		defer w.fileMu.Unlock()
		err = w.currentFile.Close()
	})
	return err
}

// Stats returns statistics about the writer
func (w *Writer) Stats() WriterStats {
	w.bufferMu.Lock()
	buffered := len(w.buffer)
	w.bufferMu.Unlock()

	w.fileMu.Lock()
	defer w.fileMu.Unlock()

	return WriterStats{
		BufferedEntries: buffered,
		CurrentFileSize: w.currentSize,
	}
}

// WriterStats holds statistics about the writer
type WriterStats struct {
	BufferedEntries int
	CurrentFileSize int64
}
