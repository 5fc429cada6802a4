// internal/logger/writers.go
package logger

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SafeFileWriter provides thread-safe file writing with buffering and periodic flush
type SafeFileWriter struct {
	mu       sync.Mutex
	writer   *bufio.Writer
	file     *os.File
	ticker   *time.Ticker
	done     chan struct{}
	closed   bool
	logger   *zap.Logger
	filePath string

	// Stats
	writtenLines uint64
	flushCount   uint64
}

// NewSafeFileWriter creates a new thread-safe file writer
func NewSafeFileWriter(filePath string, flushInterval time.Duration, logger *zap.Logger) (*SafeFileWriter, error) {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	sfw := &SafeFileWriter{
		writer:   bufio.NewWriter(file),
		file:     file,
		ticker:   time.NewTicker(flushInterval),
		done:     make(chan struct{}),
		logger:   logger,
		filePath: filePath,
	}

	go sfw.periodicFlush()

	return sfw, nil
}

// Write writes data to the file in a thread-safe manner
func (sfw *SafeFileWriter) Write(data []byte) (int, error) {
	sfw.mu.Lock()
	defer sfw.mu.Unlock()

	if sfw.closed {
		return 0, os.ErrClosed
	}
	n, err := sfw.writer.Write(data)
	if err != nil {
		return n, fmt.Errorf("failed to write data: %w", err)
	}

	sfw.writtenLines++
	return n, nil
}

// Sync flushes buffered data; it lets the writer back a zapcore.WriteSyncer.
func (sfw *SafeFileWriter) Sync() error {
	return sfw.Flush()
}

// Flush forces a write of any buffered data
func (sfw *SafeFileWriter) Flush() error {
	sfw.mu.Lock()
	defer sfw.mu.Unlock()

	if sfw.closed {
		return nil
	}
	if err := sfw.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush buffer: %w", err)
	}
	if err := sfw.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync file: %w", err)
	}

	sfw.flushCount++
	return nil
}

func (sfw *SafeFileWriter) periodicFlush() {
	for {
		select {
		case <-sfw.ticker.C:
			if err := sfw.Flush(); err != nil {
				sfw.logger.Error("Periodic flush failed",
					zap.String("file", sfw.filePath),
					zap.Error(err))
			}
		case <-sfw.done:
			return
		}
	}
}

// Close flushes and closes the file. Further writes fail with os.ErrClosed.
func (sfw *SafeFileWriter) Close() error {
	sfw.mu.Lock()
	defer sfw.mu.Unlock()

	if sfw.closed {
		return nil
	}
	sfw.closed = true
	close(sfw.done)
	sfw.ticker.Stop()

	if err := sfw.writer.Flush(); err != nil {
		_ = sfw.file.Close()
		return fmt.Errorf("failed to flush on close: %w", err)
	}
	if err := sfw.file.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}

	sfw.logger.Debug("Safe file writer closed",
		zap.String("file", sfw.filePath),
		zap.Uint64("written_lines", sfw.writtenLines),
		zap.Uint64("flush_count", sfw.flushCount))
	return nil
}

// GetStats returns writer statistics
func (sfw *SafeFileWriter) GetStats() (lines, flushes uint64) {
	sfw.mu.Lock()
	defer sfw.mu.Unlock()
	return sfw.writtenLines, sfw.flushCount
}
