package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSafeFileWriterConcurrentWrites(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "logs", "writer.log")

	writer, err := NewSafeFileWriter(testFile, 50*time.Millisecond, zap.NewNop())
	require.NoError(t, err)

	const (
		numGoroutines     = 10
		linesPerGoroutine = 100
	)
	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()
			for j := 0; j < linesPerGoroutine; j++ {
				_, err := writer.Write([]byte(fmt.Sprintf("goroutine %d line %d\n", id, j)))
				assert.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()

	require.NoError(t, writer.Flush())
	lines, flushes := writer.GetStats()
	assert.Equal(t, uint64(numGoroutines*linesPerGoroutine), lines)
	assert.NotZero(t, flushes)

	require.NoError(t, writer.Close())
	require.NoError(t, writer.Close())

	content, err := os.ReadFile(testFile)
	require.NoError(t, err)
	assert.Equal(t, numGoroutines*linesPerGoroutine, strings.Count(string(content), "\n"))

	_, err = writer.Write([]byte("late\n"))
	assert.ErrorIs(t, err, os.ErrClosed)
}

func TestNewWritesLogFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "curved.log")

	l, err := New(Options{Debug: true, File: logFile})
	require.NoError(t, err)

	l.Named("engine").Debug("Trade executed", zap.String("mint", "So11111111111111111111111111111111111111112"))
	l.Info("Schema migrated")
	_ = l.Sync()

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(content), `"msg":"Trade executed"`)
	assert.Contains(t, string(content), `"logger":"engine"`)
	assert.Contains(t, string(content), `"msg":"Schema migrated"`)
}

func TestNewInfoLevelDropsDebug(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "curved.log")

	l, err := New(Options{Pretty: true, File: logFile})
	require.NoError(t, err)

	l.Debug("quote computed")
	l.Warn("trade rejected")
	_ = l.Sync()

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.NotContains(t, string(content), "quote computed")
	assert.Contains(t, string(content), "trade rejected")
}
