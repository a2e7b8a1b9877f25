package db

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/curatedly/curatedly-backend/pkg/logger"
)

func newBufferedQueryLogger(slow time.Duration) (gormlogger.Interface, *bytes.Buffer) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Output: &buf})
	return newQueryLogger(logg, slow), &buf
}

func statement() (string, int64) { return "SELECT 1", 1 }

func TestQueryLoggerSkipsFastAndNotFound(t *testing.T) {
	ql, buf := newBufferedQueryLogger(time.Second)

	ql.Trace(context.Background(), time.Now(), statement, nil)
	ql.Trace(context.Background(), time.Now(), statement, gorm.ErrRecordNotFound)

	assert.Zero(t, buf.Len())
}

func TestQueryLoggerReportsSlowAndFailed(t *testing.T) {
	ql, buf := newBufferedQueryLogger(10 * time.Millisecond)

	ql.Trace(context.Background(), time.Now().Add(-time.Second), statement, nil)
	assert.Contains(t, buf.String(), "slow query")
	assert.Contains(t, buf.String(), `"sql":"SELECT 1"`)

	buf.Reset()
	ql.Trace(context.Background(), time.Now(), statement, errors.New("deadlock detected"))
	assert.Contains(t, buf.String(), "query failed")
	assert.Contains(t, buf.String(), "deadlock detected")
}

func TestQueryLoggerWithoutLoggerDiscards(t *testing.T) {
	assert.Equal(t, gormlogger.Discard, newQueryLogger(nil, 0))
}
