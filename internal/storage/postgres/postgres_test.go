package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestGormLogger_Trace(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := newGormLogger(zap.New(core))
	ctx := context.Background()
	stmt := func() (string, int64) { return "SELECT 1", 1 }

	l.Trace(ctx, time.Now(), stmt, nil)
	assert.Equal(t, 0, logs.Len(), "fast queries are quiet at warn level")

	l.Trace(ctx, time.Now(), stmt, gorm.ErrRecordNotFound)
	assert.Equal(t, 0, logs.Len(), "not found is not an error")

	l.Trace(ctx, time.Now(), stmt, errors.New("boom"))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "Query failed", logs.All()[0].Message)

	l.Trace(ctx, time.Now().Add(-time.Second), stmt, nil)
	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "Slow query", logs.All()[1].Message)

	l.LogMode(logger.Info).Trace(ctx, time.Now(), stmt, nil)
	assert.Equal(t, 3, logs.Len())

	l.LogMode(logger.Silent).Trace(ctx, time.Now(), stmt, errors.New("boom"))
	assert.Equal(t, 3, logs.Len())
}

func TestNewStorage_Unreachable(t *testing.T) {
	_, err := NewStorage("postgres://bond@127.0.0.1:1/bond?sslmode=disable&connect_timeout=1", zaptest.NewLogger(t))
	assert.Error(t, err)
}
