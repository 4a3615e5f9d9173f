package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type tracedRow struct {
	ID   uint
	Name string
}

func openTracedDB(t *testing.T, cfg DBTracingConfig) (*gorm.DB, *tracetest.SpanRecorder) {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		_ = tp.Shutdown(context.Background())
	})

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&tracedRow{}))
	require.NoError(t, RegisterDBTracing(db, cfg, zap.NewNop()))
	return db, sr
}

func TestRegisterDBTracing_Disabled(t *testing.T) {
	db, sr := openTracedDB(t, DBTracingConfig{Enabled: false})

	require.NoError(t, db.WithContext(context.Background()).Create(&tracedRow{Name: "a"}).Error)
	assert.Empty(t, sr.Ended())
}

func TestRegisterDBTracing_RecordsQuerySpans(t *testing.T) {
	db, sr := openTracedDB(t, DBTracingConfig{Enabled: true, DBSystem: "sqlite", SlowQueryThresh: time.Hour})
	ctx := context.Background()

	require.NoError(t, db.WithContext(ctx).Create(&tracedRow{Name: "a"}).Error)

	var row tracedRow
	err := db.WithContext(ctx).Where("name = ?", "missing").First(&row).Error
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	err = db.WithContext(ctx).Exec("SELECT * FROM no_such_table").Error
	assert.Error(t, err)

	spans := sr.Ended()
	require.GreaterOrEqual(t, len(spans), 3)

	var errored int
	for _, s := range spans {
		if s.Status().Code == codes.Error {
			errored++
		}
	}
	assert.Equal(t, 1, errored, "record-not-found must not mark the span failed")
}

func TestAnnotateQuerySpan_NoContext(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	tx := db.Session(&gorm.Session{})
	tx.Statement.Context = nil
	assert.NotPanics(t, func() { annotateQuerySpan(tx, time.Millisecond) })
}
