package util

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitTracerLogsThroughZap(t *testing.T) {
	previous := logger
	core, logs := observer.New(zap.InfoLevel)
	logger = zap.New(core)
	t.Cleanup(func() { logger = previous })

	tp, err := InitTracer("storefront-test", "http://localhost:14268/api/traces")
	require.NoError(t, err)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	entries := logs.FilterMessage("Tracer initialized").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "storefront-test", entries[0].ContextMap()["service_name"])

	_, span := StartSpan(context.Background(), "test-span")
	span.End()
}
