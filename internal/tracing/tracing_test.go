// ABOUTME: Tests for tracer provider setup
// ABOUTME: Exporting is not exercised; only configuration paths are
package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_NoEndpointIsNoop(t *testing.T) {
	shutdown, err := Setup(context.Background(), "", "test")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestExporterOptions(t *testing.T) {
	opts, err := exporterOptions("localhost:4318")
	require.NoError(t, err)
	assert.Len(t, opts, 2)

	opts, err = exporterOptions("https://collector.example.com/v1/traces")
	require.NoError(t, err)
	assert.Len(t, opts, 1)

	_, err = exporterOptions("http://")
	assert.Error(t, err)
}

func TestSetup_WithEndpoint(t *testing.T) {
	// the exporter connects lazily, so setup succeeds without a collector
	shutdown, err := Setup(context.Background(), "localhost:4318", "test")
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	_ = shutdown(context.Background())
}
