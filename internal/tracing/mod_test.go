package tracing

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetTracerForAddr(t *testing.T) {
	t.Setenv("JAEGER_DISABLED", "true")

	tracer, err := GetTracerForAddr("miner0")
	require.NoError(t, err)
	require.NotNil(t, tracer)

	same, err := GetTracerForAddr("miner0")
	require.NoError(t, err)
	require.Equal(t, tracer, same)

	_, err = GetTracerForAddr("miner1")
	require.NoError(t, err)
	require.Len(t, catalog.tracerByAddr, 2)

	require.NoError(t, CloseAll())
	require.Len(t, catalog.tracerByAddr, 0)
}

func TestGetTracerForAddr_BadEnv(t *testing.T) {
	t.Setenv("JAEGER_DISABLED", "not a boolean")

	_, err := GetTracerForAddr("miner2")
	require.Error(t, err)
}
