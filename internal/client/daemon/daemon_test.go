package daemon

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fill84/RGPU-sub000/internal/config"
	"github.com/Fill84/RGPU-sub000/internal/gpu"
	"github.com/Fill84/RGPU-sub000/internal/protocol/cuda"
	"github.com/Fill84/RGPU-sub000/internal/server/listener"
	"github.com/Fill84/RGPU-sub000/internal/transport"
	"github.com/Fill84/RGPU-sub000/internal/wire"
)

// startBackend runs a real listener.Server bound to an ephemeral TCP port,
// the same backend the Daemon's Supervisor connects to in production.
func startBackend(t *testing.T, token string) string {
	t.Helper()
	cfg := &config.ServerConfig{Transport: "tcp", ServerID: 1, MaxClients: 8, AcceptedTokens: []string{token}}
	config.ApplyServerDefaults(cfg)
	cfg.AdminListenAddr = ""

	srv := listener.New(cfg, gpu.NewSimulatedCudaDriver(gpu.Discover(nil)), gpu.NewSimulatedVulkanDriver(gpu.Discover(nil)))
	ln, err := transport.ListenTCP("127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = srv.Run(ctx, ln) }()
	return ln.Addr().String()
}

func waitForConnection(t *testing.T, d *Daemon) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if len(d.QueryGpus()) > 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("daemon never connected to backend")
}

func newTestDaemon(t *testing.T, addr, token string) *Daemon {
	t.Helper()
	cfg := &config.ClientConfig{
		Backends:                []config.BackendConfig{{Name: "b1", Address: addr, Transport: "tcp", Token: token}},
		PoolOrdering:            config.PoolOrderingConfigOrder,
		HeartbeatInterval:       30 * time.Millisecond,
		HeartbeatTimeout:        time.Second,
		ReconnectInitialBackoff: 10 * time.Millisecond,
		ReconnectMaxBackoff:     50 * time.Millisecond,
	}
	d := New(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go d.Run(ctx)
	waitForConnection(t, d)
	return d
}

func TestDaemon_QueryGpusReflectsConnectedBackend(t *testing.T) {
	addr := startBackend(t, "tok")
	d := newTestDaemon(t, addr, "tok")

	gpus := d.QueryGpus()
	require.Len(t, gpus, 1)
	assert.Equal(t, uint32(0), gpus[0].LocalOrdinal)
}

func TestDaemon_DispatchCuda_DeviceGetCountAnswersFromPoolWithoutForwarding(t *testing.T) {
	addr := startBackend(t, "tok")
	d := newTestDaemon(t, addr, "tok")

	result, err := d.DispatchCuda(context.Background(), wire.CudaCommand{Opcode: cuda.OpDeviceGetCount})
	require.NoError(t, err)
	assert.Equal(t, wire.ResultScalar, result.Kind)
	assert.EqualValues(t, 1, result.Scalar)
}

func TestDaemon_DispatchCuda_DeviceGetRemapsOrdinalAndForwards(t *testing.T) {
	addr := startBackend(t, "tok")
	d := newTestDaemon(t, addr, "tok")

	args, err := wire.EncodeBody(&cuda.DeviceGetArgs{Ordinal: 0})
	require.NoError(t, err)
	result, err := d.DispatchCuda(context.Background(), wire.CudaCommand{Opcode: cuda.OpDeviceGet, Args: args})
	require.NoError(t, err)
	assert.Equal(t, wire.ResultHandle, result.Kind)
}

func TestDaemon_DispatchCuda_CtxLifecycleRoundTripsThroughRealBackend(t *testing.T) {
	addr := startBackend(t, "tok")
	d := newTestDaemon(t, addr, "tok")
	ctx := context.Background()

	args, err := wire.EncodeBody(&cuda.DeviceGetArgs{Ordinal: 0})
	require.NoError(t, err)
	devResult, err := d.DispatchCuda(ctx, wire.CudaCommand{Opcode: cuda.OpDeviceGet, Args: args})
	require.NoError(t, err)
	require.Equal(t, wire.ResultHandle, devResult.Kind)

	ctxArgs, err := wire.EncodeBody(&cuda.CtxCreateArgs{Device: devResult.Handle})
	require.NoError(t, err)
	ctxResult, err := d.DispatchCuda(ctx, wire.CudaCommand{Opcode: cuda.OpCtxCreate, Args: ctxArgs})
	require.NoError(t, err)
	require.Equal(t, wire.ResultHandle, ctxResult.Kind)

	destroyArgs, err := wire.EncodeBody(&cuda.CtxDestroyArgs{Context: ctxResult.Handle})
	require.NoError(t, err)
	destroyResult, err := d.DispatchCuda(ctx, wire.CudaCommand{Opcode: cuda.OpCtxDestroy, Args: destroyArgs, RoutingHandle: ctxResult.Handle})
	require.NoError(t, err)
	assert.NotEqual(t, wire.ResultError, destroyResult.Kind)
}

func TestDaemon_DispatchCuda_UnreachableBackendReturnsError(t *testing.T) {
	d := New(&config.ClientConfig{
		Backends:     []config.BackendConfig{{Name: "b1", Address: "127.0.0.1:1", Transport: "tcp", Token: "tok"}},
		PoolOrdering: config.PoolOrderingConfigOrder,
	})
	_, err := d.DispatchCuda(context.Background(), wire.CudaCommand{Opcode: cuda.OpCtxCreate})
	assert.Error(t, err)
}
