package cluster

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cuemby/zkbalancer/pkg/health"
	"github.com/cuemby/zkbalancer/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProber struct {
	mu      sync.Mutex
	results map[string]types.Metrics
	errs    map[string]error
	delay   time.Duration
	calls   atomic.Int32
}

func (f *fakeProber) Probe(ctx context.Context, endpoint string) (types.Metrics, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.errs[endpoint]; ok {
		return nil, err
	}
	return f.results[endpoint], nil
}

func stateMetrics(state string) types.Metrics {
	return types.Metrics{
		StateKey:                   types.StringValue(state),
		"zk_num_alive_connections": types.IntValue(2),
	}
}

func TestStatusMergesAllNodes(t *testing.T) {
	prober := &fakeProber{
		results: map[string]types.Metrics{
			"zk1:2181": stateMetrics("follower"),
			"zk2:2181": stateMetrics("LEADER"),
		},
		errs: map[string]error{
			"zk3:2181": &health.UnreachableError{Endpoint: "zk3:2181", Attempts: 3, Err: errors.New("connection refused")},
		},
	}

	agg := NewAggregator(prober, []string{"zk1:2181", "zk2:2181", "zk3:2181"})
	status := agg.Status(context.Background())

	require.Len(t, status.Nodes, 3)
	assert.Equal(t, "zk2", status.Leader)
	assert.False(t, status.Timestamp.IsZero())

	assert.Equal(t, "zk1", status.Nodes[0].Node)
	assert.Equal(t, types.NodeStateFollower, status.Nodes[0].State)
	assert.Equal(t, types.NodeStateLeader, status.Nodes[1].State)

	down := status.Nodes[2]
	assert.Equal(t, "zk3", down.Node)
	assert.Equal(t, "zk3:2181", down.Endpoint)
	assert.Equal(t, types.NodeStateDown, down.State)
	assert.Contains(t, down.Error, "connection refused")
	assert.Nil(t, down.Metrics)
}

func TestStatusWithoutLeader(t *testing.T) {
	prober := &fakeProber{
		results: map[string]types.Metrics{
			"zk1:2181": stateMetrics("standalone"),
			"zk2:2181": {},
		},
	}

	status := NewAggregator(prober, []string{"zk1:2181", "zk2:2181"}).Status(context.Background())

	assert.Empty(t, status.Leader)
	assert.Equal(t, types.NodeStateStandalone, status.Nodes[0].State)
	assert.Equal(t, types.NodeStateUnknown, status.Nodes[1].State, "missing server state")
}

func TestStatusAllDown(t *testing.T) {
	prober := &fakeProber{
		errs: map[string]error{
			"zk1:2181": health.ErrProbeUnreachable,
			"zk2:2181": health.ErrProbeUnreachable,
		},
	}

	status := NewAggregator(prober, []string{"zk1:2181", "zk2:2181"}).Status(context.Background())

	require.Len(t, status.Nodes, 2)
	for _, n := range status.Nodes {
		assert.Equal(t, types.NodeStateDown, n.State)
		assert.NotEmpty(t, n.Error)
	}
	assert.Empty(t, status.Leader)
}

func TestStatusProbesConcurrently(t *testing.T) {
	endpoints := []string{"a:1", "b:1", "c:1", "d:1"}
	prober := &fakeProber{
		results: map[string]types.Metrics{},
		delay:   100 * time.Millisecond,
	}

	start := time.Now()
	status := NewAggregator(prober, endpoints).Status(context.Background())
	elapsed := time.Since(start)

	assert.Equal(t, int32(len(endpoints)), prober.calls.Load())
	assert.Len(t, status.Nodes, len(endpoints))
	assert.Less(t, elapsed, 350*time.Millisecond)
}

func TestEndpointsIsACopy(t *testing.T) {
	in := []string{"zk1:2181"}
	agg := NewAggregator(&fakeProber{}, in)
	in[0] = "mutated:1"

	eps := agg.Endpoints()
	assert.Equal(t, []string{"zk1:2181"}, eps)
	eps[0] = "mutated:2"
	assert.Equal(t, []string{"zk1:2181"}, agg.Endpoints())
}
