package cluster

import (
	"context"
	"time"

	"github.com/cuemby/zkbalancer/pkg/log"
	"github.com/cuemby/zkbalancer/pkg/types"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// StateKey is the metric carrying the role a node reports for itself
const StateKey = "zk_server_state"

// Prober queries a single node
type Prober interface {
	Probe(ctx context.Context, endpoint string) (types.Metrics, error)
}

// Aggregator probes every configured node and merges the results
type Aggregator struct {
	prober    Prober
	endpoints []string
	logger    zerolog.Logger
	now       func() time.Time
}

// NewAggregator creates an aggregator over the given endpoints, in order
func NewAggregator(prober Prober, endpoints []string) *Aggregator {
	eps := make([]string, len(endpoints))
	copy(eps, endpoints)
	return &Aggregator{
		prober:    prober,
		endpoints: eps,
		logger:    log.WithComponent("aggregator"),
		now:       time.Now,
	}
}

// Endpoints returns the configured endpoints
func (a *Aggregator) Endpoints() []string {
	eps := make([]string, len(a.endpoints))
	copy(eps, a.endpoints)
	return eps
}

// Status probes all nodes concurrently and waits for every probe to finish.
// A node that cannot be probed is reported as down with the error attached;
// it never fails the aggregation.
func (a *Aggregator) Status(ctx context.Context) types.ClusterStatus {
	nodes := make([]types.NodeStatus, len(a.endpoints))

	var g errgroup.Group
	for i, endpoint := range a.endpoints {
		g.Go(func() error {
			nodes[i] = a.probeNode(ctx, endpoint)
			return nil
		})
	}
	_ = g.Wait()

	status := types.ClusterStatus{
		Nodes:     nodes,
		Timestamp: a.now().UTC(),
	}
	for _, n := range nodes {
		if n.State == types.NodeStateLeader {
			status.Leader = n.Node
			break
		}
	}
	return status
}

func (a *Aggregator) probeNode(ctx context.Context, endpoint string) types.NodeStatus {
	status := types.NodeStatus{
		Node:     types.NodeName(endpoint),
		Endpoint: endpoint,
	}

	metrics, err := a.prober.Probe(ctx, endpoint)
	if err != nil {
		a.logger.Warn().
			Str("endpoint", endpoint).
			Err(err).
			Msg("Node probe failed")
		status.State = types.NodeStateDown
		status.Error = err.Error()
		return status
	}

	status.Metrics = metrics
	status.State = types.NodeStateUnknown
	if v, ok := metrics[StateKey]; ok {
		status.State = types.ParseNodeState(v.String())
	}
	return status
}
