package prodrt

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	goakt "github.com/tochemey/goakt/v3/actor"
	"github.com/tochemey/goakt/v3/discovery/static"
	"github.com/tochemey/goakt/v3/goaktpb"
	"github.com/tochemey/goakt/v3/remote"

	"github.com/microsoft/coyote-sub017/internal/rtlog"
)

// ClusterConfig names a node's place in a statically-discovered goakt
// cluster, grounded on pkg/config.ClusteringConfig's "static" mode.
type ClusterConfig struct {
	NodeHost     string
	GossipPort   int
	PeersPort    int
	RemotingPort int
	StaticHosts  []string
}

// System hosts production actors under a real goakt.ActorSystem, built
// with one spawn call per runtime/examples scenario instead of one
// scheduled iteration per test run.
type System struct {
	goakt.ActorSystem
	registry *Registry
	logger   *rtlog.Logger
}

// New builds a System. A nil cluster runs single-node; a non-nil one joins
// a statically-discovered cluster the way pkg/server.NewMcpServer does for
// config.ClusteringTypeStatic.
func New(ctx context.Context, name string, registry *Registry, logger *rtlog.Logger, cluster *ClusterConfig) (*System, error) {
	if logger == nil {
		logger = rtlog.Default
	}

	opts := []goakt.Option{
		goakt.WithLogger(logger),
		goakt.WithPassivationDisabled(),
	}

	if cluster != nil {
		if len(cluster.StaticHosts) == 0 {
			return nil, fmt.Errorf("prodrt: static cluster mode requires at least one host")
		}
		disco := static.NewDiscovery(&static.Config{Hosts: cluster.StaticHosts})
		clusterCfg := goakt.NewClusterConfig().
			WithDiscovery(disco).
			WithPartitionCount(19).
			WithDiscoveryPort(cluster.GossipPort).
			WithPeersPort(cluster.PeersPort)
		opts = append(opts,
			goakt.WithCluster(clusterCfg),
			goakt.WithRemote(remote.NewConfig(cluster.NodeHost, cluster.RemotingPort)),
		)
	}

	sys, err := goakt.NewActorSystem(name, opts...)
	if err != nil {
		return nil, fmt.Errorf("prodrt: new actor system: %w", err)
	}
	if err := sys.Start(ctx); err != nil {
		return nil, fmt.Errorf("prodrt: start actor system: %w", err)
	}

	return &System{ActorSystem: sys, registry: registry, logger: logger}, nil
}

// Spawn starts a top-level production actor, adapting impl onto goakt.
func (s *System) Spawn(ctx context.Context, name string, impl Actor) (*goakt.PID, error) {
	return s.ActorSystem.Spawn(ctx, name, &bridge{impl: impl, sys: s.ActorSystem, registry: s.registry, logger: s.logger})
}

// deathWatcher forwards a watched actor's termination onto a Go channel,
// generalized from pkg/actors.DeathWatcher for use outside the MCP
// session lifecycle: any production deployment wants to know when a
// top-level actor it spawned has died.
type deathWatcher struct {
	target        *goakt.PID
	notifications chan *goaktpb.Terminated
}

var _ goakt.Actor = (*deathWatcher)(nil)

// Watch spawns a deathWatcher observing target and returns the channel it
// publishes Terminated notifications on.
func (s *System) Watch(ctx context.Context, target *goakt.PID) (<-chan *goaktpb.Terminated, error) {
	notifications := make(chan *goaktpb.Terminated, 1)
	dw := &deathWatcher{target: target, notifications: notifications}

	pid, err := s.ActorSystem.Spawn(ctx, "death-watcher-"+uuid.NewString(), dw)
	if err != nil {
		return nil, fmt.Errorf("prodrt: spawn death watcher: %w", err)
	}
	target.Watch(pid)
	return notifications, nil
}

func (d *deathWatcher) PreStart(context.Context) error { return nil }

func (d *deathWatcher) Receive(ctx *goakt.ReceiveContext) {
	term, ok := ctx.Message().(*goaktpb.Terminated)
	if !ok {
		return
	}
	if term.GetActorId() != d.target.ID() {
		return
	}
	select {
	case d.notifications <- term:
	default:
	}
	ctx.Shutdown()
}

func (d *deathWatcher) PostStop(context.Context) error { return nil }
