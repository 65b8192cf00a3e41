package main

import (
	"context"

	"github.com/clusterdock/clusterdock/internal/cluster"
	"github.com/clusterdock/clusterdock/internal/manage"
	"github.com/clusterdock/clusterdock/internal/topology"
)

type application interface {
	Start(ctx context.Context, def *topology.Definition, args topology.StartArgs) (*cluster.Cluster, error)
	Build(ctx context.Context, def *topology.Definition, args topology.BuildArgs) error
	Nuke(ctx context.Context, dryRun, all bool) (manage.Report, error)
	Remove(ctx context.Context, dryRun bool, clusters []string, removeNetworks bool) (manage.Report, error)
	Ps(ctx context.Context) error
	Copy(ctx context.Context, source, destination string) error
	SSH(ctx context.Context, node string) (int, error)
	Close() error
}
