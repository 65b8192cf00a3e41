package cluster

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/clusterdock/clusterdock/internal/config"
	"github.com/clusterdock/clusterdock/internal/engine"
	"github.com/clusterdock/clusterdock/internal/registry"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/rs/zerolog"
)

// ClusterLister reports the cluster names already present on the host.
type ClusterLister interface {
	ClusterNames(ctx context.Context) ([]string, error)
}

// Runtime carries the collaborators nodes and clusters need to touch the engine.
type Runtime struct {
	Engine    engine.Engine
	Publisher registry.Publisher
	Inventory ClusterLister
	Logger    zerolog.Logger

	LabelKey string
	// Localtime is bind-mounted read-only at /etc/localtime in every node. Empty skips the mount.
	Localtime    string
	WaitTimeout  time.Duration
	WaitInterval time.Duration
	// AlwaysPull pulls every node image before creating its container.
	AlwaysPull bool
	// Out receives streamed exec output.
	Out io.Writer
}

// NewRuntime builds a Runtime from configuration.
func NewRuntime(eng engine.Engine, pub registry.Publisher, inv ClusterLister, cfg *config.Config, logger zerolog.Logger) *Runtime {
	return &Runtime{
		Engine:       eng,
		Publisher:    pub,
		Inventory:    inv,
		Logger:       logger,
		LabelKey:     cfg.App.LabelKey,
		WaitTimeout:  seconds(cfg.Cluster.WaitTimeout),
		WaitInterval: seconds(cfg.Cluster.WaitInterval),
		Out:          os.Stdout,
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func (rt *Runtime) publisher() registry.Publisher {
	if rt.Publisher == nil {
		return registry.Noop{}
	}
	return rt.Publisher
}

func (rt *Runtime) out() io.Writer {
	if rt.Out == nil {
		return io.Discard
	}
	return rt.Out
}

// createContainer creates a container, pulling its image and retrying once
// when the engine reports it missing.
func (rt *Runtime) createContainer(ctx context.Context, cfg *container.Config, hostCfg *container.HostConfig, netCfg *network.NetworkingConfig) (string, error) {
	id, err := rt.Engine.ContainerCreate(ctx, cfg, hostCfg, netCfg, "")
	if err == nil {
		return id, nil
	}
	if !engine.IsNotFound(err) {
		return "", err
	}
	rt.Logger.Info().Msgf("Could not find %s locally. Attempting to pull ...", cfg.Image)
	if err := rt.Engine.ImagePull(ctx, cfg.Image); err != nil {
		return "", fmt.Errorf("pull %s: %w", cfg.Image, err)
	}
	return rt.Engine.ContainerCreate(ctx, cfg, hostCfg, netCfg, "")
}
