package registry

import (
	"context"

	"github.com/clusterdock/clusterdock/internal/engine/enginetest"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
)

type capturingEngine struct {
	*enginetest.Fake
	onCreate func(cmd, binds []string)
}

func (c *capturingEngine) ContainerCreate(ctx context.Context, cfg *container.Config, hostCfg *container.HostConfig, netCfg *network.NetworkingConfig, name string) (string, error) {
	c.onCreate(cfg.Cmd, hostCfg.Binds)
	return c.Fake.ContainerCreate(ctx, cfg, hostCfg, netCfg, name)
}
