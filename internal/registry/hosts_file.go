package registry

import (
	"context"
	"fmt"
	"regexp"

	"github.com/clusterdock/clusterdock/internal/domain"
	"github.com/clusterdock/clusterdock/internal/engine"
	"github.com/docker/docker/api/types/container"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const hostsMarker = "# clusterdock"

// HostsFile edits the host's hosts file from inside a throwaway helper
// container that has the file bind-mounted, so no local root is needed.
type HostsFile struct {
	engine engine.Engine
	image  string
	path   string
	logger zerolog.Logger
}

func NewHostsFile(eng engine.Engine, helperImage, path string, logger zerolog.Logger) *HostsFile {
	return &HostsFile{engine: eng, image: helperImage, path: path, logger: logger}
}

// Add appends "ip fqdn  # clusterdock".
func (h *HostsFile) Add(ctx context.Context, rec domain.Record) error {
	h.logger.Debug().Msgf("Adding %s to %s ...", rec.Name, h.path)
	script := fmt.Sprintf(`echo "%s %s  %s" >> /etc/hosts`, rec.Value, rec.Name, hostsMarker)
	return h.run(ctx, script)
}

// Remove drops every clusterdock line for fqdn.
func (h *HostsFile) Remove(ctx context.Context, fqdn string) error {
	h.logger.Debug().Msgf("Removing %s from %s ...", fqdn, h.path)
	pattern := fmt.Sprintf("/ %s  %s$/d", regexp.QuoteMeta(fqdn), hostsMarker)
	script := fmt.Sprintf(`echo "$(sed '%s' /etc/hosts)" > /etc/hosts`, pattern)
	return h.run(ctx, script)
}

func (h *HostsFile) run(ctx context.Context, script string) error {
	cfg := &container.Config{
		Image: h.image,
		Cmd:   []string{"/bin/sh", "-c", script},
	}
	hostCfg := &container.HostConfig{
		Binds: []string{domain.BindMount{Host: h.path, Container: "/etc/hosts"}.Bind()},
	}
	name := "clusterdock_hosts_" + uuid.NewString()[:8]

	id, err := h.engine.ContainerCreate(ctx, cfg, hostCfg, nil, name)
	if engine.IsNotFound(err) {
		h.logger.Info().Msgf("Could not find %s locally. Attempting to pull ...", h.image)
		if err := h.engine.ImagePull(ctx, h.image); err != nil {
			return fmt.Errorf("pull %s: %w", h.image, err)
		}
		id, err = h.engine.ContainerCreate(ctx, cfg, hostCfg, nil, name)
	}
	if err != nil {
		return fmt.Errorf("create hosts helper: %w", err)
	}
	defer func() {
		if err := h.engine.ContainerRemove(context.WithoutCancel(ctx), id, true); err != nil {
			h.logger.Warn().Err(err).Msgf("Could not remove hosts helper %s", name)
		}
	}()

	if err := h.engine.ContainerStart(ctx, id); err != nil {
		return fmt.Errorf("start hosts helper: %w", err)
	}
	code, err := h.engine.ContainerWait(ctx, id)
	if err != nil {
		return fmt.Errorf("wait for hosts helper: %w", err)
	}
	if code != 0 {
		return fmt.Errorf("hosts helper exited with status %d", code)
	}
	return nil
}
