// Package inventory lists the containers on the host and recovers the
// cluster each managed one belongs to from its ownership label.
package inventory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/clusterdock/clusterdock/internal/cluster"
	"github.com/clusterdock/clusterdock/internal/domain"
	"github.com/clusterdock/clusterdock/internal/engine"
	"github.com/clusterdock/clusterdock/internal/label"
	"github.com/clusterdock/clusterdock/internal/util"
	"github.com/docker/docker/api/types/container"
	"github.com/rs/zerolog"
)

// Entry is one container with its decoded ownership, if any.
type Entry struct {
	Container   domain.Container
	ClusterName string
	Label       label.Label
	Managed     bool
}

type Scanner struct {
	engine   engine.Engine
	labelKey string
	logger   zerolog.Logger
}

func NewScanner(eng engine.Engine, labelKey string, logger zerolog.Logger) *Scanner {
	return &Scanner{engine: eng, labelKey: labelKey, logger: logger}
}

// Containers returns every container on the host, running or not. With
// managedOnly set, containers without a readable ownership label are skipped.
func (s *Scanner) Containers(ctx context.Context, managedOnly bool) ([]Entry, error) {
	summaries, err := s.engine.ContainerList(ctx)
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}

	var entries []Entry
	for _, summary := range summaries {
		info, err := s.engine.ContainerInspect(ctx, summary.ID)
		if err != nil {
			if engine.IsNotFound(err) {
				s.logger.Debug().Msgf("[inventory] Container %s disappeared while scanning", shortID(summary.ID))
				continue
			}
			return nil, err
		}
		c := toContainer(summary, info)

		l, ok, err := label.FromLabels(s.labelKey, c.Labels)
		if err != nil {
			s.logger.Warn().Err(err).Msgf("[inventory] Container %s has an unreadable ownership label", c.Name)
			ok = false
		}
		if managedOnly && !ok {
			continue
		}
		entries = append(entries, Entry{
			Container:   c,
			ClusterName: l.ClusterName,
			Label:       l,
			Managed:     ok,
		})
	}
	return entries, nil
}

// ClusterNames returns the distinct cluster names of managed containers, sorted.
func (s *Scanner) ClusterNames(ctx context.Context) ([]string, error) {
	entries, err := s.Containers(ctx, true)
	if err != nil {
		return nil, err
	}
	names := util.Unique(util.Map(entries, func(e Entry) string { return e.ClusterName }))
	sort.Strings(names)
	return names, nil
}

// FindByHostname returns the first running container whose configured
// hostname is hostname, or whose hostname's first label is.
func (s *Scanner) FindByHostname(ctx context.Context, hostname string) (domain.Container, error) {
	entries, err := s.Containers(ctx, false)
	if err != nil {
		return domain.Container{}, err
	}
	for _, e := range entries {
		c := e.Container
		if !c.Running || c.Hostname == "" {
			continue
		}
		if c.Hostname == hostname || domain.ShortName(c.Hostname) == hostname {
			return c, nil
		}
	}
	return domain.Container{}, cluster.NewNodeNotFoundError(hostname)
}

func toContainer(summary container.Summary, info container.InspectResponse) domain.Container {
	c := domain.Container{
		ID:      summary.ID,
		ShortID: shortID(summary.ID),
		Image:   summary.Image,
		Status:  summary.State,
		Labels:  summary.Labels,
	}
	if len(summary.Names) > 0 {
		c.Name = strings.TrimPrefix(summary.Names[0], "/")
	}
	if info.Config != nil {
		c.Hostname = info.Config.Hostname
		if c.Labels == nil {
			c.Labels = info.Config.Labels
		}
		if c.Image == "" {
			c.Image = info.Config.Image
		}
	}
	if info.ContainerJSONBase != nil && info.State != nil {
		c.Running = info.State.Running
		c.Status = info.State.Status
	}
	if info.NetworkSettings != nil {
		for name := range info.NetworkSettings.Networks {
			c.Networks = append(c.Networks, name)
		}
		sort.Strings(c.Networks)
		for port, bindings := range info.NetworkSettings.Ports {
			for _, b := range bindings {
				c.Ports = append(c.Ports, domain.PortBinding{HostPort: b.HostPort, ContainerPort: port.Port()})
			}
		}
		sort.Slice(c.Ports, func(i, j int) bool { return c.Ports[i].ContainerPort < c.Ports[j].ContainerPort })
	}
	return c
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
