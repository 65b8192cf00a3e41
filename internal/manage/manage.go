// Package manage tears down clusters: it removes selected containers and the
// networks they leave unused.
package manage

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"github.com/clusterdock/clusterdock/internal/engine"
	"github.com/clusterdock/clusterdock/internal/inventory"
	"github.com/clusterdock/clusterdock/internal/registry"
	"github.com/clusterdock/clusterdock/internal/util"
	"github.com/rs/zerolog"
)

// ContainerLister is the part of the inventory scanner teardown needs.
type ContainerLister interface {
	Containers(ctx context.Context, managedOnly bool) ([]inventory.Entry, error)
}

// Report lists what a teardown selected and which networks it removed.
type Report struct {
	// Containers are the names of the selected containers.
	Containers []string
	// CandidateNetworks are the networks removal was attempted on.
	CandidateNetworks []string
	// Networks are the networks actually removed. Always empty in dry-run mode.
	Networks []string
}

type Manager struct {
	engine    engine.Engine
	lister    ContainerLister
	publisher registry.Publisher
	dryRun    bool
	logger    zerolog.Logger
}

func NewManager(eng engine.Engine, lister ContainerLister, pub registry.Publisher, dryRun bool, logger zerolog.Logger) *Manager {
	if pub == nil {
		pub = registry.Noop{}
	}
	return &Manager{engine: eng, lister: lister, publisher: pub, dryRun: dryRun, logger: logger}
}

func (m *Manager) DryRun() bool {
	return m.dryRun
}

// Nuke removes every managed container, or every container when all is set,
// then tries to remove every network on the host.
func (m *Manager) Nuke(ctx context.Context, all bool) (Report, error) {
	m.warnDryRun()
	scope := "clusterdock"
	if all {
		scope = "all"
	}
	m.logger.Info().Msgf("Stopping and removing %s containers ...", scope)

	entries, err := m.lister.Containers(ctx, !all)
	if err != nil {
		return Report{}, err
	}
	report, _, err := m.removeContainers(ctx, entries)
	if err != nil {
		return report, err
	}

	networks, err := m.engine.NetworkList(ctx)
	if err != nil {
		return report, fmt.Errorf("list networks: %w", err)
	}
	for _, n := range networks {
		report.CandidateNetworks = append(report.CandidateNetworks, n.Name)
	}
	return m.removeNetworks(ctx, report)
}

// Remove removes the containers of the named clusters. With removeNetworks
// set, networks those containers were attached to are removed when nothing
// else still uses them.
func (m *Manager) Remove(ctx context.Context, clusters []string, removeNetworks bool) (Report, error) {
	m.warnDryRun()
	m.logger.Info().Msgf("Stopping and removing containers from cluster(s) %v ...", clusters)

	entries, err := m.lister.Containers(ctx, true)
	if err != nil {
		return Report{}, err
	}
	selected := util.Filter(entries, func(e inventory.Entry) bool {
		return slices.Contains(clusters, e.ClusterName)
	})
	report, attached, err := m.removeContainers(ctx, selected)
	if err != nil {
		return report, err
	}
	if !removeNetworks {
		return report, nil
	}
	report.CandidateNetworks = attached
	return m.removeNetworks(ctx, report)
}

func (m *Manager) warnDryRun() {
	if m.dryRun {
		m.logger.Warn().Msg("All manage actions will be done in dry-run mode.")
	}
}

// removeContainers returns the report so far and the sorted networks the
// selected containers were attached to.
func (m *Manager) removeContainers(ctx context.Context, entries []inventory.Entry) (Report, []string, error) {
	var report Report
	var attached []string
	for _, e := range entries {
		c := e.Container
		attached = append(attached, c.Networks...)
		report.Containers = append(report.Containers, c.Name)

		m.logger.Debug().Msgf("Removing container %s (id: %s, cluster: %s) ...", c.Hostname, c.ShortID, e.ClusterName)
		if m.dryRun {
			continue
		}
		if c.Hostname != "" {
			if err := m.publisher.Remove(ctx, c.Hostname); err != nil {
				m.logger.Warn().Err(err).Msgf("Could not unpublish %s", c.Hostname)
			}
		}
		if err := m.engine.ContainerRemove(ctx, c.ID, true); err != nil {
			return report, nil, fmt.Errorf("remove container %s: %w", c.Name, err)
		}
	}

	if len(report.Containers) == 0 {
		m.logger.Warn().Msg("Didn't find any containers to remove. Continuing ...")
	}

	attached = util.Unique(attached)
	sort.Strings(attached)
	return report, attached, nil
}

// removeNetworks tries every candidate network and tolerates the two refusals
// that mean "not ours to remove": built-in networks and networks still in use.
func (m *Manager) removeNetworks(ctx context.Context, report Report) (Report, error) {
	for _, name := range report.CandidateNetworks {
		m.logger.Debug().Msgf("Removing network %s ...", name)
		if m.dryRun {
			continue
		}
		err := m.engine.NetworkRemove(ctx, name)
		switch {
		case err == nil:
			report.Networks = append(report.Networks, name)
		case engine.IsPredefinedNetwork(err), engine.IsHasActiveEndpoints(err):
			m.logger.Debug().Msgf("Keeping network %s: %v", name, err)
		default:
			return report, fmt.Errorf("remove network %s: %w", name, err)
		}
	}

	if len(report.Networks) > 0 {
		m.logger.Info().Msg("Removed user-defined networks ...")
		for _, name := range report.Networks {
			m.logger.Debug().Msgf("Removed network %s ...", name)
		}
	} else if !m.dryRun {
		m.logger.Warn().Msg("Didn't remove any networks. None were user-defined and unused. Continuing ...")
	}
	return report, nil
}
