package cluster

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/clusterdock/clusterdock/internal/domain"
	"github.com/clusterdock/clusterdock/internal/engine"
	"github.com/clusterdock/clusterdock/internal/label"
)

var ErrNoNodes = errors.New("cluster has no nodes")

// Cluster is a named set of node groups sharing one network.
type Cluster struct {
	Name    string
	Network string
	Groups  []*NodeGroup

	named bool
	rt    *Runtime
}

// New builds a cluster. An empty name gets a generated one; explicit names
// are checked against the host when the cluster starts.
func New(rt *Runtime, name string, groups ...*NodeGroup) (*Cluster, error) {
	c := &Cluster{Name: name, Groups: groups, named: name != "", rt: rt}
	if !c.named {
		c.Name = GenerateName()
	}

	nodes := c.Nodes()
	if len(nodes) == 0 {
		return nil, ErrNoNodes
	}
	seen := map[string]bool{}
	var dups []string
	for _, node := range nodes {
		if !domain.ValidHostname(node.Hostname) {
			return nil, fmt.Errorf("invalid hostname %q", node.Hostname)
		}
		if seen[node.Hostname] && !slices.Contains(dups, node.Hostname) {
			dups = append(dups, node.Hostname)
		}
		seen[node.Hostname] = true
	}
	if len(dups) > 0 {
		return nil, NewDuplicateHostnamesError(dups, "")
	}
	return c, nil
}

// Nodes flattens the groups in group order, then member order.
func (c *Cluster) Nodes() []*Node {
	var nodes []*Node
	for _, g := range c.Groups {
		nodes = append(nodes, g.Nodes...)
	}
	return nodes
}

// Group returns the named group, or nil.
func (c *Cluster) Group(name string) *NodeGroup {
	for _, g := range c.Groups {
		if g.Name == name {
			return g
		}
	}
	return nil
}

// Start acquires the network, rejects hostname collisions on it and starts
// every node in order. Nodes started before a failure are left running.
func (c *Cluster) Start(ctx context.Context, networkName string) error {
	rt := c.rt
	rt.Logger.Info().Msgf("Starting cluster (%s) on network (%s) ...", c.Name, networkName)

	if c.named && rt.Inventory != nil {
		existing, err := rt.Inventory.ClusterNames(ctx)
		if err != nil {
			return err
		}
		if slices.Contains(existing, c.Name) {
			return NewDuplicateClusterNameError(c.Name, existing)
		}
	}

	if err := c.setupNetwork(ctx, networkName); err != nil {
		return err
	}
	if err := c.checkAliases(ctx, networkName); err != nil {
		return err
	}

	c.Network = networkName
	for _, node := range c.Nodes() {
		if err := node.Start(ctx, networkName, c.Name); err != nil {
			return fmt.Errorf("start node %s: %w", node.Hostname, err)
		}
	}
	return nil
}

func (c *Cluster) setupNetwork(ctx context.Context, name string) error {
	labels, err := label.Labels(c.rt.LabelKey, label.New(c.Name))
	if err != nil {
		return err
	}
	_, err = c.rt.Engine.NetworkCreate(ctx, name, labels)
	switch {
	case err == nil:
		c.rt.Logger.Debug().Msgf("Successfully created network (%s).", name)
	case engine.IsAlreadyExists(err):
		c.rt.Logger.Warn().Msgf("Network (%s) already exists. Continuing without creating ...", name)
	default:
		return fmt.Errorf("create network %s: %w", name, err)
	}
	return nil
}

// checkAliases fails when a node hostname is already an alias on the network.
func (c *Cluster) checkAliases(ctx context.Context, name string) error {
	info, err := c.rt.Engine.NetworkInspect(ctx, name)
	if err != nil {
		return fmt.Errorf("inspect network %s: %w", name, err)
	}
	if len(info.Containers) == 0 {
		return nil
	}

	attached := map[string]bool{}
	for id := range info.Containers {
		ci, err := c.rt.Engine.ContainerInspect(ctx, id)
		if err != nil {
			if engine.IsNotFound(err) {
				continue
			}
			return err
		}
		if ci.NetworkSettings == nil {
			continue
		}
		ep, ok := ci.NetworkSettings.Networks[name]
		if !ok || ep == nil || len(ep.Aliases) == 0 {
			continue
		}
		for _, alias := range ep.Aliases {
			attached[alias] = true
		}
		c.rt.Logger.Debug().Msgf("Network (%s) has container %s attached with alias %s", name, shortID(id), ep.Aliases[0])
	}

	var dups []string
	for _, node := range c.Nodes() {
		if attached[node.Hostname] {
			dups = append(dups, node.Hostname)
		}
	}
	if len(dups) > 0 {
		return NewDuplicateHostnamesError(dups, name)
	}
	return nil
}

// Execute runs command on every node of the cluster in order.
func (c *Cluster) Execute(ctx context.Context, command string, opts ExecOptions) ([]NodeResult, error) {
	return execute(ctx, c.Nodes(), command, opts)
}
