package topology

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/clusterdock/clusterdock/internal/cluster"
	"github.com/clusterdock/clusterdock/internal/domain"
)

const defaultNamespace = "clusterdock"

// Generic starts and builds any topology purely from its definition.
type Generic struct{}

type imageVars struct {
	registry        string
	namespace       string
	operatingSystem string
	topology        string
}

// image resolves a group's image. Definitions may use {registry},
// {namespace}, {operating_system}, {topology} and {group} placeholders.
func (v imageVars) image(def *Definition, group string) string {
	tmpl, ok := def.Images[group]
	if !ok {
		tmpl = "{registry}/{namespace}/{topology}:{group}"
		if v.operatingSystem != "" {
			tmpl += "_{operating_system}"
		}
	}
	ns := v.namespace
	if ns == "" {
		ns = defaultNamespace
	}
	image := strings.NewReplacer(
		"{registry}", v.registry,
		"{namespace}", ns,
		"{operating_system}", v.operatingSystem,
		"{topology}", v.topology,
		"{group}", group,
	).Replace(tmpl)
	return strings.TrimLeft(strings.TrimRight(image, ":_"), "/")
}

func topologyName(def *Definition) string {
	return strings.ToLower(strings.ReplaceAll(def.Name, " ", "_"))
}

func (Generic) Start(ctx context.Context, rt *cluster.Runtime, def *Definition, args StartArgs) (*cluster.Cluster, error) {
	vars := imageVars{
		registry:        args.Registry,
		namespace:       args.Namespace,
		operatingSystem: args.OperatingSystem,
		topology:        topologyName(def),
	}
	requested := args.NodeGroups
	if requested == nil {
		requested = def.NodeGroups
	}

	var groups []*cluster.NodeGroup
	byHost := map[string]*cluster.Node{}
	for _, spec := range requested {
		ports, err := parsePorts(def.Ports[spec.Name])
		if err != nil {
			return nil, fmt.Errorf("group %s: %w", spec.Name, err)
		}
		volumes, err := parseVolumes(def.Volumes[spec.Name])
		if err != nil {
			return nil, fmt.Errorf("group %s: %w", spec.Name, err)
		}
		image := vars.image(def, spec.Name)

		group := cluster.NewNodeGroup(spec.Name)
		for _, hostname := range spec.Nodes {
			node := cluster.NewNode(rt, hostname, spec.Name, image)
			node.Ports = slices.Clone(ports)
			node.Volumes = volumes
			group.Nodes = append(group.Nodes, node)
			byHost[hostname] = node
		}
		if len(group.Nodes) > 0 {
			groups = append(groups, group)
		}
	}

	for _, p := range args.Ports {
		node, ok := byHost[p.Node]
		if !ok {
			return nil, fmt.Errorf("port %s refers to unknown node %s", p.Port, p.Node)
		}
		node.Ports = append(node.Ports, p.Port)
	}

	c, err := cluster.New(rt, args.ClusterName, groups...)
	if err != nil {
		return nil, err
	}
	if err := c.Start(ctx, args.Network); err != nil {
		return c, err
	}

	for _, node := range c.Nodes() {
		rt.Logger.Info().Msgf("Node %s is up at %s (ports %v)", node.FQDN, node.IPAddress, node.HostPorts)
	}
	return c, nil
}

// Build starts one node per group that has build commands, runs them, and
// commits each node to <repository>/<topology>:<group>. Build containers are
// always removed.
func (Generic) Build(ctx context.Context, rt *cluster.Runtime, def *Definition, args BuildArgs) error {
	vars := imageVars{
		registry:        strings.SplitN(args.Repository, "/", 2)[0],
		operatingSystem: args.OperatingSystem,
		topology:        topologyName(def),
	}
	if _, rest, ok := strings.Cut(args.Repository, "/"); ok {
		vars.namespace = rest
	}

	var groups []*cluster.NodeGroup
	for _, spec := range def.NodeGroups {
		if len(def.Build[spec.Name]) == 0 {
			continue
		}
		if _, ok := def.Images[spec.Name]; !ok {
			return fmt.Errorf("group %s has build commands but no base image", spec.Name)
		}
		hostname := "build-" + spec.Name
		node := cluster.NewNode(rt, hostname, spec.Name, vars.image(def, spec.Name))
		groups = append(groups, cluster.NewNodeGroup(spec.Name, node))
	}
	if len(groups) == 0 {
		return fmt.Errorf("topology %s declares no build commands", def.Name)
	}

	c, err := cluster.New(rt, "", groups...)
	if err != nil {
		return err
	}
	defer func() {
		for _, node := range c.Nodes() {
			if node.ContainerID == "" {
				continue
			}
			if err := node.Stop(context.WithoutCancel(ctx), true); err != nil {
				rt.Logger.Warn().Err(err).Msgf("Could not remove build node %s", node.FQDN)
			}
		}
	}()
	if err := c.Start(ctx, args.Network); err != nil {
		return err
	}

	for _, g := range c.Groups {
		node := g.Nodes[0]
		for _, command := range def.Build[g.Name] {
			res, err := node.Execute(ctx, command, cluster.ExecOptions{})
			if err != nil {
				return err
			}
			if res.ExitCode != 0 {
				return fmt.Errorf("build command %q on %s exited with %d", command, node.FQDN, res.ExitCode)
			}
		}
		tag := g.Name
		if args.OperatingSystem != "" {
			tag += "_" + args.OperatingSystem
		}
		repository := strings.TrimSuffix(args.Repository, "/") + "/" + vars.topology
		imageID, err := node.Commit(ctx, repository, tag, args.Push)
		if err != nil {
			return err
		}
		rt.Logger.Info().Msgf("Committed %s:%s (%s)", repository, tag, imageID)
	}
	return nil
}

func parsePorts(specs []string) ([]domain.Port, error) {
	ports := make([]domain.Port, 0, len(specs))
	for _, s := range specs {
		p, err := domain.ParsePort(s)
		if err != nil {
			return nil, err
		}
		ports = append(ports, p)
	}
	return ports, nil
}

func parseVolumes(specs []string) ([]domain.Volume, error) {
	volumes := make([]domain.Volume, 0, len(specs))
	for _, s := range specs {
		v, err := domain.ParseVolume(s)
		if err != nil {
			return nil, err
		}
		volumes = append(volumes, v)
	}
	return volumes, nil
}
