package cluster

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/clusterdock/clusterdock/internal/domain"
	"github.com/clusterdock/clusterdock/internal/engine"
	"github.com/clusterdock/clusterdock/internal/label"
	"github.com/clusterdock/clusterdock/internal/registry"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/go-connections/nat"
)

const (
	defaultShell    = "/bin/sh"
	defaultExecUser = "root"
	localtimeTarget = "/etc/localtime"
)

// CreateOptions are extra engine creation options for a node. Binds, CapAdd
// and SecurityOpt are added to the baseline; everything else overrides it.
type CreateOptions struct {
	Env         []string
	Cmd         []string
	Entrypoint  []string
	User        string
	WorkingDir  string
	Privileged  bool
	Labels      map[string]string
	Binds       []string
	CapAdd      []string
	SecurityOpt []string
}

// Node is one cluster host realized as a container. FQDN, ContainerID,
// IPAddress and HostPorts are only set once Start returns.
type Node struct {
	Hostname string
	Group    string
	Image    string
	Ports    []domain.Port
	Volumes  []domain.Volume
	Devices  []string
	Options  CreateOptions

	FQDN        string
	ContainerID string
	IPAddress   string
	// HostPorts maps container port to host port.
	HostPorts map[int]int

	Shell string

	rt *Runtime
}

func NewNode(rt *Runtime, hostname, group, image string) *Node {
	return &Node{
		Hostname: hostname,
		Group:    group,
		Image:    image,
		Shell:    defaultShell,
		rt:       rt,
	}
}

// ExecOptions controls Node.Execute. An empty User runs as root.
type ExecOptions struct {
	User   string
	Quiet  bool
	Detach bool
}

type ExecResult struct {
	ExitCode int
	Output   string
}

// Start creates and starts the node's container on networkName and waits
// until it runs. Calling it twice creates two containers.
func (n *Node) Start(ctx context.Context, networkName, clusterName string) error {
	rt := n.rt
	fqdn := n.Hostname + "." + networkName

	cfg, hostCfg, err := n.containerConfig(ctx, fqdn, clusterName)
	if err != nil {
		return err
	}
	netCfg := &network.NetworkingConfig{
		EndpointsConfig: map[string]*network.EndpointSettings{
			networkName: {Aliases: []string{n.Hostname}},
		},
	}

	if rt.AlwaysPull {
		rt.Logger.Info().Msgf("Pulling image %s ...", n.Image)
		if err := rt.Engine.ImagePull(ctx, n.Image); err != nil {
			return fmt.Errorf("pull %s: %w", n.Image, err)
		}
	}

	rt.Logger.Info().Msgf("Starting node %s ...", fqdn)
	id, err := rt.createContainer(ctx, cfg, hostCfg, netCfg)
	if err != nil {
		return fmt.Errorf("create container for %s: %w", fqdn, err)
	}
	n.FQDN = fqdn
	n.ContainerID = id
	if err := rt.Engine.ContainerStart(ctx, id); err != nil {
		return fmt.Errorf("start container for %s: %w", fqdn, err)
	}

	running := func(ctx context.Context) (bool, error) {
		info, err := rt.Engine.ContainerInspect(ctx, id)
		if err != nil {
			return false, err
		}
		outcome := info.ContainerJSONBase != nil && info.State != nil && info.State.Running
		rt.Logger.Debug().Msgf("Container running state evaluated to %t.", outcome)
		return outcome, nil
	}
	err = WaitForCondition(ctx, "container "+shortID(id)+" to reach running state", running,
		rt.WaitInterval, rt.WaitTimeout,
		func(elapsed time.Duration) {
			rt.Logger.Debug().Msgf("Container reached running state after %.3f seconds.", elapsed.Seconds())
		},
		func(timeout time.Duration) {
			rt.Logger.Debug().Msgf("Timed out after %s waiting for container to reach running state.", timeout)
		})
	if err != nil {
		return err
	}

	rt.Logger.Debug().Msgf("Reloading attributes for container (%s) ...", shortID(id))
	info, err := rt.Engine.ContainerInspect(ctx, id)
	if err != nil {
		return err
	}

	n.IPAddress = ""
	n.HostPorts = map[int]int{}
	if info.NetworkSettings != nil {
		if ep, ok := info.NetworkSettings.Networks[networkName]; ok && ep != nil {
			n.IPAddress = ep.IPAddress
		}
		n.HostPorts = hostPorts(info.NetworkSettings.Ports)
	}
	if len(n.HostPorts) > 0 {
		rt.Logger.Debug().Msgf("Created host port mapping (%s) for node (%s).", renderHostPorts(n.HostPorts), n.Hostname)
	}

	return n.publish(ctx)
}

// publish adds the node's address to the configured publisher. Names that are
// not valid DNS names are left unpublished.
func (n *Node) publish(ctx context.Context) error {
	pub := n.rt.publisher()
	if _, noop := pub.(registry.Noop); noop || n.IPAddress == "" {
		return nil
	}
	rec, err := domain.NewA(n.FQDN, n.IPAddress)
	if err != nil {
		n.rt.Logger.Warn().Err(err).Msgf("Not publishing %s", n.FQDN)
		return nil
	}
	if err := pub.Add(ctx, rec); err != nil {
		return fmt.Errorf("publish %s: %w", n.FQDN, err)
	}
	return nil
}

func (n *Node) containerConfig(ctx context.Context, fqdn, clusterName string) (*container.Config, *container.HostConfig, error) {
	rt := n.rt
	opts := n.Options

	labels := map[string]string{}
	for k, v := range opts.Labels {
		labels[k] = v
	}
	owned, err := label.Labels(rt.LabelKey, label.New(clusterName))
	if err != nil {
		return nil, nil, err
	}
	for k, v := range owned {
		labels[k] = v
	}

	cfg := &container.Config{
		Image:      n.Image,
		Hostname:   fqdn,
		Env:        opts.Env,
		Cmd:        opts.Cmd,
		Entrypoint: opts.Entrypoint,
		User:       opts.User,
		WorkingDir: opts.WorkingDir,
		Labels:     labels,
	}
	hostCfg := &container.HostConfig{
		CapAdd:      append([]string{"ALL"}, opts.CapAdd...),
		SecurityOpt: append([]string{"seccomp=unconfined"}, opts.SecurityOpt...),
		Privileged:  opts.Privileged,
	}
	if rt.Localtime != "" {
		hostCfg.Binds = append(hostCfg.Binds, domain.BindMount{Host: rt.Localtime, Container: localtimeTarget, ReadOnly: true}.Bind())
	}
	hostCfg.Binds = append(hostCfg.Binds, opts.Binds...)

	for _, v := range n.Volumes {
		switch v := v.(type) {
		case domain.BindMount:
			rt.Logger.Debug().Msgf("Adding volume (%s) to container config ...", v)
			hostCfg.Binds = append(hostCfg.Binds, v.Bind())
		case domain.ImageVolumes:
			id, err := rt.createContainer(ctx, &container.Config{Image: v.Image}, nil, nil)
			if err != nil {
				return nil, nil, fmt.Errorf("create volume source from %s: %w", v.Image, err)
			}
			hostCfg.VolumesFrom = append(hostCfg.VolumesFrom, id)
		}
	}

	if len(n.Ports) > 0 {
		cfg.ExposedPorts = nat.PortSet{}
		hostCfg.PortBindings = nat.PortMap{}
		for _, p := range n.Ports {
			port, err := nat.NewPort("tcp", strconv.Itoa(p.ContainerPort()))
			if err != nil {
				return nil, nil, err
			}
			binding := nat.PortBinding{}
			if fixed, ok := p.(domain.FixedPort); ok {
				rt.Logger.Debug().Msgf("Adding binding from host port %d to container port %d ...", fixed.Host, fixed.Container)
				binding.HostPort = strconv.Itoa(fixed.Host)
			}
			cfg.ExposedPorts[port] = struct{}{}
			hostCfg.PortBindings[port] = []nat.PortBinding{binding}
		}
	}

	for _, d := range n.Devices {
		mapping, err := parseDevice(d)
		if err != nil {
			return nil, nil, err
		}
		hostCfg.Devices = append(hostCfg.Devices, mapping)
	}

	return cfg, hostCfg, nil
}

// parseDevice accepts host[:container[:permissions]].
func parseDevice(s string) (container.DeviceMapping, error) {
	parts := strings.Split(s, ":")
	m := container.DeviceMapping{PathOnHost: parts[0], PathInContainer: parts[0], CgroupPermissions: "rwm"}
	switch len(parts) {
	case 1:
	case 3:
		m.CgroupPermissions = parts[2]
		fallthrough
	case 2:
		m.PathInContainer = parts[1]
	default:
		return m, fmt.Errorf("invalid device %q", s)
	}
	if m.PathOnHost == "" {
		return m, fmt.Errorf("invalid device %q", s)
	}
	return m, nil
}

func hostPorts(ports nat.PortMap) map[int]int {
	out := map[int]int{}
	for port, bindings := range ports {
		if len(bindings) == 0 {
			continue
		}
		host, err := strconv.Atoi(bindings[0].HostPort)
		if err != nil {
			continue
		}
		out[port.Int()] = host
	}
	return out
}

func renderHostPorts(m map[int]int) string {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%d => %d", m[k], k))
	}
	return strings.Join(parts, "; ")
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

var errNotStarted = errors.New("node has not been started")

// Execute runs command with the node's shell. Output is streamed to the
// runtime writer unless opts.Quiet is set.
func (n *Node) Execute(ctx context.Context, command string, opts ExecOptions) (ExecResult, error) {
	if n.ContainerID == "" {
		return ExecResult{}, fmt.Errorf("execute on %s: %w", n.Hostname, errNotStarted)
	}
	user := opts.User
	if user == "" {
		user = defaultExecUser
	}
	cmd := []string{n.Shell, "-c", command}
	n.rt.Logger.Debug().Msgf("Executing command (%s) on node (%s) ...", command, n.FQDN)

	var buf bytes.Buffer
	var out io.Writer = &buf
	if !opts.Quiet {
		out = io.MultiWriter(&buf, n.rt.out())
	}
	code, err := n.rt.Engine.Exec(ctx, n.ContainerID, engine.ExecOptions{Cmd: cmd, User: user, Detach: opts.Detach}, out)
	if err != nil {
		return ExecResult{}, fmt.Errorf("execute on %s: %w", n.FQDN, err)
	}
	return ExecResult{ExitCode: code, Output: buf.String()}, nil
}

// GetFile returns the contents of the first file in the archive at path.
func (n *Node) GetFile(ctx context.Context, path string) (string, error) {
	if n.ContainerID == "" {
		return "", errNotStarted
	}
	rc, err := n.rt.Engine.CopyFromContainer(ctx, n.ContainerID, path)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	tr := tar.NewReader(rc)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return "", fmt.Errorf("no file at %s on %s", path, n.FQDN)
		}
		if err != nil {
			return "", err
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		b, err := io.ReadAll(tr)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}

// PutFile writes contents to the absolute path on the node with a fresh mtime.
func (n *Node) PutFile(ctx context.Context, path, contents string) error {
	if n.ContainerID == "" {
		return errNotStarted
	}
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	hdr := &tar.Header{
		Name:    strings.TrimPrefix(path, "/"),
		Mode:    0o644,
		Size:    int64(len(contents)),
		ModTime: time.Now(),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	if _, err := io.WriteString(tw, contents); err != nil {
		return err
	}
	if err := tw.Close(); err != nil {
		return err
	}
	return n.rt.Engine.CopyToContainer(ctx, n.ContainerID, "/", &buf)
}

// Commit saves the node's container as repository[:tag], optionally pushing it.
func (n *Node) Commit(ctx context.Context, repository, tag string, push bool) (string, error) {
	if n.ContainerID == "" {
		return "", errNotStarted
	}
	ref := repository
	if tag != "" {
		ref = repository + ":" + tag
	}
	n.rt.Logger.Debug().Msgf("Committing `%s` with container id %s ...", n.FQDN, shortID(n.ContainerID))
	imageID, err := n.rt.Engine.ContainerCommit(ctx, n.ContainerID, ref)
	if err != nil {
		return "", fmt.Errorf("commit %s: %w", n.FQDN, err)
	}
	if push {
		n.rt.Logger.Debug().Msgf("Pushing image of `%s` to repository %s ...", n.FQDN, repository)
		if err := n.rt.Engine.ImagePush(ctx, ref); err != nil {
			return "", fmt.Errorf("push %s: %w", ref, err)
		}
	}
	return imageID, nil
}

// Stop stops the container, or force removes it with its volumes when remove is set.
func (n *Node) Stop(ctx context.Context, remove bool) error {
	if n.ContainerID == "" {
		return errNotStarted
	}
	if !remove {
		return n.rt.Engine.ContainerStop(ctx, n.ContainerID)
	}
	if err := n.rt.publisher().Remove(ctx, n.FQDN); err != nil {
		n.rt.Logger.Warn().Err(err).Msgf("Could not unpublish %s", n.FQDN)
	}
	return n.rt.Engine.ContainerRemove(ctx, n.ContainerID, true)
}
