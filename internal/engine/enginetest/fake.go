// Package enginetest provides an in-memory engine.Engine for tests.
package enginetest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/clusterdock/clusterdock/internal/engine"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/go-connections/nat"
)

// Call is one recorded engine invocation.
type Call struct {
	Op     string
	Target string
}

// Container is the fake's view of a created container.
type Container struct {
	ID         string
	Name       string
	Config     *container.Config
	HostConfig *container.HostConfig
	Running    bool
	Networks   map[string]*network.EndpointSettings
	Ports      nat.PortMap
	// Archives maps a path to the tar stream CopyFromContainer returns for it.
	Archives map[string][]byte
	// Uploads collects every tar stream received by CopyToContainer, keyed by path.
	Uploads map[string][][]byte
}

type fakeNetwork struct {
	ID         string
	Name       string
	Labels     map[string]string
	Predefined bool
}

// ExecFunc scripts the behavior of Exec for a container.
type ExecFunc func(c *Container, opts engine.ExecOptions) (output string, exitCode int)

// Fake is a single-host engine kept entirely in memory.
type Fake struct {
	mu sync.Mutex

	containers []*Container
	networks   []*fakeNetwork
	images     map[string]bool
	// Pullable lists images ImagePull can fetch. Nil means every image is pullable.
	Pullable map[string]bool
	// NeverRuns keeps started containers out of the running state.
	NeverRuns bool
	// ExecHandler scripts Exec; the default echoes nothing and exits 0.
	ExecHandler ExecFunc
	// NetworkRemoveErrors injects raw failures for NetworkRemove by network name.
	NetworkRemoveErrors map[string]error

	calls    []Call
	seq      int
	nextPort int
	nextIP   int
}

var mutatingOps = map[string]bool{
	"ContainerCreate":   true,
	"ContainerStart":    true,
	"ContainerStop":     true,
	"ContainerRemove":   true,
	"ContainerCommit":   true,
	"Exec":              true,
	"ExecInteractive":   true,
	"CopyToContainer":   true,
	"NetworkCreate":     true,
	"NetworkRemove":     true,
	"ImagePull":         true,
	"ImagePush":         true,
	"CopyFromContainer": false,
}

func NewFake() *Fake {
	f := &Fake{
		images:   map[string]bool{},
		nextPort: 32768,
		nextIP:   2,
	}
	for _, name := range []string{"bridge", "host", "none"} {
		f.networks = append(f.networks, &fakeNetwork{ID: name + "-id", Name: name, Predefined: true})
	}
	return f
}

func (f *Fake) record(op, target string) {
	f.calls = append(f.calls, Call{Op: op, Target: target})
}

// Calls returns every recorded call.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Mutations returns the recorded calls that change engine state.
func (f *Fake) Mutations() []Call {
	var out []Call
	for _, c := range f.Calls() {
		if mutatingOps[c.Op] {
			out = append(out, c)
		}
	}
	return out
}

// CallsTo returns the targets of every call to op.
func (f *Fake) CallsTo(op string) []string {
	var out []string
	for _, c := range f.Calls() {
		if c.Op == op {
			out = append(out, c.Target)
		}
	}
	return out
}

// AddImage makes ref available locally.
func (f *Fake) AddImage(ref string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.images[ref] = true
}

func (f *Fake) HasImage(ref string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.images[ref]
}

// AddNetwork registers a user-defined network without recording a call.
func (f *Fake) AddNetwork(name string, labels map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.networks = append(f.networks, &fakeNetwork{ID: name + "-id", Name: name, Labels: labels})
}

// AddContainer seeds a container without recording a call. aliases maps
// network name to the container's alias on it.
func (f *Fake) AddContainer(name, hostname string, labels map[string]string, running bool, aliases map[string]string) *Container {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	c := &Container{
		ID:       fmt.Sprintf("%064d", f.seq),
		Name:     name,
		Config:   &container.Config{Hostname: hostname, Labels: labels, Image: "seed:latest"},
		Running:  running,
		Networks: map[string]*network.EndpointSettings{},
		Archives: map[string][]byte{},
		Uploads:  map[string][][]byte{},
	}
	for netName, alias := range aliases {
		c.Networks[netName] = &network.EndpointSettings{Aliases: []string{alias}, IPAddress: f.allocIP()}
	}
	f.containers = append(f.containers, c)
	return c
}

// Container returns the container with the given ID or name.
func (f *Fake) Container(ref string) *Container {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.find(ref)
}

// Containers returns every container in creation order.
func (f *Fake) Containers() []*Container {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Container(nil), f.containers...)
}

// NetworkNames returns the names of every network, sorted.
func (f *Fake) NetworkNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var names []string
	for _, n := range f.networks {
		names = append(names, n.Name)
	}
	sort.Strings(names)
	return names
}

func (f *Fake) find(ref string) *Container {
	for _, c := range f.containers {
		if c.ID == ref || c.Name == ref || (len(ref) >= 12 && strings.HasPrefix(c.ID, ref)) {
			return c
		}
	}
	return nil
}

func (f *Fake) findNetwork(ref string) *fakeNetwork {
	for _, n := range f.networks {
		if n.Name == ref || n.ID == ref {
			return n
		}
	}
	return nil
}

func (f *Fake) allocIP() string {
	ip := fmt.Sprintf("172.18.0.%d", f.nextIP)
	f.nextIP++
	return ip
}

func notFound(op, what string) error {
	return engine.NewError(engine.KindNotFound, op, fmt.Errorf("no such %s", what))
}

func (f *Fake) ContainerList(_ context.Context) ([]container.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ContainerList", "")
	var out []container.Summary
	for _, c := range f.containers {
		state := "exited"
		if c.Running {
			state = "running"
		}
		out = append(out, container.Summary{
			ID:     c.ID,
			Names:  []string{"/" + c.Name},
			Image:  c.Config.Image,
			Labels: c.Config.Labels,
			State:  state,
		})
	}
	return out, nil
}

func (f *Fake) ContainerInspect(_ context.Context, id string) (container.InspectResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ContainerInspect", id)
	c := f.find(id)
	if c == nil {
		return container.InspectResponse{}, notFound("inspect container", id)
	}
	status := "created"
	if c.Running {
		status = "running"
	}
	networks := map[string]*network.EndpointSettings{}
	for k, v := range c.Networks {
		cp := *v
		networks[k] = &cp
	}
	return container.InspectResponse{
		ContainerJSONBase: &container.ContainerJSONBase{
			ID:         c.ID,
			Name:       "/" + c.Name,
			State:      &container.State{Status: status, Running: c.Running},
			HostConfig: c.HostConfig,
		},
		Config: c.Config,
		NetworkSettings: &container.NetworkSettings{
			NetworkSettingsBase: container.NetworkSettingsBase{Ports: c.Ports},
			Networks:            networks,
		},
	}, nil
}

func (f *Fake) ContainerCreate(_ context.Context, cfg *container.Config, hostCfg *container.HostConfig, netCfg *network.NetworkingConfig, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ContainerCreate", cfg.Image)
	if !f.images[cfg.Image] {
		return "", notFound("create container", "image: "+cfg.Image)
	}
	f.seq++
	c := &Container{
		ID:         fmt.Sprintf("%064d", f.seq),
		Name:       name,
		Config:     cfg,
		HostConfig: hostCfg,
		Networks:   map[string]*network.EndpointSettings{},
		Archives:   map[string][]byte{},
		Uploads:    map[string][][]byte{},
	}
	if c.Name == "" {
		c.Name = "fake_" + strconv.Itoa(f.seq)
	}
	if netCfg != nil {
		for netName, ep := range netCfg.EndpointsConfig {
			if f.findNetwork(netName) == nil {
				return "", notFound("create container", "network: "+netName)
			}
			settings := &network.EndpointSettings{}
			if ep != nil {
				settings.Aliases = append([]string(nil), ep.Aliases...)
			}
			c.Networks[netName] = settings
		}
	}
	f.containers = append(f.containers, c)
	return c.ID, nil
}

func (f *Fake) ContainerStart(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ContainerStart", id)
	c := f.find(id)
	if c == nil {
		return notFound("start container", id)
	}
	if !f.NeverRuns {
		c.Running = true
	}
	for _, ep := range c.Networks {
		if ep.IPAddress == "" {
			ep.IPAddress = f.allocIP()
		}
	}
	c.Ports = nat.PortMap{}
	if c.HostConfig != nil {
		for port, bindings := range c.HostConfig.PortBindings {
			var realized []nat.PortBinding
			for _, b := range bindings {
				hostPort := b.HostPort
				if hostPort == "" {
					hostPort = strconv.Itoa(f.nextPort)
					f.nextPort++
				}
				realized = append(realized, nat.PortBinding{HostIP: "0.0.0.0", HostPort: hostPort})
			}
			c.Ports[port] = realized
		}
	}
	return nil
}

func (f *Fake) ContainerWait(_ context.Context, id string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ContainerWait", id)
	c := f.find(id)
	if c == nil {
		return 0, notFound("wait container", id)
	}
	c.Running = false
	return 0, nil
}

func (f *Fake) ContainerStop(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ContainerStop", id)
	c := f.find(id)
	if c == nil {
		return notFound("stop container", id)
	}
	c.Running = false
	return nil
}

func (f *Fake) ContainerRemove(_ context.Context, id string, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ContainerRemove", id)
	for i, c := range f.containers {
		if c.ID == id || c.Name == id {
			f.containers = append(f.containers[:i], f.containers[i+1:]...)
			return nil
		}
	}
	return notFound("remove container", id)
}

func (f *Fake) ContainerCommit(_ context.Context, id, reference string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ContainerCommit", reference)
	if f.find(id) == nil {
		return "", notFound("commit container", id)
	}
	f.images[reference] = true
	return "sha256:" + reference, nil
}

func (f *Fake) Exec(_ context.Context, id string, opts engine.ExecOptions, out io.Writer) (int, error) {
	f.mu.Lock()
	f.record("Exec", id)
	c := f.find(id)
	handler := f.ExecHandler
	f.mu.Unlock()
	if c == nil {
		return 0, notFound("create exec", id)
	}
	if handler == nil || opts.Detach {
		return 0, nil
	}
	output, code := handler(c, opts)
	if out != nil {
		if _, err := io.WriteString(out, output); err != nil {
			return 0, err
		}
	}
	return code, nil
}

func (f *Fake) ExecInteractive(ctx context.Context, id string, opts engine.ExecOptions, _ io.Reader, out io.Writer) (int, error) {
	f.mu.Lock()
	f.record("ExecInteractive", id)
	f.mu.Unlock()
	opts.Tty = true
	return f.Exec(ctx, id, opts, out)
}

func (f *Fake) CopyFromContainer(_ context.Context, id, path string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CopyFromContainer", id+":"+path)
	c := f.find(id)
	if c == nil {
		return nil, notFound("copy from container", id)
	}
	data, ok := c.Archives[path]
	if !ok {
		return nil, notFound("copy from container", "path: "+path)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *Fake) CopyToContainer(_ context.Context, id, path string, content io.Reader) error {
	data, err := io.ReadAll(content)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CopyToContainer", id+":"+path)
	c := f.find(id)
	if c == nil {
		return notFound("copy to container", id)
	}
	c.Uploads[path] = append(c.Uploads[path], data)
	return nil
}

func (f *Fake) NetworkCreate(_ context.Context, name string, labels map[string]string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("NetworkCreate", name)
	if f.findNetwork(name) != nil {
		return "", engine.NewError(engine.KindAlreadyExists, "create network "+name,
			fmt.Errorf("network with name %s already exists", name))
	}
	n := &fakeNetwork{ID: name + "-id", Name: name, Labels: labels}
	f.networks = append(f.networks, n)
	return n.ID, nil
}

func (f *Fake) NetworkInspect(_ context.Context, name string) (network.Inspect, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("NetworkInspect", name)
	n := f.findNetwork(name)
	if n == nil {
		return network.Inspect{}, notFound("inspect network", name)
	}
	attached := map[string]network.EndpointResource{}
	for _, c := range f.containers {
		if ep, ok := c.Networks[n.Name]; ok {
			attached[c.ID] = network.EndpointResource{Name: c.Name, IPv4Address: ep.IPAddress + "/16"}
		}
	}
	return network.Inspect{ID: n.ID, Name: n.Name, Labels: n.Labels, Containers: attached}, nil
}

func (f *Fake) NetworkList(_ context.Context) ([]network.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("NetworkList", "")
	var out []network.Summary
	for _, n := range f.networks {
		out = append(out, network.Summary{ID: n.ID, Name: n.Name, Labels: n.Labels})
	}
	return out, nil
}

func (f *Fake) NetworkRemove(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("NetworkRemove", id)
	n := f.findNetwork(id)
	if n == nil {
		return notFound("remove network", id)
	}
	if err, ok := f.NetworkRemoveErrors[n.Name]; ok {
		return engine.NewError(engine.KindOther, "remove network "+n.Name, err)
	}
	if n.Predefined {
		return engine.NewError(engine.KindPredefinedNetwork, "remove network "+n.Name,
			fmt.Errorf("%s is a pre-defined network and cannot be removed", n.Name))
	}
	for _, c := range f.containers {
		if _, ok := c.Networks[n.Name]; ok && c.Running {
			return engine.NewError(engine.KindHasActiveEndpoints, "remove network "+n.Name,
				fmt.Errorf("network %s id %s has active endpoints", n.Name, n.ID))
		}
	}
	for i, other := range f.networks {
		if other == n {
			f.networks = append(f.networks[:i], f.networks[i+1:]...)
			break
		}
	}
	return nil
}

func (f *Fake) ImagePull(_ context.Context, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ImagePull", ref)
	if f.Pullable != nil && !f.Pullable[ref] {
		return notFound("pull image", "image: "+ref)
	}
	f.images[ref] = true
	return nil
}

func (f *Fake) ImagePush(_ context.Context, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ImagePush", ref)
	if !f.images[ref] {
		return notFound("push image", "image: "+ref)
	}
	return nil
}

func (f *Fake) Close() error {
	return nil
}

var _ engine.Engine = (*Fake)(nil)
