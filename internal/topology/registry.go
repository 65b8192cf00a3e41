package topology

import (
	"context"
	"path/filepath"
	"sort"
	"sync"

	"github.com/clusterdock/clusterdock/internal/cluster"
	"github.com/clusterdock/clusterdock/internal/domain"
)

// StartArgs are the options of the start action.
type StartArgs struct {
	ClusterName     string
	Namespace       string
	Network         string
	OperatingSystem string
	Registry        string
	AlwaysPull      bool
	Ports           []domain.PortSpec
	NodeGroups      []GroupSpec
	Flags           *FlagValues
}

// BuildArgs are the options of the build action.
type BuildArgs struct {
	Network         string
	OperatingSystem string
	Repository      string
	Push            bool
	Flags           *FlagValues
}

// StartAction brings up a topology's cluster.
type StartAction interface {
	Start(ctx context.Context, rt *cluster.Runtime, def *Definition, args StartArgs) (*cluster.Cluster, error)
}

// BuildAction builds and commits a topology's images.
type BuildAction interface {
	Build(ctx context.Context, rt *cluster.Runtime, def *Definition, args BuildArgs) error
}

// Topology is what a topology package registers. Implementations may also
// satisfy BuildAction.
type Topology interface {
	StartAction
}

// Registry maps topology names to their implementation.
type Registry struct {
	mu         sync.RWMutex
	topologies map[string]Topology
	fallback   Topology
}

func NewRegistry() *Registry {
	return &Registry{topologies: map[string]Topology{}, fallback: Generic{}}
}

func (r *Registry) Register(name string, t Topology) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.topologies[name] = t
}

// Names lists registered topologies, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.topologies))
	for n := range r.topologies {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Resolve returns the implementation registered under the base name of the
// topology directory, or the generic one.
func (r *Registry) Resolve(dir string) Topology {
	name := filepath.Base(filepath.Clean(dir))
	if abs, err := filepath.Abs(dir); err == nil {
		name = filepath.Base(abs)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if t, ok := r.topologies[name]; ok {
		return t
	}
	return r.fallback
}

// Builder returns t's build action, falling back to the generic build.
func Builder(t Topology) BuildAction {
	if b, ok := t.(BuildAction); ok {
		return b
	}
	return Generic{}
}
