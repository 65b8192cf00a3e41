package topology

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/clusterdock/clusterdock/internal/cluster"
	"github.com/clusterdock/clusterdock/internal/domain"
	"github.com/clusterdock/clusterdock/internal/engine"
	"github.com/clusterdock/clusterdock/internal/engine/enginetest"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const nodebase = `
name: Nodebase
node groups:
  secondary-nodes:
    - node-2
    - node-3
  primary-node:
    - node-1
start args:
  -k, --kerberos:
    action: store_true
    help: Enable Kerberos
  --node-disks:
    help: Map host disks
    default: /dev/sdb
    metavar: disks
build args:
  --java:
    help: Java version
    default: 8
images:
  primary-node: "{registry}/{namespace}/nodebase:{operating_system}"
ports:
  primary-node:
    - "8080"
volumes:
  secondary-nodes:
    - /var/data:/data:ro
build:
  primary-node:
    - yum install -y java
    - yum clean all
`

func loadNodebase(t *testing.T) *Definition {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/topologies/topology_nodebase/topology.yaml", []byte(nodebase), 0o644))
	def, err := Load(fs, "/topologies/topology_nodebase", "topology.yaml")
	require.NoError(t, err)
	return def
}

func newRuntime(f *enginetest.Fake) *cluster.Runtime {
	return &cluster.Runtime{
		Engine:       f,
		Logger:       zerolog.Nop(),
		LabelKey:     "clusterdock",
		WaitTimeout:  time.Second,
		WaitInterval: 10 * time.Millisecond,
	}
}

func TestLoadKeepsDeclarationOrder(t *testing.T) {
	def := loadNodebase(t)

	assert.Equal(t, "Nodebase", def.Name)
	assert.Equal(t, "/topologies/topology_nodebase", def.Dir)
	require.Len(t, def.NodeGroups, 2)
	assert.Equal(t, GroupSpec{Name: "secondary-nodes", Nodes: []string{"node-2", "node-3"}}, def.NodeGroups[0])
	assert.Equal(t, "primary-node", def.NodeGroups[1].Name)

	require.Len(t, def.StartArgs, 2)
	assert.Equal(t, []string{"-k", "--kerberos"}, def.StartArgs[0].Names)
	assert.Equal(t, "kerberos", def.StartArgs[0].Long())
	assert.Equal(t, "k", def.StartArgs[0].Short())
	assert.True(t, def.StartArgs[0].IsBool())
	assert.Equal(t, "node-disks", def.StartArgs[1].Long())
	assert.Empty(t, def.StartArgs[1].Short())
	assert.Equal(t, "java", def.ArgsFor("build")[0].Long())
}

func TestLoadErrors(t *testing.T) {
	fs := afero.NewMemMapFs()
	_, err := Load(fs, "/missing", "topology.yaml")
	assert.Error(t, err)

	require.NoError(t, afero.WriteFile(fs, "/bad/topology.yaml", []byte("node groups: [a, b]"), 0o644))
	_, err = Load(fs, "/bad", "topology.yaml")
	assert.Error(t, err)
}

func TestBindFlags(t *testing.T) {
	def := loadNodebase(t)
	fs := pflag.NewFlagSet("start", pflag.ContinueOnError)
	fs.StringP("network", "n", "cluster", "")
	fs.BoolP("always-pull", "k", false, "")

	values := def.BindFlags(fs, "start", zerolog.Nop())
	require.NoError(t, fs.Parse([]string{"--kerberos", "--primary-node", "nn-1", "--secondary-nodes", "dn-1,dn-2"}))

	assert.True(t, values.Bool("kerberos"))
	assert.Equal(t, "/dev/sdb", values.String("node-disks"))
	assert.Equal(t, map[string]string{"kerberos": "true", "node-disks": "/dev/sdb"}, values.Values())
	assert.Equal(t, []GroupSpec{
		{Name: "secondary-nodes", Nodes: []string{"dn-1", "dn-2"}},
		{Name: "primary-node", Nodes: []string{"nn-1"}},
	}, values.NodeGroups())

	build := pflag.NewFlagSet("build", pflag.ContinueOnError)
	bv := def.BindFlags(build, "build", zerolog.Nop())
	require.NoError(t, build.Parse(nil))
	assert.Equal(t, "8", bv.String("java"))
	assert.Empty(t, bv.NodeGroups())
}

type stubTopology struct{ started bool }

func (s *stubTopology) Start(context.Context, *cluster.Runtime, *Definition, StartArgs) (*cluster.Cluster, error) {
	s.started = true
	return nil, nil
}

func TestRegistryResolve(t *testing.T) {
	r := NewRegistry()
	stub := &stubTopology{}
	r.Register("topology_nodebase", stub)

	assert.Same(t, stub, r.Resolve("/topologies/topology_nodebase/"))
	assert.Equal(t, Generic{}, r.Resolve("/topologies/other"))
	assert.Equal(t, []string{"topology_nodebase"}, r.Names())
	assert.Equal(t, Generic{}, Builder(stub))
}

func TestGenericStart(t *testing.T) {
	def := loadNodebase(t)
	f := enginetest.NewFake()
	rt := newRuntime(f)

	c, err := Generic{}.Start(context.Background(), rt, def, StartArgs{
		Network:         "cluster",
		Registry:        "docker.io",
		OperatingSystem: "centos6.8",
		Ports:           []domain.PortSpec{{Node: "node-3", Port: domain.FixedPort{Host: 18080, Container: 80}}},
	})
	require.NoError(t, err)

	nodes := c.Nodes()
	require.Len(t, nodes, 3)
	assert.Equal(t, "node-2.cluster", nodes[0].FQDN)
	assert.Equal(t, "docker.io/clusterdock/nodebase:secondary-nodes_centos6.8", nodes[0].Image)
	assert.Equal(t, []domain.Volume{domain.BindMount{Host: "/var/data", Container: "/data", ReadOnly: true}}, nodes[0].Volumes)
	assert.Equal(t, map[int]int{80: 18080}, nodes[1].HostPorts)
	assert.Equal(t, "docker.io/clusterdock/nodebase:centos6.8", nodes[2].Image)
	assert.Equal(t, []domain.Port{domain.AutoPort{Container: 8080}}, nodes[2].Ports)
}

func TestGenericStartRejectsUnknownPortNode(t *testing.T) {
	def := loadNodebase(t)
	f := enginetest.NewFake()

	_, err := Generic{}.Start(context.Background(), newRuntime(f), def, StartArgs{
		Network: "cluster",
		Ports:   []domain.PortSpec{{Node: "node-9", Port: domain.AutoPort{Container: 80}}},
	})
	assert.Error(t, err)
	assert.Empty(t, f.Mutations())
}

func TestGenericBuild(t *testing.T) {
	def := loadNodebase(t)
	f := enginetest.NewFake()
	var commands []string
	f.ExecHandler = func(_ *enginetest.Container, opts engine.ExecOptions) (string, int) {
		commands = append(commands, opts.Cmd[2])
		return "", 0
	}

	err := Generic{}.Build(context.Background(), newRuntime(f), def, BuildArgs{
		Network:    "cluster",
		Repository: "docker.io/clusterdock",
		Push:       true,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"yum install -y java", "yum clean all"}, commands)
	assert.Equal(t, []string{"docker.io/clusterdock/nodebase:primary-node"}, f.CallsTo("ContainerCommit"))
	assert.Equal(t, []string{"docker.io/clusterdock/nodebase:primary-node"}, f.CallsTo("ImagePush"))
	assert.Empty(t, f.Containers(), "build containers are removed")
}

func TestGenericBuildStopsOnFailingCommand(t *testing.T) {
	def := loadNodebase(t)
	f := enginetest.NewFake()
	f.ExecHandler = func(*enginetest.Container, engine.ExecOptions) (string, int) { return "boom", 1 }

	err := Generic{}.Build(context.Background(), newRuntime(f), def, BuildArgs{Network: "cluster", Repository: "docker.io/clusterdock"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "yum install -y java")
	assert.Empty(t, f.CallsTo("ContainerCommit"))
	assert.Empty(t, f.Containers())
}

func TestGitHash(t *testing.T) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "topology.yaml"), []byte(nodebase), 0o644))
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("topology.yaml")
	require.NoError(t, err)
	hash, err := wt.Commit("initial topology", &git.CommitOptions{
		Author: &object.Signature{Name: "dev", Email: "dev@example.com", When: time.Now()},
	})
	require.NoError(t, err)

	got, err := GitHash(dir)
	require.NoError(t, err)
	assert.Equal(t, hash.String()[:7], got)

	_, err = GitHash(t.TempDir())
	assert.Error(t, err)
}
