package cluster

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/clusterdock/clusterdock/internal/domain"
	"github.com/clusterdock/clusterdock/internal/engine"
	"github.com/clusterdock/clusterdock/internal/engine/enginetest"
	"github.com/clusterdock/clusterdock/internal/label"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testImage = "clusterdock/node:latest"

type recordingPublisher struct {
	added   []domain.Record
	removed []string
}

func (p *recordingPublisher) Add(_ context.Context, r domain.Record) error {
	p.added = append(p.added, r)
	return nil
}

func (p *recordingPublisher) Remove(_ context.Context, fqdn string) error {
	p.removed = append(p.removed, fqdn)
	return nil
}

type staticLister []string

func (s staticLister) ClusterNames(context.Context) ([]string, error) { return s, nil }

func newTestRuntime(f *enginetest.Fake) (*Runtime, *recordingPublisher, *bytes.Buffer) {
	pub := &recordingPublisher{}
	out := &bytes.Buffer{}
	return &Runtime{
		Engine:       f,
		Publisher:    pub,
		Logger:       zerolog.Nop(),
		LabelKey:     "clusterdock",
		Localtime:    "/home/user/.clusterdock/localtime",
		WaitTimeout:  time.Second,
		WaitInterval: 10 * time.Millisecond,
		Out:          out,
	}, pub, out
}

func newTestCluster(t *testing.T, rt *Runtime, name string, hostnames ...string) *Cluster {
	t.Helper()
	var nodes []*Node
	for i, h := range hostnames {
		group := "primary"
		if i > 0 {
			group = "secondary"
		}
		nodes = append(nodes, NewNode(rt, h, group, testImage))
	}
	c, err := New(rt, name, GroupNodes(nodes...)...)
	require.NoError(t, err)
	return c
}

func TestClusterStartAssignsFQDNs(t *testing.T) {
	f := enginetest.NewFake()
	f.AddImage(testImage)
	rt, pub, _ := newTestRuntime(f)
	c := newTestCluster(t, rt, "", "node-1", "node-2", "node-3")

	require.NoError(t, c.Start(context.Background(), "cluster"))

	assert.Equal(t, "cluster", c.Network)
	assert.Contains(t, f.NetworkNames(), "cluster")
	for _, node := range c.Nodes() {
		assert.Equal(t, node.Hostname+".cluster", node.FQDN)
		assert.NotEmpty(t, node.IPAddress)
		assert.NotEmpty(t, node.ContainerID)

		created := f.Container(node.ContainerID)
		require.NotNil(t, created)
		assert.Equal(t, node.FQDN, created.Config.Hostname)
		assert.Equal(t, []string{node.Hostname}, created.Networks["cluster"].Aliases)
		assert.Contains(t, created.HostConfig.CapAdd, "ALL")
		assert.Contains(t, created.HostConfig.SecurityOpt, "seccomp=unconfined")
		assert.Contains(t, created.HostConfig.Binds, "/home/user/.clusterdock/localtime:/etc/localtime:ro")

		l, ok, err := label.FromLabels("clusterdock", created.Config.Labels)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, c.Name, l.ClusterName)
	}
	require.Len(t, pub.added, 3)
	assert.Equal(t, "node-1.cluster", pub.added[0].Name)
}

func TestClusterStartOnNetworkNameThatIsNotDNS(t *testing.T) {
	for _, networkName := range []string{"dev-", "my_net_", "a..b"} {
		t.Run(networkName, func(t *testing.T) {
			f := enginetest.NewFake()
			f.AddImage(testImage)
			rt, pub, _ := newTestRuntime(f)
			c := newTestCluster(t, rt, "", "node-1")

			require.NoError(t, c.Start(context.Background(), networkName))

			node := c.Nodes()[0]
			assert.Equal(t, "node-1."+networkName, node.FQDN)
			assert.NotEmpty(t, node.ContainerID)
			assert.NotEmpty(t, node.IPAddress)
			assert.Empty(t, pub.added)

			rt.Publisher = nil
			other := newTestCluster(t, rt, "", "node-2")
			require.NoError(t, other.Start(context.Background(), networkName))
			assert.Equal(t, "node-2."+networkName, other.Nodes()[0].FQDN)
		})
	}
}

func TestClusterStartDoesNotRollBack(t *testing.T) {
	f := enginetest.NewFake()
	f.AddImage(testImage)
	f.Pullable = map[string]bool{}
	rt, pub, _ := newTestRuntime(f)
	first := NewNode(rt, "node-1", "primary", testImage)
	second := NewNode(rt, "node-2", "secondary", "missing:latest")
	c, err := New(rt, "", GroupNodes(first, second)...)
	require.NoError(t, err)

	err = c.Start(context.Background(), "cluster")
	require.Error(t, err)
	assert.True(t, engine.IsNotFound(err))

	assert.Equal(t, "node-1.cluster", first.FQDN)
	assert.NotEmpty(t, first.ContainerID)
	created := f.Container(first.ContainerID)
	require.NotNil(t, created)
	assert.True(t, created.Running)
	assert.Empty(t, second.ContainerID)
	assert.Empty(t, f.CallsTo("ContainerRemove"))
	assert.Empty(t, f.CallsTo("ContainerStop"))
	assert.Contains(t, f.NetworkNames(), "cluster")
	assert.Len(t, pub.added, 1)
}

func TestClusterStartRejectsAliasCollision(t *testing.T) {
	f := enginetest.NewFake()
	f.AddImage(testImage)
	f.AddNetwork("cluster", nil)
	f.AddContainer("other_a", "node-3.cluster", nil, true, map[string]string{"cluster": "node-3"})
	f.AddContainer("other_b", "node-1.cluster", nil, true, map[string]string{"cluster": "node-1"})
	f.AddContainer("elsewhere", "node-2.lan", nil, true, map[string]string{"lan": "node-2"})
	rt, _, _ := newTestRuntime(f)
	c := newTestCluster(t, rt, "", "node-1", "node-2", "node-3")

	err := c.Start(context.Background(), "cluster")

	var dup *DuplicateHostnamesError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, []string{"node-1", "node-3"}, dup.Duplicates)
	assert.Equal(t, "cluster", dup.Network)
	assert.Empty(t, f.CallsTo("ContainerCreate"))
	assert.Empty(t, f.CallsTo("ContainerStart"))
}

func TestClusterStartReusesExistingNetwork(t *testing.T) {
	f := enginetest.NewFake()
	f.AddImage(testImage)
	rt, _, _ := newTestRuntime(f)

	first := newTestCluster(t, rt, "", "node-1")
	require.NoError(t, first.Start(context.Background(), "cluster"))

	second := newTestCluster(t, rt, "", "node-2")
	require.NoError(t, second.Start(context.Background(), "cluster"))

	assert.Equal(t, []string{"cluster", "cluster"}, f.CallsTo("NetworkCreate"))
	assert.Equal(t, "node-2.cluster", second.Nodes()[0].FQDN)

	count := 0
	for _, name := range f.NetworkNames() {
		if name == "cluster" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestClusterStartRejectsDuplicateClusterName(t *testing.T) {
	f := enginetest.NewFake()
	f.AddImage(testImage)
	rt, _, _ := newTestRuntime(f)
	rt.Inventory = staticLister{"beta", "alpha"}

	c := newTestCluster(t, rt, "alpha", "node-1")
	err := c.Start(context.Background(), "cluster")

	var dup *DuplicateClusterNameError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "alpha", dup.Name)
	assert.Equal(t, []string{"alpha", "beta"}, dup.Clusters)
	assert.Empty(t, f.Mutations())
}

func TestGeneratedNameSkipsClusterNameCheck(t *testing.T) {
	f := enginetest.NewFake()
	f.AddImage(testImage)
	rt, _, _ := newTestRuntime(f)
	rt.Inventory = staticLister{"unused"}

	c := newTestCluster(t, rt, "", "node-1")
	assert.Regexp(t, `^[a-z]+_[a-z0-9_]+$`, c.Name)
	require.NoError(t, c.Start(context.Background(), "cluster"))
}

func TestNewValidatesNodes(t *testing.T) {
	rt, _, _ := newTestRuntime(enginetest.NewFake())

	_, err := New(rt, "x")
	assert.ErrorIs(t, err, ErrNoNodes)

	_, err = New(rt, "x", NewNodeGroup("primary", NewNode(rt, "node-1", "primary", testImage)),
		NewNodeGroup("secondary", NewNode(rt, "node-1", "secondary", testImage)))
	var dup *DuplicateHostnamesError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, []string{"node-1"}, dup.Duplicates)
	assert.EqualError(t, err, "hostnames repeated within the cluster: node-1")

	_, err = New(rt, "x", NewNodeGroup("primary", NewNode(rt, "bad host", "primary", testImage)))
	assert.Error(t, err)
}

func TestGroupNodesKeepsOrder(t *testing.T) {
	rt, _, _ := newTestRuntime(enginetest.NewFake())
	groups := GroupNodes(
		NewNode(rt, "a", "secondary", testImage),
		NewNode(rt, "b", "primary", testImage),
		NewNode(rt, "c", "secondary", testImage),
	)
	require.Len(t, groups, 2)
	assert.Equal(t, "secondary", groups[0].Name)
	assert.Equal(t, "primary", groups[1].Name)

	c, err := New(rt, "", groups...)
	require.NoError(t, err)
	var order []string
	for _, n := range c.Nodes() {
		order = append(order, n.Hostname)
	}
	assert.Equal(t, []string{"a", "c", "b"}, order)
	assert.Same(t, groups[1], c.Group("primary"))
	assert.Nil(t, c.Group("missing"))
}

func TestNodeStartPullsMissingImageOnce(t *testing.T) {
	f := enginetest.NewFake()
	rt, _, _ := newTestRuntime(f)
	node := NewNode(rt, "node-1", "primary", testImage)

	require.NoError(t, node.Start(context.Background(), "bridge", "c"))

	assert.Equal(t, []string{testImage, testImage}, f.CallsTo("ContainerCreate"))
	assert.Equal(t, []string{testImage}, f.CallsTo("ImagePull"))
}

func TestNodeStartFailsWhenImageCannotBePulled(t *testing.T) {
	f := enginetest.NewFake()
	f.Pullable = map[string]bool{}
	rt, _, _ := newTestRuntime(f)
	node := NewNode(rt, "node-1", "primary", testImage)

	err := node.Start(context.Background(), "bridge", "c")
	require.Error(t, err)
	assert.True(t, engine.IsNotFound(err))
	assert.Empty(t, node.FQDN)
}

func TestNodeStartResolvesVolumesAndPorts(t *testing.T) {
	f := enginetest.NewFake()
	f.AddImage(testImage)
	rt, _, _ := newTestRuntime(f)
	node := NewNode(rt, "node-1", "primary", testImage)
	node.Volumes = []domain.Volume{
		domain.BindMount{Host: "/var/www", Container: "/srv/www"},
		domain.ImageVolumes{Image: "secrets:latest"},
	}
	node.Ports = []domain.Port{domain.AutoPort{Container: 8080}, domain.FixedPort{Host: 18080, Container: 9090}}
	node.Devices = []string{"/dev/fuse"}
	node.Options = CreateOptions{Binds: []string{"/tmp:/tmp:rw"}, Env: []string{"A=1"}}

	require.NoError(t, node.Start(context.Background(), "bridge", "c"))

	assert.True(t, f.HasImage("secrets:latest"))
	created := f.Container(node.ContainerID)
	require.NotNil(t, created)
	require.Len(t, created.HostConfig.VolumesFrom, 1)
	source := f.Container(created.HostConfig.VolumesFrom[0])
	require.NotNil(t, source)
	assert.Equal(t, "secrets:latest", source.Config.Image)
	assert.False(t, source.Running)

	assert.Contains(t, created.HostConfig.Binds, "/var/www:/srv/www:rw")
	assert.Contains(t, created.HostConfig.Binds, "/tmp:/tmp:rw")
	assert.Equal(t, []string{"A=1"}, created.Config.Env)
	require.Len(t, created.HostConfig.Devices, 1)
	assert.Equal(t, "/dev/fuse", created.HostConfig.Devices[0].PathInContainer)

	assert.Equal(t, map[int]int{8080: 32768, 9090: 18080}, node.HostPorts)
}

func TestNodeStartTimesOut(t *testing.T) {
	f := enginetest.NewFake()
	f.AddImage(testImage)
	f.NeverRuns = true
	rt, pub, _ := newTestRuntime(f)
	rt.WaitTimeout = 50 * time.Millisecond
	node := NewNode(rt, "node-1", "primary", testImage)

	err := node.Start(context.Background(), "bridge", "c")

	var timeout *TimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, 50*time.Millisecond, timeout.Timeout)
	assert.Empty(t, pub.added)
	assert.NotEmpty(t, node.ContainerID)
	assert.NoError(t, node.Stop(context.Background(), true))
	assert.Nil(t, f.Container(node.ContainerID))
}

func TestExecute(t *testing.T) {
	f := enginetest.NewFake()
	f.AddImage(testImage)
	var seen []engine.ExecOptions
	f.ExecHandler = func(c *enginetest.Container, opts engine.ExecOptions) (string, int) {
		seen = append(seen, opts)
		return "hello from " + c.Config.Hostname + "\n", 3
	}
	rt, _, out := newTestRuntime(f)
	c := newTestCluster(t, rt, "", "node-1", "node-2")
	require.NoError(t, c.Start(context.Background(), "cluster"))

	results, err := c.Execute(context.Background(), "hostname -f", ExecOptions{})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "node-1.cluster", results[0].FQDN)
	assert.Equal(t, "hello from node-1.cluster\n", results[0].Output)
	assert.Equal(t, 3, results[1].ExitCode)
	assert.Equal(t, "hello from node-1.cluster\nhello from node-2.cluster\n", out.String())
	assert.Equal(t, []string{"/bin/sh", "-c", "hostname -f"}, seen[0].Cmd)
	assert.Equal(t, "root", seen[0].User)

	out.Reset()
	res, err := c.Group("secondary").Execute(context.Background(), "id", ExecOptions{User: "hdfs", Quiet: true})
	require.NoError(t, err)
	assert.Equal(t, "hello from node-2.cluster\n", res[0].Output)
	assert.Empty(t, out.String())
	assert.Equal(t, "hdfs", seen[2].User)
}

func TestExecuteBeforeStart(t *testing.T) {
	rt, _, _ := newTestRuntime(enginetest.NewFake())
	_, err := NewNode(rt, "node-1", "primary", testImage).Execute(context.Background(), "true", ExecOptions{})
	assert.Error(t, err)
}

func TestPutAndGetFile(t *testing.T) {
	f := enginetest.NewFake()
	f.AddImage(testImage)
	rt, _, _ := newTestRuntime(f)
	node := NewNode(rt, "node-1", "primary", testImage)
	require.NoError(t, node.Start(context.Background(), "bridge", "c"))

	require.NoError(t, node.PutFile(context.Background(), "/etc/app/conf.ini", "a=1\n"))
	uploads := f.Container(node.ContainerID).Uploads["/"]
	require.Len(t, uploads, 1)
	tr := tar.NewReader(bytes.NewReader(uploads[0]))
	hdr, err := tr.Next()
	require.NoError(t, err)
	assert.Equal(t, "etc/app/conf.ini", hdr.Name)
	assert.WithinDuration(t, time.Now(), hdr.ModTime, time.Minute)
	body, err := io.ReadAll(tr)
	require.NoError(t, err)
	assert.Equal(t, "a=1\n", string(body))

	var archive bytes.Buffer
	tw := tar.NewWriter(&archive)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "hosts", Mode: 0o644, Size: 9, Typeflag: tar.TypeReg}))
	_, err = tw.Write([]byte("127.0.0.1"))
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	f.Container(node.ContainerID).Archives["/etc/hosts"] = archive.Bytes()

	got, err := node.GetFile(context.Background(), "/etc/hosts")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", got)
}

func TestCommitAndStop(t *testing.T) {
	f := enginetest.NewFake()
	f.AddImage(testImage)
	rt, pub, _ := newTestRuntime(f)
	node := NewNode(rt, "node-1", "primary", testImage)
	require.NoError(t, node.Start(context.Background(), "bridge", "c"))

	_, err := node.Commit(context.Background(), "docker.io/clusterdock/topology_x", "primary", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"docker.io/clusterdock/topology_x:primary"}, f.CallsTo("ImagePush"))

	require.NoError(t, node.Stop(context.Background(), false))
	assert.False(t, f.Container(node.ContainerID).Running)

	require.NoError(t, node.Stop(context.Background(), true))
	assert.Nil(t, f.Container(node.ContainerID))
	assert.Equal(t, []string{"node-1.bridge"}, pub.removed)
}

func TestWaitForCondition(t *testing.T) {
	calls := 0
	var elapsed time.Duration
	err := WaitForCondition(context.Background(), "third call", func(context.Context) (bool, error) {
		calls++
		return calls == 3, nil
	}, time.Millisecond, time.Second, func(d time.Duration) { elapsed = d }, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Greater(t, elapsed, time.Duration(0))

	failed := false
	err = WaitForCondition(context.Background(), "never", func(context.Context) (bool, error) {
		return false, nil
	}, 5*time.Millisecond, 20*time.Millisecond, nil, func(time.Duration) { failed = true })
	var timeout *TimeoutError
	assert.ErrorAs(t, err, &timeout)
	assert.True(t, failed)

	boom := errors.New("boom")
	err = WaitForCondition(context.Background(), "error", func(context.Context) (bool, error) {
		return false, boom
	}, time.Millisecond, time.Second, nil, nil)
	assert.ErrorIs(t, err, boom)
}
