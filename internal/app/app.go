package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/clusterdock/clusterdock/internal/cluster"
	"github.com/clusterdock/clusterdock/internal/config"
	"github.com/clusterdock/clusterdock/internal/cp"
	"github.com/clusterdock/clusterdock/internal/engine"
	"github.com/clusterdock/clusterdock/internal/inventory"
	"github.com/clusterdock/clusterdock/internal/localtime"
	"github.com/clusterdock/clusterdock/internal/manage"
	"github.com/clusterdock/clusterdock/internal/ps"
	"github.com/clusterdock/clusterdock/internal/registry"
	"github.com/clusterdock/clusterdock/internal/ssh"
	"github.com/clusterdock/clusterdock/internal/topology"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	clientv3 "go.etcd.io/etcd/client/v3"
)

type App struct {
	cfg        *config.Config
	engine     engine.Engine
	etcdClient *clientv3.Client
	publisher  registry.Publisher
	scanner    *inventory.Scanner
	topologies *topology.Registry
	fs         afero.Fs
	out        io.Writer
	in         io.Reader
	logger     zerolog.Logger
}

// New creates a new App by wiring up all dependencies.
func New(cfg *config.Config, logger zerolog.Logger) (*App, error) {
	// Docker CLI
	eng, err := engine.NewDockerFromEnv(logger)
	if err != nil {
		return nil, err
	}

	// Host name publication
	var (
		pub        registry.Publisher
		etcdClient *clientv3.Client
	)
	switch cfg.Hosts.Backend {
	case config.HostsBackendEtcd:
		etcdClient, err = clientv3.New(clientv3.Config{
			Endpoints:   cfg.Etcd.Endpoints,
			DialTimeout: time.Duration(cfg.Etcd.DialTimeout * float64(time.Second)),
		})
		if err != nil {
			_ = eng.Close()
			return nil, fmt.Errorf("failed to connect to etcd: %w", err)
		}
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "localhost"
		}
		pub = registry.NewEtcdRegistry(etcdClient, &cfg.Etcd, hostname, logger)
	case config.HostsBackendFile:
		pub = registry.NewHostsFile(eng, cfg.App.HelperImage, cfg.Hosts.File, logger)
	default:
		pub = registry.Noop{}
	}

	a := NewWithEngine(cfg, eng, pub, afero.NewOsFs(), logger)
	a.etcdClient = etcdClient
	return a, nil
}

// NewWithEngine wires an App around an existing engine and publisher.
func NewWithEngine(cfg *config.Config, eng engine.Engine, pub registry.Publisher, fs afero.Fs, logger zerolog.Logger) *App {
	return &App{
		cfg:        cfg,
		engine:     eng,
		publisher:  pub,
		scanner:    inventory.NewScanner(eng, cfg.App.LabelKey, logger),
		topologies: topology.NewRegistry(),
		fs:         fs,
		out:        os.Stdout,
		in:         os.Stdin,
		logger:     logger,
	}
}

// SetIO redirects the streams used by ps, start and ssh.
func (a *App) SetIO(in io.Reader, out io.Writer) {
	a.in = in
	a.out = out
}

// Topologies is the registry topology implementations are resolved from.
func (a *App) Topologies() *topology.Registry {
	return a.topologies
}

func (a *App) runtime(alwaysPull bool) *cluster.Runtime {
	rt := cluster.NewRuntime(a.engine, a.publisher, a.scanner, a.cfg, a.logger)
	rt.AlwaysPull = alwaysPull
	rt.Out = a.out

	stager := localtime.NewStager(a.fs, a.logger)
	path, err := stager.Stage(a.cfg.App.LocaltimePath, a.cfg.App.ConfigDir)
	if err != nil {
		a.logger.Warn().Err(err).Msgf("Could not stage %s, mounting it directly", a.cfg.App.LocaltimePath)
		path = a.cfg.App.LocaltimePath
	}
	rt.Localtime = path
	return rt
}

// Start brings up the cluster described by def.
func (a *App) Start(ctx context.Context, def *topology.Definition, args topology.StartArgs) (*cluster.Cluster, error) {
	topology.LogMeta(def.Dir, a.logger)

	begin := time.Now()
	t := a.topologies.Resolve(def.Dir)
	c, err := t.Start(ctx, a.runtime(args.AlwaysPull), def, args)
	if err != nil {
		return c, err
	}
	elapsed := time.Since(begin)
	a.logger.Info().Msgf("Cluster started successfully (total time: %dm %ds).",
		int(elapsed.Minutes()), int(elapsed.Seconds())%60)
	return c, nil
}

// Build builds and commits the images of the topology described by def.
func (a *App) Build(ctx context.Context, def *topology.Definition, args topology.BuildArgs) error {
	topology.LogMeta(def.Dir, a.logger)

	begin := time.Now()
	builder := topology.Builder(a.topologies.Resolve(def.Dir))
	if err := builder.Build(ctx, a.runtime(false), def, args); err != nil {
		return err
	}
	elapsed := time.Since(begin)
	a.logger.Info().Msgf("Build successful (total time: %dm %ds).",
		int(elapsed.Minutes()), int(elapsed.Seconds())%60)
	return nil
}

// Nuke removes managed containers, or all containers when all is set.
func (a *App) Nuke(ctx context.Context, dryRun, all bool) (manage.Report, error) {
	m := manage.NewManager(a.engine, a.scanner, a.publisher, dryRun, a.logger)
	return m.Nuke(ctx, all)
}

// Remove tears down the named clusters.
func (a *App) Remove(ctx context.Context, dryRun bool, clusters []string, removeNetworks bool) (manage.Report, error) {
	m := manage.NewManager(a.engine, a.scanner, a.publisher, dryRun, a.logger)
	return m.Remove(ctx, clusters, removeNetworks)
}

// Ps prints one table per running cluster.
func (a *App) Ps(ctx context.Context) error {
	entries, err := a.scanner.Containers(ctx, true)
	if err != nil {
		return err
	}
	_, err = ps.Print(a.out, entries, a.logger)
	return err
}

// Copy copies files between nodes and the local filesystem.
func (a *App) Copy(ctx context.Context, source, destination string) error {
	return cp.NewCopier(a.engine, a.scanner, a.logger).Copy(ctx, source, destination)
}

// SSH opens an interactive login shell on a node and returns its exit code.
func (a *App) SSH(ctx context.Context, node string) (int, error) {
	return ssh.NewShell(a.engine, a.scanner, a.logger).Open(ctx, node, a.in, a.out)
}

func (a *App) Close() error {
	var firstErr error
	if a.engine != nil {
		if err := a.engine.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close docker client: %w", err)
		}
	}
	if a.etcdClient != nil {
		if err := a.etcdClient.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close etcd client: %w", err)
		}
	}
	return firstErr
}
