package engine

import (
	"context"
	"io"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
)

// Engine is the subset of the container engine API clusterdock drives. Every
// returned error is an *Error.
type Engine interface {
	ContainerList(ctx context.Context) ([]container.Summary, error)
	ContainerInspect(ctx context.Context, id string) (container.InspectResponse, error)
	ContainerCreate(ctx context.Context, cfg *container.Config, hostCfg *container.HostConfig, netCfg *network.NetworkingConfig, name string) (string, error)
	ContainerStart(ctx context.Context, id string) error
	ContainerWait(ctx context.Context, id string) (int64, error)
	ContainerStop(ctx context.Context, id string) error
	ContainerRemove(ctx context.Context, id string, removeVolumes bool) error
	ContainerCommit(ctx context.Context, id, reference string) (string, error)

	Exec(ctx context.Context, id string, opts ExecOptions, out io.Writer) (int, error)
	ExecInteractive(ctx context.Context, id string, opts ExecOptions, in io.Reader, out io.Writer) (int, error)

	CopyFromContainer(ctx context.Context, id, path string) (io.ReadCloser, error)
	CopyToContainer(ctx context.Context, id, path string, content io.Reader) error

	NetworkCreate(ctx context.Context, name string, labels map[string]string) (string, error)
	NetworkInspect(ctx context.Context, name string) (network.Inspect, error)
	NetworkList(ctx context.Context) ([]network.Summary, error)
	NetworkRemove(ctx context.Context, id string) error

	ImagePull(ctx context.Context, ref string) error
	ImagePush(ctx context.Context, ref string) error

	Close() error
}

// ExecOptions describes one command run inside a container.
type ExecOptions struct {
	Cmd    []string
	User   string
	Detach bool
	Tty    bool
	// ConsoleSize is height, width; only used with Tty.
	ConsoleSize *[2]uint
}
