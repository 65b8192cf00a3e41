package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	dockerCli "github.com/docker/docker/client"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/rs/zerolog"
)

const defaultNetworkDriver = "bridge"

// Docker implements Engine on top of the Docker remote API.
type Docker struct {
	cli    dockerClient
	logger zerolog.Logger
}

// NewDockerFromEnv connects using DOCKER_HOST and friends.
func NewDockerFromEnv(logger zerolog.Logger) (*Docker, error) {
	cli, err := dockerCli.NewClientWithOpts(dockerCli.FromEnv, dockerCli.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return NewDocker(cli, logger), nil
}

func NewDocker(cli dockerClient, logger zerolog.Logger) *Docker {
	return &Docker{
		cli:    cli,
		logger: logger,
	}
}

func (d *Docker) ContainerList(ctx context.Context) ([]container.Summary, error) {
	containers, err := d.cli.ContainerList(ctx, container.ListOptions{All: true})
	return containers, classify("list containers", err)
}

func (d *Docker) ContainerInspect(ctx context.Context, id string) (container.InspectResponse, error) {
	resp, err := d.cli.ContainerInspect(ctx, id)
	return resp, classify("inspect container "+id, err)
}

func (d *Docker) ContainerCreate(ctx context.Context, cfg *container.Config, hostCfg *container.HostConfig, netCfg *network.NetworkingConfig, name string) (string, error) {
	resp, err := d.cli.ContainerCreate(ctx, cfg, hostCfg, netCfg, nil, name)
	if err != nil {
		return "", classify("create container from "+cfg.Image, err)
	}
	for _, w := range resp.Warnings {
		d.logger.Warn().Str("image", cfg.Image).Msg(w)
	}
	return resp.ID, nil
}

func (d *Docker) ContainerStart(ctx context.Context, id string) error {
	return classify("start container "+id, d.cli.ContainerStart(ctx, id, container.StartOptions{}))
}

// ContainerWait blocks until the container stops and returns its exit status.
func (d *Docker) ContainerWait(ctx context.Context, id string) (int64, error) {
	respCh, errCh := d.cli.ContainerWait(ctx, id, container.WaitConditionNotRunning)
	select {
	case resp := <-respCh:
		if resp.Error != nil {
			return resp.StatusCode, NewError(KindOther, "wait container "+id, fmt.Errorf("%s", resp.Error.Message))
		}
		return resp.StatusCode, nil
	case err := <-errCh:
		return 0, classify("wait container "+id, err)
	case <-ctx.Done():
		return 0, NewError(KindOther, "wait container "+id, ctx.Err())
	}
}

func (d *Docker) ContainerStop(ctx context.Context, id string) error {
	return classify("stop container "+id, d.cli.ContainerStop(ctx, id, container.StopOptions{}))
}

func (d *Docker) ContainerRemove(ctx context.Context, id string, removeVolumes bool) error {
	opts := container.RemoveOptions{RemoveVolumes: removeVolumes, Force: true}
	return classify("remove container "+id, d.cli.ContainerRemove(ctx, id, opts))
}

func (d *Docker) ContainerCommit(ctx context.Context, id, reference string) (string, error) {
	resp, err := d.cli.ContainerCommit(ctx, id, container.CommitOptions{Reference: reference})
	if err != nil {
		return "", classify("commit container "+id, err)
	}
	return resp.ID, nil
}

// Exec runs opts.Cmd inside the container, copying its combined output to out as
// it arrives. Detached commands return immediately with exit code 0.
func (d *Docker) Exec(ctx context.Context, id string, opts ExecOptions, out io.Writer) (int, error) {
	execID, err := d.execCreate(ctx, id, opts, false)
	if err != nil {
		return 0, err
	}

	if opts.Detach {
		err := d.cli.ContainerExecStart(ctx, execID, container.ExecStartOptions{Detach: true})
		return 0, classify("start exec "+execID, err)
	}

	hijacked, err := d.cli.ContainerExecAttach(ctx, execID, container.ExecAttachOptions{})
	if err != nil {
		return 0, classify("attach exec "+execID, err)
	}
	defer hijacked.Close()

	if out == nil {
		out = io.Discard
	}
	if _, err := stdcopy.StdCopy(out, out, hijacked.Reader); err != nil {
		return 0, NewError(KindOther, "read exec output "+execID, err)
	}

	return d.execExitCode(ctx, execID)
}

// ExecInteractive runs opts.Cmd with a TTY wired to in and out. The caller owns
// the local terminal state. The console size is fixed at opts.ConsoleSize;
// later terminal resizes are not forwarded. A read from in that is still
// blocked when the session ends is discarded once it returns.
func (d *Docker) ExecInteractive(ctx context.Context, id string, opts ExecOptions, in io.Reader, out io.Writer) (int, error) {
	opts.Tty = true
	execID, err := d.execCreate(ctx, id, opts, true)
	if err != nil {
		return 0, err
	}

	hijacked, err := d.cli.ContainerExecAttach(ctx, execID, container.ExecAttachOptions{Tty: true, ConsoleSize: opts.ConsoleSize})
	if err != nil {
		return 0, classify("attach exec "+execID, err)
	}
	defer hijacked.Close()

	stdin := newSessionReader(in)
	defer stdin.end()
	go func() {
		_, _ = io.Copy(hijacked.Conn, stdin)
		_ = hijacked.CloseWrite()
	}()

	if _, err := io.Copy(out, hijacked.Reader); err != nil {
		return 0, NewError(KindOther, "read exec output "+execID, err)
	}

	return d.execExitCode(ctx, execID)
}

// sessionReader reports EOF once its session has ended, so the copy feeding
// the exec stops at the next read instead of writing to a closed connection.
type sessionReader struct {
	r    io.Reader
	done chan struct{}
	once sync.Once
}

func newSessionReader(r io.Reader) *sessionReader {
	return &sessionReader{r: r, done: make(chan struct{})}
}

func (s *sessionReader) Read(p []byte) (int, error) {
	select {
	case <-s.done:
		return 0, io.EOF
	default:
	}
	n, err := s.r.Read(p)
	select {
	case <-s.done:
		return 0, io.EOF
	default:
		return n, err
	}
}

func (s *sessionReader) end() {
	s.once.Do(func() { close(s.done) })
}

func (d *Docker) execCreate(ctx context.Context, id string, opts ExecOptions, stdin bool) (string, error) {
	resp, err := d.cli.ContainerExecCreate(ctx, id, container.ExecOptions{
		User:         opts.User,
		Tty:          opts.Tty,
		ConsoleSize:  opts.ConsoleSize,
		AttachStdin:  stdin,
		AttachStdout: !opts.Detach,
		AttachStderr: !opts.Detach,
		Detach:       opts.Detach,
		Cmd:          opts.Cmd,
	})
	if err != nil {
		return "", classify("create exec in "+id, err)
	}
	return resp.ID, nil
}

func (d *Docker) execExitCode(ctx context.Context, execID string) (int, error) {
	for {
		inspect, err := d.cli.ContainerExecInspect(ctx, execID)
		if err != nil {
			return 0, classify("inspect exec "+execID, err)
		}
		if !inspect.Running {
			return inspect.ExitCode, nil
		}
		select {
		case <-ctx.Done():
			return 0, NewError(KindOther, "inspect exec "+execID, ctx.Err())
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func (d *Docker) CopyFromContainer(ctx context.Context, id, path string) (io.ReadCloser, error) {
	rc, _, err := d.cli.CopyFromContainer(ctx, id, path)
	if err != nil {
		return nil, classify(fmt.Sprintf("copy %s from container %s", path, id), err)
	}
	return rc, nil
}

func (d *Docker) CopyToContainer(ctx context.Context, id, path string, content io.Reader) error {
	err := d.cli.CopyToContainer(ctx, id, path, content, container.CopyToContainerOptions{})
	return classify(fmt.Sprintf("copy to %s in container %s", path, id), err)
}

func (d *Docker) NetworkCreate(ctx context.Context, name string, labels map[string]string) (string, error) {
	resp, err := d.cli.NetworkCreate(ctx, name, network.CreateOptions{
		Driver: defaultNetworkDriver,
		Labels: labels,
	})
	if err != nil {
		return "", classify("create network "+name, err)
	}
	if resp.Warning != "" {
		d.logger.Warn().Str("network", name).Msg(resp.Warning)
	}
	return resp.ID, nil
}

func (d *Docker) NetworkInspect(ctx context.Context, name string) (network.Inspect, error) {
	resp, err := d.cli.NetworkInspect(ctx, name, network.InspectOptions{})
	return resp, classify("inspect network "+name, err)
}

func (d *Docker) NetworkList(ctx context.Context) ([]network.Summary, error) {
	networks, err := d.cli.NetworkList(ctx, network.ListOptions{})
	return networks, classify("list networks", err)
}

func (d *Docker) NetworkRemove(ctx context.Context, id string) error {
	return classify("remove network "+id, d.cli.NetworkRemove(ctx, id))
}

func (d *Docker) ImagePull(ctx context.Context, ref string) error {
	rc, err := d.cli.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return classify("pull image "+ref, err)
	}
	defer rc.Close()
	return d.drainProgress("pull image "+ref, rc)
}

func (d *Docker) ImagePush(ctx context.Context, ref string) error {
	// The daemon rejects pushes without an auth header; an empty config is enough for
	// registries that rely on the daemon's stored credentials.
	rc, err := d.cli.ImagePush(ctx, ref, image.PushOptions{RegistryAuth: "e30="})
	if err != nil {
		return classify("push image "+ref, err)
	}
	defer rc.Close()
	return d.drainProgress("push image "+ref, rc)
}

// drainProgress consumes a JSON progress stream, logging it at debug level and
// surfacing the first reported error.
func (d *Docker) drainProgress(op string, r io.Reader) error {
	if err := jsonmessage.DisplayJSONMessagesStream(r, debugWriter{d.logger}, 0, false, nil); err != nil {
		return NewError(KindOther, op, err)
	}
	return nil
}

// debugWriter logs each written line at debug level.
type debugWriter struct {
	logger zerolog.Logger
}

func (w debugWriter) Write(p []byte) (int, error) {
	for _, line := range bytes.Split(p, []byte("\n")) {
		if line = bytes.TrimSpace(line); len(line) > 0 {
			w.logger.Debug().Msg(string(line))
		}
	}
	return len(p), nil
}

func (d *Docker) Close() error {
	return d.cli.Close()
}
