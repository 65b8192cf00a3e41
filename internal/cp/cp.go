// Package cp copies files and directories between the local filesystem and
// cluster nodes, or between two nodes.
package cp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/clusterdock/clusterdock/internal/domain"
	"github.com/clusterdock/clusterdock/internal/engine"
	"github.com/docker/docker/pkg/archive"
	"github.com/rs/zerolog"
)

// NodeFinder resolves a hostname to its running container.
type NodeFinder interface {
	FindByHostname(ctx context.Context, hostname string) (domain.Container, error)
}

// Endpoint is either a local path or <hostname>:<path> on a node.
type Endpoint struct {
	Host string
	Path string
}

func (e Endpoint) Remote() bool {
	return e.Host != ""
}

func (e Endpoint) String() string {
	if e.Remote() {
		return e.Host + ":" + e.Path
	}
	return e.Path
}

func ParseEndpoint(s string) Endpoint {
	if host, path, ok := strings.Cut(s, ":"); ok {
		return Endpoint{Host: host, Path: path}
	}
	return Endpoint{Path: s}
}

// InvalidCopyError rejects a copy request before anything is touched.
type InvalidCopyError struct {
	Reason string
}

func (e *InvalidCopyError) Error() string {
	return "invalid copy: " + e.Reason
}

func NewInvalidCopyError(reason string) *InvalidCopyError {
	return &InvalidCopyError{Reason: reason}
}

// Validate parses source and destination and rejects identical endpoints and
// local-to-local copies.
func Validate(source, destination string) (Endpoint, Endpoint, error) {
	if source == destination {
		return Endpoint{}, Endpoint{}, NewInvalidCopyError("cannot have the same source and destination")
	}
	src, dst := ParseEndpoint(source), ParseEndpoint(destination)
	for _, e := range []Endpoint{src, dst} {
		if e.Remote() && e.Path == "" {
			return Endpoint{}, Endpoint{}, NewInvalidCopyError(fmt.Sprintf("missing path for node %s", e.Host))
		}
	}
	if !src.Remote() && !dst.Remote() {
		return Endpoint{}, Endpoint{}, NewInvalidCopyError("source node FQDN or destination node FQDN required")
	}
	return src, dst, nil
}

type Copier struct {
	engine engine.Engine
	finder NodeFinder
	logger zerolog.Logger
}

func NewCopier(eng engine.Engine, finder NodeFinder, logger zerolog.Logger) *Copier {
	return &Copier{engine: eng, finder: finder, logger: logger}
}

func (c *Copier) Copy(ctx context.Context, source, destination string) error {
	src, dst, err := Validate(source, destination)
	if err != nil {
		return err
	}

	switch {
	case src.Remote() && dst.Remote():
		return c.nodeToNode(ctx, src, dst)
	case src.Remote():
		return c.nodeToLocal(ctx, src, dst.Path)
	default:
		return c.localToNode(ctx, src.Path, dst)
	}
}

func (c *Copier) nodeToNode(ctx context.Context, src, dst Endpoint) error {
	from, err := c.finder.FindByHostname(ctx, src.Host)
	if err != nil {
		return err
	}
	to, err := c.finder.FindByHostname(ctx, dst.Host)
	if err != nil {
		return err
	}
	c.logger.Debug().Msgf("Copying %s to %s ...", src, dst)

	rc, err := c.engine.CopyFromContainer(ctx, from.ID, src.Path)
	if err != nil {
		return fmt.Errorf("read %s: %w", src, err)
	}
	defer rc.Close()
	if err := c.engine.CopyToContainer(ctx, to.ID, dst.Path, rc); err != nil {
		return fmt.Errorf("write %s: %w", dst, err)
	}
	return nil
}

func (c *Copier) nodeToLocal(ctx context.Context, src Endpoint, dest string) error {
	from, err := c.finder.FindByHostname(ctx, src.Host)
	if err != nil {
		return err
	}
	c.logger.Debug().Msgf("Copying %s to %s ...", src, dest)

	rc, err := c.engine.CopyFromContainer(ctx, from.ID, src.Path)
	if err != nil {
		return fmt.Errorf("read %s: %w", src, err)
	}
	defer rc.Close()
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}
	return archive.Untar(rc, dest, &archive.TarOptions{NoLchown: true})
}

func (c *Copier) localToNode(ctx context.Context, source string, dst Endpoint) error {
	to, err := c.finder.FindByHostname(ctx, dst.Host)
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(source)
	if err != nil {
		return err
	}
	if _, err := os.Stat(abs); err != nil {
		return err
	}
	c.logger.Debug().Msgf("Copying %s to %s ...", source, dst)

	rc, err := archive.TarWithOptions(filepath.Dir(abs), &archive.TarOptions{
		IncludeFiles: []string{filepath.Base(abs)},
	})
	if err != nil {
		return fmt.Errorf("pack %s: %w", source, err)
	}
	defer rc.Close()
	return c.engine.CopyToContainer(ctx, to.ID, dst.Path, rc)
}
