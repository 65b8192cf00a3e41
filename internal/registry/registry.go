package registry

import (
	"context"

	"github.com/clusterdock/clusterdock/internal/domain"
)

// Publisher makes started nodes resolvable by name from the host.
type Publisher interface {
	Add(ctx context.Context, record domain.Record) error
	Remove(ctx context.Context, fqdn string) error
}

// Noop publishes nothing.
type Noop struct{}

func (Noop) Add(context.Context, domain.Record) error { return nil }
func (Noop) Remove(context.Context, string) error      { return nil }
