package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/clusterdock/clusterdock/internal/config"
	"github.com/clusterdock/clusterdock/internal/domain"
	"github.com/rs/zerolog"
	clientv3 "go.etcd.io/etcd/client/v3"
)

type etcdClient interface {
	Get(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.GetResponse, error)
	Put(ctx context.Context, key, val string, opts ...clientv3.OpOption) (*clientv3.PutResponse, error)
	Delete(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.DeleteResponse, error)
}

// EtcdRegistry publishes node addresses in the SkyDNS layout so a CoreDNS
// instance on the host resolves cluster FQDNs.
type EtcdRegistry struct {
	client   etcdClient
	cfg      *config.EtcdConfig
	hostname string
	logger   zerolog.Logger
	now      func() time.Time
}

func NewEtcdRegistry(client etcdClient, cfg *config.EtcdConfig, hostname string, logger zerolog.Logger) *EtcdRegistry {
	return &EtcdRegistry{
		client:   client,
		cfg:      cfg,
		hostname: hostname,
		logger:   logger,
		now:      time.Now,
	}
}

// nextKey returns the first free entry key for fqdn.
func (er *EtcdRegistry) nextKey(ctx context.Context, fqdn string) (string, error) {
	path := newSkydnsPath(er.cfg.PathPrefix, fqdn)
	resp, err := er.client.Get(ctx, path.Dir(), clientv3.WithPrefix(), clientv3.WithKeysOnly())
	if err != nil {
		return "", err
	}
	keys := make([]string, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		keys = append(keys, string(kv.Key))
	}
	return path.nextEntry(keys), nil
}

// Add stores the record under the next free index for its name.
func (er *EtcdRegistry) Add(ctx context.Context, rec domain.Record) error {
	key, err := er.nextKey(ctx, rec.Name)
	if err != nil {
		return fmt.Errorf("find etcd key for %s: %w", rec.Name, err)
	}
	value, err := marshalEtcdValue(rec, er.hostname, er.now())
	if err != nil {
		return err
	}
	if _, err := er.client.Put(ctx, key, value); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	er.logger.Debug().Msgf("[etcd_registry] Registered %s at %s", rec.Render(), key)
	return nil
}

// Remove deletes every clusterdock-owned entry for fqdn.
func (er *EtcdRegistry) Remove(ctx context.Context, fqdn string) error {
	path := newSkydnsPath(er.cfg.PathPrefix, fqdn)
	resp, err := er.client.Get(ctx, path.Dir(), clientv3.WithPrefix())
	if err != nil {
		return err
	}
	for _, kv := range resp.Kvs {
		keyStr := string(kv.Key)
		_, wire, err := unmarshalEtcdValue(keyStr, string(kv.Value), er.cfg.PathPrefix)
		if err != nil {
			er.logger.Warn().Err(err).Msgf("[etcd_registry] Could not parse key %s", keyStr)
			continue
		}
		if wire.Owner != ownerName {
			continue
		}
		if _, err := er.client.Delete(ctx, keyStr); err != nil {
			er.logger.Warn().Err(err).Msgf("[etcd_registry] Failed to delete key %s", keyStr)
			return err
		}
		er.logger.Debug().Msgf("[etcd_registry] Deleted key %s", keyStr)
	}
	return nil
}

// List returns every clusterdock-owned record under the configured prefix.
func (er *EtcdRegistry) List(ctx context.Context) ([]domain.Record, error) {
	resp, err := er.client.Get(ctx, er.cfg.PathPrefix, clientv3.WithPrefix())
	if err != nil {
		return nil, err
	}
	var records []domain.Record
	for _, kv := range resp.Kvs {
		keyStr := string(kv.Key)
		rec, wire, err := unmarshalEtcdValue(keyStr, string(kv.Value), er.cfg.PathPrefix)
		if err != nil {
			er.logger.Debug().Err(err).Msgf("[etcd_registry] Skipping key: %s", keyStr)
			continue
		}
		if wire.Owner == ownerName {
			records = append(records, rec)
		}
	}
	return records, nil
}
