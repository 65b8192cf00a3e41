package registry

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/clusterdock/clusterdock/internal/domain"
)

// etcdRecord is the SkyDNS value CoreDNS's etcd plugin reads; the owner fields
// let clusterdock find its own entries again.
type etcdRecord struct {
	Host          string    `json:"host"`
	RecordType    string    `json:"record_type"`
	Owner         string    `json:"owner"`
	OwnerHostname string    `json:"owner_hostname"`
	Created       time.Time `json:"created"`
}

const ownerName = "clusterdock"

func marshalEtcdValue(rec domain.Record, hostname string, created time.Time) (string, error) {
	wire := etcdRecord{
		Host:          rec.Value,
		RecordType:    "A",
		Owner:         ownerName,
		OwnerHostname: hostname,
		Created:       created,
	}
	b, err := json.Marshal(wire)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalEtcdValue(key string, raw string, prefix string) (domain.Record, etcdRecord, error) {
	fqdn := fqdnFromKey(prefix, key)

	var wire etcdRecord
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return domain.Record{}, etcdRecord{}, fmt.Errorf("decode etcd value: %w", err)
	}

	rec, err := domain.NewA(fqdn, wire.Host)
	if err != nil {
		return domain.Record{}, etcdRecord{}, err
	}
	return rec, wire, nil
}
