package label

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/clusterdock/clusterdock/internal/version"
)

// Label is the ownership marker attached to every container and network clusterdock creates.
type Label struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Location    string `json:"location"`
	ClusterName string `json:"cluster_name,omitempty"`
}

// New returns the label for the running binary, tagged with clusterName.
func New(clusterName string) Label {
	location, err := os.Executable()
	if err != nil {
		location = ""
	}
	return Label{
		Name:        version.PackageName,
		Version:     version.Version,
		Location:    location,
		ClusterName: clusterName,
	}
}

func Encode(l Label) (string, error) {
	b, err := json.Marshal(l)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func Decode(raw string) (Label, error) {
	var l Label
	if err := json.Unmarshal([]byte(raw), &l); err != nil {
		return Label{}, fmt.Errorf("decode ownership label: %w", err)
	}
	if l.Name == "" {
		return Label{}, fmt.Errorf("decode ownership label: missing package name in %q", raw)
	}
	return l, nil
}

// Labels returns the engine label map carrying l under key.
func Labels(key string, l Label) (map[string]string, error) {
	value, err := Encode(l)
	if err != nil {
		return nil, err
	}
	return map[string]string{key: value}, nil
}

// FromLabels reads the ownership label out of an engine label map. ok is false
// when the key is absent.
func FromLabels(key string, labels map[string]string) (l Label, ok bool, err error) {
	raw, present := labels[key]
	if !present {
		return Label{}, false, nil
	}
	l, err = Decode(raw)
	if err != nil {
		return Label{}, true, err
	}
	return l, true, nil
}
