package domain

import (
	"fmt"
	"strings"
)

// Volume is either a BindMount or an ImageVolumes reference.
type Volume interface {
	isVolume()
	String() string
}

// BindMount mounts a host path into the container.
type BindMount struct {
	Host      string
	Container string
	ReadOnly  bool
}

// ImageVolumes inherits every volume declared by Image.
type ImageVolumes struct {
	Image string
}

func (BindMount) isVolume()    {}
func (ImageVolumes) isVolume() {}

// Bind renders the mount in the engine's "host:container:mode" syntax.
func (b BindMount) Bind() string {
	mode := "rw"
	if b.ReadOnly {
		mode = "ro"
	}
	return fmt.Sprintf("%s:%s:%s", b.Host, b.Container, mode)
}

func (b BindMount) String() string    { return fmt.Sprintf("%s => %s", b.Host, b.Container) }
func (v ImageVolumes) String() string { return "volumes from " + v.Image }

// ParseVolume accepts "/host:/container[:ro|rw]" for bind mounts and anything
// else as an image reference.
func ParseVolume(s string) (Volume, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty volume spec")
	}
	if !strings.HasPrefix(s, "/") {
		return ImageVolumes{Image: s}, nil
	}
	parts := strings.Split(s, ":")
	switch len(parts) {
	case 2:
		return BindMount{Host: parts[0], Container: parts[1]}, nil
	case 3:
		switch parts[2] {
		case "ro":
			return BindMount{Host: parts[0], Container: parts[1], ReadOnly: true}, nil
		case "rw":
			return BindMount{Host: parts[0], Container: parts[1]}, nil
		}
	}
	return nil, fmt.Errorf("invalid bind mount %q (want /host:/container[:ro|rw])", s)
}
