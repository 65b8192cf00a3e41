package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Port is either an AutoPort or a FixedPort.
type Port interface {
	isPort()
	ContainerPort() int
	String() string
}

// AutoPort exposes a container port on a host port chosen by the engine.
type AutoPort struct {
	Container int
}

// FixedPort binds a container port to a specific host port.
type FixedPort struct {
	Host      int
	Container int
}

func (AutoPort) isPort()  {}
func (FixedPort) isPort() {}

func (p AutoPort) ContainerPort() int  { return p.Container }
func (p FixedPort) ContainerPort() int { return p.Container }

func (p AutoPort) String() string  { return strconv.Itoa(p.Container) }
func (p FixedPort) String() string { return fmt.Sprintf("%d->%d", p.Host, p.Container) }

// ParsePort accepts "8080" or "18080->8080" (host->container).
func ParsePort(s string) (Port, error) {
	s = strings.TrimSpace(s)
	if host, container, ok := strings.Cut(s, "->"); ok {
		h, err := parsePortNumber(host)
		if err != nil {
			return nil, err
		}
		c, err := parsePortNumber(container)
		if err != nil {
			return nil, err
		}
		return FixedPort{Host: h, Container: c}, nil
	}
	c, err := parsePortNumber(s)
	if err != nil {
		return nil, err
	}
	return AutoPort{Container: c}, nil
}

func parsePortNumber(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid port %q", s)
	}
	if n < 1 || n > 65535 {
		return 0, fmt.Errorf("port %d out of range", n)
	}
	return n, nil
}

// PortSpec is a port publication request for one node, as given on the command line.
type PortSpec struct {
	Node string
	Port Port
}

// ParsePortSpec accepts "<node>:<port>" or "<node>:<host port>-><port>".
func ParsePortSpec(s string) (PortSpec, error) {
	node, port, ok := strings.Cut(s, ":")
	if !ok || node == "" {
		return PortSpec{}, fmt.Errorf("invalid port spec %q (want <node>:<port> or <node>:<host port>-><port>)", s)
	}
	p, err := ParsePort(port)
	if err != nil {
		return PortSpec{}, fmt.Errorf("invalid port spec %q: %w", s, err)
	}
	return PortSpec{Node: node, Port: p}, nil
}
