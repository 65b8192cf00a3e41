package domain

// Container is the inventory view of an engine container.
type Container struct {
	ID       string
	ShortID  string
	Name     string
	Hostname string
	Image    string
	Status   string
	Running  bool
	Networks []string
	Ports    []PortBinding
	Labels   map[string]string
}

// PortBinding is a realized container port published on the host.
type PortBinding struct {
	HostPort      string
	ContainerPort string
}
