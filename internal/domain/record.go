package domain

import (
	"fmt"
	"net"
	"regexp"
	"strings"
)

// Record is an address record published for a started node.
type Record struct {
	Name  string
	Value string
}

func NewA(name, ipv4 string) (Record, error) {
	if !ValidHostname(name) {
		return Record{}, fmt.Errorf("invalid A name: %s", name)
	}

	ip := net.ParseIP(ipv4)
	if ip == nil || ip.To4() == nil {
		return Record{}, fmt.Errorf("invalid IPv4: %s", ipv4)
	}

	return Record{
		Name:  name,
		Value: ipv4,
	}, nil
}

func (r Record) Render() string {
	if r.Value == "" {
		return fmt.Sprintf("[A] %s -> <no value>", r.Name)
	}
	return fmt.Sprintf("[A] %s -> %s", r.Name, r.Value)
}

func (r Record) Equal(o Record) bool {
	return r.Name == o.Name && r.Value == o.Value
}

var hostnameRegexp = regexp.MustCompile(`^[a-zA-Z0-9](?:[a-zA-Z0-9_-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9_-]{0,61}[a-zA-Z0-9])?)*$`)

// ValidHostname reports whether h can be used as a node hostname or FQDN.
// Underscores are accepted because network names commonly carry them.
func ValidHostname(h string) bool {
	return len(h) > 0 && len(h) <= 255 && hostnameRegexp.MatchString(h)
}

// ShortName returns the first DNS label of a hostname.
func ShortName(h string) string {
	name, _, _ := strings.Cut(h, ".")
	return name
}
