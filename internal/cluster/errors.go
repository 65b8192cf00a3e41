package cluster

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// DuplicateHostnamesError reports node hostnames already used as aliases on a
// network, or repeated within one cluster when Network is empty.
type DuplicateHostnamesError struct {
	Duplicates []string
	Network    string
}

func (e *DuplicateHostnamesError) Error() string {
	if e.Network == "" {
		return fmt.Sprintf("hostnames repeated within the cluster: %s", strings.Join(e.Duplicates, ", "))
	}
	return fmt.Sprintf("hostnames already in use on network %s: %s", e.Network, strings.Join(e.Duplicates, ", "))
}

// NewDuplicateHostnamesError sorts duplicates so the message is stable.
func NewDuplicateHostnamesError(duplicates []string, network string) *DuplicateHostnamesError {
	sorted := append([]string(nil), duplicates...)
	sort.Strings(sorted)
	return &DuplicateHostnamesError{Duplicates: sorted, Network: network}
}

// DuplicateClusterNameError is returned when a cluster name is already taken on the host.
type DuplicateClusterNameError struct {
	Name     string
	Clusters []string
}

func (e *DuplicateClusterNameError) Error() string {
	return fmt.Sprintf("cluster name %s already in use (existing clusters: %s)", e.Name, strings.Join(e.Clusters, ", "))
}

func NewDuplicateClusterNameError(name string, clusters []string) *DuplicateClusterNameError {
	sorted := append([]string(nil), clusters...)
	sort.Strings(sorted)
	return &DuplicateClusterNameError{Name: name, Clusters: sorted}
}

// TimeoutError is returned by WaitForCondition when the condition never held.
type TimeoutError struct {
	What    string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out after %s waiting for %s", e.Timeout, e.What)
}

func NewTimeoutError(what string, timeout time.Duration) *TimeoutError {
	return &TimeoutError{What: what, Timeout: timeout}
}

// NodeNotFoundError is returned when no running container answers to a hostname.
type NodeNotFoundError struct {
	Hostname string
}

func (e *NodeNotFoundError) Error() string {
	return fmt.Sprintf("no running node with hostname %s", e.Hostname)
}

func NewNodeNotFoundError(hostname string) *NodeNotFoundError {
	return &NodeNotFoundError{Hostname: hostname}
}
