// Package ps prints managed containers as one table per cluster.
package ps

import (
	"fmt"
	"io"
	"strings"

	"github.com/clusterdock/clusterdock/internal/domain"
	"github.com/clusterdock/clusterdock/internal/inventory"
	"github.com/clusterdock/clusterdock/internal/util"
	"github.com/rs/zerolog"
)

const padding = 6

var headers = []string{"CONTAINER ID", "HOST NAME", "PORTS", "STATUS", "CONTAINER NAME", "VERSION", "IMAGE"}

type row struct {
	cells    []string
	networks string
}

func newRow(e inventory.Entry) row {
	c := e.Container
	ports := util.Map(c.Ports, func(p domain.PortBinding) string {
		return fmt.Sprintf("%s->%s", p.HostPort, p.ContainerPort)
	})
	return row{
		cells:    []string{c.ShortID, c.Hostname, strings.Join(ports, ", "), c.Status, c.Name, e.Label.Version, c.Image},
		networks: strings.Join(c.Networks, ", "),
	}
}

// Print writes the tables for entries to w. Column widths are shared by
// every table. It returns false when there was nothing to list.
func Print(w io.Writer, entries []inventory.Entry, logger zerolog.Logger) (bool, error) {
	managed := util.Filter(entries, func(e inventory.Entry) bool { return e.Managed })
	if len(managed) == 0 {
		logger.Warn().Msg("Didn't find any containers to list")
		return false, nil
	}

	byCluster := util.NewDefaultMap[string](func() []row { return nil })
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, e := range managed {
		r := newRow(e)
		for i, cell := range r.cells {
			widths[i] = max(widths[i], len(cell))
		}
		byCluster.Set(e.ClusterName, append(byCluster.Get(e.ClusterName), r))
	}

	for _, name := range util.SortedKeys(byCluster, func(a, b string) bool { return a < b }) {
		rows := byCluster.Get(name)
		if _, err := fmt.Fprintf(w, "\nFor cluster `%s` on network %s the node(s) are:\n", name, rows[0].networks); err != nil {
			return true, err
		}
		if err := writeLine(w, headers, widths); err != nil {
			return true, err
		}
		for _, r := range rows {
			if err := writeLine(w, r.cells, widths); err != nil {
				return true, err
			}
		}
	}
	_, err := fmt.Fprintln(w)
	return true, err
}

func writeLine(w io.Writer, cells []string, widths []int) error {
	var b strings.Builder
	for i, cell := range cells {
		fmt.Fprintf(&b, "%-*s", widths[i]+padding, cell)
	}
	_, err := fmt.Fprintln(w, strings.TrimRight(b.String(), " "))
	return err
}
