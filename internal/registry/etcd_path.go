package registry

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/clusterdock/clusterdock/internal/util"
)

// skydnsPath is the etcd directory holding the entries of one node name:
// <prefix>/<reversed labels>. Entries below it are named x1, x2, ...
type skydnsPath struct {
	base string
}

func newSkydnsPath(prefix, fqdn string) skydnsPath {
	name := strings.ToLower(strings.TrimSuffix(strings.TrimSpace(fqdn), "."))
	labels := util.Reverse(strings.Split(name, "."))
	return skydnsPath{base: strings.TrimRight(prefix, "/") + "/" + strings.Join(labels, "/")}
}

// Dir is the key prefix for the entries of this name only. The trailing
// slash keeps node-1 from matching node-10.
func (p skydnsPath) Dir() string {
	return p.base + "/"
}

func (p skydnsPath) Entry(index int) string {
	return fmt.Sprintf("%sx%d", p.Dir(), index)
}

// index returns n for a key <Dir>x<n>.
func (p skydnsPath) index(key string) (int, bool) {
	suffix, ok := strings.CutPrefix(key, p.Dir())
	if !ok || !strings.HasPrefix(suffix, "x") {
		return 0, false
	}
	n, err := strconv.Atoi(suffix[1:])
	return n, err == nil
}

// nextEntry returns the first entry key whose index is not in use by keys.
func (p skydnsPath) nextEntry(keys []string) string {
	used := map[int]bool{}
	for _, k := range keys {
		if n, ok := p.index(k); ok {
			used[n] = true
		}
	}
	n := 1
	for used[n] {
		n++
	}
	return p.Entry(n)
}

// fqdnFromKey maps an entry key back to its node name.
func fqdnFromKey(prefix, key string) string {
	rest := strings.TrimPrefix(strings.TrimPrefix(key, strings.TrimRight(prefix, "/")), "/")
	labels := strings.Split(rest, "/")
	if n := len(labels); n > 1 && strings.HasPrefix(labels[n-1], "x") {
		labels = labels[:n-1]
	}
	return strings.Join(util.Reverse(labels), ".")
}
