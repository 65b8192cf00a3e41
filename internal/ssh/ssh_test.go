package ssh

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/clusterdock/clusterdock/internal/cluster"
	"github.com/clusterdock/clusterdock/internal/engine"
	"github.com/clusterdock/clusterdock/internal/engine/enginetest"
	"github.com/clusterdock/clusterdock/internal/inventory"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenPicksShell(t *testing.T) {
	tests := []struct {
		name      string
		hasBash   bool
		wantShell string
	}{
		{name: "bash present", hasBash: true, wantShell: "/bin/bash"},
		{name: "falls back to sh", hasBash: false, wantShell: "/bin/sh"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := enginetest.NewFake()
			f.AddContainer("c_1", "node-1.cluster", nil, true, map[string]string{"cluster": "node-1"})
			var interactive []string
			f.ExecHandler = func(_ *enginetest.Container, opts engine.ExecOptions) (string, int) {
				if opts.Cmd[0] == "test" {
					if tt.hasBash {
						return "", 0
					}
					return "", 1
				}
				interactive = opts.Cmd
				return "bye\n", 7
			}
			sh := NewShell(f, inventory.NewScanner(f, "clusterdock", zerolog.Nop()), zerolog.Nop())

			var out bytes.Buffer
			code, err := sh.Open(context.Background(), "node-1", strings.NewReader("exit\n"), &out)
			require.NoError(t, err)
			assert.Equal(t, 7, code)
			assert.Equal(t, []string{tt.wantShell, "-l"}, interactive)
			assert.Equal(t, "bye\n", out.String())
		})
	}
}

func TestOpenMissingNode(t *testing.T) {
	f := enginetest.NewFake()
	sh := NewShell(f, inventory.NewScanner(f, "clusterdock", zerolog.Nop()), zerolog.Nop())
	_, err := sh.Open(context.Background(), "node-1", strings.NewReader(""), &bytes.Buffer{})
	var nf *cluster.NodeNotFoundError
	assert.ErrorAs(t, err, &nf)
}
