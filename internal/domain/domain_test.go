package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePort(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Port
		wantErr bool
	}{
		{name: "auto", input: "8080", want: AutoPort{Container: 8080}},
		{name: "fixed", input: "18080->8080", want: FixedPort{Host: 18080, Container: 8080}},
		{name: "fixed with spaces", input: " 1 -> 2 ", want: FixedPort{Host: 1, Container: 2}},
		{name: "not a number", input: "http", wantErr: true},
		{name: "out of range", input: "70000", wantErr: true},
		{name: "bad host side", input: "x->80", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePort(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParsePortSpec(t *testing.T) {
	spec, err := ParsePortSpec("node-1:18080->8080")
	require.NoError(t, err)
	assert.Equal(t, "node-1", spec.Node)
	assert.Equal(t, FixedPort{Host: 18080, Container: 8080}, spec.Port)

	spec, err = ParsePortSpec("node-2:7180")
	require.NoError(t, err)
	assert.Equal(t, AutoPort{Container: 7180}, spec.Port)

	_, err = ParsePortSpec("7180")
	assert.Error(t, err)
	_, err = ParsePortSpec(":7180")
	assert.Error(t, err)
}

func TestParseVolume(t *testing.T) {
	tests := []struct {
		input   string
		want    Volume
		wantErr bool
	}{
		{input: "/var/www:/var/www", want: BindMount{Host: "/var/www", Container: "/var/www"}},
		{input: "/etc/localtime:/etc/localtime:ro", want: BindMount{Host: "/etc/localtime", Container: "/etc/localtime", ReadOnly: true}},
		{input: "my/secret-image:latest", want: ImageVolumes{Image: "my/secret-image:latest"}},
		{input: "/a:/b:zz", wantErr: true},
		{input: "/only-host", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseVolume(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBindMountBind(t *testing.T) {
	assert.Equal(t, "/a:/b:rw", BindMount{Host: "/a", Container: "/b"}.Bind())
	assert.Equal(t, "/a:/b:ro", BindMount{Host: "/a", Container: "/b", ReadOnly: true}.Bind())
}

func TestNewA(t *testing.T) {
	r, err := NewA("node-1.cluster", "172.18.0.2")
	require.NoError(t, err)
	assert.Equal(t, "[A] node-1.cluster -> 172.18.0.2", r.Render())

	_, err = NewA("node-1.cluster", "::1")
	assert.Error(t, err)
	_, err = NewA("-bad", "10.0.0.1")
	assert.Error(t, err)
}

func TestHostnames(t *testing.T) {
	assert.True(t, ValidHostname("node-1"))
	assert.True(t, ValidHostname("node-1.my_network"))
	assert.False(t, ValidHostname(""))
	assert.False(t, ValidHostname("node 1"))
	assert.Equal(t, "node-1", ShortName("node-1.cluster"))
	assert.Equal(t, "node-1", ShortName("node-1"))
}
