// Package localtime stages the host clock file in the per-user config
// directory so every node can bind-mount the same copy.
package localtime

import (
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

const fileName = "localtime"

type Stager struct {
	fs     afero.Fs
	logger zerolog.Logger
}

func NewStager(fs afero.Fs, logger zerolog.Logger) *Stager {
	return &Stager{fs: fs, logger: logger}
}

// Stage copies source into configDir on first use and returns the staged path.
// An existing staged copy is reused as is.
func (s *Stager) Stage(source, configDir string) (string, error) {
	target := filepath.Join(configDir, fileName)

	exists, err := afero.Exists(s.fs, target)
	if err != nil {
		return "", err
	}
	if exists {
		return target, nil
	}

	data, err := afero.ReadFile(s.fs, source)
	if err != nil {
		return "", fmt.Errorf("read clock file %s: %w", source, err)
	}
	if err := s.fs.MkdirAll(configDir, 0o755); err != nil {
		return "", fmt.Errorf("create config dir %s: %w", configDir, err)
	}
	if err := afero.WriteFile(s.fs, target, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", target, err)
	}
	s.logger.Debug().Msgf("Copied %s to %s", source, target)
	return target, nil
}
