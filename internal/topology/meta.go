package topology

import (
	"github.com/go-git/go-git/v5"
	"github.com/rs/zerolog"
)

// GitHash returns the short HEAD hash of the repository at dir.
func GitHash(dir string) (string, error) {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return "", err
	}
	head, err := repo.Head()
	if err != nil {
		return "", err
	}
	return head.Hash().String()[:7], nil
}

// LogMeta logs the topology's git hash when dir is a git checkout.
func LogMeta(dir string, logger zerolog.Logger) {
	hash, err := GitHash(dir)
	if err != nil {
		logger.Debug().Err(err).Msgf("No git metadata for %s", dir)
		return
	}
	logger.Info().Msgf("%s has Git hash %s", dir, hash)
}
