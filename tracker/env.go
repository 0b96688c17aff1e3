package tracker

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// Environment variables selecting the tracking backend.
const (
	EnvTrackerURL     = "TRAINFLOW_TRACKER_URL"
	EnvTrackerAPIKey  = "TRAINFLOW_TRACKER_API_KEY"
	EnvTrackerProject = "TRAINFLOW_TRACKER_PROJECT"
)

// localStoreFile is the sqlite file kept under the run's write path.
const localStoreFile = "run_history.db"

// NewFromEnv picks the tracking backend from the environment: a remote
// client when TRAINFLOW_TRACKER_URL is set, otherwise the offline sqlite
// store under writePath.
func NewFromEnv(writePath string, logger *zap.Logger) (Client, error) {
	project := os.Getenv(EnvTrackerProject)
	if project == "" {
		project = DefaultProject
	}

	if url := os.Getenv(EnvTrackerURL); url != "" {
		return NewHTTPClient(HTTPOptions{
			BaseURL: url,
			APIKey:  os.Getenv(EnvTrackerAPIKey),
			Project: project,
		}, logger), nil
	}

	return OpenLocal(filepath.Join(writePath, localStoreFile), project, logger)
}
