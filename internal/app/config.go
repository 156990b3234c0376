package app

import "errors"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	PipelinePath    string // pipeline document (JSON) to execute
	DefinitionsPath string // optional directory of node-definition manifests (HCL)

	ListenAddr string // optional HTTP/WS surface, e.g. ":8090"
	EnvFile    string // optional .env file with endpoint overrides

	LogFormat   string
	LogLevel    string
	HaltOnError bool
}

// NewConfig validates a Config. At least one of a pipeline document or a
// listen address must be given, otherwise there is nothing to do.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.PipelinePath == "" && cfg.ListenAddr == "" {
		return nil, errors.New("either a pipeline path or --listen is required")
	}
	return &cfg, nil
}
