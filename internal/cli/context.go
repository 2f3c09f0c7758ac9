package cli

import (
	"os"

	"loom/internal/config"
)

// CLIContext carries state shared by every command: the loaded
// configuration, the resolved config path and the working directory the
// permission gate is scoped to.
type CLIContext struct {
	Config     *config.Config
	ConfigPath string
	WorkDir    string
	Verbose    bool
	Quiet      bool
}

// NewCLIContext resolves the working directory and wraps the loaded
// configuration.
func NewCLIContext(cfg *config.Config, configPath string, verbose, quiet bool) (*CLIContext, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return &CLIContext{
		Config:     cfg,
		ConfigPath: configPath,
		WorkDir:    wd,
		Verbose:    verbose,
		Quiet:      quiet,
	}, nil
}
