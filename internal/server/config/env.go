package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/dmitrijs2005/contactkeeper/internal/flagx"
)

const defaultEnvFile = ".env"

// parseEnv loads the dotenv file (-env-file, or ./.env when present) into the
// process environment and then overlays every variable that is set onto cfg.
// Variables already exported in the environment win over the dotenv file.
func parseEnv(cfg *Config, args []string) error {
	path := flagx.EnvFilePath(args)
	explicit := path != ""
	if !explicit {
		path = defaultEnvFile
	}

	if err := godotenv.Load(path); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
