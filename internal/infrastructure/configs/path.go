package configs

import (
	"flag"
	"os"

	"github.com/hilthontt/votehub/internal/infrastructure/env"
)

// DetermineConfigPath resolves the config file from the -config flag, the
// VOTEHUB_CONFIG variable or a list of well known locations. An empty result
// means the service runs on defaults and environment overrides only.
func DetermineConfigPath() string {
	var configPath string

	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.Parse()

	if configPath == "" {
		configPath = env.GetString("VOTEHUB_CONFIG", "")
	}

	if configPath == "" {
		candidates := []string{
			"./config.yaml",
			"./config.yml",
			"../../config.yaml", // keep for local dev
			"/etc/votehub/config.yaml",
			"/app/config.yaml", // common in Docker
		}

		for _, p := range candidates {
			if _, err := os.Stat(p); err == nil {
				configPath = p
				break
			}
		}
	}

	return configPath
}
