package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2/hclsimple"

	"github.com/ifc-lite/modelstore/api"
	"github.com/ifc-lite/modelstore/internal/backend"
)

// Config is the CLI's HCL configuration.
type Config struct {
	Store *StoreConfig `hcl:"store,block"`
}

// StoreConfig selects and parameterizes the cache store backend.
//
//	store "fs" {
//	  dir = "/var/cache/modelstore"
//	}
//
//	store "sqlite" {
//	  path = "/var/cache/modelstore.db"
//	}
type StoreConfig struct {
	Kind string `hcl:"kind,label"`
	Dir  string `hcl:"dir,optional"`
	Path string `hcl:"path,optional"`
}

func loadConfig() (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	var cfg Config
	if err := hclsimple.DecodeFile(configPath, nil, &cfg); err != nil {
		return nil, fmt.Errorf("load config %s: %w", configPath, err)
	}
	return &cfg, nil
}

// openBackend resolves the configured cache backend, defaulting to a
// filesystem store under the user cache directory.
func openBackend() (api.CacheBackend, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	sc := cfg.Store
	if sc == nil {
		dir, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("resolve cache dir: %w", err)
		}
		return backend.OpenDir(filepath.Join(dir, "modelstore"))
	}
	switch sc.Kind {
	case "fs":
		if sc.Dir == "" {
			return nil, fmt.Errorf("store %q: dir is required", sc.Kind)
		}
		return backend.OpenDir(sc.Dir)
	case "sqlite":
		if sc.Path == "" {
			return nil, fmt.Errorf("store %q: path is required", sc.Kind)
		}
		return backend.OpenSQLite(sc.Path)
	default:
		return nil, fmt.Errorf("unknown store kind %q", sc.Kind)
	}
}
