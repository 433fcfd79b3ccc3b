package node

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Klingon-tech/cellwallet/config"
	klog "github.com/Klingon-tech/cellwallet/internal/log"
	"github.com/Klingon-tech/cellwallet/internal/storage"
)

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

// loadGenesis returns the built-in devnet genesis, or the one in path.
func loadGenesis(path string) (*config.Genesis, error) {
	if path == "" {
		return config.DevnetGenesis(), nil
	}
	path = expandHome(path)
	g, err := config.LoadGenesis(path)
	if err != nil {
		return nil, fmt.Errorf("load genesis %s: %w", path, err)
	}
	return g, nil
}

// openStorage opens the configured cell store backend.
func openStorage(cfg *config.Config) (storage.DB, error) {
	switch cfg.Ledger.Backend {
	case config.BackendMemory:
		return storage.NewMemory(), nil
	case config.BackendBadger, "":
		dir := cfg.CellsDir()
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating cells dir: %w", err)
		}
		db, err := storage.NewBadger(dir, klog.Storage)
		if err != nil {
			return nil, fmt.Errorf("open database at %s: %w", dir, err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.Ledger.Backend)
	}
}
