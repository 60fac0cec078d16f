package zk

import (
	"path/filepath"

	"github.com/thebeyondr/sekiva/modules/config"
)

type EngineConfig struct {
	Nodes int `envconfig:"zk_nodes"`
	// Relative to the data directory unless absolute
	ShareDir string `envconfig:"zk_share_dir"`
}

func NewEngineConfig(dataDir ...string) *config.Config[EngineConfig] {
	return config.New(EngineConfig{
		Nodes:    3,
		ShareDir: "zk",
	}, dataDir...).WithEnv("sekiva")
}

func (c EngineConfig) ShareDirIn(dataDir string) string {
	if filepath.IsAbs(c.ShareDir) {
		return c.ShareDir
	}
	return filepath.Join(dataDir, c.ShareDir)
}
