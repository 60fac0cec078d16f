package db

import "github.com/thebeyondr/sekiva/modules/config"

type DbConfig struct {
	DbURI  string
	DbName string
}

func NewDbConfig(dataDir ...string) *config.Config[DbConfig] {
	return config.New(DbConfig{
		DbURI:  "mongodb://localhost:27017",
		DbName: "sekiva",
	}, dataDir...).WithEnv("sekiva")
}
