package api

import "github.com/thebeyondr/sekiva/modules/config"

type ApiConfig struct {
	Host string `envconfig:"api_host"`
	Port int    `envconfig:"api_port"`
	// Origins browsers may call the api from; "*" allows any
	AllowedOrigins []string `envconfig:"api_allowed_origins"`
}

func NewApiConfig(dataDir ...string) *config.Config[ApiConfig] {
	return config.New(ApiConfig{
		Host:           "127.0.0.1",
		Port:           8080,
		AllowedOrigins: []string{"*"},
	}, dataDir...).WithEnv("sekiva")
}
