package blockproducer

import "github.com/thebeyondr/sekiva/modules/config"

type ProducerConfig struct {
	// cron expression, e.g. "@every 3s"
	Schedule string `envconfig:"block_schedule"`
}

func NewProducerConfig(dataDir ...string) *config.Config[ProducerConfig] {
	return config.New(ProducerConfig{
		Schedule: "@every 3s",
	}, dataDir...).WithEnv("sekiva")
}
