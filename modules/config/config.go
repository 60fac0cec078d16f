package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"

	"github.com/thebeyondr/sekiva/modules/aggregate"

	"github.com/chebyrash/promise"
	"github.com/kelseyhightower/envconfig"
)

const DATA_DIR = "data"
const CONFIG_DIR = "config"

// JSON file backed configuration. The file is named after T and created from
// the default value on first Init.
type Config[T any] struct {
	defaultValue T
	dataDir      string
	envPrefix    string

	loaded bool
	value  T
}

var _ aggregate.Plugin = &Config[struct{}]{}

func New[T any](defaultValue T, dataDir ...string) *Config[T] {
	dir := DATA_DIR
	if len(dataDir) > 0 && dataDir[0] != "" {
		dir = dataDir[0]
	}
	return &Config[T]{defaultValue: defaultValue, dataDir: dir, value: defaultValue}
}

// Environment variables under prefix override the file on Init,
// e.g. prefix "sekiva" and field DbURI reads SEKIVA_DBURI.
func (c *Config[T]) WithEnv(prefix string) *Config[T] {
	c.envPrefix = prefix
	return c
}

func (c *Config[T]) FilePath() string {
	name := reflect.TypeFor[T]().Name()
	return filepath.Join(c.dataDir, CONFIG_DIR, name+".json")
}

func (c *Config[T]) Init() error {
	b, err := os.ReadFile(c.FilePath())
	if os.IsNotExist(err) {
		err = c.Update(func(t *T) {
			*t = c.defaultValue
		})
		if err != nil {
			return err
		}
	} else if err != nil {
		return err
	} else {
		value := c.defaultValue
		if err := json.Unmarshal(b, &value); err != nil {
			return err
		}
		c.value = value
	}

	if c.envPrefix != "" {
		value := c.value
		if err := envconfig.Process(c.envPrefix, &value); err != nil {
			return err
		}
		c.value = value
	}

	c.loaded = true
	return nil
}

func (c *Config[T]) Start() *promise.Promise[any] {
	return aggregate.Resolved()
}

func (c *Config[T]) Stop() error {
	return nil
}

func (c *Config[T]) Loaded() bool {
	return c.loaded
}

func (c *Config[T]) Get() T {
	return c.value
}

func (c *Config[T]) Update(updater func(*T)) error {
	temp := c.value
	updater(&temp)
	b, err := json.MarshalIndent(temp, "", "  ")
	if err != nil {
		return err
	}
	err = os.MkdirAll(filepath.Dir(c.FilePath()), 0755)
	if err != nil {
		return err
	}
	err = os.WriteFile(c.FilePath(), b, 0644)
	if err != nil {
		return err
	}
	c.value = temp
	return nil
}
