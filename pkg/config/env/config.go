// Package env sources config values from environment variables.
package env

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/code-payments/square-program/pkg/config"
	"github.com/code-payments/square-program/pkg/config/wrapper"
)

type variable struct {
	name string
}

// NewConfig returns a config.Config reading the upper cased variable key on
// every Get. Blank values count as unset.
func NewConfig(key string) config.Config {
	return &variable{name: strings.ToUpper(key)}
}

// Get implements Config.Get. Values are returned as []byte.
func (v *variable) Get(context.Context) (interface{}, error) {
	raw, ok := os.LookupEnv(v.name)
	if !ok {
		return nil, config.ErrNoValue
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, config.ErrNoValue
	}
	return []byte(raw), nil
}

// Shutdown implements Config.Shutdown
func (v *variable) Shutdown() {}

func NewInt64Config(key string, defaultValue int64) config.Int64 {
	return wrapper.NewInt64Config(NewConfig(key), defaultValue)
}

func NewUint64Config(key string, defaultValue uint64) config.Uint64 {
	return wrapper.NewUint64Config(NewConfig(key), defaultValue)
}

func NewStringConfig(key string, defaultValue string) config.String {
	return wrapper.NewStringConfig(NewConfig(key), defaultValue)
}

func NewBoolConfig(key string, defaultValue bool) config.Bool {
	return wrapper.NewBoolConfig(NewConfig(key), defaultValue)
}

func NewDurationConfig(key string, defaultValue time.Duration) config.Duration {
	return wrapper.NewDurationConfig(NewConfig(key), defaultValue)
}
