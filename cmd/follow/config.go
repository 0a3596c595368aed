// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"strings"

	"code.hybscloud.com/disruptor"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap/zapcore"
)

// Config is read from FOLLOW_* environment variables.
type Config struct {
	Capacity   int      `envconfig:"CAPACITY" default:"128"`
	Items      int      `envconfig:"ITEMS" default:"200"`
	BatchSize  int      `envconfig:"BATCH_SIZE" default:"20"`
	Strategies []string `envconfig:"STRATEGIES" default:"blocking,busyspin,yielding,backoff"`
	Multi      bool     `envconfig:"MULTI_PRODUCER" default:"false"`
	LogLevel   string   `envconfig:"LOG_LEVEL" default:"debug"`
	LogFile    string   `envconfig:"LOG_FILE" default:"output.log"`
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("follow", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values envconfig cannot.
func (c *Config) Validate() error {
	if c.Items < 0 {
		return fmt.Errorf("items: %d is negative", c.Items)
	}
	if c.BatchSize < 1 || c.BatchSize > c.Capacity {
		return fmt.Errorf("batch size: %d not in [1, %d]", c.BatchSize, c.Capacity)
	}
	if len(c.Strategies) == 0 {
		return fmt.Errorf("strategies: none configured")
	}
	for _, name := range c.Strategies {
		if _, err := newWaitStrategy(name); err != nil {
			return err
		}
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	return nil
}

func newWaitStrategy(name string) (disruptor.WaitStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "blocking":
		return disruptor.NewBlockingWaitStrategy(), nil
	case "busyspin":
		return disruptor.NewBusySpinWaitStrategy(), nil
	case "yielding":
		return disruptor.NewYieldingWaitStrategy(), nil
	case "backoff":
		return disruptor.NewBackoffWaitStrategy(), nil
	}
	return nil, fmt.Errorf("strategy: unknown %q", name)
}
