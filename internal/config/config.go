// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 The Noisy Sockets Authors.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dpeckett/raven"
	"github.com/dpeckett/raven/dsn"
	"github.com/dpeckett/raven/packet"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the ravenctl configuration file.
type Config struct {
	DSN          string            `yaml:"dsn"`
	Logger       string            `yaml:"logger,omitempty"`
	Platform     string            `yaml:"platform,omitempty"`
	PoolCapacity int               `yaml:"pool_capacity,omitempty"`
	SendTimeout  time.Duration     `yaml:"send_timeout,omitempty"`
	Compression  bool              `yaml:"compression,omitempty"`
	Scrub        bool              `yaml:"scrub,omitempty"`
	MinLevel     string            `yaml:"min_level,omitempty"`
	Tags         map[string]string `yaml:"tags,omitempty"`
}

// LoadEnv loads environment files, skipping any that don't exist. Variables
// already set in the environment take precedence.
func LoadEnv(paths ...string) error {
	for _, path := range paths {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			continue
		}

		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
	}

	return nil
}

// Load reads a YAML config file, expanding environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expandedData := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	return &cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.DSN == "" {
		return fmt.Errorf("dsn is required")
	}

	if _, err := dsn.Parse(c.DSN); err != nil {
		return err
	}

	if c.PoolCapacity < 0 {
		return fmt.Errorf("pool_capacity must not be negative")
	}

	if c.SendTimeout < 0 {
		return fmt.Errorf("send_timeout must not be negative")
	}

	if c.MinLevel != "" {
		if _, err := packet.ParseLevel(c.MinLevel); err != nil {
			return fmt.Errorf("min_level: %w", err)
		}
	}

	return nil
}

// ClientConfiguration converts the file configuration into a client configuration.
func (c *Config) ClientConfiguration() (raven.Configuration, error) {
	d, err := dsn.Parse(c.DSN)
	if err != nil {
		return raven.Configuration{}, err
	}

	conf := raven.Configuration{
		DSN:          *d,
		Logger:       c.Logger,
		Platform:     c.Platform,
		PoolCapacity: c.PoolCapacity,
		SendTimeout:  c.SendTimeout,
		Compression:  c.Compression,
		Tags:         c.Tags,
	}

	if c.Scrub {
		conf.Scrubber = raven.NewPatternScrubber()
	}

	return conf, nil
}

// Level returns the minimum level of events to forward (default warning).
func (c *Config) Level() packet.Level {
	if level, err := packet.ParseLevel(c.MinLevel); err == nil {
		return level
	}
	return packet.LevelWarning
}
