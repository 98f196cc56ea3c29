package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned when configuration fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// Load reads configuration from the given path if non-empty, applies
// environment variable overrides, validates, and returns the result.
// With an empty path only defaults and environment overrides apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(reflect.ValueOf(cfg).Elem())

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides walks the struct and overrides any field whose env tag
// names a set environment variable.
func applyEnvOverrides(v reflect.Value) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := v.Field(i)
		if field.Kind() == reflect.Struct {
			applyEnvOverrides(field)
			continue
		}

		envName := t.Field(i).Tag.Get("env")
		if envName == "" {
			continue
		}
		raw, ok := os.LookupEnv(envName)
		if !ok {
			continue
		}

		switch field.Kind() {
		case reflect.String:
			field.SetString(raw)
		case reflect.Int, reflect.Int64:
			if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
				field.SetInt(n)
			}
		case reflect.Float64:
			if f, err := strconv.ParseFloat(raw, 64); err == nil {
				field.SetFloat(f)
			}
		case reflect.Bool:
			if b, err := strconv.ParseBool(raw); err == nil {
				field.SetBool(b)
			}
		}
	}
}

// Validate checks the configuration for values that would make a run
// impossible or nonsensical.
func (c *Config) Validate() error {
	if c.Source.BaseURL == "" {
		return fmt.Errorf("%w: source.baseUrl must not be empty", ErrInvalidConfig)
	}
	if c.Source.TimeoutMs <= 0 {
		return fmt.Errorf("%w: source.timeoutMs must be positive, got %d", ErrInvalidConfig, c.Source.TimeoutMs)
	}
	if c.Storage.DataDir == "" {
		return fmt.Errorf("%w: storage.dataDir must not be empty", ErrInvalidConfig)
	}
	if c.Run.MaxAttempts < 1 {
		return fmt.Errorf("%w: run.maxAttempts must be at least 1, got %d", ErrInvalidConfig, c.Run.MaxAttempts)
	}
	if c.Run.Multiplier < 1 {
		return fmt.Errorf("%w: run.multiplier must be at least 1, got %g", ErrInvalidConfig, c.Run.Multiplier)
	}
	if c.Run.InitialDelayMs < 0 || c.Run.MaxDelayMs < 0 {
		return fmt.Errorf("%w: run delays must not be negative", ErrInvalidConfig)
	}
	if c.Run.MaxDelayMs > 0 && c.Run.InitialDelayMs > c.Run.MaxDelayMs {
		return fmt.Errorf("%w: run.initialDelayMs exceeds run.maxDelayMs", ErrInvalidConfig)
	}
	return nil
}
