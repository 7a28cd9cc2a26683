package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"jobsmith/pkg/logging"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFileName is looked up in the working directory when no path is given.
const DefaultConfigFileName = "jobsmith.yaml"

// LoadConfig loads the tool configuration from configFilePath. A missing file
// is not an error: the defaults are returned instead. The result is validated.
func LoadConfig(configFilePath string) (Config, error) {
	if configFilePath == "" {
		configFilePath = DefaultConfigFileName
	}

	data, err := os.ReadFile(configFilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Debug("Config", "No config found at %s, using defaults", configFilePath)
			return GetDefaultConfig(), nil
		}
		return Config{}, fmt.Errorf("failed to read config %s: %w", configFilePath, err)
	}

	config, err := decodeConfig(data)
	if err != nil {
		return Config{}, ConfigurationError{
			FilePath:  configFilePath,
			FileName:  filepath.Base(configFilePath),
			Kind:      "config",
			ErrorType: ErrorTypeParse,
			Message:   err.Error(),
		}
	}
	if err := config.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", configFilePath, err)
	}

	logging.Info("Config", "Loaded configuration from %s", configFilePath)
	return config, nil
}

// ParseConfig decodes, defaults and validates configuration data.
func ParseConfig(data []byte) (Config, error) {
	config, err := decodeConfig(data)
	if err != nil {
		return Config{}, err
	}
	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

// decodeConfig decodes data strictly (unknown keys fail) and applies defaults.
func decodeConfig(data []byte) (Config, error) {
	var config Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&config); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, err
	}
	config.applyDefaults()
	return config, nil
}
