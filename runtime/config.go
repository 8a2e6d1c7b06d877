// Copyright 2025 The Stratalog Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package runtime

import (
	"os"

	"sigs.k8s.io/yaml"
)

// Config represents the configuration file consumed at startup.
type Config struct {
	// Policies are paths of policy files loaded at startup.
	Policies []string `json:"policies,omitempty"`

	// DefaultPolicy names the policy mutations and queries target
	// when the caller does not name one. Defaults to "classify".
	DefaultPolicy string `json:"default_policy,omitempty"`

	// HistoryPath is where the REPL persists its input history.
	HistoryPath string `json:"history_path,omitempty"`

	Logging struct {
		Level  string `json:"level,omitempty"`
		Format string `json:"format,omitempty"`
	} `json:"logging,omitempty"`
}

// ParseConfig unmarshals a YAML configuration document.
func ParseConfig(raw []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(raw, &config); err != nil {
		return nil, err
	}
	return &config, nil
}

// LoadConfig reads and unmarshals the configuration file at path. An
// empty path yields a zero Config.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return &Config{}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseConfig(raw)
}
