package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/peephole/internal/combine"
	"github.com/roach88/peephole/internal/ir"
)

// marshalConfig converts cfg to canonical JSON TEXT for storage.
func marshalConfig(cfg combine.Config) (string, error) {
	data, err := ir.MarshalCanonical(cfg.Snapshot())
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	return string(data), nil
}

// ConfigHash identifies a configuration; runs with equal hashes were
// combined with the same rules and limits.
func ConfigHash(cfg combine.Config) (string, error) {
	return ir.ContentHash(ir.DomainConfig, cfg.Snapshot())
}

// unmarshalConfig parses stored config TEXT. Empty filter lists come back
// nil.
func unmarshalConfig(data string) (combine.Config, error) {
	var cfg combine.Config
	if err := json.Unmarshal([]byte(data), &cfg); err != nil {
		return combine.Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if len(cfg.Filter.Disable) == 0 {
		cfg.Filter.Disable = nil
	}
	if len(cfg.Filter.OnlyEnable) == 0 {
		cfg.Filter.OnlyEnable = nil
	}
	return cfg, nil
}
