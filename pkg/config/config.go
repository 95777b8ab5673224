// Package config loads engine settings from an INI file, with
// defaults for every knob so a missing file is a valid configuration.
package config

import (
	"fmt"

	"gopkg.in/ini.v1"

	"reldb/pkg/concurrency/lock"
	"reldb/pkg/concurrency/transaction"
	"reldb/pkg/optimizer"
)

// Config carries the engine's tunables.
type Config struct {
	// DataDir is where heap files, the log, and the recovery metadata
	// files live.
	DataDir string

	// PoolSize is the number of buffer pool frames.
	PoolSize int

	// Isolation is the default isolation level of new transactions.
	Isolation transaction.IsolationLevel

	// DeadlockPolicy is handed to the lock manager.
	DeadlockPolicy lock.DeadlockPolicy

	// JoinOrder selects the optimizer's join reorder algorithm.
	JoinOrder optimizer.JoinOrderAlgorithm

	// EnableProjectionPushdown toggles the optimizer's projection
	// pass.
	EnableProjectionPushdown bool
}

// Default returns the configuration used when no file overrides
// anything.
func Default() Config {
	return Config{
		DataDir:        "data",
		PoolSize:       64,
		Isolation:      transaction.RepeatableRead,
		DeadlockPolicy: lock.None,
		JoinOrder:      optimizer.JoinOrderNone,
	}
}

// Load reads settings from an INI file, falling back to defaults for
// anything unset. A missing file yields Default().
func Load(path string) (Config, error) {
	cfg := Default()

	file, err := ini.LooseLoad(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to load config %s: %w", path, err)
	}

	storage := file.Section("storage")
	cfg.DataDir = storage.Key("data_dir").MustString(cfg.DataDir)
	cfg.PoolSize = storage.Key("pool_size").MustInt(cfg.PoolSize)
	if cfg.PoolSize < 1 {
		return cfg, fmt.Errorf("pool_size must be positive, got %d", cfg.PoolSize)
	}

	txn := file.Section("transaction")
	if v := txn.Key("isolation").String(); v != "" {
		level, err := transaction.ParseIsolationLevel(v)
		if err != nil {
			return cfg, err
		}
		cfg.Isolation = level
	}
	if v := txn.Key("deadlock_policy").String(); v != "" {
		policy, err := parseDeadlockPolicy(v)
		if err != nil {
			return cfg, err
		}
		cfg.DeadlockPolicy = policy
	}

	opt := file.Section("optimizer")
	if v := opt.Key("join_order").String(); v != "" {
		alg, err := optimizer.ParseJoinOrderAlgorithm(v)
		if err != nil {
			return cfg, err
		}
		cfg.JoinOrder = alg
	}
	cfg.EnableProjectionPushdown = opt.Key("projection_pushdown").MustBool(cfg.EnableProjectionPushdown)

	return cfg, nil
}

func parseDeadlockPolicy(s string) (lock.DeadlockPolicy, error) {
	switch s {
	case "none", "NONE":
		return lock.None, nil
	case "wait_die", "WAIT_DIE":
		return lock.WaitDie, nil
	case "wound_wait", "WOUND_WAIT":
		return lock.WoundWait, nil
	case "detection", "DETECTION":
		return lock.Detection, nil
	default:
		return 0, fmt.Errorf("unknown deadlock policy %q", s)
	}
}
