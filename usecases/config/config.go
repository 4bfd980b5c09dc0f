//                           _       _
// __      _____  __ ___   ___  __ _| |_ ___
// \ \ /\ / / _ \/ _` \ \ / / |/ _` | __/ _ \
//  \ V  V /  __/ (_| |\ V /| | (_| | ||  __/
//   \_/\_/ \___|\__,_| \_/ |_|\__,_|\__\___|
//
//  Copyright © 2016 - 2024 Weaviate B.V. All rights reserved.
//
//  CONTACT: hello@weaviate.io
//

package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

const (
	DefaultFileCompactionPercent = 66
	DefaultMinCompactionFiles    = 2
	DefaultTargetFileSize        = 1 << 30
	DefaultSyncConcurrency       = 8
	DefaultReaperInterval        = 10 * time.Second
)

// Config is the compaction and durability policy consumed by the file
// directory.
type Config struct {
	// Files whose share of live objects drops below this percentage are
	// candidates for defragmentation.
	FileCompactionPercent uint8 `yaml:"file_compaction_percent"`

	// Files smaller than TargetFileSize / MinCompactionFiles are merged.
	MinCompactionFiles uint64 `yaml:"min_compaction_files"`
	TargetFileSize     uint64 `yaml:"target_file_size"`

	// Seeds the synced state of newly inserted files.
	FsyncEachBatch bool `yaml:"fsync_each_batch"`

	// Cross check the object location index before a file is deleted.
	ValidateDeletions bool `yaml:"validate_deletions"`

	SyncConcurrency int           `yaml:"sync_concurrency"`
	ReaperInterval  time.Duration `yaml:"reaper_interval"`
}

func Default() Config {
	return Config{
		FileCompactionPercent: DefaultFileCompactionPercent,
		MinCompactionFiles:    DefaultMinCompactionFiles,
		TargetFileSize:        DefaultTargetFileSize,
		SyncConcurrency:       DefaultSyncConcurrency,
		ReaperInterval:        DefaultReaperInterval,
	}
}

func (c Config) Validate() error {
	if c.FileCompactionPercent > 100 {
		return errors.Errorf("file_compaction_percent must be between 0 and 100, got %d",
			c.FileCompactionPercent)
	}

	if c.MinCompactionFiles < 1 {
		return errors.Errorf("min_compaction_files must be at least 1, got %d",
			c.MinCompactionFiles)
	}

	if c.SyncConcurrency < 1 {
		return errors.Errorf("sync_concurrency must be at least 1, got %d",
			c.SyncConcurrency)
	}

	if c.ReaperInterval <= 0 {
		return errors.Errorf("reaper_interval must be positive, got %s", c.ReaperInterval)
	}

	return nil
}

// LoadFile reads a yaml config file on top of the defaults, then applies
// environment overrides.
func LoadFile(path string) (Config, error) {
	cfg := Default()

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "read config file %q", path)
	}

	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse config file %q", path)
	}

	if err := FromEnv(&cfg); err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}
