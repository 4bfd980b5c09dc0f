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
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// FromEnv takes a *Config as it will respect initial config that has been
// provided by other means (e.g. a config file) and will only extend those that
// are set
func FromEnv(config *Config) error {
	if v := os.Getenv("FILEMAP_FILE_COMPACTION_PERCENT"); v != "" {
		asInt, err := strconv.ParseUint(v, 10, 8)
		if err != nil {
			return errors.Wrapf(err, "parse FILEMAP_FILE_COMPACTION_PERCENT as int")
		}

		config.FileCompactionPercent = uint8(asInt)
	}

	if v := os.Getenv("FILEMAP_MIN_COMPACTION_FILES"); v != "" {
		asInt, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return errors.Wrapf(err, "parse FILEMAP_MIN_COMPACTION_FILES as int")
		}

		config.MinCompactionFiles = asInt
	}

	if v := os.Getenv("FILEMAP_TARGET_FILE_SIZE"); v != "" {
		asInt, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return errors.Wrapf(err, "parse FILEMAP_TARGET_FILE_SIZE as int")
		}

		config.TargetFileSize = asInt
	}

	if v := os.Getenv("FILEMAP_FSYNC_EACH_BATCH"); v != "" {
		config.FsyncEachBatch = enabled(v)
	}

	if v := os.Getenv("FILEMAP_VALIDATE_DELETIONS"); v != "" {
		config.ValidateDeletions = enabled(v)
	}

	if v := os.Getenv("FILEMAP_SYNC_CONCURRENCY"); v != "" {
		asInt, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "parse FILEMAP_SYNC_CONCURRENCY as int")
		}

		config.SyncConcurrency = asInt
	}

	if v := os.Getenv("FILEMAP_REAPER_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.Wrapf(err, "parse FILEMAP_REAPER_INTERVAL as duration")
		}

		config.ReaperInterval = d
	}

	return nil
}

func enabled(value string) bool {
	if value == "" {
		return false
	}

	if value == "on" ||
		value == "enabled" ||
		value == "1" ||
		value == "true" {
		return true
	}

	return false
}
