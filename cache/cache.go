/*
Copyright © 2021, 2022 Red Hat, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package cache contains implementations of the remote state cache. The
// cache holds a snapshot of all collections fetched from ServerDensity at the
// start of a run so that subsequent runs do not need to fetch them again.
// Any mutation made in ServerDensity resets the cache.
package cache

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/RedHatInsights/serverdensity-sync/conf"
	"github.com/RedHatInsights/serverdensity-sync/types"
)

// Cache represents an interface to any storage able to hold a snapshot of
// remote state
type Cache interface {
	// Load returns the cached snapshot. The boolean flag is false when
	// nothing is cached.
	Load() (types.Snapshot, bool, error)

	// Save stores the snapshot. Without force the snapshot is written
	// only when a cached copy already exists, so a reset cache stays
	// reset until the next full fetch.
	Save(snapshot types.Snapshot, force bool) error

	// Reset drops the cached snapshot
	Reset() error

	// Close releases all resources held by the cache
	Close() error
}

// New function creates the cache backend selected in configuration
func New(config *conf.ConfigStruct) (Cache, error) {
	cacheConfig := conf.GetCacheConfiguration(config)

	switch cacheConfig.Backend {
	case conf.CacheBackendFile, "":
		if cacheConfig.Path == "" {
			log.Info().Msg("No cache file configured, remote state is cached in memory")
			return NewMemoryCache(), nil
		}
		log.Info().Str("path", cacheConfig.Path).Msg("Using file cache")
		return NewFileCache(cacheConfig.Path), nil
	case conf.CacheBackendMemory:
		log.Info().Msg("Using memory cache")
		return NewMemoryCache(), nil
	case conf.CacheBackendSQL:
		log.Info().Str("table", cacheConfig.Table).Msg("Using SQL cache")
		return NewDBCache(conf.GetStorageConfiguration(config), cacheConfig.Table)
	default:
		err := fmt.Errorf("cache backend %v is not supported", cacheConfig.Backend)
		log.Error().Err(err).Msg("Unable to create cache")
		return nil, err
	}
}
