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

package cache

import (
	"errors"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/RedHatInsights/serverdensity-sync/types"
	"github.com/RedHatInsights/serverdensity-sync/utils"
)

// FileCache stores the snapshot into one JSON file with top-level keys
// devices, services, alerts, users and notifications. The file is always
// read and written as a whole.
type FileCache struct {
	Path string
}

// NewFileCache creates a cache backed by the given file
func NewFileCache(path string) *FileCache {
	return &FileCache{
		Path: path,
	}
}

// Load reads the snapshot from the cache file when it exists
func (cache *FileCache) Load() (types.Snapshot, bool, error) {
	var snapshot types.Snapshot

	if !utils.FileExists(cache.Path) {
		return snapshot, false, nil
	}

	err := utils.ReadJSONFile(cache.Path, &snapshot)
	if err != nil {
		log.Error().Err(err).Str("path", cache.Path).Msg("Unable to read cache file")
		return snapshot, false, err
	}

	log.Debug().Str("path", cache.Path).Msg("Remote state read from cache file")
	return snapshot, true, nil
}

// Save writes the snapshot to the cache file
func (cache *FileCache) Save(snapshot types.Snapshot, force bool) error {
	if !force && !utils.FileExists(cache.Path) {
		return nil
	}

	err := utils.WriteJSONFile(cache.Path, snapshot)
	if err != nil {
		log.Error().Err(err).Str("path", cache.Path).Msg("Unable to write cache file")
		return err
	}
	return nil
}

// Reset removes the cache file
func (cache *FileCache) Reset() error {
	err := os.Remove(cache.Path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Error().Err(err).Str("path", cache.Path).Msg("Unable to remove cache file")
		return err
	}
	return nil
}

// Close is a no-op, the file is not kept open
func (cache *FileCache) Close() error {
	return nil
}
