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
	"github.com/RedHatInsights/serverdensity-sync/types"
)

// MemoryCache keeps the snapshot in memory, it is used when no cache file is
// configured
type MemoryCache struct {
	snapshot *types.Snapshot
}

// NewMemoryCache creates an empty memory cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{}
}

// Load returns the snapshot stored in memory
func (cache *MemoryCache) Load() (types.Snapshot, bool, error) {
	if cache.snapshot == nil {
		return types.Snapshot{}, false, nil
	}
	return *cache.snapshot, true, nil
}

// Save stores the snapshot in memory
func (cache *MemoryCache) Save(snapshot types.Snapshot, force bool) error {
	if !force && cache.snapshot == nil {
		return nil
	}
	cache.snapshot = &snapshot
	return nil
}

// Reset drops the snapshot
func (cache *MemoryCache) Reset() error {
	cache.snapshot = nil
	return nil
}

// Close is a no-op
func (cache *MemoryCache) Close() error {
	return nil
}
