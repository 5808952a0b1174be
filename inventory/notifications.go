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

package inventory

import (
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/RedHatInsights/serverdensity-sync/types"
	"github.com/RedHatInsights/serverdensity-sync/utils"
)

// NotificationsFile returns path to the notification channels file stored
// next to the inventory
func (inventory *Inventory) NotificationsFile() string {
	return filepath.Join(inventory.basedir, notificationsFileDefault)
}

// LoadNotifications reads static list of notification channels. Missing
// file means there are no notification channels.
func LoadNotifications(path string) ([]types.Notification, error) {
	notifications := []types.Notification{}
	if path == "" || !utils.FileExists(path) {
		log.Debug().Str("path", path).Msg("No notifications file")
		return notifications, nil
	}

	err := utils.ReadJSONFile(path, &notifications)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("Unable to read notifications file")
		return nil, err
	}
	return notifications, nil
}

// SaveAgentKeys writes agent keys of devices into a JSON file mapping host
// name to its agent key, so that later provisioning steps can install the
// monitoring agent
func SaveAgentKeys(path string, keys map[string]string) error {
	document := make(map[string]map[string]string, len(keys))
	for host, key := range keys {
		document[host] = map[string]string{AgentKeyVar: key}
	}

	err := utils.WriteJSONFile(path, document)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("Unable to write agent keys")
		return err
	}
	log.Info().Str("path", path).Int("hosts", len(keys)).Msg("Agent keys written")
	return nil
}
