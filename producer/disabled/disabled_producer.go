/*
Copyright © 2022 Red Hat, Inc.

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

// Package disabled contains producer used when change events are not sent
// anywhere
package disabled

import (
	"github.com/rs/zerolog/log"

	"github.com/RedHatInsights/serverdensity-sync/types"
)

// Producer is an implementation of Producer interface where no message is sent
type Producer struct {
}

// ProduceEvent doesn't publish anything, offset -1 is returned
func (producer *Producer) ProduceEvent(event *types.ChangeEvent) (int32, int64, error) {
	log.Debug().
		Str("action", string(event.Action)).
		Str("kind", event.Kind).
		Str("key", event.Key).
		Msg("Change event dropped")
	return 0, -1, nil
}

// Close return nil
func (producer *Producer) Close() error {
	return nil
}
