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

package producer

import (
	"time"

	"github.com/google/uuid"

	"github.com/RedHatInsights/serverdensity-sync/types"
)

// EventPublisher turns mutations into change events and sends them using
// the wrapped producer. All events of one publisher share the run ID.
type EventPublisher struct {
	producer Producer
	runID    string
	now      func() time.Time
}

// NewEventPublisher creates publisher with a fresh run ID
func NewEventPublisher(producer Producer) *EventPublisher {
	return &EventPublisher{
		producer: producer,
		runID:    uuid.NewString(),
		now:      time.Now,
	}
}

// RunID returns identifier of the synchronization run
func (publisher *EventPublisher) RunID() string {
	return publisher.runID
}

// Publish sends one change event, errors are left to the caller to report
func (publisher *EventPublisher) Publish(action types.ChangeAction, kind, key string, id types.ObjectID) error {
	event := types.ChangeEvent{
		RunID:     publisher.runID,
		Action:    action,
		Kind:      kind,
		Key:       key,
		ID:        id,
		Timestamp: publisher.now().UTC().Format(time.RFC3339),
	}

	_, _, err := publisher.producer.ProduceEvent(&event)
	return err
}

// Close closes the wrapped producer
func (publisher *EventPublisher) Close() error {
	return publisher.producer.Close()
}
