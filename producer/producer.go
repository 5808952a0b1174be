/*
Copyright © 2020, 2022 Red Hat, Inc.

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

// Package producer contains functions that can be used to produce (that is
// send) change events describing every mutation made in ServerDensity.
package producer

import (
	"github.com/rs/zerolog/log"

	"github.com/RedHatInsights/serverdensity-sync/conf"
	"github.com/RedHatInsights/serverdensity-sync/producer/disabled"
	"github.com/RedHatInsights/serverdensity-sync/producer/kafka"
	"github.com/RedHatInsights/serverdensity-sync/types"
)

// Producer represents any producer
type Producer interface {
	ProduceEvent(event *types.ChangeEvent) (int32, int64, error)
	Close() error
}

// New constructs the producer selected in configuration. Disabled producer
// is returned when Kafka is not enabled.
func New(config *conf.ConfigStruct) (Producer, error) {
	kafkaConfig := conf.GetKafkaBrokerConfiguration(config)
	if !kafkaConfig.Enabled {
		log.Info().Msg("Kafka producer is disabled, change events won't be sent")
		return &disabled.Producer{}, nil
	}

	return kafka.New(config)
}
