/*
Copyright © 2021, 2022, 2023 Red Hat, Inc.

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

package reconciler

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/RedHatInsights/serverdensity-sync/cache"
	"github.com/RedHatInsights/serverdensity-sync/conf"
	"github.com/RedHatInsights/serverdensity-sync/inventory"
	"github.com/RedHatInsights/serverdensity-sync/producer"
	"github.com/RedHatInsights/serverdensity-sync/sdclient"
	"github.com/RedHatInsights/serverdensity-sync/types"
)

// Exit codes
const (
	// ExitStatusOK means that the tool finished with success
	ExitStatusOK = iota
	// ExitStatusError is a general error code
	ExitStatusError
	// ExitStatusHostFailed is returned when facts gathering failed on
	// any host
	ExitStatusHostFailed
	// ExitStatusHostUnreachable is returned when any host was not
	// reachable
	ExitStatusHostUnreachable
)

// APITokenEnvVariableName is the last resort source of API token
const APITokenEnvVariableName = "SD_API_TOKEN"

// Messages
const (
	noHostsMatchedMessage = "No hosts matched"
	operationFailedMsg    = "Operation failed"
	readonlyCacheFileMask = "sd_%s.json"
)

// Run performs one synchronization run and returns exit code of the tool
func Run(config conf.ConfigStruct, cliFlags types.CliFlags) int {
	metricsConfig := conf.GetMetricsConfiguration(&config)
	if metricsConfig.Namespace != "" {
		AddMetricsWithNamespace(metricsConfig.Namespace, metricsConfig.Subsystem)
	}

	exitCode := run(config, cliFlags)

	if metricsConfig.GatewayURL != "" {
		if err := PushMetrics(metricsConfig); err != nil {
			log.Error().Err(err).Msg("Unable to push metrics to Prometheus push gateway")
		}
	}
	return exitCode
}

func run(config conf.ConfigStruct, cliFlags types.CliFlags) int {
	inventoryConfig := conf.GetInventoryConfiguration(&config)
	syncConfig := conf.GetSyncConfiguration(&config)

	inventoryPath := firstNonEmpty(cliFlags.InventoryPath, inventoryConfig.Path)
	inv, err := inventory.Load(inventoryPath)
	if err != nil {
		log.Error().Err(err).Str("path", inventoryPath).Msg("Unable to load inventory")
		return ExitStatusError
	}

	hosts, err := inv.SelectHosts(cliFlags.HostPattern, cliFlags.Limit)
	if errors.Is(err, inventory.ErrNoHosts) {
		fmt.Println(noHostsMatchedMessage)
		return ExitStatusOK
	}
	if err != nil {
		log.Error().Err(err).Str("pattern", cliFlags.HostPattern).Msg("Invalid host pattern")
		return ExitStatusError
	}

	apiToken := resolveAPIToken(&config, cliFlags, inv)
	if apiToken == "" {
		log.Error().Msgf("Unable to load %s", APITokenEnvVariableName)
		return ExitStatusError
	}

	log.Info().Msg("Collecting facts about the inventory...")
	gatherer := inventory.NewGatherer(firstNonEmpty(cliFlags.FactsDir, inventoryConfig.FactsDir))
	results := gatherer.GatherAll(inv, hosts)
	if results.AnyFailed() {
		return ExitStatusHostFailed
	}
	if results.AnyDark() {
		return ExitStatusHostUnreachable
	}

	log.Info().Msg("Initializing connection to ServerDensity...")
	serverDensityConfig := conf.GetServerDensityConfiguration(&config)
	serverDensityConfig.APIToken = apiToken
	client, err := sdclient.New(serverDensityConfig)
	if err != nil {
		return ExitStatusError
	}

	readOnly := cliFlags.ReadOnly || syncConfig.ReadOnly
	options := Options{
		ForceUpdate: cliFlags.ForceUpdate || syncConfig.Force,
		Cleanup:     cliFlags.Cleanup || syncConfig.Cleanup,
	}

	var stateCache cache.Cache
	if readOnly {
		options = Options{}
		cacheFile := filepath.Join(os.TempDir(), fmt.Sprintf(readonlyCacheFileMask, uuid.NewString()))
		log.Info().Str("path", cacheFile).Msg("Read only mode, remote state is downloaded only")
		stateCache = cache.NewFileCache(cacheFile)
	} else {
		if cliFlags.CacheFile != "" {
			config.Cache.Backend = conf.CacheBackendFile
			config.Cache.Path = cliFlags.CacheFile
		}
		stateCache, err = cache.New(&config)
		if err != nil {
			return ExitStatusError
		}
	}
	defer closeCache(stateCache)

	kafkaProducer, err := producer.New(&config)
	if err != nil {
		return ExitStatusError
	}
	publisher := producer.NewEventPublisher(kafkaProducer)
	defer closePublisher(publisher)

	r := New(client, stateCache, publisher, options)

	notificationsFile := firstNonEmpty(inventoryConfig.NotificationsFile, inv.NotificationsFile())
	if err := r.ListAll(notificationsFile); err != nil {
		log.Error().Err(err).Msg(operationFailedMsg)
		return ExitStatusError
	}

	if readOnly {
		return ExitStatusOK
	}

	inputs := make([]HostInput, 0, len(results.Contacted))
	for _, host := range hosts {
		result, contacted := results.Contacted[host]
		if !contacted {
			continue
		}
		vars, _ := inv.HostVars(host)
		inputs = append(inputs, HostInput{
			Name:  host,
			Vars:  vars,
			Facts: result.Facts,
		})
	}

	result, err := r.Reconcile(inputs)
	if err != nil {
		log.Error().Err(err).Msg(operationFailedMsg)
		return ExitStatusError
	}

	log.Info().
		Int("created", result.Created).
		Int("updated", result.Updated).
		Int("skipped", result.Skipped).
		Int("deleted", result.Deleted).
		Str("run", publisher.RunID()).
		Msg("Synchronization finished")

	agentKeysFile := firstNonEmpty(cliFlags.AgentKeysFile, inventoryConfig.AgentKeysFile)
	if agentKeysFile != "" {
		if err := inventory.SaveAgentKeys(agentKeysFile, inventoryAgentKeys(inv, result.AgentKeys)); err != nil {
			return ExitStatusError
		}
	}

	return ExitStatusOK
}

// resolveAPIToken looks for API token on command line, in configuration,
// in variables of the first inventory host and in environment, in that
// order
func resolveAPIToken(config *conf.ConfigStruct, cliFlags types.CliFlags, inv *inventory.Inventory) string {
	if cliFlags.APIToken != "" {
		return cliFlags.APIToken
	}
	if token := conf.GetServerDensityConfiguration(config).APIToken; token != "" {
		return token
	}
	if hosts := inv.Hosts(); len(hosts) > 0 {
		if vars, found := inv.HostVars(hosts[0]); found && vars.APIToken() != "" {
			return vars.APIToken()
		}
	}
	return os.Getenv(APITokenEnvVariableName)
}

// inventoryAgentKeys filters agent keys to hosts known to the inventory
func inventoryAgentKeys(inv *inventory.Inventory, agentKeys map[string]string) map[string]string {
	keys := make(map[string]string, len(agentKeys))
	for host, key := range agentKeys {
		if _, found := inv.HostVars(host); found {
			keys[host] = key
		}
	}
	return keys
}

func closeCache(stateCache cache.Cache) {
	if err := stateCache.Close(); err != nil {
		log.Error().Err(err).Msg("Unable to close remote state cache")
	}
}

func closePublisher(publisher *producer.EventPublisher) {
	if err := publisher.Close(); err != nil {
		log.Error().Err(err).Msg("Unable to close change events producer")
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
