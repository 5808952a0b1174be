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

package reconciler_test

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/RedHatInsights/insights-operator-utils/tests/helpers"
	"github.com/stretchr/testify/assert"

	"github.com/RedHatInsights/serverdensity-sync/conf"
	"github.com/RedHatInsights/serverdensity-sync/reconciler"
	"github.com/RedHatInsights/serverdensity-sync/sdclient"
	"github.com/RedHatInsights/serverdensity-sync/types"
	"github.com/RedHatInsights/serverdensity-sync/utils"
)

func runConfig(url string) conf.ConfigStruct {
	return conf.ConfigStruct{
		ServerDensity: conf.ServerDensityConfiguration{
			URL:      url,
			APIToken: fakeToken,
		},
		Inventory: conf.InventoryConfiguration{
			Path:     inventoryFile,
			FactsDir: factsDir,
		},
		Cache: conf.CacheConfiguration{
			Backend: conf.CacheBackendMemory,
		},
	}
}

func TestRunSynchronizesSelectedHosts(t *testing.T) {
	fake := newFakeWithUsers()
	agentKeysFile := filepath.Join(t.TempDir(), "agent_keys.json")

	exitCode := reconciler.Run(runConfig(fake.serve(t)), types.CliFlags{
		HostPattern:   "webservers",
		AgentKeysFile: agentKeysFile,
	})
	assert.Equal(t, reconciler.ExitStatusOK, exitCode)

	// web1, its disk alert, web2, two device group alerts, homepage and
	// its alert
	assert.Len(t, fake.mutations(), 7)
	assert.NotNil(t, fake.find(sdclient.DevicesPath, "hostname", "web1"))
	assert.NotNil(t, fake.find(sdclient.DevicesPath, "hostname", "web2"))
	assert.Nil(t, fake.find(sdclient.DevicesPath, "hostname", "db1"))

	var agentKeys map[string]map[string]string
	helpers.FailOnError(t, utils.ReadJSONFile(agentKeysFile, &agentKeys))
	assert.Len(t, agentKeys, 2)
	web1 := fake.find(sdclient.DevicesPath, "hostname", "web1")
	assert.Equal(t, web1["agentKey"], agentKeys["web1"]["sd_agent_key"])
}

func TestRunWithLimit(t *testing.T) {
	fake := newFakeWithUsers()

	exitCode := reconciler.Run(runConfig(fake.serve(t)), types.CliFlags{
		HostPattern: "webservers",
		Limit:       "canary",
	})
	assert.Equal(t, reconciler.ExitStatusOK, exitCode)
	assert.Nil(t, fake.find(sdclient.DevicesPath, "hostname", "web1"))
	assert.NotNil(t, fake.find(sdclient.DevicesPath, "hostname", "web2"))
}

func TestRunNoHostsMatched(t *testing.T) {
	fake := newFakeWithUsers()

	exitCode := reconciler.Run(runConfig(fake.serve(t)), types.CliFlags{HostPattern: "mailservers"})
	assert.Equal(t, reconciler.ExitStatusOK, exitCode)
	assert.Empty(t, fake.requests)
}

func TestRunHostFailed(t *testing.T) {
	fake := newFakeWithUsers()

	exitCode := reconciler.Run(runConfig(fake.serve(t)), types.CliFlags{HostPattern: "db1"})
	assert.Equal(t, reconciler.ExitStatusHostFailed, exitCode)
	assert.Empty(t, fake.requests)
}

func TestRunHostUnreachable(t *testing.T) {
	fake := newFakeWithUsers()

	exitCode := reconciler.Run(runConfig(fake.serve(t)), types.CliFlags{
		HostPattern: "web1",
		FactsDir:    t.TempDir(),
	})
	assert.Equal(t, reconciler.ExitStatusHostUnreachable, exitCode)
	assert.Empty(t, fake.requests)
}

func TestRunMissingInventory(t *testing.T) {
	config := runConfig("http://localhost:1")
	config.Inventory.Path = "../tests/inventory/missing.yml"

	assert.Equal(t, reconciler.ExitStatusError, reconciler.Run(config, types.CliFlags{HostPattern: "all"}))
}

func TestRunInvalidPattern(t *testing.T) {
	assert.Equal(t, reconciler.ExitStatusError,
		reconciler.Run(runConfig("http://localhost:1"), types.CliFlags{HostPattern: "web[1"}))
}

func TestRunWithoutAPIToken(t *testing.T) {
	t.Setenv(reconciler.APITokenEnvVariableName, "")

	inventoryPath := filepath.Join(t.TempDir(), "hosts.yml")
	helpers.FailOnError(t, os.WriteFile(inventoryPath, []byte("all:\n  hosts:\n    web1:\n"), 0o600))

	config := runConfig("http://localhost:1")
	config.ServerDensity.APIToken = ""
	config.Inventory.Path = inventoryPath

	assert.Equal(t, reconciler.ExitStatusError, reconciler.Run(config, types.CliFlags{HostPattern: "all"}))
}

func TestRunAPITokenFromInventory(t *testing.T) {
	fake := newFakeWithUsers()
	fake.token = "token_from_inventory"

	config := runConfig(fake.serve(t))
	config.ServerDensity.APIToken = ""

	exitCode := reconciler.Run(config, types.CliFlags{HostPattern: "web2"})
	assert.Equal(t, reconciler.ExitStatusOK, exitCode)
	assert.NotNil(t, fake.find(sdclient.DevicesPath, "hostname", "web2"))
}

func TestRunAPITokenFromEnvironment(t *testing.T) {
	t.Setenv(reconciler.APITokenEnvVariableName, "token_from_env")

	fake := newFakeWithUsers()
	fake.token = "token_from_env"

	inventoryPath := filepath.Join(t.TempDir(), "hosts.yml")
	helpers.FailOnError(t, os.WriteFile(inventoryPath, []byte(`
all:
  hosts:
    web9:
      ansible_facts:
        ansible_system: Linux
`), 0o600))

	config := runConfig(fake.serve(t))
	config.ServerDensity.APIToken = ""
	config.Inventory.Path = inventoryPath

	exitCode := reconciler.Run(config, types.CliFlags{HostPattern: "all"})
	assert.Equal(t, reconciler.ExitStatusOK, exitCode)
	assert.NotNil(t, fake.find(sdclient.DevicesPath, "hostname", "web9"))
}

func TestRunCommandLineTokenWins(t *testing.T) {
	fake := newFakeWithUsers()
	fake.token = "token_from_cli"

	exitCode := reconciler.Run(runConfig(fake.serve(t)), types.CliFlags{
		HostPattern: "web2",
		APIToken:    "token_from_cli",
	})
	assert.Equal(t, reconciler.ExitStatusOK, exitCode)
}

func TestRunReadOnly(t *testing.T) {
	fake := newFakeWithUsers()

	exitCode := reconciler.Run(runConfig(fake.serve(t)), types.CliFlags{
		HostPattern: "webservers",
		ReadOnly:    true,
		ForceUpdate: true,
		Cleanup:     true,
	})
	assert.Equal(t, reconciler.ExitStatusOK, exitCode)
	assert.Empty(t, fake.mutations())
	// devices, services, alerts and users
	assert.Len(t, fake.requests, 4)
}

func TestRunUsesCacheFile(t *testing.T) {
	fake := newFakeWithUsers()
	cacheFile := filepath.Join(t.TempDir(), "sd_cache.json")

	// first run fills the cache, mutations reset it
	exitCode := reconciler.Run(runConfig(fake.serve(t)), types.CliFlags{
		HostPattern: "web2",
		CacheFile:   cacheFile,
		ReadOnly:    false,
	})
	assert.Equal(t, reconciler.ExitStatusOK, exitCode)
	assert.False(t, utils.FileExists(cacheFile))

	// second run changes nothing, so the cache survives
	exitCode = reconciler.Run(runConfig(fake.serve(t)), types.CliFlags{
		HostPattern: "web2",
		CacheFile:   cacheFile,
	})
	assert.Equal(t, reconciler.ExitStatusOK, exitCode)
	assert.True(t, utils.FileExists(cacheFile))
	requests := len(fake.requests)

	// third run is served from cache
	exitCode = reconciler.Run(runConfig(fake.serve(t)), types.CliFlags{
		HostPattern: "web2",
		CacheFile:   cacheFile,
	})
	assert.Equal(t, reconciler.ExitStatusOK, exitCode)
	assert.Len(t, fake.requests, requests)
}

func TestRunAPIFailure(t *testing.T) {
	fake := newFakeWithUsers()
	fake.failPath = sdclient.DevicesPath

	exitCode := reconciler.Run(runConfig(fake.serve(t)), types.CliFlags{HostPattern: "web2"})
	assert.Equal(t, reconciler.ExitStatusError, exitCode)
}

func TestRunPushesMetrics(t *testing.T) {
	pushes := 0
	gateway := httptest.NewServer(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			pushes++
			w.WriteHeader(http.StatusOK)
		}),
	)
	defer gateway.Close()

	fake := newFakeWithUsers()
	config := runConfig(fake.serve(t))
	config.Metrics = conf.MetricsConfiguration{
		Job:        "serverdensity_sync",
		Namespace:  "serverdensity_sync",
		GatewayURL: gateway.URL,
	}

	exitCode := reconciler.Run(config, types.CliFlags{HostPattern: "web2"})
	assert.Equal(t, reconciler.ExitStatusOK, exitCode)
	assert.Equal(t, 1, pushes)
}
