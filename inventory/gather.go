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

// Facts are gathered from the first source that knows the host:
//
// 1. hosts with local connection are described by the machine the tool runs on
// 2. fact cache directory (one JSON file per host named by the host)
// 3. ansible_facts host variable
//
// Hosts not known by any source are reported as unreachable.

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
)

const bytesInMB = 1024 * 1024

// Result is outcome of facts gathering for one host
type Result struct {
	Host        string
	Facts       Facts
	Failed      bool
	Unreachable bool
	Message     string
}

// Results holds results for contacted and dark (unreachable) hosts
type Results struct {
	Contacted map[string]Result
	Dark      map[string]Result
}

// AnyFailed checks if any contacted host reported failure
func (results Results) AnyFailed() bool {
	for _, result := range results.Contacted {
		if result.Failed {
			return true
		}
	}
	return false
}

// AnyDark checks if any host was unreachable
func (results Results) AnyDark() bool {
	return len(results.Dark) > 0
}

// setupResult is the structure of fact cache file written by the setup
// module
type setupResult struct {
	Facts       map[string]interface{} `json:"ansible_facts"`
	Failed      bool                   `json:"failed"`
	RC          *int                   `json:"rc"`
	Unreachable bool                   `json:"unreachable"`
	Message     string                 `json:"msg"`
}

// Gatherer gathers facts about inventory hosts
type Gatherer struct {
	// FactsDir is directory with fact cache files, it is optional
	FactsDir string

	// Local collects facts of the machine the tool runs on
	Local func() (Facts, error)
}

// NewGatherer creates gatherer reading fact cache files from given directory
func NewGatherer(factsDir string) Gatherer {
	return Gatherer{
		FactsDir: factsDir,
		Local:    LocalFacts,
	}
}

// GatherAll gathers facts about all given hosts
func (gatherer Gatherer) GatherAll(inventory *Inventory, hosts []string) Results {
	results := Results{
		Contacted: map[string]Result{},
		Dark:      map[string]Result{},
	}

	for _, hostname := range hosts {
		result := gatherer.Gather(inventory, hostname)
		if result.Unreachable {
			log.Error().Str("host", hostname).Str("reason", result.Message).Msg("Host unreachable")
			results.Dark[hostname] = result
			continue
		}
		if result.Failed {
			log.Error().Str("host", hostname).Str("reason", result.Message).Msg("Host failed")
		}
		results.Contacted[hostname] = result
	}

	log.Info().
		Int("contacted", len(results.Contacted)).
		Int("dark", len(results.Dark)).
		Msg("Facts gathered")
	return results
}

// Gather gathers facts about one host
func (gatherer Gatherer) Gather(inventory *Inventory, hostname string) Result {
	result := Result{Host: hostname}

	vars, found := inventory.HostVars(hostname)
	if !found {
		result.Unreachable = true
		result.Message = "host is not in inventory"
		return result
	}

	if vars.Connection() == localConnection && gatherer.Local != nil {
		facts, err := gatherer.Local()
		if err != nil {
			result.Failed = true
			result.Message = err.Error()
			return result
		}
		result.Facts = facts
		return result
	}

	if gatherer.FactsDir != "" {
		cached, found, err := gatherer.readFactsFile(hostname)
		if err != nil {
			result.Failed = true
			result.Message = err.Error()
			return result
		}
		if found {
			return cached
		}
	}

	if facts, found := vars.Facts(); found {
		result.Facts = facts
		return result
	}

	result.Unreachable = true
	result.Message = "no facts available for host"
	return result
}

func (gatherer Gatherer) readFactsFile(hostname string) (Result, bool, error) {
	result := Result{Host: hostname}

	filename := filepath.Join(gatherer.FactsDir, hostname)
	content, err := os.ReadFile(filename)
	if errors.Is(err, os.ErrNotExist) {
		return result, false, nil
	}
	if err != nil {
		return result, false, err
	}

	var document map[string]json.RawMessage
	if err := json.Unmarshal(content, &document); err != nil {
		return result, false, fmt.Errorf("invalid facts file %s: %w", filename, err)
	}

	if _, isSetupResult := document["ansible_facts"]; !isSetupResult {
		facts, err := decodeFacts(content)
		if err != nil {
			return result, false, err
		}
		result.Facts = facts
		return result, true, nil
	}

	var setup setupResult
	if err := json.Unmarshal(content, &setup); err != nil {
		return result, false, fmt.Errorf("invalid facts file %s: %w", filename, err)
	}
	result.Facts = Facts(setup.Facts)
	result.Message = setup.Message
	result.Unreachable = setup.Unreachable
	result.Failed = setup.Failed || (setup.RC != nil && *setup.RC != 0)
	return result, true, nil
}

func decodeFacts(content []byte) (Facts, error) {
	decoder := json.NewDecoder(bytes.NewReader(content))
	decoder.UseNumber()

	var facts map[string]interface{}
	if err := decoder.Decode(&facts); err != nil {
		return nil, err
	}
	return Facts(facts), nil
}

// LocalFacts describes the machine the tool runs on using the same fact
// names as the setup module
func LocalFacts() (Facts, error) {
	facts := Facts{}

	info, err := host.Info()
	if err != nil {
		return nil, err
	}
	facts[FactHostname] = info.Hostname
	facts[FactSystem] = capitalize(info.OS)
	facts[FactDistribution] = capitalize(info.Platform)
	facts[FactDistributionVersion] = info.PlatformVersion

	cores, err := cpu.Counts(false)
	if err != nil {
		log.Warn().Err(err).Msg("Unable to read number of processors")
	} else {
		facts[FactProcessorCount] = cores
	}

	memory, err := mem.VirtualMemory()
	if err != nil {
		log.Warn().Err(err).Msg("Unable to read memory statistics")
	} else {
		facts[FactMemTotalMB] = int(memory.Total / bytesInMB)
	}

	swap, err := mem.SwapMemory()
	if err != nil {
		log.Warn().Err(err).Msg("Unable to read swap statistics")
	} else {
		facts[FactSwapTotalMB] = int(swap.Total / bytesInMB)
	}

	ipv4, ipv6, err := localAddresses()
	if err != nil {
		log.Warn().Err(err).Msg("Unable to read network interfaces")
	} else {
		facts[FactIPv4Addresses] = ipv4
		facts[FactIPv6Addresses] = ipv6
	}

	return facts, nil
}

func localAddresses() (ipv4, ipv6 []string, err error) {
	interfaces, err := net.Interfaces()
	if err != nil {
		return nil, nil, err
	}

	for _, iface := range interfaces {
		if isLoopback(iface.Flags) {
			continue
		}
		for _, addr := range iface.Addrs {
			ip := addr.Addr
			if slash := strings.IndexByte(ip, '/'); slash >= 0 {
				ip = ip[:slash]
			}
			if strings.Contains(ip, ":") {
				ipv6 = append(ipv6, ip)
			} else {
				ipv4 = append(ipv4, ip)
			}
		}
	}
	return ipv4, ipv6, nil
}

func isLoopback(flags []string) bool {
	for _, flag := range flags {
		if flag == "loopback" {
			return true
		}
	}
	return false
}

func capitalize(value string) string {
	if value == "" {
		return value
	}
	return strings.ToUpper(value[:1]) + value[1:]
}
