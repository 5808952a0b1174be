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
	"encoding/json"
	"math"
	"strings"

	"github.com/RedHatInsights/serverdensity-sync/types"
)

// Names of facts used to describe a device
const (
	FactProcessorCount      = "ansible_processor_count"
	FactMemTotalMB          = "ansible_memtotal_mb"
	FactSwapTotalMB         = "ansible_swaptotal_mb"
	FactSystem              = "ansible_system"
	FactDistribution        = "ansible_distribution"
	FactDistributionRelease = "ansible_distribution_release"
	FactDistributionVersion = "ansible_distribution_version"
	FactIPv4Addresses       = "ansible_all_ipv4_addresses"
	FactIPv6Addresses       = "ansible_all_ipv6_addresses"
	FactHostname            = "ansible_hostname"
)

// Facts holds facts gathered about one host
type Facts map[string]interface{}

// String returns string fact or empty string
func (facts Facts) String(key string) string {
	value, ok := facts[key].(string)
	if !ok {
		return ""
	}
	return value
}

// Int returns integer fact or nil when the fact is missing or it is not a
// whole number
func (facts Facts) Int(key string) *int {
	var result int
	switch value := facts[key].(type) {
	case int:
		result = value
	case int64:
		result = int(value)
	case uint64:
		result = int(value)
	case float64:
		if value != math.Trunc(value) {
			return nil
		}
		result = int(value)
	case json.Number:
		parsed, err := value.Int64()
		if err != nil {
			return nil
		}
		result = int(parsed)
	default:
		return nil
	}
	return &result
}

// Strings returns list of strings fact, items of other types are skipped
func (facts Facts) Strings(key string) []string {
	switch value := facts[key].(type) {
	case []string:
		return append([]string(nil), value...)
	case []interface{}:
		var result []string
		for _, item := range value {
			if s, ok := item.(string); ok {
				result = append(result, s)
			}
		}
		return result
	default:
		return nil
	}
}

// BuildDevice describes the host as ServerDensity device using its facts and
// host variables
func BuildDevice(host string, vars HostVars, facts Facts) (types.Device, error) {
	location, err := vars.Location()
	if err != nil {
		return types.Device{}, err
	}

	device := types.Device{
		Hostname:     host,
		Name:         host,
		CPUCores:     facts.Int(FactProcessorCount),
		InstalledRAM: facts.Int(FactMemTotalMB),
		SwapSpace:    facts.Int(FactSwapTotalMB),
		Group:        vars.Group(),
		Provider:     vars.Provider(),
		Location:     location,
	}

	system := facts.String(FactSystem)
	code := joinNonEmpty(system,
		facts.String(FactDistribution),
		facts.String(FactDistributionRelease),
		facts.String(FactDistributionVersion))
	if code != "" || system != "" {
		device.OS = &types.OS{Code: code, Name: system}
	}

	device.PublicIPs = append(facts.Strings(FactIPv4Addresses), facts.Strings(FactIPv6Addresses)...)

	return device, nil
}

func joinNonEmpty(parts ...string) string {
	nonEmpty := make([]string, 0, len(parts))
	for _, part := range parts {
		if part != "" {
			nonEmpty = append(nonEmpty, part)
		}
	}
	return strings.Join(nonEmpty, " ")
}
