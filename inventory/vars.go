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
	"fmt"
	"sort"

	"github.com/RedHatInsights/serverdensity-sync/types"
)

// Names of host variables read by the synchronization
const (
	inventoryHostnameVar     = "inventory_hostname"
	connectionVar            = "ansible_connection"
	factsVar                 = "ansible_facts"
	GroupVar                 = "sd_group"
	ServicesVar              = "sd_services"
	AlertsVar                = "sd_alerts"
	DeviceGroupAlertsVar     = "sd_devicegroup_alerts"
	ServiceGroupAlertsVar    = "sd_servicegroup_alerts"
	LocationVar              = "location"
	ProviderVar              = "provider"
	APITokenVar              = "sd_api_token"
	AgentKeyVar              = "sd_agent_key"
	DefaultGroup             = "All others"
	localConnection          = "local"
	notificationsFileDefault = "sd_notifications.json"
)

// HostVars holds merged variables of one host
type HostVars map[string]interface{}

// NamedAlert is an alert declaration together with its name
type NamedAlert struct {
	Name  string
	Alert types.AlertDeclaration
}

// String returns value of string variable, empty string is returned for
// missing variables and variables of other types
func (vars HostVars) String(key string) string {
	value, ok := vars[key].(string)
	if !ok {
		return ""
	}
	return value
}

// Hostname returns name of host the variables belong to
func (vars HostVars) Hostname() string {
	return vars.String(inventoryHostnameVar)
}

// Connection returns connection type configured for the host
func (vars HostVars) Connection() string {
	return vars.String(connectionVar)
}

// Group returns name of device group, hosts without sd_group belong to the
// default group
func (vars HostVars) Group() string {
	group := vars.String(GroupVar)
	if group == "" {
		return DefaultGroup
	}
	return group
}

// Provider returns name of hosting provider
func (vars HostVars) Provider() string {
	return vars.String(ProviderVar)
}

// APIToken returns ServerDensity API token stored in host variables
func (vars HostVars) APIToken() string {
	return vars.String(APITokenVar)
}

// Location returns location of the device
func (vars HostVars) Location() (*types.Location, error) {
	var location types.Location
	found, err := vars.Decode(LocationVar, &location)
	if err != nil || !found {
		return nil, err
	}
	return &location, nil
}

// Facts returns facts stored directly in host variables
func (vars HostVars) Facts() (Facts, bool) {
	facts, ok := vars[factsVar].(map[string]interface{})
	if !ok {
		return nil, false
	}
	return Facts(facts), true
}

// Services returns services declared by the host in declaration order
func (vars HostVars) Services() ([]types.ServiceDeclaration, error) {
	var services []types.ServiceDeclaration
	_, err := vars.Decode(ServicesVar, &services)
	return services, err
}

// Alerts returns device alerts declared by the host sorted by name
func (vars HostVars) Alerts() ([]NamedAlert, error) {
	return vars.namedAlerts(AlertsVar)
}

// DeviceGroupAlerts returns device group alerts declared by the host sorted
// by name
func (vars HostVars) DeviceGroupAlerts() ([]NamedAlert, error) {
	return vars.namedAlerts(DeviceGroupAlertsVar)
}

// ServiceGroupAlerts returns service group alerts declared by the host
// sorted by name
func (vars HostVars) ServiceGroupAlerts() ([]NamedAlert, error) {
	return vars.namedAlerts(ServiceGroupAlertsVar)
}

func (vars HostVars) namedAlerts(key string) ([]NamedAlert, error) {
	var alerts map[string]types.AlertDeclaration
	if _, err := vars.Decode(key, &alerts); err != nil {
		return nil, err
	}
	return SortAlerts(alerts), nil
}

// SortAlerts converts map of alert declarations into list sorted by name
func SortAlerts(alerts map[string]types.AlertDeclaration) []NamedAlert {
	names := make([]string, 0, len(alerts))
	for name := range alerts {
		names = append(names, name)
	}
	sort.Strings(names)

	result := make([]NamedAlert, 0, len(names))
	for _, name := range names {
		result = append(result, NamedAlert{Name: name, Alert: alerts[name]})
	}
	return result
}

// Decode converts variable into the given target using its JSON
// representation. False is returned when the variable is not set.
func (vars HostVars) Decode(key string, target interface{}) (bool, error) {
	value, found := vars[key]
	if !found || value == nil {
		return false, nil
	}

	encoded, err := json.Marshal(normalize(value))
	if err != nil {
		return true, fmt.Errorf("variable %s: %w", key, err)
	}
	if err := json.Unmarshal(encoded, target); err != nil {
		return true, fmt.Errorf("variable %s has unexpected structure: %w", key, err)
	}
	return true, nil
}
