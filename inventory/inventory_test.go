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

package inventory_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/RedHatInsights/insights-operator-utils/tests/helpers"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/RedHatInsights/serverdensity-sync/inventory"
	"github.com/RedHatInsights/serverdensity-sync/types"
)

const (
	inventoryFile = "../tests/inventory/hosts.yml"
	factsDir      = "../tests/facts"
)

func init() {
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
}

func mustLoadInventory(t *testing.T) *inventory.Inventory {
	inv, err := inventory.Load(inventoryFile)
	helpers.FailOnError(t, err)
	return inv
}

func mustHostVars(t *testing.T, inv *inventory.Inventory, host string) inventory.HostVars {
	vars, found := inv.HostVars(host)
	if !found {
		t.Fatalf("host %s not found", host)
	}
	return vars
}

func TestLoadMissingFile(t *testing.T) {
	_, err := inventory.Load("../tests/inventory/this_does_not_exist.yml")
	assert.Error(t, err)
}

func TestParseInvalidYAML(t *testing.T) {
	_, err := inventory.Parse([]byte("all: [this, is, not, a, group"))
	assert.Error(t, err)
}

func TestParseGroupCycle(t *testing.T) {
	content := `
all:
  children:
    a:
      children:
        b:
          children:
            a:
`
	_, err := inventory.Parse([]byte(content))
	assert.Error(t, err)
}

func TestHostsAndGroups(t *testing.T) {
	inv := mustLoadInventory(t)

	assert.Equal(t, []string{"db1", "localhost", "web1", "web2"}, inv.Hosts())
	assert.Equal(t, []string{"all", "canary", "databases", "webservers"}, inv.Groups())
	assert.Equal(t, []string{"web1", "web2"}, inv.GroupHosts("webservers"))
	assert.Equal(t, []string{"web2"}, inv.GroupHosts("canary"))

	group, found := inv.Group("canary")
	assert.True(t, found)
	assert.Equal(t, 2, group.Depth)

	abs, err := filepath.Abs("../tests/inventory")
	helpers.FailOnError(t, err)
	assert.Equal(t, abs, inv.BaseDir())
	assert.Equal(t, filepath.Join(abs, "sd_notifications.json"), inv.NotificationsFile())
}

func TestTopLevelGroupsAreChildrenOfAll(t *testing.T) {
	content := `
servers:
  hosts:
    s1:
      sd_group: top
`
	inv, err := inventory.Parse([]byte(content))
	helpers.FailOnError(t, err)
	assert.Equal(t, []string{"s1"}, inv.Hosts())
	assert.Equal(t, []string{"s1"}, inv.GroupHosts("servers"))
	vars := mustHostVars(t, inv, "s1")
	assert.Equal(t, "top", vars.Group())
}

// TestVariablePrecedence checks that child group overrides parent group
// and host variables override any group
func TestVariablePrecedence(t *testing.T) {
	inv := mustLoadInventory(t)

	testCases := []struct {
		host     string
		group    string
		provider string
	}{
		{"web1", "web", "hetzner"},
		{"web2", "canary", "hetzner"},
		{"db1", inventory.DefaultGroup, "aws"},
		{"localhost", inventory.DefaultGroup, "hetzner"},
	}

	for _, tc := range testCases {
		t.Run(tc.host, func(t *testing.T) {
			vars := mustHostVars(t, inv, tc.host)
			assert.Equal(t, tc.group, vars.Group())
			assert.Equal(t, tc.provider, vars.Provider())
			assert.Equal(t, "token_from_inventory", vars.APIToken())
			assert.Equal(t, tc.host, vars.Hostname())
		})
	}
}

func TestHostVarsAreCopied(t *testing.T) {
	inv := mustLoadInventory(t)

	vars := mustHostVars(t, inv, "web1")
	vars[inventory.GroupVar] = "changed"

	vars = mustHostVars(t, inv, "web1")
	assert.Equal(t, "web", vars.Group())
}

func TestUnknownHost(t *testing.T) {
	_, found := mustLoadInventory(t).HostVars("web42")
	assert.False(t, found)
}

func TestSelectHosts(t *testing.T) {
	inv := mustLoadInventory(t)

	testCases := []struct {
		name     string
		pattern  string
		limit    string
		expected []string
	}{
		{"all", "all", "", []string{"db1", "localhost", "web1", "web2"}},
		{"star", "*", "", []string{"db1", "localhost", "web1", "web2"}},
		{"empty", "", "", []string{"db1", "localhost", "web1", "web2"}},
		{"group", "webservers", "", []string{"web1", "web2"}},
		{"host", "db1", "", []string{"db1"}},
		{"glob", "web*", "", []string{"web1", "web2"}},
		{"union", "canary:databases", "", []string{"db1", "web2"}},
		{"comma union", "web1,db1", "", []string{"db1", "web1"}},
		{"exclusion", "all:!webservers", "", []string{"db1", "localhost"}},
		{"intersection", "webservers:&canary", "", []string{"web2"}},
		{"limit", "all", "webservers", []string{"web1", "web2"}},
		{"limit glob", "webservers", "*1", []string{"web1"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			hosts, err := inv.SelectHosts(tc.pattern, tc.limit)
			helpers.FailOnError(t, err)
			assert.Equal(t, tc.expected, hosts)
		})
	}
}

func TestSelectHostsNoMatch(t *testing.T) {
	inv := mustLoadInventory(t)

	_, err := inv.SelectHosts("mail*", "")
	assert.ErrorIs(t, err, inventory.ErrNoHosts)

	_, err = inv.SelectHosts("databases", "webservers")
	assert.ErrorIs(t, err, inventory.ErrNoHosts)
}

func TestSelectHostsInvalidGlob(t *testing.T) {
	_, err := mustLoadInventory(t).SelectHosts("web[", "")
	assert.Error(t, err)
}

func TestDeclarations(t *testing.T) {
	inv := mustLoadInventory(t)
	web1 := mustHostVars(t, inv, "web1")

	services, err := web1.Services()
	helpers.FailOnError(t, err)
	assert.Len(t, services, 1)
	assert.Equal(t, "homepage", services[0].Name)
	assert.Equal(t, []string{"ams", "sfo"}, services[0].CheckLocations)
	assert.Contains(t, services[0].Alerts, "status")
	assert.True(t, services[0].Alerts["status"].Config.SameValue(json.RawMessage(`"200"`)))

	alerts, err := web1.Alerts()
	helpers.FailOnError(t, err)
	assert.Len(t, alerts, 1)
	assert.Equal(t, "disk", alerts[0].Name)
	assert.Equal(t, "web1", alerts[0].Alert.Host)
	assert.True(t, alerts[0].Alert.Config.SameValue(json.RawMessage(`90`)))

	groupAlerts, err := web1.DeviceGroupAlerts()
	helpers.FailOnError(t, err)
	assert.Len(t, groupAlerts, 1)
	assert.Equal(t, []types.Notify{{Type: "user", Name: "admin", Actions: []string{"email", "sms"}}}, groupAlerts[0].Alert.Notify)

	location, err := web1.Location()
	helpers.FailOnError(t, err)
	assert.Equal(t, &types.Location{CountryCode: "CZ", CountryName: "Czech Republic", Text: "Brno"}, location)

	db1 := mustHostVars(t, inv, "db1")
	serviceGroupAlerts, err := db1.ServiceGroupAlerts()
	helpers.FailOnError(t, err)
	assert.Equal(t, "api", serviceGroupAlerts[0].Alert.Group)

	location, err = db1.Location()
	helpers.FailOnError(t, err)
	assert.Nil(t, location)
}

func TestDeclarationsWithUnexpectedStructure(t *testing.T) {
	vars := inventory.HostVars{
		inventory.ServicesVar: "this is not a list",
		inventory.AlertsVar:   []interface{}{"neither", "a", "map"},
	}

	_, err := vars.Services()
	assert.Error(t, err)

	_, err = vars.Alerts()
	assert.Error(t, err)
}

func TestSortAlerts(t *testing.T) {
	sorted := inventory.SortAlerts(map[string]types.AlertDeclaration{
		"zeta":  {Host: "z"},
		"alpha": {Host: "a"},
		"mid":   {Host: "m"},
	})
	assert.Equal(t, "alpha", sorted[0].Name)
	assert.Equal(t, "mid", sorted[1].Name)
	assert.Equal(t, "zeta", sorted[2].Name)
}

func TestLoadNotifications(t *testing.T) {
	notifications, err := inventory.LoadNotifications(mustLoadInventory(t).NotificationsFile())
	helpers.FailOnError(t, err)
	assert.Equal(t, []types.Notification{
		{ID: "n1", Type: "slack", Name: "ops"},
		{ID: "n2", Type: "pagerduty", Name: "oncall"},
	}, notifications)
}

func TestLoadNotificationsMissingFile(t *testing.T) {
	notifications, err := inventory.LoadNotifications(filepath.Join(t.TempDir(), "sd_notifications.json"))
	helpers.FailOnError(t, err)
	assert.Empty(t, notifications)
	assert.NotNil(t, notifications)
}

func TestLoadNotificationsInvalidFile(t *testing.T) {
	_, err := inventory.LoadNotifications(inventoryFile)
	assert.Error(t, err)
}

func TestSaveAgentKeys(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "agent_keys.json")
	helpers.FailOnError(t, inventory.SaveAgentKeys(filename, map[string]string{"web1": "key1"}))

	var document map[string]map[string]string
	helpers.FailOnError(t, readJSON(filename, &document))
	assert.Equal(t, map[string]map[string]string{"web1": {"sd_agent_key": "key1"}}, document)
}
