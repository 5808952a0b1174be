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

// Package inventory contains the input side of the synchronization: reading
// hosts, groups and variables from a YAML inventory, selecting hosts by
// pattern and gathering facts about the selected hosts.
//
// The inventory uses the same layout as Ansible YAML inventories:
//
//	all:
//	  vars:
//	    sd_group: production
//	  hosts:
//	    web1:
//	      provider: aws
//	  children:
//	    databases:
//	      hosts:
//	        db1:
//
// Variables are merged with this precedence (lowest first): variables of
// group all, variables of parent groups, variables of child groups and
// variables of the host itself.
package inventory

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// AllGroup is name of the implicit group containing all hosts
const AllGroup = "all"

// groupSpec is a group as written in the inventory file
type groupSpec struct {
	Hosts    map[string]map[string]interface{} `yaml:"hosts"`
	Vars     map[string]interface{}            `yaml:"vars"`
	Children map[string]*groupSpec             `yaml:"children"`
}

// Group is one inventory group after all its occurrences are merged
type Group struct {
	Name     string
	Depth    int
	Vars     map[string]interface{}
	Hosts    []string
	Children []string
}

// Inventory is a read-only view of hosts, groups and their variables
type Inventory struct {
	basedir  string
	groups   map[string]*Group
	hostVars map[string]HostVars
}

// ErrNoHosts is returned when a pattern does not match any host
var ErrNoHosts = errors.New("no hosts matched")

// Load reads the inventory from a YAML file
func Load(path string) (*Inventory, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("Unable to read inventory")
		return nil, err
	}

	inventory, err := Parse(content)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("Unable to parse inventory")
		return nil, err
	}

	basedir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	inventory.basedir = basedir

	log.Info().
		Str("path", path).
		Int("hosts", len(inventory.hostVars)).
		Int("groups", len(inventory.groups)).
		Msg("Inventory loaded")
	return inventory, nil
}

// Parse constructs inventory from YAML content
func Parse(content []byte) (*Inventory, error) {
	var document map[string]*groupSpec
	if err := yaml.Unmarshal(content, &document); err != nil {
		return nil, err
	}

	// groups written at top level are children of group all
	root, found := document[AllGroup]
	if !found || root == nil {
		root = &groupSpec{}
	}
	for name, spec := range document {
		if name == AllGroup {
			continue
		}
		if root.Children == nil {
			root.Children = map[string]*groupSpec{}
		}
		if _, exists := root.Children[name]; !exists {
			root.Children[name] = spec
		}
	}

	inventory := &Inventory{
		groups: map[string]*Group{},
	}

	// host variables can be specified on any place the host is listed at
	hostOwnVars := map[string][]map[string]interface{}{}

	var walk func(name string, spec *groupSpec, depth int, ancestors []string) error
	walk = func(name string, spec *groupSpec, depth int, ancestors []string) error {
		for _, ancestor := range ancestors {
			if ancestor == name {
				return fmt.Errorf("group %s is its own ancestor", name)
			}
		}

		group, exists := inventory.groups[name]
		if !exists {
			group = &Group{Name: name, Vars: map[string]interface{}{}}
			inventory.groups[name] = group
		}
		if depth > group.Depth {
			group.Depth = depth
		}
		if spec == nil {
			return nil
		}

		for key, value := range spec.Vars {
			group.Vars[key] = normalize(value)
		}
		for host, vars := range spec.Hosts {
			group.Hosts = appendUnique(group.Hosts, host)
			if len(vars) > 0 {
				hostOwnVars[host] = append(hostOwnVars[host], vars)
			}
		}

		children := sortedKeys(spec.Children)
		for _, child := range children {
			group.Children = appendUnique(group.Children, child)
			err := walk(child, spec.Children[child], depth+1, append(ancestors, name))
			if err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk(AllGroup, root, 0, nil); err != nil {
		return nil, err
	}

	inventory.hostVars = map[string]HostVars{}
	for host := range inventory.collectHosts(AllGroup) {
		vars := HostVars{}
		for _, group := range inventory.groupsOf(host) {
			for key, value := range group.Vars {
				vars[key] = value
			}
		}
		for _, own := range hostOwnVars[host] {
			for key, value := range own {
				vars[key] = normalize(value)
			}
		}
		vars[inventoryHostnameVar] = host
		inventory.hostVars[host] = vars
	}

	return inventory, nil
}

// BaseDir returns directory the inventory was loaded from
func (inventory *Inventory) BaseDir() string {
	return inventory.basedir
}

// Hosts returns sorted names of all hosts
func (inventory *Inventory) Hosts() []string {
	return sortedKeys(inventory.hostVars)
}

// Groups returns sorted names of all groups
func (inventory *Inventory) Groups() []string {
	return sortedKeys(inventory.groups)
}

// Group returns group with the given name
func (inventory *Inventory) Group(name string) (Group, bool) {
	group, found := inventory.groups[name]
	if !found {
		return Group{}, false
	}
	return *group, true
}

// GroupHosts returns sorted names of hosts belonging to the group or any of
// its descendants
func (inventory *Inventory) GroupHosts(name string) []string {
	return sortedKeys(inventory.collectHosts(name))
}

// HostVars returns copy of merged variables of the host
func (inventory *Inventory) HostVars(host string) (HostVars, bool) {
	vars, found := inventory.hostVars[host]
	if !found {
		return nil, false
	}
	clone := make(HostVars, len(vars))
	for key, value := range vars {
		clone[key] = value
	}
	return clone, true
}

func (inventory *Inventory) collectHosts(name string) map[string]struct{} {
	hosts := map[string]struct{}{}
	visited := map[string]bool{}

	var collect func(name string)
	collect = func(name string) {
		if visited[name] {
			return
		}
		visited[name] = true
		group, found := inventory.groups[name]
		if !found {
			return
		}
		for _, host := range group.Hosts {
			hosts[host] = struct{}{}
		}
		for _, child := range group.Children {
			collect(child)
		}
	}
	collect(name)

	return hosts
}

// groupsOf returns all groups the host belongs to (directly or through
// child groups) ordered by depth and name
func (inventory *Inventory) groupsOf(host string) []*Group {
	var groups []*Group
	for _, group := range inventory.groups {
		if _, member := inventory.collectHosts(group.Name)[host]; member {
			groups = append(groups, group)
		}
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Depth != groups[j].Depth {
			return groups[i].Depth < groups[j].Depth
		}
		return groups[i].Name < groups[j].Name
	})
	return groups
}

func appendUnique(items []string, item string) []string {
	for _, existing := range items {
		if existing == item {
			return items
		}
	}
	return append(items, item)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// normalize converts maps with non-string keys produced by YAML decoder into
// maps with string keys so that values can be encoded into JSON
func normalize(value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		result := make(map[string]interface{}, len(v))
		for key, item := range v {
			result[key] = normalize(item)
		}
		return result
	case map[interface{}]interface{}:
		result := make(map[string]interface{}, len(v))
		for key, item := range v {
			result[fmt.Sprint(key)] = normalize(item)
		}
		return result
	case []interface{}:
		result := make([]interface{}, len(v))
		for i, item := range v {
			result[i] = normalize(item)
		}
		return result
	default:
		return value
	}
}
