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
	"path"
	"strings"
)

// SelectHosts returns sorted names of hosts matching the pattern, optionally
// restricted by the limit pattern.
//
// Pattern consists of terms separated by colon or comma. Term is either
// `all`/`*`, group name, host name or shell glob matched against host names.
// Terms prefixed by `&` intersect the selection and terms prefixed by `!`
// exclude hosts from it.
func (inventory *Inventory) SelectHosts(pattern, limit string) ([]string, error) {
	selected, err := inventory.match(pattern)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(limit) != "" {
		limited, err := inventory.match(limit)
		if err != nil {
			return nil, err
		}
		for host := range selected {
			if _, found := limited[host]; !found {
				delete(selected, host)
			}
		}
	}

	if len(selected) == 0 {
		return nil, ErrNoHosts
	}
	return sortedKeys(selected), nil
}

func (inventory *Inventory) match(pattern string) (map[string]struct{}, error) {
	selected := map[string]struct{}{}
	var intersections, exclusions []map[string]struct{}

	terms := strings.FieldsFunc(pattern, func(r rune) bool {
		return r == ':' || r == ','
	})
	if len(terms) == 0 {
		terms = []string{AllGroup}
	}

	for _, term := range terms {
		term = strings.TrimSpace(term)
		switch {
		case strings.HasPrefix(term, "&"):
			hosts, err := inventory.matchTerm(term[1:])
			if err != nil {
				return nil, err
			}
			intersections = append(intersections, hosts)
		case strings.HasPrefix(term, "!"):
			hosts, err := inventory.matchTerm(term[1:])
			if err != nil {
				return nil, err
			}
			exclusions = append(exclusions, hosts)
		default:
			hosts, err := inventory.matchTerm(term)
			if err != nil {
				return nil, err
			}
			for host := range hosts {
				selected[host] = struct{}{}
			}
		}
	}

	for _, intersection := range intersections {
		for host := range selected {
			if _, found := intersection[host]; !found {
				delete(selected, host)
			}
		}
	}
	for _, exclusion := range exclusions {
		for host := range exclusion {
			delete(selected, host)
		}
	}

	return selected, nil
}

func (inventory *Inventory) matchTerm(term string) (map[string]struct{}, error) {
	if term == AllGroup || term == "*" {
		return inventory.collectHosts(AllGroup), nil
	}
	if _, found := inventory.groups[term]; found {
		return inventory.collectHosts(term), nil
	}

	hosts := map[string]struct{}{}
	for host := range inventory.hostVars {
		matched, err := path.Match(term, host)
		if err != nil {
			return nil, err
		}
		if matched {
			hosts[host] = struct{}{}
		}
	}
	return hosts, nil
}
