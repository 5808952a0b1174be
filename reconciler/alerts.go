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

package reconciler

import (
	"github.com/RedHatInsights/serverdensity-sync/types"
)

// Weights used to pick the best remote alert when more of them share the
// same subject, section and field
const (
	comparisonMatchScore = 1
	valueMatchScore      = 2
)

// sameTarget checks if remote alert watches the same metric of the same
// subject as the declared one
func sameTarget(remote, declared types.Alert) bool {
	return remote.SubjectType == declared.SubjectType &&
		remote.SubjectID == declared.SubjectID &&
		remote.Section == declared.Section &&
		remote.Field == declared.Field
}

// matchScore rates how close the remote alert is to the declared one
func matchScore(remote, declared types.Alert) int {
	score := 0
	if remote.Comparison == declared.Comparison {
		score += comparisonMatchScore
	}
	if remote.SameValue(declared.Value) {
		score += valueMatchScore
	}
	return score
}

// pickAlert returns index of the remote alert that corresponds to the
// declared one. Alerts already claimed in this run are never returned. When
// several candidates exist the one with the highest score wins; on a tie the
// earliest candidate is kept.
func pickAlert(alerts []types.Alert, claimed map[int]bool, declared types.Alert) (int, bool) {
	best, bestScore := -1, -1
	candidates := 0

	for i := range alerts {
		if claimed[i] || !sameTarget(alerts[i], declared) {
			continue
		}
		candidates++
		score := matchScore(alerts[i], declared)
		if score > bestScore {
			best, bestScore = i, score
		}
	}

	if candidates == 0 {
		return -1, false
	}
	return best, true
}
