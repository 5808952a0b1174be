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
	"fmt"

	"github.com/RedHatInsights/serverdensity-sync/types"
)

// UnknownSubjectError occurs when an alert refers to a device or service
// that does not exist in ServerDensity
type UnknownSubjectError struct {
	SubjectType types.SubjectType
	Name        string
}

func (e *UnknownSubjectError) Error() string {
	return fmt.Sprintf("unknown %s '%s' referenced by alert", e.SubjectType, e.Name)
}

// UnsupportedSubjectTypeError occurs when alert should be attached to
// subject of unknown type
type UnsupportedSubjectTypeError struct {
	SubjectType types.SubjectType
}

func (e *UnsupportedSubjectTypeError) Error() string {
	return fmt.Sprintf("subject type '%s' is not supported", e.SubjectType)
}

// InvalidDeclarationError is related to malformed declarations found in
// inventory host variables
type InvalidDeclarationError struct {
	Host string
	Msg  string
}

func (e *InvalidDeclarationError) Error() string {
	return fmt.Sprintf("invalid declaration for host %s: %s", e.Host, e.Msg)
}

// SnapshotNotLoadedError occurs when objects are reconciled before remote
// state has been listed
type SnapshotNotLoadedError struct{}

func (e *SnapshotNotLoadedError) Error() string {
	return "remote state has not been listed yet"
}
