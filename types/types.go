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

// Package types contains the records exchanged with the ServerDensity API,
// the declarations read from inventory host variables and other data types
// shared between packages.
package types

import (
	"bytes"
	"encoding/json"
)

// ObjectID represents the identifier assigned to any object by the
// ServerDensity API (the `_id` attribute).
type ObjectID string

// SubjectType represents the kind of subject an alert config is attached to
type SubjectType string

// Subject types known by ServerDensity alert configs
const (
	SubjectDevice       SubjectType = "device"
	SubjectDeviceGroup  SubjectType = "deviceGroup"
	SubjectService      SubjectType = "service"
	SubjectServiceGroup SubjectType = "serviceGroup"
)

// RecipientTypeUser is the notification type of recipients resolved against
// the users list. All other types are resolved against notification channels.
const RecipientTypeUser = "user"

// OS describes operating system of a device
type OS struct {
	Code string `json:"code,omitempty"`
	Name string `json:"name,omitempty"`
}

// Location describes where the device is located
type Location struct {
	CountryCode string `json:"countryCode,omitempty"`
	CountryName string `json:"countryName,omitempty"`
	Text        string `json:"text,omitempty"`
}

// Device represents one monitored host in the ServerDensity inventory.
type Device struct {
	ID           ObjectID  `json:"_id,omitempty"`
	Hostname     string    `json:"hostname,omitempty"`
	Name         string    `json:"name,omitempty"`
	CPUCores     *int      `json:"cpuCores,omitempty"`
	InstalledRAM *int      `json:"installedRAM,omitempty"`
	SwapSpace    *int      `json:"swapSpace,omitempty"`
	OS           *OS       `json:"os,omitempty"`
	PrivateIPs   []string  `json:"privateIPs,omitempty"`
	PrivateDNS   []string  `json:"privateDNS,omitempty"`
	PublicIPs    []string  `json:"publicIPs,omitempty"`
	PublicDNS    []string  `json:"publicDNS,omitempty"`
	Location     *Location `json:"location,omitempty"`
	Group        string    `json:"group,omitempty"`
	Provider     string    `json:"provider,omitempty"`
	AgentKey     string    `json:"agentKey,omitempty"`
}

// Service represents one service check in the ServerDensity inventory.
type Service struct {
	ID             ObjectID `json:"_id,omitempty"`
	Name           string   `json:"name,omitempty"`
	CheckType      string   `json:"checkType,omitempty"`
	CheckURL       string   `json:"checkUrl,omitempty"`
	CheckMethod    string   `json:"checkMethod,omitempty"`
	CheckLocations []string `json:"checkLocations,omitempty"`
	SlowThreshold  *int     `json:"slowThreshold,omitempty"`
	Timeout        *int     `json:"timeout,omitempty"`
	Group          string   `json:"group,omitempty"`
}

// Interval is used by alert configs for wait and repeat settings
type Interval struct {
	Seconds     *int   `json:"seconds,omitempty"`
	Enabled     *bool  `json:"enabled,omitempty"`
	DisplayUnit string `json:"displayUnit,omitempty"`
}

// Recipient is one target of alert notifications
type Recipient struct {
	Type    string   `json:"type"`
	ID      ObjectID `json:"id"`
	Actions []string `json:"actions,omitempty"`
}

// Alert represents one alert config. Value is kept in its raw JSON form as
// the API accepts both numbers and strings there.
type Alert struct {
	ID          ObjectID        `json:"_id,omitempty"`
	SubjectType SubjectType     `json:"subjectType,omitempty"`
	SubjectID   string          `json:"subjectId,omitempty"`
	Section     string          `json:"section,omitempty"`
	Field       string          `json:"field,omitempty"`
	Comparison  string          `json:"comparison,omitempty"`
	Value       json.RawMessage `json:"value,omitempty"`
	Wait        *Interval       `json:"wait,omitempty"`
	Repeat      *Interval       `json:"repeat,omitempty"`
	Fix         *bool           `json:"fix,omitempty"`
	Enabled     *bool           `json:"enabled,omitempty"`
	Group       string          `json:"group,omitempty"`
	Recipients  []Recipient     `json:"recipients"`
}

// SameValue checks if both alerts have the same threshold value. Values are
// compared in their compacted JSON form, so `80` differs from `"80"`.
func (a Alert) SameValue(value json.RawMessage) bool {
	return bytes.Equal(compactJSON(a.Value), compactJSON(value))
}

func compactJSON(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return nil
	}
	var buffer bytes.Buffer
	if err := json.Compact(&buffer, raw); err != nil {
		return raw
	}
	return buffer.Bytes()
}

// User represents one ServerDensity user account
type User struct {
	ID             ObjectID `json:"_id,omitempty"`
	Login          string   `json:"login,omitempty"`
	FirstName      string   `json:"firstName,omitempty"`
	LastName       string   `json:"lastName,omitempty"`
	EmailAddresses []string `json:"emailAddresses,omitempty"`
}

// Notification represents one notification channel (webhook, slack, pager
// etc.) read from the static notifications file.
type Notification struct {
	ID   ObjectID `json:"_id,omitempty"`
	Type string   `json:"type,omitempty"`
	Name string   `json:"name,omitempty"`
}

// Snapshot holds all remote collections fetched at the start of a run. It
// has exactly the same structure as the cache file.
type Snapshot struct {
	Devices       []Device       `json:"devices"`
	Services      []Service      `json:"services"`
	Alerts        []Alert        `json:"alerts"`
	Users         []User         `json:"users"`
	Notifications []Notification `json:"notifications"`
}

// Notify is one recipient declaration of an alert
type Notify struct {
	Type    string   `json:"type" yaml:"type"`
	Name    string   `json:"name" yaml:"name"`
	Actions []string `json:"actions,omitempty" yaml:"actions"`
}

// AlertDeclaration is an alert declared in inventory host variables
// (sd_alerts, sd_devicegroup_alerts, sd_servicegroup_alerts or the alerts
// of a service).
type AlertDeclaration struct {
	Host    string   `json:"host,omitempty"`
	Service string   `json:"service,omitempty"`
	Group   string   `json:"group,omitempty"`
	Notify  []Notify `json:"notify,omitempty"`
	Config  Alert    `json:"config"`
}

// ServiceDeclaration is a service declared in the sd_services host variable
type ServiceDeclaration struct {
	Service
	Alerts map[string]AlertDeclaration `json:"alerts,omitempty"`
}

// CliFlags represents structure holding all command line arguments/flags.
type CliFlags struct {
	HostPattern       string
	Limit             string
	APIToken          string
	InventoryPath     string
	FactsDir          string
	CacheFile         string
	AgentKeysFile     string
	ForceUpdate       bool
	Cleanup           bool
	ReadOnly          bool
	ShowVersion       bool
	ShowAuthors       bool
	ShowConfiguration bool
	Verbose           bool
}

// DBDriver type for db driver enum
type DBDriver int

const (
	// DBDriverSQLite3 shows that db driver is sqlite
	DBDriverSQLite3 DBDriver = iota
	// DBDriverPostgres shows that db driver is postgres
	DBDriverPostgres
	// DBDriverGeneral general sql(used for mock now)
	DBDriverGeneral
)

// ChangeAction describes what happened to a remote object
type ChangeAction string

// Change actions
const (
	ActionCreated ChangeAction = "created"
	ActionUpdated ChangeAction = "updated"
	ActionDeleted ChangeAction = "deleted"
)

// ChangeEvent is produced for every mutation made in ServerDensity
type ChangeEvent struct {
	RunID     string       `json:"run_id"`
	Action    ChangeAction `json:"action"`
	Kind      string       `json:"kind"`
	Key       string       `json:"key"`
	ID        ObjectID     `json:"id"`
	Timestamp string       `json:"timestamp"`
}
