// Copyright 2021, 2022 Red Hat, Inc
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sdclient

import (
	"encoding/json"
	"net/http"

	"github.com/RedHatInsights/serverdensity-sync/types"
)

// API paths of the collections handled by this tool
const (
	DevicesPath  = "inventory/devices"
	ServicesPath = "inventory/services"
	AlertsPath   = "alerts/configs"
	UsersPath    = "users/users"
)

// ObjectPath returns path to one object in the given collection. Empty ID
// means the collection itself, used to create new objects.
func ObjectPath(collection string, id types.ObjectID) string {
	if id == "" {
		return collection
	}
	return collection + "/" + string(id)
}

func list(caller Caller, path string, target interface{}) error {
	body, err := caller.Call(path, nil, http.MethodGet)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, target)
}

// ListDevices retrieves all devices
func ListDevices(caller Caller) ([]types.Device, error) {
	var devices []types.Device
	err := list(caller, DevicesPath, &devices)
	return devices, err
}

// ListServices retrieves all service checks
func ListServices(caller Caller) ([]types.Service, error) {
	var services []types.Service
	err := list(caller, ServicesPath, &services)
	return services, err
}

// ListAlerts retrieves all alert configs
func ListAlerts(caller Caller) ([]types.Alert, error) {
	var alerts []types.Alert
	err := list(caller, AlertsPath, &alerts)
	return alerts, err
}

// ListUsers retrieves all users
func ListUsers(caller Caller) ([]types.User, error) {
	var users []types.User
	err := list(caller, UsersPath, &users)
	return users, err
}

// SaveDevice creates the device when its ID is empty, otherwise the device
// with given ID is updated. The record returned by the API is returned.
func SaveDevice(caller Caller, device types.Device) (types.Device, error) {
	id := device.ID
	device.ID = ""

	var saved types.Device
	body, err := caller.Call(ObjectPath(DevicesPath, id), device, http.MethodPost)
	if err != nil {
		return saved, err
	}
	err = json.Unmarshal(body, &saved)
	return saved, err
}

// SaveService creates or updates the service, see SaveDevice
func SaveService(caller Caller, service types.Service) (types.Service, error) {
	id := service.ID
	service.ID = ""

	var saved types.Service
	body, err := caller.Call(ObjectPath(ServicesPath, id), service, http.MethodPost)
	if err != nil {
		return saved, err
	}
	err = json.Unmarshal(body, &saved)
	return saved, err
}

// SaveAlert creates or updates the alert config, see SaveDevice
func SaveAlert(caller Caller, alert types.Alert) (types.Alert, error) {
	id := alert.ID
	alert.ID = ""

	var saved types.Alert
	body, err := caller.Call(ObjectPath(AlertsPath, id), alert, http.MethodPost)
	if err != nil {
		return saved, err
	}
	err = json.Unmarshal(body, &saved)
	return saved, err
}

// DeleteAlert removes the alert config with given ID
func DeleteAlert(caller Caller, id types.ObjectID) error {
	_, err := caller.Call(ObjectPath(AlertsPath, id), nil, http.MethodDelete)
	return err
}
