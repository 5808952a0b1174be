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

// Package reconciler contains the logic that makes ServerDensity match the
// declarations found in inventory. Remote state is listed once at the start
// of a run; after that devices, services and alert configs are created when
// missing and updated only when forced. Alert configs that no declaration
// touched can be removed at the end of the run.
package reconciler

import (
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/RedHatInsights/serverdensity-sync/cache"
	"github.com/RedHatInsights/serverdensity-sync/inventory"
	"github.com/RedHatInsights/serverdensity-sync/sdclient"
	"github.com/RedHatInsights/serverdensity-sync/types"
)

// Kinds of objects managed by the reconciler, used in change events and as
// metric labels
const (
	KindDevice  = "device"
	KindService = "service"
	KindAlert   = "alert"
)

// Messages
const (
	hostKey      = "host"
	serviceKey   = "service"
	alertKey     = "alert"
	groupKey     = "group"
	idKey        = "id"
	cacheErrMsg  = "Unable to update remote state cache"
	eventErrMsg  = "Change event was not published"
	skippedMsg   = "Already exists, update not forced"
	createdMsg   = "Created"
	updatedMsg   = "Updated"
	deletedMsg   = "Deleted"
	recipientMsg = "Unable to resolve alert recipient, skipping it"
)

// EventPublisher is the sink of change events
type EventPublisher interface {
	Publish(action types.ChangeAction, kind, key string, id types.ObjectID) error
}

// Options influence the behaviour of one run
type Options struct {
	// ForceUpdate enables updates of objects that already exist
	ForceUpdate bool
	// Cleanup enables deletion of alert configs not declared in inventory
	Cleanup bool
}

// HostInput is everything known about one host selected for the run
type HostInput struct {
	Name  string
	Vars  inventory.HostVars
	Facts inventory.Facts
}

// Result summarizes one run
type Result struct {
	Created   int
	Updated   int
	Skipped   int
	Deleted   int
	AgentKeys map[string]string
}

// Reconciler holds remote state for the duration of one run
type Reconciler struct {
	api     sdclient.Caller
	cache   cache.Cache
	events  EventPublisher
	options Options

	state  types.Snapshot
	listed bool

	// claimed contains indexes of alerts in state.Alerts that correspond
	// to some declaration processed in this run
	claimed map[int]bool

	result Result
}

// New creates reconciler talking to the API through given caller. Events
// might be nil, in which case no change events are published.
func New(api sdclient.Caller, stateCache cache.Cache, events EventPublisher, options Options) *Reconciler {
	return &Reconciler{
		api:     countingCaller{caller: api},
		cache:   stateCache,
		events:  events,
		options: options,
		claimed: make(map[int]bool),
		result: Result{
			AgentKeys: make(map[string]string),
		},
	}
}

// countingCaller updates API metrics for every call
type countingCaller struct {
	caller sdclient.Caller
}

func (c countingCaller) Call(path string, payload interface{}, method string) ([]byte, error) {
	APIRequests.Inc()
	body, err := c.caller.Call(path, payload, method)
	if err != nil {
		APIRequestErrors.Inc()
	}
	return body, err
}

// ListAll loads remote state. Cached snapshot is used when available,
// otherwise all collections are fetched from the API, notification channels
// are read from the given file and the result is stored in cache.
func (r *Reconciler) ListAll(notificationsFile string) error {
	snapshot, found, err := r.cache.Load()
	if err != nil {
		log.Error().Err(err).Msg("Unable to read remote state cache")
		return err
	}

	if found {
		log.Info().Msg("Remote state loaded from cache")
	} else {
		log.Info().Msg("Fetching remote state from ServerDensity")
		snapshot, err = r.fetchAll(notificationsFile)
		if err != nil {
			return err
		}
	}

	r.state = snapshot
	r.listed = true
	for _, device := range r.state.Devices {
		if device.AgentKey != "" && device.Name != "" {
			r.result.AgentKeys[device.Name] = device.AgentKey
		}
	}

	log.Info().
		Int("devices", len(r.state.Devices)).
		Int("services", len(r.state.Services)).
		Int("alerts", len(r.state.Alerts)).
		Int("users", len(r.state.Users)).
		Int("notifications", len(r.state.Notifications)).
		Msg("Remote state")

	if found {
		return nil
	}
	return r.cache.Save(r.state, true)
}

func (r *Reconciler) fetchAll(notificationsFile string) (types.Snapshot, error) {
	var (
		snapshot types.Snapshot
		err      error
	)

	if snapshot.Devices, err = sdclient.ListDevices(r.api); err != nil {
		return snapshot, err
	}
	if snapshot.Services, err = sdclient.ListServices(r.api); err != nil {
		return snapshot, err
	}
	if snapshot.Alerts, err = sdclient.ListAlerts(r.api); err != nil {
		return snapshot, err
	}
	if snapshot.Users, err = sdclient.ListUsers(r.api); err != nil {
		return snapshot, err
	}
	snapshot.Notifications, err = inventory.LoadNotifications(notificationsFile)
	return snapshot, err
}

// Snapshot returns the current view of remote state
func (r *Reconciler) Snapshot() types.Snapshot {
	return r.state
}

// Result returns summary of the run so far
func (r *Reconciler) Result() Result {
	return r.result
}

func (r *Reconciler) deviceID(hostname string) (types.ObjectID, bool) {
	for _, device := range r.state.Devices {
		if device.Hostname == hostname {
			return device.ID, true
		}
	}
	return "", false
}

func (r *Reconciler) serviceID(name string) (types.ObjectID, bool) {
	for _, service := range r.state.Services {
		if service.Name == name {
			return service.ID, true
		}
	}
	return "", false
}

func (r *Reconciler) userID(login string) (types.ObjectID, bool) {
	for _, user := range r.state.Users {
		if user.Login == login {
			return user.ID, true
		}
	}
	return "", false
}

func (r *Reconciler) notificationID(notificationType, name string) (types.ObjectID, bool) {
	for _, notification := range r.state.Notifications {
		if notification.Type == notificationType && notification.Name == name {
			return notification.ID, true
		}
	}
	return "", false
}

// EnsureHost makes sure the host exists as ServerDensity device
func (r *Reconciler) EnsureHost(host HostInput) error {
	if !r.listed {
		return &SnapshotNotLoadedError{}
	}

	device, err := inventory.BuildDevice(host.Name, host.Vars, host.Facts)
	if err != nil {
		return &InvalidDeclarationError{Host: host.Name, Msg: err.Error()}
	}

	id, found := r.deviceID(host.Name)
	action := types.ActionCreated
	if found {
		if !r.options.ForceUpdate {
			r.skipped(KindDevice, host.Name)
			return nil
		}
		device.ID = id
		action = types.ActionUpdated
	} else {
		r.resetCache()
	}

	saved, err := sdclient.SaveDevice(r.api, device)
	if err != nil {
		return err
	}
	if saved.ID == "" {
		saved.ID = id
	}
	if saved.Hostname == "" {
		saved.Hostname = host.Name
	}

	devices := make([]types.Device, 0, len(r.state.Devices)+1)
	for _, existing := range r.state.Devices {
		if existing.Hostname != host.Name {
			devices = append(devices, existing)
		}
	}
	r.state.Devices = append(devices, saved)
	r.updateCache()

	if saved.AgentKey != "" {
		r.result.AgentKeys[host.Name] = saved.AgentKey
	}

	r.changed(action, KindDevice, host.Name, saved.ID)
	return nil
}

// EnsureService makes sure the service check exists in ServerDensity
func (r *Reconciler) EnsureService(declaration types.ServiceDeclaration) error {
	if !r.listed {
		return &SnapshotNotLoadedError{}
	}

	service := declaration.Service
	id, found := r.serviceID(service.Name)
	action := types.ActionCreated
	if found {
		if !r.options.ForceUpdate {
			r.skipped(KindService, service.Name)
			return nil
		}
		service.ID = id
		action = types.ActionUpdated
	} else {
		service.ID = ""
		r.resetCache()
	}

	saved, err := sdclient.SaveService(r.api, service)
	if err != nil {
		return err
	}
	if saved.ID == "" {
		saved.ID = id
	}
	if saved.Name == "" {
		saved.Name = service.Name
	}

	if found {
		for i := range r.state.Services {
			if r.state.Services[i].ID == id {
				r.state.Services[i] = saved
			}
		}
	} else {
		r.state.Services = append(r.state.Services, saved)
	}
	r.updateCache()

	r.changed(action, KindService, service.Name, saved.ID)
	return nil
}

// EnsureAlert makes sure the alert config exists for given subject. Group
// is used for group alerts only and it is also the subject ID of such
// alerts.
func (r *Reconciler) EnsureAlert(declaration types.AlertDeclaration, subjectType types.SubjectType, group string) error {
	if !r.listed {
		return &SnapshotNotLoadedError{}
	}

	config := declaration.Config
	config.ID = ""
	config.Group = group
	config.SubjectType = subjectType
	config.Recipients = r.resolveRecipients(declaration.Notify)

	switch subjectType {
	case types.SubjectDevice:
		id, found := r.deviceID(declaration.Host)
		if !found {
			return &UnknownSubjectError{SubjectType: subjectType, Name: declaration.Host}
		}
		config.SubjectID = string(id)
	case types.SubjectService:
		id, found := r.serviceID(declaration.Service)
		if !found {
			return &UnknownSubjectError{SubjectType: subjectType, Name: declaration.Service}
		}
		config.SubjectID = string(id)
	case types.SubjectDeviceGroup, types.SubjectServiceGroup:
		config.SubjectID = group
	default:
		return &UnsupportedSubjectTypeError{SubjectType: subjectType}
	}

	key := string(subjectType) + ":" + config.SubjectID + ":" + config.Section + "." + config.Field

	index, found := pickAlert(r.state.Alerts, r.claimed, config)
	action := types.ActionCreated
	var id types.ObjectID
	if found {
		r.claimed[index] = true
		if !r.options.ForceUpdate {
			r.skipped(KindAlert, key)
			return nil
		}
		id = r.state.Alerts[index].ID
		config.ID = id
		action = types.ActionUpdated
	} else {
		r.resetCache()
	}

	saved, err := sdclient.SaveAlert(r.api, config)
	if err != nil {
		return err
	}
	if saved.ID != "" {
		id = saved.ID
	}
	config.ID = id

	if found {
		r.state.Alerts[index] = config
	} else {
		r.state.Alerts = append(r.state.Alerts, config)
		r.claimed[len(r.state.Alerts)-1] = true
	}
	r.updateCache()

	r.changed(action, KindAlert, key, id)
	return nil
}

// resolveRecipients translates notify declarations into alert recipients.
// The result is never nil, so that recipients are always sent to the API.
func (r *Reconciler) resolveRecipients(notify []types.Notify) []types.Recipient {
	recipients := []types.Recipient{}
	for _, target := range notify {
		var (
			id      types.ObjectID
			found   bool
			actions []string
		)
		if target.Type == types.RecipientTypeUser {
			id, found = r.userID(target.Name)
			actions = target.Actions
		} else {
			id, found = r.notificationID(target.Type, target.Name)
		}
		if !found {
			log.Warn().Str("type", target.Type).Str("name", target.Name).Msg(recipientMsg)
			continue
		}
		recipients = append(recipients, types.Recipient{
			Type:    target.Type,
			ID:      id,
			Actions: actions,
		})
	}
	return recipients
}

// CleanupAlerts deletes all alert configs that were not claimed by any
// declaration in this run
func (r *Reconciler) CleanupAlerts() error {
	if !r.listed {
		return &SnapshotNotLoadedError{}
	}

	log.Info().Msg("Cleanup alerts...")

	deleted := make(map[types.ObjectID]bool)
	for i, alert := range r.state.Alerts {
		if r.claimed[i] || alert.ID == "" || deleted[alert.ID] {
			continue
		}
		if err := sdclient.DeleteAlert(r.api, alert.ID); err != nil {
			return err
		}
		deleted[alert.ID] = true
		r.resetCache()

		log.Info().Str(idKey, string(alert.ID)).Str(alertKey, alert.Section+"."+alert.Field).Msg(deletedMsg)
		AlertsDeleted.Inc()
		r.result.Deleted++
		r.publish(types.ActionDeleted, KindAlert, string(alert.ID), alert.ID)
	}

	if len(deleted) == 0 {
		return nil
	}

	kept := make([]types.Alert, 0, len(r.state.Alerts)-len(deleted))
	claimed := make(map[int]bool)
	for i, alert := range r.state.Alerts {
		if alert.ID != "" && deleted[alert.ID] {
			continue
		}
		if r.claimed[i] {
			claimed[len(kept)] = true
		}
		kept = append(kept, alert)
	}
	r.state.Alerts = kept
	r.claimed = claimed
	return nil
}

// Reconcile processes all given hosts together with services and alerts
// they declare. Hosts are handled first with their own alerts, followed by
// device group alerts, services with their alerts and service group alerts.
// Cleanup is done at the end when enabled.
func (r *Reconciler) Reconcile(hosts []HostInput) (Result, error) {
	if !r.listed {
		return r.result, &SnapshotNotLoadedError{}
	}

	hosts = append([]HostInput(nil), hosts...)
	sort.Slice(hosts, func(i, j int) bool {
		return hosts[i].Name < hosts[j].Name
	})

	services := make(map[string]types.ServiceDeclaration)
	deviceGroupAlerts := make(map[string]map[string]types.AlertDeclaration)
	serviceGroupAlerts := make(map[string]types.AlertDeclaration)

	log.Info().Msg("Ensure hosts and their data...")
	for _, host := range hosts {
		log.Info().Str(hostKey, host.Name).Msg("  - host")

		if err := collectDeclarations(host, services, deviceGroupAlerts, serviceGroupAlerts); err != nil {
			return r.result, err
		}

		if err := r.EnsureHost(host); err != nil {
			return r.result, err
		}

		alerts, err := host.Vars.Alerts()
		if err != nil {
			return r.result, &InvalidDeclarationError{Host: host.Name, Msg: err.Error()}
		}
		for _, alert := range alerts {
			declaration := alert.Alert
			if declaration.Host == "" {
				declaration.Host = host.Name
			}
			log.Info().Str(hostKey, declaration.Host).Str(alertKey, alert.Name).Msg("    - alert")
			if err := r.EnsureAlert(declaration, types.SubjectDevice, ""); err != nil {
				return r.result, err
			}
		}
	}

	log.Info().Msg("Ensure device group alerts...")
	for _, group := range sortedNames(deviceGroupAlerts) {
		for _, alert := range inventory.SortAlerts(deviceGroupAlerts[group]) {
			log.Info().Str(groupKey, group).Str(alertKey, alert.Name).Msg("  - alert")
			if err := r.EnsureAlert(alert.Alert, types.SubjectDeviceGroup, group); err != nil {
				return r.result, err
			}
		}
	}

	log.Info().Msg("Ensure services...")
	for _, name := range sortedNames(services) {
		declaration := services[name]
		log.Info().Str(serviceKey, name).Msg("  - service")
		if err := r.EnsureService(declaration); err != nil {
			return r.result, err
		}
		for _, alert := range inventory.SortAlerts(declaration.Alerts) {
			alertDeclaration := alert.Alert
			alertDeclaration.Service = name
			log.Info().Str(serviceKey, name).Str(alertKey, alert.Name).Msg("    - alert")
			if err := r.EnsureAlert(alertDeclaration, types.SubjectService, ""); err != nil {
				return r.result, err
			}
		}
	}

	log.Info().Msg("Ensure service group alerts...")
	for _, alert := range inventory.SortAlerts(serviceGroupAlerts) {
		log.Info().Str(groupKey, alert.Alert.Group).Str(alertKey, alert.Name).Msg("  - alert")
		if err := r.EnsureAlert(alert.Alert, types.SubjectServiceGroup, alert.Alert.Group); err != nil {
			return r.result, err
		}
	}

	if r.options.Cleanup {
		if err := r.CleanupAlerts(); err != nil {
			return r.result, err
		}
	}

	return r.result, nil
}

// collectDeclarations gathers services and group alerts declared by the
// host. The first declaration of each name wins.
func collectDeclarations(host HostInput,
	services map[string]types.ServiceDeclaration,
	deviceGroupAlerts map[string]map[string]types.AlertDeclaration,
	serviceGroupAlerts map[string]types.AlertDeclaration) error {

	declared, err := host.Vars.Services()
	if err != nil {
		return &InvalidDeclarationError{Host: host.Name, Msg: err.Error()}
	}
	for _, service := range declared {
		if service.Name == "" {
			return &InvalidDeclarationError{Host: host.Name, Msg: "service without name"}
		}
		if _, exists := services[service.Name]; !exists {
			services[service.Name] = service
		}
	}

	groupAlerts, err := host.Vars.DeviceGroupAlerts()
	if err != nil {
		return &InvalidDeclarationError{Host: host.Name, Msg: err.Error()}
	}
	if len(groupAlerts) > 0 {
		group := host.Vars.Group()
		if deviceGroupAlerts[group] == nil {
			deviceGroupAlerts[group] = make(map[string]types.AlertDeclaration)
		}
		for _, alert := range groupAlerts {
			if _, exists := deviceGroupAlerts[group][alert.Name]; !exists {
				deviceGroupAlerts[group][alert.Name] = alert.Alert
			}
		}
	}

	serviceAlerts, err := host.Vars.ServiceGroupAlerts()
	if err != nil {
		return &InvalidDeclarationError{Host: host.Name, Msg: err.Error()}
	}
	for _, alert := range serviceAlerts {
		if _, exists := serviceGroupAlerts[alert.Name]; !exists {
			serviceGroupAlerts[alert.Name] = alert.Alert
		}
	}
	return nil
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Reconciler) skipped(kind, key string) {
	log.Debug().Str("kind", kind).Str("key", key).Msg(skippedMsg)
	ObjectsSkipped.WithLabelValues(kind).Inc()
	r.result.Skipped++
}

func (r *Reconciler) changed(action types.ChangeAction, kind, key string, id types.ObjectID) {
	switch action {
	case types.ActionCreated:
		log.Info().Str("kind", kind).Str("key", key).Str(idKey, string(id)).Msg(createdMsg)
		ObjectsCreated.WithLabelValues(kind).Inc()
		r.result.Created++
	case types.ActionUpdated:
		log.Info().Str("kind", kind).Str("key", key).Str(idKey, string(id)).Msg(updatedMsg)
		ObjectsUpdated.WithLabelValues(kind).Inc()
		r.result.Updated++
	}
	r.publish(action, kind, key, id)
}

// publish sends change event. Failures are logged and counted only.
func (r *Reconciler) publish(action types.ChangeAction, kind, key string, id types.ObjectID) {
	if r.events == nil {
		return
	}
	if err := r.events.Publish(action, kind, key, id); err != nil {
		log.Warn().Err(err).Str("kind", kind).Str("key", key).Msg(eventErrMsg)
		EventPublishErrors.Inc()
		return
	}
	EventsPublished.Inc()
}

func (r *Reconciler) resetCache() {
	if err := r.cache.Reset(); err != nil {
		log.Warn().Err(err).Msg(cacheErrMsg)
	}
}

func (r *Reconciler) updateCache() {
	if err := r.cache.Save(r.state, false); err != nil {
		log.Warn().Err(err).Msg(cacheErrMsg)
	}
}
