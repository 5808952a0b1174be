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

// File metrics contains all metrics that needs to be exposed to Prometheus.
// The tool is a short-lived batch job, so metrics are pushed to Prometheus
// push gateway at the end of each run instead of being scraped.

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/rs/zerolog/log"

	"github.com/RedHatInsights/serverdensity-sync/conf"
)

// Metrics names
const (
	APIRequestsName       = "api_requests"
	APIRequestErrorsName  = "api_request_errors"
	ObjectsCreatedName    = "objects_created"
	ObjectsUpdatedName    = "objects_updated"
	ObjectsSkippedName    = "objects_skipped"
	AlertsDeletedName     = "alerts_deleted"
	EventsPublishedName   = "change_events_published"
	EventPublishErrorName = "change_event_errors"
)

// Metrics helps
const (
	APIRequestsHelp       = "The total number of requests made to the ServerDensity API"
	APIRequestErrorsHelp  = "The total number of failed requests made to the ServerDensity API"
	ObjectsCreatedHelp    = "The total number of objects created in ServerDensity"
	ObjectsUpdatedHelp    = "The total number of objects updated in ServerDensity"
	ObjectsSkippedHelp    = "The total number of existing objects left untouched because update was not forced"
	AlertsDeletedHelp     = "The total number of alert configs deleted during cleanup"
	EventsPublishedHelp   = "The total number of change events sent to Kafka"
	EventPublishErrorHelp = "The total number of change events that could not be sent to Kafka"
)

// kindLabel is label used to distinguish devices, services and alerts
const kindLabel = "kind"

// PushGatewayClient is a simple wrapper over http.Client so that prometheus
// can do HTTP requests with the given authentication header
type PushGatewayClient struct {
	AuthToken string

	httpClient http.Client
}

// Do is a simple wrapper over http.Client.Do method that includes
// the authentication header configured in the PushGatewayClient instance
func (pgc *PushGatewayClient) Do(request *http.Request) (*http.Response, error) {
	if pgc.AuthToken != "" {
		log.Debug().Msg("Adding authorization header to HTTP request")
		request.Header.Set("Authorization", "Basic "+pgc.AuthToken)
	} else {
		log.Debug().Msg("No authorization token provided. Making HTTP request without credentials.")
	}

	log.Debug().Str("request", request.URL.String()).Str("method", request.Method).Msg("Pushing metrics to Prometheus push gateway")

	resp, err := pgc.httpClient.Do(request)
	if resp != nil {
		log.Debug().Int("code", resp.StatusCode).Msg("Returned status code")
	}

	return resp, err
}

// APIRequests shows number of requests made to the ServerDensity API
var APIRequests = promauto.NewCounter(prometheus.CounterOpts{
	Name: APIRequestsName,
	Help: APIRequestsHelp,
})

// APIRequestErrors shows number of failed requests made to the ServerDensity
// API
var APIRequestErrors = promauto.NewCounter(prometheus.CounterOpts{
	Name: APIRequestErrorsName,
	Help: APIRequestErrorsHelp,
})

// ObjectsCreated shows number of created devices, services and alerts
var ObjectsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: ObjectsCreatedName,
	Help: ObjectsCreatedHelp,
}, []string{kindLabel})

// ObjectsUpdated shows number of updated devices, services and alerts
var ObjectsUpdated = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: ObjectsUpdatedName,
	Help: ObjectsUpdatedHelp,
}, []string{kindLabel})

// ObjectsSkipped shows number of existing objects that were not updated
var ObjectsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: ObjectsSkippedName,
	Help: ObjectsSkippedHelp,
}, []string{kindLabel})

// AlertsDeleted shows number of alert configs removed during cleanup
var AlertsDeleted = promauto.NewCounter(prometheus.CounterOpts{
	Name: AlertsDeletedName,
	Help: AlertsDeletedHelp,
})

// EventsPublished shows number of change events sent to Kafka
var EventsPublished = promauto.NewCounter(prometheus.CounterOpts{
	Name: EventsPublishedName,
	Help: EventsPublishedHelp,
})

// EventPublishErrors shows number of change events that were not sent
var EventPublishErrors = promauto.NewCounter(prometheus.CounterOpts{
	Name: EventPublishErrorName,
	Help: EventPublishErrorHelp,
})

// AddMetricsWithNamespace register the desired metrics using a given
// namespace and subsystem
func AddMetricsWithNamespace(namespace, subsystem string) {
	// Unregister all metrics and registrer them again
	prometheus.Unregister(APIRequests)
	prometheus.Unregister(APIRequestErrors)
	prometheus.Unregister(ObjectsCreated)
	prometheus.Unregister(ObjectsUpdated)
	prometheus.Unregister(ObjectsSkipped)
	prometheus.Unregister(AlertsDeleted)
	prometheus.Unregister(EventsPublished)
	prometheus.Unregister(EventPublishErrors)

	APIRequests = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      APIRequestsName,
		Help:      APIRequestsHelp,
	})

	APIRequestErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      APIRequestErrorsName,
		Help:      APIRequestErrorsHelp,
	})

	ObjectsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      ObjectsCreatedName,
		Help:      ObjectsCreatedHelp,
	}, []string{kindLabel})

	ObjectsUpdated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      ObjectsUpdatedName,
		Help:      ObjectsUpdatedHelp,
	}, []string{kindLabel})

	ObjectsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      ObjectsSkippedName,
		Help:      ObjectsSkippedHelp,
	}, []string{kindLabel})

	AlertsDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      AlertsDeletedName,
		Help:      AlertsDeletedHelp,
	})

	EventsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      EventsPublishedName,
		Help:      EventsPublishedHelp,
	})

	EventPublishErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      EventPublishErrorName,
		Help:      EventPublishErrorHelp,
	})
}

// PushMetrics function pushes the metrics to the configured prometheus push
// gateway
func PushMetrics(metricsConf conf.MetricsConfiguration) error {
	client := PushGatewayClient{metricsConf.GatewayAuthToken, http.Client{}}

	job := metricsConf.Job
	if job == "" {
		job = conf.DefaultMetricsJob
	}

	// Creates a pusher to the gateway "$PUSHGW_URL/metrics/job/$(job_name)
	return push.New(metricsConf.GatewayURL, job).
		Collector(APIRequests).
		Collector(APIRequestErrors).
		Collector(ObjectsCreated).
		Collector(ObjectsUpdated).
		Collector(ObjectsSkipped).
		Collector(AlertsDeleted).
		Collector(EventsPublished).
		Collector(EventPublishErrors).
		Client(&client).
		Push()
}
