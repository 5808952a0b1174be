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

package reconciler_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/RedHatInsights/insights-operator-utils/tests/helpers"

	"github.com/RedHatInsights/serverdensity-sync/conf"
	"github.com/RedHatInsights/serverdensity-sync/sdclient"
)

const fakeToken = "secret"

type record map[string]interface{}

type apiRequest struct {
	Method string
	Path   string
	Form   url.Values
}

// fakeServerDensity keeps collections in memory and answers requests the
// way the real API does for the subset of endpoints used by the tool
type fakeServerDensity struct {
	mutex       sync.Mutex
	collections map[string][]record
	requests    []apiRequest
	lastID      int
	token       string

	// failPath makes all mutations of given path fail
	failPath string
}

func newFakeServerDensity() *fakeServerDensity {
	return &fakeServerDensity{
		token: fakeToken,
		collections: map[string][]record{
			sdclient.DevicesPath:  {},
			sdclient.ServicesPath: {},
			sdclient.AlertsPath:   {},
			sdclient.UsersPath:    {},
		},
	}
}

func (fake *fakeServerDensity) add(collection string, object record) {
	fake.collections[collection] = append(fake.collections[collection], object)
}

// serve runs HTTP server and returns its URL
func (fake *fakeServerDensity) serve(t *testing.T) string {
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)
	return server.URL
}

// start runs HTTP server and returns client connected to it
func (fake *fakeServerDensity) start(t *testing.T) *sdclient.Client {
	client, err := sdclient.New(conf.ServerDensityConfiguration{
		URL:      fake.serve(t),
		APIToken: fake.token,
	})
	helpers.FailOnError(t, err)
	return client
}

// mutations returns all non-GET requests
func (fake *fakeServerDensity) mutations() []apiRequest {
	fake.mutex.Lock()
	defer fake.mutex.Unlock()

	var result []apiRequest
	for _, request := range fake.requests {
		if request.Method != http.MethodGet {
			result = append(result, request)
		}
	}
	return result
}

func (fake *fakeServerDensity) find(collection, key string, value interface{}) record {
	fake.mutex.Lock()
	defer fake.mutex.Unlock()

	for _, object := range fake.collections[collection] {
		if object[key] == value {
			return object
		}
	}
	return nil
}

func (fake *fakeServerDensity) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fake.mutex.Lock()
	defer fake.mutex.Unlock()

	if r.URL.Query().Get("token") != fake.token {
		writeJSON(w, http.StatusForbidden, record{"message": "Invalid token"})
		return
	}

	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, record{"message": err.Error()})
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/")
	form := r.PostForm
	fake.requests = append(fake.requests, apiRequest{Method: r.Method, Path: path, Form: form})

	if fake.failPath != "" && path == fake.failPath && r.Method != http.MethodGet {
		writeJSON(w, http.StatusBadRequest, record{
			"message": "Validation failed",
			"errors":  []record{{"description": "something is wrong"}},
		})
		return
	}

	for collection := range fake.collections {
		switch {
		case path == collection && r.Method == http.MethodGet:
			writeJSON(w, http.StatusOK, fake.collections[collection])
			return
		case path == collection && r.Method == http.MethodPost:
			writeJSON(w, http.StatusOK, fake.create(collection, form))
			return
		case strings.HasPrefix(path, collection+"/"):
			id := strings.TrimPrefix(path, collection+"/")
			fake.handleObject(w, r.Method, collection, id, form)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, record{"message": "Not found"})
}

func (fake *fakeServerDensity) create(collection string, form url.Values) record {
	fake.lastID++
	id := fmt.Sprintf("%s-%d", strings.TrimSuffix(collection[strings.LastIndex(collection, "/")+1:], "s"), fake.lastID)

	object := formToRecord(form)
	object["_id"] = id
	if collection == sdclient.DevicesPath {
		object["agentKey"] = "agent-" + id
	}
	fake.collections[collection] = append(fake.collections[collection], object)
	return object
}

func (fake *fakeServerDensity) handleObject(w http.ResponseWriter, method, collection, id string, form url.Values) {
	objects := fake.collections[collection]
	for i, object := range objects {
		if object["_id"] != id {
			continue
		}
		switch method {
		case http.MethodPost:
			for key, value := range formToRecord(form) {
				object[key] = value
			}
			writeJSON(w, http.StatusOK, object)
		case http.MethodDelete:
			fake.collections[collection] = append(objects[:i:i], objects[i+1:]...)
			writeJSON(w, http.StatusOK, record{})
		default:
			writeJSON(w, http.StatusOK, object)
		}
		return
	}
	writeJSON(w, http.StatusNotFound, record{"message": "Object not found"})
}

// formToRecord decodes JSON encoded form values, other values are kept as
// strings
func formToRecord(form url.Values) record {
	object := record{}
	for key := range form {
		value := form.Get(key)
		var decoded interface{}
		if err := json.Unmarshal([]byte(value), &decoded); err == nil {
			object[key] = decoded
		} else {
			object[key] = value
		}
	}
	return object
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
