/*
Copyright © 2022 Red Hat, Inc.

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

package utils

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
)

// EnsureTrailingSlash appends slash to the given URL when it is missing so
// that relative API paths can be concatenated to it
func EnsureTrailingSlash(url string) string {
	if !strings.HasSuffix(url, "/") {
		url += "/"
	}
	return url
}

// SendRequest sends the given request using the given client, reads the body
// and handles related errors. Unlike a plain client call the status code is
// returned together with the body, so the caller decides what to do with
// non-2xx responses.
func SendRequest(client *http.Client, req *http.Request) (int, []byte, error) {
	response, err := client.Do(req)
	if err != nil {
		log.Error().Msgf("Got error while making the HTTP request - %s", err.Error())
		return 0, nil, err
	}

	defer func() {
		if err := response.Body.Close(); err != nil {
			log.Error().Msgf("Got error while closing the response body - %s", err.Error())
		}
	}()

	// Read body from response
	body, err := io.ReadAll(response.Body)
	if err != nil {
		log.Error().Msgf("Got error while reading the response's body - %s", err.Error())
		return response.StatusCode, nil, err
	}
	return response.StatusCode, body, nil
}

// WriteJSONFile writes the given value into a file as JSON, the whole file is
// replaced
func WriteJSONFile(filename string, value interface{}) error {
	content, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return os.WriteFile(filename, content, 0o600)
}

// ReadJSONFile reads the whole file and decodes its JSON content into the
// given value
func ReadJSONFile(filename string, value interface{}) error {
	content, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	return json.Unmarshal(content, value)
}

// FileExists checks if regular file with given name exists
func FileExists(filename string) bool {
	info, err := os.Stat(filename)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
