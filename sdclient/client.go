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

// Package sdclient contains a client for the ServerDensity REST API. Every
// logical operation (list, create, update, delete) is translated into exactly
// one HTTP call authenticated by a static token passed as query parameter.
package sdclient

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	httputils "github.com/RedHatInsights/insights-operator-utils/http"
	"github.com/rs/zerolog/log"

	"github.com/RedHatInsights/serverdensity-sync/conf"
	"github.com/RedHatInsights/serverdensity-sync/utils"
)

// Caller interface defines the single method used to talk to the
// ServerDensity API
type Caller interface {
	Call(path string, payload interface{}, method string) ([]byte, error)
}

// Client is an implementation of the Caller interface that makes real HTTP
// requests
type Client struct {
	URL        string
	Token      string
	HTTPClient *http.Client
}

// tokenParameter is name of query parameter holding the API token
const tokenParameter = "token"

// New creates a client that can communicate with the ServerDensity API
func New(config conf.ServerDensityConfiguration) (*Client, error) {
	return NewWithTransport(config, nil)
}

// NewWithTransport creates a client that can communicate with the
// ServerDensity API, enabling to use a custom transport
func NewWithTransport(config conf.ServerDensityConfiguration, transport http.RoundTripper) (*Client, error) {
	if config.APIToken == "" {
		err := fmt.Errorf("cannot create the ServerDensity API client without API token")
		log.Error().Err(err).Msg("")
		return nil, err
	}

	baseURL := config.URL
	if baseURL == "" {
		baseURL = conf.DefaultAPIURL
	}

	httpClient := &http.Client{
		Timeout: config.Timeout,
	}
	if transport != nil {
		httpClient.Transport = transport
	}

	client := &Client{
		URL:        utils.EnsureTrailingSlash(httputils.SetHTTPPrefix(baseURL)),
		Token:      config.APIToken,
		HTTPClient: httpClient,
	}
	log.Info().Str("url", client.URL).Msg("ServerDensity client created successfully")

	return client, nil
}

// Call makes one request to the API. GET is used when no payload is provided
// and DELETE has not been asked for; a non-nil payload is always POSTed as
// form data. Response body is returned for 2xx status codes, any other status
// code is turned into an *APIError.
func (client *Client) Call(path string, payload interface{}, method string) ([]byte, error) {
	if payload != nil && method != http.MethodDelete {
		method = http.MethodPost
	}
	if method == "" {
		method = http.MethodGet
	}

	requestURL, err := client.requestURL(path)
	if err != nil {
		return nil, err
	}

	var req *http.Request
	if method == http.MethodPost {
		form, err := EncodeForm(payload)
		if err != nil {
			log.Error().Err(err).Str("path", path).Msg("Unable to encode payload")
			return nil, err
		}
		req, err = http.NewRequest(method, requestURL, strings.NewReader(form.Encode()))
		if err != nil {
			log.Error().Err(err).Str("path", path).Msg("Error setting up HTTP request")
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req, err = http.NewRequest(method, requestURL, http.NoBody)
		if err != nil {
			log.Error().Err(err).Str("path", path).Msg("Error setting up HTTP request")
			return nil, err
		}
	}
	req.Header.Set("Accept", "application/json")

	log.Debug().Str("method", method).Str("path", path).Msg("ServerDensity API request")

	status, body, err := utils.SendRequest(client.HTTPClient, req)
	if err != nil {
		return nil, err
	}

	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		apiErr := newAPIError(status, body)
		log.Error().Err(apiErr).Int("status", status).Str("path", path).Msg("ServerDensity API call failed")
		return nil, apiErr
	}

	return body, nil
}

func (client *Client) requestURL(path string) (string, error) {
	parsed, err := url.Parse(client.URL + strings.TrimPrefix(path, "/"))
	if err != nil {
		return "", err
	}
	query := parsed.Query()
	query.Set(tokenParameter, client.Token)
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

// errorResponse is the body returned by the API for failed calls
type errorResponse struct {
	Message string `json:"message"`
	Errors  []struct {
		Description string `json:"description"`
	} `json:"errors"`
}

// APIError represents non-2xx response returned by the API
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

// newAPIError constructs the error message from the platform message and
// all structured sub-errors
func newAPIError(status int, body []byte) *APIError {
	var response errorResponse
	err := json.Unmarshal(body, &response)
	if err != nil || response.Message == "" {
		return &APIError{
			StatusCode: status,
			Message: fmt.Sprintf("received unexpected response status code - %d %s",
				status, http.StatusText(status)),
		}
	}

	message := response.Message
	for _, subError := range response.Errors {
		message += " // " + subError.Description
	}
	return &APIError{
		StatusCode: status,
		Message:    message,
	}
}
