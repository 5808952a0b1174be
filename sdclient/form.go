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
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
)

// alwaysEncodedKeys are sent even when empty, so that an empty list clears
// the value stored on the API side
var alwaysEncodedKeys = map[string]bool{
	"recipients": true,
}

// EncodeForm flattens the payload (any value that can be marshalled into a
// JSON object) into form values the way the API expects them: nested lists
// and objects are JSON-encoded into a string, scalars are stringified and
// empty values are left out.
func EncodeForm(payload interface{}) (url.Values, error) {
	form := url.Values{}
	if payload == nil {
		return form, nil
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	decoder := json.NewDecoder(bytes.NewReader(encoded))
	decoder.UseNumber()

	var fields map[string]interface{}
	if err := decoder.Decode(&fields); err != nil {
		return nil, fmt.Errorf("payload is not a JSON object: %w", err)
	}

	for key, value := range fields {
		item, include, err := encodeFormValue(key, value)
		if err != nil {
			return nil, err
		}
		if include {
			form.Set(key, item)
		}
	}
	return form, nil
}

func encodeFormValue(key string, value interface{}) (string, bool, error) {
	switch v := value.(type) {
	case nil:
		return "", false, nil
	case string:
		return v, v != "", nil
	case json.Number:
		return v.String(), true, nil
	case bool:
		// JSON literals, never capitalized "True"/"False"
		if v {
			return "true", true, nil
		}
		return "false", true, nil
	case []interface{}:
		if len(v) == 0 && !alwaysEncodedKeys[key] {
			return "", false, nil
		}
		return encodeComposite(v)
	case map[string]interface{}:
		if len(v) == 0 && !alwaysEncodedKeys[key] {
			return "", false, nil
		}
		return encodeComposite(v)
	default:
		return "", false, fmt.Errorf("unsupported value of type %T for key %s", value, key)
	}
}

func encodeComposite(value interface{}) (string, bool, error) {
	encoded, err := json.Marshal(value)
	if err != nil {
		return "", false, err
	}
	return string(encoded), true, nil
}
