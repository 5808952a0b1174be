/*
Copyright © 2021 Red Hat, Inc.

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

package mocks

import (
	mock "github.com/stretchr/testify/mock"
)

// Caller is a mock type for the Caller type
type Caller struct {
	mock.Mock
}

// Call provides a mock function with given fields: path, payload, method
func (_m *Caller) Call(path string, payload interface{}, method string) ([]byte, error) {
	ret := _m.Called(path, payload, method)

	var r0 []byte
	if rf, ok := ret.Get(0).(func(string, interface{}, string) []byte); ok {
		r0 = rf(path, payload, method)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).([]byte)
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(string, interface{}, string) error); ok {
		r1 = rf(path, payload, method)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}
