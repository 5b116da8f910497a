// Copyright (c) 2017 OysterPack, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package netman

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ParseConnections decodes a channel catalog from its JSON document form:
//
//	[{"name": "foo", "address": "inproc://foo", "topics": ["bar"]}, ...]
//
// Records with a blank name or address are rejected. Name uniqueness is
// enforced by Configure, not here.
func ParseConnections(data []byte) (Connections, error) {
	var connections Connections
	if err := json.Unmarshal(data, &connections); err != nil {
		return nil, err
	}
	for i, connection := range connections {
		if connection.Name == "" {
			return nil, &OperationFailedError{Message: fmt.Sprintf("connection record %d has a blank name", i)}
		}
		if connection.Address == "" {
			return nil, &OperationFailedError{Message: fmt.Sprintf("connection %v has a blank address", connection.Name)}
		}
	}
	return connections, nil
}
