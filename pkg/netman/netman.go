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
	"github.com/oysterpack/netman.go/pkg/netman/transport"
)

// Connection is a channel record: a logical name bound to a transport
// address, plus the topics the channel publishes. Records are immutable once
// the facade is configured.
type Connection struct {
	Name    string   `json:"name"`
	Address string   `json:"address"`
	Topics  []string `json:"topics,omitempty"`
}

// Connections is the channel catalog input for Configure
type Connections []Connection

// Direction identifies the send or receive half of a channel
type Direction int

// Direction enum values
const (
	Send Direction = iota
	Recv
)

func (a Direction) String() string {
	switch a {
	case Send:
		return "Send"
	case Recv:
		return "Recv"
	default:
		return "UNKNOWN"
	}
}

// Callback is invoked by listeners with each received message
type Callback func(response transport.Response)

// log events
const (
	EVENT_CONFIGURED        = "configured"
	EVENT_RESET             = "reset"
	EVENT_NAME_COLLISION    = "name_collision"
	EVENT_LISTENER_STARTED  = "listener_started"
	EVENT_LISTENER_STOPPED  = "listener_stopped"
	EVENT_ALREADY_LISTENING = "already_listening"
	EVENT_NOT_LISTENING     = "not_listening"
	EVENT_ENDPOINT_CREATED  = "endpoint_created"
	EVENT_UNKNOWN_TOPIC     = "unknown_topic"
	EVENT_RECEIVE_FAILED    = "receive_failed"
)
