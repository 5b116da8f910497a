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

// Package transport defines the plugin contract consumed by the network
// manager: opaque senders and receivers that are constructed per role,
// connected via a Config, and driven with timed send/receive operations.
//
// Transports register a Factory by name. The network manager selects roles
// based on the channel catalog; the transport decides what the roles mean on
// the wire.
package transport

import (
	"errors"
	"time"
)

// Role determines the wire behavior of an endpoint.
// Publisher/Subscriber are the pub/sub refinements of Sender/Receiver.
type Role int

// Role enum values
const (
	RoleSender Role = iota
	RoleReceiver
	RolePublisher
	RoleSubscriber
)

func (a Role) String() string {
	switch a {
	case RoleSender:
		return "Sender"
	case RoleReceiver:
		return "Receiver"
	case RolePublisher:
		return "Publisher"
	case RoleSubscriber:
		return "Subscriber"
	default:
		return "UNKNOWN"
	}
}

// NoBlock requests a non-blocking operation
const NoBlock time.Duration = 0

// Distinguished transport errors.
// ErrReceiveTimeoutExpired is expected during normal operation and is handled
// by listener workers; all other transport errors surface to the caller.
var (
	ErrReceiveTimeoutExpired = errors.New("ReceiveTimeoutExpired")
	ErrSendTimeoutExpired    = errors.New("SendTimeoutExpired")
)

// Config carries the connection strings for an endpoint.
// Point-to-point endpoints use ConnectionString; fan-in subscribers use
// ConnectionStrings.
type Config struct {
	ConnectionString  string   `json:"connection_string,omitempty"`
	ConnectionStrings []string `json:"connection_strings,omitempty"`
}

// Addresses returns the configured connection strings as a single list
func (a Config) Addresses() []string {
	if a.ConnectionString != "" {
		return append([]string{a.ConnectionString}, a.ConnectionStrings...)
	}
	return a.ConnectionStrings
}

// Response is the value returned by a receive: an opaque payload plus the
// delivered topic ("" for point-to-point traffic).
type Response struct {
	Data     []byte
	Metadata string
}

// Sender is the sending half of a transport endpoint.
// The topic argument to Send is ignored unless the endpoint was created with
// the Publisher role.
type Sender interface {
	ConnectForSends(config Config) error

	Send(data []byte, timeout time.Duration, topic string) error

	Close() error
}

// Receiver is the receiving half of a transport endpoint.
// Receive returns ErrReceiveTimeoutExpired if no message arrives within the
// timeout; NoBlock polls.
type Receiver interface {
	ConnectForReceives(config Config) error

	Receive(timeout time.Duration) (Response, error)

	Close() error
}

// Subscriber is a Receiver that filters messages by topic.
// A Subscriber delivers only messages whose topic has been subscribed.
type Subscriber interface {
	Receiver

	Subscribe(topic string) error
	Unsubscribe(topic string) error
}

// Factory constructs endpoints for the requested role.
// NewReceiver must return a value implementing Subscriber when called with
// RoleSubscriber.
type Factory interface {
	NewSender(role Role) Sender
	NewReceiver(role Role) Receiver
}
