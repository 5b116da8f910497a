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
)

// ConnectionNotFoundError indicates an unknown connection name or key
type ConnectionNotFoundError struct {
	Name string
}

func (e *ConnectionNotFoundError) Error() string {
	return fmt.Sprintf("Connection named %v not found!", e.Name)
}

// TopicNotFoundError indicates an unknown topic name
type TopicNotFoundError struct {
	Topic string
}

func (e *TopicNotFoundError) Error() string {
	return fmt.Sprintf("Topic named %v not found!", e.Topic)
}

// NameCollisionError indicates the configuration violates the disjoint name
// invariant: a string may be a connection name or a topic name, never both
type NameCollisionError struct {
	Name string
}

func (e *NameCollisionError) Error() string {
	return fmt.Sprintf("Name %v is already in use!", e.Name)
}

// AlreadyConfiguredError indicates Configure was called on a configured facade
type AlreadyConfiguredError struct{}

func (e *AlreadyConfiguredError) Error() string {
	return "The NetworkManager has already been configured!"
}

// ListenerAlreadyRegisteredError indicates a listener is already active for the key
type ListenerAlreadyRegisteredError struct {
	Key string
}

func (e *ListenerAlreadyRegisteredError) Error() string {
	return fmt.Sprintf("A listener has already been registered for %v", e.Key)
}

// ListenerNotRegisteredError indicates no listener is active for the key
type ListenerNotRegisteredError struct {
	Key string
}

func (e *ListenerNotRegisteredError) Error() string {
	return fmt.Sprintf("No listener has been registered for %v", e.Key)
}

// CallbackAlreadyRegisteredError indicates a subscriber callback is already
// registered for the connection + topic
type CallbackAlreadyRegisteredError struct {
	Connection string
	Topic      string
}

func (e *CallbackAlreadyRegisteredError) Error() string {
	return fmt.Sprintf("A callback has already been registered for connection %v, topic %v", e.Connection, e.Topic)
}

// CallbackNotRegisteredError indicates no subscriber callback is registered
// for the connection + topic
type CallbackNotRegisteredError struct {
	Connection string
	Topic      string
}

func (e *CallbackNotRegisteredError) Error() string {
	return fmt.Sprintf("No callback has been registered for connection %v, topic %v", e.Connection, e.Topic)
}

// OperationFailedError indicates a semantically invalid call
type OperationFailedError struct {
	Message string
}

func (e *OperationFailedError) Error() string {
	return e.Message
}
