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
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oysterpack/netman.go/pkg/logging"
	"github.com/oysterpack/netman.go/pkg/metrics"
	"github.com/oysterpack/netman.go/pkg/netman/transport"
	"github.com/prometheus/client_golang/prometheus"
)

// NetworkManager is the messaging facade.
//
// It owns the channel catalog and topic index, the endpoint registry, the
// listener table, and the per-channel traffic counters. All operations are
// safe to call from any number of goroutines.
//
// Lock ordering: registration mutex -> endpoint map mutex; SendTo and
// StartPublisher take the per-channel send mutex before the sender map mutex.
// Listener workers only ever call ReceiveFrom, which touches the receiver map
// alone, so they can never deadlock against registration.
type NetworkManager struct {
	// guards the catalog and topic index; both are effectively immutable
	// between Configure and Reset
	mutex         sync.RWMutex
	connectionMap map[string]Connection
	topicMap      map[string][]string

	endpoints *endpointRegistry

	registrationMutex sync.Mutex
	listeners         map[string]*Listener
	subscribers       map[string]*Subscriber

	connMutexesMutex sync.Mutex
	connMutexes      map[string]*sync.Mutex

	stats *trafficStats

	sentBytes        *prometheus.CounterVec
	sentMessages     *prometheus.CounterVec
	receivedBytes    *prometheus.CounterVec
	receivedMessages *prometheus.CounterVec
}

var (
	instanceMutex sync.Mutex
	instance      *NetworkManager
)

// ErrNoDefaultTransport is the panic cause when Get is called before any
// transport plugin has been registered
var ErrNoDefaultTransport = errors.New("NoDefaultTransportFactory")

// Get returns the process-wide NetworkManager, creating it on first access
// using the default transport factory.
//
// New is the composition-root alternative; Get exists for legacy callers that
// rely on a global accessor.
func Get() *NetworkManager {
	instanceMutex.Lock()
	defer instanceMutex.Unlock()
	if instance == nil {
		factory := transport.Factories.Default()
		if factory == nil {
			logger.Panic().Err(ErrNoDefaultTransport).Msg("register a transport plugin before calling Get")
		}
		instance = New(factory)
	}
	return instance
}

// New creates a NetworkManager that creates its endpoints through the factory
func New(factory transport.Factory) *NetworkManager {
	a := &NetworkManager{
		connectionMap: map[string]Connection{},
		topicMap:      map[string][]string{},
		listeners:     map[string]*Listener{},
		subscribers:   map[string]*Subscriber{},
		connMutexes:   map[string]*sync.Mutex{},
		stats:         newTrafficStats(),

		sentBytes:        metrics.GetOrMustRegisterCounterVec(SentBytesCounterOpts),
		sentMessages:     metrics.GetOrMustRegisterCounterVec(SentMessagesCounterOpts),
		receivedBytes:    metrics.GetOrMustRegisterCounterVec(ReceivedBytesCounterOpts),
		receivedMessages: metrics.GetOrMustRegisterCounterVec(ReceivedMessagesCounterOpts),
	}
	a.endpoints = newEndpointRegistry(a, factory)
	return a
}

// Configure installs the channel catalog and builds the topic index.
// It fails with AlreadyConfiguredError if the facade is configured, and with
// NameCollisionError if the catalog violates the disjoint name invariant; on
// collision the partial state is fully unwound.
func (a *NetworkManager) Configure(connections Connections) error {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if len(a.connectionMap) > 0 {
		return &AlreadyConfiguredError{}
	}

	rollback := func() {
		a.connectionMap = map[string]Connection{}
		a.topicMap = map[string][]string{}
	}

	for _, connection := range connections {
		if connection.Name == "" {
			rollback()
			return &OperationFailedError{Message: "connection records require a non-empty name"}
		}
		logger.Debug().Str(logging.EVENT, EVENT_CONFIGURED).Str(logging.CONNECTION, connection.Name).Msg("adding connection")
		if _, exists := a.connectionMap[connection.Name]; exists {
			rollback()
			logger.Warn().Str(logging.EVENT, EVENT_NAME_COLLISION).Str(logging.NAME, connection.Name).Msg("")
			return &NameCollisionError{Name: connection.Name}
		}
		if _, exists := a.topicMap[connection.Name]; exists {
			rollback()
			logger.Warn().Str(logging.EVENT, EVENT_NAME_COLLISION).Str(logging.NAME, connection.Name).Msg("")
			return &NameCollisionError{Name: connection.Name}
		}
		a.connectionMap[connection.Name] = connection
		for _, topic := range connection.Topics {
			if _, exists := a.connectionMap[topic]; exists {
				rollback()
				logger.Warn().Str(logging.EVENT, EVENT_NAME_COLLISION).Str(logging.NAME, topic).Msg("")
				return &NameCollisionError{Name: topic}
			}
			a.topicMap[topic] = append(a.topicMap[topic], connection.Name)
		}
	}

	logger.Info().Str(logging.EVENT, EVENT_CONFIGURED).Int("connections", len(connections)).Msg("")
	return nil
}

// Reset stops all listeners, drops all endpoints, and clears the catalog,
// topic index, per-channel mutexes, and counters. After Reset the facade may
// be configured again.
func (a *NetworkManager) Reset() {
	a.registrationMutex.Lock()
	defer a.registrationMutex.Unlock()

	for _, listener := range a.listeners {
		if listener.IsListening() {
			listener.Stop()
		}
	}
	a.listeners = map[string]*Listener{}

	for _, subscriber := range a.subscribers {
		subscriber.Shutdown()
	}
	a.subscribers = map[string]*Subscriber{}

	a.endpoints.reset()

	a.mutex.Lock()
	a.connectionMap = map[string]Connection{}
	a.topicMap = map[string][]string{}
	a.mutex.Unlock()

	a.connMutexesMutex.Lock()
	a.connMutexes = map[string]*sync.Mutex{}
	a.connMutexesMutex.Unlock()

	a.stats.reset()

	logger.Info().Str(logging.EVENT, EVENT_RESET).Msg("")
}

// SendTo sends data on the named channel.
//
// The per-channel mutex is held across the transport send, which guarantees
// per-channel FIFO for concurrent senders. A non-empty topic that the channel
// does not list is reported as a warning but still sent - the transport is
// the source of truth for delivery.
func (a *NetworkManager) SendTo(connectionName string, data []byte, timeout time.Duration, topic string) error {
	lock := a.connectionLock(connectionName)
	defer lock.Unlock()

	a.mutex.RLock()
	connection, exists := a.connectionMap[connectionName]
	a.mutex.RUnlock()
	if !exists {
		return &ConnectionNotFoundError{Name: connectionName}
	}

	if topic != "" {
		match := false
		for _, configured := range connection.Topics {
			if topic == configured {
				match = true
				break
			}
		}
		if !match {
			logger.Warn().Str(logging.EVENT, EVENT_UNKNOWN_TOPIC).
				Str(logging.CONNECTION, connectionName).Str(logging.TOPIC, topic).
				Msg("topic is not configured for the connection - sending anyway")
		}
	}

	sender, err := a.endpoints.sender(connectionName)
	if err != nil {
		return err
	}
	if err := sender.Send(data, timeout, topic); err != nil {
		return err
	}

	a.stats.recordSent(connectionName, len(data))
	a.sentBytes.WithLabelValues(connectionName).Add(float64(len(data)))
	a.sentMessages.WithLabelValues(connectionName).Inc()
	return nil
}

// ReceiveFrom performs a direct receive on the connection or topic, lazily
// creating the receiver endpoint on first use.
func (a *NetworkManager) ReceiveFrom(connectionOrTopic string, timeout time.Duration) (transport.Response, error) {
	if !a.knownKey(connectionOrTopic) {
		return transport.Response{}, &ConnectionNotFoundError{Name: connectionOrTopic}
	}

	receiver, err := a.endpoints.receiver(connectionOrTopic)
	if err != nil {
		return transport.Response{}, err
	}

	response, err := receiver.Receive(timeout)
	if err != nil {
		return transport.Response{}, err
	}

	a.stats.recordReceived(connectionOrTopic, len(response.Data))
	a.receivedBytes.WithLabelValues(connectionOrTopic).Add(float64(len(response.Data)))
	a.receivedMessages.WithLabelValues(connectionOrTopic).Inc()
	return response, nil
}

// StartListening starts a background listener for the connection.
func (a *NetworkManager) StartListening(connectionName string) error {
	a.registrationMutex.Lock()
	defer a.registrationMutex.Unlock()

	a.mutex.RLock()
	_, exists := a.connectionMap[connectionName]
	a.mutex.RUnlock()
	if !exists {
		return &ConnectionNotFoundError{Name: connectionName}
	}
	if a.isListeningLocked(connectionName) {
		return &ListenerAlreadyRegisteredError{Key: connectionName}
	}

	listener := a.listeners[connectionName]
	if listener == nil {
		listener = newListener(a)
		a.listeners[connectionName] = listener
	}
	return listener.Start(connectionName)
}

// StopListening stops the connection's listener.
func (a *NetworkManager) StopListening(connectionName string) error {
	a.registrationMutex.Lock()
	defer a.registrationMutex.Unlock()

	if !a.isListeningLocked(connectionName) {
		return &ListenerNotRegisteredError{Key: connectionName}
	}
	a.listeners[connectionName].Stop()
	return nil
}

// Subscribe starts a background listener for the topic.
func (a *NetworkManager) Subscribe(topic string) error {
	a.registrationMutex.Lock()
	defer a.registrationMutex.Unlock()

	a.mutex.RLock()
	_, exists := a.topicMap[topic]
	a.mutex.RUnlock()
	if !exists {
		return &TopicNotFoundError{Topic: topic}
	}
	if a.isListeningLocked(topic) {
		return &ListenerAlreadyRegisteredError{Key: topic}
	}

	listener := a.listeners[topic]
	if listener == nil {
		listener = newListener(a)
		a.listeners[topic] = listener
	}
	return listener.Start(topic)
}

// Unsubscribe stops the topic's listener.
func (a *NetworkManager) Unsubscribe(topic string) error {
	a.registrationMutex.Lock()
	defer a.registrationMutex.Unlock()

	if !a.isListeningLocked(topic) {
		return &ListenerNotRegisteredError{Key: topic}
	}
	a.listeners[topic].Stop()
	return nil
}

// RegisterCallback installs the callback on the key's active listener.
// The key must have a listener started via StartListening or Subscribe.
func (a *NetworkManager) RegisterCallback(connectionOrTopic string, callback Callback) error {
	a.registrationMutex.Lock()
	defer a.registrationMutex.Unlock()

	if !a.knownKey(connectionOrTopic) {
		return &ConnectionNotFoundError{Name: connectionOrTopic}
	}
	if !a.isListeningLocked(connectionOrTopic) {
		return &ListenerNotRegisteredError{Key: connectionOrTopic}
	}
	a.listeners[connectionOrTopic].SetCallback(callback)
	return nil
}

// ClearCallback installs the nil callback: the listener keeps draining but
// stops dispatching.
func (a *NetworkManager) ClearCallback(connectionOrTopic string) error {
	return a.RegisterCallback(connectionOrTopic, nil)
}

// StartPublisher eagerly creates the sender endpoint for a pub/sub channel so
// that the wire is up before the first send.
func (a *NetworkManager) StartPublisher(connectionName string) error {
	lock := a.connectionLock(connectionName)
	defer lock.Unlock()

	a.mutex.RLock()
	connection, exists := a.connectionMap[connectionName]
	a.mutex.RUnlock()
	if !exists {
		return &ConnectionNotFoundError{Name: connectionName}
	}
	if len(connection.Topics) == 0 {
		return &OperationFailedError{Message: "Connection is not pub/sub type, cannot start sender early"}
	}

	_, err := a.endpoints.sender(connectionName)
	return err
}

// AddSubscriberCallback registers a per-topic callback on the pub/sub
// connection's Subscriber, starting its worker if needed. The "" topic is a
// catch-all that observes every message on the connection.
func (a *NetworkManager) AddSubscriberCallback(connectionName string, topic string, callback Callback) error {
	a.registrationMutex.Lock()
	defer a.registrationMutex.Unlock()

	a.mutex.RLock()
	connection, exists := a.connectionMap[connectionName]
	a.mutex.RUnlock()
	if !exists {
		return &ConnectionNotFoundError{Name: connectionName}
	}
	if len(connection.Topics) == 0 {
		return &OperationFailedError{Message: fmt.Sprintf("Connection %v is not pub/sub type, cannot subscribe", connectionName)}
	}

	subscriber := a.subscribers[connectionName]
	if subscriber == nil {
		subscriber = newSubscriber(a, connectionName)
		a.subscribers[connectionName] = subscriber
	}
	return subscriber.AddCallback(callback, topic)
}

// RemoveSubscriberCallback removes a per-topic callback from the connection's
// Subscriber. Removing the last callback stops the Subscriber's worker.
func (a *NetworkManager) RemoveSubscriberCallback(connectionName string, topic string) error {
	a.registrationMutex.Lock()
	defer a.registrationMutex.Unlock()

	subscriber := a.subscribers[connectionName]
	if subscriber == nil {
		return &CallbackNotRegisteredError{Connection: connectionName, Topic: topic}
	}
	return subscriber.RemoveCallback(topic)
}

// HasSubscriberCallback reports whether a callback is registered for the
// connection + topic.
func (a *NetworkManager) HasSubscriberCallback(connectionName string, topic string) bool {
	a.registrationMutex.Lock()
	defer a.registrationMutex.Unlock()

	subscriber := a.subscribers[connectionName]
	return subscriber != nil && subscriber.HasCallback(topic)
}

// IsListening reports whether a listener is active for the key
func (a *NetworkManager) IsListening(connectionOrTopic string) bool {
	a.registrationMutex.Lock()
	defer a.registrationMutex.Unlock()
	return a.isListeningLocked(connectionOrTopic)
}

func (a *NetworkManager) isListeningLocked(connectionOrTopic string) bool {
	listener := a.listeners[connectionOrTopic]
	return listener != nil && listener.IsListening()
}

// IsConnection reports whether the name refers to a configured channel
func (a *NetworkManager) IsConnection(connectionName string) bool {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	if _, exists := a.topicMap[connectionName]; exists {
		return false
	}
	_, exists := a.connectionMap[connectionName]
	return exists
}

// IsTopic reports whether the name refers to a topic published by some channel
func (a *NetworkManager) IsTopic(topic string) bool {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	if _, exists := a.connectionMap[topic]; exists {
		return false
	}
	_, exists := a.topicMap[topic]
	return exists
}

// IsPubSubConnection reports whether the name refers to a channel that
// publishes at least one topic
func (a *NetworkManager) IsPubSubConnection(connectionName string) bool {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	if _, exists := a.topicMap[connectionName]; exists {
		return false
	}
	connection, exists := a.connectionMap[connectionName]
	return exists && len(connection.Topics) > 0
}

// IsConnectionOpen reports whether an endpoint exists for the key in the
// given direction
func (a *NetworkManager) IsConnectionOpen(connectionOrTopic string, direction Direction) bool {
	return a.endpoints.isOpen(connectionOrTopic, direction)
}

// ConnectionString returns the channel's transport address
func (a *NetworkManager) ConnectionString(connectionName string) (string, error) {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	connection, exists := a.connectionMap[connectionName]
	if !exists {
		return "", &ConnectionNotFoundError{Name: connectionName}
	}
	return connection.Address, nil
}

// ConnectionStrings returns the addresses of every channel publishing the topic
func (a *NetworkManager) ConnectionStrings(topic string) ([]string, error) {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	names, exists := a.topicMap[topic]
	if !exists {
		return nil, &TopicNotFoundError{Topic: topic}
	}
	addresses := make([]string, len(names))
	for i, name := range names {
		addresses[i] = a.connectionMap[name].Address
	}
	return addresses, nil
}

// SampleStats returns the per-channel traffic since the last sample, zeroing
// the counters atomically. This is the telemetry sampling surface; the
// cumulative prometheus counters are unaffected.
func (a *NetworkManager) SampleStats() map[string]ConnectionInfo {
	return a.stats.sample()
}

// connectionTopics returns the topics listed by the channel
func (a *NetworkManager) connectionTopics(connectionName string) []string {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	return a.connectionMap[connectionName].Topics
}

// knownKey reports whether the key is a connection name or a topic name
func (a *NetworkManager) knownKey(connectionOrTopic string) bool {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	if _, exists := a.connectionMap[connectionOrTopic]; exists {
		return true
	}
	_, exists := a.topicMap[connectionOrTopic]
	return exists
}

// connectionLock returns the channel's send mutex in the locked state.
// The mutex map is append-only between resets; entries are created on first
// access under the meta-mutex so that concurrent senders on one channel
// always serialize on the same mutex.
func (a *NetworkManager) connectionLock(connectionName string) *sync.Mutex {
	a.connMutexesMutex.Lock()
	mutex := a.connMutexes[connectionName]
	if mutex == nil {
		mutex = &sync.Mutex{}
		a.connMutexes[connectionName] = mutex
	}
	a.connMutexesMutex.Unlock()

	mutex.Lock()
	return mutex
}
