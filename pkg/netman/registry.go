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
	"sync"

	"github.com/nats-io/nuid"
	"github.com/oysterpack/netman.go/pkg/commons"
	"github.com/oysterpack/netman.go/pkg/logging"
	"github.com/oysterpack/netman.go/pkg/netman/transport"
)

// endpointRegistry serves transport endpoints with at-most-one instance per
// key. Endpoints are created lazily on first use and live until reset.
//
// Each map's mutex is held across lookup and creation, which includes the
// transport connect: concurrent first uses of the same key block until the
// winner has connected, so a key is never connected twice. Send/receive I/O
// never runs under a map mutex - callers receive the endpoint handle and
// drive it lock-free.
type endpointRegistry struct {
	mgr     *NetworkManager
	factory transport.Factory

	receiverMutex sync.Mutex
	receivers     map[string]transport.Receiver

	senderMutex sync.Mutex
	senders     map[string]transport.Sender
}

func newEndpointRegistry(mgr *NetworkManager, factory transport.Factory) *endpointRegistry {
	return &endpointRegistry{
		mgr:       mgr,
		factory:   factory,
		receivers: map[string]transport.Receiver{},
		senders:   map[string]transport.Sender{},
	}
}

// receiver returns the receiver endpoint for the key, creating it on first use.
//
// Role selection: a topic key, or a pub/sub connection, gets a Subscriber;
// anything else gets a plain Receiver. Topic receivers connect fan-in to
// every channel address publishing the topic and subscribe to the topic's
// wire filter; pub/sub connection receivers subscribe to every topic the
// channel lists.
func (a *endpointRegistry) receiver(connectionOrTopic string) (transport.Receiver, error) {
	a.receiverMutex.Lock()
	defer a.receiverMutex.Unlock()
	if receiver := a.receivers[connectionOrTopic]; receiver != nil {
		return receiver, nil
	}

	isTopic := a.mgr.IsTopic(connectionOrTopic)
	role := transport.RoleReceiver
	if isTopic || a.mgr.IsPubSubConnection(connectionOrTopic) {
		role = transport.RoleSubscriber
	}

	var config transport.Config
	if isTopic {
		addresses, err := a.mgr.ConnectionStrings(connectionOrTopic)
		if err != nil {
			return nil, err
		}
		config.ConnectionStrings = addresses
	} else {
		address, err := a.mgr.ConnectionString(connectionOrTopic)
		if err != nil {
			return nil, err
		}
		config.ConnectionString = address
	}

	receiver := a.factory.NewReceiver(role)
	if err := receiver.ConnectForReceives(config); err != nil {
		return nil, err
	}

	if role == transport.RoleSubscriber {
		subscriber := receiver.(transport.Subscriber)
		topics := []string{connectionOrTopic}
		if !isTopic {
			topics = a.mgr.connectionTopics(connectionOrTopic)
		}
		for _, topic := range topics {
			if err := subscriber.Subscribe(topic); err != nil {
				closeQuietly(receiver)
				return nil, err
			}
		}
	}

	a.receivers[connectionOrTopic] = receiver
	logger.Debug().Str(logging.EVENT, EVENT_ENDPOINT_CREATED).
		Str(logging.ID, nuid.Next()).
		Str(logging.NAME, connectionOrTopic).
		Str(logging.DIRECTION, Recv.String()).
		Str(logging.TYPE, role.String()).
		Msg("")
	return receiver, nil
}

// sender returns the sender endpoint for the connection, creating it on first
// use. Pub/sub connections get a Publisher role, point-to-point a Sender.
func (a *endpointRegistry) sender(connectionName string) (transport.Sender, error) {
	a.senderMutex.Lock()
	defer a.senderMutex.Unlock()
	if sender := a.senders[connectionName]; sender != nil {
		return sender, nil
	}

	role := transport.RoleSender
	if a.mgr.IsPubSubConnection(connectionName) {
		role = transport.RolePublisher
	}

	address, err := a.mgr.ConnectionString(connectionName)
	if err != nil {
		return nil, err
	}

	sender := a.factory.NewSender(role)
	if err := sender.ConnectForSends(transport.Config{ConnectionString: address}); err != nil {
		return nil, err
	}

	a.senders[connectionName] = sender
	logger.Debug().Str(logging.EVENT, EVENT_ENDPOINT_CREATED).
		Str(logging.ID, nuid.Next()).
		Str(logging.NAME, connectionName).
		Str(logging.DIRECTION, Send.String()).
		Str(logging.TYPE, role.String()).
		Msg("")
	return sender, nil
}

// isOpen reports whether an endpoint exists for the key in the direction
func (a *endpointRegistry) isOpen(connectionOrTopic string, direction Direction) bool {
	switch direction {
	case Recv:
		a.receiverMutex.Lock()
		defer a.receiverMutex.Unlock()
		_, exists := a.receivers[connectionOrTopic]
		return exists
	case Send:
		a.senderMutex.Lock()
		defer a.senderMutex.Unlock()
		_, exists := a.senders[connectionOrTopic]
		return exists
	}
	return false
}

// reset closes and drops all endpoints
func (a *endpointRegistry) reset() {
	a.receiverMutex.Lock()
	for _, receiver := range a.receivers {
		closeQuietly(receiver)
	}
	a.receivers = map[string]transport.Receiver{}
	a.receiverMutex.Unlock()

	a.senderMutex.Lock()
	for _, sender := range a.senders {
		closeQuietly(sender)
	}
	a.senders = map[string]transport.Sender{}
	a.senderMutex.Unlock()
}

type closer interface {
	Close() error
}

func closeQuietly(c closer) {
	defer commons.IgnorePanic()
	c.Close()
}
