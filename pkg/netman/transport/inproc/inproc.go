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

// Package inproc provides an in-process transport plugin.
//
// Addresses are opaque strings (conventionally "inproc://name") that resolve
// to process-global mailboxes. Point-to-point senders enqueue into the
// address's queue; receivers drain it. Publishers fan out to every subscriber
// port attached to the address whose topic filter matches; a slow subscriber
// drops messages rather than blocking the publisher.
//
// Rendezvous does not require binding order: the mailbox is created on first
// use from either side, so messages sent before a receiver connects are
// buffered up to the queue capacity.
package inproc

import (
	"errors"
	"sync"
	"time"

	"github.com/oysterpack/netman.go/pkg/commons/collections/sets"
	"github.com/oysterpack/netman.go/pkg/netman/transport"
)

// FactoryName is the name the plugin registers itself under
const FactoryName = "inproc"

// queue capacity for point-to-point queues and subscriber ports
const queueCapacity = 1000

// ErrNotConnected is returned when an endpoint is used before connect or after close
var ErrNotConnected = errors.New("NotConnected")

func init() {
	transport.Factories.MustRegister(FactoryName, Factory())
}

// Factory returns the inproc transport factory
func Factory() transport.Factory {
	return factory{}
}

type factory struct{}

func (a factory) NewSender(role transport.Role) transport.Sender {
	return &sender{role: role}
}

func (a factory) NewReceiver(role transport.Role) transport.Receiver {
	if role == transport.RoleSubscriber {
		return &subscriber{port: newSubPort()}
	}
	return &receiver{}
}

type message struct {
	data  []byte
	topic string
}

// subPort is a subscriber's attachment point: a buffered channel plus the
// topic filter consulted at publish time.
type subPort struct {
	ch     chan message
	topics sets.Strings
}

func newSubPort() *subPort {
	return &subPort{
		ch:     make(chan message, queueCapacity),
		topics: sets.NewStrings(),
	}
}

// mailbox holds the per-address state: the point-to-point queue and the
// attached subscriber ports.
type mailbox struct {
	mutex     sync.Mutex
	queue     chan message
	receivers int
	subs      map[*subPort]struct{}
}

func newMailbox() *mailbox {
	return &mailbox{
		queue: make(chan message, queueCapacity),
		subs:  map[*subPort]struct{}{},
	}
}

func (a *mailbox) publish(msg message) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	for port := range a.subs {
		if !port.topics.Contains(msg.topic) {
			continue
		}
		select {
		case port.ch <- msg:
		default: // slow subscriber - drop
		}
	}
}

func (a *mailbox) attach(port *subPort) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	a.subs[port] = struct{}{}
}

func (a *mailbox) detach(port *subPort) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	delete(a.subs, port)
}

// exchange is the process-global address table
type exchange struct {
	sync.Mutex
	mailboxes map[string]*mailbox
}

var ex = &exchange{mailboxes: map[string]*mailbox{}}

func (a *exchange) mailbox(address string) *mailbox {
	a.Lock()
	defer a.Unlock()
	mbox := a.mailboxes[address]
	if mbox == nil {
		mbox = newMailbox()
		a.mailboxes[address] = mbox
	}
	return mbox
}

func (a *exchange) bindReceiver(address string) *mailbox {
	mbox := a.mailbox(address)
	mbox.mutex.Lock()
	mbox.receivers++
	mbox.mutex.Unlock()
	return mbox
}

func (a *exchange) releaseReceiver(address string, mbox *mailbox) {
	mbox.mutex.Lock()
	mbox.receivers--
	orphaned := mbox.receivers == 0 && len(mbox.subs) == 0
	mbox.mutex.Unlock()
	if orphaned {
		a.remove(address, mbox)
	}
}

func (a *exchange) remove(address string, mbox *mailbox) {
	a.Lock()
	defer a.Unlock()
	if a.mailboxes[address] == mbox {
		delete(a.mailboxes, address)
	}
}

func receive(ch chan message, timeout time.Duration) (transport.Response, error) {
	if timeout == transport.NoBlock {
		select {
		case msg := <-ch:
			return transport.Response{Data: msg.data, Metadata: msg.topic}, nil
		default:
			return transport.Response{}, transport.ErrReceiveTimeoutExpired
		}
	}
	if timeout < 0 {
		msg := <-ch
		return transport.Response{Data: msg.data, Metadata: msg.topic}, nil
	}
	select {
	case msg := <-ch:
		return transport.Response{Data: msg.data, Metadata: msg.topic}, nil
	case <-time.After(timeout):
		return transport.Response{}, transport.ErrReceiveTimeoutExpired
	}
}

// sender implements transport.Sender for both the Sender and Publisher roles
type sender struct {
	role    transport.Role
	address string
	mbox    *mailbox
}

func (a *sender) ConnectForSends(config transport.Config) error {
	addresses := config.Addresses()
	if len(addresses) != 1 {
		return errors.New("inproc senders require exactly one connection string")
	}
	a.address = addresses[0]
	a.mbox = ex.mailbox(a.address)
	return nil
}

func (a *sender) Send(data []byte, timeout time.Duration, topic string) error {
	if a.mbox == nil {
		return ErrNotConnected
	}
	if a.role == transport.RolePublisher {
		a.mbox.publish(message{data: data, topic: topic})
		return nil
	}
	msg := message{data: data}
	if timeout == transport.NoBlock {
		select {
		case a.mbox.queue <- msg:
			return nil
		default:
			return transport.ErrSendTimeoutExpired
		}
	}
	if timeout < 0 {
		a.mbox.queue <- msg
		return nil
	}
	select {
	case a.mbox.queue <- msg:
		return nil
	case <-time.After(timeout):
		return transport.ErrSendTimeoutExpired
	}
}

func (a *sender) Close() error {
	a.mbox = nil
	return nil
}

// receiver implements transport.Receiver for the Receiver role
type receiver struct {
	address string
	mbox    *mailbox
}

func (a *receiver) ConnectForReceives(config transport.Config) error {
	addresses := config.Addresses()
	if len(addresses) != 1 {
		return errors.New("inproc receivers require exactly one connection string")
	}
	a.address = addresses[0]
	a.mbox = ex.bindReceiver(a.address)
	return nil
}

func (a *receiver) Receive(timeout time.Duration) (transport.Response, error) {
	if a.mbox == nil {
		return transport.Response{}, ErrNotConnected
	}
	return receive(a.mbox.queue, timeout)
}

func (a *receiver) Close() error {
	if a.mbox != nil {
		ex.releaseReceiver(a.address, a.mbox)
		a.mbox = nil
	}
	return nil
}

// subscriber implements transport.Subscriber.
// One port is attached to every configured address; the topic filter is
// shared, so subscribing applies to all of them (fan-in).
type subscriber struct {
	port      *subPort
	addresses []string
	mboxes    []*mailbox
}

func (a *subscriber) ConnectForReceives(config transport.Config) error {
	addresses := config.Addresses()
	if len(addresses) == 0 {
		return errors.New("inproc subscribers require at least one connection string")
	}
	a.addresses = addresses
	for _, address := range addresses {
		mbox := ex.mailbox(address)
		mbox.attach(a.port)
		a.mboxes = append(a.mboxes, mbox)
	}
	return nil
}

func (a *subscriber) Receive(timeout time.Duration) (transport.Response, error) {
	if len(a.mboxes) == 0 {
		return transport.Response{}, ErrNotConnected
	}
	return receive(a.port.ch, timeout)
}

func (a *subscriber) Subscribe(topic string) error {
	a.port.topics.Add(topic)
	return nil
}

func (a *subscriber) Unsubscribe(topic string) error {
	a.port.topics.Remove(topic)
	return nil
}

func (a *subscriber) Close() error {
	for i, mbox := range a.mboxes {
		mbox.detach(a.port)
		mbox.mutex.Lock()
		orphaned := mbox.receivers == 0 && len(mbox.subs) == 0
		mbox.mutex.Unlock()
		if orphaned {
			ex.remove(a.addresses[i], mbox)
		}
	}
	a.mboxes = nil
	a.addresses = nil
	return nil
}
