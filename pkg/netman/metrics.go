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
	"github.com/oysterpack/netman.go/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsNamespace is the metric namespace for all netman metrics
const MetricsNamespace = "op"

// MetricsSubSystem is the metric subsystem for all netman metrics
const MetricsSubSystem = "netman"

// MetricLabels are the variable labels applied to per-channel metrics
var MetricLabels = []string{"connection"}

// cumulative per-channel traffic counters - complementary to the
// read-and-reset samples served by SampleStats
var (
	SentBytesCounterOpts = &metrics.CounterVecOpts{
		CounterOpts: &prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubSystem,
			Name:      "sent_bytes_total",
			Help:      "Bytes sent per connection",
		},
		Labels: MetricLabels,
	}

	SentMessagesCounterOpts = &metrics.CounterVecOpts{
		CounterOpts: &prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubSystem,
			Name:      "sent_messages_total",
			Help:      "Messages sent per connection",
		},
		Labels: MetricLabels,
	}

	ReceivedBytesCounterOpts = &metrics.CounterVecOpts{
		CounterOpts: &prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubSystem,
			Name:      "received_bytes_total",
			Help:      "Bytes received per connection or topic",
		},
		Labels: MetricLabels,
	}

	ReceivedMessagesCounterOpts = &metrics.CounterVecOpts{
		CounterOpts: &prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubSystem,
			Name:      "received_messages_total",
			Help:      "Messages received per connection or topic",
		},
		Labels: MetricLabels,
	}
)
