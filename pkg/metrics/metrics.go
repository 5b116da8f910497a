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

// Package metrics centralizes prometheus metric registration.
// Metrics are registered via GetOrMustRegister* functions, which cache the
// metric along with its opts. Registering the same metric twice with the same
// opts returns the cached metric; registering with different opts panics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MetricType identifies the kind of a registered metric
type MetricType int

// MetricType enum values
const (
	UNKNOWN MetricType = iota

	COUNTER
	COUNTERVEC
	GAUGE
	GAUGEVEC
)

// Value returns the enum ordinal
func (a MetricType) Value() int {
	return int(a)
}

func (a MetricType) String() string {
	switch a {
	case COUNTER:
		return "Counter"
	case COUNTERVEC:
		return "CounterVec"
	case GAUGE:
		return "Gauge"
	case GAUGEVEC:
		return "GaugeVec"
	default:
		return "UNKNOWN"
	}
}

// Counter pairs a registered counter with its opts
type Counter struct {
	prometheus.Counter
	*prometheus.CounterOpts
}

// CounterVec pairs a registered counter vector with its opts
type CounterVec struct {
	*prometheus.CounterVec
	*CounterVecOpts
}

// Gauge pairs a registered gauge with its opts
type Gauge struct {
	prometheus.Gauge
	*prometheus.GaugeOpts
}

// GaugeVec pairs a registered gauge vector with its opts
type GaugeVec struct {
	*prometheus.GaugeVec
	*GaugeVecOpts
}

// CounterVecOpts are used to construct a CounterVec
type CounterVecOpts struct {
	*prometheus.CounterOpts
	Labels []string
}

// GaugeVecOpts are used to construct a GaugeVec
type GaugeVecOpts struct {
	*prometheus.GaugeOpts
	Labels []string
}
