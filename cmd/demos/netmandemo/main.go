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

// netmandemo wires the messaging facade to the inproc transport, drives a
// point-to-point channel and a pub/sub topic, and serves the prometheus
// metrics on http://localhost:8080/metrics.
package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/oysterpack/netman.go/pkg/metrics"
	"github.com/oysterpack/netman.go/pkg/netman"
	"github.com/oysterpack/netman.go/pkg/netman/transport"
	_ "github.com/oysterpack/netman.go/pkg/netman/transport/inproc"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

func main() {
	catalog, err := netman.ParseConnections([]byte(`[
		{"name": "events", "address": "inproc://events"},
		{"name": "sensors", "address": "inproc://sensors", "topics": ["temperature", "pressure"]}
	]`))
	if err != nil {
		log.Fatal().Err(err).Msg("invalid catalog")
	}

	mgr := netman.Get()
	if err := mgr.Configure(catalog); err != nil {
		log.Fatal().Err(err).Msg("configure failed")
	}
	defer mgr.Reset()

	// point-to-point: listener callback
	if err := mgr.StartListening("events"); err != nil {
		log.Fatal().Err(err).Msg("")
	}
	mgr.RegisterCallback("events", func(response transport.Response) {
		fmt.Printf("event    : %s\n", response.Data)
	})

	// pub/sub: topic subscription
	if err := mgr.Subscribe("temperature"); err != nil {
		log.Fatal().Err(err).Msg("")
	}
	mgr.RegisterCallback("temperature", func(response transport.Response) {
		fmt.Printf("%s : %s\n", response.Metadata, response.Data)
	})

	for i := 0; i < 5; i++ {
		mgr.SendTo("events", []byte(fmt.Sprintf("run %d started", i)), time.Second, "")
		mgr.SendTo("sensors", []byte(fmt.Sprintf("%d.%d C", 20+i, i)), time.Second, "temperature")
		mgr.SendTo("sensors", []byte(fmt.Sprintf("%d hPa", 1000+i)), time.Second, "pressure")
	}
	time.Sleep(100 * time.Millisecond)

	for name, info := range mgr.SampleStats() {
		fmt.Printf("stats    : %s sent=%d/%dB received=%d/%dB\n",
			name, info.SentMessages, info.SentBytes, info.ReceivedMessages, info.ReceivedBytes)
	}

	http.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	fmt.Println("serving metrics on http://localhost:8080/metrics")
	log.Fatal().Err(http.ListenAndServe(":8080", nil)).Msg("")
}
