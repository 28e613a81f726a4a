/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package client

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// Metrics holds the client's own Prometheus collectors. Unlike sptp's
// exporter, which scrapes a separate process's counters over HTTP on an
// interval, a Client updates these directly as it handles packets, so
// they're registered once at construction and simply exposed for scrape.
type Metrics struct {
	registry *prometheus.Registry

	PeersKnown       prometheus.Gauge
	PeersEvicted     prometheus.Counter
	RequestsSent     prometheus.Counter
	RequestsTimedOut prometheus.Counter
	DecodeErrors     prometheus.Counter
}

// NewMetrics registers and returns a fresh set of collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		PeersKnown: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tcnet_peers_known",
			Help: "Number of peers currently tracked on the segment.",
		}),
		PeersEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tcnet_peers_evicted_total",
			Help: "Peers removed for going silent past the idle threshold.",
		}),
		RequestsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tcnet_requests_sent_total",
			Help: "Request packets sent to peers.",
		}),
		RequestsTimedOut: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tcnet_requests_timed_out_total",
			Help: "Requests that never received a matching reply in time.",
		}),
		DecodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tcnet_decode_errors_total",
			Help: "Inbound datagrams that failed to decode as any known packet.",
		}),
	}
	for _, c := range []prometheus.Collector{m.PeersKnown, m.PeersEvicted, m.RequestsSent, m.RequestsTimedOut, m.DecodeErrors} {
		m.registry.MustRegister(c)
	}
	return m
}

// Serve starts an HTTP server exposing the registry on /metrics at :port.
// Blocks; run it in its own goroutine.
func (m *Metrics) Serve(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true}))
	addr := fmt.Sprintf(":%d", port)
	log.Infof("tcnet: serving metrics on %s/metrics", addr)
	return http.ListenAndServe(addr, mux)
}
