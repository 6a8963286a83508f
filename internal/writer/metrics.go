// Copyright 2024 The OracleCDC Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

package writer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bersler/oraclecdc/internal/util/metrics"
)

var (
	writerSentCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "writer_messages_sent_total",
		Help: "the number of messages handed to the sink",
	}, metrics.SinkLabels)
	writerConfirmLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "writer_confirm_latency_seconds",
		Help:    "the time between a message being sent and its confirmation",
		Buckets: metrics.LatencyBuckets,
	}, metrics.SinkLabels)
	writerSendErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "writer_send_errors_total",
		Help: "the number of send failures observed on a sink",
	}, metrics.SinkLabels)
	writerQueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "writer_queue_depth",
		Help: "the number of unconfirmed in-flight messages",
	}, metrics.SinkLabels)
	writerConfirmedSCN = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "writer_confirmed_scn",
		Help: "the highest SCN confirmed by the sink",
	}, metrics.SinkLabels)
)
