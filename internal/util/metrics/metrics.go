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

// Package metrics holds shared Prometheus label sets and bucket
// schemes, grounded on internal/staging/stage/metrics.go's
// metrics.LatencyBuckets / metrics.TableLabels pattern: every
// component package that needs metrics declares its own promauto
// vectors locally, but reuses these shared bucket/label definitions so
// that dashboards stay consistent across reader, analyzer and writer
// packages.
package metrics

// LatencyBuckets are used for every duration histogram in this
// repository.
var LatencyBuckets = []float64{
	.001, .002, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60,
}

// ReaderLabels labels metrics emitted by internal/reader.
var ReaderLabels = []string{"group"}

// TableLabels labels metrics keyed by captured table.
var TableLabels = []string{"owner", "table"}

// SinkLabels labels metrics emitted by internal/writer sinks.
var SinkLabels = []string{"target", "sink"}
