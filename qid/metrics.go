// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package qid

import "github.com/prometheus/client_golang/prometheus"

const (
	MetricLinesMatched   = "lines_matched_total"
	MetricTuplesDecoded  = "tuples_decoded_total"
	MetricTuplesKept     = "tuples_kept_total"
	MetricRedirects      = "redirects_total"
	MetricRecordsWritten = "records_written_total"
)

var CounterLinesMatched = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "wiki2qid",
		Name:      MetricLinesMatched,
		Help:      "INSERT lines decoded, by table.",
	},
	[]string{"table"},
)

var CounterTuplesDecoded = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "wiki2qid",
		Name:      MetricTuplesDecoded,
		Help:      "Tuples decoded, by table.",
	},
	[]string{"table"},
)

var CounterTuplesKept = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "wiki2qid",
		Name:      MetricTuplesKept,
		Help:      "Tuples which passed the namespace or property filter, by table.",
	},
	[]string{"table"},
)

var CounterRedirects = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "wiki2qid",
		Name:      MetricRedirects,
		Help:      "Redirects in the main namespace, by outcome.",
	},
	[]string{"result"},
)

var CounterRecordsWritten = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "wiki2qid",
		Name:      MetricRecordsWritten,
		Help:      "Avro records written.",
	},
)

func init() {
	prometheus.MustRegister(CounterLinesMatched)
	prometheus.MustRegister(CounterTuplesDecoded)
	prometheus.MustRegister(CounterTuplesKept)
	prometheus.MustRegister(CounterRedirects)
	prometheus.MustRegister(CounterRecordsWritten)
}

func observeLoad(table string, stats LoadStats) {
	CounterLinesMatched.WithLabelValues(table).Add(float64(stats.Matched))
	CounterTuplesDecoded.WithLabelValues(table).Add(float64(stats.Tuples))
	CounterTuplesKept.WithLabelValues(table).Add(float64(stats.Kept))
}

func observeResolve(stats ResolveStats) {
	CounterRedirects.WithLabelValues("resolved").Add(float64(stats.Resolved))
	CounterRedirects.WithLabelValues("missing_target").Add(float64(stats.MissingTarget))
	CounterRedirects.WithLabelValues("missing_identity").Add(float64(stats.MissingIdentity))
}
