// Package metrics exposes Prometheus instruments for the batch ledger.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var EntriesAdmitted = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "batchledger",
	Name:      "entries_admitted_total",
	Help:      "Entries admitted into a batch.",
})

var EntriesRejected = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "batchledger",
	Name:      "entries_rejected_total",
	Help:      "Entry admissions that aborted, by reason.",
}, []string{"reason"})

var CurrentBatchSize = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "batchledger",
	Name:      "current_batch_size",
	Help:      "Entries in the open batch.",
})

var CurrentBatchNumber = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "batchledger",
	Name:      "current_batch_number",
	Help:      "Number of the open batch.",
})

var BatchesTransmitted = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "batchledger",
	Name:      "batches_transmitted_total",
	Help:      "Batches closed and handed to the settlement authority.",
})

var NetTransmitted = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "batchledger",
	Name:      "net_transmitted_total",
	Help:      "Sum of net amounts transferred to settlement authorities.",
})

var BatchesPurged = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "batchledger",
	Name:      "batch_purges_total",
	Help:      "Purge calls, by outcome.",
}, []string{"outcome"})

var EventPublishErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "batchledger",
	Name:      "event_publish_errors_total",
	Help:      "Events that could not be published after commit, by topic.",
}, []string{"topic"})

var StrandedNet = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "batchledger",
	Name:      "purged_open_batch_net_total",
	Help:      "Net amounts left in the pool by purging a batch before it was transmitted.",
})
