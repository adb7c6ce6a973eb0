// Package metrics holds the prometheus collectors of the bot.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "filestore"

var (
	FilesStored = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "files_stored_total",
		Help:      "Uploads written to storage and registered.",
	})

	IntakeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "intake_failures_total",
		Help:      "Uploads aborted by a storage error.",
	})

	Commands = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "commands_total",
		Help:      "Handled bot commands by name.",
	}, []string{"command"})

	ShortenerRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "shortener_requests_total",
		Help:      "Link shortener calls by result.",
	}, []string{"result"})

	AutoDeletes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "autodelete_total",
		Help:      "Scheduled reply deletions by state.",
	}, []string{"state"})
)
