package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PixelRequests counts well-formed tracking pixel requests
	PixelRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mailtracker_pixel_requests_total",
		Help: "Tracking pixel requests received with a tracking id.",
	})

	// SenderAccesses counts pixel hits attributed to the sender
	SenderAccesses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mailtracker_sender_accesses_total",
		Help: "Pixel hits classified as the sender re-viewing their own mail.",
	})

	// OpensRecorded counts pixel hits that flipped a record to read
	OpensRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mailtracker_opens_recorded_total",
		Help: "Recipient opens recorded against an email record.",
	})

	// StoreFallbacks counts writes diverted to the access log
	StoreFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mailtracker_store_fallbacks_total",
		Help: "Record operations diverted to the log file while the database was unavailable.",
	})
)
