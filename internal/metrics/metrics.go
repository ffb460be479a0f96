package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var FeedItems = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "caughtup_feed_items_total",
	Help: "Timeline items seen by the filter, by verdict",
}, []string{"outcome"})

var ThreadEntries = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "caughtup_thread_entries_total",
	Help: "Flattened thread entries, posts and pruned spoiler branches",
}, []string{"kind"})

var FirehoseEvents = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "caughtup_firehose_events_total",
	Help: "Jetstream events received, by kind",
}, []string{"kind"})

var LivePosts = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "caughtup_live_posts_total",
	Help: "Live posts from followed accounts, by verdict",
}, []string{"outcome"})

var LiveBufferDepth = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "caughtup_live_buffer_depth",
	Help: "Posts currently held in the live buffer",
})

var UpstreamRequestSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "caughtup_upstream_request_seconds",
	Help:    "Latency of XRPC calls to the PDS/AppView",
	Buckets: prometheus.ExponentialBuckets(0.025, 2, 10),
}, []string{"method", "status"})
