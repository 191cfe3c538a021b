// Package prometheus exposes engine counters as a prometheus.Collector.
//
// Counters are named authcore_*_total and the validate latency histogram is
// authcore_validate_latency_seconds. The collector reads a fresh snapshot on
// every scrape and never registers itself globally; callers register it on
// their own registry or mount Handler.
package prometheus
