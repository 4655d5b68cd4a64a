package tagreader

import (
	"net/url"
)

// NetworkUsage is the per-host aggregate of the workers' network history:
// how many requests each host served and how many bytes it sent.
type NetworkUsage struct {
	RequestsByHost map[string]int   `json:"requests_by_host"`
	BytesByHost    map[string]int64 `json:"bytes_by_host"`
}

// NewNetworkUsage creates an empty aggregate
func NewNetworkUsage() NetworkUsage {
	return NetworkUsage{
		RequestsByHost: make(map[string]int),
		BytesByHost:    make(map[string]int64),
	}
}

// Add folds one entry into the aggregate. The grouping key is the URL's
// authority (host[:port]); an unparseable URL is bucketed under its raw
// string so no traffic is silently dropped. The fold is commutative, so
// entry order never affects the result.
func (u NetworkUsage) Add(entry NetworkStatisticsEntry) {
	host := entry.URL
	if parsed, err := url.Parse(entry.URL); err == nil && parsed.Host != "" {
		host = parsed.Host
	}
	u.RequestsByHost[host]++
	u.BytesByHost[host] += entry.BytesReceived
}

// AggregateNetworkStatistics folds a merged broadcast response into
// per-host counters
func AggregateNetworkStatistics(entries []NetworkStatisticsEntry) NetworkUsage {
	usage := NewNetworkUsage()
	for _, entry := range entries {
		usage.Add(entry)
	}
	return usage
}

// MergeNetworkStatistics concatenates the network-statistics entries of
// every answered child reply of a broadcast
func MergeNetworkStatistics(replies []*Reply) []NetworkStatisticsEntry {
	var entries []NetworkStatisticsEntry
	for _, reply := range replies {
		resp := reply.Message().NetworkStatisticsResponse
		if resp == nil {
			continue
		}
		entries = append(entries, resp.Entries...)
	}
	return entries
}
