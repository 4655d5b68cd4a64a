package tagreader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregateNetworkStatistics(t *testing.T) {
	entries := []NetworkStatisticsEntry{
		{URL: "https://hostA/one.mp3", BytesReceived: 100},
		{URL: "https://hostB/two.mp3", BytesReceived: 50},
		{URL: "https://hostA/three.mp3", BytesReceived: 25},
	}

	t.Run("groups by authority", func(t *testing.T) {
		usage := AggregateNetworkStatistics(entries)

		assert.Equal(t, 2, usage.RequestsByHost["hostA"])
		assert.Equal(t, int64(125), usage.BytesByHost["hostA"])
		assert.Equal(t, 1, usage.RequestsByHost["hostB"])
		assert.Equal(t, int64(50), usage.BytesByHost["hostB"])
	})

	t.Run("order does not matter", func(t *testing.T) {
		expected := AggregateNetworkStatistics(entries)

		permutations := [][]int{
			{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0},
		}
		for _, p := range permutations {
			permuted := []NetworkStatisticsEntry{entries[p[0]], entries[p[1]], entries[p[2]]}
			assert.Equal(t, expected, AggregateNetworkStatistics(permuted))
		}
	})

	t.Run("port is part of the key", func(t *testing.T) {
		usage := AggregateNetworkStatistics([]NetworkStatisticsEntry{
			{URL: "http://cdn.example.com/a", BytesReceived: 10},
			{URL: "http://cdn.example.com:8080/b", BytesReceived: 20},
		})

		assert.Equal(t, 1, usage.RequestsByHost["cdn.example.com"])
		assert.Equal(t, 1, usage.RequestsByHost["cdn.example.com:8080"])
	})

	t.Run("unparseable url keeps its raw bucket", func(t *testing.T) {
		usage := AggregateNetworkStatistics([]NetworkStatisticsEntry{
			{URL: "::not a url::", BytesReceived: 7},
		})

		assert.Equal(t, 1, usage.RequestsByHost["::not a url::"])
		assert.Equal(t, int64(7), usage.BytesByHost["::not a url::"])
	})

	t.Run("empty input yields empty maps", func(t *testing.T) {
		usage := AggregateNetworkStatistics(nil)
		assert.Empty(t, usage.RequestsByHost)
		assert.Empty(t, usage.BytesByHost)
	})
}

func TestMergeNetworkStatistics(t *testing.T) {
	t.Run("concatenates answered replies", func(t *testing.T) {
		first := NewReply(NewNetworkStatisticsMessage())
		answer1 := NewMessage()
		answer1.NetworkStatisticsResponse = &NetworkStatisticsResponse{
			Entries: []NetworkStatisticsEntry{{URL: "https://a/x", BytesReceived: 1}},
		}
		first.Resolve(answer1)

		second := NewReply(NewNetworkStatisticsMessage())
		answer2 := NewMessage()
		answer2.NetworkStatisticsResponse = &NetworkStatisticsResponse{
			Entries: []NetworkStatisticsEntry{
				{URL: "https://a/y", BytesReceived: 2},
				{URL: "https://b/z", BytesReceived: 3},
			},
		}
		second.Resolve(answer2)

		entries := MergeNetworkStatistics([]*Reply{first, second})
		require.Len(t, entries, 3)
	})

	t.Run("skips replies without a response payload", func(t *testing.T) {
		failed := NewReply(NewNetworkStatisticsMessage())
		failed.Reject(ErrNoWorkers)

		entries := MergeNetworkStatistics([]*Reply{failed})
		assert.Empty(t, entries)
	})
}
