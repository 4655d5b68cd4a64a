package tagreader

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newChildren(n int) []*Reply {
	children := make([]*Reply, n)
	for i := range children {
		children[i] = NewReply(NewNetworkStatisticsMessage())
	}
	return children
}

func TestBroadcastReply_Empty(t *testing.T) {
	t.Run("zero children completes immediately as failed", func(t *testing.T) {
		br := NewBroadcastReply(NewNetworkStatisticsMessage(), nil)

		assert.True(t, br.IsFinished())
		assert.False(t, br.IsSuccessful())
		assert.False(t, br.WaitForFinished())
		assert.Empty(t, br.Replies())
	})
}

func TestBroadcastReply_SingleChild(t *testing.T) {
	t.Run("mirrors its only child", func(t *testing.T) {
		children := newChildren(1)
		br := NewBroadcastReply(NewNetworkStatisticsMessage(), children)

		assert.False(t, br.IsFinished())
		children[0].Resolve(NewMessage())

		assert.True(t, br.IsFinished())
		assert.True(t, br.IsSuccessful())
		assert.True(t, br.WaitForFinished())
	})

	t.Run("child failure fails the broadcast", func(t *testing.T) {
		children := newChildren(1)
		br := NewBroadcastReply(NewNetworkStatisticsMessage(), children)

		children[0].Reject(ErrNoWorkers)
		assert.True(t, br.IsFinished())
		assert.False(t, br.IsSuccessful())
	})
}

func TestBroadcastReply_ThreeChildren(t *testing.T) {
	t.Run("finished only when all children finished", func(t *testing.T) {
		// Exercise every completion order
		orders := [][]int{
			{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0},
		}
		for _, order := range orders {
			children := newChildren(3)
			br := NewBroadcastReply(NewNetworkStatisticsMessage(), children)

			for i, idx := range order {
				assert.False(t, br.IsFinished(), "finished after %d of 3 children", i)
				children[idx].Resolve(NewMessage())
			}
			assert.True(t, br.IsFinished())
			assert.True(t, br.IsSuccessful())
		}
	})

	t.Run("one failing child fails the aggregate", func(t *testing.T) {
		children := newChildren(3)
		br := NewBroadcastReply(NewNetworkStatisticsMessage(), children)

		children[0].Resolve(NewMessage())
		children[1].Reject(ErrNoWorkers)
		children[2].Resolve(NewMessage())

		assert.True(t, br.IsFinished())
		assert.False(t, br.IsSuccessful())
		assert.False(t, br.WaitForFinished())
	})

	t.Run("children finishing concurrently", func(t *testing.T) {
		children := newChildren(3)
		br := NewBroadcastReply(NewNetworkStatisticsMessage(), children)

		var wg sync.WaitGroup
		for _, child := range children {
			wg.Add(1)
			go func(r *Reply) {
				defer wg.Done()
				r.Resolve(NewMessage())
			}(child)
		}
		wg.Wait()

		assert.True(t, br.WaitForFinished())
	})

	t.Run("children already finished at construction", func(t *testing.T) {
		children := newChildren(3)
		for _, child := range children {
			child.Resolve(NewMessage())
		}

		br := NewBroadcastReply(NewNetworkStatisticsMessage(), children)
		assert.True(t, br.IsFinished())
		assert.True(t, br.IsSuccessful())
	})
}

func TestBroadcastReply_Callbacks(t *testing.T) {
	t.Run("completion callback fires exactly once", func(t *testing.T) {
		children := newChildren(2)
		br := NewBroadcastReply(NewNetworkStatisticsMessage(), children)

		calls := 0
		br.OnFinished(func(success bool) {
			calls++
			assert.True(t, success)
		})

		children[0].Resolve(NewMessage())
		children[1].Resolve(NewMessage())
		assert.Equal(t, 1, calls)
	})
}

func TestBroadcastReply_Replies(t *testing.T) {
	t.Run("keeps pool iteration order", func(t *testing.T) {
		children := newChildren(3)
		br := NewBroadcastReply(NewNetworkStatisticsMessage(), children)

		got := br.Replies()
		require.Len(t, got, 3)
		for i := range children {
			assert.Same(t, children[i], got[i])
		}
	})
}
