package filter

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/powa-team/errnotify/internal/notice"
)

func setAction(action string) Filter {
	return func(n *notice.Notice) *notice.Notice {
		n.Context.Action += action
		return n
	}
}

func TestApply_NoFilters(t *testing.T) {
	n := notice.NewBuilder().ToNotice()
	assert.Same(t, n, Apply(n, nil))
}

func TestApply_InOrder(t *testing.T) {
	n := notice.NewBuilder().ToNotice()

	out := Apply(n, []Filter{setAction("a"), setAction("b"), setAction("c")})

	require.NotNil(t, out)
	assert.Equal(t, "abc", out.Context.Action)
}

func TestApply_ShortCircuits(t *testing.T) {
	var calls []string
	f1 := func(n *notice.Notice) *notice.Notice { calls = append(calls, "f1"); return n }
	f2 := func(n *notice.Notice) *notice.Notice { calls = append(calls, "f2"); return nil }
	f3 := func(n *notice.Notice) *notice.Notice { calls = append(calls, "f3"); return n }

	out := Apply(notice.NewBuilder().ToNotice(), []Filter{f1, f2, f3})

	assert.Nil(t, out)
	assert.Equal(t, []string{"f1", "f2"}, calls)
}

func TestApply_ReplacementNotice(t *testing.T) {
	replacement := notice.NewBuilder().SetSeverity(notice.SeverityInfo).ToNotice()
	swap := func(*notice.Notice) *notice.Notice { return replacement }

	out := Apply(notice.NewBuilder().ToNotice(), []Filter{swap, setAction("x")})

	assert.Same(t, replacement, out)
	assert.Equal(t, "x", out.Context.Action)
}

func TestChain_SnapshotIsStable(t *testing.T) {
	var c Chain
	c.Add(setAction("a"))
	snap := c.Snapshot()
	c.Add(setAction("b"))

	assert.Len(t, snap, 1)
	assert.Equal(t, 2, c.Len())
}

func TestChain_IgnoresNil(t *testing.T) {
	var c Chain
	c.Add(nil)
	assert.Equal(t, 0, c.Len())
}

func TestChain_ConcurrentAdd(t *testing.T) {
	var c Chain
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.Add(setAction("x"))
		}()
		go func() {
			defer wg.Done()
			Apply(notice.NewBuilder().ToNotice(), c.Snapshot())
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, c.Len())
}
