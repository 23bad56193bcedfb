package book

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func price(i int64) decimal.Decimal {
	return decimal.NewFromInt(i)
}

// Test 1: Insert, find and delete round trip
func TestLevelTree_InsertFindDelete(t *testing.T) {
	tree := newLevelTree()

	lvl := tree.upsert(price(100))
	require.NotNil(t, lvl)
	assert.Same(t, lvl, tree.find(price(100)))

	tree.upsert(price(200))
	assert.Equal(t, 2, tree.len())
	assert.True(t, tree.min().price.Equal(price(100)))
	assert.True(t, tree.max().price.Equal(price(200)))

	assert.True(t, tree.remove(price(100)))
	assert.Nil(t, tree.find(price(100)))
	assert.Equal(t, 1, tree.len())
}

// Test 2: Empty tree behavior
func TestLevelTree_Empty(t *testing.T) {
	tree := newLevelTree()

	assert.Equal(t, 0, tree.len())
	assert.Nil(t, tree.min())
	assert.Nil(t, tree.max())
	assert.Nil(t, tree.find(price(1)))
	assert.False(t, tree.remove(price(1)))
}

// Test 3: Upsert returns the existing level for a duplicate price
func TestLevelTree_UpsertDuplicate(t *testing.T) {
	tree := newLevelTree()

	lvl1 := tree.upsert(price(150))
	lvl2 := tree.upsert(price(150))

	assert.Same(t, lvl1, lvl2)
	assert.Equal(t, 1, tree.len())
}

// Test 4: Prices equal in value but different in scale hit the same level
func TestLevelTree_ScaleInsensitiveKeys(t *testing.T) {
	tree := newLevelTree()

	lvl1 := tree.upsert(decimal.RequireFromString("100.50"))
	lvl2 := tree.upsert(decimal.RequireFromString("100.5000"))

	assert.Same(t, lvl1, lvl2)
	assert.Equal(t, 1, tree.len())
}

// Test 5: Ascending and descending traversal order
func TestLevelTree_Traversal(t *testing.T) {
	tree := newLevelTree()
	for _, p := range []int64{300, 100, 500, 200, 400} {
		tree.upsert(price(p))
	}

	var asc []int64
	tree.ascend(func(lvl *level) bool {
		asc = append(asc, lvl.price.IntPart())
		return true
	})
	assert.Equal(t, []int64{100, 200, 300, 400, 500}, asc)

	var desc []int64
	tree.descend(func(lvl *level) bool {
		desc = append(desc, lvl.price.IntPart())
		return true
	})
	assert.Equal(t, []int64{500, 400, 300, 200, 100}, desc)
}

// Test 6: Traversal stops when the callback returns false
func TestLevelTree_TraversalEarlyStop(t *testing.T) {
	tree := newLevelTree()
	for _, p := range []int64{1, 2, 3, 4, 5} {
		tree.upsert(price(p))
	}

	var visited []int64
	tree.ascend(func(lvl *level) bool {
		visited = append(visited, lvl.price.IntPart())
		return len(visited) < 2
	})
	assert.Equal(t, []int64{1, 2}, visited)
}

// Test 7: Clear resets the tree
func TestLevelTree_Clear(t *testing.T) {
	tree := newLevelTree()
	tree.upsert(price(10))
	tree.upsert(price(20))

	tree.clear()

	assert.Equal(t, 0, tree.len())
	assert.Nil(t, tree.min())
	assert.Nil(t, tree.max())
}

// Test 8: Heavy insert/delete churn keeps the tree ordered and complete.
// Prices go in and out in scrambled orders to push every rebalancing path.
func TestLevelTree_Churn(t *testing.T) {
	const n = 512
	tree := newLevelTree()

	// Insert 0..n-1 scrambled by a stride coprime with n.
	for i := int64(0); i < n; i++ {
		tree.upsert(price((i * 131) % n))
	}
	require.Equal(t, int(n), tree.len())

	// Remove every third price, scrambled by a different stride.
	removed := make(map[int64]bool)
	for i := int64(0); i < n; i += 3 {
		p := (i * 197) % n
		if removed[p] {
			continue
		}
		require.True(t, tree.remove(price(p)), "remove %d", p)
		removed[p] = true
	}

	var got []int64
	tree.ascend(func(lvl *level) bool {
		got = append(got, lvl.price.IntPart())
		return true
	})

	var want []int64
	for p := int64(0); p < n; p++ {
		if !removed[p] {
			want = append(want, p)
		}
	}
	assert.Equal(t, want, got)
	assert.Equal(t, len(want), tree.len())

	// The survivors are still reachable point queries.
	for _, p := range want[:16] {
		require.NotNil(t, tree.find(price(p)), "find %d", p)
	}
}
