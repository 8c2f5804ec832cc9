package utils

import (
	"math"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPartitionMap(t *testing.T) {
	{ // Test PartitionMap
		getHisto := func(K, Np int) (histo map[int]int) {
			pm := NewPartitionMap(Np, K)
			histo = make(map[int]int)
			for np := 0; np < pm.ParallelDegree; np++ {
				kMin, kMax := pm.GetBucketRange(np)
				histo[kMax-kMin]++
			}
			return
		}
		getTotal := func(histo map[int]int) (total int) {
			for key, count := range histo {
				total += key * count
			}
			return
		}
		assert.Equal(t, map[int]int{0: 30, 1: 2}, getHisto(2, 32))
		assert.Equal(t, map[int]int{1: 32}, getHisto(32, 32))
		assert.Equal(t, map[int]int{8: 32}, getHisto(256, 32))
		assert.Equal(t, map[int]int{8: 1, 9: 31}, getHisto(287, 32))
		assert.Equal(t, 287, getTotal(getHisto(287, 32)))
		for n := 64; n < 2000; n++ {
			var (
				keys   [2]float64
				keyNum int
			)
			histo := getHisto(n, 32)
			for key := range histo {
				keys[keyNum] = float64(key)
				keyNum++
			}
			if keyNum == 2 {
				assert.Equal(t, 1., math.Abs(keys[0]-keys[1])) // Maximum imbalance of 1
			}
			assert.Equal(t, n, getTotal(histo))
		}
	}
	{ // Test inverted bucket probe - find bucket that contains index (efficiently)
		for maxIndex := 10; maxIndex < 500; maxIndex++ {
			pm := NewPartitionMap(5, maxIndex)
			for k := 0; k < maxIndex; k++ {
				tryCount, bn, min, max := pm.getBucketWithTryCount(k)
				mmin, mmax := pm.GetBucketRange(bn)
				assert.True(t, k >= min && k < max && min == mmin && max == mmax && tryCount <= 1)
				bucket, _, _ := pm.GetBucket(k)
				assert.Equal(t, bn, bucket)
			}
			bucket, _, _ := pm.GetBucket(maxIndex)
			assert.Equal(t, -1, bucket)
		}
	}
}

func TestParallelFor(t *testing.T) {
	for _, n := range []int{0, 1, 7, 100, 101, 1000, 12345} {
		var (
			visits = make([]int32, n)
			sum    atomic.Int64
		)
		ParallelFor(n, 10, func(k int) {
			atomic.AddInt32(&visits[k], 1)
			sum.Add(int64(k))
		})
		for k := 0; k < n; k++ {
			assert.Equal(t, int32(1), visits[k], "index %d visited %d times", k, visits[k])
		}
		assert.Equal(t, int64(n*(n-1)/2), sum.Load())
	}
	assert.Equal(t, 1, ParallelDegree(10, 100))
	assert.Equal(t, 1, ParallelDegree(0, 0))
}

func TestParallelFind(t *testing.T) {
	{ // Single match is always found
		for _, target := range []int{0, 17, 499, 999} {
			found := ParallelFind(1000, 10, func(k int) bool { return k == target })
			assert.Equal(t, target, found)
		}
	}
	{ // No match
		assert.Equal(t, -1, ParallelFind(1000, 10, func(k int) bool { return false }))
		assert.Equal(t, -1, ParallelFind(0, 10, func(k int) bool { return true }))
	}
	{ // Many matches, result must be one of them
		found := ParallelFind(1000, 10, func(k int) bool { return k%100 == 3 })
		assert.Equal(t, 3, found%100)
	}
}
