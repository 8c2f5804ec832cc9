package utils

import (
	"runtime"
	"sync"
	"sync/atomic"
)

type PartitionMap struct {
	MaxIndex       int // MaxIndex is partitioned into ParallelDegree partitions
	ParallelDegree int
	Partitions     [][2]int // Beginning and end index of partitions
}

func NewPartitionMap(ParallelDegree, maxIndex int) (pm *PartitionMap) {
	pm = &PartitionMap{
		MaxIndex:       maxIndex,
		ParallelDegree: ParallelDegree,
		Partitions:     make([][2]int, ParallelDegree),
	}
	for n := 0; n < ParallelDegree; n++ {
		pm.Partitions[n] = pm.Split1D(n)
	}
	return
}

// GetBucket finds the partition holding index kDim, bucketNum is -1 when kDim is out of range
func (pm *PartitionMap) GetBucket(kDim int) (bucketNum, min, max int) {
	_, bucketNum, min, max = pm.getBucketWithTryCount(kDim)
	return
}

func (pm *PartitionMap) getBucketWithTryCount(kDim int) (tryCount, bucketNum, min, max int) {
	// Initial guess
	bucketNum = int(float64(pm.ParallelDegree*kDim) / float64(pm.MaxIndex))
	if bucketNum >= pm.ParallelDegree {
		bucketNum = pm.ParallelDegree - 1
	}
	for !(pm.Partitions[bucketNum][0] <= kDim && pm.Partitions[bucketNum][1] > kDim) {
		if pm.Partitions[bucketNum][0] > kDim {
			bucketNum--
		} else {
			bucketNum++
		}
		if bucketNum == -1 || bucketNum == pm.ParallelDegree {
			return 0, -1, 0, 0
		}
		tryCount++
	}
	min, max = pm.Partitions[bucketNum][0], pm.Partitions[bucketNum][1]
	return
}

func (pm *PartitionMap) GetBucketRange(bucketNum int) (kMin, kMax int) {
	kMin, kMax = pm.Partitions[bucketNum][0], pm.Partitions[bucketNum][1]
	return
}

func (pm *PartitionMap) Split1D(threadNum int) (bucket [2]int) {
	// This routine splits one dimension into c.ParallelDegree pieces, with a maximum imbalance of one item
	var (
		Npart            = pm.MaxIndex / (pm.ParallelDegree)
		startAdd, endAdd int
		remainder        int
	)
	remainder = pm.MaxIndex % pm.ParallelDegree
	if remainder != 0 { // spread the remainder over the first chunks evenly
		if threadNum+1 > remainder {
			startAdd = remainder
			endAdd = 0
		} else {
			startAdd = threadNum
			endAdd = 1
		}
	}
	bucket[0] = threadNum*Npart + startAdd
	bucket[1] = bucket[0] + Npart + endAdd
	return
}

// ParallelDegree is the number of go routines used for n items with chunks of at least grain items
func ParallelDegree(n, grain int) (NP int) {
	if grain < 1 {
		grain = 1
	}
	NP = (n + grain - 1) / grain
	if ncpu := runtime.NumCPU(); NP > ncpu {
		NP = ncpu
	}
	if NP < 1 {
		NP = 1
	}
	return
}

// ParallelForChunk splits [0,n) into static chunks and runs fn on each chunk
// concurrently, returning after all chunks are done
func ParallelForChunk(n, grain int, fn func(kMin, kMax int)) {
	if n <= 0 {
		return
	}
	NP := ParallelDegree(n, grain)
	if NP == 1 {
		fn(0, n)
		return
	}
	var (
		pm = NewPartitionMap(NP, n)
		wg = sync.WaitGroup{}
	)
	for np := 0; np < NP; np++ {
		wg.Add(1)
		go func(np int) {
			defer wg.Done()
			fn(pm.GetBucketRange(np))
		}(np)
	}
	wg.Wait()
}

// ParallelFor calls fn for every index in [0,n)
func ParallelFor(n, grain int, fn func(k int)) {
	ParallelForChunk(n, grain, func(kMin, kMax int) {
		for k := kMin; k < kMax; k++ {
			fn(k)
		}
	})
}

// ParallelFind returns an index for which pred holds, or -1. Chunks stop early once
// any chunk has a hit. Only the first hit to claim the flag is returned, which chunk
// wins is not specified when several indices satisfy pred.
func ParallelFind(n, grain int, pred func(k int) bool) (found int) {
	var (
		hit    atomic.Bool
		result atomic.Int64
	)
	result.Store(-1)
	ParallelForChunk(n, grain, func(kMin, kMax int) {
		for k := kMin; k < kMax; k++ {
			if hit.Load() {
				return
			}
			if pred(k) {
				if hit.CompareAndSwap(false, true) {
					result.Store(int64(k))
				}
				return
			}
		}
	})
	return int(result.Load())
}
