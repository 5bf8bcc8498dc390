package bucketing

import (
	"hash"
	"sync"

	"github.com/spaolacci/murmur3"
)

// BucketingManager assigns string keys to a fixed number of buckets.
type BucketingManager struct {
	buckets    int
	hasherPool sync.Pool
}

func NewBucketingManager(buckets int) *BucketingManager {
	if buckets <= 0 {
		buckets = 1
	}
	bm := &BucketingManager{buckets: buckets}

	// Create pool of hash functions to avoid allocation overhead
	bm.hasherPool = sync.Pool{
		New: func() interface{} {
			return murmur3.New64()
		},
	}

	return bm
}

// Buckets returns the configured bucket count.
func (bm *BucketingManager) Buckets() int {
	return bm.buckets
}

// Bucket returns a consistent bucket for key (0 to buckets-1).
func (bm *BucketingManager) Bucket(key string) int {
	h := bm.hasherPool.Get().(hash.Hash64)
	defer bm.hasherPool.Put(h)

	h.Reset()
	h.Write([]byte(key))
	return int(h.Sum64() % uint64(bm.buckets))
}

// KeyStripes is a fixed set of mutexes addressed by key. Two keys in the
// same bucket share a mutex; a key always maps to the same one.
type KeyStripes struct {
	bm    *BucketingManager
	locks []sync.Mutex
}

func NewKeyStripes(n int) *KeyStripes {
	bm := NewBucketingManager(n)
	return &KeyStripes{
		bm:    bm,
		locks: make([]sync.Mutex, bm.Buckets()),
	}
}

// Lock acquires the stripe for key and returns its unlock function.
func (s *KeyStripes) Lock(key string) func() {
	m := &s.locks[s.bm.Bucket(key)]
	m.Lock()
	return m.Unlock
}
