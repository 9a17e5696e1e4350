package bucketing

import (
	"hash"
	"sync"

	"github.com/spaolacci/murmur3"

	"kyc-service/internal/config"
)

// BucketingManager maps user IDs onto a fixed number of partition buckets.
// The users table is partitioned by (user_bucket, user_id), so every lookup
// needs the same deterministic bucket the row was written with.
type BucketingManager struct {
	userBuckets int
	hasherPool  sync.Pool
}

func NewBucketingManager(cfg *config.Config) *BucketingManager {
	bm := &BucketingManager{
		userBuckets: cfg.Bucketing.UserBuckets,
	}

	// Pool of hash functions to avoid allocation overhead
	bm.hasherPool = sync.Pool{
		New: func() interface{} {
			return murmur3.New64()
		},
	}

	return bm
}

// GetUserBucket returns the consistent bucket for a user (0 to userBuckets-1)
func (bm *BucketingManager) GetUserBucket(userID string) int {
	return int(bm.getHash(userID) % uint64(bm.userBuckets))
}

// GetUserBuckets returns the configured bucket count
func (bm *BucketingManager) GetUserBuckets() int {
	return bm.userBuckets
}

func (bm *BucketingManager) getHash(key string) uint64 {
	hasher := bm.hasherPool.Get().(hash.Hash64)
	defer bm.hasherPool.Put(hasher)

	hasher.Reset()
	hasher.Write([]byte(key))
	return hasher.Sum64()
}
