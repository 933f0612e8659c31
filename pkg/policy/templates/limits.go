package templates

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"mercator-hq/saturn/pkg/event"
	"mercator-hq/saturn/pkg/policy"
)

// maxBucketKeys caps the number of per-key buckets of one rate-limit policy.
const maxBucketKeys = 10000

// tokenBucket refills continuously at rate tokens per second up to capacity.
type tokenBucket struct {
	capacity   float64
	tokens     float64
	rate       float64
	lastRefill time.Time
}

func newTokenBucket(capacity, rate float64, now time.Time) *tokenBucket {
	return &tokenBucket{
		capacity:   capacity,
		tokens:     capacity,
		rate:       rate,
		lastRefill: now,
	}
}

// take consumes one token, or returns how long until one is available.
func (tb *tokenBucket) take(now time.Time) (bool, time.Duration) {
	if elapsed := now.Sub(tb.lastRefill); elapsed > 0 {
		tb.tokens = math.Min(tb.capacity, tb.tokens+elapsed.Seconds()*tb.rate)
		tb.lastRefill = now
	}

	if tb.tokens >= 1 {
		tb.tokens--
		return true, 0
	}

	wait := (1 - tb.tokens) / tb.rate
	return false, time.Duration(math.Ceil(wait * float64(time.Second)))
}

// bucketSet holds the buckets of a rate-limit policy, one per key.
type bucketSet struct {
	capacity float64
	rate     float64
	now      func() time.Time

	mu      sync.Mutex
	buckets map[string]*tokenBucket
}

func (s *bucketSet) take(key string) (bool, time.Duration) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[key]
	if !ok {
		if len(s.buckets) >= maxBucketKeys {
			s.pruneLocked(now)
		}
		b = newTokenBucket(s.capacity, s.rate, now)
		s.buckets[key] = b
	}
	return b.take(now)
}

// pruneLocked drops buckets that have refilled completely.
func (s *bucketSet) pruneLocked(now time.Time) {
	full := time.Duration(s.capacity / s.rate * float64(time.Second))
	for key, b := range s.buckets {
		if now.Sub(b.lastRefill) >= full {
			delete(s.buckets, key)
		}
	}
}

func rateLimit(b *BuildContext) ([]policy.Processor, error) {
	rate := b.Float("rate", 0)
	if b.Err() == nil && rate <= 0 {
		return nil, &ParameterError{Template: "rate-limit", Parameter: "rate", Message: "must be greater than zero"}
	}
	burst := b.Int("burst", int(math.Ceil(rate)))
	if b.Err() == nil && burst < 1 {
		return nil, &ParameterError{Template: "rate-limit", Parameter: "burst", Message: "must be at least 1"}
	}
	keyAttribute := b.String("key_attribute", "")

	buckets := &bucketSet{
		capacity: float64(burst),
		rate:     rate,
		now:      b.Now,
		buckets:  make(map[string]*tokenBucket),
	}

	policyID := b.PolicyID
	next := b.Next
	limit := policy.ProcessorFunc(func(ev *event.Event, done policy.Callback) {
		key := ""
		if keyAttribute != "" {
			if v, ok := ev.Message().Attribute(keyAttribute); ok {
				key = fmt.Sprint(v)
			}
		}

		allowed, retryAfter := buckets.take(key)
		if !allowed {
			done(nil, &RejectedError{
				PolicyID:   policyID,
				Reason:     fmt.Sprintf("more than %g events per second", rate),
				RetryAfter: retryAfter,
				Cause:      ErrRateLimited,
			})
			return
		}
		next.Process(ev, done)
	})
	return []policy.Processor{limit}, nil
}

// concurrencyLimiter is a counting semaphore that never blocks.
type concurrencyLimiter struct {
	limit   int64
	current atomic.Int64
}

func (cl *concurrencyLimiter) acquire() bool {
	if cl.current.Add(1) > cl.limit {
		cl.current.Add(-1)
		return false
	}
	return true
}

func (cl *concurrencyLimiter) release() {
	cl.current.Add(-1)
}

func concurrencyLimit(b *BuildContext) ([]policy.Processor, error) {
	limit := b.Int("max", 0)
	if b.Err() == nil && limit < 1 {
		return nil, &ParameterError{Template: "concurrency-limit", Parameter: "max", Message: "must be at least 1"}
	}

	limiter := &concurrencyLimiter{limit: int64(limit)}
	policyID := b.PolicyID
	next := b.Next
	guard := policy.ProcessorFunc(func(ev *event.Event, done policy.Callback) {
		if !limiter.acquire() {
			done(nil, &RejectedError{
				PolicyID: policyID,
				Reason:   fmt.Sprintf("more than %d concurrent executions", limit),
				Cause:    ErrConcurrencyLimited,
			})
			return
		}
		next.Process(ev, func(result *event.Event, err error) {
			limiter.release()
			done(result, err)
		})
	})
	return []policy.Processor{guard}, nil
}
