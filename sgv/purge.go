package sgv

import "github.com/bnclabs/golog"

// purgeworkfn is the pool's delayed purge worker. It reclaims LRU
// entries older than the purge interval; when it stops at a young
// entry it re-arms itself for a full interval so it does not spin,
// otherwise the next putobj re-arms it.
func (pool *Pool) purgeworkfn() {
	now := pool.set.clock.Now()

	pool.mu.Lock()
	pool.purgescheduled = false

	for pool.lruhead != nil {
		obj := pool.lruhead
		if pool.purgeaged(obj, pool.set.purgeinterval, now) {
			pool.mu.Unlock()
			pool.dtorobj(obj)
			pool.mu.Lock()
			continue
		}
		if !pool.draining {
			pool.purgescheduled = true
			pool.purgework = pool.set.sched.After(
				pool.set.purgeinterval, pool.purgeworkfn)
			log.Debugf("%v purge rescheduled\n", pool.logprefix)
		}
		break
	}
	pool.mu.Unlock()
}
