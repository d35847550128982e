package sgv

import "sync/atomic"

import "github.com/bnclabs/golog"
import humanize "github.com/dustin/go-humanize"

// Stats return pool statistics: per-bucket hit/total/merged counters
// and the cached-entry gauges.
func (pool *Pool) Stats() map[string]interface{} {
	hits := make([]int64, len(pool.buckets))
	totals := make([]int64, len(pool.buckets))
	merged := make([]int64, len(pool.buckets))
	for i := range pool.buckets {
		hits[i] = atomic.LoadInt64(&pool.buckets[i].hitalloc)
		totals[i] = atomic.LoadInt64(&pool.buckets[i].totalalloc)
		merged[i] = atomic.LoadInt64(&pool.buckets[i].merged)
	}

	stats := map[string]interface{}{
		"hitalloc":      hits,
		"totalalloc":    totals,
		"merged":        merged,
		"cachedentries": atomic.LoadInt64(&pool.cachedentries),
		"cachedpages":   atomic.LoadInt64(&pool.cachedpages),
		"inactivepages": atomic.LoadInt64(&pool.inactivepages),
		"bigalloc":      atomic.LoadInt64(&pool.bigalloc),
		"bigpages":      atomic.LoadInt64(&pool.bigpages),
		"bigmerged":     atomic.LoadInt64(&pool.bigmerged),
		"otheralloc":    atomic.LoadInt64(&pool.otheralloc),
		"otherpages":    atomic.LoadInt64(&pool.otherpages),
		"othermerged":   atomic.LoadInt64(&pool.othermerged),
	}
	return stats
}

// Log pool statistics, one line for the pool and one per bucket that
// saw allocations: hits, totals and the share of SG entries saved by
// clustering.
func (pool *Pool) Log() {
	var hit, total, merged, allocated int64
	for i := range pool.buckets {
		h := atomic.LoadInt64(&pool.buckets[i].hitalloc)
		t := atomic.LoadInt64(&pool.buckets[i].totalalloc)
		hit, total = hit+h, total+t
		allocated += (t - h) * (int64(1) << uint(i))
		merged += atomic.LoadInt64(&pool.buckets[i].merged)
	}
	mergedpct := int64(0)
	if allocated != 0 {
		mergedpct = merged * 100 / allocated
	}
	fmsg := "%v hit:%v total:%v merged:%v%% cached %v/%v/%v\n"
	log.Infof(fmsg, pool.logprefix, hit, total, mergedpct,
		humanize.Comma(atomic.LoadInt64(&pool.cachedpages)),
		humanize.Comma(atomic.LoadInt64(&pool.inactivepages)),
		humanize.Comma(atomic.LoadInt64(&pool.cachedentries)))

	for i := range pool.buckets {
		h := atomic.LoadInt64(&pool.buckets[i].hitalloc)
		t := atomic.LoadInt64(&pool.buckets[i].totalalloc)
		if t == 0 {
			continue
		}
		m := atomic.LoadInt64(&pool.buckets[i].merged)
		allocated := (t - h) * (int64(1) << uint(i))
		mergedpct := int64(0)
		if allocated != 0 {
			mergedpct = m * 100 / allocated
		}
		log.Infof("%v  %vpg hit:%v total:%v merged:%v%%\n",
			pool.logprefix, int64(1)<<uint(i), h, t, mergedpct)
	}
}

// Validate check the pool's cache against its counters, panic on a
// violation. Meant for tests and debugging.
func (pool *Pool) Validate() {
	pool.mu.Lock()
	defer pool.mu.Unlock()

	entries, pages := int64(0), int64(0)
	for i := range pool.buckets {
		for obj := pool.buckets[i].bhead; obj != nil; obj = obj.bnext {
			if obj.orderorpages != i {
				panicerr("%v obj of order %v in bucket %v",
					pool.logprefix, obj.orderorpages, i)
			}
			entries++
			pages += int64(1) << uint(i)
		}
	}
	if x := atomic.LoadInt64(&pool.inactivepages); x != pages {
		panicerr("%v inactivepages %v, free-listed %v",
			pool.logprefix, x, pages)
	}

	lrucount := int64(0)
	for obj := pool.lruhead; obj != nil; obj = obj.lnext {
		lrucount++
	}
	if lrucount != entries {
		panicerr("%v lru holds %v, free-lists hold %v",
			pool.logprefix, lrucount, entries)
	}

	cached := atomic.LoadInt64(&pool.cachedentries)
	if cached < entries {
		panicerr("%v cachedentries %v below free-listed %v",
			pool.logprefix, cached, entries)
	}

	pool.set.lock.Lock()
	active := pool.active
	pool.set.lock.Unlock()
	if (cached == 0) == active {
		panicerr("%v cachedentries %v with active %v",
			pool.logprefix, cached, active)
	}
}

// Stats return subsystem statistics: the global page accounting,
// watermark crossings and the inactive rollup across active pools.
func (set *Poolset) Stats() map[string]interface{} {
	inactive, nactive := int64(0), int64(0)
	set.lock.Lock()
	for pool := set.activehead; pool != nil; pool = pool.anext {
		inactive += atomic.LoadInt64(&pool.inactivepages)
		nactive++
	}
	npools := int64(len(set.pools))
	set.lock.Unlock()

	return map[string]interface{}{
		"pagestotal":      atomic.LoadInt64(&set.pagestotal),
		"hiwmk":           set.hiwmk,
		"lowmk":           set.lowmk,
		"hiwmkreleases":   atomic.LoadInt64(&set.hiwmkreleases),
		"hiwmkfailed":     atomic.LoadInt64(&set.hiwmkfailed),
		"othertotalalloc": atomic.LoadInt64(&set.othertotalalloc),
		"inactivepages":   inactive,
		"activepools":     nactive,
		"pools":           npools,
	}
}

// Log subsystem statistics followed by every pool's.
func (set *Poolset) Log() {
	stats := set.Stats()
	total := stats["pagestotal"].(int64)
	inactive := stats["inactivepages"].(int64)
	fmsg := "%v pages inactive/active %v/%v, watermarks %v/%v, " +
		"releases %v (failed %v)\n"
	log.Infof(fmsg, set.logprefix,
		humanize.Comma(inactive), humanize.Comma(total-inactive),
		set.hiwmk, set.lowmk,
		stats["hiwmkreleases"], stats["hiwmkfailed"])

	for _, pool := range set.Pools() {
		pool.Log()
	}
}

// Validate every pool and the active ring, panic on a violation.
func (set *Poolset) Validate() {
	for _, pool := range set.Pools() {
		pool.Validate()
	}

	set.lock.Lock()
	defer set.lock.Unlock()
	seen := false
	for pool := set.activehead; pool != nil; pool = pool.anext {
		if !pool.active {
			panicerr("%v inactive pool %q on the ring",
				set.logprefix, pool.name)
		}
		if set.curpurge == pool {
			seen = true
		}
	}
	if set.curpurge != nil && !seen {
		panicerr("%v purge cursor points off the ring", set.logprefix)
	}
}
