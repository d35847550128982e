package sgv

import "sync"
import "sync/atomic"
import "time"

import "github.com/bnclabs/golog"
import "github.com/openunix/scst/api"

// bucket caches vectors of exactly 2^k pages for one order k.
type bucket struct {
	// 64-bit aligned stats
	hitalloc   int64
	totalalloc int64
	merged     int64

	bhead, btail *Obj
	objcache     *sync.Pool
}

// Pool is a named cache of scatter-gather vectors, bucketed by
// allocation order, with a pool-wide LRU across all buckets.
type Pool struct {
	// 64-bit aligned stats
	bigalloc    int64
	bigpages    int64
	bigmerged   int64
	otheralloc  int64
	otherpages  int64
	othermerged int64

	name      string
	ctype     Clustering
	set       *Poolset
	fns       api.PageAllocFns
	owner     interface{}
	buckets   []bucket
	logprefix string

	ref int64

	// mu protects the free-lists, the LRU, the cached counters and
	// the purge-work state. The registry lock may be taken while
	// holding mu, never the reverse.
	mu               sync.Mutex
	lruhead, lrutail *Obj
	cachedentries    int64
	cachedpages      int64
	inactivepages    int64
	purgework        api.Work
	purgescheduled   bool
	draining         bool

	// active-pools ring links, protected by the registry lock.
	aprev, anext *Pool
	active       bool
}

func (set *Poolset) newpool(
	name string, ctype Clustering, owner interface{}) *Pool {

	pool := &Pool{
		name:      name,
		ctype:     ctype,
		set:       set,
		fns:       set.fns,
		owner:     owner,
		ref:       1,
		logprefix: "sgv [" + set.name + "." + name + "]",
	}
	pool.buckets = make([]bucket, set.buckets)
	for i := range pool.buckets {
		pool.buckets[i].objcache = newobjcache(
			i, set.maxlocalorder, set.maxtransorder, pool.clustered())
	}
	log.Infof("%v created (clustering %v)\n", pool.logprefix, ctype)
	return pool
}

// Name return the pool's name.
func (pool *Pool) Name() string {
	return pool.name
}

func (pool *Pool) clustered() bool {
	return pool.ctype != Noclustering
}

// Setallocator install a page source overriding the system default.
// Cached vectors free through the pool's current source, so install
// before the first allocation.
func (pool *Pool) Setallocator(fns api.PageAllocFns) *Pool {
	pool.fns = fns
	return pool
}

//---- cache operations

// getobj return a vector for `order`: the head of the bucket's
// free-list on a hit (the vector keeps its pages), else a fresh
// empty object after enrolling the new cache slot. Must be called
// with no locks held.
func (pool *Pool) getobj(order int) *Obj {
	pages := int64(1) << uint(order)
	bkt := &pool.buckets[order]

	pool.mu.Lock()
	if obj := bkt.bhead; obj != nil {
		bkt.unlink(obj)
		pool.lruunlink(obj)
		atomic.AddInt64(&pool.inactivepages, -pages)
		pool.mu.Unlock()
		return obj
	}

	if atomic.LoadInt64(&pool.cachedentries) == 0 {
		pool.set.addtoactive(pool)
	}
	atomic.AddInt64(&pool.cachedentries, 1)
	atomic.AddInt64(&pool.cachedpages, pages)
	pool.mu.Unlock()

	obj := bkt.objcache.Get().(*Obj)
	obj.owner = pool
	obj.orderorpages = order
	return obj
}

// putobj timestamp the vector and return it to its bucket free-list
// and the LRU tail, arming the purge worker if idle. For clustered
// pools the free-list stays ordered by sg count, so vectors with
// fewer entries are handed out first.
func (pool *Pool) putobj(obj *Obj) {
	pages := int64(1) << uint(obj.orderorpages)
	bkt := &pool.buckets[obj.orderorpages]

	pool.mu.Lock()
	if pool.clustered() {
		bkt.insertbysgcount(obj)
	} else {
		bkt.pushfront(obj)
	}
	pool.lrupushback(obj)
	obj.timestamp = pool.set.clock.Now()
	atomic.AddInt64(&pool.inactivepages, pages)

	if !pool.purgescheduled && !pool.draining {
		pool.purgescheduled = true
		pool.purgework = pool.set.sched.After(
			pool.set.purgeinterval, pool.purgeworkfn)
	}
	pool.mu.Unlock()
}

// Must be called with pool.mu held.
func (pool *Pool) deccachedentries(pages int64) {
	atomic.AddInt64(&pool.cachedentries, -1)
	atomic.AddInt64(&pool.cachedpages, -pages)
	if atomic.LoadInt64(&pool.cachedentries) == 0 {
		pool.set.delfromactive(pool)
	}
}

// unlinkcached drop a free-listed vector from the cache: off both
// lists, counters down, global pages down. Must be called with
// pool.mu held.
func (pool *Pool) unlinkcached(obj *Obj) {
	pages := int64(1) << uint(obj.orderorpages)

	pool.buckets[obj.orderorpages].unlink(obj)
	pool.lruunlink(obj)
	atomic.AddInt64(&pool.inactivepages, -pages)
	pool.deccachedentries(pages)

	if obj.sgcount != 0 {
		atomic.AddInt64(&pool.set.pagestotal, -pages)
	}
}

// purgeaged unlink and account the LRU head when it is at least
// `after` old. Must be called with pool.mu held; the caller destroys
// the vector outside the lock.
func (pool *Pool) purgeaged(obj *Obj, after time.Duration, now time.Time) bool {
	if now.Sub(obj.timestamp) >= after {
		pool.unlinkcached(obj)
		return true
	}
	return false
}

// dtorobj release the vector's pages through the page source and
// return the object to its bucket allocator. Must be called with no
// locks held.
func (pool *Pool) dtorobj(obj *Obj) {
	if obj.sgcount != 0 {
		pool.fns.Freepages(obj.entries, obj.sgcount, obj.priv)
	}
	pool.freeobj(obj)
}

// freeobj return the object, pageless, to its bucket allocator.
func (pool *Pool) freeobj(obj *Obj) {
	if obj.orderorpages < 0 {
		return // one-shot object, left to the collector
	}
	bkt := &pool.buckets[obj.orderorpages]
	obj.reset()
	bkt.objcache.Put(obj)
}

//---- lifecycle

// Flush evict every cached vector without destroying the pool.
func (pool *Pool) Flush() {
	for i := range pool.buckets {
		bkt := &pool.buckets[i]
		pool.mu.Lock()
		for bkt.bhead != nil {
			obj := bkt.bhead
			pool.unlinkcached(obj)
			pool.mu.Unlock()
			pool.dtorobj(obj)
			pool.mu.Lock()
		}
		pool.mu.Unlock()
	}
}

// Destroy drop a reference to the pool. The last reference cancels
// the purge worker synchronously, flushes the cache and unlinks the
// pool from its Poolset. Callers shall not destroy a pool with
// allocations outstanding.
func (pool *Pool) Destroy() {
	pool.put()
}

func (pool *Pool) get() {
	atomic.AddInt64(&pool.ref, 1)
}

func (pool *Pool) put() {
	if atomic.AddInt64(&pool.ref, -1) == 0 {
		pool.destroy()
	}
}

func (pool *Pool) destroy() {
	// stop the purge worker, waiting out an in-flight run; the
	// worker can re-arm itself, hence the loop.
	for {
		pool.mu.Lock()
		pool.draining = true
		w := pool.purgework
		pool.purgework = nil
		pool.mu.Unlock()
		if w == nil {
			break
		}
		w.Cancelsync()
	}

	pool.Flush()
	pool.set.unregister(pool)
	log.Infof("%v destroyed\n", pool.logprefix)
}

//---- free-list and LRU links

func (bkt *bucket) pushfront(obj *Obj) {
	obj.bprev, obj.bnext = nil, bkt.bhead
	if bkt.bhead != nil {
		bkt.bhead.bprev = obj
	} else {
		bkt.btail = obj
	}
	bkt.bhead = obj
}

func (bkt *bucket) pushback(obj *Obj) {
	obj.bprev, obj.bnext = bkt.btail, nil
	if bkt.btail != nil {
		bkt.btail.bnext = obj
	} else {
		bkt.bhead = obj
	}
	bkt.btail = obj
}

// insertbysgcount keep the free-list ordered by increasing sg count;
// ties stay LIFO.
func (bkt *bucket) insertbysgcount(obj *Obj) {
	at := bkt.bhead
	for at != nil && obj.sgcount > at.sgcount {
		at = at.bnext
	}
	if at == nil {
		bkt.pushback(obj)
		return
	}
	obj.bprev, obj.bnext = at.bprev, at
	if at.bprev != nil {
		at.bprev.bnext = obj
	} else {
		bkt.bhead = obj
	}
	at.bprev = obj
}

func (bkt *bucket) unlink(obj *Obj) {
	if obj.bprev != nil {
		obj.bprev.bnext = obj.bnext
	} else {
		bkt.bhead = obj.bnext
	}
	if obj.bnext != nil {
		obj.bnext.bprev = obj.bprev
	} else {
		bkt.btail = obj.bprev
	}
	obj.bprev, obj.bnext = nil, nil
}

func (pool *Pool) lrupushback(obj *Obj) {
	obj.lprev, obj.lnext = pool.lrutail, nil
	if pool.lrutail != nil {
		pool.lrutail.lnext = obj
	} else {
		pool.lruhead = obj
	}
	pool.lrutail = obj
}

func (pool *Pool) lruunlink(obj *Obj) {
	if obj.lprev != nil {
		obj.lprev.lnext = obj.lnext
	} else {
		pool.lruhead = obj.lnext
	}
	if obj.lnext != nil {
		obj.lnext.lprev = obj.lprev
	} else {
		pool.lrutail = obj.lprev
	}
	obj.lprev, obj.lnext = nil, nil
}
