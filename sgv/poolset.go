package sgv

import "sync"
import "sync/atomic"
import "time"
import "unsafe"

import "github.com/bnclabs/golog"
import s "github.com/bnclabs/gosettings"
import "github.com/openunix/scst/api"
import "github.com/openunix/scst/lib"

// Poolset is one allocator subsystem: the pools registry, the global
// page accounting with its watermarks, and the round-robin purge
// cursor shared by cross-pool shrinking.
type Poolset struct {
	// 64-bit aligned stats
	pagestotal      int64
	hiwmkreleases   int64
	hiwmkfailed     int64
	othertotalalloc int64

	name          string
	pagesize      int64
	buckets       int
	hiwmk         int64
	lowmk         int64
	purgeinterval time.Duration
	shrinkafter   time.Duration
	maxperpool    int64
	embedbudget   int64
	maxlocalorder int
	maxtransorder int

	fns   api.PageAllocFns
	clock api.Clock
	sched api.Scheduler

	// regmu serialises pool create/destroy and name lookup; lock
	// protects the active ring and the purge cursor. lock may be
	// taken while holding a pool's mu, never a pool's mu while
	// holding lock.
	regmu sync.Mutex
	lock  sync.Mutex

	// writes under regmu and lock both, reads under either.
	pools []*Pool

	activehead, activetail *Pool
	curpurge               *Pool

	logprefix string
}

// NewPoolset create an allocator subsystem. Refer to Defaultsettings
// for the configurable parameters.
func NewPoolset(name string, setts s.Settings) *Poolset {
	setts = Defaultsettings().Mixin(setts)

	set := &Poolset{
		name:          name,
		pagesize:      setts.Int64("pagesize"),
		buckets:       int(setts.Int64("buckets")),
		hiwmk:         setts.Int64("hiwmk"),
		lowmk:         setts.Int64("lowmk"),
		purgeinterval: time.Duration(setts.Int64("purge.interval")) * time.Millisecond,
		shrinkafter:   time.Duration(setts.Int64("shrink.after")) * time.Millisecond,
		maxperpool:    setts.Int64("maxpagesperpool"),
		embedbudget:   setts.Int64("embedded.budget"),
		clock:         api.Systemclock(),
		sched:         api.Timersched(),
		logprefix:     "sgv [" + name + "]",
	}
	if set.pagesize <= 0 || set.pagesize&(set.pagesize-1) != 0 {
		panicerr("pagesize %v shall be a power of two", set.pagesize)
	}
	if set.buckets <= 0 {
		panicerr("buckets %v shall be positive", set.buckets)
	}
	if set.hiwmk == 0 {
		set.hiwmk, set.lowmk = ramwatermarks(set.pagesize)
	} else if set.lowmk == 0 {
		set.lowmk = set.hiwmk / 2
	}
	if set.lowmk >= set.hiwmk {
		panicerr("lowmk %v shall be below hiwmk %v", set.lowmk, set.hiwmk)
	}
	set.evalembedded()
	set.fns = newsyspages(set.pagesize).fns()

	log.Infof("%v started hiwmk:%v lowmk:%v buckets:%v ...\n",
		set.logprefix, set.hiwmk, set.lowmk, set.buckets)
	return set
}

// evalembedded fix the two order thresholds within which a vector
// object can carry its SG list, and its translation table, embedded
// in a single allocation of the configured budget.
func (set *Poolset) evalembedded() {
	var obj Obj
	var ent api.SGEntry
	var tte Transent

	space := set.embedbudget - int64(unsafe.Sizeof(obj))
	if space <= 0 {
		panicerr("embedded.budget %v too small", set.embedbudget)
	}
	persg := int64(unsafe.Sizeof(ent)) + int64(unsafe.Sizeof(tte))
	set.maxlocalorder = lib.Getorder((space/persg)*set.pagesize, set.pagesize) - 1
	set.maxtransorder = lib.Getorder(
		(space/int64(unsafe.Sizeof(tte)))*set.pagesize, set.pagesize) - 1

	log.Verbosef("%v maxlocalorder:%v maxtransorder:%v\n",
		set.logprefix, set.maxlocalorder, set.maxtransorder)
}

// Setclock replace the wall clock, typically for testing aged
// entries.
func (set *Poolset) Setclock(clock api.Clock) *Poolset {
	set.clock = clock
	return set
}

// Setscheduler replace the deferred-work scheduler running purge
// workers.
func (set *Poolset) Setscheduler(sched api.Scheduler) *Poolset {
	set.sched = sched
	return set
}

// Pagesize return the configured page size in bytes.
func (set *Poolset) Pagesize() int64 {
	return set.pagesize
}

//---- pool registry

// Create a pool. With shared true, a pool of the same name and the
// same owner cookie is re-obtained with its reference count bumped;
// a different owner is refused with ErrorBusy. Without shared, a
// name clash is ErrorPoolExists.
func (set *Poolset) Create(
	name string, ctype Clustering,
	shared bool, owner interface{}) (*Pool, error) {

	set.regmu.Lock()
	defer set.regmu.Unlock()

	for _, pool := range set.pools {
		if pool.name != name {
			continue
		}
		if shared {
			if pool.owner != owner {
				log.Errorf(
					"%v shared use of pool %q with different owner\n",
					set.logprefix, name)
				return nil, ErrorBusy
			}
			pool.get()
			return pool, nil
		}
		log.Errorf("%v pool %q already exists\n", set.logprefix, name)
		return nil, ErrorPoolExists
	}

	pool := set.newpool(name, ctype, owner)
	set.lock.Lock()
	set.pools = append(set.pools, pool)
	set.lock.Unlock()
	return pool, nil
}

func (set *Poolset) unregister(pool *Pool) {
	set.regmu.Lock()
	set.lock.Lock()
	for i, p := range set.pools {
		if p == pool {
			copy(set.pools[i:], set.pools[i+1:])
			set.pools = set.pools[:len(set.pools)-1]
			break
		}
	}
	set.lock.Unlock()
	set.regmu.Unlock()
}

// Pools snapshot the live pools.
func (set *Poolset) Pools() []*Pool {
	set.lock.Lock()
	pools := append([]*Pool{}, set.pools...)
	set.lock.Unlock()
	return pools
}

// Close shut the subsystem down. All pools shall have been destroyed
// by their owners.
func (set *Poolset) Close() {
	set.regmu.Lock()
	n := len(set.pools)
	set.regmu.Unlock()
	if n != 0 {
		panicerr("%v closing with %v pools alive", set.logprefix, n)
	}
	log.Infof("%v closed\n", set.logprefix)
}

//---- active ring and purge cursor

// Might be called under pool.mu.
func (set *Poolset) addtoactive(pool *Pool) {
	set.lock.Lock()
	pool.aprev, pool.anext = set.activetail, nil
	if set.activetail != nil {
		set.activetail.anext = pool
	} else {
		set.activehead = pool
	}
	set.activetail = pool
	pool.active = true
	set.lock.Unlock()
}

// Might be called under pool.mu.
func (set *Poolset) delfromactive(pool *Pool) {
	set.lock.Lock()

	next := pool.anext
	if pool.aprev != nil {
		pool.aprev.anext = pool.anext
	} else {
		set.activehead = pool.anext
	}
	if pool.anext != nil {
		pool.anext.aprev = pool.aprev
	} else {
		set.activetail = pool.aprev
	}
	pool.aprev, pool.anext, pool.active = nil, nil, false

	if set.curpurge == pool {
		if next == nil {
			next = set.activehead
		}
		set.curpurge = next // nil once the ring empties
	}

	set.lock.Unlock()
}

//---- watermark accounting

// hiwmkcheck admit a prospective allocation of pagestoalloc pages:
// commit when the total stays at the high watermark or below, else
// shrink the overshoot with a zero age filter and fail when that
// comes up short. Must be called with no locks held.
func (set *Poolset) hiwmkcheck(pagestoalloc int64) error {
	pages := pagestoalloc + atomic.LoadInt64(&set.pagestotal)
	if pages > set.hiwmk {
		atomic.AddInt64(&set.hiwmkreleases, 1)
		if rem := set.shrink(pages-set.hiwmk, 0); rem > 0 {
			atomic.AddInt64(&set.hiwmkfailed, 1)
			log.Warnf(
				"%v %v pages would cross the %v page watermark\n",
				set.logprefix, pagestoalloc, set.hiwmk)
			return ErrorOutofMemory
		}
	}
	atomic.AddInt64(&set.pagestotal, pagestoalloc)
	return nil
}

func (set *Poolset) hiwmkuncheck(pages int64) {
	atomic.AddInt64(&set.pagestotal, -pages)
}

//---- cross-pool shrinking

// shrinkpool free whole vectors aged at least `after` from one pool
// until nr pages are freed, stopping at Maxpagesperpool pages, a
// young LRU head or the low watermark. Return what is left of nr,
// negative when the last vector freed more than was left. Must be
// called with no locks held.
func (set *Poolset) shrinkpool(
	pool *Pool, nr int64, after time.Duration, now time.Time) int64 {

	freed := int64(0)

	pool.mu.Lock()
	for pool.lruhead != nil && atomic.LoadInt64(&set.pagestotal) > set.lowmk {
		obj := pool.lruhead
		if !pool.purgeaged(obj, after, now) {
			break
		}
		pages := int64(1) << uint(obj.orderorpages)
		freed += pages
		nr -= pages

		pool.mu.Unlock()
		pool.dtorobj(obj)
		pool.mu.Lock()

		if nr <= 0 || freed >= set.maxperpool {
			break
		}
	}
	pool.mu.Unlock()

	if freed > 0 {
		log.Debugf("%v %v pages shrunk from %q\n",
			set.logprefix, freed, pool.name)
	}
	return nr
}

// shrink free whole vectors aged at least `after` until nr pages are
// freed across the active pools, walking round-robin from the persistent purge
// cursor. Stops at the low watermark or after a full circle without
// progress. Return what is left of nr. Must be called with no locks
// held.
func (set *Poolset) shrink(nr int64, after time.Duration) int64 {
	now := set.clock.Now()
	prevnr, circle := nr, false

	for nr > 0 {
		set.lock.Lock()

		pool := set.curpurge
		if pool == nil {
			if set.activehead == nil {
				set.lock.Unlock()
				return nr
			}
			pool = set.activehead
		}
		pool.get()

		next := pool.anext
		if next == nil { // wrapped around the ring
			if circle && prevnr == nr {
				set.lock.Unlock()
				pool.put()
				return nr
			}
			circle, prevnr = true, nr
			next = set.activehead
		}
		set.curpurge = next

		set.lock.Unlock()

		nr = set.shrinkpool(pool, nr, after, now)
		pool.put()
	}
	return nr
}

// Reclaim is the memory-pressure hook. A zero nr estimates the
// reclaimable pages without freeing anything; a positive nr frees
// sufficiently aged vectors until nr pages are freed and returns the
// amount freed. Vectors are freed whole, so the amount can exceed nr.
func (set *Poolset) Reclaim(nr int64) int64 {
	if nr > 0 {
		return nr - set.shrink(nr, set.shrinkafter)
	}

	inactive := int64(0)
	set.lock.Lock()
	for pool := set.activehead; pool != nil; pool = pool.anext {
		inactive += atomic.LoadInt64(&pool.inactivepages)
	}
	set.lock.Unlock()

	if n := inactive - set.lowmk; n > 0 {
		return n
	}
	return 0
}

//---- plain SG vectors

// Allocsg allocate a plain, uncached and unclustered SG vector of at
// least size bytes, watermark accounted. Release it with Freesg.
func (set *Poolset) Allocsg(size int64) ([]api.SGEntry, int, error) {
	if size <= 0 {
		return nil, 0, ErrorInvalidArg
	}
	pages := lib.Npages(size, set.pagesize)

	atomic.AddInt64(&set.othertotalalloc, 1)
	if err := set.hiwmkcheck(pages); err != nil {
		return nil, 0, err
	}

	sg := make([]api.SGEntry, pages)
	count := allocsgentries(
		sg, int(pages), Noclustering, nil, set.fns, nil, set.pagesize)
	if count <= 0 {
		set.hiwmkuncheck(pages)
		log.Errorf("%v unable to allocate sg for %v pages\n",
			set.logprefix, pages)
		return nil, 0, ErrorOutofMemory
	}
	return sg, count, nil
}

// Freesg release a vector obtained from Allocsg. Unclustered, so
// count is also the page count.
func (set *Poolset) Freesg(sg []api.SGEntry, count int) {
	set.hiwmkuncheck(int64(count))
	set.fns.Freepages(sg, count, nil)
}
