package sgv

import "sync/atomic"

import "github.com/bnclabs/golog"
import "github.com/openunix/scst/api"
import "github.com/openunix/scst/lib"

// Allocflag modify a single Alloc call.
type Allocflag int

const (
	// Nocached force the one-shot regime: the vector is never
	// admitted to a cache.
	Nocached Allocflag = 1 << iota
	// Noalloconmiss return empty-handed on a cache miss instead of
	// going to the page source.
	Noalloconmiss
	// Returnobjonfail hand the empty object back on a failed or
	// skipped page allocation, so the caller can retry with it
	// later, or supply it back to Alloc.
	Returnobjonfail
)

// Alloc return an SG vector backed by pages covering at least size
// bytes, along with the number of SG entries reported and the object
// handle to release it with. The last reported entry is trimmed so
// the vector covers size exactly.
//
// A supplied object, previously handed back empty under
// Returnobjonfail, is re-filled under its original order; supplied
// shall be nil otherwise. A nil SG list with a nil error means no
// pages were allocated. Under Noalloconmiss a cached-regime miss
// reports count 0 and no object, unless Returnobjonfail is also set,
// in which case the empty object comes back with its bucket's page
// count; in the one-shot regime Noalloconmiss reports the page count
// size needs and no object. A page source failure under
// Returnobjonfail in the cached regime also returns the empty object
// with its bucket's page count.
func (pool *Pool) Alloc(
	size int64, flags Allocflag, supplied *Obj,
	mlim api.Memlimit, priv interface{}) ([]api.SGEntry, int, *Obj, error) {

	set := pool.set
	if size <= 0 {
		return nil, 0, nil, ErrorInvalidArg
	} else if supplied != nil && flags&Nocached != 0 {
		return nil, 0, nil, ErrorInvalidArg
	}

	pages := lib.Npages(size, set.pagesize)
	order := lib.Getorder(size, set.pagesize)
	nocached := flags&Nocached != 0

	var obj *Obj
	var pagestoalloc int64
	cached := false

	switch {
	case supplied != nil:
		obj = supplied
		pagestoalloc = int64(1) << uint(order)
		cached = true
		if obj.owner != pool || obj.orderorpages != order {
			panicerr("%v supplied obj of order %v for order %v",
				pool.logprefix, obj.orderorpages, order)
		} else if obj.sgcount != 0 {
			panicerr("%v supplied obj is not empty", pool.logprefix)
		}
		if !memlimadd(mlim, pagestoalloc) {
			pool.failfree(obj, pagestoalloc)
			return nil, 0, nil, ErrorOutofMemory
		}
		if err := set.hiwmkcheck(pagestoalloc); err != nil {
			memlimsub(mlim, pagestoalloc)
			pool.failfree(obj, pagestoalloc)
			return nil, 0, nil, err
		}

	case order < set.buckets && !nocached:
		pagestoalloc = int64(1) << uint(order)
		cached = true
		if !memlimadd(mlim, pagestoalloc) {
			return nil, 0, nil, ErrorOutofMemory
		}
		obj = pool.getobj(order)

		if obj.sgcount != 0 { // cache hit, the vector kept its pages
			atomic.AddInt64(&pool.buckets[order].hitalloc, 1)
			return pool.success(obj, order, size, pages, cached, nocached)
		}

		if flags&Noalloconmiss != 0 && flags&Returnobjonfail == 0 {
			pool.failfree(obj, pagestoalloc)
			memlimsub(mlim, pagestoalloc)
			return nil, 0, nil, nil // a miss is not an error
		}

		obj.setuparrays(int(pagestoalloc), order)

		if flags&Noalloconmiss != 0 {
			obj.priv = priv
			memlimsub(mlim, pagestoalloc)
			return nil, int(pagestoalloc), obj, nil
		}

		obj.priv = priv
		if err := set.hiwmkcheck(pagestoalloc); err != nil {
			pool.failfree(obj, pagestoalloc)
			memlimsub(mlim, pagestoalloc)
			return nil, 0, nil, err
		}

	default: // beyond the largest bucket, or Nocached
		pagestoalloc = pages
		if !memlimadd(mlim, pagestoalloc) {
			return nil, 0, nil, ErrorOutofMemory
		}
		if flags&Noalloconmiss != 0 {
			memlimsub(mlim, pagestoalloc)
			return nil, int(pagestoalloc), nil, nil
		}
		obj = &Obj{
			owner:        pool,
			orderorpages: -int(pagestoalloc),
			priv:         priv,
		}
		obj.entriesdata = make([]api.SGEntry, pagestoalloc)
		obj.entries = obj.entriesdata
		if err := set.hiwmkcheck(pagestoalloc); err != nil {
			memlimsub(mlim, pagestoalloc)
			return nil, 0, nil, err
		}
	}

	obj.sgcount = allocsgentries(
		obj.entries, int(pagestoalloc), pool.ctype, obj.transtbl,
		pool.fns, priv, set.pagesize)
	if obj.sgcount <= 0 {
		obj.sgcount = 0
		set.hiwmkuncheck(pagestoalloc)
		memlimsub(mlim, pagestoalloc)
		if flags&Returnobjonfail != 0 && cached {
			return nil, int(pagestoalloc), obj, nil
		}
		if cached {
			pool.failfree(obj, pagestoalloc)
		}
		log.Errorf("%v page source failed for %v pages\n",
			pool.logprefix, pagestoalloc)
		return nil, 0, nil, ErrorOutofMemory
	}

	if cached {
		atomic.AddInt64(&pool.buckets[order].merged,
			pagestoalloc-int64(obj.sgcount))
	} else if nocached {
		atomic.AddInt64(&pool.otherpages, pagestoalloc)
		atomic.AddInt64(&pool.othermerged, pagestoalloc-int64(obj.sgcount))
	} else {
		atomic.AddInt64(&pool.bigpages, pagestoalloc)
		atomic.AddInt64(&pool.bigmerged, pagestoalloc-int64(obj.sgcount))
	}
	return pool.success(obj, order, size, pages, cached, nocached)
}

// success report the vector to the caller: pick the entry count (for
// clustered vectors the count covering the requested pages, which can
// be fewer than the bucket holds), remember the last entry's length
// and trim it to the requested size.
func (pool *Pool) success(
	obj *Obj, order int, size, pages int64,
	cached, nocached bool) ([]api.SGEntry, int, *Obj, error) {

	set := pool.set
	var count int

	if cached {
		atomic.AddInt64(&pool.buckets[order].totalalloc, 1)
		if pool.clustered() {
			count = obj.transtbl[pages-1].Sgnum
		} else {
			count = int(pages)
		}
		sgl := count - 1
		obj.origsg = sgl
		obj.origlen = obj.entries[sgl].Length
		if pool.clustered() {
			obj.entries[sgl].Length =
				int((pages - int64(obj.transtbl[sgl].Pgcount)) * set.pagesize)
		}
	} else {
		count = obj.sgcount
		if nocached {
			atomic.AddInt64(&pool.otheralloc, 1)
		} else {
			atomic.AddInt64(&pool.bigalloc, 1)
		}
	}

	if residue := lib.Residue(size, set.pagesize); residue > 0 {
		obj.entries[count-1].Length -= int(residue)
	}
	return obj.entries, count, obj, nil
}

// Free release a vector obtained from Alloc. A cached vector has its
// trimmed tail restored and returns to its bucket; a one-shot vector
// releases its pages through the page source. The caller's quota is
// credited either way.
func (pool *Pool) Free(obj *Obj, mlim api.Memlimit) {
	if obj.owner != pool {
		panicerr("%v freeing foreign obj", pool.logprefix)
	}

	var pages int64
	if obj.orderorpages >= 0 {
		if len(obj.entries) > 0 {
			obj.entries[obj.origsg].Length = obj.origlen
		}
		if obj.sgcount != 0 {
			pages = int64(1) << uint(obj.orderorpages)
		}
		pool.putobj(obj)
	} else {
		pool.fns.Freepages(obj.entries, obj.sgcount, obj.priv)
		if obj.sgcount != 0 {
			pages = int64(-obj.orderorpages)
		}
		pool.set.hiwmkuncheck(pages)
	}
	memlimsub(mlim, pages)
}

// failfree release a pageless object holding a cache slot.
func (pool *Pool) failfree(obj *Obj, pages int64) {
	pool.mu.Lock()
	pool.deccachedentries(pages)
	pool.mu.Unlock()
	pool.freeobj(obj)
}

func memlimadd(mlim api.Memlimit, pages int64) bool {
	if mlim == nil {
		return true
	} else if !mlim.Add(pages) {
		log.Warnf("sgv: %v pages exceed the caller quota\n", pages)
		return false
	}
	return true
}

func memlimsub(mlim api.Memlimit, pages int64) {
	if mlim != nil {
		mlim.Sub(pages)
	}
}
