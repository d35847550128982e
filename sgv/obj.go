package sgv

import "sync"
import "time"

import "github.com/openunix/scst/api"

// Transent is one slot of a vector's translation table. Slot i
// carries Sgnum, the 1-based index of the SG entry containing page i;
// for i naming an SG entry, the slot also carries Pgcount, the index
// of that entry's first page within the logical page sequence.
type Transent struct {
	Sgnum   int
	Pgcount int
}

// Obj is one cached scatter-gather vector. It lives in exactly one
// of three states: lent out to a caller, free-listed in its bucket
// and linked on the pool's LRU, or destroyed.
type Obj struct {
	owner *Pool

	// a non-negative value is the bucket order of a cached vector;
	// a negative value is the page count, negated, of a one-shot
	// vector that is never cached.
	orderorpages int

	sgcount   int
	entries   []api.SGEntry
	transtbl  []Transent
	timestamp time.Time
	priv      interface{}

	// index and original length of the last reported SG entry, so
	// the per-call tail trim can be reverted on release.
	origsg  int
	origlen int

	// backing storage carried by the object across recycling, for
	// orders within the embedded thresholds.
	entriesdata []api.SGEntry
	transdata   []Transent

	// intrusive links: bucket free-list and pool-wide LRU. The
	// object must unlink from either list in O(1).
	bprev, bnext *Obj
	lprev, lnext *Obj
}

// Priv return the opaque cookie the vector's pages were allocated
// with.
func (obj *Obj) Priv() interface{} {
	return obj.priv
}

// Sgcount return the number of SG entries after clustering.
func (obj *Obj) Sgcount() int {
	return obj.sgcount
}

// Entries return the vector's SG list.
func (obj *Obj) Entries() []api.SGEntry {
	return obj.entries
}

// setuparrays point the object's SG list, and translation table for
// clustered pools, at the embedded storage when the order allows,
// else at fresh heap slices.
func (obj *Obj) setuparrays(pages, order int) {
	pool, set := obj.owner, obj.owner.set

	if order <= set.maxlocalorder {
		obj.entries = obj.entriesdata[:pages]
		for i := range obj.entries {
			obj.entries[i] = api.SGEntry{}
		}
		if pool.clustered() {
			// every slot read later is rewritten while clustering,
			// no need to clear
			obj.transtbl = obj.transdata[:pages]
		}
		return
	}

	obj.entries = make([]api.SGEntry, pages)
	if pool.clustered() {
		if order <= set.maxtransorder {
			obj.transtbl = obj.transdata[:pages]
		} else {
			obj.transtbl = make([]Transent, pages)
		}
	}
}

func (obj *Obj) reset() {
	obj.owner = nil
	obj.sgcount = 0
	obj.entries, obj.transtbl = nil, nil
	obj.priv = nil
	obj.origsg, obj.origlen = 0, 0
	obj.timestamp = time.Time{}
	obj.bprev, obj.bnext = nil, nil
	obj.lprev, obj.lnext = nil, nil
}

// newobjcache build the object allocator for bucket `order` of a
// pool. Objects for orders within the embedded thresholds carry
// their SG list and translation table storage with them across
// recycling, so a cache miss costs a single allocation.
func newobjcache(order, maxlocal, maxtrans int, clustered bool) *sync.Pool {
	pages := 1 << uint(order)
	return &sync.Pool{
		New: func() interface{} {
			obj := &Obj{}
			if order <= maxlocal {
				obj.entriesdata = make([]api.SGEntry, pages)
				if clustered {
					obj.transdata = make([]Transent, pages)
				}
			} else if order <= maxtrans && clustered {
				obj.transdata = make([]Transent, pages)
			}
			return obj
		},
	}
}
