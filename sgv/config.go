package sgv

import "time"

import s "github.com/bnclabs/gosettings"
import "github.com/cloudfoundry/gosigar"

// Poolelements default number of cached orders in a pool; bucket k
// holds vectors of exactly 2^k pages, so the largest cacheable
// allocation is 2^(Poolelements-1) pages.
const Poolelements = 11

// Purgeinterval default delay between a vector entering the cache and
// the pool's purge worker running; entries older than the interval
// are reclaimed.
const Purgeinterval = 60 * time.Second

// Shrinkafter default age filter applied when reclaiming under
// external memory pressure.
const Shrinkafter = 1 * time.Second

// Maxpagesperpool pages freed from a single pool per shrinking
// iteration before the cursor moves to the next pool.
const Maxpagesperpool = 50

// Defaultsettings for a Poolset.
//
// "buckets" (int64, default: Poolelements)
//		Number of cached orders per pool. Bucket k caches vectors
//		of 2^k pages.
//
// "pagesize" (int64, default: 4096)
//		Size of one page, shall be a power of two.
//
// "hiwmk" (int64, default: 0)
//		High watermark in pages; allocations pushing the total
//		above it trigger a synchronous shrink. 0 derives the
//		watermark from total system memory.
//
// "lowmk" (int64, default: 0)
//		Low watermark in pages; shrinking stops once the total
//		drops to it. 0 defaults to half of "hiwmk".
//
// "purge.interval" (int64, default: 60000)
//		Purge worker period in milliseconds.
//
// "shrink.after" (int64, default: 1000)
//		Age filter for memory-pressure reclaim, in milliseconds.
//
// "maxpagesperpool" (int64, default: Maxpagesperpool)
//		Pages freed from one pool per shrinking iteration.
//
// "embedded.budget" (int64, default: 4096)
//		Allocation size, in bytes, within which a vector object
//		and its embedded SG list (and translation table) shall
//		fit; decides the embedded-storage order thresholds.
func Defaultsettings() s.Settings {
	return s.Settings{
		"buckets":         int64(Poolelements),
		"pagesize":        int64(4096),
		"hiwmk":           int64(0),
		"lowmk":           int64(0),
		"purge.interval":  int64(Purgeinterval / time.Millisecond),
		"shrink.after":    int64(Shrinkafter / time.Millisecond),
		"maxpagesperpool": int64(Maxpagesperpool),
		"embedded.budget": int64(4096),
	}
}

// watermarks from total system memory, for when the application does
// not supply them: a quarter of RAM gates admission and shrinking
// aims at half of that.
func ramwatermarks(pagesize int64) (hiwmk, lowmk int64) {
	mem := sigar.Mem{}
	mem.Get()
	hiwmk = int64(mem.Total) / 4 / pagesize
	lowmk = hiwmk / 2
	return
}
