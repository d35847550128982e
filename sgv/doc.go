// Package sgv supplies cached scatter-gather vectors for SCSI-style
// I/O commands. Vectors are cached per pool in buckets keyed by
// allocation order (power-of-two page count), so a command completing
// and a command starting with the same transfer size exchange a ready
// made SG list instead of going to the page source.
//
// A Poolset is one allocator subsystem: it owns the global page
// accounting with its high and low watermarks, the registry of pools
// and the round-robin purge cursor used when shrinking across pools.
// Pools are created against a Poolset with one of three clustering
// modes; clustering merges physically adjacent pages into fewer,
// longer SG entries and maintains a per-page translation table so
// callers can map byte offsets without walking variable-length
// entries.
//
// Cached vectors age out: every pool arms a delayed purge worker when
// its cache becomes non-empty, and the worker reclaims entries older
// than the purge interval. Crossing the high watermark triggers a
// synchronous shrink sweep across pools; external memory pressure can
// drive the same sweep through Reclaim.
//
// Vectors larger than the largest bucket, or requested with the
// Nocached flag, bypass the cache entirely and only take part in the
// global accounting.
package sgv
