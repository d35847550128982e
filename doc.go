// Package scst implement the memory subsystem of a SCSI target
// stack: a caching, clustering scatter-gather vector allocator and
// the tools and libraries around it.
//
// api:
//
// Interface specification between the allocator core and its
// collaborators: page sources, memory-limit cookies, clock and
// deferred-work scheduling.
//
// lib:
//
// Convenience functions that can be used by other packages. Package
// shall not import packages other than golang's standard packages.
//
// sgv:
//
// Scatter-gather vector pools: per-pool caches of SG vectors bucketed
// by allocation order, page clustering, delayed purging, global
// watermark accounting and cross-pool shrinking.
//
// metrics:
//
// Read-only prometheus collector over sgv statistics.
package scst
