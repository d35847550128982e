// Package api define types and interfaces between the scatter-gather
// vector allocator and its collaborators: page sources, per-caller
// memory limits, the clock and the deferred-work scheduler.
package api
