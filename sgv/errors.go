package sgv

import "errors"

// ErrorOutofMemory page source failed, or the watermark or quota
// rejected the allocation after a shrink attempt.
var ErrorOutofMemory = errors.New("sgv.outofmemory")

// ErrorInvalidArg zero size or an incompatible flag combination.
var ErrorInvalidArg = errors.New("sgv.invalidarg")

// ErrorBusy attempt to share a pool whose name is claimed by an
// incompatible owner.
var ErrorBusy = errors.New("sgv.busy")

// ErrorPoolExists attempt to create an unshared pool under a name
// that is already taken.
var ErrorPoolExists = errors.New("sgv.poolexists")
