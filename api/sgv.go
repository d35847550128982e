package api

// Page is a single backing page handed out by a page source. PFN is
// the page frame number; clustering uses it to detect physically
// adjacent pages.
type Page struct {
	PFN  uint64
	Data []byte
}

// SGEntry is one scatter-gather entry, covering a run of one or more
// physically consecutive pages starting at Page.
type SGEntry struct {
	Page   *Page
	Offset int
	Length int
}

// Allocpagefn place one page at the given SG entry and return it.
// Return nil when the source is exhausted.
type Allocpagefn func(sg *SGEntry, priv interface{}) *Page

// Freepagesfn release count SG entries. An entry may cover several
// contiguous pages; implementations shall free each entry as a run
// of single pages, since the order an entry was allocated with is
// not preserved across clustering.
type Freepagesfn func(sg []SGEntry, count int, priv interface{})

// PageAllocFns is the pluggable page source for a pool: a stateless
// pair of operations. Per-call state travels through the opaque priv
// cookie supplied by the caller.
type PageAllocFns struct {
	Allocpage Allocpagefn
	Freepages Freepagesfn
}
