package sgv

import "sync"

import "github.com/openunix/scst/api"
import "github.com/openunix/scst/lib"

// syspages is the default page source backing pools. Pages are
// carved out of the Go heap; consecutive allocations receive
// consecutive frame numbers, so runs allocated back to back cluster
// into single SG entries.
type syspages struct {
	pagesize int64

	mu      sync.Mutex
	nextpfn uint64
	live    map[uint64]*api.Page
}

func newsyspages(pagesize int64) *syspages {
	return &syspages{
		pagesize: pagesize,
		nextpfn:  1,
		live:     make(map[uint64]*api.Page),
	}
}

func (src *syspages) fns() api.PageAllocFns {
	return api.PageAllocFns{
		Allocpage: src.allocpage,
		Freepages: src.freepages,
	}
}

func (src *syspages) allocpage(sg *api.SGEntry, priv interface{}) *api.Page {
	src.mu.Lock()
	page := &api.Page{PFN: src.nextpfn, Data: make([]byte, src.pagesize)}
	src.nextpfn++
	src.live[page.PFN] = page
	src.mu.Unlock()

	sg.Page, sg.Offset, sg.Length = page, 0, int(src.pagesize)
	return page
}

// freepages release count entries, each entry as a run of single
// pages starting at its first frame.
func (src *syspages) freepages(sg []api.SGEntry, count int, priv interface{}) {
	src.mu.Lock()
	for i := 0; i < count; i++ {
		pages := lib.Npages(int64(sg[i].Length), src.pagesize)
		for j := int64(0); j < pages; j++ {
			delete(src.live, sg[i].Page.PFN+uint64(j))
		}
	}
	src.mu.Unlock()
}
