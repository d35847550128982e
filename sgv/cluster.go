package sgv

import "github.com/openunix/scst/api"

// Clustering mode of a pool.
type Clustering int

const (
	// Noclustering every page becomes its own SG entry.
	Noclustering Clustering = iota
	// Tailclustering a new page extends the previous entry when it
	// continues that entry's last frame.
	Tailclustering
	// Fullclustering a new page merges with any prior entry it is
	// adjacent to, before or after.
	Fullclustering
)

func (ctype Clustering) String() string {
	switch ctype {
	case Noclustering:
		return "none"
	case Tailclustering:
		return "tail"
	case Fullclustering:
		return "full"
	}
	return "unknown"
}

// checkfullclustering try to merge the page just placed at sg[cur]
// with any prior entry: a tail merge when the page continues a prior
// entry, a head merge when it precedes one. The most recent merge
// index is checked first as a hint before the backwards scan. Return
// the index merged into, -1 for no merge.
func checkfullclustering(sg []api.SGEntry, cur, hint int, pagesize int64) int {
	pfncur := sg[cur].Page.PFN
	lencur := sg[cur].Length
	pfncurnext := pfncur + uint64(int64(lencur)/pagesize)
	fullpagecur := int64(lencur)%pagesize == 0

	if i := hint; i >= 0 {
		pfn := sg[i].Page.PFN
		pfnnext := pfn + uint64(int64(sg[i].Length)/pagesize)
		fullpage := int64(sg[i].Length)%pagesize == 0

		if pfn == pfncurnext && fullpagecur {
			return headmerge(sg, cur, i)
		}
		if pfnnext == pfncur && fullpage {
			return tailmerge(sg, cur, i)
		}
	}

	// TODO: implement a more intelligent search
	for i := cur - 1; i >= 0; i-- {
		pfn := sg[i].Page.PFN
		pfnnext := pfn + uint64(int64(sg[i].Length)/pagesize)
		fullpage := int64(sg[i].Length)%pagesize == 0

		if pfn == pfncurnext && fullpagecur {
			return headmerge(sg, cur, i)
		}
		if pfnnext == pfncur && fullpage {
			return tailmerge(sg, cur, i)
		}
	}
	return -1
}

// checktailclustering merge the page just placed at sg[cur] into the
// immediately preceding entry when it continues that entry's last
// frame and the entry is a whole number of pages. Return the index
// merged into, -1 for no merge.
func checktailclustering(sg []api.SGEntry, cur, hint int, pagesize int64) int {
	if cur == 0 {
		return -1
	}
	prev := cur - 1
	pfnprev := sg[prev].Page.PFN + uint64(int64(sg[prev].Length)/pagesize)
	fullpage := int64(sg[prev].Length)%pagesize == 0

	if pfnprev == sg[cur].Page.PFN && fullpage {
		return tailmerge(sg, cur, prev)
	}
	return -1
}

func tailmerge(sg []api.SGEntry, cur, i int) int {
	sg[i].Length += sg[cur].Length
	sg[cur] = api.SGEntry{}
	return i
}

func headmerge(sg []api.SGEntry, cur, i int) int {
	sg[i].Page = sg[cur].Page
	sg[i].Length += sg[cur].Length
	sg[cur] = api.SGEntry{}
	return i
}

// allocsgentries build an SG list of `pages` pages one page at a
// time through the page source, clustering as configured, then fill
// the translation table when one is supplied and ctype clusters; an
// unclustered build leaves ttbl untouched. If any page allocation
// fails the partial list is released through the source and 0
// returned.
func allocsgentries(
	sg []api.SGEntry, pages int, ctype Clustering, ttbl []Transent,
	fns api.PageAllocFns, priv interface{}, pagesize int64) int {

	sgcount, merged := 0, -1
	for pg := 0; pg < pages; pg++ {
		if page := fns.Allocpage(&sg[sgcount], priv); page == nil {
			fns.Freepages(sg, sgcount, priv)
			return 0
		}
		switch ctype {
		case Fullclustering:
			merged = checkfullclustering(sg, sgcount, merged, pagesize)
		case Tailclustering:
			merged = checktailclustering(sg, sgcount, merged, pagesize)
		default:
			merged = -1
		}
		if merged == -1 {
			sgcount++
		}
	}

	if ctype != Noclustering && ttbl != nil {
		pg := 0
		for i := 0; i < sgcount; i++ {
			n := int((int64(sg[i].Length) + pagesize - 1) / pagesize)
			ttbl[i].Pgcount = pg
			for j := 0; j < n; j++ {
				ttbl[pg].Sgnum = i + 1
				pg++
			}
		}
	}
	return sgcount
}
