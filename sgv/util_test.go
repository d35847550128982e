package sgv

import "sync"
import "time"

import s "github.com/bnclabs/gosettings"
import "github.com/openunix/scst/api"

func testsettings(hiwmk, lowmk int64) s.Settings {
	return s.Settings{"hiwmk": hiwmk, "lowmk": lowmk}
}

// page source handing out scripted frame numbers, then monotonically
// increasing ones starting far away from the script.
type testsource struct {
	mu        sync.Mutex
	pagesize  int64
	script    []uint64
	nextpfn   uint64
	allocs    int
	freed     int64 // single pages released
	failafter int   // fail allocations beyond this many, 0 disables
}

func newtestsource(pagesize int64, script []uint64) *testsource {
	return &testsource{pagesize: pagesize, script: script, nextpfn: 1 << 20}
}

func (src *testsource) fns() api.PageAllocFns {
	return api.PageAllocFns{
		Allocpage: src.allocpage,
		Freepages: src.freepages,
	}
}

func (src *testsource) allocpage(sg *api.SGEntry, priv interface{}) *api.Page {
	src.mu.Lock()
	defer src.mu.Unlock()

	if src.failafter > 0 && src.allocs >= src.failafter {
		return nil
	}
	var pfn uint64
	if len(src.script) > 0 {
		pfn, src.script = src.script[0], src.script[1:]
	} else {
		pfn = src.nextpfn
		src.nextpfn++
	}
	src.allocs++

	page := &api.Page{PFN: pfn, Data: make([]byte, src.pagesize)}
	sg.Page, sg.Offset, sg.Length = page, 0, int(src.pagesize)
	return page
}

func (src *testsource) freepages(sg []api.SGEntry, count int, priv interface{}) {
	src.mu.Lock()
	defer src.mu.Unlock()
	for i := 0; i < count; i++ {
		src.freed += (int64(sg[i].Length) + src.pagesize - 1) / src.pagesize
	}
}

func (src *testsource) freedpages() int64 {
	src.mu.Lock()
	defer src.mu.Unlock()
	return src.freed
}

// virtual clock.
type fakeclock struct {
	mu  sync.Mutex
	now time.Time
}

func newfakeclock() *fakeclock {
	return &fakeclock{now: time.Unix(1000, 0)}
}

func (clk *fakeclock) Now() time.Time {
	clk.mu.Lock()
	defer clk.mu.Unlock()
	return clk.now
}

func (clk *fakeclock) advance(d time.Duration) {
	clk.mu.Lock()
	defer clk.mu.Unlock()
	clk.now = clk.now.Add(d)
}

// scheduler collecting work until the test runs it.
type fakesched struct {
	mu    sync.Mutex
	works []*fakework
}

type fakework struct {
	fn func()
}

func (sched *fakesched) After(d time.Duration, fn func()) api.Work {
	w := &fakework{fn: fn}
	sched.mu.Lock()
	sched.works = append(sched.works, w)
	sched.mu.Unlock()
	return w
}

func (w *fakework) Cancelsync() {}

func (sched *fakesched) pending() int {
	sched.mu.Lock()
	defer sched.mu.Unlock()
	return len(sched.works)
}

func (sched *fakesched) runpending() {
	sched.mu.Lock()
	works := sched.works
	sched.works = nil
	sched.mu.Unlock()
	for _, w := range works {
		w.fn()
	}
}
