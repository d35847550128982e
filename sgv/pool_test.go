package sgv

import "testing"

import s "github.com/bnclabs/gosettings"
import "github.com/openunix/scst/api"

func TestCachehitRoundtrip(t *testing.T) {
	setts := s.Settings{
		"hiwmk": int64(1024), "lowmk": int64(512), "buckets": int64(8),
	}
	set := NewPoolset("t.hit", setts)
	pool, err := set.Create("norm", Noclustering, false, nil)
	if err != nil {
		t.Fatalf("Create(): %v", err)
	}

	sg, count, obj, err := pool.Alloc(16384, 0, nil, nil, nil)
	if err != nil {
		t.Fatalf("Alloc(): %v", err)
	} else if count != 4 {
		t.Errorf("expected %v, got %v", 4, count)
	} else if len(sg) != 4 {
		t.Errorf("expected %v entries, got %v", 4, len(sg))
	}
	for i := 0; i < count; i++ {
		if sg[i].Length != 4096 {
			t.Errorf("entry %v expected length %v, got %v", i, 4096, sg[i].Length)
		}
	}
	if x := set.Stats()["pagestotal"].(int64); x != 4 {
		t.Errorf("expected pagestotal %v, got %v", 4, x)
	}

	pool.Free(obj, nil)
	set.Validate()

	_, count, obj2, err := pool.Alloc(16384, 0, nil, nil, nil)
	if err != nil {
		t.Fatalf("Alloc(): %v", err)
	} else if count != 4 {
		t.Errorf("expected %v, got %v", 4, count)
	} else if obj2 != obj {
		t.Errorf("expected the cached obj %p, got %p", obj, obj2)
	}
	stats := pool.Stats()
	if x := stats["hitalloc"].([]int64)[2]; x != 1 {
		t.Errorf("expected hitalloc %v, got %v", 1, x)
	}
	if x := stats["totalalloc"].([]int64)[2]; x != 2 {
		t.Errorf("expected totalalloc %v, got %v", 2, x)
	}

	pool.Free(obj2, nil)
	pool.Destroy()
	if x := set.Stats()["pagestotal"].(int64); x != 0 {
		t.Errorf("expected pagestotal %v, got %v", 0, x)
	}
	set.Close()
}

func TestTailtrim(t *testing.T) {
	set := NewPoolset("t.trim", testsettings(1024, 512))
	pool, _ := set.Create("norm", Noclustering, false, nil)

	sg, count, obj, err := pool.Alloc(10000, 0, nil, nil, nil)
	if err != nil {
		t.Fatalf("Alloc(): %v", err)
	} else if count != 3 {
		t.Errorf("expected %v, got %v", 3, count)
	}
	if x := sg[2].Length; x != 1808 {
		t.Errorf("expected tail length %v, got %v", 1808, x)
	}

	pool.Free(obj, nil)
	if x := obj.entries[2].Length; x != 4096 {
		t.Errorf("expected restored length %v, got %v", 4096, x)
	}

	pool.Destroy()
	set.Close()
}

func TestClusteredAlloc(t *testing.T) {
	set := NewPoolset("t.clust", testsettings(1024, 512))
	pool, _ := set.Create("clust", Fullclustering, false, nil)
	src := newtestsource(set.Pagesize(), []uint64{100, 101, 200, 102})
	pool.Setallocator(src.fns())

	sg, count, obj, err := pool.Alloc(16384, 0, nil, nil, nil)
	if err != nil {
		t.Fatalf("Alloc(): %v", err)
	} else if count != 2 {
		t.Errorf("expected %v, got %v", 2, count)
	}
	if obj.sgcount != 2 {
		t.Errorf("expected sgcount %v, got %v", 2, obj.sgcount)
	}
	if sg[0].Length != 12288 || sg[1].Length != 4096 {
		t.Errorf("unexpected lengths %v %v", sg[0].Length, sg[1].Length)
	}
	if x := pool.Stats()["merged"].([]int64)[2]; x != 2 {
		t.Errorf("expected merged %v, got %v", 2, x)
	}

	pool.Free(obj, nil)
	pool.Destroy()
	set.Close()
}

func TestClusteredPartialHit(t *testing.T) {
	// a hit serves fewer pages than the bucket holds; the reported
	// count comes from the translation table and the tail entry is
	// trimmed to the requested size
	set := NewPoolset("t.partial", testsettings(1024, 512))
	pool, _ := set.Create("clust", Fullclustering, false, nil)
	src := newtestsource(set.Pagesize(), []uint64{100, 101, 102, 103})
	pool.Setallocator(src.fns())

	_, count, obj, err := pool.Alloc(16384, 0, nil, nil, nil)
	if err != nil {
		t.Fatalf("Alloc(): %v", err)
	} else if count != 1 {
		t.Errorf("expected %v, got %v", 1, count)
	}
	pool.Free(obj, nil)

	// three pages out of the four-page cached vector
	sg, count, obj, err := pool.Alloc(12288, 0, nil, nil, nil)
	if err != nil {
		t.Fatalf("Alloc(): %v", err)
	} else if count != 1 {
		t.Errorf("expected %v, got %v", 1, count)
	}
	if x := sg[0].Length; x != 12288 {
		t.Errorf("expected trimmed length %v, got %v", 12288, x)
	}
	pool.Free(obj, nil)
	if x := obj.entries[0].Length; x != 16384 {
		t.Errorf("expected restored length %v, got %v", 16384, x)
	}

	pool.Destroy()
	set.Close()
}

func TestBigAlloc(t *testing.T) {
	setts := s.Settings{
		"hiwmk": int64(1024), "lowmk": int64(512), "buckets": int64(4),
	}
	set := NewPoolset("t.big", setts)
	pool, _ := set.Create("norm", Noclustering, false, nil)
	src := newtestsource(set.Pagesize(), nil)
	pool.Setallocator(src.fns())

	size := int64(64 * 4096)
	_, count, obj, err := pool.Alloc(size, 0, nil, nil, nil)
	if err != nil {
		t.Fatalf("Alloc(): %v", err)
	} else if count != 64 {
		t.Errorf("expected %v, got %v", 64, count)
	}
	if obj.orderorpages != -64 {
		t.Errorf("expected orderorpages %v, got %v", -64, obj.orderorpages)
	}
	if x := pool.Stats()["cachedentries"].(int64); x != 0 {
		t.Errorf("expected cachedentries %v, got %v", 0, x)
	}
	if x := set.Stats()["pagestotal"].(int64); x != 64 {
		t.Errorf("expected pagestotal %v, got %v", 64, x)
	}

	pool.Free(obj, nil)
	if x := src.freedpages(); x != 64 {
		t.Errorf("expected %v pages freed, got %v", 64, x)
	}
	if x := set.Stats()["pagestotal"].(int64); x != 0 {
		t.Errorf("expected pagestotal %v, got %v", 0, x)
	}
	if x := pool.Stats()["bigalloc"].(int64); x != 1 {
		t.Errorf("expected bigalloc %v, got %v", 1, x)
	}

	pool.Destroy()
	set.Close()
}

func TestNocachedAlloc(t *testing.T) {
	set := NewPoolset("t.nocached", testsettings(1024, 512))
	pool, _ := set.Create("norm", Noclustering, false, nil)

	_, count, obj, err := pool.Alloc(8192, Nocached, nil, nil, nil)
	if err != nil {
		t.Fatalf("Alloc(): %v", err)
	} else if count != 2 {
		t.Errorf("expected %v, got %v", 2, count)
	}
	if obj.orderorpages != -2 {
		t.Errorf("expected orderorpages %v, got %v", -2, obj.orderorpages)
	}
	if x := pool.Stats()["otheralloc"].(int64); x != 1 {
		t.Errorf("expected otheralloc %v, got %v", 1, x)
	}

	pool.Free(obj, nil)
	pool.Destroy()
	set.Close()
}

func TestNoallocOnMiss(t *testing.T) {
	set := NewPoolset("t.miss", testsettings(1024, 512))
	pool, _ := set.Create("norm", Noclustering, false, nil)

	// plain miss: nothing allocated, no counters left behind
	sg, count, obj, err := pool.Alloc(4096, Noalloconmiss, nil, nil, nil)
	if err != nil || sg != nil || obj != nil || count != 0 {
		t.Errorf("unexpected %v %v %v %v", sg, count, obj, err)
	}
	if x := pool.Stats()["cachedentries"].(int64); x != 0 {
		t.Errorf("expected cachedentries %v, got %v", 0, x)
	}
	set.Validate()

	// miss returning the empty obj for a later retry
	sg, count, obj, err = pool.Alloc(
		4096, Noalloconmiss|Returnobjonfail, nil, nil, nil)
	if err != nil || sg != nil {
		t.Fatalf("unexpected %v %v", sg, err)
	} else if obj == nil || count != 1 {
		t.Fatalf("expected the empty obj, got %v count %v", obj, count)
	}
	if obj.sgcount != 0 {
		t.Errorf("expected empty obj, got sgcount %v", obj.sgcount)
	}
	if x := pool.Stats()["cachedentries"].(int64); x != 1 {
		t.Errorf("expected cachedentries %v, got %v", 1, x)
	}

	// supply it back
	sg, count, obj2, err := pool.Alloc(4096, 0, obj, nil, nil)
	if err != nil {
		t.Fatalf("Alloc(): %v", err)
	} else if obj2 != obj || count != 1 {
		t.Errorf("expected %p count 1, got %p count %v", obj, obj2, count)
	}
	if x := set.Stats()["pagestotal"].(int64); x != 1 {
		t.Errorf("expected pagestotal %v, got %v", 1, x)
	}

	pool.Free(obj2, nil)
	set.Validate()
	pool.Destroy()
	set.Close()
}

func TestQuota(t *testing.T) {
	set := NewPoolset("t.quota", testsettings(1024, 512))
	pool, _ := set.Create("norm", Noclustering, false, nil)
	mlim := api.Newmemlim(3)

	_, _, _, err := pool.Alloc(16384, 0, nil, mlim, nil)
	if err != ErrorOutofMemory {
		t.Errorf("expected %v, got %v", ErrorOutofMemory, err)
	}
	if x := set.Stats()["pagestotal"].(int64); x != 0 {
		t.Errorf("expected pagestotal %v, got %v", 0, x)
	}
	if x := mlim.Alloced(); x != 0 {
		t.Errorf("expected alloced %v, got %v", 0, x)
	}
	set.Validate()

	_, _, obj, err := pool.Alloc(8192, 0, nil, mlim, nil)
	if err != nil {
		t.Fatalf("Alloc(): %v", err)
	}
	if x := mlim.Alloced(); x != 2 {
		t.Errorf("expected alloced %v, got %v", 2, x)
	}
	pool.Free(obj, mlim)
	if x := mlim.Alloced(); x != 0 {
		t.Errorf("expected alloced %v, got %v", 0, x)
	}

	pool.Destroy()
	set.Close()
}

func TestZerosize(t *testing.T) {
	set := NewPoolset("t.zero", testsettings(1024, 512))
	pool, _ := set.Create("norm", Noclustering, false, nil)

	if _, _, _, err := pool.Alloc(0, 0, nil, nil, nil); err != ErrorInvalidArg {
		t.Errorf("expected %v, got %v", ErrorInvalidArg, err)
	}

	pool.Destroy()
	set.Close()
}

func TestPoolSharing(t *testing.T) {
	set := NewPoolset("t.share", testsettings(1024, 512))

	pool, err := set.Create("shared", Noclustering, false, "owner-a")
	if err != nil {
		t.Fatalf("Create(): %v", err)
	}
	if _, err = set.Create("shared", Noclustering, false, "owner-a"); err != ErrorPoolExists {
		t.Errorf("expected %v, got %v", ErrorPoolExists, err)
	}
	if _, err = set.Create("shared", Noclustering, true, "owner-b"); err != ErrorBusy {
		t.Errorf("expected %v, got %v", ErrorBusy, err)
	}

	again, err := set.Create("shared", Noclustering, true, "owner-a")
	if err != nil {
		t.Fatalf("Create(): %v", err)
	} else if again != pool {
		t.Errorf("expected the same pool")
	}

	again.Destroy()
	if x := len(set.Pools()); x != 1 {
		t.Errorf("expected %v pools, got %v", 1, x)
	}
	pool.Destroy()
	if x := len(set.Pools()); x != 0 {
		t.Errorf("expected %v pools, got %v", 0, x)
	}
	set.Close()
}

func TestFlush(t *testing.T) {
	set := NewPoolset("t.flush", testsettings(1024, 512))
	pool, _ := set.Create("norm", Noclustering, false, nil)

	objs := make([]*Obj, 0)
	for _, size := range []int64{4096, 8192, 16384, 16384} {
		_, _, obj, err := pool.Alloc(size, 0, nil, nil, nil)
		if err != nil {
			t.Fatalf("Alloc(): %v", err)
		}
		objs = append(objs, obj)
	}
	for _, obj := range objs {
		pool.Free(obj, nil)
	}
	set.Validate()
	if x := pool.Stats()["cachedentries"].(int64); x != 4 {
		t.Errorf("expected cachedentries %v, got %v", 4, x)
	}

	pool.Flush()
	if x := pool.Stats()["cachedentries"].(int64); x != 0 {
		t.Errorf("expected cachedentries %v, got %v", 0, x)
	}
	if x := set.Stats()["pagestotal"].(int64); x != 0 {
		t.Errorf("expected pagestotal %v, got %v", 0, x)
	}
	set.Validate()

	pool.Destroy()
	set.Close()
}

func TestClusteredPutOrder(t *testing.T) {
	// free-listed clustered vectors stay ordered by sg count, ties
	// last-in first-out
	bkt := &bucket{}
	mk := func(sgcount int) *Obj {
		return &Obj{sgcount: sgcount}
	}
	three, one, twoa, twob := mk(3), mk(1), mk(2), mk(2)
	bkt.insertbysgcount(three)
	bkt.insertbysgcount(one)
	bkt.insertbysgcount(twoa)
	bkt.insertbysgcount(twob)

	ref := []*Obj{one, twob, twoa, three}
	obj := bkt.bhead
	for i, want := range ref {
		if obj != want {
			t.Fatalf("position %v expected sgcount %v obj", i, want.sgcount)
		}
		obj = obj.bnext
	}
	if obj != nil {
		t.Errorf("expected list end")
	}
}
