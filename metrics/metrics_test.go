package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/openunix/scst/sgv"

	s "github.com/bnclabs/gosettings"
)

func TestCollector(t *testing.T) {
	setts := s.Settings{"hiwmk": int64(1024), "lowmk": int64(512)}
	set := sgv.NewPoolset("t.metrics", setts)
	pool, err := set.Create("norm", sgv.Noclustering, false, nil)
	require.NoError(t, err)

	_, count, obj, err := pool.Alloc(16384, 0, nil, nil, nil)
	require.NoError(t, err)
	require.Equal(t, 4, count)

	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(NewCollector(set)))

	families, err := reg.Gather()
	require.NoError(t, err)

	byname := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			name := mf.GetName()
			for _, label := range m.GetLabel() {
				name += "/" + label.GetValue()
			}
			switch {
			case m.GetGauge() != nil:
				byname[name] = m.GetGauge().GetValue()
			case m.GetCounter() != nil:
				byname[name] = m.GetCounter().GetValue()
			}
		}
	}

	require.Equal(t, 4.0, byname["scst_sgv_pages_total"])
	require.Equal(t, 1.0, byname["scst_sgv_pool_cached_entries/norm"])
	require.Equal(t, 1.0, byname["scst_sgv_bucket_allocs_total/norm/4"])

	found := false
	for name := range byname {
		if strings.HasPrefix(name, "scst_sgv_bucket_hits_total/norm/") {
			found = true
		}
	}
	require.True(t, found, "bucket hit metrics missing")

	pool.Free(obj, nil)

	families, err = reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "scst_sgv_pool_inactive_cached_pages" {
			continue
		}
		require.Equal(t, 4.0, mf.GetMetric()[0].GetGauge().GetValue())
	}

	pool.Destroy()
	set.Close()
}
