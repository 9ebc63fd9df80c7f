package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stressdrive/stress"
)

func TestRecorderCounts(t *testing.T) {
	r := New("/dev/test")

	r.ObserveIO(stress.PhaseWrite, 1<<20, 2*time.Millisecond)
	r.ObserveIO(stress.PhaseWrite, 1<<20, 3*time.Millisecond)
	r.ObserveIO(stress.PhaseVerify, 512, time.Millisecond)
	r.ObserveRegion(stress.PhaseWrite, true)
	r.ObserveRegion(stress.PhaseVerify, true)
	r.ObserveRegion(stress.PhaseVerify, false)
	r.ObserveRegion(stress.PhaseVerify, false)

	assert.Equal(t, float64(2<<20), testutil.ToFloat64(r.BytesTotal.WithLabelValues("writing")))
	assert.Equal(t, float64(512), testutil.ToFloat64(r.BytesTotal.WithLabelValues("verifying")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.RegionsTotal.WithLabelValues("writing", "recorded")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.RegionsTotal.WithLabelValues("verifying", "match")))
	assert.Equal(t, float64(2), testutil.ToFloat64(r.RegionsTotal.WithLabelValues("verifying", "mismatch")))
	assert.Equal(t, 2, testutil.CollectAndCount(r.IOSeconds))
}

func TestWriteFile(t *testing.T) {
	r := New("/dev/test")
	r.DeviceBytes.Set(16 << 20)
	r.Finish(1, time.Unix(1700000000, 0))

	path := filepath.Join(t.TempDir(), "stressdrive.prom")
	require.NoError(t, r.WriteFile(path))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(b)
	assert.Contains(t, text, `stressdrive_last_run_exit_code{device="/dev/test"} 1`)
	assert.Contains(t, text, `stressdrive_device_bytes{device="/dev/test"} 1.6777216e+07`)
	assert.Contains(t, text, `stressdrive_last_run_timestamp_seconds{device="/dev/test"} 1.7e+09`)
}

var _ stress.Recorder = (*Recorder)(nil)
