package idgen

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/flake/metrics"
	"github.com/ceyewan/flake/xerrors"
)

const testEpoch int64 = 1609459200000

// newFrozen 时钟冻结在 epoch+offset 的生成器
func newFrozen(t *testing.T, cfg *Config, offset int64) (*Snowflake, *fakeClock) {
	t.Helper()
	clk := newFakeClock(cfg.Epoch + offset)
	gen, err := New(cfg, WithClock(clk))
	require.NoError(t, err)
	return gen, clk
}

func TestNewValidation(t *testing.T) {
	now := testEpoch + 5000

	tests := []struct {
		name     string
		cfg      *Config
		wantCode string
	}{
		{name: "worker 31", cfg: &Config{WorkerID: 31, DatacenterID: 0, Epoch: testEpoch}},
		{name: "datacenter 31", cfg: &Config{WorkerID: 0, DatacenterID: 31, Epoch: testEpoch}},
		{name: "default epoch", cfg: &Config{WorkerID: 1}},
		{name: "worker 32", cfg: &Config{WorkerID: 32, Epoch: testEpoch}, wantCode: "worker_id_out_of_range"},
		{name: "worker negative", cfg: &Config{WorkerID: -1, Epoch: testEpoch}, wantCode: "worker_id_out_of_range"},
		{name: "datacenter 32", cfg: &Config{DatacenterID: 32, Epoch: testEpoch}, wantCode: "datacenter_id_out_of_range"},
		{name: "epoch negative", cfg: &Config{Epoch: -5}, wantCode: "epoch_negative"},
		{name: "epoch in future", cfg: &Config{Epoch: now + 1}, wantCode: "epoch_in_future"},
		{name: "nil config", cfg: nil, wantCode: "config_nil"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen, err := New(tt.cfg, WithClock(newFakeClock(now)))
			if tt.wantCode == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.cfg.WorkerID, gen.WorkerID())
				assert.Equal(t, tt.cfg.DatacenterID, gen.DatacenterID())
				return
			}
			require.Error(t, err)
			assert.Nil(t, gen)
			assert.ErrorIs(t, err, ErrInvalidConfiguration)
			assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
			assert.Equal(t, tt.wantCode, xerrors.GetCode(err))
		})
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	cfg := &Config{WorkerID: 1}
	gen, err := New(cfg)
	require.NoError(t, err)
	assert.Equal(t, DefaultEpoch, gen.Epoch())
	assert.Equal(t, 5*time.Millisecond, gen.maxWait)
	assert.Zero(t, cfg.Epoch, "caller config is not mutated")

	gen, err = New(&Config{MaxBackwardWait: -1})
	require.NoError(t, err)
	assert.Zero(t, gen.maxWait)
}

func TestConcreteScenario(t *testing.T) {
	gen, _ := newFrozen(t, &Config{WorkerID: 1, DatacenterID: 1, Epoch: 1609459200000}, 5000)

	first, err := gen.NextID()
	require.NoError(t, err)
	assert.Equal(t, Parts{Timestamp: 5000, DatacenterID: 1, WorkerID: 1, Sequence: 0}, first.Decompose())
	assert.Equal(t, ID(20971655168), first)

	second, err := gen.NextID()
	require.NoError(t, err)
	assert.Equal(t, Parts{Timestamp: 5000, DatacenterID: 1, WorkerID: 1, Sequence: 1}, second.Decompose())
	assert.Equal(t, ID(20971655169), second)
}

func TestUniqueAndMonotonic(t *testing.T) {
	gen, err := New(DefaultConfig(3, 7))
	require.NoError(t, err)

	const n = 100_000
	perMilli := make(map[int64]int)
	var prev ID
	for i := range n {
		id, err := gen.NextID()
		require.NoError(t, err)
		if i > 0 {
			require.Greater(t, id, prev, "ids must strictly increase on one instance")
		}
		prev = id

		p := id.Decompose()
		assert.Equal(t, int64(3), p.WorkerID)
		assert.Equal(t, int64(7), p.DatacenterID)
		perMilli[p.Timestamp]++
	}

	for ts, count := range perMilli {
		assert.LessOrEqual(t, count, MaxSequence+1, "timestamp %d", ts)
	}
}

func TestConcurrentUnique(t *testing.T) {
	gen, err := New(DefaultConfig(1, 1))
	require.NoError(t, err)

	const workers, perWorker = 16, 5000
	results := make([][]ID, workers)

	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids := make([]ID, 0, perWorker)
			for range perWorker {
				id, err := gen.NextID()
				if err != nil {
					t.Error(err)
					return
				}
				ids = append(ids, id)
			}
			results[w] = ids
		}()
	}
	wg.Wait()

	seen := make(map[ID]struct{}, workers*perWorker)
	for _, ids := range results {
		for i, id := range ids {
			if i > 0 {
				assert.Greater(t, id, ids[i-1], "per goroutine order follows lock order")
			}
			seen[id] = struct{}{}
		}
	}
	assert.Len(t, seen, workers*perWorker)
}

func TestSequenceOverflowWaitsForNextMilli(t *testing.T) {
	gen, clk := newFrozen(t, DefaultConfig(2, 2), 1000)

	for i := range MaxSequence + 1 {
		id, err := gen.NextID()
		require.NoError(t, err)
		require.Equal(t, Parts{Timestamp: 1000, DatacenterID: 2, WorkerID: 2, Sequence: int64(i)}, id.Decompose())
	}

	before := clk.readCount()
	clk.advanceAfter(4)

	id, err := gen.NextID()
	require.NoError(t, err)
	assert.Equal(t, Parts{Timestamp: 1001, DatacenterID: 2, WorkerID: 2, Sequence: 0}, id.Decompose())
	assert.GreaterOrEqual(t, clk.readCount()-before, 4, "4097th call spins until the clock advances")
}

func TestRollbackDuringOverflowWait(t *testing.T) {
	tests := []struct {
		name     string
		maxWait  time.Duration
		rollback int64
		drift    time.Duration
	}{
		{name: "beyond default tolerance", rollback: 4000, drift: time.Second},
		{name: "fail fast", maxWait: -1, rollback: 4999, drift: time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig(1, 1)
			cfg.MaxBackwardWait = tt.maxWait
			gen, clk := newFrozen(t, cfg, 5000)

			for range MaxSequence + 1 {
				_, err := gen.NextID()
				require.NoError(t, err)
			}

			// 第 4097 次调用先读到同一毫秒进入自旋，随后时钟回拨
			clk.jumpAfter(3, testEpoch+tt.rollback)
			done := make(chan error, 1)
			go func() {
				_, err := gen.NextID()
				done <- err
			}()

			var err error
			select {
			case err = <-done:
			case <-time.After(2 * time.Second):
				t.Fatal("NextID kept spinning after the clock moved backward")
			}
			assert.ErrorIs(t, err, ErrClockMovedBackward)
			var ce *ClockError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, int64(5000), ce.Last)
			assert.Equal(t, tt.rollback, ce.Now)
			assert.Equal(t, tt.drift, ce.Drift)
			assert.Empty(t, clk.sleeps())

			clk.set(testEpoch + 5001)
			id, err := gen.NextID()
			require.NoError(t, err)
			assert.Equal(t, Parts{Timestamp: 5001, DatacenterID: 1, WorkerID: 1}, id.Decompose())
		})
	}
}

func TestClockRollback(t *testing.T) {
	t.Run("small drift is waited out", func(t *testing.T) {
		gen, clk := newFrozen(t, DefaultConfig(1, 1), 5000)
		_, err := gen.NextID()
		require.NoError(t, err)

		clk.set(testEpoch + 4997)
		id, err := gen.NextID()
		require.NoError(t, err)
		assert.Equal(t, []time.Duration{3 * time.Millisecond}, clk.sleeps())
		assert.Equal(t, int64(5000), id.Decompose().Timestamp)
		assert.Equal(t, int64(1), id.Decompose().Sequence)
	})

	t.Run("large drift is rejected", func(t *testing.T) {
		gen, clk := newFrozen(t, DefaultConfig(1, 1), 5000)
		last, err := gen.NextID()
		require.NoError(t, err)

		clk.set(testEpoch + 4990)
		_, err = gen.NextID()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrClockMovedBackward)
		assert.ErrorIs(t, err, xerrors.ErrUnavailable)

		var ce *ClockError
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, int64(5000), ce.Last)
		assert.Equal(t, int64(4990), ce.Now)
		assert.Equal(t, 10*time.Millisecond, ce.Drift)
		assert.Empty(t, clk.sleeps())
		assert.Equal(t, int64(-1), gen.Next())

		clk.set(testEpoch + 5001)
		next, err := gen.NextID()
		require.NoError(t, err)
		assert.Greater(t, next, last)
		assert.Equal(t, Parts{Timestamp: 5001, DatacenterID: 1, WorkerID: 1}, next.Decompose())
	})

	t.Run("still behind after waiting", func(t *testing.T) {
		gen, clk := newFrozen(t, DefaultConfig(1, 1), 5000)
		_, err := gen.NextID()
		require.NoError(t, err)

		clk.frozen = true
		clk.set(testEpoch + 4998)
		_, err = gen.NextID()
		assert.ErrorIs(t, err, ErrClockMovedBackward)
		assert.Equal(t, []time.Duration{2 * time.Millisecond}, clk.sleeps())
	})

	t.Run("fail fast", func(t *testing.T) {
		cfg := DefaultConfig(1, 1)
		cfg.MaxBackwardWait = -1
		gen, clk := newFrozen(t, cfg, 5000)
		_, err := gen.NextID()
		require.NoError(t, err)

		clk.set(testEpoch + 4999)
		_, err = gen.NextID()
		assert.ErrorIs(t, err, ErrClockMovedBackward)
		assert.Empty(t, clk.sleeps())
	})
}

func TestTimestampOverflow(t *testing.T) {
	gen, clk := newFrozen(t, DefaultConfig(1, 1), 0)

	clk.set(testEpoch - 1)
	_, err := gen.NextID()
	assert.ErrorIs(t, err, ErrTimestampOverflow)

	clk.set(testEpoch + MaxTimestamp + 1)
	_, err = gen.NextID()
	assert.ErrorIs(t, err, ErrTimestampOverflow)

	clk.set(testEpoch + MaxTimestamp)
	id, err := gen.NextID()
	require.NoError(t, err)
	assert.Equal(t, int64(MaxTimestamp), id.Decompose().Timestamp)
	assert.Zero(t, id>>63, "reserved bit stays clear")
}

func TestNextBatch(t *testing.T) {
	gen, clk := newFrozen(t, DefaultConfig(4, 5), 100)

	ids, err := gen.NextBatch(10)
	require.NoError(t, err)
	require.Len(t, ids, 10)
	for i, id := range ids {
		assert.Equal(t, int64(i), id.Decompose().Sequence)
	}

	_, err = gen.NextBatch(0)
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)

	clk.set(testEpoch + 50)
	ids, err = gen.NextBatch(3)
	assert.ErrorIs(t, err, ErrClockMovedBackward)
	assert.Empty(t, ids)
}

func TestNextIDContext(t *testing.T) {
	gen, _ := newFrozen(t, DefaultConfig(1, 1), 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := gen.NextIDContext(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	id, err := gen.NextIDContext(context.Background())
	require.NoError(t, err)
	assert.Zero(t, id.Decompose().Sequence, "a cancelled call does not consume a sequence")
}

func TestNextHelpers(t *testing.T) {
	gen, _ := newFrozen(t, DefaultConfig(1, 1), 5000)

	assert.Equal(t, int64(20971655168), gen.Next())

	s, err := gen.NextString()
	require.NoError(t, err)
	assert.Equal(t, "20971655169", s)

	d := gen.Decode(ID(20971655168))
	assert.Equal(t, Parts{Timestamp: 5000, DatacenterID: 1, WorkerID: 1}, d.Parts)
	assert.Equal(t, time.Date(2021, 1, 1, 0, 0, 5, 0, time.UTC), d.Time)
}

func TestGeneratorMetrics(t *testing.T) {
	meter, err := metrics.New(&metrics.Config{Enabled: true, ServiceName: "idgen-test"})
	require.NoError(t, err)
	defer meter.Shutdown(context.Background())

	clk := newFakeClock(testEpoch + 5000)
	gen, err := New(DefaultConfig(9, 3), WithClock(clk), WithMeter(meter))
	require.NoError(t, err)

	_, err = gen.NextBatch(3)
	require.NoError(t, err)
	clk.set(testEpoch + 4000)
	_, err = gen.NextID()
	require.Error(t, err)

	w := httptest.NewRecorder()
	metrics.Handler(meter).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := w.Body.String()

	assert.Regexp(t, `idgen_generated_total\{[^}]*worker_id="9"[^}]*\} 3\n`, body)
	assert.Regexp(t, `idgen_clock_backward_total\{[^}]*outcome="rejected"[^}]*\} 1\n`, body)
}
