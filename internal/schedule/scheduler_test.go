package schedule

import (
	"testing"
	"time"

	"github.com/l1jgo/behavior/internal/behavior"
	"github.com/l1jgo/behavior/internal/core/system"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	rt    *behavior.Runtime
	sched *TickScheduler
	log   []string
}

// newFixture defines a "Timer" template whose "tick" method records its
// first argument.
func newFixture(t *testing.T, maxFires int, install bool) *fixture {
	t.Helper()
	f := &fixture{sched: New(nil, maxFires)}
	opts := behavior.Options{}
	if install {
		opts.Scheduler = f.sched
	}
	f.rt = behavior.NewRuntime(opts)
	tpl, err := f.rt.Registry().Define("Timer")
	require.NoError(t, err)
	require.NoError(t, tpl.Bind("tick", func(inst *behavior.Instance, c behavior.Call) error {
		f.log = append(f.log, c.Arg(0).(string))
		return nil
	}))
	return f
}

func (f *fixture) attach(t *testing.T) *behavior.Instance {
	t.Helper()
	inst, err := f.rt.NewOwner("clock").Attach("Timer")
	require.NoError(t, err)
	return inst
}

func TestCallbacksFireInDueOrder(t *testing.T) {
	f := newFixture(t, 0, true)
	inst := f.attach(t)

	_, err := inst.Schedule(300*time.Millisecond, "tick", "late")
	require.NoError(t, err)
	_, err = inst.Schedule(100*time.Millisecond, "tick", "early")
	require.NoError(t, err)
	_, err = inst.Schedule(100*time.Millisecond, "tick", "early-second")
	require.NoError(t, err)

	assert.Equal(t, 0, f.sched.Advance(50*time.Millisecond))
	assert.Equal(t, 2, f.sched.Advance(50*time.Millisecond))
	assert.Equal(t, []string{"early", "early-second"}, f.log)
	assert.Equal(t, 1, f.sched.Pending())

	assert.Equal(t, 1, f.sched.Advance(time.Second))
	assert.Equal(t, []string{"early", "early-second", "late"}, f.log)
	assert.Equal(t, uint64(3), f.sched.Fired())
	assert.Equal(t, 1100*time.Millisecond, f.sched.Now())
}

func TestCancel(t *testing.T) {
	f := newFixture(t, 0, true)
	inst := f.attach(t)

	id, err := inst.Schedule(time.Second, "tick", "cancelled")
	require.NoError(t, err)
	_, err = inst.Schedule(time.Second, "tick", "kept")
	require.NoError(t, err)

	assert.True(t, inst.Cancel(id))
	assert.False(t, inst.Cancel(id))
	assert.False(t, f.sched.Cancel(999))

	f.sched.Advance(time.Second)
	assert.Equal(t, []string{"kept"}, f.log)
}

func TestDetachCancelsPendingCallbacks(t *testing.T) {
	f := newFixture(t, 0, true)
	inst := f.attach(t)
	id, err := inst.Schedule(time.Second, "tick", "never")
	require.NoError(t, err)

	inst.Detach()
	assert.Equal(t, 0, f.sched.Pending())
	assert.False(t, f.sched.Cancel(id), "cancelling after destroy is a no-op")
	assert.Equal(t, 0, f.sched.Advance(time.Second))
	assert.Empty(t, f.log)
}

func TestStaleCallbackIsSilentNoop(t *testing.T) {
	f := newFixture(t, 0, false)
	inst := f.attach(t)

	_, err := f.sched.ScheduleOnce(0, inst, "tick", "stale")
	require.NoError(t, err)
	inst.Detach()

	assert.Equal(t, 0, f.sched.Advance(time.Millisecond))
	assert.Empty(t, f.log)
	assert.Equal(t, 0, f.sched.Pending())
}

func TestZeroDelayDuringFireWaitsForNextAdvance(t *testing.T) {
	f := newFixture(t, 0, true)
	tpl, err := f.rt.Registry().Define("Chain")
	require.NoError(t, err)
	require.NoError(t, tpl.Bind("step", func(inst *behavior.Instance, c behavior.Call) error {
		n := c.Arg(0).(int)
		f.log = append(f.log, "step")
		if n > 0 {
			_, err := inst.Schedule(0, "step", n-1)
			return err
		}
		return nil
	}))
	inst, err := f.rt.NewOwner("chain").Attach("Chain")
	require.NoError(t, err)
	_, err = inst.Schedule(0, "step", 2)
	require.NoError(t, err)

	assert.Equal(t, 1, f.sched.Advance(0))
	assert.Equal(t, 1, f.sched.Advance(0))
	assert.Equal(t, 1, f.sched.Advance(0))
	assert.Equal(t, 0, f.sched.Advance(0))
	assert.Len(t, f.log, 3)
}

func TestMaxFiresCarriesOver(t *testing.T) {
	f := newFixture(t, 2, true)
	inst := f.attach(t)
	for _, name := range []string{"a", "b", "c"} {
		_, err := inst.Schedule(0, "tick", name)
		require.NoError(t, err)
	}

	assert.Equal(t, 2, f.sched.Advance(time.Millisecond))
	assert.Equal(t, 1, f.sched.Advance(time.Millisecond))
	assert.Equal(t, []string{"a", "b", "c"}, f.log)
}

func TestSystemRunsInSchedulePhase(t *testing.T) {
	f := newFixture(t, 0, true)
	inst := f.attach(t)
	_, err := inst.Schedule(16*time.Millisecond, "tick", "frame")
	require.NoError(t, err)

	runner := system.NewRunner()
	sys := NewSystem(f.sched)
	assert.Equal(t, system.PhaseSchedule, sys.Phase())
	runner.Register(sys)
	runner.Tick(16 * time.Millisecond)
	assert.Equal(t, []string{"frame"}, f.log)
}
