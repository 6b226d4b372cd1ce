package behavior

import (
	"testing"
	"time"

	"github.com/l1jgo/behavior/internal/core/event"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type harness struct {
	rt    *Runtime
	bus   *event.Bus
	logs  *observer.ObservedLogs
	sched *fakeScheduler
}

func newHarness(t *testing.T, policy DuplicatePolicy, strict bool) *harness {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	bus := event.NewBus()
	sched := newFakeScheduler()
	rt := NewRuntime(Options{
		Logger:          zap.New(core),
		Bus:             bus,
		Scheduler:       sched,
		DuplicatePolicy: policy,
		StrictOrder:     strict,
	})
	return &harness{rt: rt, bus: bus, logs: logs, sched: sched}
}

// define declares a template with the given ports.
func (h *harness) define(t *testing.T, name string, inputs, outputs []string) *Template {
	t.Helper()
	tpl, err := h.rt.Registry().Define(name)
	require.NoError(t, err)
	for _, in := range inputs {
		_, err := tpl.AddInput(in, in, "")
		require.NoError(t, err)
	}
	for _, out := range outputs {
		_, err := tpl.AddOutput(out, out, "")
		require.NoError(t, err)
	}
	return tpl
}

type testScene struct {
	name  string
	props *Properties
}

func newTestScene(name string) *testScene {
	return &testScene{name: name, props: NewProperties()}
}

func (s *testScene) Name() string            { return s.name }
func (s *testScene) Properties() *Properties { return s.props }

type scheduled struct {
	inst   *Instance
	method string
	delay  time.Duration
}

type fakeScheduler struct {
	next      CallbackID
	pending   map[CallbackID]scheduled
	cancelled []*Instance
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{pending: make(map[CallbackID]scheduled)}
}

func (s *fakeScheduler) ScheduleOnce(delay time.Duration, inst *Instance, method string, _ ...any) (CallbackID, error) {
	s.next++
	s.pending[s.next] = scheduled{inst: inst, method: method, delay: delay}
	return s.next, nil
}

func (s *fakeScheduler) Cancel(id CallbackID) bool {
	_, ok := s.pending[id]
	delete(s.pending, id)
	return ok
}

func (s *fakeScheduler) CancelInstance(inst *Instance) int {
	n := 0
	for id, p := range s.pending {
		if p.inst == inst {
			delete(s.pending, id)
			n++
		}
	}
	s.cancelled = append(s.cancelled, inst)
	return n
}
