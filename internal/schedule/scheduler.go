package schedule

import (
	"container/heap"
	"fmt"
	"time"

	"github.com/l1jgo/behavior/internal/behavior"
	"github.com/l1jgo/behavior/internal/core/system"
	"go.uber.org/zap"
)

type entry struct {
	id     behavior.CallbackID
	due    time.Duration
	seq    uint64
	inst   *behavior.Instance
	method string
	args   []any

	index     int // heap position, -1 once popped
	cancelled bool
}

// queue orders entries by due time, then by registration sequence.
type queue []*entry

func (q queue) Len() int { return len(q) }
func (q queue) Less(i, j int) bool {
	if q[i].due != q[j].due {
		return q[i].due < q[j].due
	}
	return q[i].seq < q[j].seq
}
func (q queue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}
func (q *queue) Push(x any) {
	e := x.(*entry)
	e.index = len(*q)
	*q = append(*q, e)
}
func (q *queue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*q = old[:n-1]
	return e
}

// TickScheduler delivers deferred method calls on a logical clock that only
// moves when Advance is called. It is driven from the tick goroutine.
type TickScheduler struct {
	now      time.Duration
	seq      uint64
	nextID   behavior.CallbackID
	q        queue
	byID     map[behavior.CallbackID]*entry
	maxFires int
	fired    uint64
	log      *zap.Logger
}

// New creates a scheduler. maxFires caps callbacks fired per Advance; zero
// means unlimited and the rest carry over to the next Advance.
func New(log *zap.Logger, maxFires int) *TickScheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &TickScheduler{
		byID:     make(map[behavior.CallbackID]*entry, 64),
		maxFires: maxFires,
		log:      log,
	}
}

// ScheduleOnce registers method to be called on inst once delay has elapsed
// on the logical clock. Negative delays count as zero.
func (s *TickScheduler) ScheduleOnce(delay time.Duration, inst *behavior.Instance, method string, args ...any) (behavior.CallbackID, error) {
	if inst == nil {
		return 0, fmt.Errorf("%w: nil instance", behavior.ErrInvalidState)
	}
	if delay < 0 {
		delay = 0
	}
	s.nextID++
	s.seq++
	e := &entry{
		id:     s.nextID,
		due:    s.now + delay,
		seq:    s.seq,
		inst:   inst,
		method: method,
		args:   args,
	}
	heap.Push(&s.q, e)
	s.byID[e.id] = e
	return e.id, nil
}

// Cancel drops a pending callback. Unknown, fired and already cancelled ids
// report false.
func (s *TickScheduler) Cancel(id behavior.CallbackID) bool {
	e, ok := s.byID[id]
	if !ok {
		return false
	}
	s.drop(e)
	return true
}

// CancelInstance drops every pending callback of inst.
func (s *TickScheduler) CancelInstance(inst *behavior.Instance) int {
	n := 0
	for _, e := range s.byID {
		if e.inst == inst {
			s.drop(e)
			n++
		}
	}
	return n
}

func (s *TickScheduler) drop(e *entry) {
	e.cancelled = true
	delete(s.byID, e.id)
	if e.index >= 0 {
		heap.Remove(&s.q, e.index)
	}
}

// Advance moves the clock by dt and fires every callback that has come due,
// in due order. Callbacks registered while firing wait for the next Advance
// even when their delay is zero. Returns the number of callbacks fired.
func (s *TickScheduler) Advance(dt time.Duration) int {
	s.now += dt

	var batch []*entry
	for s.q.Len() > 0 && s.q[0].due <= s.now {
		if s.maxFires > 0 && len(batch) >= s.maxFires {
			break
		}
		batch = append(batch, heap.Pop(&s.q).(*entry))
	}

	fired := 0
	for _, e := range batch {
		if e.cancelled {
			continue
		}
		delete(s.byID, e.id)
		if e.inst.State() != behavior.Active {
			s.log.Debug("scheduled callback dropped for inactive behavior",
				zap.String("method", e.method),
				zap.Stringer("state", e.inst.State()),
			)
			continue
		}
		// failures are logged by the runtime; the clock keeps going
		_ = e.inst.Call(e.method, e.args...)
		fired++
	}
	s.fired += uint64(fired)
	return fired
}

// Now returns the logical clock.
func (s *TickScheduler) Now() time.Duration { return s.now }

// Pending returns the number of callbacks waiting to fire.
func (s *TickScheduler) Pending() int { return len(s.byID) }

// Fired returns the number of callbacks delivered since creation.
func (s *TickScheduler) Fired() uint64 { return s.fired }

// System drives the scheduler from the tick runner.
type System struct {
	sched *TickScheduler
}

func NewSystem(s *TickScheduler) *System {
	return &System{sched: s}
}

func (s *System) Phase() system.Phase { return system.PhaseSchedule }

func (s *System) Update(dt time.Duration) {
	s.sched.Advance(dt)
}
