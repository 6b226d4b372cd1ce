package behavior

import (
	"testing"
	"time"

	"github.com/l1jgo/behavior/internal/core/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestButtonMuteEndToEnd(t *testing.T) {
	h := newHarness(t, AllowShadow, false)
	h.define(t, "ButtonBehavior", nil, []string{"buttonDown"})
	mute := h.define(t, "MuteBehavior", []string{"muteAudio"}, nil)

	muteCalls := 0
	require.NoError(t, mute.Bind("muteAudio", func(inst *Instance, _ Call) error {
		muteCalls++
		inst.Owner().Properties().Toggle("audioMuted")
		return nil
	}))
	require.NoError(t, mute.SetHooks(Hooks{
		OnAddToScene: func(inst *Instance, _ Scene) error {
			button, err := inst.Sibling("ButtonBehavior")
			if err != nil {
				return err
			}
			if button.State() != Active {
				t.Errorf("button should be active, got %s", button.State())
			}
			_, err = button.Connect("buttonDown", inst, "muteAudio")
			return err
		},
	}))

	o := h.rt.NewOwner("muteButton")
	button, err := o.Attach("ButtonBehavior")
	require.NoError(t, err)
	_, err = o.Attach("MuteBehavior")
	require.NoError(t, err)
	require.NoError(t, o.EnterScene(newTestScene("audio")))

	require.False(t, o.Properties().Bool("audioMuted"))
	require.NoError(t, button.Raise("buttonDown"))
	assert.Equal(t, 1, muteCalls)
	assert.True(t, o.Properties().Bool("audioMuted"))
}

func TestAttachSameInstanceTwice(t *testing.T) {
	h := newHarness(t, AllowShadow, false)
	h.define(t, "A", nil, nil)
	o1 := h.rt.NewOwner("one")
	o2 := h.rt.NewOwner("two")

	inst, err := o1.Attach("A")
	require.NoError(t, err)
	assert.Equal(t, Active, inst.State())
	assert.Equal(t, uint32(1), inst.BehaviorID())

	assert.ErrorIs(t, o2.AddBehavior(inst), ErrAlreadyOwned)
	assert.ErrorIs(t, o1.AddBehavior(inst), ErrAlreadyOwned)
	assert.Equal(t, 1, o1.Len())
	assert.Equal(t, 0, o2.Len())
	assert.ErrorIs(t, o2.RemoveBehavior(inst), ErrNotOwned)
}

func TestDetachIsIdempotent(t *testing.T) {
	h := newHarness(t, AllowShadow, false)
	tpl := h.define(t, "A", nil, nil)
	removes := 0
	require.NoError(t, tpl.SetHooks(Hooks{OnRemove: func(*Instance) error { removes++; return nil }}))

	o := h.rt.NewOwner("obj")
	inst, err := o.Attach("A")
	require.NoError(t, err)
	require.Equal(t, 1, h.rt.LiveInstances())

	inst.Detach()
	inst.Detach()
	assert.NoError(t, o.RemoveBehavior(inst))
	assert.Equal(t, 1, removes)
	assert.Equal(t, Destroyed, inst.State())
	assert.Nil(t, inst.Owner())
	assert.Equal(t, 0, o.Len())
	assert.Equal(t, 0, h.rt.LiveInstances())
	_, ok := h.rt.Resolve(inst.ID())
	assert.False(t, ok)

	assert.ErrorIs(t, o.AddBehavior(inst), ErrInvalidState)
}

func TestLifecycleHookOrder(t *testing.T) {
	h := newHarness(t, AllowShadow, false)
	var log []string
	for _, name := range []string{"First", "Second"} {
		name := name
		tpl := h.define(t, name, nil, nil)
		require.NoError(t, tpl.SetHooks(Hooks{
			OnAdd: func(inst *Instance) error {
				if inst.State() != Attaching {
					t.Errorf("%s add hook saw %s", name, inst.State())
				}
				log = append(log, name+":add")
				return nil
			},
			OnAddToScene:      func(*Instance, Scene) error { log = append(log, name+":enter"); return nil },
			OnRemoveFromScene: func(*Instance, Scene) error { log = append(log, name+":leave"); return nil },
			OnRemove:          func(*Instance) error { log = append(log, name+":remove"); return nil },
		}))
	}

	o := h.rt.NewOwner("obj")
	_, err := o.Attach("First")
	require.NoError(t, err)
	_, err = o.Attach("Second")
	require.NoError(t, err)
	scene := newTestScene("main")
	require.NoError(t, o.EnterScene(scene))
	assert.Same(t, scene, o.Scene())
	assert.ErrorIs(t, o.EnterScene(scene), ErrInvalidState)

	o.Destroy()
	assert.True(t, o.Destroyed())
	assert.False(t, o.InScene())

	assert.Equal(t, []string{
		"First:add", "Second:add",
		"First:enter", "Second:enter",
		"First:leave", "First:remove",
		"Second:leave", "Second:remove",
	}, log)

	_, err = o.Attach("First")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestLateAttachFiresSceneHook(t *testing.T) {
	h := newHarness(t, AllowShadow, false)
	tpl := h.define(t, "Late", nil, nil)
	var scenes []string
	require.NoError(t, tpl.SetHooks(Hooks{
		OnAddToScene: func(_ *Instance, s Scene) error { scenes = append(scenes, s.Name()); return nil },
	}))

	o := h.rt.NewOwner("obj")
	require.NoError(t, o.EnterScene(newTestScene("level1")))
	_, err := o.Attach("Late")
	require.NoError(t, err)
	assert.Equal(t, []string{"level1"}, scenes)

	require.NoError(t, o.LeaveScene())
	assert.NoError(t, o.LeaveScene())
	assert.ErrorIs(t, o.DispatchLifecycle(LifecycleAddToScene), ErrInvalidState)
}

func TestDuplicatePolicyAllowShadow(t *testing.T) {
	h := newHarness(t, AllowShadow, false)
	h.define(t, "SoundBehavior", nil, nil)
	o := h.rt.NewOwner("obj")

	first, err := o.Attach("SoundBehavior")
	require.NoError(t, err)
	second, err := o.Attach("SoundBehavior")
	require.NoError(t, err)

	got, err := o.Behavior("soundbehavior")
	require.NoError(t, err)
	assert.Same(t, first, got, "lookup returns the first match")
	assert.Equal(t, []*Instance{first, second}, o.BehaviorsOf("SoundBehavior"))
	assert.Equal(t, uint32(2), second.BehaviorID())

	byID, err := o.BehaviorByID(2)
	require.NoError(t, err)
	assert.Same(t, second, byID)
}

func TestDuplicatePolicyReject(t *testing.T) {
	h := newHarness(t, RejectDuplicates, false)
	h.define(t, "SoundBehavior", nil, nil)
	o := h.rt.NewOwner("obj")

	first, err := o.Attach("SoundBehavior")
	require.NoError(t, err)
	_, err = o.Attach("SoundBehavior")
	assert.ErrorIs(t, err, ErrDuplicateBehavior)
	assert.Equal(t, 1, o.Len())
	assert.Equal(t, 1, h.rt.LiveInstances(), "rejected instance is released")

	// a different owner may still carry the template
	_, err = h.rt.NewOwner("other").Attach("SoundBehavior")
	assert.NoError(t, err)

	first.Detach()
	_, err = o.Attach("SoundBehavior")
	assert.NoError(t, err)
}

func TestStrictOrderRequiresSiblings(t *testing.T) {
	h := newHarness(t, AllowShadow, true)
	h.define(t, "ButtonBehavior", nil, []string{"buttonDown"})
	mute := h.define(t, "MuteBehavior", []string{"muteAudio"}, nil)
	require.NoError(t, mute.Require("ButtonBehavior"))

	o := h.rt.NewOwner("obj")
	_, err := o.Attach("MuteBehavior")
	assert.ErrorIs(t, err, ErrMissingDependency)

	_, err = o.Attach("ButtonBehavior")
	require.NoError(t, err)
	_, err = o.Attach("MuteBehavior")
	assert.NoError(t, err)
}

func TestCollisionFanOutSurvivesPanics(t *testing.T) {
	h := newHarness(t, AllowShadow, false)
	var failures []event.HandlerFailed
	event.Subscribe(h.bus, func(e event.HandlerFailed) { failures = append(failures, e) })

	var hit []string
	for _, name := range []string{"One", "Two", "Three"} {
		name := name
		tpl := h.define(t, name, nil, nil)
		require.NoError(t, tpl.SetHooks(Hooks{OnCollision: func(inst *Instance, c Collision) error {
			if name == "Two" {
				panic("bad collision handler")
			}
			hit = append(hit, name+">"+c.Other.Name())
			return nil
		}}))
	}
	h.define(t, "Passive", nil, nil)

	o, _ := wire(t, h, "One", "Passive", "Two", "Three")
	other := h.rt.NewOwner("wall")

	err := o.DispatchCollision(other, Collision{Normal: [2]float64{0, 1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad collision handler")
	assert.Equal(t, []string{"One>wall", "Three>wall"}, hit)

	h.bus.SwapBuffers()
	h.bus.DispatchAll()
	require.Len(t, failures, 1)
	assert.Equal(t, "Two", failures[0].Template)
	assert.Equal(t, "onCollision", failures[0].Handler)
	assert.Equal(t, "obj", failures[0].Owner)
}

func TestHookErrorStillActivates(t *testing.T) {
	h := newHarness(t, AllowShadow, false)
	tpl := h.define(t, "Grumpy", nil, nil)
	require.NoError(t, tpl.SetHooks(Hooks{OnAdd: func(*Instance) error { panic("nope") }}))

	o := h.rt.NewOwner("obj")
	inst, err := o.Attach("Grumpy")
	require.NoError(t, err)
	assert.Equal(t, Active, inst.State())
	assert.Equal(t, 1, h.logs.FilterMessage("behavior handler failed").Len())
}

func TestSelfDetachDuringAdd(t *testing.T) {
	h := newHarness(t, AllowShadow, false)
	tpl := h.define(t, "Quitter", nil, nil)
	require.NoError(t, tpl.SetHooks(Hooks{OnAdd: func(inst *Instance) error {
		inst.Detach()
		return nil
	}}))

	o := h.rt.NewOwner("obj")
	_, err := o.Attach("Quitter")
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, 0, o.Len())
	assert.Equal(t, 0, h.rt.LiveInstances())
}

func TestDispatchUpdate(t *testing.T) {
	h := newHarness(t, AllowShadow, false)
	tpl := h.define(t, "Mover", nil, nil)
	require.NoError(t, tpl.AddField(Field{Name: "x", Kind: KindFloat}))
	require.NoError(t, tpl.SetHooks(Hooks{OnUpdate: func(inst *Instance, dt time.Duration) error {
		return inst.SetFloat("x", inst.Float("x")+dt.Seconds()*10)
	}}))

	o, insts := wire(t, h, "Mover")
	require.NoError(t, o.DispatchUpdate(500*time.Millisecond))
	require.NoError(t, o.DispatchUpdate(500*time.Millisecond))
	assert.InDelta(t, 10.0, insts[0].Float("x"), 1e-9)
}

func TestReOrderChangesDispatchOrder(t *testing.T) {
	h := newHarness(t, AllowShadow, false)
	var order []string
	for _, name := range []string{"A", "B", "C"} {
		name := name
		tpl := h.define(t, name, nil, nil)
		require.NoError(t, tpl.SetHooks(Hooks{OnUpdate: func(*Instance, time.Duration) error {
			order = append(order, name)
			return nil
		}}))
	}
	o, insts := wire(t, h, "A", "B", "C")

	require.NoError(t, o.ReOrder(insts[2], 0))
	require.NoError(t, o.ReOrder(insts[0], 99))
	require.NoError(t, o.DispatchUpdate(time.Millisecond))
	assert.Equal(t, []string{"C", "B", "A"}, order)

	stray, err := h.rt.NewInstanceNamed("A")
	require.NoError(t, err)
	assert.ErrorIs(t, o.ReOrder(stray, 0), ErrNotOwned)
}

func TestScheduleAndCancelOnDetach(t *testing.T) {
	h := newHarness(t, AllowShadow, false)
	tpl := h.define(t, "Timer", nil, nil)
	require.NoError(t, tpl.Bind("tick", func(*Instance, Call) error { return nil }))

	o, insts := wire(t, h, "Timer")
	timer := insts[0]

	_, err := timer.Schedule(time.Second, "missing")
	assert.ErrorIs(t, err, ErrNoHandler)

	id, err := timer.Schedule(time.Second, "tick")
	require.NoError(t, err)
	_, err = timer.Schedule(2*time.Second, "tick")
	require.NoError(t, err)
	assert.True(t, timer.Cancel(id))
	assert.False(t, timer.Cancel(id))
	require.Len(t, h.sched.pending, 1)

	require.NoError(t, o.RemoveBehavior(timer))
	assert.Empty(t, h.sched.pending)
	assert.Equal(t, []*Instance{timer}, h.sched.cancelled)

	_, err = timer.Schedule(time.Second, "tick")
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.ErrorIs(t, timer.Call("tick"), ErrInvalidState)
}

func TestClearDetachesEverything(t *testing.T) {
	h := newHarness(t, AllowShadow, false)
	h.define(t, "A", nil, []string{"out"})
	h.define(t, "B", []string{"in"}, nil)
	o, insts := wire(t, h, "A", "B")
	_, err := o.Connect(insts[0], "out", insts[1], "in")
	require.NoError(t, err)

	assert.Equal(t, 2, o.Clear())
	assert.Equal(t, 0, o.Len())
	assert.Equal(t, 0, h.rt.Graph().Len())
	assert.Equal(t, 0, h.rt.LiveInstances())
	assert.Equal(t, 4, h.bus.Pending(), "two attach and two detach notifications")
}
