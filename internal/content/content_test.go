package content

import (
	"testing"
	"time"

	"github.com/l1jgo/behavior/internal/behavior"
	"github.com/l1jgo/behavior/internal/schedule"
	"github.com/l1jgo/behavior/internal/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type toy struct {
	rt    *behavior.Runtime
	sched *schedule.TickScheduler
	scene *scene.Scene
}

func newToy(t *testing.T) *toy {
	t.Helper()
	sched := schedule.New(nil, 0)
	rt := behavior.NewRuntime(behavior.Options{Scheduler: sched})
	require.NoError(t, Register(rt))
	return &toy{
		rt:    rt,
		sched: sched,
		scene: scene.New(scene.Options{Name: "toy", Runtime: rt}),
	}
}

// build attaches the templates in order, then adds the owner to the scene.
func (y *toy) build(t *testing.T, name string, templates ...string) (*behavior.Owner, []*behavior.Instance) {
	t.Helper()
	o := y.rt.NewOwner(name)
	insts := make([]*behavior.Instance, 0, len(templates))
	for _, tpl := range templates {
		inst, err := o.Attach(tpl)
		require.NoError(t, err)
		insts = append(insts, inst)
	}
	_, err := y.scene.AddObject(o)
	require.NoError(t, err)
	return o, insts
}

func TestRegisterDefinesEveryTemplate(t *testing.T) {
	y := newToy(t)
	for _, name := range []string{Button, Mute, Sound, Music, DealsDamage, TakesDamage, SpawnArea} {
		tpl, err := y.rt.Registry().Find(name)
		require.NoError(t, err, name)
		assert.NotEmpty(t, tpl.Description(), name)
	}
	assert.ErrorIs(t, Register(y.rt), behavior.ErrTemplateRedefined)
}

func TestButtonTogglesMute(t *testing.T) {
	y := newToy(t)
	o, insts := y.build(t, "muteButton", Button, Mute)
	button := insts[0]

	assert.Equal(t, 1, button.ConnectionCount("buttonDown"))
	require.NoError(t, button.Raise("buttonDown"))
	assert.True(t, o.Properties().Bool(PropAudioMuted))
	assert.True(t, y.scene.Properties().Bool(PropAudioMuted))

	require.NoError(t, button.Call("press"))
	assert.False(t, o.Properties().Bool(PropAudioMuted))
	assert.True(t, o.Properties().Bool(PropPressed))
	require.NoError(t, button.Call("release"))
	assert.False(t, o.Properties().Bool(PropPressed))
}

func TestSoundRespectsSceneMute(t *testing.T) {
	y := newToy(t)
	_, insts := y.build(t, "panel", Button, Mute, Sound)
	button, sound := insts[0], insts[2]
	require.NoError(t, sound.SetField("sound", "ToyAssets:click"))

	// mute is wired first, so the first press mutes before the sound runs
	require.NoError(t, button.Call("press"))
	assert.Equal(t, 0, y.scene.Properties().Int(PropSoundsPlayed))

	require.NoError(t, button.Call("press"))
	assert.Equal(t, 1, y.scene.Properties().Int(PropSoundsPlayed))
	assert.Equal(t, "ToyAssets:click", y.scene.Properties().String(PropLastSound))
}

func TestMusicToggle(t *testing.T) {
	y := newToy(t)
	_, insts := y.build(t, "jukebox", Button, Music)
	require.NoError(t, insts[1].SetField("music", "ToyAssets:titleMusic"))

	require.NoError(t, insts[0].Call("press"))
	assert.True(t, y.scene.Properties().Bool(PropMusicPlaying))
	assert.Equal(t, "ToyAssets:titleMusic", y.scene.Properties().String(PropMusic))

	require.NoError(t, insts[0].Call("press"))
	assert.False(t, y.scene.Properties().Bool(PropMusicPlaying))
	_, ok := y.scene.Properties().Get(PropMusic)
	assert.False(t, ok)
}

func TestAudioWithoutButtonLogsAndStaysActive(t *testing.T) {
	y := newToy(t)
	_, insts := y.build(t, "orphan", Sound)
	assert.Equal(t, behavior.Active, insts[0].State())
	assert.Zero(t, insts[0].ConnectionCount("playSound"))
}

func TestDamageExchange(t *testing.T) {
	y := newToy(t)
	ballOwner, ball := y.build(t, "ball", DealsDamage)
	require.NoError(t, ball[0].SetInt("strength", 60))
	require.NoError(t, ball[0].SetBool("deleteOnHit", false))

	soldierOwner, soldier := y.build(t, "soldier", TakesDamage)
	require.NoError(t, soldier[0].SetBool("deleteOnDeath", true))

	var outputs []string
	soldierOwner.OnOutput(func(_ *behavior.Instance, output string, args []any) {
		outputs = append(outputs, output)
	})

	ballObj, ok := y.scene.ObjectOf(ballOwner)
	require.True(t, ok)
	soldierObj, ok := y.scene.ObjectOf(soldierOwner)
	require.True(t, ok)

	y.scene.ReportCollision(ballObj, soldierObj, behavior.Collision{})
	assert.Equal(t, 1, y.scene.DispatchCollisions())
	assert.Equal(t, 40, soldier[0].Int("health"))
	assert.Equal(t, []string{"damaged"}, outputs)

	y.scene.ReportCollision(soldierObj, ballObj, behavior.Collision{})
	y.scene.DispatchCollisions()
	assert.Equal(t, 0, soldier[0].Int("health"))
	assert.Equal(t, []string{"damaged", "damaged", "died"}, outputs)
	assert.True(t, y.scene.Removing(soldierObj))
	assert.False(t, y.scene.Removing(ballObj))

	assert.Equal(t, 1, y.scene.Flush())
	assert.True(t, soldierOwner.Destroyed())
	assert.Equal(t, behavior.Destroyed, soldier[0].State())
}

func TestDeleteOnHit(t *testing.T) {
	y := newToy(t)
	bulletOwner, _ := y.build(t, "bullet", DealsDamage)
	targetOwner, target := y.build(t, "target", TakesDamage)

	bullet, _ := y.scene.ObjectOf(bulletOwner)
	victim, _ := y.scene.ObjectOf(targetOwner)
	y.scene.ReportCollision(bullet, victim, behavior.Collision{})
	y.scene.DispatchCollisions()

	assert.Equal(t, 90, target[0].Int("health"))
	assert.True(t, y.scene.Removing(bullet))
}

func TestTakeDamageRejectsNonNumericAmount(t *testing.T) {
	y := newToy(t)
	_, insts := y.build(t, "soldier", TakesDamage)
	assert.Error(t, insts[0].Call("takeDamage", "lots"))
	require.NoError(t, insts[0].Call("takeDamage", 25.0))
	assert.Equal(t, 75, insts[0].Int("health"))
}

func TestSpawnAreaGenerationInvalidatesStaleTimers(t *testing.T) {
	y := newToy(t)
	y.scene.SetFactory(func(kind string) (*behavior.Owner, error) {
		o := y.rt.NewOwner(kind)
		_, err := o.Attach(TakesDamage)
		return o, err
	})

	o := y.rt.NewOwner("spawner")
	area, err := o.AttachWith(SpawnArea, map[string]string{
		"object":        "soldier",
		"count":         "3",
		"spawnTime":     "1",
		"spawnVariance": "0",
		"spawnLocation": "center",
	})
	require.NoError(t, err)

	var spawned []string
	exhausted := 0
	o.OnOutput(func(_ *behavior.Instance, output string, args []any) {
		switch output {
		case "spawned":
			spawned = append(spawned, args[0].(*behavior.Owner).Name())
		case "exhausted":
			exhausted++
		}
	})

	spawner, err := y.scene.AddObject(o)
	require.NoError(t, err)
	spawner.Position = [2]float64{5, 5}
	require.Equal(t, 1, y.sched.Pending())

	y.sched.Advance(time.Second)
	assert.Len(t, spawned, 1)
	soldier, ok := y.scene.Find("soldier")
	require.True(t, ok)
	assert.Equal(t, [2]float64{5, 5}, soldier.Position)

	// stopping bumps the generation; the armed timer fires but does nothing
	require.NoError(t, area.Call("stopSpawn"))
	y.sched.Advance(time.Second)
	assert.Len(t, spawned, 1)
	assert.Equal(t, 0, y.sched.Pending())

	require.NoError(t, area.Call("startSpawn"))
	y.sched.Advance(time.Second)
	y.sched.Advance(time.Second)
	assert.Len(t, spawned, 3)
	assert.Equal(t, 1, exhausted)

	y.sched.Advance(10 * time.Second)
	assert.Len(t, spawned, 3)
	assert.Equal(t, 4, y.scene.Len())
	assert.Equal(t, 3, area.Int("spawned"))
}

func TestSpawnOffsetStaysInsideArea(t *testing.T) {
	for _, loc := range spawnLocations {
		for i := 0; i < 20; i++ {
			off := spawnOffset(loc, "4 2")
			assert.LessOrEqual(t, off[0], 2.0, loc)
			assert.GreaterOrEqual(t, off[0], -2.0, loc)
			assert.LessOrEqual(t, off[1], 1.0, loc)
			assert.GreaterOrEqual(t, off[1], -1.0, loc)
		}
	}
	assert.Equal(t, [2]float64{}, spawnOffset("Center", "4 2"))
	assert.Equal(t, 1.0, spawnOffset("Top", "4 2")[1])
}
