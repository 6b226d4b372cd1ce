// Package content holds the built-in behavior templates: input buttons,
// audio toggles, damage exchange and timed spawning.
package content

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/l1jgo/behavior/internal/behavior"
	"github.com/l1jgo/behavior/internal/scene"
)

// Template names.
const (
	Button      = "ButtonBehavior"
	Mute        = "MuteBehavior"
	Sound       = "SoundBehavior"
	Music       = "MusicBehavior"
	DealsDamage = "DealsDamageBehavior"
	TakesDamage = "TakesDamageBehavior"
	SpawnArea   = "SpawnAreaBehavior"
)

// Owner and scene property names written by the built-in behaviors.
const (
	PropAudioMuted   = "audioMuted"
	PropMusicPlaying = "musicPlaying"
	PropMusic        = "music"
	PropSoundsPlayed = "soundsPlayed"
	PropLastSound    = "lastSound"
	PropPressed      = "pressed"
)

type port struct {
	name, label, description string
}

// definition is one template declaration.
type definition struct {
	name        string
	friendly    string
	category    string
	description string
	fields      []behavior.Field
	inputs      []port
	outputs     []port
	requires    []string
	methods     map[string]behavior.MethodFunc
	hooks       behavior.Hooks
}

func (d definition) define(reg *behavior.Registry) error {
	tpl, err := reg.Define(d.name)
	if err != nil {
		return err
	}
	errs := []error{tpl.Describe(d.friendly, d.category, d.description)}
	for _, f := range d.fields {
		errs = append(errs, tpl.AddField(f))
	}
	for _, p := range d.inputs {
		_, err := tpl.AddInput(p.name, p.label, p.description)
		errs = append(errs, err)
	}
	for _, p := range d.outputs {
		_, err := tpl.AddOutput(p.name, p.label, p.description)
		errs = append(errs, err)
	}
	if len(d.requires) > 0 {
		errs = append(errs, tpl.Require(d.requires...))
	}
	for name, fn := range d.methods {
		errs = append(errs, tpl.Bind(name, fn))
	}
	errs = append(errs, tpl.SetHooks(d.hooks))
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("define %s: %w", d.name, err)
	}
	return nil
}

func definitions() []definition {
	return []definition{
		buttonDefinition(),
		muteDefinition(),
		soundDefinition(),
		musicDefinition(),
		dealsDamageDefinition(),
		takesDamageDefinition(),
		spawnAreaDefinition(),
	}
}

// Register defines every built-in template on rt.
func Register(rt *behavior.Runtime) error {
	var errs []error
	for _, d := range definitions() {
		errs = append(errs, d.define(rt.Registry()))
	}
	return errors.Join(errs...)
}

// sceneOf returns the scene the instance's owner lives in, if it is one of
// ours.
func sceneOf(inst *behavior.Instance) (*scene.Scene, bool) {
	o := inst.Owner()
	if o == nil {
		return nil, false
	}
	s, ok := o.Scene().(*scene.Scene)
	return s, ok
}

// sceneProps returns the scene context, or nil outside a scene.
func sceneProps(inst *behavior.Instance) *behavior.Properties {
	o := inst.Owner()
	if o == nil || o.Scene() == nil {
		return nil
	}
	return o.Scene().Properties()
}

// connectFromButton wires the sibling button's buttonDown to input.
func connectFromButton(inst *behavior.Instance, input string) error {
	button, err := inst.Sibling(Button)
	if err != nil {
		return err
	}
	_, err = button.Connect("buttonDown", inst, input)
	if errors.Is(err, behavior.ErrDuplicateConnection) {
		return nil
	}
	return err
}

// argInt reads a numeric argument delivered from Go or Lua.
func argInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case string:
		i, err := strconv.Atoi(n)
		return i, err == nil
	}
	return 0, false
}
