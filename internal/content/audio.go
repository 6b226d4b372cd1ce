package content

import (
	"github.com/l1jgo/behavior/internal/behavior"
)

func buttonDefinition() definition {
	return definition{
		name:        Button,
		friendly:    "Button",
		category:    "Input",
		description: "Turns presses of a key or touch into buttonDown and buttonUp signals",
		fields: []behavior.Field{
			{Name: "key", Description: "Key bound to the button", Kind: behavior.KindKeybind},
		},
		outputs: []port{
			{"buttonDown", "Button Down", "Raised when the button is pressed"},
			{"buttonUp", "Button Up", "Raised when the button is released"},
		},
		methods: map[string]behavior.MethodFunc{
			"press": func(inst *behavior.Instance, c behavior.Call) error {
				inst.Owner().Properties().Set(PropPressed, true)
				return inst.Raise("buttonDown", c.Args...)
			},
			"release": func(inst *behavior.Instance, c behavior.Call) error {
				inst.Owner().Properties().Set(PropPressed, false)
				return inst.Raise("buttonUp", c.Args...)
			},
		},
	}
}

func muteDefinition() definition {
	return definition{
		name:        Mute,
		friendly:    "Mute",
		category:    "Audio",
		description: "Toggles audio muting whenever the sibling button goes down",
		inputs: []port{
			{"muteAudio", "Mute Audio", "Toggle the mute state"},
		},
		requires: []string{Button},
		methods: map[string]behavior.MethodFunc{
			"muteAudio": func(inst *behavior.Instance, _ behavior.Call) error {
				muted := inst.Owner().Properties().Toggle(PropAudioMuted)
				if props := sceneProps(inst); props != nil {
					props.Set(PropAudioMuted, muted)
				}
				return nil
			},
		},
		hooks: behavior.Hooks{
			OnAddToScene: func(inst *behavior.Instance, _ behavior.Scene) error {
				return connectFromButton(inst, "muteAudio")
			},
		},
	}
}

func soundDefinition() definition {
	return definition{
		name:        Sound,
		friendly:    "Sound",
		category:    "Audio",
		description: "Plays a sound when the sibling button goes down",
		fields: []behavior.Field{
			{Name: "sound", Description: "The sound to play", Kind: behavior.KindAsset, UserData: "AudioAsset"},
			{Name: "volume", Description: "Playback volume", Kind: behavior.KindFloat, Default: "1"},
		},
		inputs: []port{
			{"playSound", "Play Sound", "Play the configured sound"},
		},
		requires: []string{Button},
		methods: map[string]behavior.MethodFunc{
			"playSound": func(inst *behavior.Instance, _ behavior.Call) error {
				props := sceneProps(inst)
				if props == nil || props.Bool(PropAudioMuted) {
					return nil
				}
				props.Set(PropSoundsPlayed, props.Int(PropSoundsPlayed)+1)
				props.Set(PropLastSound, inst.Str("sound"))
				return nil
			},
		},
		hooks: behavior.Hooks{
			OnAddToScene: func(inst *behavior.Instance, _ behavior.Scene) error {
				return connectFromButton(inst, "playSound")
			},
		},
	}
}

func musicDefinition() definition {
	return definition{
		name:        Music,
		friendly:    "Music",
		category:    "Audio",
		description: "Starts or stops the scene music when the sibling button goes down",
		fields: []behavior.Field{
			{Name: "music", Description: "The music track", Kind: behavior.KindAsset, UserData: "AudioAsset"},
		},
		inputs: []port{
			{"toggleMusic", "Toggle Music", "Start or stop the music"},
		},
		requires: []string{Button},
		methods: map[string]behavior.MethodFunc{
			"toggleMusic": func(inst *behavior.Instance, _ behavior.Call) error {
				props := sceneProps(inst)
				if props == nil {
					return nil
				}
				if props.Toggle(PropMusicPlaying) {
					props.Set(PropMusic, inst.Str("music"))
				} else {
					props.Delete(PropMusic)
				}
				return nil
			},
		},
		hooks: behavior.Hooks{
			OnAddToScene: func(inst *behavior.Instance, _ behavior.Scene) error {
				return connectFromButton(inst, "toggleMusic")
			},
		},
	}
}
