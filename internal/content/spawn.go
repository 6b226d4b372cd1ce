package content

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/l1jgo/behavior/internal/behavior"
)

var spawnLocations = []string{"Area", "Edges", "Center", "Top", "Bottom", "Left", "Right"}

func spawnAreaDefinition() definition {
	return definition{
		name:        SpawnArea,
		friendly:    "Spawn Area",
		category:    "AI",
		description: "Spawns objects inside the area of this object",
		fields: []behavior.Field{
			{Name: "object", Description: "The kind of object to spawn", Kind: behavior.KindObject, UserData: "sceneObject"},
			{Name: "count", Description: "The number of objects to spawn (-1 for infinite)", Kind: behavior.KindInt, Default: "50"},
			{Name: "spawnTime", Description: "The time between spawns (seconds)", Kind: behavior.KindFloat, Default: "2"},
			{Name: "spawnVariance", Description: "The variance in the spawn time (seconds)", Kind: behavior.KindFloat, Default: "1"},
			{Name: "autoSpawn", Description: "Automatically start/stop spawning", Kind: behavior.KindBool, Default: "1"},
			{Name: "spawnLocation", Description: "The area in which objects can be spawned", Kind: behavior.KindEnum, Default: "Area", Choices: spawnLocations},
			{Name: "size", Description: "Width and height of the spawn area", Kind: behavior.KindVector2, Default: "10 10"},
			{Name: "spawned", Description: "Objects spawned so far", Kind: behavior.KindInt},
			{Name: "generation", Description: "Bumped on start and stop; timers carry the value they were armed with", Kind: behavior.KindInt},
		},
		inputs: []port{
			{"startSpawn", "Start Spawning", "Begin the spawn timer"},
			{"stopSpawn", "Stop Spawning", "Cancel pending spawns"},
		},
		outputs: []port{
			{"spawned", "Spawned", "Raised with the owner of each spawned object"},
			{"exhausted", "Exhausted", "Raised when count objects have been spawned"},
		},
		methods: map[string]behavior.MethodFunc{
			"startSpawn": func(inst *behavior.Instance, _ behavior.Call) error {
				gen, err := bumpGeneration(inst)
				if err != nil {
					return err
				}
				return armSpawn(inst, gen)
			},
			"stopSpawn": func(inst *behavior.Instance, _ behavior.Call) error {
				_, err := bumpGeneration(inst)
				return err
			},
			"spawn": spawnOne,
		},
		hooks: behavior.Hooks{
			OnAddToScene: func(inst *behavior.Instance, _ behavior.Scene) error {
				if !inst.Bool("autoSpawn") {
					return nil
				}
				return inst.Call("startSpawn")
			},
			OnRemoveFromScene: func(inst *behavior.Instance, _ behavior.Scene) error {
				_, err := bumpGeneration(inst)
				return err
			},
		},
	}
}

func bumpGeneration(inst *behavior.Instance) (int, error) {
	gen := inst.Int("generation") + 1
	return gen, inst.SetInt("generation", gen)
}

func exhausted(inst *behavior.Instance) bool {
	count := inst.Int("count")
	return count >= 0 && inst.Int("spawned") >= count
}

// armSpawn schedules the next spawn tagged with gen. A timer whose tag no
// longer matches the current generation does nothing when it fires.
func armSpawn(inst *behavior.Instance, gen int) error {
	if exhausted(inst) {
		return nil
	}
	delay := inst.Float("spawnTime")
	if v := inst.Float("spawnVariance"); v > 0 {
		delay += (rand.Float64()*2 - 1) * v
	}
	if delay < 0 {
		delay = 0
	}
	_, err := inst.Schedule(time.Duration(delay*float64(time.Second)), "spawn", gen)
	return err
}

func spawnOne(inst *behavior.Instance, c behavior.Call) error {
	gen := inst.Int("generation")
	if tag, ok := argInt(c.Arg(0)); ok && tag != gen {
		return nil
	}
	if exhausted(inst) {
		return nil
	}
	s, ok := sceneOf(inst)
	if !ok {
		return fmt.Errorf("%s: spawning needs a scene", inst)
	}
	base, _ := s.PositionOf(inst.Owner())
	off := spawnOffset(inst.Str("spawnLocation"), inst.Str("size"))
	kind := inst.Str("object")
	if kind == "" {
		return fmt.Errorf("%s: no object kind to spawn", inst)
	}
	obj, err := s.SpawnAt(kind, [2]float64{base[0] + off[0], base[1] + off[1]})
	if err != nil {
		return err
	}
	if err := inst.SetInt("spawned", inst.Int("spawned")+1); err != nil {
		return err
	}
	if err := inst.Raise("spawned", obj.Owner); err != nil {
		return err
	}
	if exhausted(inst) {
		return inst.Raise("exhausted")
	}
	return armSpawn(inst, gen)
}

// spawnOffset picks a point relative to the area center.
func spawnOffset(location, size string) [2]float64 {
	var w, h float64
	if parts := strings.Fields(size); len(parts) == 2 {
		w, _ = strconv.ParseFloat(parts[0], 64)
		h, _ = strconv.ParseFloat(parts[1], 64)
	}
	hw, hh := w/2, h/2
	span := func(half float64) float64 { return (rand.Float64()*2 - 1) * half }

	switch location {
	case "Center":
		return [2]float64{}
	case "Top":
		return [2]float64{span(hw), hh}
	case "Bottom":
		return [2]float64{span(hw), -hh}
	case "Left":
		return [2]float64{-hw, span(hh)}
	case "Right":
		return [2]float64{hw, span(hh)}
	case "Edges":
		return spawnOffset(spawnLocations[3+rand.Intn(4)], size)
	default:
		return [2]float64{span(hw), span(hh)}
	}
}
