package content

import (
	"fmt"

	"github.com/l1jgo/behavior/internal/behavior"
)

func dealsDamageDefinition() definition {
	return definition{
		name:        DealsDamage,
		friendly:    "Deals Damage",
		category:    "Game",
		description: "Set the object to deal damage to TakesDamage objects it collides with",
		fields: []behavior.Field{
			{Name: "strength", Description: "The amount of damage the object deals", Kind: behavior.KindInt, Default: "10"},
			{Name: "deleteOnHit", Description: "Delete the object when it collides", Kind: behavior.KindBool, Default: "1"},
		},
		outputs: []port{
			{"hit", "Hit", "Raised after damage was dealt"},
		},
		hooks: behavior.Hooks{
			OnCollision: dealDamage,
		},
	}
}

func dealDamage(inst *behavior.Instance, c behavior.Collision) error {
	if c.Other == nil {
		return nil
	}
	victim, err := c.Other.Behavior(TakesDamage)
	if err != nil {
		return nil
	}
	strength := inst.Int("strength")
	if err := victim.Call("takeDamage", strength, inst.Owner()); err != nil {
		return err
	}
	if err := inst.Raise("hit", c.Other, strength); err != nil {
		return err
	}
	if inst.Bool("deleteOnHit") {
		return removeOwner(inst)
	}
	return nil
}

func takesDamageDefinition() definition {
	return definition{
		name:        TakesDamage,
		friendly:    "Takes Damage",
		category:    "Game",
		description: "Set the object to take damage from DealsDamage objects that collide with it",
		fields: []behavior.Field{
			{Name: "health", Description: "The amount of health the object has", Kind: behavior.KindInt, Default: "100"},
			{Name: "explodeEffect", Description: "The particle effect to play on death", Kind: behavior.KindAsset, UserData: "ParticleAsset"},
			{Name: "spawnEffect", Description: "The particle effect to play on spawn", Kind: behavior.KindAsset, UserData: "ParticleAsset"},
			{Name: "deathAnim", Description: "The object's death animation, alternative to explodeEffect", Kind: behavior.KindAsset, UserData: "AnimationAsset"},
			{Name: "deleteOnDeath", Description: "Delete the owner upon dying", Kind: behavior.KindBool, Default: "0"},
		},
		inputs: []port{
			{"takeDamage", "Take Damage", "Subtract the first argument from health"},
		},
		outputs: []port{
			{"damaged", "Damaged", "Raised with the remaining health"},
			{"died", "Died", "Raised once when health reaches zero"},
		},
		methods: map[string]behavior.MethodFunc{
			"takeDamage": takeDamage,
		},
	}
}

func takeDamage(inst *behavior.Instance, c behavior.Call) error {
	health := inst.Int("health")
	if health <= 0 {
		return nil
	}
	amount, ok := argInt(c.Arg(0))
	if !ok {
		return fmt.Errorf("%s: takeDamage needs a numeric amount, got %v", inst, c.Arg(0))
	}
	health -= amount
	if health < 0 {
		health = 0
	}
	if err := inst.SetInt("health", health); err != nil {
		return err
	}
	if err := inst.Raise("damaged", health); err != nil {
		return err
	}
	if health > 0 {
		return nil
	}
	if err := inst.Raise("died", inst.Str("explodeEffect"), inst.Str("deathAnim")); err != nil {
		return err
	}
	if inst.Bool("deleteOnDeath") {
		return removeOwner(inst)
	}
	return nil
}

// removeOwner queues the owner's scene object for removal at tick end.
func removeOwner(inst *behavior.Instance) error {
	s, ok := sceneOf(inst)
	if !ok {
		return nil
	}
	return s.RemoveOwner(inst.Owner())
}
