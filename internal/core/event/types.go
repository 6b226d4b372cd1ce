package event

import "github.com/l1jgo/behavior/internal/core/ecs"

// Notifications published by the behavior runtime. They are informational:
// by the time a subscriber sees them the state change has already happened.

type TemplateRedefined struct {
	Template string
}

type BehaviorAttached struct {
	Owner    string
	Instance ecs.EntityID
	Template string
}

type BehaviorDetached struct {
	Owner    string
	Instance ecs.EntityID
	Template string
}

type BehaviorMissing struct {
	Owner    string
	Template string
}

type HandlerFailed struct {
	Owner    string
	Template string
	Handler  string
	Err      error
}

type ObjectDestroyed struct {
	Object ecs.EntityID
	Name   string
}
