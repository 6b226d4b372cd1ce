package behavior

import "errors"

// Authoring errors. They indicate a content bug and are returned wrapped with
// the identity of the template or instance involved, so callers match them
// with errors.Is.
var (
	ErrTemplateNotFound     = errors.New("behavior template not found")
	ErrTemplateRedefined    = errors.New("behavior template already defined")
	ErrInvalidState         = errors.New("invalid state")
	ErrDuplicateDeclaration = errors.New("duplicate declaration")
	ErrUnknownSignal        = errors.New("unknown signal")
	ErrUnknownField         = errors.New("unknown field")
	ErrInvalidFieldValue    = errors.New("invalid field value")
	ErrNoHandler            = errors.New("no handler bound")
	ErrAlreadyOwned         = errors.New("behavior already owned")
	ErrNotOwned             = errors.New("behavior not owned by this object")
	ErrDuplicateBehavior    = errors.New("behavior template already attached")
	ErrMissingDependency    = errors.New("required sibling behavior not attached")
	ErrBehaviorNotFound     = errors.New("behavior not found")
	ErrDuplicateConnection  = errors.New("connection already exists")
	ErrConnectionNotFound   = errors.New("connection not found")
)
