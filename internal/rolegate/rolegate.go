// Package rolegate decides which participant roles may perform which edits.
package rolegate

import (
	"errors"

	"slidesync/internal/presentation/model"
	"slidesync/internal/realtime"
)

var ErrPermissionDenied = errors.New("permission denied")

type Operation int

const (
	AddSlide Operation = iota
	RemoveSlide
	ReorderSlides
	AddBlock
	RemoveBlock
	MoveBlock
	ResizeBlock
	EditText
	EditTitle
)

// Operations lists every mutating operation.
var Operations = []Operation{AddSlide, RemoveSlide, ReorderSlides, AddBlock, RemoveBlock, MoveBlock, ResizeBlock, EditText, EditTitle}

func (op Operation) String() string {
	switch op {
	case AddSlide:
		return "add_slide"
	case RemoveSlide:
		return "remove_slide"
	case ReorderSlides:
		return "reorder_slides"
	case AddBlock:
		return "add_block"
	case RemoveBlock:
		return "remove_block"
	case MoveBlock:
		return "move_block"
	case ResizeBlock:
		return "resize_block"
	case EditText:
		return "edit_text"
	case EditTitle:
		return "edit_title"
	}
	return "unknown"
}

// Structural operations change the slide sequence itself and are reserved to creators.
func (op Operation) Structural() bool {
	return op == AddSlide || op == RemoveSlide || op == ReorderSlides
}

// CanMutate reports whether role may perform op.
func CanMutate(role model.Role, op Operation) bool {
	switch role {
	case model.RoleCreator:
		return true
	case model.RoleEditor:
		return !op.Structural()
	default:
		return false
	}
}

// CanMutateAny reports whether role may perform at least one edit.
func CanMutateAny(role model.Role) bool {
	return role == model.RoleCreator || role == model.RoleEditor
}

// AllowedEvent applies the same policy to a broadcast event. Non-mutating events are always allowed.
func AllowedEvent(role model.Role, eventType string) bool {
	switch eventType {
	case realtime.EventPresentationUpdated:
		return CanMutate(role, AddSlide)
	case realtime.EventSlideUpdated:
		return CanMutate(role, EditText)
	case realtime.EventTitleUpdated:
		return CanMutate(role, EditTitle)
	default:
		return true
	}
}
