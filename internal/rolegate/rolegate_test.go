package rolegate

import (
	"testing"

	"slidesync/internal/presentation/model"
	"slidesync/internal/realtime"

	"github.com/stretchr/testify/assert"
)

func TestViewerCannotMutateAnything(t *testing.T) {
	for _, op := range Operations {
		assert.False(t, CanMutate(model.RoleViewer, op), op.String())
	}
	assert.False(t, CanMutateAny(model.RoleViewer))
}

func TestCreatorCanMutateEverything(t *testing.T) {
	for _, op := range Operations {
		assert.True(t, CanMutate(model.RoleCreator, op), op.String())
	}
	assert.True(t, CanMutateAny(model.RoleCreator))
}

func TestEditorContentOnly(t *testing.T) {
	for _, op := range []Operation{AddBlock, RemoveBlock, MoveBlock, ResizeBlock, EditText, EditTitle} {
		assert.True(t, CanMutate(model.RoleEditor, op), op.String())
	}
	for _, op := range []Operation{AddSlide, RemoveSlide, ReorderSlides} {
		assert.False(t, CanMutate(model.RoleEditor, op), op.String())
	}
	assert.True(t, CanMutateAny(model.RoleEditor))
}

func TestUnknownRoleIsDenied(t *testing.T) {
	assert.False(t, CanMutate(model.Role("admin"), EditText))
}

func TestAllowedEvent(t *testing.T) {
	assert.True(t, AllowedEvent(model.RoleCreator, realtime.EventPresentationUpdated))
	assert.False(t, AllowedEvent(model.RoleEditor, realtime.EventPresentationUpdated))
	assert.True(t, AllowedEvent(model.RoleEditor, realtime.EventSlideUpdated))
	assert.True(t, AllowedEvent(model.RoleEditor, realtime.EventTitleUpdated))
	assert.False(t, AllowedEvent(model.RoleViewer, realtime.EventSlideUpdated))
	assert.False(t, AllowedEvent(model.RoleViewer, realtime.EventTitleUpdated))
	assert.True(t, AllowedEvent(model.RoleViewer, realtime.EventJoinPresentation))
}

func TestOperationString(t *testing.T) {
	assert.Equal(t, "add_slide", AddSlide.String())
	assert.Equal(t, "unknown", Operation(99).String())
	assert.True(t, ReorderSlides.Structural())
	assert.False(t, EditTitle.Structural())
}
