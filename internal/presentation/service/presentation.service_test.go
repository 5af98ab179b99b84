package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"slidesync/internal/presentation/model"
	"slidesync/internal/presentation/repository"
	"slidesync/internal/rolegate"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roleUpdate struct {
	presentationID, userID string
	role                   model.Role
}

type fakeRooms struct {
	updates []roleUpdate
	removed []string
}

func (f *fakeRooms) UpdateRole(presentationID, userID string, role model.Role) {
	f.updates = append(f.updates, roleUpdate{presentationID, userID, role})
}

func (f *fakeRooms) RemovePresentation(presentationID string) {
	f.removed = append(f.removed, presentationID)
}

func setup(t *testing.T) (*PresentationService, sqlmock.Sqlmock, *fakeRooms) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	rooms := &fakeRooms{}
	return NewPresentationService(repository.NewPresentationRepository(db), rooms), mock, rooms
}

func expectRole(mock sqlmock.Sqlmock, id, userID, ownerID, role string) {
	mock.ExpectQuery("SELECT p.owner_id").WithArgs(id, userID).
		WillReturnRows(sqlmock.NewRows([]string{"owner_id", "role"}).AddRow(ownerID, role))
}

func expectGet(mock sqlmock.Sqlmock, id, ownerID, slides string) {
	mock.ExpectQuery("SELECT id, title, owner_id, slides, updated_at FROM presentations").WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "owner_id", "slides", "updated_at"}).
			AddRow(id, "Deck", ownerID, []byte(slides), time.Now()))
}

const twoSlides = `[{"order":0,"TextBlocks":[]},{"order":1,"TextBlocks":[]}]`

func TestCreateDefaultsTitleAndOneSlide(t *testing.T) {
	svc, mock, _ := setup(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO presentations").
		WithArgs(sqlmock.AnyArg(), DefaultTitle, "u1", []byte(`[{"order":0,"TextBlocks":[]}]`)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO participants").
		WithArgs(sqlmock.AnyArg(), "u1", "alice", "creator").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	id, err := svc.Create(context.Background(), "u1", "alice", "   ")
	require.NoError(t, err)
	assert.Len(t, id, 36)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetDecodesSlides(t *testing.T) {
	svc, mock, _ := setup(t)
	expectRole(mock, "p1", "u2", "u1", "viewer")
	expectGet(mock, "p1", "u1", twoSlides)

	doc, err := svc.Get(context.Background(), "p1", "u2")
	require.NoError(t, err)
	assert.Equal(t, "p1", doc.ID)
	assert.Len(t, doc.Slides, 2)
	assert.NotNil(t, doc.Slides[0].TextBlocks)
}

func TestGetRejectsStrangers(t *testing.T) {
	svc, mock, _ := setup(t)
	expectRole(mock, "p1", "u9", "u1", "")

	_, err := svc.Get(context.Background(), "p1", "u9")
	assert.ErrorIs(t, err, repository.ErrNotParticipant)
}

func TestSaveViewerDenied(t *testing.T) {
	svc, mock, _ := setup(t)
	expectRole(mock, "p1", "u2", "u1", "viewer")

	err := svc.Save(context.Background(), "p1", "u2", model.SaveRequest{Title: "x", Slides: []model.Slide{{}}})
	assert.ErrorIs(t, err, rolegate.ErrPermissionDenied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveEditorCannotChangeSlideCount(t *testing.T) {
	svc, mock, _ := setup(t)
	expectRole(mock, "p1", "u2", "u1", "editor")
	expectGet(mock, "p1", "u1", twoSlides)

	err := svc.Save(context.Background(), "p1", "u2", model.SaveRequest{Title: "x", Slides: []model.Slide{{}}})
	assert.ErrorIs(t, err, rolegate.ErrPermissionDenied)
}

func TestSaveRenumbersSlides(t *testing.T) {
	svc, mock, _ := setup(t)
	expectRole(mock, "p1", "u1", "u1", "creator")

	req := model.SaveRequest{Title: "Renamed", Slides: []model.Slide{
		{Order: 7, TextBlocks: []model.TextBlock{{Content: "a", X: 1, Y: 2, Width: 3, Height: 4}}},
		{Order: 3},
	}}
	want, err := json.Marshal([]model.Slide{
		{Order: 0, TextBlocks: []model.TextBlock{{Content: "a", X: 1, Y: 2, Width: 3, Height: 4}}},
		{Order: 1, TextBlocks: []model.TextBlock{}},
	})
	require.NoError(t, err)

	mock.ExpectExec("UPDATE presentations SET title").
		WithArgs("Renamed", want, "p1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, svc.Save(context.Background(), "p1", "u1", req))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRejectsEmptyDeck(t *testing.T) {
	svc, mock, _ := setup(t)
	expectRole(mock, "p1", "u1", "u1", "creator")

	err := svc.Save(context.Background(), "p1", "u1", model.SaveRequest{Title: "x"})
	assert.ErrorIs(t, err, ErrEmptyPresentation)
}

func TestJoinAddsViewer(t *testing.T) {
	svc, mock, _ := setup(t)
	expectGet(mock, "p1", "u1", twoSlides)
	mock.ExpectQuery("INSERT INTO participants").
		WithArgs("p1", "u2", "bob", "viewer").
		WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("viewer"))

	p, err := svc.Join(context.Background(), "p1", "u2", "bob")
	require.NoError(t, err)
	assert.Equal(t, model.Participant{UserID: "u2", Username: "bob", Role: model.RoleViewer}, p)
}

func TestChangeRoleNotifiesRoom(t *testing.T) {
	svc, mock, rooms := setup(t)
	expectRole(mock, "p1", "u1", "u1", "creator")
	expectGet(mock, "p1", "u1", twoSlides)
	mock.ExpectExec("UPDATE participants SET role").
		WithArgs("editor", "p1", "u2").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := svc.ChangeRole(context.Background(), "p1", "u1", model.RoleChangeRequest{UserID: "u2", Role: model.RoleEditor})
	require.NoError(t, err)
	assert.Equal(t, []roleUpdate{{"p1", "u2", model.RoleEditor}}, rooms.updates)
}

func TestChangeRoleRules(t *testing.T) {
	t.Run("editor cannot change roles", func(t *testing.T) {
		svc, mock, rooms := setup(t)
		expectRole(mock, "p1", "u2", "u1", "editor")
		err := svc.ChangeRole(context.Background(), "p1", "u2", model.RoleChangeRequest{UserID: "u3", Role: model.RoleEditor})
		assert.ErrorIs(t, err, rolegate.ErrPermissionDenied)
		assert.Empty(t, rooms.updates)
	})

	t.Run("creator role cannot be granted", func(t *testing.T) {
		svc, mock, _ := setup(t)
		expectRole(mock, "p1", "u1", "u1", "creator")
		err := svc.ChangeRole(context.Background(), "p1", "u1", model.RoleChangeRequest{UserID: "u2", Role: model.RoleCreator})
		assert.ErrorIs(t, err, ErrInvalidRole)
	})

	t.Run("owner cannot be demoted", func(t *testing.T) {
		svc, mock, _ := setup(t)
		expectRole(mock, "p1", "u1", "u1", "creator")
		expectGet(mock, "p1", "u1", twoSlides)
		err := svc.ChangeRole(context.Background(), "p1", "u1", model.RoleChangeRequest{UserID: "u1", Role: model.RoleViewer})
		assert.ErrorIs(t, err, rolegate.ErrPermissionDenied)
	})
}

func TestDeleteDisconnectsRoom(t *testing.T) {
	svc, mock, rooms := setup(t)
	expectGet(mock, "p1", "u1", twoSlides)
	mock.ExpectExec("DELETE FROM presentations").WithArgs("p1").WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, svc.Delete(context.Background(), "p1", "u1"))
	assert.Equal(t, []string{"p1"}, rooms.removed)

	expectGet(mock, "p1", "u1", twoSlides)
	assert.ErrorIs(t, svc.Delete(context.Background(), "p1", "u2"), rolegate.ErrPermissionDenied)
}
