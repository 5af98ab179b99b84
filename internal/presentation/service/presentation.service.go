package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"slidesync/internal/deck"
	"slidesync/internal/presentation/model"
	"slidesync/internal/presentation/repository"
	"slidesync/internal/rolegate"
	"slidesync/pkg/logger"

	"github.com/google/uuid"
)

const DefaultTitle = "Untitled Presentation"

var (
	ErrInvalidRole       = errors.New("invalid role: must be editor or viewer")
	ErrEmptyPresentation = errors.New("a presentation needs at least one slide")
)

// RoomNotifier pushes server-side changes to the clients connected to a presentation.
type RoomNotifier interface {
	UpdateRole(presentationID, userID string, role model.Role)
	RemovePresentation(presentationID string)
}

type PresentationService struct {
	Repo  *repository.PresentationRepository
	Rooms RoomNotifier
}

func NewPresentationService(repo *repository.PresentationRepository, rooms RoomNotifier) *PresentationService {
	return &PresentationService{Repo: repo, Rooms: rooms}
}

// Create stores a fresh one-slide presentation owned by userID and returns its id.
func (s *PresentationService) Create(ctx context.Context, userID, username, title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = DefaultTitle
	}
	doc := deck.New(title)
	slides, err := json.Marshal(doc.Slides)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	rec := model.PresentationRecord{ID: id, Title: doc.Title, OwnerID: userID, Slides: slides}
	if err := s.Repo.Create(ctx, rec, username); err != nil {
		return "", err
	}
	logger.Sugar.Infof("User %s created presentation %s", userID, id)
	return id, nil
}

// Get returns the presentation if userID may see it.
func (s *PresentationService) Get(ctx context.Context, id, userID string) (model.Presentation, error) {
	if _, err := s.Repo.RoleFor(ctx, id, userID); err != nil {
		return model.Presentation{}, err
	}
	rec, err := s.Repo.Get(ctx, id)
	if err != nil {
		return model.Presentation{}, err
	}
	return decode(rec)
}

// Save replaces title and slides. Viewers are refused, and editors may not
// change the number of slides.
func (s *PresentationService) Save(ctx context.Context, id, userID string, req model.SaveRequest) error {
	role, err := s.Repo.RoleFor(ctx, id, userID)
	if err != nil {
		return err
	}
	if !rolegate.CanMutateAny(role) {
		return rolegate.ErrPermissionDenied
	}
	if len(req.Slides) == 0 {
		return ErrEmptyPresentation
	}

	if role == model.RoleEditor {
		rec, err := s.Repo.Get(ctx, id)
		if err != nil {
			return err
		}
		current, err := decode(rec)
		if err != nil {
			return err
		}
		if len(current.Slides) != len(req.Slides) {
			logger.Sugar.Warnf("Permission Denied: editor %s tried to change the slide count of %s", userID, id)
			return rolegate.ErrPermissionDenied
		}
	}

	doc := deck.Renumber(model.Presentation{ID: id, Title: req.Title, Slides: req.Slides})
	slides, err := json.Marshal(doc.Slides)
	if err != nil {
		return err
	}
	return s.Repo.UpdateContent(ctx, id, doc.Title, slides)
}

// Role returns the caller's participant entry.
func (s *PresentationService) Role(ctx context.Context, id, userID, username string) (model.Participant, error) {
	role, err := s.Repo.RoleFor(ctx, id, userID)
	if err != nil {
		return model.Participant{}, err
	}
	return model.Participant{UserID: userID, Username: username, Role: role}, nil
}

// Join adds the caller as a viewer the first time; later joins keep the stored role.
func (s *PresentationService) Join(ctx context.Context, id, userID, username string) (model.Participant, error) {
	rec, err := s.Repo.Get(ctx, id)
	if err != nil {
		return model.Participant{}, err
	}
	initial := model.RoleViewer
	if rec.OwnerID == userID {
		initial = model.RoleCreator
	}
	role, err := s.Repo.AddParticipant(ctx, id, userID, username, initial)
	if err != nil {
		return model.Participant{}, err
	}
	if rec.OwnerID == userID {
		role = model.RoleCreator
	}
	return model.Participant{UserID: userID, Username: username, Role: role}, nil
}

// ChangeRole lets the creator promote or demote another participant. Connected
// clients receive a fresh roster.
func (s *PresentationService) ChangeRole(ctx context.Context, id, callerID string, req model.RoleChangeRequest) error {
	callerRole, err := s.Repo.RoleFor(ctx, id, callerID)
	if err != nil {
		return err
	}
	if callerRole != model.RoleCreator {
		return rolegate.ErrPermissionDenied
	}
	if req.Role != model.RoleEditor && req.Role != model.RoleViewer {
		return ErrInvalidRole
	}

	rec, err := s.Repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if rec.OwnerID == req.UserID {
		return fmt.Errorf("cannot change the owner's role: %w", rolegate.ErrPermissionDenied)
	}

	if err := s.Repo.SetRole(ctx, id, req.UserID, req.Role); err != nil {
		return err
	}
	logger.Sugar.Infof("User %s set %s to %s in presentation %s", callerID, req.UserID, req.Role, id)
	if s.Rooms != nil {
		s.Rooms.UpdateRole(id, req.UserID, req.Role)
	}
	return nil
}

func (s *PresentationService) Participants(ctx context.Context, id, userID string) ([]model.Participant, error) {
	if _, err := s.Repo.RoleFor(ctx, id, userID); err != nil {
		return nil, err
	}
	return s.Repo.ListParticipants(ctx, id)
}

// Delete removes the presentation and disconnects its room. Only the owner may delete.
func (s *PresentationService) Delete(ctx context.Context, id, userID string) error {
	rec, err := s.Repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if rec.OwnerID != userID {
		return rolegate.ErrPermissionDenied
	}
	if err := s.Repo.Delete(ctx, id); err != nil {
		return err
	}
	if s.Rooms != nil {
		s.Rooms.RemovePresentation(id)
	}
	return nil
}

func decode(rec *model.PresentationRecord) (model.Presentation, error) {
	var slides []model.Slide
	if len(rec.Slides) > 0 {
		if err := json.Unmarshal(rec.Slides, &slides); err != nil {
			logger.Sugar.Errorf("Stored slides of %s are unreadable: %v", rec.ID, err)
			return model.Presentation{}, err
		}
	}
	return model.Presentation{ID: rec.ID, Title: rec.Title, Slides: deck.CloneSlides(slides)}, nil
}
