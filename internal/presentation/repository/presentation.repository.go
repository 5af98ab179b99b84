package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"slidesync/internal/presentation/model"
	"slidesync/pkg/logger"
)

var (
	ErrNotFound       = errors.New("presentation not found")
	ErrNotParticipant = errors.New("user is not a participant")
)

type PresentationRepository struct {
	DB *sql.DB
}

func NewPresentationRepository(db *sql.DB) *PresentationRepository {
	return &PresentationRepository{DB: db}
}

// Create stores a new presentation and records its owner as the creator participant.
func (r *PresentationRepository) Create(ctx context.Context, rec model.PresentationRecord, ownerName string) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		logger.Sugar.Errorf("Failed to begin create transaction: %v", err)
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO presentations (id, title, owner_id, slides, updated_at) VALUES ($1, $2, $3, $4, NOW())`,
		rec.ID, rec.Title, rec.OwnerID, []byte(rec.Slides))
	if err != nil {
		logger.Sugar.Errorf("Failed to create presentation: %v", err)
		return err
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO participants (presentation_id, user_id, username, role) VALUES ($1, $2, $3, $4)`,
		rec.ID, rec.OwnerID, ownerName, string(model.RoleCreator))
	if err != nil {
		logger.Sugar.Errorf("Failed to add creator to presentation %s: %v", rec.ID, err)
		return err
	}
	return tx.Commit()
}

func (r *PresentationRepository) Get(ctx context.Context, id string) (*model.PresentationRecord, error) {
	var rec model.PresentationRecord
	var slides []byte
	err := r.DB.QueryRowContext(ctx, "SELECT id, title, owner_id, slides, updated_at FROM presentations WHERE id = $1", id).
		Scan(&rec.ID, &rec.Title, &rec.OwnerID, &slides, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to get presentation %s: %v", id, err)
		return nil, err
	}
	rec.Slides = slides
	return &rec, nil
}

func (r *PresentationRepository) UpdateContent(ctx context.Context, id, title string, slides []byte) error {
	result, err := r.DB.ExecContext(ctx, `UPDATE presentations SET title = $1, slides = $2, updated_at = NOW() WHERE id = $3`, title, slides, id)
	if err != nil {
		logger.Sugar.Errorf("Failed to update content for presentation %s: %v", id, err)
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// RoleFor returns the user's role. The owner is always a creator, whatever the
// participants table says.
func (r *PresentationRepository) RoleFor(ctx context.Context, presentationID, userID string) (model.Role, error) {
	var ownerID, role string
	err := r.DB.QueryRowContext(ctx, `
		SELECT p.owner_id, COALESCE(pt.role, '')
		FROM presentations p
		LEFT JOIN participants pt ON pt.presentation_id = p.id AND pt.user_id = $2
		WHERE p.id = $1`, presentationID, userID).Scan(&ownerID, &role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to get role of %s in presentation %s: %v", userID, presentationID, err)
		return "", err
	}
	if ownerID == userID {
		return model.RoleCreator, nil
	}
	if role == "" {
		return "", ErrNotParticipant
	}
	return model.ParseRole(role), nil
}

// AddParticipant inserts the user with role, or refreshes the username of an
// existing participant. It returns the role actually stored.
func (r *PresentationRepository) AddParticipant(ctx context.Context, presentationID, userID, username string, role model.Role) (model.Role, error) {
	var stored string
	err := r.DB.QueryRowContext(ctx, `
		INSERT INTO participants (presentation_id, user_id, username, role, joined_at) VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (presentation_id, user_id) DO UPDATE SET username = EXCLUDED.username
		RETURNING role`, presentationID, userID, username, string(role)).Scan(&stored)
	if err != nil {
		logger.Sugar.Errorf("Failed to add participant %s to presentation %s: %v", userID, presentationID, err)
		return "", err
	}
	return model.ParseRole(stored), nil
}

func (r *PresentationRepository) SetRole(ctx context.Context, presentationID, userID string, role model.Role) error {
	if !role.Valid() {
		return fmt.Errorf("invalid role %q", role)
	}
	result, err := r.DB.ExecContext(ctx, "UPDATE participants SET role = $1 WHERE presentation_id = $2 AND user_id = $3", string(role), presentationID, userID)
	if err != nil {
		logger.Sugar.Errorf("Failed to set role of %s in presentation %s: %v", userID, presentationID, err)
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotParticipant
	}
	return nil
}

func (r *PresentationRepository) ListParticipants(ctx context.Context, presentationID string) ([]model.Participant, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT user_id, username, role FROM participants WHERE presentation_id = $1 ORDER BY joined_at ASC, user_id ASC", presentationID)
	if err != nil {
		logger.Sugar.Errorf("Failed to list participants for presentation %s: %v", presentationID, err)
		return nil, err
	}
	defer rows.Close()

	participants := []model.Participant{}
	for rows.Next() {
		var p model.Participant
		var role string
		if err := rows.Scan(&p.UserID, &p.Username, &role); err != nil {
			logger.Sugar.Warnf("Skipping unreadable participant row: %v", err)
			continue
		}
		p.Role = model.ParseRole(role)
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

// Delete removes a presentation and, by cascade, its participants.
func (r *PresentationRepository) Delete(ctx context.Context, id string) error {
	result, err := r.DB.ExecContext(ctx, "DELETE FROM presentations WHERE id = $1", id)
	if err != nil {
		logger.Sugar.Errorf("Failed to delete presentation %s: %v", id, err)
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
