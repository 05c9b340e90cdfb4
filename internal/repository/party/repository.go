package party

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sharetube/watchparty/internal/store"
	omitnilpointers "github.com/sharetube/watchparty/pkg/omit-nil-pointers"
	"github.com/sharetube/watchparty/pkg/validator"
)

type repo struct {
	store    store.Store
	validate *validator.Validator
	logger   *slog.Logger
}

func NewRepo(s store.Store, logger *slog.Logger) *repo {
	return &repo{
		store:    s,
		validate: validator.NewValidator(),
		logger:   logger,
	}
}

func (r repo) getPartyPath(partyID string) string {
	return store.JoinPath("parties", partyID)
}

func (r repo) getPartyLinkPath(partyID string) string {
	return store.JoinPath("parties", partyID, "partyLink")
}

// updateParty merges fields below path only while the party record exists,
// so a late write never resurrects a removed party.
func (r repo) updateParty(ctx context.Context, partyID, path string, fields map[string]any) error {
	if err := r.store.UpdateIfExists(ctx, path, r.getPartyLinkPath(partyID), fields); err != nil {
		if errors.Is(err, store.ErrGuardMissing) {
			return fmt.Errorf("%w: %s", ErrPartyNotFound, partyID)
		}
		return err
	}

	return nil
}

func (r repo) getParticipantsPath(partyID string) string {
	return store.JoinPath("parties", partyID, "participants")
}

func (r repo) getVideoSettingPath(partyID string) string {
	return store.JoinPath("parties", partyID, "videoSetting")
}

func (r repo) SetParty(ctx context.Context, params *SetPartyParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	party := Party{
		PartyLink: params.PartyLink,
		Participants: map[string]Participant{
			params.HostID: {
				Username: params.HostUsername,
				Type:     ParticipantTypeHost,
			},
		},
		VideoSetting: params.VideoSetting,
	}

	if validationErrors, ok := r.validate.Validate(party); !ok {
		r.logger.DebugContext(ctx, "returned", "error", ErrInvalidParty, "validation", validationErrors)
		return fmt.Errorf("%w: %v", ErrInvalidParty, validationErrors)
	}

	if err := r.store.Write(ctx, r.getPartyPath(params.PartyID), party); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}

func (r repo) IsPartyExists(ctx context.Context, partyID string) (bool, error) {
	snap, err := r.store.Get(ctx, r.getPartyLinkPath(partyID))
	if err != nil {
		return false, err
	}

	return snap.Exists(), nil
}

func (r repo) RemoveParty(ctx context.Context, partyID string) error {
	r.logger.DebugContext(ctx, "called", "party_id", partyID)
	if err := r.store.Write(ctx, r.getPartyPath(partyID), nil); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}

func (r repo) AddParticipant(ctx context.Context, params *AddParticipantParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	if err := r.updateParty(ctx, params.PartyID, r.getParticipantsPath(params.PartyID), map[string]any{
		params.UserID: Participant{
			Username: params.Username,
			Type:     ParticipantTypeParticipant,
		},
	}); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}

func (r repo) RemoveParticipant(ctx context.Context, params *RemoveParticipantParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	if err := r.updateParty(ctx, params.PartyID, r.getParticipantsPath(params.PartyID), map[string]any{
		params.UserID: nil,
	}); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}

// GetParticipants returns the roster. Entries that do not decode into a valid
// participant are skipped.
func (r repo) GetParticipants(ctx context.Context, partyID string) (map[string]Participant, error) {
	snap, err := r.store.Get(ctx, r.getParticipantsPath(partyID))
	if err != nil {
		return nil, err
	}

	return r.decodeParticipants(snap)
}

func (r repo) decodeParticipants(snap store.Snapshot) (map[string]Participant, error) {
	raw, ok := snap.Value.(map[string]any)
	if !ok || len(raw) == 0 {
		return nil, ErrParticipantsNotFound
	}

	participants := make(map[string]Participant, len(raw))
	for id := range raw {
		var p Participant
		if err := snap.Child(id).Decode(&p); err != nil {
			r.logger.Debug("skipping malformed participant", "user_id", id, "error", err)
			continue
		}
		if _, ok := r.validate.Validate(p); !ok {
			r.logger.Debug("skipping invalid participant", "user_id", id)
			continue
		}
		participants[id] = p
	}

	return participants, nil
}

func (r repo) GetVideoSetting(ctx context.Context, partyID string) (VideoSetting, error) {
	snap, err := r.store.Get(ctx, r.getVideoSettingPath(partyID))
	if err != nil {
		return VideoSetting{}, err
	}

	if !snap.Exists() {
		return VideoSetting{}, ErrVideoSettingNotFound
	}

	var vs VideoSetting
	if err := snap.Decode(&vs); err != nil {
		return VideoSetting{}, fmt.Errorf("%w: %w", ErrVideoSettingNotFound, err)
	}

	return vs, nil
}

func (r repo) UpdateVideoSetting(ctx context.Context, params *UpdateVideoSettingParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	fields := omitnilpointers.OmitNilPointers(map[string]any{
		"isPlaying":               params.IsPlaying,
		"currentTimeInSeconds":    params.CurrentTimeInSeconds,
		"currentTimeDurationText": params.CurrentTimeDurationText,
	})
	if len(fields) == 0 {
		return ErrEmptyUpdate
	}

	if err := r.updateParty(ctx, params.PartyID, r.getVideoSettingPath(params.PartyID), fields); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}
