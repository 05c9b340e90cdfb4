package party

import (
	"context"
	"errors"
	"fmt"

	"github.com/sharetube/watchparty/internal/metrics"
	partyrepo "github.com/sharetube/watchparty/internal/repository/party"
	"github.com/sharetube/watchparty/pkg/deeplink"
	"github.com/sharetube/watchparty/pkg/randstr"
)

type HostPartyParams struct {
	Username string `json:"username" validate:"required,max=64"`
}

type HostPartyResponse struct {
	PartyID   string `json:"party_id"`
	UserID    string `json:"user_id"`
	PartyLink string `json:"party_link"`
}

type JoinPartyParams struct {
	Username string `json:"username" validate:"required,max=64"`
}

type JoinPartyResponse struct {
	PartyID string `json:"party_id"`
	UserID  string `json:"user_id"`
}

func (s *service) validateParams(params any) error {
	if validationErrors, ok := s.validate.Validate(params); !ok {
		return fmt.Errorf("%w: %v", ErrInvalidParams, validationErrors)
	}

	return nil
}

// HostParty creates a party around the loaded video. It returns
// ErrNothingToHost and writes nothing when no video with a url and subtitle
// is loaded.
func (s *service) HostParty(ctx context.Context, params *HostPartyParams) (HostPartyResponse, error) {
	if params == nil {
		return HostPartyResponse{}, ErrInvalidParams
	}
	if err := s.validateParams(params); err != nil {
		return HostPartyResponse{}, err
	}

	var resp HostPartyResponse
	err := s.do(ctx, func() error {
		var err error
		resp, err = s.hostParty(params)
		return err
	})

	return resp, err
}

func (s *service) hostParty(params *HostPartyParams) (HostPartyResponse, error) {
	if s.session.Active() {
		return HostPartyResponse{}, ErrAlreadyInParty
	}

	media, ok := s.player.Media()
	if !ok || media.URL == "" || media.Subtitle == "" {
		s.logger.Debug("nothing to host, no video loaded")
		return HostPartyResponse{}, ErrNothingToHost
	}

	partyID, err := s.generator.GenerateRandomString(randstr.PartyIDLength)
	if err != nil {
		return HostPartyResponse{}, fmt.Errorf("failed to generate party id: %w", err)
	}
	userID, err := s.generator.GenerateRandomString(randstr.UserIDLength)
	if err != nil {
		return HostPartyResponse{}, fmt.Errorf("failed to generate user id: %w", err)
	}
	partyLink := deeplink.Build(s.cfg.LinkScheme, partyID)

	s.setSession(Session{
		PartyID:   partyID,
		UserID:    userID,
		PartyLink: partyLink,
		Role:      RoleHost,
	})
	m := s.enter(partyID)

	seconds := s.player.CurrentTime()
	isPlaying := s.player.IsPlaying()
	setPartyParams := partyrepo.SetPartyParams{
		PartyID:      partyID,
		PartyLink:    partyLink,
		HostID:       userID,
		HostUsername: params.Username,
		VideoSetting: partyrepo.VideoSetting{
			IsPlaying:               isPlaying,
			CurrentTimeDurationText: formatTime(seconds),
			CurrentTimeInSeconds:    seconds,
			URL:                     media.URL,
			Title:                   media.Title,
			Subtitle:                media.Subtitle,
		},
	}
	s.writer.submit("set_party", func(ctx context.Context) error {
		return s.partyRepo.SetParty(ctx, &setPartyParams)
	}, s.expectOwnWrite(m, seconds, &isPlaying))

	m.logger.Info("party hosted", "user_id", userID)
	metrics.PartiesHosted.Inc()
	s.emit(Event{Kind: EventPartyEntered, PartyID: partyID, Role: RoleHost})

	return HostPartyResponse{
		PartyID:   partyID,
		UserID:    userID,
		PartyLink: partyLink,
	}, nil
}

// JoinParty joins the pending party. Joining a party that does not exist
// writes nothing; the membership stays so a later creation or deletion is
// observed.
func (s *service) JoinParty(ctx context.Context, params *JoinPartyParams) (JoinPartyResponse, error) {
	if params == nil {
		return JoinPartyResponse{}, ErrInvalidParams
	}
	if err := s.validateParams(params); err != nil {
		return JoinPartyResponse{}, err
	}

	var resp JoinPartyResponse
	err := s.do(ctx, func() error {
		var err error
		resp, err = s.joinParty(params)
		return err
	})

	return resp, err
}

func (s *service) joinParty(params *JoinPartyParams) (JoinPartyResponse, error) {
	if s.session.Active() {
		return JoinPartyResponse{}, ErrAlreadyInParty
	}

	partyID := s.pendingPartyID
	if partyID == "" {
		return JoinPartyResponse{}, ErrNoPendingParty
	}

	userID, err := s.generator.GenerateRandomString(randstr.UserIDLength)
	if err != nil {
		return JoinPartyResponse{}, fmt.Errorf("failed to generate user id: %w", err)
	}
	s.setSession(Session{
		PartyID: partyID,
		UserID:  userID,
		Role:    RoleParticipant,
	})
	m := s.enter(partyID)

	addParticipantParams := partyrepo.AddParticipantParams{
		PartyID:  partyID,
		UserID:   userID,
		Username: params.Username,
	}
	s.writer.enqueue("add_participant", func(ctx context.Context) error {
		exists, err := s.partyRepo.IsPartyExists(ctx, partyID)
		if err != nil {
			return fmt.Errorf("failed to check party: %w", err)
		}

		if !exists {
			m.logger.Info("party does not exist, not joining roster")
			return nil
		}

		if err := s.partyRepo.AddParticipant(ctx, &addParticipantParams); err != nil {
			if errors.Is(err, partyrepo.ErrPartyNotFound) {
				m.logger.Info("party removed before joining roster")
				return nil
			}
			return err
		}

		return nil
	})

	m.logger.Info("party joined", "user_id", userID)
	metrics.PartiesJoined.Inc()
	s.emit(Event{Kind: EventPartyEntered, PartyID: partyID, Role: RoleParticipant})

	return JoinPartyResponse{
		PartyID: partyID,
		UserID:  userID,
	}, nil
}

// LeaveParty exits the party locally right away. The host then deletes the
// whole record, a participant removes only its own roster entry.
func (s *service) LeaveParty(ctx context.Context) error {
	return s.do(ctx, func() error {
		if !s.session.Active() {
			return ErrNotInParty
		}

		s.leaveParty()
		return nil
	})
}

func (s *service) leaveParty() {
	sess := s.session
	s.exit()
	s.emit(Event{Kind: EventPartyExited, PartyID: sess.PartyID, Role: sess.Role})
	metrics.PartiesLeft.WithLabelValues(sess.Role.String()).Inc()

	s.writer.enqueue("leave_party", func(ctx context.Context) error {
		isHost := sess.Role == RoleHost
		participants, err := s.partyRepo.GetParticipants(ctx, sess.PartyID)
		switch {
		case err == nil:
			if p, ok := participants[sess.UserID]; ok {
				isHost = p.Type == partyrepo.ParticipantTypeHost
			}
		case errors.Is(err, partyrepo.ErrParticipantsNotFound):
		default:
			return fmt.Errorf("failed to get participants: %w", err)
		}

		if isHost {
			return s.partyRepo.RemoveParty(ctx, sess.PartyID)
		}

		err = s.partyRepo.RemoveParticipant(ctx, &partyrepo.RemoveParticipantParams{
			PartyID: sess.PartyID,
			UserID:  sess.UserID,
		})
		if errors.Is(err, partyrepo.ErrPartyNotFound) {
			return nil
		}

		return err
	})

	s.logger.Info("party left", "party_id", sess.PartyID, "role", sess.Role.String())
}

// FetchParticipants returns the display names of the roster in no particular
// order, or nil when there is no party or no readable roster.
func (s *service) FetchParticipants(ctx context.Context) ([]string, error) {
	roster, err := s.FetchRoster(ctx)
	if err != nil || roster == nil {
		return nil, err
	}

	return displayNames(roster), nil
}

// FetchRoster returns the roster keyed by user id, or nil when there is no
// party or no readable roster.
func (s *service) FetchRoster(ctx context.Context) (map[string]partyrepo.Participant, error) {
	sess := s.Session()
	if !sess.Active() {
		return nil, nil
	}

	participants, err := s.partyRepo.GetParticipants(ctx, sess.PartyID)
	if err != nil {
		if errors.Is(err, partyrepo.ErrParticipantsNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get participants: %w", err)
	}

	return participants, nil
}

// FetchVideoSetting reads the video published for partyID, letting a joiner
// load the same video before joining.
func (s *service) FetchVideoSetting(ctx context.Context, partyID string) (partyrepo.VideoSetting, error) {
	return s.partyRepo.GetVideoSetting(ctx, partyID)
}

// SetPendingParty sets the party the next JoinParty joins.
func (s *service) SetPendingParty(ctx context.Context, partyID string) error {
	if partyID == "" {
		return ErrNoPendingParty
	}

	return s.do(ctx, func() error {
		s.pendingPartyID = partyID
		return nil
	})
}

// OpenLink extracts the party id from a deep link and makes it pending.
func (s *service) OpenLink(ctx context.Context, link string) (string, error) {
	partyID, err := deeplink.Parse(link)
	if err != nil {
		return "", err
	}

	if err := s.SetPendingParty(ctx, partyID); err != nil {
		return "", err
	}

	return partyID, nil
}

func displayNames(participants map[string]partyrepo.Participant) []string {
	names := make([]string, 0, len(participants))
	for _, p := range participants {
		names = append(names, p.Username)
	}

	return names
}
