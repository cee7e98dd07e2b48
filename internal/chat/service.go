package chat

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/versusfit/versus/internal/backend"
	"github.com/versusfit/versus/internal/badge"
	"github.com/versusfit/versus/internal/errtrack"
	"github.com/versusfit/versus/internal/logging"
	"github.com/versusfit/versus/internal/models"
)

// defaultHistoryLimit bounds the bulk history fetch on conversation open.
const defaultHistoryLimit = 200

// MessageAPI is the backend surface the chat service needs.
type MessageAPI interface {
	InsertClubMessage(ctx context.Context, clubID, senderID, content string) (backend.ClubMessageRow, error)
	ListClubMessages(ctx context.Context, clubID string, limit int) ([]backend.ClubMessageRow, error)
	InsertDirectMessage(ctx context.Context, conversationID, senderID, receiverID, content string) (backend.DirectMessageRow, error)
	ListDirectMessages(ctx context.Context, conversationID string, limit int) ([]backend.DirectMessageRow, error)
	MarkClubMessagesRead(ctx context.Context, clubID, userID string) error
	MarkDirectMessagesRead(ctx context.Context, conversationID, userID string) error
}

// Service drives the user-facing chat flows: optimistic sends, history loads
// on conversation open, and read-status updates.
type Service struct {
	localUserID  string
	engine       *Engine
	tracker      *Tracker
	badges       *badge.Store
	api          MessageAPI
	errors       *errtrack.Aggregator
	historyLimit int
	logger       zerolog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithHistoryLimit overrides the history fetch size.
func WithHistoryLimit(limit int) ServiceOption {
	return func(s *Service) {
		if limit > 0 {
			s.historyLimit = limit
		}
	}
}

// NewService creates the chat service.
func NewService(localUserID string, engine *Engine, tracker *Tracker, badges *badge.Store, api MessageAPI, errTracker *errtrack.Aggregator, opts ...ServiceOption) *Service {
	s := &Service{
		localUserID:  localUserID,
		engine:       engine,
		tracker:      tracker,
		badges:       badges,
		api:          api,
		errors:       errTracker,
		historyLimit: defaultHistoryLimit,
		logger:       logging.Component("chat"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Engine exposes the merge engine for realtime routing.
func (s *Service) Engine() *Engine {
	return s.engine
}

// Tracker exposes the active-conversation tracker.
func (s *Service) Tracker() *Tracker {
	return s.tracker
}

// SendClubMessage appends the message optimistically, then confirms or rolls
// back once the backend responds. The caller sees the optimistic entry
// immediately; a failed send removes it.
func (s *Service) SendClubMessage(ctx context.Context, clubID, text string) (models.Message, error) {
	temp := s.engine.AppendOptimistic(clubID, models.Message{
		SenderID: s.localUserID,
		Text:     text,
	})

	row, err := s.api.InsertClubMessage(ctx, clubID, s.localUserID, text)
	if err != nil {
		s.engine.FailSend(clubID, temp.ID)
		return models.Message{}, fmt.Errorf("failed to send club message: %w", err)
	}

	confirmed := row.ToMessage()
	s.engine.ConfirmSend(clubID, temp.ID, confirmed)
	return confirmed, nil
}

// SendDirectMessage is the direct-conversation counterpart of
// SendClubMessage.
func (s *Service) SendDirectMessage(ctx context.Context, conversationID, receiverID, text string) (models.Message, error) {
	temp := s.engine.AppendOptimistic(conversationID, models.Message{
		SenderID: s.localUserID,
		Text:     text,
	})

	row, err := s.api.InsertDirectMessage(ctx, conversationID, s.localUserID, receiverID, text)
	if err != nil {
		s.engine.FailSend(conversationID, temp.ID)
		return models.Message{}, fmt.Errorf("failed to send direct message: %w", err)
	}

	confirmed := row.ToMessage()
	s.engine.ConfirmSend(conversationID, temp.ID, confirmed)
	return confirmed, nil
}

// OpenClubChat marks the club conversation active, loads history if this is
// the first open of the session, clears its unread badge, and returns the
// merged message list.
func (s *Service) OpenClubChat(ctx context.Context, clubID string) ([]models.Message, error) {
	s.tracker.SetActive(models.ConversationClub, clubID)

	if !s.engine.Loaded(clubID) {
		rows, err := s.api.ListClubMessages(ctx, clubID, s.historyLimit)
		if err != nil {
			return nil, fmt.Errorf("failed to load club messages: %w", err)
		}
		fetched := make([]models.Message, 0, len(rows))
		for _, row := range rows {
			fetched = append(fetched, row.ToMessage())
		}
		s.engine.MergeFetched(clubID, fetched)
	}

	s.markRead(ctx, models.ConversationClub, clubID)
	return s.engine.Messages(clubID), nil
}

// OpenDirectChat is the direct-conversation counterpart of OpenClubChat.
func (s *Service) OpenDirectChat(ctx context.Context, conversationID string) ([]models.Message, error) {
	s.tracker.SetActive(models.ConversationDirect, conversationID)

	if !s.engine.Loaded(conversationID) {
		rows, err := s.api.ListDirectMessages(ctx, conversationID, s.historyLimit)
		if err != nil {
			return nil, fmt.Errorf("failed to load direct messages: %w", err)
		}
		fetched := make([]models.Message, 0, len(rows))
		for _, row := range rows {
			fetched = append(fetched, row.ToMessage())
		}
		s.engine.MergeFetched(conversationID, fetched)
	}

	s.markRead(ctx, models.ConversationDirect, conversationID)
	return s.engine.Messages(conversationID), nil
}

// CloseChat releases the conversation when its view closes. The tracker is
// cleared only if this conversation is still the active one.
func (s *Service) CloseChat(convType models.ConversationType, conversationID string) {
	if s.tracker.IsActive(convType, conversationID) {
		s.tracker.Clear()
	}
	s.engine.Release(conversationID)
}

// MarkConversationRead resets the conversation's badge and pushes the read
// status to the backend. Backend failures are frequent and low severity, so
// they feed the aggregator instead of surfacing individually.
func (s *Service) MarkConversationRead(ctx context.Context, convType models.ConversationType, conversationID string) {
	s.markRead(ctx, convType, conversationID)
}

func (s *Service) markRead(ctx context.Context, convType models.ConversationType, conversationID string) {
	s.badges.Reset(ctx, conversationID)

	var err error
	switch convType {
	case models.ConversationClub:
		err = s.api.MarkClubMessagesRead(ctx, conversationID, s.localUserID)
	case models.ConversationDirect:
		err = s.api.MarkDirectMessagesRead(ctx, conversationID, s.localUserID)
	}
	if err != nil {
		s.logger.Debug().Err(err).
			Str("conversation_id", conversationID).
			Msg("mark read failed")
		if s.errors != nil {
			s.errors.Report(string(convType), conversationID, err)
		}
	}
}
