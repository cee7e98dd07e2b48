// Package session wires the sync engine together and owns its lifecycle:
// construction at sign-in, teardown at logout.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/versusfit/versus/internal/backend"
	"github.com/versusfit/versus/internal/badge"
	"github.com/versusfit/versus/internal/chat"
	"github.com/versusfit/versus/internal/config"
	"github.com/versusfit/versus/internal/errtrack"
	"github.com/versusfit/versus/internal/events"
	"github.com/versusfit/versus/internal/health"
	"github.com/versusfit/versus/internal/logging"
	"github.com/versusfit/versus/internal/models"
	"github.com/versusfit/versus/internal/notify"
	"github.com/versusfit/versus/internal/realtime"
	"github.com/versusfit/versus/internal/store"
)

// Session errors.
var (
	ErrAlreadyStarted     = errors.New("session already started")
	ErrNotStarted         = errors.New("session not started")
	ErrHealthSyncDisabled = errors.New("health sync disabled in config")
)

// Session is the explicitly-constructed service object replacing ambient
// globals: built once at sign-in, injected into consumers, torn down at
// logout.
type Session struct {
	cfg    *config.Config
	logger zerolog.Logger

	bus    *events.Bus
	local  *store.Store
	client *backend.Client
	feed   backend.ChangeFeed
	badges *badge.Store
	center *notify.Center

	mu      sync.Mutex
	started bool
	userID  string

	tracker    *chat.Tracker
	engine     *chat.Engine
	chat       *chat.Service
	errTracker *errtrack.Aggregator
	manager    *realtime.Manager
	distance   *health.Sync
}

// New builds the session infrastructure. User-scoped components are created
// by Start once an access token is available.
func New(cfg *config.Config) (*Session, error) {
	local, err := store.Open(cfg.DatabasePath())
	if err != nil {
		return nil, err
	}

	bus := events.NewBus()
	client := backend.NewClient(cfg.Backend.URL, cfg.Backend.AnonKey)
	feed := backend.NewWebSocketFeed(cfg.RealtimeEndpoint(), cfg.Backend.AnonKey, client.AccessToken)

	badges := badge.NewStore(bus, badge.WithPersister(store.NewBadgeRepository(local)))
	center := notify.NewCenter(store.NewNotificationRepository(local), bus)

	return &Session{
		cfg:    cfg,
		logger: logging.Component("session"),
		bus:    bus,
		local:  local,
		client: client,
		feed:   feed,
		badges: badges,
		center: center,
	}, nil
}

// Start signs the session in and brings up the user-scoped engine: badge
// initialization from authoritative backend counts, notification sync, and
// the global and direct-message channels.
func (s *Session) Start(ctx context.Context, accessToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrAlreadyStarted
	}

	if err := s.client.SetSession(accessToken); err != nil {
		return err
	}
	userID, err := s.client.UserID()
	if err != nil {
		return err
	}
	s.userID = userID

	s.tracker = chat.NewTracker()
	s.engine = chat.NewEngine(userID, s.tracker, s.badges,
		chat.WithReconcileWindow(s.cfg.Chat.ReconcileWindow))
	s.errTracker = errtrack.New(errtrack.Config{
		ShowThreshold: s.cfg.Errors.ShowThreshold,
		MinInterval:   s.cfg.Errors.MinInterval,
		IdleExpiry:    s.cfg.Errors.IdleExpiry,
	}, s.surfaceReadStatusError)
	s.chat = chat.NewService(userID, s.engine, s.tracker, s.badges, s.client, s.errTracker,
		chat.WithHistoryLimit(s.cfg.Chat.HistoryLimit))
	s.manager = realtime.NewManager(s.feed, s.engine, s.bus,
		realtime.WithCountSink(s.badges))

	// Restore persisted counts for an instant badge, then replace them with
	// the authoritative backend aggregate.
	if err := s.badges.Restore(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("failed to restore persisted badges")
	}
	if counts, err := s.client.UnreadCounts(ctx, userID); err != nil {
		s.logger.Warn().Err(err).Msg("failed to fetch unread counts, keeping restored badges")
	} else {
		s.badges.Initialize(ctx, counts)
	}

	if err := s.center.Load(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("failed to load persisted notifications")
	}
	if rows, err := s.client.ListNotifications(ctx, userID, 0); err != nil {
		s.logger.Warn().Err(err).Msg("failed to fetch notifications")
	} else {
		s.center.Sync(ctx, rows)
	}

	if err := s.manager.SubscribeGlobal(ctx, userID); err != nil {
		s.logger.Warn().Err(err).Msg("failed to open global channel")
	}
	if err := s.manager.SubscribeDirectMessages(ctx, userID); err != nil {
		s.logger.Warn().Err(err).Msg("failed to open direct message channel")
	}

	s.started = true
	s.logger.Info().Str("user_id", userID).Msg("session started")
	return nil
}

// OpenClubChat opens the club conversation: subscribes its channel, loads
// history once, clears its badge, and returns the merged list.
func (s *Session) OpenClubChat(ctx context.Context, clubID string) ([]models.Message, error) {
	chatSvc, manager, err := s.userScoped()
	if err != nil {
		return nil, err
	}

	if err := manager.SubscribeClubMessages(ctx, clubID); err != nil && !errors.Is(err, realtime.ErrAlreadySubscribed) {
		// Stale data beats crashing: the view still opens with fetched
		// history, it just will not receive pushes.
		s.logger.Warn().Err(err).Str("club_id", clubID).Msg("club channel subscription failed")
	}
	return chatSvc.OpenClubChat(ctx, clubID)
}

// CloseClubChat releases the conversation and its channel. Safe on every exit
// path; closing an already-closed chat is a no-op.
func (s *Session) CloseClubChat(clubID string) {
	chatSvc, manager, err := s.userScoped()
	if err != nil {
		return
	}
	chatSvc.CloseChat(models.ConversationClub, clubID)
	if err := manager.UnsubscribeClubMessages(clubID); err != nil && !errors.Is(err, realtime.ErrNotSubscribed) {
		s.logger.Warn().Err(err).Str("club_id", clubID).Msg("club channel teardown failed")
	}
}

// OpenDirectChat opens a direct conversation.
func (s *Session) OpenDirectChat(ctx context.Context, conversationID string) ([]models.Message, error) {
	chatSvc, _, err := s.userScoped()
	if err != nil {
		return nil, err
	}
	return chatSvc.OpenDirectChat(ctx, conversationID)
}

// CloseDirectChat releases a direct conversation.
func (s *Session) CloseDirectChat(conversationID string) {
	chatSvc, _, err := s.userScoped()
	if err != nil {
		return
	}
	chatSvc.CloseChat(models.ConversationDirect, conversationID)
}

// SendClubMessage sends into a club conversation.
func (s *Session) SendClubMessage(ctx context.Context, clubID, text string) (models.Message, error) {
	chatSvc, _, err := s.userScoped()
	if err != nil {
		return models.Message{}, err
	}
	return chatSvc.SendClubMessage(ctx, clubID, text)
}

// SendDirectMessage sends into a direct conversation.
func (s *Session) SendDirectMessage(ctx context.Context, conversationID, receiverID, text string) (models.Message, error) {
	chatSvc, _, err := s.userScoped()
	if err != nil {
		return models.Message{}, err
	}
	return chatSvc.SendDirectMessage(ctx, conversationID, receiverID, text)
}

// StartDirectConversation creates a conversation row and announces it on the
// bus.
func (s *Session) StartDirectConversation(ctx context.Context, otherUserID string) (string, error) {
	s.mu.Lock()
	started := s.started
	userID := s.userID
	s.mu.Unlock()
	if !started {
		return "", ErrNotStarted
	}

	row, err := s.client.CreateConversation(ctx, userID, otherUserID)
	if err != nil {
		return "", err
	}

	s.bus.Publish(events.NewEvent(
		models.EventTypeConversationCreated,
		models.EntityTypeConversation,
		row.ID,
		models.ConversationCreatedPayload{
			UserID:         otherUserID,
			ConversationID: row.ID,
		},
	))
	return row.ID, nil
}

// StartDistanceSync begins the periodic distance contribution loop for the
// user's active match. Requires health.enabled in config; the provider is the
// native health-data bridge injected by the host app.
func (s *Session) StartDistanceSync(ctx context.Context, provider health.Provider, matchID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return ErrNotStarted
	}
	if !s.cfg.Health.Enabled {
		return ErrHealthSyncDisabled
	}
	if s.distance == nil {
		s.distance = health.NewSync(provider, s.client, s.userID, s.cfg.Health.SyncInterval)
	}
	return s.distance.Start(ctx, matchID)
}

// StopDistanceSync halts the distance loop. Safe when never started.
func (s *Session) StopDistanceSync() {
	s.mu.Lock()
	distance := s.distance
	s.mu.Unlock()

	if distance != nil {
		distance.Stop()
	}
}

// Logout tears the user-scoped engine down: badges cleared, channels closed,
// timers cancelled, token dropped. The session can Start again afterwards.
func (s *Session) Logout(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.badges.ClearAll(ctx)
	s.center.Clear(ctx)
	s.manager.Close()
	s.errTracker.Close()
	if s.distance != nil {
		s.distance.Stop()
	}
	s.client.ClearSession()

	s.started = false
	s.userID = ""
	s.tracker = nil
	s.engine = nil
	s.chat = nil
	s.errTracker = nil
	s.manager = nil
	s.distance = nil
	s.logger.Info().Msg("session logged out")
}

// Close releases everything including the local store. The session is
// unusable afterwards.
func (s *Session) Close(ctx context.Context) error {
	s.Logout(ctx)
	s.bus.Close()
	return s.local.Close()
}

// Bus exposes the in-process event bus.
func (s *Session) Bus() *events.Bus { return s.bus }

// Badges exposes the badge store.
func (s *Session) Badges() *badge.Store { return s.badges }

// Notifications exposes the notification center.
func (s *Session) Notifications() *notify.Center { return s.center }

// Backend exposes the backend client.
func (s *Session) Backend() *backend.Client { return s.client }

func (s *Session) userScoped() (*chat.Service, *realtime.Manager, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil, nil, ErrNotStarted
	}
	return s.chat, s.manager, nil
}

func (s *Session) surfaceReadStatusError(entityType, entityID string, cause error) {
	message := ""
	if cause != nil {
		message = cause.Error()
	}
	s.bus.Publish(events.NewEvent(
		models.EventTypeReadStatusError,
		models.EntityTypeConversation,
		entityID,
		models.ReadStatusErrorPayload{
			EntityType: entityType,
			EntityID:   entityID,
			Error:      message,
		},
	))
}
