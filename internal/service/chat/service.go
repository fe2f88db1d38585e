package chat

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iamasit07/guess-master/backend/internal/domain"
	"github.com/iamasit07/guess-master/backend/pkg/uid"
	"github.com/rs/zerolog/log"
)

type MessageStore interface {
	Create(ctx context.Context, m *domain.Message) error
	ListBySession(ctx context.Context, sessionID string) ([]domain.Message, error)
}

type SessionFinder interface {
	GetByID(ctx context.Context, id string) (*domain.Session, error)
}

type ProfileResolver interface {
	Profiles(ctx context.Context, ids []domain.PlayerID) (map[domain.PlayerID]domain.Profile, error)
}

type Broadcaster interface {
	BroadcastToRoom(room string, message domain.ServerMessage)
}

// MessageView is a message with its author expanded. A nil User marks a system message.
type MessageView struct {
	ID        string             `json:"_id"`
	SessionID string             `json:"sessionId"`
	User      *domain.Profile    `json:"userId"`
	Content   string             `json:"content"`
	Type      domain.MessageType `json:"type"`
	CreatedAt time.Time          `json:"createdAt"`
}

// Service is the per-session message log.
type Service struct {
	store    MessageStore
	sessions SessionFinder
	profiles ProfileResolver
	now      func() time.Time

	hubMu sync.RWMutex
	hub   Broadcaster
}

func NewService(store MessageStore, sessions SessionFinder, profiles ProfileResolver) *Service {
	return &Service{
		store:    store,
		sessions: sessions,
		profiles: profiles,
		now:      time.Now,
	}
}

func (s *Service) AttachBroadcaster(b Broadcaster) {
	s.hubMu.Lock()
	s.hub = b
	s.hubMu.Unlock()
}

// Send appends a message from author to the session with id sessionID.
func (s *Service) Send(ctx context.Context, sessionID string, author domain.PlayerID, content, rawType string) (*MessageView, error) {
	sessionID = strings.TrimSpace(sessionID)
	content = strings.TrimSpace(content)
	if sessionID == "" || content == "" {
		return nil, domain.ErrMessageFields
	}
	if author.IsZero() {
		return nil, domain.ErrUnauthenticated
	}
	msgType, err := domain.ParseMessageType(rawType)
	if err != nil {
		return nil, err
	}

	sess, err := s.sessions.GetByID(ctx, sessionID)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil, domain.ErrMessageSession
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}

	return s.append(ctx, sess, author, content, msgType)
}

// List returns the messages of a session, oldest first.
func (s *Service) List(ctx context.Context, sessionID string) ([]MessageView, error) {
	msgs, err := s.store.ListBySession(ctx, strings.TrimSpace(sessionID))
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].CreatedAt.Before(msgs[j].CreatedAt) })

	var ids []domain.PlayerID
	for _, m := range msgs {
		if !m.UserID.IsZero() {
			ids = append(ids, m.UserID)
		}
	}
	profiles := s.resolve(ctx, ids)

	out := make([]MessageView, 0, len(msgs))
	for i := range msgs {
		out = append(out, view(&msgs[i], profiles))
	}
	return out, nil
}

// AppendSystem logs an authorless event line. Failures are logged, not returned.
func (s *Service) AppendSystem(ctx context.Context, sess *domain.Session, content string) {
	if _, err := s.append(ctx, sess, "", content, domain.MessageSystem); err != nil {
		log.Warn().Err(err).Str("component", "chat").Str("code", sess.Code).Msg("failed to append system message")
	}
}

// AppendGuess logs a wrong guess by author.
func (s *Service) AppendGuess(ctx context.Context, sess *domain.Session, author domain.PlayerID, content string) {
	if _, err := s.append(ctx, sess, author, content, domain.MessageGuess); err != nil {
		log.Warn().Err(err).Str("component", "chat").Str("code", sess.Code).Msg("failed to append guess message")
	}
}

func (s *Service) append(ctx context.Context, sess *domain.Session, author domain.PlayerID, content string, msgType domain.MessageType) (*MessageView, error) {
	m := &domain.Message{
		ID:        uid.NewMessageID(),
		SessionID: sess.ID,
		UserID:    author,
		Content:   content,
		Type:      msgType,
		CreatedAt: s.now().UTC().Truncate(time.Microsecond),
	}
	if err := s.store.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to save message: %w", err)
	}

	var ids []domain.PlayerID
	if !author.IsZero() {
		ids = append(ids, author)
	}
	v := view(m, s.resolve(ctx, ids))
	s.publish(sess.Code, &v)
	return &v, nil
}

func (s *Service) resolve(ctx context.Context, ids []domain.PlayerID) map[domain.PlayerID]domain.Profile {
	if s.profiles == nil || len(ids) == 0 {
		return nil
	}
	found, err := s.profiles.Profiles(ctx, ids)
	if err != nil {
		log.Warn().Err(err).Str("component", "chat").Msg("profile lookup failed")
		return nil
	}
	return found
}

func view(m *domain.Message, profiles map[domain.PlayerID]domain.Profile) MessageView {
	v := MessageView{
		ID:        m.ID,
		SessionID: m.SessionID,
		Content:   m.Content,
		Type:      m.Type,
		CreatedAt: m.CreatedAt,
	}
	if !m.UserID.IsZero() {
		p, ok := profiles[m.UserID]
		if !ok {
			p = domain.Profile{ID: m.UserID}
		}
		v.User = &p
	}
	return v
}

func (s *Service) publish(code string, v *MessageView) {
	s.hubMu.RLock()
	hub := s.hub
	s.hubMu.RUnlock()
	if hub == nil {
		return
	}
	hub.BroadcastToRoom(code, domain.ServerMessage{Type: domain.EventNewMessage, Code: code, Data: v})
}
