package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/nextmessage/backend/internal/metrics"
	"github.com/nextmessage/backend/internal/models"
	"github.com/nextmessage/backend/internal/repository"
)

// GroupUnreadWindow bounds group unread counts. Direct unread counts have no
// such bound.
const GroupUnreadWindow = 24 * time.Hour

const (
	placeholderContent = "No messages yet"
	placeholderSender  = "System"
	unknownSender      = "Unknown User"
)

// Conversations builds the conversation lists. It only reads, and a failed
// lookup drops that one entry instead of failing the whole list.
type Conversations struct {
	repos repository.Set
	now   func() time.Time
}

func NewConversations(repos repository.Set) *Conversations {
	return &Conversations{repos: repos, now: time.Now}
}

// outcome is the result of building one list entry: a value, or the reason
// it was skipped.
type outcome[T any] struct {
	value   T
	skipped error
}

func keep[T any](v T) outcome[T] {
	return outcome[T]{value: v}
}

func skip[T any](format string, args ...any) outcome[T] {
	return outcome[T]{skipped: fmt.Errorf(format, args...)}
}

// collect keeps the built entries and logs the skipped ones.
func collect[T any](ctx context.Context, kind string, outcomes []outcome[T]) []T {
	out := make([]T, 0, len(outcomes))
	for _, o := range outcomes {
		if o.skipped != nil {
			slog.WarnContext(ctx, "conversation entry skipped", "kind", kind, "reason", o.skipped)
			metrics.ConversationEntriesSkipped.WithLabelValues(kind).Inc()
			continue
		}
		out = append(out, o.value)
	}
	return out
}

// Direct lists uid's one-to-one conversations, newest last message first.
func (s *Conversations) Direct(ctx context.Context, uid string) []models.DirectConversation {
	counterparts, err := s.counterparts(ctx, uid)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list conversation partners", "uid", uid, "error", err)
		return []models.DirectConversation{}
	}

	outcomes := make([]outcome[models.DirectConversation], 0, len(counterparts))
	for _, other := range counterparts {
		outcomes = append(outcomes, s.direct(ctx, uid, other))
	}

	convs := collect(ctx, "direct", outcomes)
	slices.SortStableFunc(convs, func(a, b models.DirectConversation) int {
		return b.LastMessage.Timestamp.Compare(a.LastMessage.Timestamp)
	})
	return convs
}

// counterparts unions the people uid has written to and heard from.
func (s *Conversations) counterparts(ctx context.Context, uid string) ([]string, error) {
	sent, err := s.repos.Messages.Recipients(ctx, uid)
	if err != nil {
		return nil, err
	}
	received, err := s.repos.Messages.Senders(ctx, uid)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(sent)+len(received))
	var out []string
	for _, id := range slices.Concat(sent, received) {
		if _, ok := seen[id]; ok || id == uid {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

func (s *Conversations) direct(ctx context.Context, self, other string) outcome[models.DirectConversation] {
	profile, err := s.repos.Profiles.GetByUID(ctx, other)
	if err != nil {
		return skip[models.DirectConversation]("profile %s: %w", other, err)
	}

	latest, err := s.repos.Messages.Latest(ctx, self, other)
	if err != nil {
		return skip[models.DirectConversation]("latest message with %s: %w", other, err)
	}

	unread, err := s.repos.Messages.CountUnread(ctx, other, self)
	if err != nil {
		return skip[models.DirectConversation]("unread count from %s: %w", other, err)
	}

	return keep(models.DirectConversation{
		UserID:      other,
		DisplayName: profile.DisplayName,
		Username:    profile.Username,
		PhotoURL:    profile.PhotoURL,
		LastMessage: models.DirectLastMessage{
			Content:    latest.Content,
			Timestamp:  latest.Timestamp,
			IsFromSelf: latest.SenderID == self,
			Type:       latest.Type,
		},
		UnreadCount: unread,
	})
}

// Groups lists the groups uid belongs to, most recent activity first. Empty
// groups rank by their creation time.
func (s *Conversations) Groups(ctx context.Context, uid string) []models.GroupConversation {
	groups, err := s.repos.Groups.ListByMember(ctx, uid)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list groups", "uid", uid, "error", err)
		return []models.GroupConversation{}
	}

	since := s.now().Add(-GroupUnreadWindow)
	outcomes := make([]outcome[models.GroupConversation], 0, len(groups))
	for i := range groups {
		outcomes = append(outcomes, s.group(ctx, uid, &groups[i], since))
	}

	convs := collect(ctx, "group", outcomes)
	slices.SortStableFunc(convs, func(a, b models.GroupConversation) int {
		return b.LastMessage.Timestamp.Compare(a.LastMessage.Timestamp)
	})
	return convs
}

func (s *Conversations) group(ctx context.Context, uid string, g *models.Group, since time.Time) outcome[models.GroupConversation] {
	last := models.GroupLastMessage{
		Content:    placeholderContent,
		Timestamp:  g.CreatedAt,
		SenderName: placeholderSender,
		Type:       models.MessageTypeText,
	}

	latest, err := s.repos.GroupMessages.Latest(ctx, g.ID)
	switch {
	case err == nil:
		last = models.GroupLastMessage{
			Content:    latest.Content,
			Timestamp:  latest.Timestamp,
			SenderName: s.senderName(ctx, latest.SenderID),
			Type:       latest.Type,
		}
	case !errors.Is(err, repository.ErrNotFound):
		return skip[models.GroupConversation]("latest message in group %s: %w", g.ID, err)
	}

	unread, err := s.repos.GroupMessages.CountUnreadSince(ctx, g.ID, uid, since)
	if err != nil {
		return skip[models.GroupConversation]("unread count in group %s: %w", g.ID, err)
	}

	return keep(models.GroupConversation{
		GroupID:     g.ID,
		GroupName:   g.Name,
		GroupAvatar: g.AvatarURL,
		MemberCount: len(g.Members),
		LastMessage: last,
		UnreadCount: unread,
		IsAdmin:     g.IsAdmin(uid),
	})
}

func (s *Conversations) senderName(ctx context.Context, uid string) string {
	p, err := s.repos.Profiles.GetByUID(ctx, uid)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			slog.WarnContext(ctx, "failed to resolve sender", "uid", uid, "error", err)
		}
		return unknownSender
	}
	if name := p.Name(); name != "" {
		return name
	}
	return unknownSender
}
