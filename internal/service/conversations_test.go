package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nextmessage/backend/internal/models"
	"github.com/nextmessage/backend/internal/repository"
)

func TestConversations_DirectUnreadAndSender(t *testing.T) {
	repos := newRepos(t, "a", "b")
	seedDirect(t, repos, "b", "a", baseTime, false)
	seedDirect(t, repos, "a", "b", baseTime.Add(time.Minute), false)
	seedDirect(t, repos, "b", "a", baseTime.Add(2*time.Minute), false)

	convs := NewConversations(repos).Direct(context.Background(), "a")
	if len(convs) != 1 {
		t.Fatalf("expected one conversation, got %d", len(convs))
	}
	c := convs[0]
	if c.UserID != "b" || c.Username != "b" {
		t.Errorf("unexpected counterpart %+v", c)
	}
	if c.UnreadCount != 2 {
		t.Errorf("expected 2 unread, got %d", c.UnreadCount)
	}
	if c.LastMessage.IsFromSelf {
		t.Error("expected the last message to be from the counterpart")
	}
	if !c.LastMessage.Timestamp.Equal(baseTime.Add(2 * time.Minute)) {
		t.Errorf("unexpected last message time %v", c.LastMessage.Timestamp)
	}

	// b sees the same thread with nothing unread and its own message last
	convs = NewConversations(repos).Direct(context.Background(), "b")
	if len(convs) != 1 || convs[0].UnreadCount != 1 || !convs[0].LastMessage.IsFromSelf {
		t.Errorf("unexpected view for b: %+v", convs)
	}
}

func TestConversations_DirectOrderingAndSkips(t *testing.T) {
	repos := newRepos(t, "a", "b", "c")
	seedDirect(t, repos, "a", "b", baseTime, true)
	seedDirect(t, repos, "c", "a", baseTime.Add(time.Hour), false)
	// no profile for ghost
	seedDirect(t, repos, "a", "ghost", baseTime.Add(2*time.Hour), false)

	convs := NewConversations(repos).Direct(context.Background(), "a")
	if len(convs) != 2 {
		t.Fatalf("expected the unresolvable counterpart to be skipped, got %d entries", len(convs))
	}
	if convs[0].UserID != "c" || convs[1].UserID != "b" {
		t.Errorf("expected newest first [c b], got [%s %s]", convs[0].UserID, convs[1].UserID)
	}
}

func TestConversations_DirectEmpty(t *testing.T) {
	convs := NewConversations(newRepos(t, "a")).Direct(context.Background(), "a")
	if convs == nil || len(convs) != 0 {
		t.Errorf("expected an empty, non-nil list, got %#v", convs)
	}
}

func seedGroup(t *testing.T, repos repository.Set, id string, members []string, created time.Time) {
	t.Helper()
	err := repos.Groups.Create(context.Background(), &models.Group{
		ID:         id,
		Name:       "Group " + id,
		CreatedBy:  members[0],
		Members:    members,
		Admins:     members[:1],
		MaxMembers: models.MaxGroupSize,
		CreatedAt:  created,
		UpdatedAt:  created,
	})
	if err != nil {
		t.Fatalf("failed to seed group: %v", err)
	}
}

func seedGroupMessage(t *testing.T, repos repository.Set, groupID, sender string, at time.Time) {
	t.Helper()
	err := repos.GroupMessages.Create(context.Background(), &models.GroupMessage{
		ID:        groupID + "-" + at.Format(time.RFC3339Nano),
		GroupID:   groupID,
		SenderID:  sender,
		Content:   "hey",
		Type:      models.MessageTypeText,
		Timestamp: at,
		ReadBy:    []string{sender},
	})
	if err != nil {
		t.Fatalf("failed to seed group message: %v", err)
	}
}

func TestConversations_GroupUnreadWindow(t *testing.T) {
	now := baseTime.Add(72 * time.Hour)
	repos := newRepos(t, "a", "b")
	seedGroup(t, repos, "g1", []string{"b", "a"}, baseTime)
	seedGroupMessage(t, repos, "g1", "b", now.Add(-25*time.Hour))
	seedGroupMessage(t, repos, "g1", "b", now.Add(-23*time.Hour))

	s := NewConversations(repos)
	s.now = fixedClock(now)

	convs := s.Groups(context.Background(), "a")
	if len(convs) != 1 {
		t.Fatalf("expected one group, got %d", len(convs))
	}
	c := convs[0]
	if c.UnreadCount != 1 {
		t.Errorf("expected only the message inside 24h to count, got %d", c.UnreadCount)
	}
	if c.IsAdmin {
		t.Error("a is not an admin of g1")
	}
	if c.MemberCount != 2 {
		t.Errorf("expected 2 members, got %d", c.MemberCount)
	}
	if c.LastMessage.SenderName != "User b" {
		t.Errorf("expected sender display name, got %q", c.LastMessage.SenderName)
	}
}

func TestConversations_GroupPlaceholderAndOrdering(t *testing.T) {
	repos := newRepos(t, "a")
	seedGroup(t, repos, "quiet", []string{"a"}, baseTime.Add(3*time.Hour))
	seedGroup(t, repos, "busy", []string{"a", "gone"}, baseTime)
	seedGroupMessage(t, repos, "busy", "gone", baseTime.Add(time.Hour))

	s := NewConversations(repos)
	s.now = fixedClock(baseTime.Add(4 * time.Hour))

	convs := s.Groups(context.Background(), "a")
	if len(convs) != 2 {
		t.Fatalf("expected two groups, got %d", len(convs))
	}

	quiet, busy := convs[0], convs[1]
	if quiet.GroupID != "quiet" || busy.GroupID != "busy" {
		t.Fatalf("expected [quiet busy], got [%s %s]", quiet.GroupID, busy.GroupID)
	}
	want := models.GroupLastMessage{
		Content:    "No messages yet",
		Timestamp:  baseTime.Add(3 * time.Hour),
		SenderName: "System",
		Type:       models.MessageTypeText,
	}
	if quiet.LastMessage != want {
		t.Errorf("unexpected placeholder %+v", quiet.LastMessage)
	}
	if !quiet.IsAdmin {
		t.Error("expected a to be admin of quiet")
	}
	if busy.LastMessage.SenderName != "Unknown User" {
		t.Errorf("expected unknown sender fallback, got %q", busy.LastMessage.SenderName)
	}
	if busy.UnreadCount != 1 {
		t.Errorf("expected 1 unread, got %d", busy.UnreadCount)
	}
}

type failingGroupMessages struct {
	repository.GroupMessageRepository
	failFor string
}

func (f failingGroupMessages) CountUnreadSince(ctx context.Context, groupID, uid string, since time.Time) (int64, error) {
	if groupID == f.failFor {
		return 0, errors.New("connection reset")
	}
	return f.GroupMessageRepository.CountUnreadSince(ctx, groupID, uid, since)
}

func TestConversations_GroupLookupFailureSkipsEntry(t *testing.T) {
	repos := newRepos(t, "a")
	seedGroup(t, repos, "ok", []string{"a"}, baseTime)
	seedGroup(t, repos, "broken", []string{"a"}, baseTime.Add(time.Hour))
	repos.GroupMessages = failingGroupMessages{GroupMessageRepository: repos.GroupMessages, failFor: "broken"}

	convs := NewConversations(repos).Groups(context.Background(), "a")
	if len(convs) != 1 || convs[0].GroupID != "ok" {
		t.Errorf("expected only the healthy group, got %+v", convs)
	}
}
