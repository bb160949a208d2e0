package service

import (
	"context"
	"testing"
	"time"

	"github.com/nextmessage/backend/internal/models"
	"github.com/nextmessage/backend/internal/repository"
	"github.com/nextmessage/backend/internal/repository/memory"
)

var baseTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newRepos(t *testing.T, uids ...string) repository.Set {
	t.Helper()
	repos := memory.NewSet()
	for _, uid := range uids {
		seedProfile(t, repos, uid)
	}
	return repos
}

func seedProfile(t *testing.T, repos repository.Set, uid string) {
	t.Helper()
	err := repos.Profiles.Create(context.Background(), &models.UserProfile{
		UID:         uid,
		Email:       uid + "@example.com",
		Username:    uid,
		DisplayName: "User " + uid,
		BannerColor: models.DefaultBannerColor,
		CreatedAt:   baseTime,
		LastSeen:    baseTime,
	})
	if err != nil {
		t.Fatalf("failed to seed profile %s: %v", uid, err)
	}
}

func seedDirect(t *testing.T, repos repository.Set, from, to string, at time.Time, read bool) {
	t.Helper()
	err := repos.Messages.Create(context.Background(), &models.DirectMessage{
		ID:         from + "-" + to + "-" + at.Format(time.RFC3339Nano),
		SenderID:   from,
		ReceiverID: to,
		Content:    "hi from " + from,
		Type:       models.MessageTypeText,
		Timestamp:  at,
		Read:       read,
	})
	if err != nil {
		t.Fatalf("failed to seed message: %v", err)
	}
}

func wantKind(t *testing.T, err error, kind Kind, msg string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error %q, got nil", kind, msg)
	}
	if got := KindOf(err); got != kind {
		t.Fatalf("expected kind %s, got %s (%v)", kind, got, err)
	}
	if msg != "" && err.Error() != msg {
		t.Fatalf("expected message %q, got %q", msg, err.Error())
	}
}
