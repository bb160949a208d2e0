// Package repotest holds the behaviour every repository backend must share.
// Backends call Run from their own tests with a constructor for a clean Set.
package repotest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nextmessage/backend/internal/models"
	"github.com/nextmessage/backend/internal/repository"
)

// Factory returns an empty repository set. Cleanup is registered on t.
type Factory func(t *testing.T) repository.Set

// base is millisecond-aligned UTC so every backend round-trips it exactly.
var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func Run(t *testing.T, newSet Factory) {
	t.Run("Profiles", func(t *testing.T) { testProfiles(t, newSet(t)) })
	t.Run("ProfileSearch", func(t *testing.T) { testProfileSearch(t, newSet(t)) })
	t.Run("DirectMessages", func(t *testing.T) { testDirectMessages(t, newSet(t)) })
	t.Run("DirectMessageClear", func(t *testing.T) { testDirectMessageClear(t, newSet(t)) })
	t.Run("GroupMembership", func(t *testing.T) { testGroupMembership(t, newSet(t)) })
	t.Run("GroupListing", func(t *testing.T) { testGroupListing(t, newSet(t)) })
	t.Run("GroupMessages", func(t *testing.T) { testGroupMessages(t, newSet(t)) })
}

func profile(uid, username string) *models.UserProfile {
	return &models.UserProfile{
		UID:         uid,
		Email:       uid + "@example.com",
		Username:    username,
		DisplayName: username,
		BannerColor: models.DefaultBannerColor,
		Links:       []models.Link{},
		CreatedAt:   base,
		LastSeen:    base,
	}
}

func mustCreateProfile(t *testing.T, s repository.Set, uid, username string) {
	t.Helper()
	if err := s.Profiles.Create(context.Background(), profile(uid, username)); err != nil {
		t.Fatalf("create profile %s: %v", uid, err)
	}
}

func testProfiles(t *testing.T, s repository.Set) {
	ctx := context.Background()
	mustCreateProfile(t, s, "u1", "alice")
	mustCreateProfile(t, s, "u2", "bob")

	if err := s.Profiles.Create(ctx, profile("u3", "alice")); !errors.Is(err, repository.ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}

	got, err := s.Profiles.GetByUID(ctx, "u1")
	if err != nil {
		t.Fatalf("get u1: %v", err)
	}
	if got.Username != "alice" || got.BannerColor != models.DefaultBannerColor {
		t.Errorf("unexpected profile: %+v", got)
	}

	if _, err := s.Profiles.GetByUID(ctx, "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	byName, err := s.Profiles.GetByUsername(ctx, "bob")
	if err != nil || byName.UID != "u2" {
		t.Errorf("get by username: %v %+v", err, byName)
	}

	bulk, err := s.Profiles.GetByUIDs(ctx, []string{"u2", "nobody", "u1"})
	if err != nil {
		t.Fatalf("bulk: %v", err)
	}
	if len(bulk) != 2 {
		t.Errorf("expected 2 profiles, got %d", len(bulk))
	}

	taken, err := s.Profiles.UsernameTakenByOther(ctx, "alice", "u1")
	if err != nil || taken {
		t.Errorf("own username should not count as taken: %v %v", taken, err)
	}
	taken, err = s.Profiles.UsernameTakenByOther(ctx, "alice", "u2")
	if err != nil || !taken {
		t.Errorf("expected alice to be taken for u2: %v %v", taken, err)
	}

	bio := "hello"
	links := []models.Link{{Title: "site", URL: "https://example.com"}}
	later := base.Add(time.Hour)
	updated, err := s.Profiles.Update(ctx, "u1", &models.ProfileUpdate{Bio: &bio, Links: &links}, later)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Bio == nil || *updated.Bio != "hello" || len(updated.Links) != 1 {
		t.Errorf("update not applied: %+v", updated)
	}
	if !updated.LastSeen.Equal(later) {
		t.Errorf("expected last seen %v, got %v", later, updated.LastSeen)
	}
	if updated.Username != "alice" {
		t.Errorf("untouched fields must survive, got username %q", updated.Username)
	}

	bobName := "bob"
	if _, err := s.Profiles.Update(ctx, "u1", &models.ProfileUpdate{Username: &bobName}, later); !errors.Is(err, repository.ErrUsernameTaken) {
		t.Errorf("expected ErrUsernameTaken on rename, got %v", err)
	}
	if _, err := s.Profiles.Update(ctx, "missing", &models.ProfileUpdate{Bio: &bio}, later); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	seen := base.Add(2 * time.Hour)
	if err := s.Profiles.TouchLastSeen(ctx, "u2", seen); err != nil {
		t.Fatalf("touch: %v", err)
	}
	got, _ = s.Profiles.GetByUID(ctx, "u2")
	if !got.LastSeen.Equal(seen) {
		t.Errorf("expected last seen %v, got %v", seen, got.LastSeen)
	}
}

func testProfileSearch(t *testing.T, s repository.Set) {
	ctx := context.Background()
	mustCreateProfile(t, s, "u1", "alice")
	mustCreateProfile(t, s, "u2", "Alicia")
	mustCreateProfile(t, s, "u3", "bob")
	mustCreateProfile(t, s, "u4", "a.b")

	found, err := s.Profiles.Search(ctx, "ALI", "u1", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(found) != 1 || found[0].UID != "u2" {
		t.Errorf("expected only u2, got %+v", found)
	}

	// the dot must match literally, not as a wildcard
	found, err = s.Profiles.Search(ctx, "a.", "", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(found) != 1 || found[0].UID != "u4" {
		t.Errorf("expected only u4, got %+v", found)
	}

	found, err = s.Profiles.Search(ctx, "example.com", "", 2)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(found) != 2 {
		t.Errorf("expected limit of 2, got %d", len(found))
	}
}

func directMessage(from, to string, at time.Time, read bool) *models.DirectMessage {
	return &models.DirectMessage{
		ID:         uuid.NewString(),
		SenderID:   from,
		ReceiverID: to,
		Content:    "hi from " + from,
		Type:       models.MessageTypeText,
		Timestamp:  at,
		Read:       read,
	}
}

func testDirectMessages(t *testing.T, s repository.Set) {
	ctx := context.Background()
	msgs := []*models.DirectMessage{
		directMessage("a", "b", base, true),
		directMessage("b", "a", base.Add(time.Minute), false),
		directMessage("b", "a", base.Add(2*time.Minute), false),
		directMessage("a", "c", base.Add(3*time.Minute), false),
	}
	for _, m := range msgs {
		if err := s.Messages.Create(ctx, m); err != nil {
			t.Fatalf("create message: %v", err)
		}
	}

	conv, err := s.Messages.Between(ctx, "b", "a")
	if err != nil {
		t.Fatalf("between: %v", err)
	}
	if len(conv) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(conv))
	}
	for i := 1; i < len(conv); i++ {
		if conv[i].Timestamp.Before(conv[i-1].Timestamp) {
			t.Errorf("messages not ascending at %d", i)
		}
	}

	latest, err := s.Messages.Latest(ctx, "a", "b")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.ID != msgs[2].ID {
		t.Errorf("expected latest %s, got %s", msgs[2].ID, latest.ID)
	}
	if _, err := s.Messages.Latest(ctx, "b", "c"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	recipients, err := s.Messages.Recipients(ctx, "a")
	if err != nil {
		t.Fatalf("recipients: %v", err)
	}
	if len(recipients) != 2 {
		t.Errorf("expected 2 recipients, got %v", recipients)
	}
	senders, err := s.Messages.Senders(ctx, "a")
	if err != nil {
		t.Fatalf("senders: %v", err)
	}
	if len(senders) != 1 || senders[0] != "b" {
		t.Errorf("expected [b], got %v", senders)
	}

	unread, err := s.Messages.CountUnread(ctx, "b", "a")
	if err != nil || unread != 2 {
		t.Errorf("expected 2 unread, got %d (%v)", unread, err)
	}

	changed, err := s.Messages.MarkRead(ctx, "b", "a")
	if err != nil || changed != 2 {
		t.Errorf("expected 2 changed, got %d (%v)", changed, err)
	}
	changed, err = s.Messages.MarkRead(ctx, "b", "a")
	if err != nil || changed != 0 {
		t.Errorf("second mark read should change nothing, got %d (%v)", changed, err)
	}
	unread, _ = s.Messages.CountUnread(ctx, "b", "a")
	if unread != 0 {
		t.Errorf("expected 0 unread, got %d", unread)
	}
}

func testDirectMessageClear(t *testing.T, s repository.Set) {
	ctx := context.Background()
	img1, img2 := "img-1", "img-2"

	withImage := func(m *models.DirectMessage, id *string) *models.DirectMessage {
		m.Type = models.MessageTypeImage
		m.ImageID = id
		return m
	}
	msgs := []*models.DirectMessage{
		withImage(directMessage("a", "b", base, false), &img1),
		withImage(directMessage("b", "a", base.Add(time.Minute), false), &img2),
		directMessage("a", "b", base.Add(2*time.Minute), false),
		directMessage("a", "c", base.Add(3*time.Minute), false),
	}
	for _, m := range msgs {
		if err := s.Messages.Create(ctx, m); err != nil {
			t.Fatalf("create message: %v", err)
		}
	}

	ids, err := s.Messages.ImageIDsBetween(ctx, "a", "b")
	if err != nil {
		t.Fatalf("image ids: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("expected 2 image ids, got %v", ids)
	}

	deleted, err := s.Messages.DeleteBetween(ctx, "b", "a")
	if err != nil || deleted != 3 {
		t.Errorf("expected 3 deleted, got %d (%v)", deleted, err)
	}
	left, _ := s.Messages.Between(ctx, "a", "b")
	if len(left) != 0 {
		t.Errorf("expected empty conversation, got %d", len(left))
	}
	other, _ := s.Messages.Between(ctx, "a", "c")
	if len(other) != 1 {
		t.Errorf("unrelated conversation must survive, got %d", len(other))
	}
}

func group(id, creator string, members []string, maxMembers int, at time.Time) *models.Group {
	return &models.Group{
		ID:         id,
		Name:       "group " + id,
		CreatedBy:  creator,
		Members:    members,
		Admins:     []string{creator},
		MaxMembers: maxMembers,
		CreatedAt:  at,
		UpdatedAt:  at,
	}
}

func testGroupMembership(t *testing.T, s repository.Set) {
	ctx := context.Background()
	id := uuid.NewString()
	if err := s.Groups.Create(ctx, group(id, "a", []string{"a"}, 2, base)); err != nil {
		t.Fatalf("create group: %v", err)
	}

	later := base.Add(time.Minute)
	if err := s.Groups.AddMember(ctx, id, "b", later); err != nil {
		t.Fatalf("add b: %v", err)
	}
	if err := s.Groups.AddMember(ctx, id, "b", later); !errors.Is(err, repository.ErrConflict) {
		t.Errorf("duplicate add: expected ErrConflict, got %v", err)
	}
	if err := s.Groups.AddMember(ctx, id, "c", later); !errors.Is(err, repository.ErrConflict) {
		t.Errorf("add at capacity: expected ErrConflict, got %v", err)
	}
	if err := s.Groups.AddMember(ctx, uuid.NewString(), "c", later); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("add to missing group: expected ErrNotFound, got %v", err)
	}

	g, err := s.Groups.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("get group: %v", err)
	}
	if len(g.Members) != 2 || !g.UpdatedAt.Equal(later) {
		t.Errorf("unexpected group after add: %+v", g)
	}

	if err := s.Groups.RemoveMember(ctx, id, "a", later); !errors.Is(err, repository.ErrConflict) {
		t.Errorf("removing the last admin: expected ErrConflict, got %v", err)
	}
	if err := s.Groups.RemoveMember(ctx, id, "z", later); !errors.Is(err, repository.ErrConflict) {
		t.Errorf("removing a non-member: expected ErrConflict, got %v", err)
	}
	if err := s.Groups.RemoveMember(ctx, id, "b", later.Add(time.Minute)); err != nil {
		t.Fatalf("remove b: %v", err)
	}
	g, _ = s.Groups.GetByID(ctx, id)
	if g.IsMember("b") {
		t.Error("b should be gone")
	}

	name := "renamed"
	updated, err := s.Groups.UpdateInfo(ctx, id, &models.GroupUpdate{Name: &name}, later.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("update info: %v", err)
	}
	if updated.Name != "renamed" || len(updated.Admins) != 1 {
		t.Errorf("unexpected group after update: %+v", updated)
	}
	if _, err := s.Groups.UpdateInfo(ctx, uuid.NewString(), &models.GroupUpdate{Name: &name}, later); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func testGroupListing(t *testing.T, s repository.Set) {
	ctx := context.Background()
	older, newer, foreign := uuid.NewString(), uuid.NewString(), uuid.NewString()

	g1 := group(older, "a", []string{"a", "b"}, 10, base)
	g1.Name = "Hiking club"
	g2 := group(newer, "a", []string{"a"}, 10, base.Add(time.Hour))
	g2.Name = "Chess"
	g3 := group(foreign, "c", []string{"c"}, 10, base)
	g3.Name = "Night hikes"
	for _, g := range []*models.Group{g1, g2, g3} {
		if err := s.Groups.Create(ctx, g); err != nil {
			t.Fatalf("create group: %v", err)
		}
	}

	mine, err := s.Groups.ListByMember(ctx, "a")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(mine) != 2 || mine[0].ID != newer {
		t.Errorf("expected newest group first, got %+v", mine)
	}

	if err := s.Groups.Touch(ctx, older, base.Add(2*time.Hour)); err != nil {
		t.Fatalf("touch: %v", err)
	}
	mine, _ = s.Groups.ListByMember(ctx, "a")
	if mine[0].ID != older {
		t.Errorf("touched group should lead, got %s", mine[0].ID)
	}

	found, err := s.Groups.Search(ctx, "HIK", "a", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(found) != 1 || found[0].ID != foreign {
		t.Errorf("expected only the group a is not in, got %+v", found)
	}
}

func groupMessage(groupID, sender string, at time.Time) *models.GroupMessage {
	return &models.GroupMessage{
		ID:        uuid.NewString(),
		GroupID:   groupID,
		SenderID:  sender,
		Content:   "hello",
		Type:      models.MessageTypeText,
		Timestamp: at,
		ReadBy:    []string{sender},
	}
}

func testGroupMessages(t *testing.T, s repository.Set) {
	ctx := context.Background()
	gid := uuid.NewString()
	if err := s.Groups.Create(ctx, group(gid, "a", []string{"a", "b"}, 10, base)); err != nil {
		t.Fatalf("create group: %v", err)
	}

	if _, err := s.GroupMessages.Latest(ctx, gid); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound for empty group, got %v", err)
	}

	var msgs []*models.GroupMessage
	for i := 0; i < 5; i++ {
		m := groupMessage(gid, "a", base.Add(time.Duration(i)*time.Hour))
		if err := s.GroupMessages.Create(ctx, m); err != nil {
			t.Fatalf("create group message: %v", err)
		}
		msgs = append(msgs, m)
	}

	page, err := s.GroupMessages.List(ctx, gid, 2, nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page) != 2 || page[0].ID != msgs[3].ID || page[1].ID != msgs[4].ID {
		t.Errorf("expected the two newest ascending, got %+v", page)
	}

	before := msgs[3].Timestamp
	page, err = s.GroupMessages.List(ctx, gid, 10, &before)
	if err != nil {
		t.Fatalf("list before: %v", err)
	}
	if len(page) != 3 || page[2].ID != msgs[2].ID {
		t.Errorf("expected three older messages, got %d", len(page))
	}

	latest, err := s.GroupMessages.Latest(ctx, gid)
	if err != nil || latest.ID != msgs[4].ID {
		t.Errorf("latest: %v %+v", err, latest)
	}

	since := base.Add(90 * time.Minute)
	unread, err := s.GroupMessages.CountUnreadSince(ctx, gid, "b", since)
	if err != nil || unread != 3 {
		t.Errorf("expected 3 unread since window start, got %d (%v)", unread, err)
	}
	unread, _ = s.GroupMessages.CountUnreadSince(ctx, gid, "a", since)
	if unread != 0 {
		t.Errorf("sender has read their own messages, got %d", unread)
	}

	if err := s.GroupMessages.MarkRead(ctx, gid, msgs[4].ID, "b"); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if err := s.GroupMessages.MarkRead(ctx, gid, msgs[4].ID, "b"); err != nil {
		t.Fatalf("mark read twice: %v", err)
	}
	if err := s.GroupMessages.MarkRead(ctx, gid, uuid.NewString(), "b"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	latest, _ = s.GroupMessages.Latest(ctx, gid)
	if len(latest.ReadBy) != 2 {
		t.Errorf("readBy must stay a set, got %v", latest.ReadBy)
	}

	changed, err := s.GroupMessages.MarkAllRead(ctx, gid, "b")
	if err != nil || changed != 4 {
		t.Errorf("expected 4 changed, got %d (%v)", changed, err)
	}
	unread, _ = s.GroupMessages.CountUnreadSince(ctx, gid, "b", base.Add(-time.Hour))
	if unread != 0 {
		t.Errorf("expected nothing unread, got %d", unread)
	}
}
