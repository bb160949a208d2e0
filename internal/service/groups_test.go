package service

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/nextmessage/backend/internal/models"
)

func intPtr(i int) *int { return &i }

func newGroups(t *testing.T, uids ...string) *Groups {
	t.Helper()
	s := NewGroups(newRepos(t, uids...))
	s.now = fixedClock(baseTime)
	return s
}

func TestGroups_Create(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		req         models.CreateGroupRequest
		wantMembers []string
		wantErr     string
	}{
		{
			name:        "Creator added when absent",
			req:         models.CreateGroupRequest{Name: "Team", MemberIDs: []string{"b", "c"}},
			wantMembers: []string{"a", "b", "c"},
		},
		{
			name:        "Creator and duplicates not repeated",
			req:         models.CreateGroupRequest{Name: "Team", MemberIDs: []string{"b", "a", "b", " "}},
			wantMembers: []string{"a", "b"},
		},
		{
			name:    "Short name",
			req:     models.CreateGroupRequest{Name: " ab "},
			wantErr: "Group name must be at least 3 characters long",
		},
		{
			name:    "Size out of range",
			req:     models.CreateGroupRequest{Name: "Team", MaxMembers: intPtr(11)},
			wantErr: "Group size must be between 2 and 10 members",
		},
		{
			name:    "Creator counts toward capacity",
			req:     models.CreateGroupRequest{Name: "Team", MemberIDs: []string{"b", "c"}, MaxMembers: intPtr(2)},
			wantErr: "Group cannot have more than 2 members",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newGroups(t, "a", "b", "c")
			g, err := s.Create(ctx, "a", &tt.req)
			if tt.wantErr != "" {
				wantKind(t, err, KindValidation, tt.wantErr)
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !slices.Equal(g.Members, tt.wantMembers) {
				t.Errorf("expected members %v, got %v", tt.wantMembers, g.Members)
			}
			if !slices.Equal(g.Admins, []string{"a"}) {
				t.Errorf("expected creator to be sole admin, got %v", g.Admins)
			}
			if g.MaxMembers != models.MaxGroupSize {
				t.Errorf("expected default capacity %d, got %d", models.MaxGroupSize, g.MaxMembers)
			}
		})
	}
}

func TestGroups_CapacityAndLastAdmin(t *testing.T) {
	ctx := context.Background()
	s := newGroups(t, "a", "b", "c")

	g, err := s.Create(ctx, "a", &models.CreateGroupRequest{Name: "Pair", MaxMembers: intPtr(2)})
	if err != nil {
		t.Fatal(err)
	}

	g, err = s.AddMember(ctx, g.ID, "b", "a")
	if err != nil {
		t.Fatalf("adding b: %v", err)
	}
	if !slices.Equal(g.Members, []string{"a", "b"}) {
		t.Fatalf("expected [a b], got %v", g.Members)
	}

	_, err = s.AddMember(ctx, g.ID, "c", "a")
	wantKind(t, err, KindConflict, "Group is at maximum capacity")

	_, err = s.RemoveMember(ctx, g.ID, "a", "a")
	wantKind(t, err, KindConflict, "Cannot remove the last admin")

	if _, err := s.RemoveMember(ctx, g.ID, "b", "b"); err != nil {
		t.Fatalf("expected b to be able to leave: %v", err)
	}
	after, err := s.Get(ctx, g.ID, "a")
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(after.Members, []string{"a"}) {
		t.Errorf("expected only a to remain, got %v", after.Members)
	}
}

func TestGroups_MembershipRules(t *testing.T) {
	ctx := context.Background()
	s := newGroups(t, "a", "b", "c", "d")

	g, err := s.Create(ctx, "a", &models.CreateGroupRequest{Name: "Crew", MemberIDs: []string{"b"}})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		run     func() error
		kind    Kind
		message string
	}{
		{"Non-admin add", func() error { _, err := s.AddMember(ctx, g.ID, "c", "b"); return err }, KindForbidden, "Only admins can add members"},
		{"Already member", func() error { _, err := s.AddMember(ctx, g.ID, "b", "a"); return err }, KindConflict, "User is already a member"},
		{"Unknown user", func() error { _, err := s.AddMember(ctx, g.ID, "ghost", "a"); return err }, KindNotFound, "User not found"},
		{"Missing group", func() error { _, err := s.AddMember(ctx, "nope", "c", "a"); return err }, KindNotFound, "Group not found"},
		{"Non-admin kick", func() error { _, err := s.RemoveMember(ctx, g.ID, "a", "b"); return err }, KindForbidden, "Only admins can remove members"},
		{"Kick non-member", func() error { _, err := s.RemoveMember(ctx, g.ID, "d", "a"); return err }, KindNotFound, "User is not a member"},
		{"Non-admin update", func() error {
			name := "Renamed"
			_, err := s.Update(ctx, g.ID, "b", &models.GroupUpdate{Name: &name})
			return err
		}, KindForbidden, "Only admins can update group info"},
		{"Empty update", func() error { _, err := s.Update(ctx, g.ID, "a", &models.GroupUpdate{}); return err }, KindValidation, "No valid updates provided"},
		{"Outsider reads", func() error { _, err := s.Get(ctx, g.ID, "d"); return err }, KindForbidden, "You are not a member of this group"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wantKind(t, tt.run(), tt.kind, tt.message)
		})
	}
}

func TestGroups_KickAndUpdate(t *testing.T) {
	ctx := context.Background()
	s := newGroups(t, "a", "b", "c")

	g, err := s.Create(ctx, "a", &models.CreateGroupRequest{Name: "Crew", MemberIDs: []string{"b", "c"}})
	if err != nil {
		t.Fatal(err)
	}

	s.now = fixedClock(baseTime.Add(time.Hour))
	g, err = s.RemoveMember(ctx, g.ID, "c", "a")
	if err != nil {
		t.Fatalf("kick: %v", err)
	}
	if g.IsMember("c") {
		t.Error("expected c to be removed")
	}
	if !g.UpdatedAt.Equal(baseTime.Add(time.Hour)) {
		t.Errorf("expected updated_at to move, got %v", g.UpdatedAt)
	}

	name := "  New name "
	g, err = s.Update(ctx, g.ID, "a", &models.GroupUpdate{Name: &name})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if g.Name != "New name" {
		t.Errorf("expected trimmed name, got %q", g.Name)
	}
}

func TestGroups_Messages(t *testing.T) {
	ctx := context.Background()
	s := newGroups(t, "a", "b", "c")

	g, err := s.Create(ctx, "a", &models.CreateGroupRequest{Name: "Chat", MemberIDs: []string{"b"}})
	if err != nil {
		t.Fatal(err)
	}

	_, err = s.SendMessage(ctx, g.ID, "c", &models.SendGroupMessageRequest{MessageContent: models.MessageContent{Content: "hi"}})
	wantKind(t, err, KindForbidden, "You are not a member of this group")

	var sent []*models.GroupMessage
	for i := range 3 {
		s.now = fixedClock(baseTime.Add(time.Duration(i+1) * time.Minute))
		m, err := s.SendMessage(ctx, g.ID, "a", &models.SendGroupMessageRequest{MessageContent: models.MessageContent{Content: "hello"}})
		if err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
		if !slices.Equal(m.ReadBy, []string{"a"}) {
			t.Errorf("expected sender to have read their message, got %v", m.ReadBy)
		}
		sent = append(sent, m)
	}

	page, err := s.Messages(ctx, g.ID, "b", 2, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 2 || page[0].ID != sent[1].ID || page[1].ID != sent[2].ID {
		t.Fatalf("expected the two newest messages oldest first, got %+v", page)
	}

	older, err := s.Messages(ctx, g.ID, "b", 2, page[0].Timestamp.Format(time.RFC3339Nano))
	if err != nil {
		t.Fatal(err)
	}
	if len(older) != 1 || older[0].ID != sent[0].ID {
		t.Fatalf("expected the first message before the cursor, got %+v", older)
	}

	_, err = s.Messages(ctx, g.ID, "b", 0, "yesterday")
	wantKind(t, err, KindValidation, "")

	if err := s.MarkMessageRead(ctx, g.ID, sent[0].ID, "b"); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	wantKind(t, s.MarkMessageRead(ctx, g.ID, "missing", "b"), KindNotFound, "Message not found")

	n, err := s.MarkAllRead(ctx, g.ID, "b")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("expected the two remaining messages to be marked, got %d", n)
	}

	refreshed, err := s.Get(ctx, g.ID, "a")
	if err != nil {
		t.Fatal(err)
	}
	if !refreshed.UpdatedAt.Equal(sent[2].Timestamp) {
		t.Errorf("expected updated_at to follow the last message, got %v", refreshed.UpdatedAt)
	}
}

func TestGroups_Search(t *testing.T) {
	ctx := context.Background()
	s := newGroups(t, "a", "b")

	if _, err := s.Create(ctx, "a", &models.CreateGroupRequest{Name: "Book club"}); err != nil {
		t.Fatal(err)
	}

	_, err := s.Search(ctx, " b ", "b")
	wantKind(t, err, KindValidation, "Search query must be at least 2 characters long")

	found, err := s.Search(ctx, "BOOK", "b")
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 1 {
		t.Fatalf("expected one match, got %d", len(found))
	}

	mine, err := s.Search(ctx, "book", "a")
	if err != nil {
		t.Fatal(err)
	}
	if len(mine) != 0 {
		t.Errorf("expected groups the caller is in to be excluded, got %d", len(mine))
	}
}
