package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nextmessage/backend/internal/models"
)

func TestProfiles_Signup(t *testing.T) {
	ctx := context.Background()
	repos := newRepos(t, "taken")
	s := NewProfiles(repos.Profiles, nil)
	s.now = fixedClock(baseTime)

	p, created, err := s.Signup(ctx, models.Identity{UID: "u1", Email: "u1@example.com"}, "  alice ")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if !created {
		t.Error("expected a new profile")
	}
	if p.Username != "alice" || p.DisplayName != "alice" {
		t.Errorf("expected display name to default to the username, got %+v", p)
	}
	if p.BannerColor != models.DefaultBannerColor || !p.CreatedAt.Equal(baseTime) {
		t.Errorf("unexpected defaults %+v", p)
	}

	again, created, err := s.Signup(ctx, models.Identity{UID: "u1"}, "something-else")
	if err != nil {
		t.Fatalf("repeat signup: %v", err)
	}
	if created || again.Username != "alice" {
		t.Errorf("expected the existing profile back, got created=%v %+v", created, again)
	}

	_, _, err = s.Signup(ctx, models.Identity{UID: "u2"}, "taken")
	wantKind(t, err, KindConflict, "Username already exists")

	_, _, err = s.Signup(ctx, models.Identity{UID: "u3"}, "   ")
	wantKind(t, err, KindValidation, "")
}

func TestProfiles_Bulk(t *testing.T) {
	s := NewProfiles(newRepos(t, "a", "b", "c").Profiles, nil)

	got, err := s.Bulk(context.Background(), []string{"c", "ghost", "a", "c", ""})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].UID != "c" || got[1].UID != "a" {
		t.Errorf("expected [c a] in request order, got %+v", got)
	}

	_, err = s.Bulk(context.Background(), []string{" ", ""})
	wantKind(t, err, KindValidation, "No valid user IDs provided")
}

func TestProfiles_Update(t *testing.T) {
	ctx := context.Background()
	repos := newRepos(t, "a", "b")
	s := NewProfiles(repos.Profiles, nil)
	s.now = fixedClock(baseTime.Add(time.Hour))

	bio := "hello"
	p, err := s.Update(ctx, "a", &models.ProfileUpdate{Bio: &bio})
	if err != nil {
		t.Fatal(err)
	}
	if p.Bio == nil || *p.Bio != "hello" || !p.LastSeen.Equal(baseTime.Add(time.Hour)) {
		t.Errorf("unexpected profile after update %+v", p)
	}

	name := "b"
	_, err = s.Update(ctx, "a", &models.ProfileUpdate{Username: &name})
	wantKind(t, err, KindConflict, "Username already exists")

	// keeping your own username is not a conflict
	own := "a"
	if _, err := s.Update(ctx, "a", &models.ProfileUpdate{Username: &own}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	_, err = s.Update(ctx, "ghost", &models.ProfileUpdate{Bio: &bio})
	wantKind(t, err, KindNotFound, "User not found")
}

func TestProfiles_Search(t *testing.T) {
	s := NewProfiles(newRepos(t, "alice", "alina", "bob").Profiles, nil)

	_, err := s.Search(context.Background(), "  ", "alice")
	wantKind(t, err, KindValidation, "Search query is required")

	got, err := s.Search(context.Background(), "ALI", "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].UID != "alina" {
		t.Errorf("expected only alina, got %+v", got)
	}
}

type stubThrottle struct {
	first bool
	err   error
	calls int
}

func (s *stubThrottle) MarkSeen(context.Context, string, time.Duration) (bool, error) {
	s.calls++
	return s.first, s.err
}

func TestProfiles_TouchLastSeen(t *testing.T) {
	tests := []struct {
		name      string
		throttle  *stubThrottle
		wantMoved bool
	}{
		{"First in interval", &stubThrottle{first: true}, true},
		{"Throttled", &stubThrottle{first: false}, false},
		{"Throttle down", &stubThrottle{err: errors.New("redis down")}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			repos := newRepos(t, "a")
			s := NewProfiles(repos.Profiles, tt.throttle)
			later := baseTime.Add(time.Hour)
			s.now = fixedClock(later)

			if err := s.TouchLastSeen(ctx, "a"); err != nil {
				t.Fatal(err)
			}
			p, _ := repos.Profiles.GetByUID(ctx, "a")
			if moved := p.LastSeen.Equal(later); moved != tt.wantMoved {
				t.Errorf("expected moved=%v, last seen %v", tt.wantMoved, p.LastSeen)
			}
			if tt.throttle.calls != 1 {
				t.Errorf("expected one throttle call, got %d", tt.throttle.calls)
			}
		})
	}

	s := NewProfiles(newRepos(t).Profiles, nil)
	if err := s.TouchLastSeen(context.Background(), "nobody"); err != nil {
		t.Errorf("unknown users must be ignored, got %v", err)
	}
}
