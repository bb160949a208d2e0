package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nextmessage/backend/internal/models"
	"github.com/nextmessage/backend/internal/repository"
)

// racingGroups lets the pre-checks pass and then fails the conditional write,
// after optionally letting a competing write land first.
type racingGroups struct {
	repository.GroupRepository
	beforeAdd    func(ctx context.Context, groupID, uid string, at time.Time)
	beforeRemove func(ctx context.Context, groupID, uid string, at time.Time)
}

func (r *racingGroups) AddMember(ctx context.Context, groupID, uid string, at time.Time) error {
	if r.beforeAdd != nil {
		r.beforeAdd(ctx, groupID, uid, at)
	}
	return repository.ErrConflict
}

func (r *racingGroups) RemoveMember(ctx context.Context, groupID, uid string, at time.Time) error {
	if r.beforeRemove != nil {
		r.beforeRemove(ctx, groupID, uid, at)
	}
	return repository.ErrConflict
}

func TestGroups_ConcurrentAddsRespectCapacity(t *testing.T) {
	ctx := context.Background()

	const candidates = 20
	uids := []string{"a"}
	for i := range candidates {
		uids = append(uids, fmt.Sprintf("u%02d", i))
	}
	s := newGroups(t, uids...)

	g, err := s.Create(ctx, "a", &models.CreateGroupRequest{Name: "Trio", MaxMembers: intPtr(3)})
	if err != nil {
		t.Fatal(err)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		added    int
		rejected = map[string]int{}
		other    []error
	)
	for _, uid := range uids[1:] {
		wg.Add(1)
		go func(uid string) {
			defer wg.Done()
			_, err := s.AddMember(ctx, g.ID, uid, "a")

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				added++
			case KindOf(err) == KindConflict:
				rejected[err.Error()]++
			default:
				other = append(other, err)
			}
		}(uid)
	}
	wg.Wait()

	if len(other) > 0 {
		t.Fatalf("unexpected errors: %v", other)
	}
	if added != 2 {
		t.Errorf("expected exactly 2 adds to fit, got %d", added)
	}
	if rejected[msgAtCapacity] != candidates-2 || len(rejected) != 1 {
		t.Errorf("expected %d capacity rejections, got %v", candidates-2, rejected)
	}

	final, err := s.Get(ctx, g.ID, "a")
	if err != nil {
		t.Fatal(err)
	}
	if len(final.Members) != 3 {
		t.Errorf("expected the group to end full at 3 members, got %v", final.Members)
	}
}

func TestGroups_LostWriteIsExplained(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*Groups, repository.GroupRepository, *racingGroups, string) {
		t.Helper()
		s := newGroups(t, "a", "b", "c")
		g, err := s.Create(ctx, "a", &models.CreateGroupRequest{Name: "Crew", MemberIDs: []string{"b"}})
		if err != nil {
			t.Fatal(err)
		}
		inner := s.groups
		racing := &racingGroups{GroupRepository: inner}
		s.groups = racing
		return s, inner, racing, g.ID
	}

	t.Run("Add lost to the same add", func(t *testing.T) {
		s, inner, racing, id := setup(t)
		racing.beforeAdd = func(ctx context.Context, groupID, uid string, at time.Time) {
			if err := inner.AddMember(ctx, groupID, uid, at); err != nil {
				t.Fatalf("competing add: %v", err)
			}
		}
		_, err := s.AddMember(ctx, id, "c", "a")
		wantKind(t, err, KindConflict, msgAlreadyMember)
	})

	t.Run("Add lost without a visible change", func(t *testing.T) {
		s, _, _, id := setup(t)
		_, err := s.AddMember(ctx, id, "c", "a")
		wantKind(t, err, KindConflict, "Group changed concurrently, try again")
	})

	t.Run("Kick lost to a leave", func(t *testing.T) {
		s, inner, racing, id := setup(t)
		racing.beforeRemove = func(ctx context.Context, groupID, uid string, at time.Time) {
			if err := inner.RemoveMember(ctx, groupID, uid, at); err != nil {
				t.Fatalf("competing leave: %v", err)
			}
		}
		_, err := s.RemoveMember(ctx, id, "b", "a")
		wantKind(t, err, KindNotFound, msgNotMember)
	})

	t.Run("Remove lost without a visible change", func(t *testing.T) {
		s, _, _, id := setup(t)
		_, err := s.RemoveMember(ctx, id, "b", "a")
		wantKind(t, err, KindConflict, "Group changed concurrently, try again")
	})
}

