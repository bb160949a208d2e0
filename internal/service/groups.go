package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nextmessage/backend/internal/metrics"
	"github.com/nextmessage/backend/internal/models"
	"github.com/nextmessage/backend/internal/repository"
)

// MinGroupSearchLength is the shortest query Search accepts, in runes.
const MinGroupSearchLength = 2

// Groups enforces membership and admin rules. Every mutation reads the group
// fresh and checks the actor against that copy; the store's conditional
// writes catch anything that changed in between.
type Groups struct {
	profiles repository.ProfileRepository
	groups   repository.GroupRepository
	messages repository.GroupMessageRepository
	now      func() time.Time
}

func NewGroups(repos repository.Set) *Groups {
	return &Groups{
		profiles: repos.Profiles,
		groups:   repos.Groups,
		messages: repos.GroupMessages,
		now:      time.Now,
	}
}

func (s *Groups) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

func record(op string, err error) {
	result := "ok"
	if err != nil {
		result = "rejected"
		if KindOf(err) == 0 {
			result = "error"
		}
	}
	metrics.GroupMutations.WithLabelValues(op, result).Inc()
}

// load reads a group, mapping a missing one to "Group not found".
func (s *Groups) load(ctx context.Context, id string) (*models.Group, error) {
	g, err := s.groups.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound(msgGroupNotFound)
	}
	return g, err
}

func (s *Groups) loadAsMember(ctx context.Context, id, uid string) (*models.Group, error) {
	g, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !g.IsMember(uid) {
		return nil, forbidden(msgNotGroupMember)
	}
	return g, nil
}

// Create makes creator the first admin and a member, whether or not the
// request lists them.
func (s *Groups) Create(ctx context.Context, creator string, req *models.CreateGroupRequest) (g *models.Group, err error) {
	defer func() { record("create", err) }()

	if err := req.Validate(); err != nil {
		return nil, asValidation(err)
	}
	maxMembers := models.MaxGroupSize
	if req.MaxMembers != nil {
		maxMembers = *req.MaxMembers
	}

	members := []string{creator}
	seen := map[string]struct{}{creator: {}}
	for _, id := range req.MemberIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		members = append(members, id)
	}
	if len(members) > maxMembers {
		return nil, validation("Group cannot have more than %d members", maxMembers)
	}

	now := s.timestamp()
	g = &models.Group{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		CreatedBy:   creator,
		Members:     members,
		Admins:      []string{creator},
		MaxMembers:  maxMembers,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.groups.Create(ctx, g); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "group created", "group_id", g.ID, "created_by", creator, "members", len(members))
	return g, nil
}

// Get returns a group to one of its members.
func (s *Groups) Get(ctx context.Context, groupID, viewer string) (*models.Group, error) {
	return s.loadAsMember(ctx, groupID, viewer)
}

// ListMine returns uid's groups, most recently active first.
func (s *Groups) ListMine(ctx context.Context, uid string) ([]models.Group, error) {
	return s.groups.ListByMember(ctx, uid)
}

// Search finds groups uid could discover, leaving out the ones they are in.
func (s *Groups) Search(ctx context.Context, query, uid string) ([]models.Group, error) {
	query = strings.TrimSpace(query)
	if len([]rune(query)) < MinGroupSearchLength {
		return nil, validation(msgSearchTooShort)
	}
	return s.groups.Search(ctx, query, uid, SearchLimit)
}

// AddMember lets an admin add an existing user while the group has room.
func (s *Groups) AddMember(ctx context.Context, groupID, target, actor string) (g *models.Group, err error) {
	defer func() { record("add_member", err) }()

	target = strings.TrimSpace(target)
	if target == "" {
		return nil, validation("A user to add is required")
	}

	g, err = s.load(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if reason := addRejection(g, target, actor); reason != nil {
		return nil, reason
	}

	if _, err := s.profiles.GetByUID(ctx, target); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound(msgUserNotFound)
		}
		return nil, err
	}

	err = s.groups.AddMember(ctx, groupID, target, s.timestamp())
	if errors.Is(err, repository.ErrConflict) {
		return nil, s.explainConflict(ctx, groupID, func(g *models.Group) *Error {
			return addRejection(g, target, actor)
		})
	}
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "group member added", "group_id", groupID, "uid", target, "by", actor)
	return s.load(ctx, groupID)
}

func addRejection(g *models.Group, target, actor string) *Error {
	switch {
	case !g.IsAdmin(actor):
		return forbidden(msgNotAdminAdd)
	case g.IsMember(target):
		return conflict(msgAlreadyMember)
	case g.AtCapacity():
		return conflict(msgAtCapacity)
	}
	return nil
}

// RemoveMember kicks target when actor is an admin, or lets a member leave
// when actor is target. The sole admin can do neither to themselves.
func (s *Groups) RemoveMember(ctx context.Context, groupID, target, actor string) (g *models.Group, err error) {
	op := "remove_member"
	if target == actor {
		op = "leave"
	}
	defer func() { record(op, err) }()

	g, err = s.load(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if reason := removeRejection(g, target, actor); reason != nil {
		return nil, reason
	}

	err = s.groups.RemoveMember(ctx, groupID, target, s.timestamp())
	if errors.Is(err, repository.ErrConflict) {
		return nil, s.explainConflict(ctx, groupID, func(g *models.Group) *Error {
			return removeRejection(g, target, actor)
		})
	}
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "group member removed", "group_id", groupID, "uid", target, "by", actor)
	if target == actor {
		return nil, nil
	}
	return s.load(ctx, groupID)
}

func removeRejection(g *models.Group, target, actor string) *Error {
	switch {
	case target != actor && !g.IsAdmin(actor):
		return forbidden(msgNotAdminRemove)
	case !g.IsMember(target):
		return notFound(msgNotMember)
	case g.IsLastAdmin(target):
		return conflict(msgLastAdmin)
	}
	return nil
}

// explainConflict re-reads a group after a conditional write lost a race and
// reports why the write no longer applies.
func (s *Groups) explainConflict(ctx context.Context, groupID string, check func(*models.Group) *Error) error {
	g, err := s.load(ctx, groupID)
	if err != nil {
		return err
	}
	if reason := check(g); reason != nil {
		return reason
	}
	return conflict("Group changed concurrently, try again")
}

// Update edits name, description or avatar. Admins only.
func (s *Groups) Update(ctx context.Context, groupID, actor string, u *models.GroupUpdate) (g *models.Group, err error) {
	defer func() { record("update", err) }()

	if u.Name != nil {
		name := strings.TrimSpace(*u.Name)
		u.Name = &name
	}
	if u.Description != nil {
		desc := strings.TrimSpace(*u.Description)
		u.Description = &desc
	}
	if err := u.Validate(); err != nil {
		return nil, asValidation(err)
	}

	g, err = s.load(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !g.IsAdmin(actor) {
		return nil, forbidden(msgNotAdminUpdate)
	}

	g, err = s.groups.UpdateInfo(ctx, groupID, u, s.timestamp())
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound(msgGroupNotFound)
	}
	return g, err
}

// SendMessage posts to a group. Membership is checked on every send.
func (s *Groups) SendMessage(ctx context.Context, groupID, sender string, req *models.SendGroupMessageRequest) (*models.GroupMessage, error) {
	if err := req.Normalize(); err != nil {
		return nil, asValidation(err)
	}
	if _, err := s.loadAsMember(ctx, groupID, sender); err != nil {
		return nil, err
	}

	now := s.timestamp()
	m := &models.GroupMessage{
		ID:        uuid.NewString(),
		GroupID:   groupID,
		SenderID:  sender,
		Content:   req.Content,
		Type:      req.Type,
		ImageID:   req.ImageID,
		Timestamp: now,
		ReadBy:    []string{sender},
	}
	if err := s.messages.Create(ctx, m); err != nil {
		return nil, err
	}
	if err := s.groups.Touch(ctx, groupID, now); err != nil {
		slog.WarnContext(ctx, "failed to bump group activity", "group_id", groupID, "error", err)
	}

	metrics.MessagesSent.WithLabelValues("group").Inc()
	return m, nil
}

// Messages pages backwards through a group's history. before is an RFC 3339
// timestamp; the page comes back oldest first.
func (s *Groups) Messages(ctx context.Context, groupID, viewer string, limit int, before string) ([]models.GroupMessage, error) {
	if _, err := s.loadAsMember(ctx, groupID, viewer); err != nil {
		return nil, err
	}

	var cursor *time.Time
	if before != "" {
		t, err := time.Parse(time.RFC3339Nano, before)
		if err != nil {
			return nil, validation("before must be an RFC 3339 timestamp")
		}
		cursor = &t
	}
	return s.messages.List(ctx, groupID, repository.ClampLimit(limit), cursor)
}

func (s *Groups) MarkMessageRead(ctx context.Context, groupID, messageID, uid string) error {
	if _, err := s.loadAsMember(ctx, groupID, uid); err != nil {
		return err
	}
	err := s.messages.MarkRead(ctx, groupID, messageID, uid)
	if errors.Is(err, repository.ErrNotFound) {
		return notFound(msgMessageNotFound)
	}
	return err
}

func (s *Groups) MarkAllRead(ctx context.Context, groupID, uid string) (int64, error) {
	if _, err := s.loadAsMember(ctx, groupID, uid); err != nil {
		return 0, err
	}
	return s.messages.MarkAllRead(ctx, groupID, uid)
}
