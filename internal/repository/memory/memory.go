// Package memory keeps every repository in process memory. It backs unit tests
// and STORE_DRIVER=memory for local runs; nothing survives a restart.
package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/nextmessage/backend/internal/models"
	"github.com/nextmessage/backend/internal/repository"
)

// NewSet returns a fresh, empty set of repositories.
func NewSet() repository.Set {
	return repository.Set{
		Profiles:      NewProfileRepository(),
		Messages:      NewMessageRepository(),
		Groups:        NewGroupRepository(),
		GroupMessages: NewGroupMessageRepository(),
	}
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Profiles

type ProfileRepository struct {
	mu       sync.RWMutex
	profiles map[string]models.UserProfile
}

func NewProfileRepository() *ProfileRepository {
	return &ProfileRepository{profiles: make(map[string]models.UserProfile)}
}

func cloneProfile(p models.UserProfile) models.UserProfile {
	p.Links = slices.Clone(p.Links)
	p.PhotoURL = clonePtr(p.PhotoURL)
	p.Bio = clonePtr(p.Bio)
	p.Pronouns = clonePtr(p.Pronouns)
	return p
}

func (r *ProfileRepository) usernameOwner(username string) (string, bool) {
	for uid, p := range r.profiles {
		if p.Username == username {
			return uid, true
		}
	}
	return "", false
}

func (r *ProfileRepository) Create(_ context.Context, p *models.UserProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if owner, ok := r.usernameOwner(p.Username); ok && owner != p.UID {
		return repository.ErrUsernameTaken
	}
	if p.Links == nil {
		p.Links = []models.Link{}
	}
	r.profiles[p.UID] = cloneProfile(*p)
	return nil
}

func (r *ProfileRepository) GetByUID(_ context.Context, uid string) (*models.UserProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[uid]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := cloneProfile(p)
	return &out, nil
}

func (r *ProfileRepository) GetByUsername(_ context.Context, username string) (*models.UserProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	uid, ok := r.usernameOwner(username)
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := cloneProfile(r.profiles[uid])
	return &out, nil
}

func (r *ProfileRepository) GetByUIDs(_ context.Context, uids []string) ([]models.UserProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []models.UserProfile{}
	for _, uid := range uids {
		if p, ok := r.profiles[uid]; ok {
			out = append(out, cloneProfile(p))
		}
	}
	return out, nil
}

func (r *ProfileRepository) Search(_ context.Context, query, excludeUID string, limit int) ([]models.UserProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []models.UserProfile{}
	for uid, p := range r.profiles {
		if uid == excludeUID {
			continue
		}
		if containsFold(p.Username, query) || containsFold(p.DisplayName, query) || containsFold(p.Email, query) {
			out = append(out, cloneProfile(p))
		}
	}
	slices.SortFunc(out, func(a, b models.UserProfile) int { return cmp.Compare(a.Username, b.Username) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *ProfileRepository) UsernameTakenByOther(_ context.Context, username, uid string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	owner, ok := r.usernameOwner(username)
	return ok && owner != uid, nil
}

func (r *ProfileRepository) Update(_ context.Context, uid string, u *models.ProfileUpdate, lastSeen time.Time) (*models.UserProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.profiles[uid]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if u.Username != nil {
		if owner, taken := r.usernameOwner(*u.Username); taken && owner != uid {
			return nil, repository.ErrUsernameTaken
		}
		p.Username = *u.Username
	}
	if u.DisplayName != nil {
		p.DisplayName = *u.DisplayName
	}
	if u.Pronouns != nil {
		p.Pronouns = clonePtr(u.Pronouns)
	}
	if u.Bio != nil {
		p.Bio = clonePtr(u.Bio)
	}
	if u.Links != nil {
		p.Links = slices.Clone(*u.Links)
	}
	if u.BannerColor != nil {
		p.BannerColor = *u.BannerColor
	}
	p.LastSeen = lastSeen
	r.profiles[uid] = p

	out := cloneProfile(p)
	return &out, nil
}

func (r *ProfileRepository) TouchLastSeen(_ context.Context, uid string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.profiles[uid]
	if !ok {
		return repository.ErrNotFound
	}
	p.LastSeen = at
	r.profiles[uid] = p
	return nil
}

// Direct messages

type MessageRepository struct {
	mu       sync.RWMutex
	messages []models.DirectMessage
}

func NewMessageRepository() *MessageRepository {
	return &MessageRepository{}
}

func between(m *models.DirectMessage, a, b string) bool {
	return (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a)
}

func byTimestamp(a, b models.DirectMessage) int {
	return a.Timestamp.Compare(b.Timestamp)
}

func (r *MessageRepository) Create(_ context.Context, m *models.DirectMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *m
	stored.ImageID = clonePtr(m.ImageID)
	r.messages = append(r.messages, stored)
	return nil
}

func (r *MessageRepository) Between(_ context.Context, a, b string) ([]models.DirectMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []models.DirectMessage{}
	for i := range r.messages {
		if between(&r.messages[i], a, b) {
			out = append(out, r.messages[i])
		}
	}
	slices.SortStableFunc(out, byTimestamp)
	return out, nil
}

func (r *MessageRepository) Latest(_ context.Context, a, b string) (*models.DirectMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *models.DirectMessage
	for i := range r.messages {
		m := &r.messages[i]
		if !between(m, a, b) {
			continue
		}
		if latest == nil || !m.Timestamp.Before(latest.Timestamp) {
			latest = m
		}
	}
	if latest == nil {
		return nil, repository.ErrNotFound
	}
	out := *latest
	return &out, nil
}

func (r *MessageRepository) distinct(pick func(*models.DirectMessage) (string, bool)) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	out := []string{}
	for i := range r.messages {
		v, ok := pick(&r.messages[i])
		if !ok {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func (r *MessageRepository) Recipients(_ context.Context, uid string) ([]string, error) {
	return r.distinct(func(m *models.DirectMessage) (string, bool) {
		return m.ReceiverID, m.SenderID == uid
	}), nil
}

func (r *MessageRepository) Senders(_ context.Context, uid string) ([]string, error) {
	return r.distinct(func(m *models.DirectMessage) (string, bool) {
		return m.SenderID, m.ReceiverID == uid
	}), nil
}

func (r *MessageRepository) CountUnread(_ context.Context, senderID, receiverID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var n int64
	for _, m := range r.messages {
		if m.SenderID == senderID && m.ReceiverID == receiverID && !m.Read {
			n++
		}
	}
	return n, nil
}

func (r *MessageRepository) MarkRead(_ context.Context, senderID, receiverID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for i := range r.messages {
		m := &r.messages[i]
		if m.SenderID == senderID && m.ReceiverID == receiverID && !m.Read {
			m.Read = true
			n++
		}
	}
	return n, nil
}

func (r *MessageRepository) ImageIDsBetween(_ context.Context, a, b string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := []string{}
	for i := range r.messages {
		m := &r.messages[i]
		if between(m, a, b) && m.ImageID != nil && *m.ImageID != "" {
			ids = append(ids, *m.ImageID)
		}
	}
	return ids, nil
}

func (r *MessageRepository) DeleteBetween(_ context.Context, a, b string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	before := len(r.messages)
	r.messages = slices.DeleteFunc(r.messages, func(m models.DirectMessage) bool {
		return between(&m, a, b)
	})
	return int64(before - len(r.messages)), nil
}

// Groups

type GroupRepository struct {
	mu     sync.RWMutex
	groups map[string]models.Group
}

func NewGroupRepository() *GroupRepository {
	return &GroupRepository{groups: make(map[string]models.Group)}
}

func cloneGroup(g models.Group) models.Group {
	g.Members = slices.Clone(g.Members)
	g.Admins = slices.Clone(g.Admins)
	g.AvatarURL = clonePtr(g.AvatarURL)
	return g
}

func byUpdatedDesc(a, b models.Group) int {
	return b.UpdatedAt.Compare(a.UpdatedAt)
}

func (r *GroupRepository) Create(_ context.Context, g *models.Group) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.groups[g.ID] = cloneGroup(*g)
	return nil
}

func (r *GroupRepository) GetByID(_ context.Context, id string) (*models.Group, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.groups[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := cloneGroup(g)
	return &out, nil
}

func (r *GroupRepository) ListByMember(_ context.Context, uid string) ([]models.Group, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []models.Group{}
	for _, g := range r.groups {
		if g.IsMember(uid) {
			out = append(out, cloneGroup(g))
		}
	}
	slices.SortFunc(out, byUpdatedDesc)
	return out, nil
}

func (r *GroupRepository) Search(_ context.Context, query, uid string, limit int) ([]models.Group, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []models.Group{}
	for _, g := range r.groups {
		if g.IsMember(uid) {
			continue
		}
		if containsFold(g.Name, query) || containsFold(g.Description, query) {
			out = append(out, cloneGroup(g))
		}
	}
	slices.SortFunc(out, byUpdatedDesc)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *GroupRepository) AddMember(_ context.Context, groupID, uid string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.groups[groupID]
	if !ok {
		return repository.ErrNotFound
	}
	if g.IsMember(uid) || g.AtCapacity() {
		return repository.ErrConflict
	}
	g.Members = append(slices.Clone(g.Members), uid)
	g.UpdatedAt = at
	r.groups[groupID] = g
	return nil
}

func (r *GroupRepository) RemoveMember(_ context.Context, groupID, uid string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.groups[groupID]
	if !ok {
		return repository.ErrNotFound
	}
	if !g.IsMember(uid) || g.IsLastAdmin(uid) {
		return repository.ErrConflict
	}
	drop := func(s string) bool { return s == uid }
	g.Members = slices.DeleteFunc(slices.Clone(g.Members), drop)
	g.Admins = slices.DeleteFunc(slices.Clone(g.Admins), drop)
	g.UpdatedAt = at
	r.groups[groupID] = g
	return nil
}

func (r *GroupRepository) UpdateInfo(_ context.Context, groupID string, u *models.GroupUpdate, at time.Time) (*models.Group, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.groups[groupID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if u.Name != nil {
		g.Name = *u.Name
	}
	if u.Description != nil {
		g.Description = *u.Description
	}
	if u.AvatarURL != nil {
		g.AvatarURL = clonePtr(u.AvatarURL)
	}
	g.UpdatedAt = at
	r.groups[groupID] = g

	out := cloneGroup(g)
	return &out, nil
}

func (r *GroupRepository) Touch(_ context.Context, groupID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.groups[groupID]
	if !ok {
		return repository.ErrNotFound
	}
	g.UpdatedAt = at
	r.groups[groupID] = g
	return nil
}

// Group messages

type GroupMessageRepository struct {
	mu       sync.RWMutex
	messages []models.GroupMessage
}

func NewGroupMessageRepository() *GroupMessageRepository {
	return &GroupMessageRepository{}
}

func cloneGroupMessage(m models.GroupMessage) models.GroupMessage {
	m.ReadBy = slices.Clone(m.ReadBy)
	m.ImageID = clonePtr(m.ImageID)
	return m
}

func (r *GroupMessageRepository) Create(_ context.Context, m *models.GroupMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.messages = append(r.messages, cloneGroupMessage(*m))
	return nil
}

func (r *GroupMessageRepository) List(_ context.Context, groupID string, limit int, before *time.Time) ([]models.GroupMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	page := []models.GroupMessage{}
	for _, m := range r.messages {
		if m.GroupID != groupID {
			continue
		}
		if before != nil && !m.Timestamp.Before(*before) {
			continue
		}
		page = append(page, cloneGroupMessage(m))
	}
	// newest page first, then flip to oldest first
	slices.SortStableFunc(page, func(a, b models.GroupMessage) int { return b.Timestamp.Compare(a.Timestamp) })
	if len(page) > limit {
		page = page[:limit]
	}
	slices.Reverse(page)
	return page, nil
}

func (r *GroupMessageRepository) Latest(_ context.Context, groupID string) (*models.GroupMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *models.GroupMessage
	for i := range r.messages {
		m := &r.messages[i]
		if m.GroupID != groupID {
			continue
		}
		if latest == nil || !m.Timestamp.Before(latest.Timestamp) {
			latest = m
		}
	}
	if latest == nil {
		return nil, repository.ErrNotFound
	}
	out := cloneGroupMessage(*latest)
	return &out, nil
}

func (r *GroupMessageRepository) CountUnreadSince(_ context.Context, groupID, uid string, since time.Time) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var n int64
	for _, m := range r.messages {
		if m.GroupID == groupID && m.Timestamp.After(since) && !slices.Contains(m.ReadBy, uid) {
			n++
		}
	}
	return n, nil
}

func (r *GroupMessageRepository) MarkRead(_ context.Context, groupID, messageID, uid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.messages {
		m := &r.messages[i]
		if m.ID != messageID || m.GroupID != groupID {
			continue
		}
		if !slices.Contains(m.ReadBy, uid) {
			m.ReadBy = append(m.ReadBy, uid)
		}
		return nil
	}
	return repository.ErrNotFound
}

func (r *GroupMessageRepository) MarkAllRead(_ context.Context, groupID, uid string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for i := range r.messages {
		m := &r.messages[i]
		if m.GroupID == groupID && !slices.Contains(m.ReadBy, uid) {
			m.ReadBy = append(m.ReadBy, uid)
			n++
		}
	}
	return n, nil
}
