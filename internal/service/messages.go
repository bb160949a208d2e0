package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nextmessage/backend/internal/blob"
	"github.com/nextmessage/backend/internal/metrics"
	"github.com/nextmessage/backend/internal/models"
	"github.com/nextmessage/backend/internal/repository"
)

const DefaultMaxImageBytes = 10 << 20

type Messages struct {
	profiles      repository.ProfileRepository
	messages      repository.MessageRepository
	blobs         blob.Store
	maxImageBytes int64
	now           func() time.Time
}

func NewMessages(profiles repository.ProfileRepository, messages repository.MessageRepository, blobs blob.Store, maxImageBytes int64) *Messages {
	if maxImageBytes <= 0 {
		maxImageBytes = DefaultMaxImageBytes
	}
	return &Messages{
		profiles:      profiles,
		messages:      messages,
		blobs:         blobs,
		maxImageBytes: maxImageBytes,
		now:           time.Now,
	}
}

// Send stores a direct message from sender to the request's receiver.
func (s *Messages) Send(ctx context.Context, sender string, req *models.SendMessageRequest) (*models.DirectMessage, error) {
	receiver := strings.TrimSpace(req.ReceiverID)
	if err := req.Normalize(); err != nil {
		return nil, asValidation(err)
	}
	if receiver == sender {
		return nil, validation(msgSelfMessage)
	}

	if _, err := s.profiles.GetByUID(ctx, receiver); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound(msgUserNotFound)
		}
		return nil, err
	}

	m := &models.DirectMessage{
		ID:         uuid.NewString(),
		SenderID:   sender,
		ReceiverID: receiver,
		Content:    req.Content,
		Type:       req.Type,
		ImageID:    req.ImageID,
		Timestamp:  s.now().UTC().Truncate(time.Millisecond),
	}
	if err := s.messages.Create(ctx, m); err != nil {
		return nil, err
	}

	metrics.MessagesSent.WithLabelValues("direct").Inc()
	return m, nil
}

// Conversation returns every message between self and other, oldest first.
func (s *Messages) Conversation(ctx context.Context, self, other string) ([]models.DirectMessage, error) {
	other = strings.TrimSpace(other)
	if other == "" {
		return nil, validation("A conversation partner is required")
	}
	return s.messages.Between(ctx, self, other)
}

// MarkRead marks everything sender sent to receiver as read. Repeating the
// call changes nothing.
func (s *Messages) MarkRead(ctx context.Context, sender, receiver string) (int64, error) {
	sender = strings.TrimSpace(sender)
	if sender == "" {
		return 0, validation("A sender is required")
	}
	return s.messages.MarkRead(ctx, sender, receiver)
}

type ClearResult struct {
	Messages     int64 `json:"deleted_messages"`
	Images       int   `json:"deleted_images"`
	FailedImages int   `json:"failed_images"`
}

// Clear deletes the conversation between self and other in both directions,
// along with the images it references. A blob that cannot be deleted is
// logged and does not stop the clear.
func (s *Messages) Clear(ctx context.Context, self, other string) (*ClearResult, error) {
	other = strings.TrimSpace(other)
	if other == "" {
		return nil, validation("A conversation partner is required")
	}

	imageIDs, err := s.messages.ImageIDsBetween(ctx, self, other)
	if err != nil {
		return nil, err
	}

	res := &ClearResult{}
	for _, id := range imageIDs {
		if err := s.blobs.Delete(ctx, id); err != nil {
			slog.WarnContext(ctx, "failed to delete image", "image_id", id, "error", err)
			res.FailedImages++
			continue
		}
		res.Images++
	}

	res.Messages, err = s.messages.DeleteBetween(ctx, self, other)
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "conversation cleared", "uid", self, "with", other,
		"messages", res.Messages, "images", res.Images)
	return res, nil
}

// UploadImage stores an image payload and returns its id.
func (s *Messages) UploadImage(ctx context.Context, filename, contentType string, size int64, r io.Reader) (string, error) {
	if !strings.HasPrefix(contentType, "image/") {
		return "", validation(msgNotAnImage)
	}
	if size > s.maxImageBytes {
		return "", validation("Image must be at most %d bytes", s.maxImageBytes)
	}

	// Cap the read at the upload limit.
	id, err := s.blobs.Put(ctx, filename, contentType, size, io.LimitReader(r, s.maxImageBytes))
	if err != nil {
		return "", err
	}
	slog.DebugContext(ctx, "image uploaded", "image_id", id, "content_type", contentType, "size", size)
	return id, nil
}

func (s *Messages) OpenImage(ctx context.Context, id string) (*blob.Object, error) {
	obj, err := s.blobs.Open(ctx, id)
	switch {
	case errors.Is(err, blob.ErrInvalidID):
		return nil, validation(msgInvalidImageID)
	case errors.Is(err, blob.ErrNotFound):
		return nil, notFound(msgImageNotFound)
	case err != nil:
		return nil, err
	}
	return obj, nil
}
