package blob

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const gridFSBucketName = "images"

type fileMetadata struct {
	ContentType  string `bson:"content_type"`
	OriginalName string `bson:"original_name"`
	Size         int64  `bson:"size"`
}

// GridFSStore keeps images in the "images" GridFS bucket next to the documents.
type GridFSStore struct {
	bucket *mongo.GridFSBucket
}

func NewGridFSStore(db *mongo.Database) *GridFSStore {
	return &GridFSStore{bucket: db.GridFSBucket(options.GridFSBucket().SetName(gridFSBucketName))}
}

func (s *GridFSStore) Put(ctx context.Context, filename, contentType string, size int64, r io.Reader) (string, error) {
	meta := fileMetadata{ContentType: contentType, OriginalName: filename, Size: size}
	id, err := s.bucket.UploadFromStream(ctx, filename, r, options.GridFSUpload().SetMetadata(meta))
	if err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}
	return id.Hex(), nil
}

func parseObjectID(id string) (bson.ObjectID, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return bson.ObjectID{}, ErrInvalidID
	}
	return oid, nil
}

func (s *GridFSStore) Open(ctx context.Context, id string) (*Object, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return nil, err
	}

	stream, err := s.bucket.OpenDownloadStream(ctx, oid)
	if errors.Is(err, mongo.ErrFileNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}

	file := stream.GetFile()
	var meta fileMetadata
	if len(file.Metadata) > 0 {
		if err := bson.Unmarshal(file.Metadata, &meta); err != nil {
			stream.Close()
			return nil, fmt.Errorf("failed to decode image metadata: %w", err)
		}
	}
	if meta.ContentType == "" {
		meta.ContentType = "application/octet-stream"
	}

	return &Object{ReadCloser: stream, ContentType: meta.ContentType, Size: file.Length}, nil
}

func (s *GridFSStore) Delete(ctx context.Context, id string) error {
	oid, err := parseObjectID(id)
	if err != nil {
		return err
	}
	err = s.bucket.Delete(ctx, oid)
	if errors.Is(err, mongo.ErrFileNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	return nil
}
