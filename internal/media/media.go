// Package media stores uploaded images in S3-compatible object storage.
// Uploads are normalized before storage: project media is downscaled to
// fit 1280x720, avatars are center-cropped to a 50x50 PNG.
package media

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"image"
	"io"
	"log"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/DENisProd/C0NSTRUCT0R/internal/config"
	"github.com/DENisProd/C0NSTRUCT0R/internal/models"
)

const (
	projectWidth  = 1280
	projectHeight = 720
	avatarSize    = 50
)

// ErrNotAnImage is returned when an upload cannot be decoded as an image.
var ErrNotAnImage = errors.New("uploaded file is not a valid image")

// Service uploads and serves project media and avatars.
type Service struct {
	db             *sql.DB
	client         *minio.Client
	bucket         string
	publicEndpoint string
}

// NewService creates the media service and makes sure the bucket exists.
// Bucket creation failure is logged, not fatal: some deployments restrict
// bucket management to provisioning.
func NewService(db *sql.DB, cfg *config.Config) (*Service, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioSecure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	publicEndpoint := cfg.MinioPublicEndpoint
	if publicEndpoint == "" {
		scheme := "http"
		if cfg.MinioSecure {
			scheme = "https"
		}
		publicEndpoint = scheme + "://" + cfg.MinioEndpoint
	}

	service := &Service{
		db:             db,
		client:         client,
		bucket:         cfg.MinioBucket,
		publicEndpoint: strings.TrimRight(publicEndpoint, "/"),
	}
	service.ensureBucket(context.Background())
	return service, nil
}

func (s *Service) ensureBucket(ctx context.Context) {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		log.Printf("[WARN] Skipping bucket check for %s: %v", s.bucket, err)
		return
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			log.Printf("[WARN] Failed to create bucket %s: %v", s.bucket, err)
		}
	}
}

// UploadProjectMedia processes and stores one image for a project, then
// records it. The image keeps its aspect ratio, downscaled to fit within
// 1280x720.
func (s *Service) UploadProjectMedia(ctx context.Context, projectID int64, filename, contentType string, data []byte) (*models.ProjectMedia, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, ErrNotAnImage
	}

	resized := imaging.Fit(img, projectWidth, projectHeight, imaging.Lanczos)
	format, outContentType := saveFormat(filename, contentType)
	encoded, err := encode(resized, format)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	objectName := fmt.Sprintf("projects/%d/%s-%s", projectID, uuid.New().String(), filename)
	info, err := s.client.PutObject(ctx, s.bucket, objectName, bytes.NewReader(encoded), int64(len(encoded)), minio.PutObjectOptions{
		ContentType: outContentType,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload object: %w", err)
	}

	record := models.ProjectMedia{
		ProjectID:   projectID,
		Bucket:      s.bucket,
		ObjectName:  objectName,
		ETag:        info.ETag,
		ContentType: outContentType,
		FileURL:     s.fileURL(objectName),
	}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO project_media (project_id, bucket, object_name, etag, content_type, file_url)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6)
		RETURNING id, created_at
	`, record.ProjectID, record.Bucket, record.ObjectName, record.ETag, record.ContentType, record.FileURL,
	).Scan(&record.ID, &record.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to record media: %w", err)
	}
	return &record, nil
}

// UploadAvatar stores the user's avatar as a 50x50 PNG at a fixed object
// name, so re-uploading replaces the previous avatar.
func (s *Service) UploadAvatar(ctx context.Context, userID int64, data []byte) (string, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return "", ErrNotAnImage
	}

	cropped := imaging.Fill(img, avatarSize, avatarSize, imaging.Center, imaging.Lanczos)
	encoded, err := encode(cropped, imaging.PNG)
	if err != nil {
		return "", fmt.Errorf("failed to encode avatar: %w", err)
	}

	objectName := AvatarObjectName(userID)
	_, err = s.client.PutObject(ctx, s.bucket, objectName, bytes.NewReader(encoded), int64(len(encoded)), minio.PutObjectOptions{
		ContentType: "image/png",
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload avatar: %w", err)
	}
	return s.fileURL(objectName), nil
}

// AvatarObjectName is the fixed storage key for a user's avatar.
func AvatarObjectName(userID int64) string {
	return fmt.Sprintf("avatars/%d/avatar.png", userID)
}

// ListForProject returns the recorded media of a project, newest first.
func (s *Service) ListForProject(ctx context.Context, projectID int64) ([]models.ProjectMedia, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, bucket, object_name, etag, content_type, file_url, created_at
		FROM project_media
		WHERE project_id = $1
		ORDER BY created_at DESC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list media: %w", err)
	}
	defer rows.Close()

	items := []models.ProjectMedia{}
	for rows.Next() {
		var item models.ProjectMedia
		var etag, contentType, fileURL sql.NullString
		err := rows.Scan(&item.ID, &item.ProjectID, &item.Bucket, &item.ObjectName,
			&etag, &contentType, &fileURL, &item.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan media: %w", err)
		}
		item.ETag = etag.String
		item.ContentType = contentType.String
		item.FileURL = fileURL.String
		items = append(items, item)
	}
	return items, rows.Err()
}

// StreamByETag opens the stored object addressed by etag, checking that it
// belongs to one of the user's live projects. The caller must close the
// returned reader.
func (s *Service) StreamByETag(ctx context.Context, userID int64, etag string) (*models.ProjectMedia, io.ReadCloser, error) {
	var item models.ProjectMedia
	var contentType, fileURL sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT m.id, m.project_id, m.bucket, m.object_name, m.content_type, m.file_url, m.created_at
		FROM project_media m
		JOIN projects p ON p.id = m.project_id
		WHERE m.etag = $1 AND p.user_id = $2 AND p.deleted_at IS NULL
	`, etag, userID).Scan(&item.ID, &item.ProjectID, &item.Bucket, &item.ObjectName,
		&contentType, &fileURL, &item.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil, models.ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to look up media: %w", err)
	}
	item.ETag = etag
	item.ContentType = contentType.String
	item.FileURL = fileURL.String

	object, err := s.client.GetObject(ctx, item.Bucket, item.ObjectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open object: %w", err)
	}
	return &item, object, nil
}

// Delete removes one media record and its stored object. A storage-side
// delete failure is logged and the record is removed anyway.
func (s *Service) Delete(ctx context.Context, projectID, mediaID int64) error {
	var bucket, objectName string
	err := s.db.QueryRowContext(ctx, `
		SELECT bucket, object_name FROM project_media WHERE id = $1 AND project_id = $2
	`, mediaID, projectID).Scan(&bucket, &objectName)
	if err == sql.ErrNoRows {
		return models.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to look up media: %w", err)
	}

	if err := s.client.RemoveObject(ctx, bucket, objectName, minio.RemoveObjectOptions{}); err != nil {
		log.Printf("[WARN] Failed to delete object %s/%s: %v", bucket, objectName, err)
	}

	_, err = s.db.ExecContext(ctx, `DELETE FROM project_media WHERE id = $1`, mediaID)
	if err != nil {
		return fmt.Errorf("failed to delete media record: %w", err)
	}
	return nil
}

func (s *Service) fileURL(objectName string) string {
	return fmt.Sprintf("%s/%s/%s", s.publicEndpoint, s.bucket, objectName)
}

// saveFormat picks the output encoding from the declared content type,
// falling back to the filename extension and finally to PNG.
func saveFormat(filename, contentType string) (imaging.Format, string) {
	switch strings.ToLower(contentType) {
	case "image/jpeg", "image/jpg":
		return imaging.JPEG, "image/jpeg"
	case "image/png":
		return imaging.PNG, "image/png"
	case "image/gif":
		return imaging.GIF, "image/gif"
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return imaging.JPEG, "image/jpeg"
	case ".gif":
		return imaging.GIF, "image/gif"
	}
	return imaging.PNG, "image/png"
}

func encode(img image.Image, format imaging.Format) ([]byte, error) {
	var buf bytes.Buffer
	opts := []imaging.EncodeOption{}
	if format == imaging.JPEG {
		opts = append(opts, imaging.JPEGQuality(90))
	}
	if err := imaging.Encode(&buf, img, format, opts...); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
