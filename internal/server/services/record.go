package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/akarpov91/vaultd/internal/common"
	"github.com/akarpov91/vaultd/internal/cryptox"
	"github.com/akarpov91/vaultd/internal/dbx"
	sc "github.com/akarpov91/vaultd/internal/server/config"
	"github.com/akarpov91/vaultd/internal/server/keys"
	"github.com/akarpov91/vaultd/internal/server/models"
	"github.com/akarpov91/vaultd/internal/server/repositories/records"
	"github.com/akarpov91/vaultd/internal/server/repositories/repomanager"
)

var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// CreateRecordInput carries the plaintext fields of a new record.
type CreateRecordInput struct {
	Type     models.RecordType
	Source   models.RecordSource
	SourceID string
	Title    string
	Content  string
	Metadata map[string]any
	Tags     []string
	FilePath string
}

// UpdateRecordInput patches a record. Nil fields are left unchanged.
type UpdateRecordInput struct {
	Type     *models.RecordType
	Title    *string
	Content  *string
	Metadata *map[string]any
	Tags     *[]string
	FilePath *string
}

// ListRecordsInput narrows and pages a listing.
type ListRecordsInput struct {
	Type        models.RecordType
	Source      models.RecordSource
	TagNames    []string
	TitleSearch string
	Offset      int
	Limit       int
}

// ListRecordsResult is one page of decrypted records.
type ListRecordsResult struct {
	Items   []*models.DecryptedRecord
	Total   int
	HasMore bool
}

const defaultPageSize = 50

// RecordService encrypts records on write and decrypts them on read using
// the owner's derived master key. Plaintext never reaches the repositories.
type RecordService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	deriver     *keys.Deriver
	config      *sc.Config
}

func NewRecordService(db *sql.DB, repomanager repomanager.RepositoryManager, deriver *keys.Deriver, config *sc.Config) *RecordService {
	return &RecordService{
		db:          db,
		repomanager: repomanager,
		deriver:     deriver,
		config:      config,
	}
}

// Create encrypts and stores a new record, attaching the given tags
// (created on first use).
func (s *RecordService) Create(ctx context.Context, identity *models.Identity, input CreateRecordInput) (*models.DecryptedRecord, error) {
	if !input.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown record type %q", common.ErrValidation, input.Type)
	}
	if input.Source == "" {
		input.Source = models.SourceManual
	}
	if !input.Source.Valid() {
		return nil, fmt.Errorf("%w: unknown record source %q", common.ErrValidation, input.Source)
	}

	key, err := s.deriver.MasterKey(ctx, identity)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(key)

	contentEnc, err := cryptox.Encrypt([]byte(input.Content), key)
	if err != nil {
		return nil, err
	}
	metadataEnc, err := encryptMetadata(input.Metadata, key)
	if err != nil {
		return nil, err
	}

	record := &models.Record{
		IdentityID:        identity.ID,
		Type:              input.Type,
		Source:            input.Source,
		SourceID:          input.SourceID,
		Title:             input.Title,
		ContentEncrypted:  contentEnc,
		MetadataEncrypted: metadataEnc,
		FilePath:          input.FilePath,
	}

	err = s.withTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		created, err := s.repomanager.Records(tx).Create(ctx, record)
		if err != nil {
			return err
		}
		record = created
		return s.attachTags(ctx, tx, identity.ID, record.ID, input.Tags)
	})
	if err != nil {
		return nil, fmt.Errorf("error creating record: %w", err)
	}

	return s.decryptRecord(record, key, normalizeTags(input.Tags))
}

// Get returns one decrypted record owned by the identity.
func (s *RecordService) Get(ctx context.Context, identity *models.Identity, id string) (*models.DecryptedRecord, error) {
	record, err := s.repomanager.Records(s.db).GetByID(ctx, identity.ID, id)
	if err != nil {
		return nil, err
	}

	key, err := s.deriver.MasterKey(ctx, identity)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(key)

	tagNames, err := s.repomanager.Records(s.db).TagNames(ctx, record.ID)
	if err != nil {
		return nil, err
	}

	return s.decryptRecord(record, key, tagNames)
}

// List returns one page of the identity's records, newest first. Tag names
// filter with OR semantics; the title search is a case-insensitive substring
// match.
func (s *RecordService) List(ctx context.Context, identity *models.Identity, input ListRecordsInput) (*ListRecordsResult, error) {
	if input.Limit <= 0 {
		input.Limit = defaultPageSize
	}
	if input.Offset < 0 {
		input.Offset = 0
	}

	repo := s.repomanager.Records(s.db)
	items, total, err := repo.List(ctx, identity.ID, records.Filter{
		Type:        input.Type,
		Source:      input.Source,
		TagNames:    input.TagNames,
		TitleSearch: input.TitleSearch,
	}, records.Page{Offset: input.Offset, Limit: input.Limit})
	if err != nil {
		return nil, err
	}

	key, err := s.deriver.MasterKey(ctx, identity)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(key)

	decrypted := make([]*models.DecryptedRecord, 0, len(items))
	for _, record := range items {
		tagNames, err := repo.TagNames(ctx, record.ID)
		if err != nil {
			return nil, err
		}
		d, err := s.decryptRecord(record, key, tagNames)
		if err != nil {
			return nil, err
		}
		decrypted = append(decrypted, d)
	}

	return &ListRecordsResult{
		Items:   decrypted,
		Total:   total,
		HasMore: input.Offset+input.Limit < total,
	}, nil
}

// Update applies a partial update, re-encrypting any changed sensitive
// fields.
func (s *RecordService) Update(ctx context.Context, identity *models.Identity, id string, input UpdateRecordInput) (*models.DecryptedRecord, error) {
	repo := s.repomanager.Records(s.db)
	record, err := repo.GetByID(ctx, identity.ID, id)
	if err != nil {
		return nil, err
	}

	key, err := s.deriver.MasterKey(ctx, identity)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(key)

	if input.Type != nil {
		if !input.Type.Valid() {
			return nil, fmt.Errorf("%w: unknown record type %q", common.ErrValidation, *input.Type)
		}
		record.Type = *input.Type
	}
	if input.Title != nil {
		record.Title = *input.Title
	}
	if input.Content != nil {
		record.ContentEncrypted, err = cryptox.Encrypt([]byte(*input.Content), key)
		if err != nil {
			return nil, err
		}
	}
	if input.Metadata != nil {
		record.MetadataEncrypted, err = encryptMetadata(*input.Metadata, key)
		if err != nil {
			return nil, err
		}
	}
	if input.FilePath != nil {
		record.FilePath = *input.FilePath
	}

	err = s.withTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Records(tx).Update(ctx, record); err != nil {
			return err
		}
		if input.Tags != nil {
			return s.attachTags(ctx, tx, identity.ID, record.ID, *input.Tags)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error updating record: %w", err)
	}

	tagNames, err := repo.TagNames(ctx, record.ID)
	if err != nil {
		return nil, err
	}

	return s.decryptRecord(record, key, tagNames)
}

// Delete soft-deletes the record; it disappears from reads but the row is
// retained.
func (s *RecordService) Delete(ctx context.Context, identity *models.Identity, id string) (time.Time, error) {
	return s.repomanager.Records(s.db).SoftDelete(ctx, identity.ID, id)
}

// withTx runs fn inside a database transaction. With the in-memory backend
// there is no *sql.DB; fn runs directly and the repositories ignore the nil
// handle.
func (s *RecordService) withTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	if s.db == nil {
		return fn(ctx, nil)
	}
	return dbx.WithTx(ctx, s.db, nil, fn)
}

// attachTags resolves tag names to ids, creating missing tags, and replaces
// the record's associations. Names are deduplicated; empty names are
// dropped.
func (s *RecordService) attachTags(ctx context.Context, tx dbx.DBTX, identityID, recordID string, tagNames []string) error {
	names := normalizeTags(tagNames)

	tagRepo := s.repomanager.Tags(tx)
	tagIDs := make([]string, 0, len(names))
	for _, name := range names {
		tag, err := tagRepo.GetByName(ctx, identityID, name)
		if errors.Is(err, common.ErrNotFound) {
			tag, err = tagRepo.Create(ctx, &models.Tag{IdentityID: identityID, Name: name})
			if errors.Is(err, common.ErrConflict) {
				// Concurrent create; re-read.
				tag, err = tagRepo.GetByName(ctx, identityID, name)
			}
		}
		if err != nil {
			return err
		}
		tagIDs = append(tagIDs, tag.ID)
	}

	return s.repomanager.Records(tx).SetTags(ctx, recordID, tagIDs)
}

func normalizeTags(tagNames []string) []string {
	seen := make(map[string]struct{}, len(tagNames))
	names := make([]string, 0, len(tagNames))
	for _, name := range tagNames {
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

func encryptMetadata(metadata map[string]any, key []byte) (string, error) {
	if metadata == nil {
		return "", nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("encoding metadata: %w", err)
	}
	return cryptox.Encrypt(data, key)
}

func (s *RecordService) decryptRecord(record *models.Record, key []byte, tagNames []string) (*models.DecryptedRecord, error) {
	content, err := cryptox.Decrypt(record.ContentEncrypted, key)
	if err != nil {
		return nil, err
	}

	var metadata map[string]any
	if record.MetadataEncrypted != "" {
		data, err := cryptox.Decrypt(record.MetadataEncrypted, key)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, &metadata); err != nil {
			return nil, fmt.Errorf("decoding metadata: %w", err)
		}
	}

	if tagNames == nil {
		tagNames = []string{}
	}

	return &models.DecryptedRecord{
		ID:        record.ID,
		Type:      record.Type,
		Source:    record.Source,
		SourceID:  record.SourceID,
		Title:     record.Title,
		Content:   string(content),
		Metadata:  metadata,
		Tags:      tagNames,
		FilePath:  record.FilePath,
		CreatedAt: record.CreatedAt,
		UpdatedAt: record.UpdatedAt,
	}, nil
}

// GetRandomStorageKey builds a date-partitioned object key for an upload.
func GetRandomStorageKey() string {
	d := time.Now()
	return fmt.Sprintf("users/%d/%d/%d/%v", d.Year(), d.Month(), d.Day(), uuid.New())
}

func (s *RecordService) getPresignClient() (*s3.PresignClient, error) {
	cfg, err := loadDefaultAWSConfig(context.Background(),
		awsconfig.WithRegion(s.config.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
	})

	return newS3PresignClient(client), nil
}

// GetPresignedPutUrl returns a fresh storage key and a URL that allows the
// client to upload the (client-side encrypted) attachment directly.
func (s *RecordService) GetPresignedPutUrl(ctx context.Context) (string, string, error) {
	presignClient, err := s.getPresignClient()
	if err != nil {
		return "", "", err
	}

	bucket := s.config.S3Bucket
	key := GetRandomStorageKey()

	req, err := presignPutObject(presignClient, ctx, &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(15*time.Minute))
	if err != nil {
		return "", "", err
	}

	return key, req.URL, nil
}

// GetPresignedGetUrl returns a download URL for the record's attachment.
// The record must belong to the identity and carry a file path.
func (s *RecordService) GetPresignedGetUrl(ctx context.Context, identity *models.Identity, recordID string) (string, error) {
	record, err := s.repomanager.Records(s.db).GetByID(ctx, identity.ID, recordID)
	if err != nil {
		return "", err
	}
	if record.FilePath == "" {
		return "", common.ErrNotFound
	}

	presignClient, err := s.getPresignClient()
	if err != nil {
		return "", err
	}

	bucket := s.config.S3Bucket

	req, err := presignGetObject(presignClient, ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &record.FilePath,
	}, s3.WithPresignExpires(15*time.Minute))
	if err != nil {
		return "", err
	}

	return req.URL, nil
}
