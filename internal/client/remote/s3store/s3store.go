// Package s3store implements the remote record store on S3-compatible
// object storage (AWS S3, MinIO). Every record is one JSON object at
//
//	<prefix>/<owner>/<entity>/<id>.json
//
// Queries list the owner's objects and filter them client-side, which is
// fine for the per-user collection sizes this store is used for.
package s3store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/dmitrijs2005/quotekeeper/internal/client/models"
	"github.com/dmitrijs2005/quotekeeper/internal/client/remote"
	"github.com/dmitrijs2005/quotekeeper/internal/common"
	"github.com/dmitrijs2005/quotekeeper/internal/timex"
)

// API is the part of *s3.Client the store uses.
type API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Options configure the S3 client.
type Options struct {
	Bucket       string
	Region       string
	BaseEndpoint string // empty means AWS
	AccessKey    string
	SecretKey    string
	Prefix       string
}

// NewClient builds an S3 client with static credentials. A custom endpoint
// switches to path-style addressing, which MinIO needs.
func NewClient(ctx context.Context, o Options) (*s3.Client, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(o.Region)}
	if o.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(o.AccessKey, o.SecretKey, "")))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: load aws config: %w", common.ErrRemote, err)
	}

	return s3.NewFromConfig(cfg, func(so *s3.Options) {
		if o.BaseEndpoint != "" {
			so.BaseEndpoint = aws.String(o.BaseEndpoint)
			so.UsePathStyle = true
		}
	}), nil
}

// Backend binds an API to a bucket and key prefix.
type Backend struct {
	api    API
	bucket string
	prefix string
	clock  timex.Clock
}

func New(api API, bucket, prefix string, clock timex.Clock) *Backend {
	if clock == nil {
		clock = timex.SystemClock{}
	}
	return &Backend{api: api, bucket: bucket, prefix: strings.Trim(prefix, "/"), clock: clock}
}

func (b *Backend) Store(e models.EntityType) remote.Store {
	return &Store{b: b, entity: e}
}

// Store is the remote.Store of one entity type.
type Store struct {
	b      *Backend
	entity models.EntityType
}

func (s *Store) dir(owner string) string {
	return path.Join(s.b.prefix, owner, string(s.entity)) + "/"
}

func (s *Store) key(owner, id string) string {
	return s.dir(owner) + id + ".json"
}

// Upsert puts one object per record. It stops at the first failure; the
// objects written before it stay written.
func (s *Store) Upsert(ctx context.Context, records []models.Record) error {
	for _, r := range records {
		if r.OwnerID == "" || r.ID == "" {
			return fmt.Errorf("%w: record %q needs id and owner", common.ErrValidation, r.ID)
		}
		if err := s.put(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) put(ctx context.Context, r models.Record) error {
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode %s: %w", r.ID, err)
	}
	_, err = s.b.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.b.bucket),
		Key:         aws.String(s.key(r.OwnerID, r.ID)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("%w: put %s: %w", common.ErrRemote, r.ID, err)
	}
	return nil
}

// get returns (nil, nil) when the object does not exist.
func (s *Store) get(ctx context.Context, key string) (*models.Record, error) {
	out, err := s.b.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: get %s: %w", common.ErrRemote, key, err)
	}
	defer out.Body.Close()

	b, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", common.ErrRemote, key, err)
	}
	var r models.Record
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", common.ErrRemote, key, err)
	}
	return &r, nil
}

func (s *Store) list(ctx context.Context, owner string) ([]string, error) {
	var (
		keys  []string
		token *string
	)
	for {
		out, err := s.b.api.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.b.bucket),
			Prefix:            aws.String(s.dir(owner)),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: list %s: %w", common.ErrRemote, s.dir(owner), err)
		}
		for _, obj := range out.Contents {
			if k := aws.ToString(obj.Key); strings.HasSuffix(k, ".json") {
				keys = append(keys, k)
			}
		}
		if !aws.ToBool(out.IsTruncated) {
			return keys, nil
		}
		token = out.NextContinuationToken
	}
}

func (s *Store) Query(ctx context.Context, q remote.Query) ([]models.Record, error) {
	keys, err := s.list(ctx, q.OwnerID)
	if err != nil {
		return nil, err
	}

	var result []models.Record
	for _, k := range keys {
		r, err := s.get(ctx, k)
		if err != nil {
			return nil, err
		}
		if r != nil && q.Matches(*r) {
			result = append(result, *r)
		}
	}
	remote.SortForPaging(result)
	if q.Limit > 0 && len(result) > q.Limit {
		result = result[:q.Limit]
	}
	return result, nil
}

func (s *Store) Delete(ctx context.Context, id, ownerID string) error {
	r, err := s.get(ctx, s.key(ownerID, id))
	if err != nil {
		return err
	}
	if r == nil || r.IsDeleted() {
		return nil
	}
	now := s.b.clock.Now()
	r.DeletedAt = &now
	r.UpdatedAt = now
	return s.put(ctx, *r)
}
