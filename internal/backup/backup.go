// Package backup uploads Turtle exports of a replica to S3-compatible
// storage.
package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/roach88/triplesync/internal/engine"
)

// ContentTypeTurtle is the media type of uploaded exports.
const ContentTypeTurtle = "text/turtle; charset=utf-8"

// Putter is the part of *s3.Client used here.
type Putter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Config holds S3 settings. Credentials come from the default AWS chain.
type Config struct {
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string // optional, e.g. MinIO
	PathStyle bool
}

// NewClient builds an S3 client from cfg.
func NewClient(ctx context.Context, cfg Config) (*s3.Client, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}

// Result describes an uploaded export.
type Result struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
	Digest string `json:"digest"`
	Bytes  int    `json:"bytes"`
}

// Key returns the default object key: <prefix><replica>/<clock>-<digest[:12]>.ttl.
func Key(prefix string, st engine.Stats) string {
	digest := st.Digest
	if len(digest) > 12 {
		digest = digest[:12]
	}
	return fmt.Sprintf("%s%s/%d-%s.ttl", prefix, st.ReplicaID, st.Clock, digest)
}

// Upload exports r as Turtle and writes it to cfg.Bucket. An empty key
// selects Key(cfg.Prefix, ...).
func Upload(ctx context.Context, p Putter, cfg Config, r *engine.Replica, key string) (Result, error) {
	if cfg.Bucket == "" {
		return Result{}, errors.New("backup: bucket is required")
	}
	st, err := r.Stats()
	if err != nil {
		return Result{}, fmt.Errorf("stats: %w", err)
	}
	var buf bytes.Buffer
	if err := r.ExportGraph(&buf, engine.SyntaxTurtle); err != nil {
		return Result{}, fmt.Errorf("export: %w", err)
	}
	if key == "" {
		key = Key(cfg.Prefix, st)
	}

	size := buf.Len()
	_, err = p.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String(ContentTypeTurtle),
		Metadata: map[string]string{
			"replica-id": string(st.ReplicaID),
			"digest":     st.Digest,
			"clock":      strconv.FormatInt(int64(st.Clock), 10),
		},
	})
	if err != nil {
		return Result{}, fmt.Errorf("put s3://%s/%s: %w", cfg.Bucket, key, err)
	}
	return Result{Bucket: cfg.Bucket, Key: key, Digest: st.Digest, Bytes: size}, nil
}
