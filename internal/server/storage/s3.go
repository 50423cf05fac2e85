// Package storage adapts an S3-compatible object store to the blob-store
// contract consumed by the link services: accept a byte stream, return a
// stable reference key, and issue short-lived signed retrieval URLs.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	sc "github.com/avelichko/linkvault/internal/server/config"
	"github.com/google/uuid"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// BlobStore is the external collaborator contract for binary payloads.
type BlobStore interface {
	// Put stores the payload under a fresh key and returns that key.
	Put(ctx context.Context, data []byte, contentType string) (string, error)
	// SignRetrievalURL returns a presigned GET URL valid for the duration.
	SignRetrievalURL(ctx context.Context, key string, validFor time.Duration) (string, error)
}

// RandomStorageKey produces a date-partitioned random object key.
func RandomStorageKey() string {
	d := time.Now()
	return fmt.Sprintf("links/%d/%d/%d/%v", d.Year(), d.Month(), d.Day(), uuid.New())
}

// S3Store implements BlobStore against an S3-compatible backend. The SDK
// client is constructed lazily exactly once; the store itself is built by
// the composition root and injected, never reached through a global.
type S3Store struct {
	config *sc.Config

	once    sync.Once
	client  *s3.Client
	presign *s3.PresignClient
	initErr error
}

func NewS3Store(config *sc.Config) *S3Store {
	return &S3Store{config: config}
}

func (s *S3Store) clients(ctx context.Context) (*s3.Client, *s3.PresignClient, error) {
	s.once.Do(func() {
		cfg, err := awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(s.config.S3Region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				s.config.S3RootUser,
				s.config.S3RootPassword,
				"",
			)))
		if err != nil {
			s.initErr = err
			return
		}

		s.client = s3.NewFromConfig(cfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
			o.UsePathStyle = true
		})
		s.presign = s3.NewPresignClient(s.client)
	})

	if s.initErr != nil {
		return nil, nil, fmt.Errorf("s3 client init: %w", s.initErr)
	}
	return s.client, s.presign, nil
}

func (s *S3Store) Put(ctx context.Context, data []byte, contentType string) (string, error) {
	client, _, err := s.clients(ctx)
	if err != nil {
		return "", err
	}

	bucket := s.config.S3Bucket
	key := RandomStorageKey()

	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("s3 put: %w", err)
	}

	return key, nil
}

func (s *S3Store) SignRetrievalURL(ctx context.Context, key string, validFor time.Duration) (string, error) {
	_, presign, err := s.clients(ctx)
	if err != nil {
		return "", err
	}

	bucket := s.config.S3Bucket

	req, err := presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(validFor))
	if err != nil {
		return "", fmt.Errorf("s3 presign: %w", err)
	}

	return req.URL, nil
}
