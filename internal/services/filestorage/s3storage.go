package filestorage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/gabriel-vasile/mimetype"

	"github.com/cozy-creator/captcha-server/internal/config"
)

type S3FileStorage struct {
	client *s3.Client
	cfg    *config.S3Config
}

func NewS3FileStorage(ctx context.Context, cfg *config.S3Config) (*S3FileStorage, error) {
	if cfg == nil || cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 config is not set")
	}

	region := cfg.Region
	if region == "" {
		region = "auto"
	}

	credentialsProvider := credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
	awsCfg, err := awsConfig.LoadDefaultConfig(
		ctx,
		awsConfig.WithRegion(region),
		awsConfig.WithCredentialsProvider(credentialsProvider),
	)
	if err != nil {
		return nil, err
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.EndpointUrl != "" {
			o.BaseEndpoint = &cfg.EndpointUrl
		}
	})

	return &S3FileStorage{
		client: s3Client,
		cfg:    cfg,
	}, nil
}

func (u *S3FileStorage) key(filename string) string {
	folder := strings.Trim(u.cfg.Folder, "/")
	if folder == "" {
		return filename
	}
	return folder + "/" + filename
}

func (u *S3FileStorage) Upload(ctx context.Context, file FileInfo) (string, error) {
	key := u.key(file.Filename())
	mtype := mimetype.Detect(file.Content).String()

	input := s3.PutObjectInput{
		Key:         &key,
		ContentType: &mtype,
		Bucket:      &u.cfg.Bucket,
		Body:        bytes.NewReader(file.Content),
	}
	if _, err := u.client.PutObject(ctx, &input); err != nil {
		return "", err
	}

	if u.cfg.PublicUrl != "" {
		return fmt.Sprintf("%s/%s", strings.TrimSuffix(u.cfg.PublicUrl, "/"), key), nil
	}

	return fmt.Sprintf("s3://%s/%s", u.cfg.Bucket, key), nil
}

func (u *S3FileStorage) Exists(ctx context.Context, filename string) (bool, error) {
	key := u.key(filename)
	_, err := u.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: &u.cfg.Bucket,
		Key:    &key,
	})
	if err == nil {
		return true, nil
	}

	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return false, nil
	}
	return false, err
}
