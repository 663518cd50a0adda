package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"VoxNote/core/apperr"
	"VoxNote/logger"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MaxPresignExpiry SigV4 预签名 URL 允许的最长有效期
const MaxPresignExpiry = 7 * 24 * time.Hour

// Config MinIO / S3 连接配置
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// NewMinioClient 创建 MinIO 客户端。显式指定 Region，避免每次请求前查询存储桶位置。
func NewMinioClient(cfg Config) (*minio.Client, error) {
	logger.Info("正在连接 MinIO 服务器...",
		logger.String("endpoint", cfg.Endpoint),
		logger.String("region", cfg.Region),
		logger.String("bucket", cfg.Bucket))

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:       cfg.UseSSL,
		Region:       cfg.Region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("创建 MinIO 客户端失败: %w", err)
	}
	return client, nil
}

// EnsureBucket 检查存储桶是否存在，不存在则创建
func EnsureBucket(ctx context.Context, client *minio.Client, bucket, region string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("检查存储桶失败: %w", err)
	}
	if exists {
		logger.Info("存储桶已存在", logger.String("bucket", bucket))
		return nil
	}

	if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return fmt.Errorf("创建存储桶失败: %w", err)
	}
	logger.Info("成功创建存储桶", logger.String("bucket", bucket))
	return nil
}

// UploadResult 上传结果
type UploadResult struct {
	Key       string
	URL       string
	ExpiresAt time.Time
	Size      int64
}

// ObjectStore 将录音写入对象存储并签发限时访问 URL。
// 每次调用生成新的 key，从不覆盖已有对象。
type ObjectStore struct {
	client *minio.Client
	bucket string
	expiry time.Duration
	now    func() time.Time
}

// NewObjectStore 创建对象存储；expiry 超过签名上限时按上限处理
func NewObjectStore(client *minio.Client, bucket string, expiry time.Duration) *ObjectStore {
	if expiry <= 0 {
		expiry = MaxPresignExpiry
	}
	if expiry > MaxPresignExpiry {
		logger.Warn("录音 URL 有效期超出预签名上限，按上限签发",
			logger.Duration("configured", expiry),
			logger.Duration("effective", MaxPresignExpiry))
		expiry = MaxPresignExpiry
	}
	return &ObjectStore{
		client: client,
		bucket: bucket,
		expiry: expiry,
		now:    time.Now,
	}
}

// NewObjectKey 生成 {folderHint}/{UTC 时间戳}_{8 位随机后缀}
func NewObjectKey(folderHint string, now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	name := fmt.Sprintf("%s_%s", now.UTC().Format("20060102_150405"), suffix)
	folderHint = strings.Trim(folderHint, "/")
	if folderHint == "" {
		return name
	}
	return folderHint + "/" + name
}

// Store 上传数据并返回预签名的访问 URL
func (s *ObjectStore) Store(ctx context.Context, data []byte, folderHint, contentType string) (*UploadResult, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	now := s.now()
	key := NewObjectKey(folderHint, now)

	info, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		logger.Error("[ObjectStore] 上传失败", logger.String("key", key), logger.ErrorField(err))
		return nil, apperr.New(apperr.StorageFailed, "upload recording", err)
	}

	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.expiry, url.Values{})
	if err != nil {
		logger.Error("[ObjectStore] 生成预签名 URL 失败", logger.String("key", key), logger.ErrorField(err))
		return nil, apperr.New(apperr.StorageFailed, "presign recording url", err)
	}

	logger.Info("[ObjectStore] 录音已上传",
		logger.String("key", key),
		logger.Int64("size", info.Size))

	return &UploadResult{
		Key:       key,
		URL:       u.String(),
		ExpiresAt: now.Add(s.expiry),
		Size:      int64(len(data)),
	}, nil
}
