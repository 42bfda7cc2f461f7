package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"recruit-agent-go/internal/config"
	"recruit-agent-go/internal/logger"
)

const resumeContentType = "application/pdf"

// ObjectStorage 对象存储接口
type ObjectStorage interface {
	// UploadResumeFile 上传原始简历PDF，返回对象键
	UploadResumeFile(ctx context.Context, candidateID, filename string, reader io.Reader, fileSize int64) (string, error)

	// GetResumeFile 按对象键下载原始简历
	GetResumeFile(ctx context.Context, objectKey string) ([]byte, error)

	// GetPresignedURL 获取限时下载链接
	GetPresignedURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error)

	// DeleteResumeFile 删除原始简历
	DeleteResumeFile(ctx context.Context, objectKey string) error
}

// 确保MinIO实现了ObjectStorage接口
var _ ObjectStorage = (*MinIO)(nil)

// MinIO 提供简历原始文件的对象存储
type MinIO struct {
	client       *minio.Client
	cfg          *config.MinIOConfig
	resumeBucket string
}

// NewMinIO 创建MinIO客户端并确保简历存储桶存在
func NewMinIO(cfg *config.MinIOConfig) (*MinIO, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MinIO配置不能为空")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("创建MinIO客户端失败: %w", err)
	}

	bucket := cfg.ResumeBucket
	if bucket == "" {
		bucket = "resumes"
	}

	m := &MinIO{
		client:       client,
		cfg:          cfg,
		resumeBucket: bucket,
	}

	if err := m.ensureBucketExists(context.Background(), bucket, cfg.Location); err != nil {
		return nil, fmt.Errorf("确保简历存储桶 %s 存在失败: %w", bucket, err)
	}

	logger.Info().Str("endpoint", cfg.Endpoint).Str("bucket", bucket).Msg("MinIO客户端初始化完成")
	return m, nil
}

// ensureBucketExists 确保存储桶存在
func (m *MinIO) ensureBucketExists(ctx context.Context, bucketName, location string) error {
	exists, err := m.client.BucketExists(ctx, bucketName)
	if err != nil {
		return fmt.Errorf("检查存储桶 %s 是否存在时出错: %w", bucketName, err)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{Region: location}); err != nil {
		return fmt.Errorf("创建存储桶 %s 失败: %w", bucketName, err)
	}
	logger.Info().Str("bucket", bucketName).Msg("存储桶创建成功")
	return nil
}

// ResumeObjectKey 生成简历对象键，按候选人ID分目录，保留原始文件名便于排查
func ResumeObjectKey(candidateID, filename string) string {
	return fmt.Sprintf("candidates/%s/%s", candidateID, filename)
}

// UploadResumeFile 上传原始简历PDF，返回对象键
func (m *MinIO) UploadResumeFile(ctx context.Context, candidateID, filename string, reader io.Reader, fileSize int64) (string, error) {
	objectKey := ResumeObjectKey(candidateID, filename)

	_, err := m.client.PutObject(ctx, m.resumeBucket, objectKey, reader, fileSize, minio.PutObjectOptions{
		ContentType: resumeContentType,
	})
	if err != nil {
		return "", fmt.Errorf("上传简历文件 %s 失败: %w", objectKey, err)
	}

	logger.Debug().Str("object_key", objectKey).Int64("size", fileSize).Msg("简历文件上传成功")
	return objectKey, nil
}

// GetResumeFile 按对象键下载原始简历
func (m *MinIO) GetResumeFile(ctx context.Context, objectKey string) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, m.resumeBucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("获取简历文件 %s 失败: %w", objectKey, err)
	}
	defer obj.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, obj); err != nil {
		return nil, fmt.Errorf("读取简历文件 %s 失败: %w", objectKey, err)
	}
	return buf.Bytes(), nil
}

// GetPresignedURL 获取限时下载链接
func (m *MinIO) GetPresignedURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error) {
	u, err := m.client.PresignedGetObject(ctx, m.resumeBucket, objectKey, expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("生成预签名URL失败 %s: %w", objectKey, err)
	}
	return u.String(), nil
}

// DeleteResumeFile 删除原始简历
func (m *MinIO) DeleteResumeFile(ctx context.Context, objectKey string) error {
	if objectKey == "" {
		return nil
	}
	if err := m.client.RemoveObject(ctx, m.resumeBucket, objectKey, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("删除简历文件 %s 失败: %w", objectKey, err)
	}
	return nil
}
