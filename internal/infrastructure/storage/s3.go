package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"time"

	cfgpkg "geniemath/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

const docxContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// S3Storage 生成文档的对象存储（S3 / MinIO 兼容）
// 日志表只记对象键，文件字节全部放在这里
type S3Storage struct {
	client *s3.Client
	bucket string
}

func InitS3(cfg *cfgpkg.S3Config) *S3Storage {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)))
	if err != nil {
		log.Fatalf("加载 S3 配置失败: %v", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true // MinIO 需要 path-style 寻址
		}
	})

	log.Println("S3 客户端创建成功")
	return &S3Storage{client: client, bucket: cfg.Bucket}
}

// NewObjectKey 生成对象键，按日期分目录便于清理
func NewObjectKey() string {
	d := time.Now()
	return fmt.Sprintf("worksheets/%d/%02d/%02d/%s.docx", d.Year(), d.Month(), d.Day(), uuid.New())
}

// Upload 上传文档字节，返回对象键
func (s *S3Storage) Upload(ctx context.Context, key string, data []byte) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(docxContentType),
	})
	if err != nil {
		return "", fmt.Errorf("上传文档失败: %w", err)
	}
	return key, nil
}

// Download 按对象键取回文档字节
func (s *S3Storage) Download(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("下载文档失败: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("读取文档内容失败: %w", err)
	}
	return data, nil
}
