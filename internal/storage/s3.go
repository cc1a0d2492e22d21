package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Config — параметры подключения к объектному хранилищу.
type Config struct {
	// Endpoint — адрес S3-совместимого хранилища (пустой — AWS)
	Endpoint string
	// Region — регион
	Region string
	// Bucket — имя bucket
	Bucket string
	// AccessKey и SecretKey — статические credentials (пустые —
	// цепочка провайдеров SDK: окружение, IAM и т.д.)
	AccessKey string
	SecretKey string
	// ForcePathStyle — path-style адресация (MinIO)
	ForcePathStyle bool
	// SignedURLTTL — время жизни подписанной ссылки
	SignedURLTTL time.Duration
}

// ObjectStore — операции с содержимым архивов.
// Сервисный слой работает через интерфейс, в тестах подменяется.
type ObjectStore interface {
	// Put сохраняет объект с контрольной суммой в метаданных
	Put(ctx context.Context, key string, body io.Reader, size int64, sha256 string) error
	// PresignGet возвращает временную подписанную ссылку на скачивание
	PresignGet(ctx context.Context, key string) (string, error)
	// Get открывает поток содержимого объекта
	Get(ctx context.Context, key string) (io.ReadCloser, int64, error)
}

// S3Store — ObjectStore поверх aws-sdk-go-v2.
type S3Store struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	signTTL time.Duration
}

// NewS3Store создаёт клиент объектного хранилища.
func NewS3Store(ctx context.Context, cfg Config) (*S3Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("ошибка конфигурации AWS SDK: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	return &S3Store{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.Bucket,
		signTTL: cfg.SignedURLTTL,
	}, nil
}

// Put сохраняет объект. SHA-256 кладётся в пользовательские метаданные.
func (s *S3Store) Put(ctx context.Context, key string, body io.Reader, size int64, sha256 string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String("application/zip"),
		Metadata: map[string]string{
			"checksum-sha256": sha256,
		},
	})
	if err != nil {
		return fmt.Errorf("ошибка загрузки объекта %s: %w", key, err)
	}
	return nil
}

// PresignGet возвращает подписанную ссылку на скачивание объекта.
func (s *S3Store) PresignGet(ctx context.Context, key string) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.signTTL))
	if err != nil {
		return "", fmt.Errorf("ошибка подписи ссылки для %s: %w", key, err)
	}
	return req.URL, nil
}

// Get открывает поток содержимого объекта для проксирования.
// Закрыть поток обязан вызывающий.
func (s *S3Store) Get(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка чтения объекта %s: %w", key, err)
	}
	return out.Body, aws.ToInt64(out.ContentLength), nil
}

// CheckReady проверяет доступность bucket для health endpoint.
// Возвращает статус ("ok", "fail") и сообщение.
func (s *S3Store) CheckReady() (status string, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return "fail", fmt.Sprintf("объектное хранилище недоступно: %v", err)
	}
	return "ok", "bucket доступен"
}
