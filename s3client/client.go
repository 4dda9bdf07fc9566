package s3client

import (
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/sts"
	"github.com/kelseyhightower/envconfig"

	"carelens.com/stitch/logger"
)

type Config struct {
	BucketName  string `envconfig:"CLS_COMN_STORAGE_CONTAINER_NAME" required:"true"`
	Env         string `envconfig:"CLS_ENV" required:"true"`
	Region      string `envconfig:"CLS_COMN_AWS_REGION_NAME" required:"true"`
	AwsEndpoint string `envconfig:"CLS_COMN_AWS_ENDPOINT_URL" default:""`
	AccessKeyID string `envconfig:"CLS_COMN_AWS_ACCESS_ID" default:""`
	AccessKey   string `envconfig:"CLS_COMN_AWS_ACCESS_KEY" default:""`
}

// Client moves patient files and stitched results in and out of the shared
// bucket. Credentials come from the instance profile when present, falling
// back to environment keys (the dev setup points the latter at a local
// endpoint).
type Client struct {
	sess   *session.Session
	bucket string
}

var clientLogger = logger.NewLogger("S3Client")

func New() (*Client, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		clientLogger.Err(err).Msg("Failed to get proper variables from environment")
		return nil, err
	}
	sess, err := newSession(cfg)
	if err != nil {
		return nil, err
	}
	return &Client{sess: sess, bucket: cfg.BucketName}, nil
}

func (client *Client) Download(key string) ([]byte, error) {
	log := clientLogger.With().Str("key", key).Str("bucket", client.bucket).Logger()
	downloader := s3manager.NewDownloader(client.sess)
	buf := aws.NewWriteAtBuffer([]byte{})
	log.Debug().Msg("Downloading file")
	size, err := downloader.Download(buf, &s3.GetObjectInput{
		Bucket: &client.bucket,
		Key:    &key,
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to download file")
		return nil, err
	}
	log.Debug().Msgf("Downloaded %v bytes", size)
	return buf.Bytes(), nil
}

func (client *Client) Upload(key string, data []byte) error {
	log := clientLogger.With().Str("key", key).Str("bucket", client.bucket).Logger()
	uploader := s3manager.NewUploader(client.sess)
	log.Debug().Msg("Uploading the file")
	_, err := uploader.Upload(&s3manager.UploadInput{
		Bucket: &client.bucket,
		Key:    &key,
		Body:   strings.NewReader(string(data)),
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to upload file")
	}
	return err
}

func (client *Client) Close() {}

func newSession(cfg Config) (*session.Session, error) {
	sess, err := session.NewSession(&aws.Config{
		Region:     aws.String(cfg.Region),
		MaxRetries: aws.Int(4),
	})
	if err == nil {
		if _, err = sts.New(sess).GetCallerIdentity(&sts.GetCallerIdentityInput{}); err == nil {
			clientLogger.Info().Msg("S3 session initialized using instance credentials")
			return sess, nil
		}
	}
	clientLogger.Info().Msg("Could not initialize S3 session from instance, trying env credentials")

	creds := credentials.NewStaticCredentials(cfg.AccessKeyID, cfg.AccessKey, "")
	if _, err := creds.Get(); err != nil {
		clientLogger.Error().Err(err).Msg("Error with credentials from environment")
		return nil, err
	}
	awsCfg := aws.NewConfig().
		WithRegion(cfg.Region).
		WithMaxRetries(4).
		WithCredentials(creds)
	if cfg.Env == "dev" && cfg.AwsEndpoint != "" {
		awsCfg = awsCfg.WithEndpoint(cfg.AwsEndpoint).WithS3ForcePathStyle(true)
	}
	sess, err = session.NewSession(awsCfg)
	if err != nil {
		clientLogger.Error().Err(err).Msg("Could not initialize S3 session")
		return nil, err
	}
	if _, err = sts.New(sess).GetCallerIdentity(&sts.GetCallerIdentityInput{}); err != nil {
		clientLogger.Error().Err(err).Msg("Could not initialize S3 session")
		return nil, errors.New("could not initialize S3 session")
	}
	clientLogger.Info().Msg("S3 session initialized using env credentials")
	return sess, nil
}
