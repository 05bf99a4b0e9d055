package documents

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/genomic-case-qc/internal/domain"
)

// S3Source reads documents from <prefix>/<kind>/<id>.json in one bucket, the
// layout of the bulk export dump.
type S3Source struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Source builds a client from the default AWS credential chain.
func NewS3Source(ctx context.Context, cfg domain.S3Config) (*S3Source, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.PathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewS3SourceFromClient(client, cfg.Bucket, cfg.Prefix), nil
}

// NewS3SourceFromClient wraps an existing client.
func NewS3SourceFromClient(client *s3.Client, bucket, prefix string) *S3Source {
	return &S3Source{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

func (s *S3Source) dir(kind string) string {
	if s.prefix == "" {
		return kind + "/"
	}
	return path.Join(s.prefix, kind) + "/"
}

// Fetch implements Source.
func (s *S3Source) Fetch(ctx context.Context, kind, id string) (domain.Document, error) {
	key := s.dir(kind) + id + ".json"
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: &key})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("s3://%s/%s: %w", s.bucket, key, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("getting s3://%s/%s: %w", s.bucket, key, err)
	}
	defer out.Body.Close()
	return Decode(out.Body, "s3://"+s.bucket+"/"+key)
}

// List implements Source. Ids come back sorted.
func (s *S3Source) List(ctx context.Context, kind string) ([]string, error) {
	prefix := s.dir(kind)
	var ids []string
	var token *string
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            &s.bucket,
			Prefix:            &prefix,
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("listing s3://%s/%s: %w", s.bucket, prefix, err)
		}
		for _, obj := range out.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
			if strings.Contains(name, "/") || !strings.HasSuffix(name, ".json") {
				continue
			}
			ids = append(ids, strings.TrimSuffix(name, ".json"))
		}
		if out.IsTruncated != nil && *out.IsTruncated && out.NextContinuationToken != nil {
			token = out.NextContinuationToken
			continue
		}
		break
	}
	sort.Strings(ids)
	return ids, nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var re *awshttp.ResponseError
	return errors.As(err, &re) && re.HTTPStatusCode() == http.StatusNotFound
}
