package source

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/pankaj-dahiya-devops/manifest-policy/internal/manifest"
)

// S3API is the narrow S3 interface used by S3Loader. It embeds
// ListObjectsV2APIClient so the SDK paginator can be used directly.
type S3API interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// ClientFactory creates an S3API from an AWS config.
// Injection point: tests replace this with a function returning a fake client.
type ClientFactory func(cfg aws.Config) S3API

// NewS3Client creates the production S3 client.
func NewS3Client(cfg aws.Config) S3API {
	return s3.NewFromConfig(cfg)
}

// AWSOptions selects the shared-config profile and region. Empty values use
// the SDK defaults; an unresolved region falls back to us-east-1.
type AWSOptions struct {
	Profile string
	Region  string
}

// LoadS3Client resolves AWS credentials from the standard shared config and
// environment and builds a client through f.
func LoadS3Client(ctx context.Context, o AWSOptions, f ClientFactory) (S3API, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if o.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(o.Profile))
	}
	if o.Region != "" {
		opts = append(opts, awsconfig.WithRegion(o.Region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	return f(cfg), nil
}

// S3Location is a parsed s3://bucket/prefix URI.
type S3Location struct {
	Bucket string
	Prefix string
}

func (l S3Location) String() string {
	return "s3://" + l.Bucket + "/" + l.Prefix
}

// ParseS3URI parses s3://bucket or s3://bucket/prefix.
func ParseS3URI(uri string) (S3Location, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return S3Location{}, fmt.Errorf("parse S3 URI %q: %w", uri, err)
	}
	if u.Scheme != "s3" {
		return S3Location{}, fmt.Errorf("S3 URI %q: scheme must be s3", uri)
	}
	if u.Host == "" {
		return S3Location{}, fmt.Errorf("S3 URI %q: bucket is empty", uri)
	}
	return S3Location{Bucket: u.Host, Prefix: strings.TrimPrefix(u.Path, "/")}, nil
}

// defaultFetchConcurrency bounds concurrent GetObject calls.
const defaultFetchConcurrency = 8

// S3Loader reads manifests stored under an S3 prefix.
type S3Loader struct {
	client      S3API
	concurrency int
}

// NewS3Loader returns a loader that uses client for all S3 calls.
func NewS3Loader(client S3API) *S3Loader {
	return &S3Loader{client: client, concurrency: defaultFetchConcurrency}
}

// Load lists every manifest object under loc and downloads it. Sources come
// back sorted by key and carry their s3:// URI as ID.
func (l *S3Loader) Load(ctx context.Context, loc S3Location) ([]manifest.Source, error) {
	keys, err := l.listKeys(ctx, loc)
	if err != nil {
		return nil, err
	}

	out := make([]manifest.Source, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for i, key := range keys {
		g.Go(func() error {
			raw, err := l.getObject(gctx, loc.Bucket, key)
			if err != nil {
				return err
			}
			out[i] = manifest.Source{ID: "s3://" + loc.Bucket + "/" + key, Content: raw}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	klog.V(2).InfoS("Loaded manifests from S3", "location", loc.String(), "objects", len(out))
	return out, nil
}

func (l *S3Loader) listKeys(ctx context.Context, loc S3Location) ([]string, error) {
	paginator := s3.NewListObjectsV2Paginator(l.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(loc.Bucket),
		Prefix: aws.String(loc.Prefix),
	})
	var keys []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list objects in %s: %w", loc, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if strings.HasSuffix(key, "/") || !IsManifestFile(key) {
				continue
			}
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (l *S3Loader) getObject(ctx context.Context, bucket, key string) ([]byte, error) {
	obj, err := l.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get s3://%s/%s: %w", bucket, key, err)
	}
	defer obj.Body.Close()
	raw, err := io.ReadAll(obj.Body)
	if err != nil {
		return nil, fmt.Errorf("read s3://%s/%s: %w", bucket, key, err)
	}
	return raw, nil
}
