package source

import (
	"context"
	"errors"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 serves objects from memory, two keys per list page.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]string
	getErr  map[string]error
	lists   int
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	f.lists++
	f.mu.Unlock()

	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	start := 0
	if tok := aws.ToString(in.ContinuationToken); tok != "" {
		start, _ = strconv.Atoi(tok)
	}
	end := min(start+2, len(keys))
	out := &s3.ListObjectsV2Output{}
	for _, k := range keys[start:end] {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	if end < len(keys) {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(strconv.Itoa(end))
	}
	return out, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	key := aws.ToString(in.Key)
	if err := f.getErr[key]; err != nil {
		return nil, err
	}
	body, ok := f.objects[key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func TestParseS3URI(t *testing.T) {
	loc, err := ParseS3URI("s3://manifests/prod/apps")
	require.NoError(t, err)
	assert.Equal(t, S3Location{Bucket: "manifests", Prefix: "prod/apps"}, loc)

	loc, err = ParseS3URI("s3://manifests")
	require.NoError(t, err)
	assert.Equal(t, "", loc.Prefix)

	for _, bad := range []string{"https://manifests/prod", "s3:///prod", "manifests/prod"} {
		_, err := ParseS3URI(bad)
		assert.Error(t, err, bad)
	}
}

func TestS3Loader_PaginatesFiltersAndSorts(t *testing.T) {
	fake := &fakeS3{objects: map[string]string{
		"prod/c.yaml":      "kind: C\n",
		"prod/a.yaml":      "kind: A\n",
		"prod/b.json":      `{"kind":"B"}`,
		"prod/notes.txt":   "ignored",
		"prod/dir/":        "",
		"prod/dir/d.yml":   "kind: D\n",
		"staging/e.yaml":   "kind: E\n",
		"prod/README.md":   "ignored",
		"prod/zz/last.yml": "kind: Z\n",
	}}

	srcs, err := NewS3Loader(fake).Load(context.Background(), S3Location{Bucket: "manifests", Prefix: "prod/"})
	require.NoError(t, err)

	var got []string
	for _, s := range srcs {
		got = append(got, s.ID)
	}
	assert.Equal(t, []string{
		"s3://manifests/prod/a.yaml",
		"s3://manifests/prod/b.json",
		"s3://manifests/prod/c.yaml",
		"s3://manifests/prod/dir/d.yml",
		"s3://manifests/prod/zz/last.yml",
	}, got)
	assert.Equal(t, "kind: A\n", string(srcs[0].Content))
	assert.Greater(t, fake.lists, 1, "listing should span several pages")
}

func TestS3Loader_GetErrorFailsLoad(t *testing.T) {
	fake := &fakeS3{
		objects: map[string]string{"a.yaml": "kind: A\n", "b.yaml": "kind: B\n"},
		getErr:  map[string]error{"b.yaml": errors.New("AccessDenied")},
	}
	_, err := NewS3Loader(fake).Load(context.Background(), S3Location{Bucket: "m"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s3://m/b.yaml")
	assert.Contains(t, err.Error(), "AccessDenied")
}

func TestLoadS3Client_UsesFactory(t *testing.T) {
	t.Setenv("AWS_PROFILE", "")
	t.Setenv("AWS_REGION", "")
	t.Setenv("AWS_DEFAULT_REGION", "")
	t.Setenv("AWS_CONFIG_FILE", t.TempDir()+"/config")
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", t.TempDir()+"/credentials")

	fake := &fakeS3{}
	var gotRegion string
	client, err := LoadS3Client(context.Background(), AWSOptions{Region: "eu-west-1"}, func(cfg aws.Config) S3API {
		gotRegion = cfg.Region
		return fake
	})
	require.NoError(t, err)
	assert.Same(t, fake, client)
	assert.Equal(t, "eu-west-1", gotRegion)
}
