package backup

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/triplesync/internal/engine"
	"github.com/roach88/triplesync/internal/testutil"
)

type fakePutter struct {
	bucket, key, contentType string
	body                     []byte
	meta                     map[string]string
	err                      error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.bucket = aws.ToString(in.Bucket)
	f.key = aws.ToString(in.Key)
	f.contentType = aws.ToString(in.ContentType)
	f.meta = in.Metadata
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.body = body
	return &s3.PutObjectOutput{}, nil
}

func newReplica(t *testing.T) *engine.Replica {
	t.Helper()
	wall := testutil.NewManualWallClock(5_000)
	r, err := engine.Open(context.Background(),
		engine.WithReplicaID("replica-a"),
		engine.WithWallClock(wall.Millis),
		engine.WithIDGenerator(testutil.NewSequentialIDs("task")),
	)
	require.NoError(t, err)
	_, err = r.CreateTask(context.Background(), "back me up")
	require.NoError(t, err)
	return r
}

func TestUpload(t *testing.T) {
	r := newReplica(t)
	p := &fakePutter{}

	res, err := Upload(context.Background(), p, Config{Bucket: "bucket", Prefix: "triplesync/"}, r, "")
	require.NoError(t, err)

	assert.Equal(t, "bucket", p.bucket)
	assert.Equal(t, res.Key, p.key)
	assert.True(t, strings.HasPrefix(res.Key, "triplesync/replica-a/5000-"), res.Key)
	assert.True(t, strings.HasSuffix(res.Key, ".ttl"))
	assert.Equal(t, ContentTypeTurtle, p.contentType)
	assert.Equal(t, "replica-a", p.meta["replica-id"])
	assert.Equal(t, "5000", p.meta["clock"])
	assert.Equal(t, res.Digest, p.meta["digest"])
	assert.Equal(t, len(p.body), res.Bytes)
	assert.Contains(t, string(p.body), `"back me up"`)
}

func TestUpload_ExplicitKey(t *testing.T) {
	p := &fakePutter{}
	res, err := Upload(context.Background(), p, Config{Bucket: "bucket", Prefix: "ignored/"}, newReplica(t), "fixed.ttl")
	require.NoError(t, err)
	assert.Equal(t, "fixed.ttl", res.Key)
	assert.Equal(t, "fixed.ttl", p.key)
}

func TestUpload_Errors(t *testing.T) {
	r := newReplica(t)

	_, err := Upload(context.Background(), &fakePutter{}, Config{}, r, "")
	assert.ErrorContains(t, err, "bucket is required")

	_, err = Upload(context.Background(), &fakePutter{err: errors.New("access denied")}, Config{Bucket: "b"}, r, "k")
	assert.ErrorContains(t, err, "access denied")
	assert.ErrorContains(t, err, "s3://b/k")
}

func TestKey_ShortDigest(t *testing.T) {
	st := engine.Stats{ReplicaID: "r", Clock: 7, Digest: "abc"}
	assert.Equal(t, "p/r/7-abc.ttl", Key("p/", st))
}
