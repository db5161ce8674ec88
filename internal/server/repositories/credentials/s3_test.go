package credentials

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObjects struct {
	objects map[string][]byte
	putErr  error
	getErr  error
	puts    int
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{objects: map[string][]byte{}}
}

func (f *fakeObjects) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = b
	f.puts++
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeObjects) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	b, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(b))}, nil
}

func TestS3Repository_MissingObjectLoadsEmpty(t *testing.T) {
	repo := NewS3Repository(newFakeObjects(), "gophauth", "gophauth/users.json")

	out, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestS3Repository_SaveLoad(t *testing.T) {
	objects := newFakeObjects()
	repo := NewS3Repository(objects, "gophauth", "gophauth/users.json")
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, sampleRecords()))
	assert.Equal(t, 1, objects.puts)
	assert.Contains(t, objects.objects, "gophauth/gophauth/users.json")

	out, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleRecords(), out)
}

func TestS3Repository_Errors(t *testing.T) {
	objects := newFakeObjects()
	repo := NewS3Repository(objects, "gophauth", "k")
	ctx := context.Background()

	objects.putErr = errors.New("access denied")
	assert.ErrorContains(t, repo.Save(ctx, sampleRecords()), "access denied")

	objects.getErr = errors.New("timeout")
	_, err := repo.Load(ctx)
	assert.ErrorContains(t, err, "timeout")
}

func TestS3Repository_CorruptObject(t *testing.T) {
	objects := newFakeObjects()
	objects.objects["gophauth/k"] = []byte("not json")
	repo := NewS3Repository(objects, "gophauth", "k")

	_, err := repo.Load(context.Background())
	assert.ErrorIs(t, err, common.ErrStoreCorrupt)
}

func TestS3Repository_Quarantine(t *testing.T) {
	objects := newFakeObjects()
	repo := NewS3Repository(objects, "gophauth", "users.json")
	ctx := context.Background()
	at := time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)

	dst, err := repo.Quarantine(ctx, at)
	require.NoError(t, err)
	assert.Empty(t, dst)
	assert.Equal(t, 0, objects.puts)

	objects.objects["gophauth/users.json"] = []byte("not json")
	dst, err = repo.Quarantine(ctx, at)
	require.NoError(t, err)
	assert.Equal(t, "users.json.corrupt-20261015T093000.000000000Z", dst)
	assert.Equal(t, []byte("not json"), objects.objects["gophauth/"+dst])
	assert.Equal(t, []byte("not json"), objects.objects["gophauth/users.json"])

	objects.getErr = errors.New("timeout")
	_, err = repo.Quarantine(ctx, at)
	assert.ErrorContains(t, err, "timeout")
}
