package backup

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPutter struct {
	inputs []*s3.PutObjectInput
	bodies [][]byte
	err    error
}

func (p *recordingPutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if p.err != nil {
		return nil, p.err
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	p.inputs = append(p.inputs, in)
	p.bodies = append(p.bodies, body)
	return &s3.PutObjectOutput{}, nil
}

type snapshotFunc func(w io.Writer) (int64, error)

func (f snapshotFunc) WriteSnapshot(w io.Writer) (int64, error) { return f(w) }

func TestUpload(t *testing.T) {
	putter := &recordingPutter{}
	u := NewUploader(putter, "ledger-snapshots", "prod")
	now := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)

	src := snapshotFunc(func(w io.Writer) (int64, error) {
		n, err := w.Write([]byte("bolt-bytes"))
		return int64(n), err
	})
	key, err := u.Upload(context.Background(), src, now)
	require.NoError(t, err)

	assert.Equal(t, "prod/ledger-20260301T123000Z.db", key)
	require.Len(t, putter.inputs, 1)
	assert.Equal(t, "ledger-snapshots", aws.ToString(putter.inputs[0].Bucket))
	assert.Equal(t, int64(10), aws.ToInt64(putter.inputs[0].ContentLength))
	assert.Equal(t, []byte("bolt-bytes"), putter.bodies[0])
}

func TestUploadErrors(t *testing.T) {
	ok := snapshotFunc(func(w io.Writer) (int64, error) { return 0, nil })

	u := NewUploader(&recordingPutter{err: errors.New("denied")}, "b", "")
	_, err := u.Upload(context.Background(), ok, time.Now())
	assert.ErrorContains(t, err, "denied")

	broken := snapshotFunc(func(io.Writer) (int64, error) { return 0, errors.New("tx closed") })
	u = NewUploader(&recordingPutter{}, "b", "")
	_, err = u.Upload(context.Background(), broken, time.Now())
	assert.ErrorContains(t, err, "tx closed")
}

func TestKeyPrefix(t *testing.T) {
	at := time.Unix(0, 0)
	assert.Equal(t, "ledger-19700101T000000Z.db", NewUploader(nil, "b", "").Key(at))
	assert.Equal(t, "snapshots/ledger-19700101T000000Z.db", NewUploader(nil, "b", "snapshots/").Key(at))
	assert.True(t, bytes.HasPrefix([]byte(NewUploader(nil, "b", "x").Key(at)), []byte("x/")))
}
