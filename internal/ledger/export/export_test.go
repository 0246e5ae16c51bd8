package export

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payguard/internal/ledger"
)

func seeded(t *testing.T, n int) *ledger.Service {
	t.Helper()
	svc, err := ledger.New(ledger.NewInMemoryStore(),
		ledger.WithClock(func() time.Time { return time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC) }))
	require.NoError(t, err)
	for i := range n {
		_, err := svc.Record(context.Background(), ledger.Draft{
			Event:          ledger.EventDecision,
			IntentID:       "int-" + string(rune('a'+i)),
			Decision:       "DENY",
			TriggeredRules: []string{"INSUFFICIENT_BALANCE"},
			Score:          1,
		})
		require.NoError(t, err)
	}
	return svc
}

func TestJSONLRoundTripVerifies(t *testing.T) {
	svc := seeded(t, 4)
	var buf bytes.Buffer
	sum, err := WriteJSONL(&buf, svc.Read(context.Background(), ledger.Filter{}))
	require.NoError(t, err)
	assert.Equal(t, 4, sum.Entries)
	assert.Equal(t, uint64(4), sum.LastSeq)
	assert.Len(t, sum.SHA256, 64)
	assert.Equal(t, 4, strings.Count(buf.String(), "\n"))

	report, err := ledger.Verify(ReadJSONL(bytes.NewReader(buf.Bytes())))
	require.NoError(t, err)
	assert.True(t, report.Valid)
	assert.Equal(t, uint64(4), report.Checked)
}

func TestTamperedExportFailsVerification(t *testing.T) {
	svc := seeded(t, 3)
	var buf bytes.Buffer
	_, err := WriteJSONL(&buf, svc.Read(context.Background(), ledger.Filter{}))
	require.NoError(t, err)

	lines := strings.SplitAfter(buf.String(), "\n")
	lines[1] = strings.Replace(lines[1], `"decision":"DENY"`, `"decision":"APPROVE"`, 1)

	report, err := ledger.Verify(ReadJSONL(strings.NewReader(strings.Join(lines, ""))))
	require.NoError(t, err)
	assert.False(t, report.Valid)
	assert.Equal(t, uint64(2), report.BrokenAt)
}

func TestReadJSONLRejectsGarbage(t *testing.T) {
	_, err := ledger.Verify(ReadJSONL(strings.NewReader("{not json")))
	assert.Error(t, err)
}

type fakeS3 struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.input = in
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, nil
}

func TestToS3(t *testing.T) {
	svc := seeded(t, 2)
	api := &fakeS3{}
	cfg := S3Config{Bucket: "audit", Prefix: "ledger/"}

	sum, err := ToS3(context.Background(), api, cfg, "2026-03-02.jsonl", svc.Read(context.Background(), ledger.Filter{}))
	require.NoError(t, err)
	assert.Equal(t, "s3://audit/ledger/2026-03-02.jsonl", sum.Location)
	assert.Equal(t, "ledger/2026-03-02.jsonl", aws.ToString(api.input.Key))
	assert.Equal(t, sum.SHA256, api.input.Metadata["sha256"])
	assert.Equal(t, 2, strings.Count(string(api.body), "\n"))

	api.err = errors.New("access denied")
	_, err = ToS3(context.Background(), api, cfg, "x.jsonl", svc.Read(context.Background(), ledger.Filter{}))
	assert.ErrorContains(t, err, "s3 put failed")
}
