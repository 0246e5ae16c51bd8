// Package export writes the ledger out as JSON Lines, to a writer or to S3.
package export

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"iter"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"payguard/internal/ledger"
)

// Summary describes a finished export.
type Summary struct {
	Entries  int
	LastSeq  uint64
	SHA256   string
	Location string
}

// WriteJSONL writes one entry per line and returns the count and a digest of
// the bytes written.
func WriteJSONL(w io.Writer, entries iter.Seq2[ledger.Entry, error]) (Summary, error) {
	h := sha256.New()
	enc := json.NewEncoder(io.MultiWriter(w, h))
	var sum Summary
	for e, err := range entries {
		if err != nil {
			return sum, err
		}
		if err := enc.Encode(e); err != nil {
			return sum, fmt.Errorf("write entry %d: %w", e.Sequence, err)
		}
		sum.Entries++
		sum.LastSeq = e.Sequence
	}
	sum.SHA256 = hex.EncodeToString(h.Sum(nil))
	return sum, nil
}

// PutObjectAPI is the subset of *s3.Client used for uploads.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Config locates the export bucket. Endpoint is for MinIO or LocalStack.
type S3Config struct {
	Bucket   string
	Region   string
	Endpoint string
	Prefix   string
}

// NewS3Client loads the default AWS credential chain.
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// ToS3 buffers the export and uploads it as a single object under
// prefix+name. The digest is attached as object metadata.
func ToS3(ctx context.Context, api PutObjectAPI, cfg S3Config, name string, entries iter.Seq2[ledger.Entry, error]) (Summary, error) {
	var buf bytes.Buffer
	sum, err := WriteJSONL(&buf, entries)
	if err != nil {
		return sum, err
	}
	key := cfg.Prefix + name
	_, err = api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
		Metadata: map[string]string{
			"entries":  fmt.Sprint(sum.Entries),
			"last-seq": fmt.Sprint(sum.LastSeq),
			"sha256":   sum.SHA256,
		},
	})
	if err != nil {
		return sum, fmt.Errorf("s3 put failed: %w", err)
	}
	sum.Location = "s3://" + cfg.Bucket + "/" + key
	return sum, nil
}

// ReadJSONL decodes an export back into entries, for offline verification.
func ReadJSONL(r io.Reader) iter.Seq2[ledger.Entry, error] {
	return func(yield func(ledger.Entry, error) bool) {
		dec := json.NewDecoder(r)
		for {
			var e ledger.Entry
			err := dec.Decode(&e)
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(ledger.Entry{}, fmt.Errorf("decode export: %w", err))
				return
			}
			if !yield(e, nil) {
				return
			}
		}
	}
}
