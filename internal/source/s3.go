package source

import (
	"context"
	"errors"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rotisserie/eris"
)

// S3Options configures the S3 adapter. Endpoint is optional and enables
// path-style access against S3-compatible servers such as MinIO.
type S3Options struct {
	Bucket   string
	Prefix   string
	Region   string
	Endpoint string
}

// S3Adapter serves export files from an object store laid out as
// <prefix>/<userID>/<file>. The object key is the file ID; ETag (minus its
// quotes) is the checksum.
type S3Adapter struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Adapter creates an S3 adapter using the ambient AWS credential chain.
func NewS3Adapter(ctx context.Context, opts S3Options) (*S3Adapter, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "s3: load aws config")
	}

	region := opts.Region
	if region == "" {
		region = awsCfg.Region
	}

	s3Opts := s3.Options{
		Region:       region,
		Credentials:  awsCfg.Credentials,
		HTTPClient:   awsCfg.HTTPClient,
		UsePathStyle: true,
	}
	if opts.Endpoint != "" {
		s3Opts.BaseEndpoint = aws.String(opts.Endpoint)
	}

	return &S3Adapter{
		client: s3.New(s3Opts),
		bucket: opts.Bucket,
		prefix: strings.Trim(opts.Prefix, "/"),
	}, nil
}

// ListFiles lists the user's key space and filters by the query.
func (a *S3Adapter) ListFiles(ctx context.Context, userID int64, query Query) ([]File, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(a.bucket),
		Prefix: aws.String(a.userPrefix(userID)),
	}

	var files []File
	for {
		out, err := a.client.ListObjectsV2(ctx, input)
		if err != nil {
			return nil, mapS3Error(err, "s3: list objects")
		}

		for _, obj := range out.Contents {
			key := aws.ToString(obj.Key)
			if strings.HasSuffix(key, "/") {
				continue
			}
			name := path.Base(key)
			if !query.Match(name) {
				continue
			}
			files = append(files, File{
				ID:       key,
				Name:     name,
				MimeType: mimeByName(name),
				Size:     aws.ToInt64(obj.Size),
				Checksum: strings.Trim(aws.ToString(obj.ETag), `"`),
			})
		}

		if !aws.ToBool(out.IsTruncated) {
			return files, nil
		}
		input.ContinuationToken = out.NextContinuationToken
	}
}

// Download fetches one object. fileID is the full key from ListFiles.
func (a *S3Adapter) Download(ctx context.Context, userID int64, fileID string) ([]byte, error) {
	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(fileID),
	})
	if err != nil {
		return nil, mapS3Error(err, "s3: get object")
	}
	defer out.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, eris.Wrap(err, "s3: read object body")
	}
	return data, nil
}

func (a *S3Adapter) userPrefix(userID int64) string {
	id := strconv.FormatInt(userID, 10)
	if a.prefix == "" {
		return id + "/"
	}
	return a.prefix + "/" + id + "/"
}

func mapS3Error(err error, action string) error {
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return eris.Wrap(ErrNotFound, action)
	}
	return eris.Wrap(err, action)
}
