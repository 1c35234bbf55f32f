package registry

import (
	"context"
	"io"
	"io/ioutil"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"

	"github.com/convoycd/convoy"
)

const (
	artifactPrefix = "artifacts/"
	aliasPrefix    = "aliases/"
)

// Minio is a Client backed by any S3-compatible object store.
// Artifact blobs live under artifacts/<key>; each alias is a small
// object under aliases/<alias> whose body is the target key, so an
// alias write is a single atomic object put (last writer wins).
type Minio struct {
	client *minio.Client
	bucket string
}

// MinioConfig carries the connection details. The credential values
// are opaque secrets; nothing here may log them.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Secure    bool
}

func NewMinio(cfg MinioConfig) (*Minio, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, errors.Wrap(err, "constructing object store client")
	}
	return &Minio{client: client, bucket: cfg.Bucket}, nil
}

func (r *Minio) Push(ctx context.Context, key string, content io.Reader) (Artifact, error) {
	name := artifactPrefix + key
	if info, err := r.client.StatObject(ctx, r.bucket, name, minio.StatObjectOptions{}); err == nil {
		// Already pushed; immutable, so leave it be.
		return Artifact{Key: key, CreatedAt: info.LastModified}, nil
	} else if !isNotFound(err) {
		return Artifact{}, translate(err, key)
	}
	if _, err := r.client.PutObject(ctx, r.bucket, name, content, -1, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	}); err != nil {
		return Artifact{}, translate(err, key)
	}
	info, err := r.client.StatObject(ctx, r.bucket, name, minio.StatObjectOptions{})
	if err != nil {
		return Artifact{}, translate(err, key)
	}
	return Artifact{Key: key, CreatedAt: info.LastModified}, nil
}

func (r *Minio) Pull(ctx context.Context, key string) (Artifact, io.ReadCloser, error) {
	name := artifactPrefix + key
	info, err := r.client.StatObject(ctx, r.bucket, name, minio.StatObjectOptions{})
	if err != nil {
		return Artifact{}, nil, translate(err, key)
	}
	obj, err := r.client.GetObject(ctx, r.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return Artifact{}, nil, translate(err, key)
	}
	return Artifact{Key: key, CreatedAt: info.LastModified}, obj, nil
}

func (r *Minio) Tag(ctx context.Context, key, alias string) error {
	// Check-then-write: the artifact must exist when the alias lands.
	// Between remote calls the registry itself is the arbiter; an
	// artifact is never deleted by us, so the check cannot go stale.
	if _, err := r.client.StatObject(ctx, r.bucket, artifactPrefix+key, minio.StatObjectOptions{}); err != nil {
		return translate(err, key)
	}
	_, err := r.client.PutObject(ctx, r.bucket, aliasPrefix+alias, strings.NewReader(key), int64(len(key)), minio.PutObjectOptions{
		ContentType: "text/plain",
	})
	if err != nil {
		return translate(err, key)
	}
	return nil
}

func (r *Minio) Resolve(ctx context.Context, alias string) (Artifact, error) {
	obj, err := r.client.GetObject(ctx, r.bucket, aliasPrefix+alias, minio.GetObjectOptions{})
	if err != nil {
		return Artifact{}, translate(err, alias)
	}
	defer obj.Close()
	buf, err := ioutil.ReadAll(obj)
	if err != nil {
		return Artifact{}, translate(err, alias)
	}
	key := strings.TrimSpace(string(buf))
	info, err := r.client.StatObject(ctx, r.bucket, artifactPrefix+key, minio.StatObjectOptions{})
	if err != nil {
		return Artifact{}, translate(err, key)
	}
	return Artifact{Key: key, CreatedAt: info.LastModified}, nil
}

func isNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket"
}

func translate(err error, key string) error {
	if isNotFound(err) {
		return &convoy.ArtifactNotFoundError{Key: key}
	}
	switch minio.ToErrorResponse(err).Code {
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return &AuthError{Err: err}
	case "":
		// Not an S3 error response at all; we never reached the store.
		return &NetworkError{Err: err}
	}
	return err
}
