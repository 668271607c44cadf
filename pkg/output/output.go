// Package output writes finished images to a blob bucket.
package output

import (
	"bytes"
	"context"
	"image/png"

	"github.com/pkg/errors"
	"gocloud.dev/blob"

	// Supported bucket schemes: file://, gs:// and mem://
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"

	"github.com/df07/go-tiled-raytracer/pkg/framebuffer"
)

// ContentType of the encoded images
const ContentType = "image/png"

// Encode returns the buffer as PNG bytes
func Encode(buf *framebuffer.ColorBuffer) ([]byte, error) {
	var b bytes.Buffer
	if err := png.Encode(&b, buf.RGBA()); err != nil {
		return nil, errors.Wrap(err, "encoding png")
	}
	return b.Bytes(), nil
}

// Save encodes the buffer as PNG and writes it to key in the bucket at
// bucketURL, returning the written location.
func Save(ctx context.Context, bucketURL, key string, buf *framebuffer.ColorBuffer) (string, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return "", errors.Wrapf(err, "opening bucket %s", bucketURL)
	}
	defer bucket.Close()
	return Write(ctx, bucket, key, buf)
}

// Write encodes the buffer as PNG into an open bucket
func Write(ctx context.Context, bucket *blob.Bucket, key string, buf *framebuffer.ColorBuffer) (string, error) {
	data, err := Encode(buf)
	if err != nil {
		return "", err
	}

	w, err := bucket.NewWriter(ctx, key, &blob.WriterOptions{ContentType: ContentType})
	if err != nil {
		return "", errors.Wrapf(err, "opening %s", key)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return "", errors.Wrapf(err, "writing %s", key)
	}
	if err := w.Close(); err != nil {
		return "", errors.Wrapf(err, "closing %s", key)
	}
	return key, nil
}
