package activity_model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"

	"github.com/turtacn/molscore/pkg/errors"
)

var gzipMagic = []byte{0x1f, 0x8b}

// Decode parses a classifier artifact of at most DefaultMaxArtifactBytes.
// Gzip-compressed documents are detected by their magic bytes.
func Decode(data []byte) (Classifier, error) {
	return DecodeLimit(data, DefaultMaxArtifactBytes)
}

// DecodeLimit is Decode with an explicit cap on the decompressed size.
func DecodeLimit(data []byte, maxBytes int64) (Classifier, error) {
	if bytes.HasPrefix(data, gzipMagic) {
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeModelDecodeFailed, "failed to open compressed classifier")
		}
		defer zr.Close()
		data, err = io.ReadAll(io.LimitReader(zr, maxBytes+1))
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeModelDecodeFailed, "failed to decompress classifier")
		}
		if int64(len(data)) > maxBytes {
			return nil, errors.New(errors.ErrCodeModelDecodeFailed, "decompressed classifier too large").
				WithDetail(fmt.Sprintf("exceeds %d bytes", maxBytes))
		}
	}

	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeModelDecodeFailed, "failed to decode classifier")
	}
	return a.Build()
}

// Encode serialises an artifact, optionally gzip-compressed.
func Encode(a *Artifact, compress bool) ([]byte, error) {
	raw, err := json.Marshal(a)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode classifier")
	}
	if !compress {
		return raw, nil
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to compress classifier")
	}
	if err := zw.Close(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to compress classifier")
	}
	return buf.Bytes(), nil
}
