package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
)

// MediaStore is satisfied by gcp.MediaBucket and localmedia.Store.
type MediaStore interface {
	Upload(ctx context.Context, data []byte, contentType string) (key string, err error)
	URL(ctx context.Context, key string) (string, error)
}

const maxInlineAudioBytes = 10 << 20

// decodeDataURI splits "data:<mime>;base64,<payload>". ok is false when raw
// is not a data URI at all.
func decodeDataURI(raw string) (data []byte, contentType string, ok bool, err error) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "data:") {
		return nil, "", false, nil
	}
	header, payload, found := strings.Cut(raw[len("data:"):], ",")
	if !found {
		return nil, "", true, fmt.Errorf("malformed data uri")
	}
	contentType, params, _ := strings.Cut(header, ";")
	if !strings.Contains(params, "base64") {
		return nil, "", true, fmt.Errorf("data uri must be base64 encoded")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if base64.StdEncoding.DecodedLen(len(payload)) > maxInlineAudioBytes {
		return nil, "", true, fmt.Errorf("inline payload too large")
	}
	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", true, fmt.Errorf("decode data uri: %w", err)
	}
	return data, contentType, true, nil
}
