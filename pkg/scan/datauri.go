package scan

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// EncodeDataURI returns a base64 data URI for the given payload.
func EncodeDataURI(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURI splits a base64 data URI into its MIME type and payload.
// A bare base64 string is accepted and reported as image/jpeg.
func DecodeDataURI(uri string) (string, []byte, error) {
	mimeType := "image/jpeg"
	payload := uri

	if strings.HasPrefix(uri, "data:") {
		header, body, ok := strings.Cut(uri[len("data:"):], ",")
		if !ok {
			return "", nil, fmt.Errorf("scan: malformed data URI")
		}
		if !strings.HasSuffix(header, ";base64") {
			return "", nil, fmt.Errorf("scan: data URI is not base64")
		}
		if m := strings.TrimSuffix(header, ";base64"); m != "" {
			mimeType = m
		}
		payload = body
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("scan: decode data URI: %w", err)
	}
	return mimeType, data, nil
}
