package gcp

import (
	"os"
	"strings"

	"google.golang.org/api/option"
)

// credentialOptions prefers an explicit credentials file, then inline JSON
// from GOOGLE_APPLICATION_CREDENTIALS_JSON. Nil falls through to ADC.
func credentialOptions(file string) []option.ClientOption {
	if file = strings.TrimSpace(file); file != "" {
		return []option.ClientOption{option.WithCredentialsFile(file)}
	}
	if inline := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON")); strings.HasPrefix(inline, "{") {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(inline))}
	}
	return nil
}
