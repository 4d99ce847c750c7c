// Package gcp holds helpers shared by the Google Cloud adapters.
package gcp

import (
	"os"
	"strings"

	"google.golang.org/api/option"
)

// ClientOptions builds client options from a credentials value. The value
// may be inline service-account JSON or a path to a key file. When empty,
// GOOGLE_APPLICATION_CREDENTIALS_JSON is consulted, and if that is unset too
// the clients fall back to application default credentials.
func ClientOptions(credentials string) []option.ClientOption {
	creds := strings.TrimSpace(credentials)
	if creds == "" {
		creds = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON"))
	}
	if creds == "" {
		return nil
	}
	if strings.HasPrefix(creds, "{") {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(creds))}
	}
	return []option.ClientOption{option.WithCredentialsFile(creds)}
}
