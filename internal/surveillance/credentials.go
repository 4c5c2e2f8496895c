package surveillance

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadCredentials reads OAuth2 client-credentials from a JSON file of the
// form {"client_id": "...", "client_secret": "...", "scope": "..."}. An empty
// path or a missing file yields zero-value Credentials (anonymous access)
// rather than an error, so surveillance can run unauthenticated by default.
func LoadCredentials(path string) (Credentials, error) {
	if path == "" {
		return Credentials{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Credentials{}, nil
		}
		return Credentials{}, fmt.Errorf("read credentials file: %w", err)
	}

	var raw struct {
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`
		Scope        string `json:"scope"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Credentials{}, fmt.Errorf("parse credentials file: %w", err)
	}
	return Credentials{ClientID: raw.ClientID, ClientSecret: raw.ClientSecret, Scope: raw.Scope}, nil
}
