// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys and credentials. Credentials come from three
// places, highest precedence first: explicit values (flags, config), process
// environment (optionally seeded from a .env file), and a directory of
// plain-text files where the filename is the key name and the trimmed
// contents are the value.
package secrets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// Key files recognized in the secrets directory.
const (
	OpenAIAPIKey          = "openai-api-key"
	SerpAPIKey            = "serpapi-api-key"
	SemanticScholarAPIKey = "semantic-scholar-api-key"
	ZoteroAPIKey          = "zotero-api-key"
	ZoteroUserID          = "zotero-user-id"
)

// envNames maps key files to the environment variables that may also carry them.
var envNames = map[string]string{
	OpenAIAPIKey:          "OPENAI_API_KEY",
	SerpAPIKey:            "SERPAPI_API_KEY",
	SemanticScholarAPIKey: "SEMANTIC_SCHOLAR_API_KEY",
	ZoteroAPIKey:          "ZOTERO_API_KEY",
	ZoteroUserID:          "ZOTERO_USER_ID",
}

// Store is the set of credentials loaded at startup.
type Store map[string]string

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory is not an error; Load returns an empty Store.
// Unreadable files produce a warning on stderr but do not abort.
func Load(dir string) (Store, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Store{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	s := make(Store)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not read secret %s: %v\n", name, err)
			continue
		}

		if value := strings.TrimSpace(string(data)); value != "" {
			s[name] = value
		}
	}
	return s, nil
}

// LoadEnvFile seeds the process environment from a dotenv file. Variables
// already set in the environment win. A missing file is not an error.
func LoadEnvFile(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("loading %s: %w", path, err)
}

// Resolve returns the first non-empty value among explicit, the environment
// variable associated with key, and the key file in s.
func (s Store) Resolve(key, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if env, ok := envNames[key]; ok {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			return v
		}
	}
	return s[key]
}

// Keys returns the loaded key names without their values.
func (s Store) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	return keys
}
