// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys and credentials from a directory of plain-text files.
// Each file in the directory represents one secret: the filename is the key name and the
// file contents (trimmed) are the value.
//
// Supported key files: openai-api-key, gemini-api-key.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/deep-research/pkg/types"
)

// ProviderKey maps a language-model provider to its environment variable and
// secret file name. Unknown providers fall back to the OpenAI credential.
func ProviderKey(provider types.Provider) (envVar, fileName string) {
	switch provider {
	case types.ProviderGemini:
		return "GEMINI_API_KEY", "gemini-api-key"
	default:
		return "OPENAI_API_KEY", "openai-api-key"
	}
}

// APIKeyFor resolves the credential for a provider: the environment variable
// wins, then the loaded secrets map. Returns "" when neither is set.
func APIKeyFor(provider types.Provider, loaded map[string]string) string {
	envVar, fileName := ProviderKey(provider)
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return loaded[fileName]
}

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files produce a warning on stderr but do not abort.
func Load(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not read secret %s: %v\n", name, err)
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}
