package config

import "context"

// SecretProvider abstracts the retrieval of secrets referenced indirectly from
// the environment (e.g. OPSGENIE_API_KEY_FILE=/run/secrets/opsgenie).
type SecretProvider interface {
	// GetParametersBatch resolves each reference in keys and returns a map of
	// reference -> plaintext value for every reference it could resolve.
	// Unresolvable references are omitted from the result.
	GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error)
}
