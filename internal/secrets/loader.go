// Package secrets resolves API keys from inline values, files or the
// environment.
package secrets

import (
	"fmt"
	"os"
	"strings"

	matcherr "github.com/spigell/gig-matcher/internal/errors"
)

// Source describes how to load a secret value.
type Source struct {
	// Name is used in error messages to give more context about the secret.
	Name string
	// Value is an inline secret value provided via configuration or flags.
	Value string
	// File points to a file containing the secret value. When set it takes
	// precedence over Value.
	File string
	// Env names an environment variable consulted when neither File nor
	// Value is set.
	Env string
}

// Load returns the resolved secret. File wins over Value, which wins over
// Env. The returned secret is always trimmed.
func Load(src Source) (string, error) {
	name := strings.TrimSpace(src.Name)
	if name == "" {
		name = "secret"
	}

	file := strings.TrimSpace(src.File)
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", matcherr.Wrap(err, matcherr.CodeConfigInvalid, fmt.Sprintf("reading %s from file %q", name, file))
		}
		secret := strings.TrimSpace(string(data))
		if secret == "" {
			return "", matcherr.New(matcherr.CodeConfigInvalid, fmt.Sprintf("%s file %q is empty", name, file))
		}
		return secret, nil
	}

	if secret := strings.TrimSpace(src.Value); secret != "" {
		return secret, nil
	}

	if env := strings.TrimSpace(src.Env); env != "" {
		if secret := strings.TrimSpace(os.Getenv(env)); secret != "" {
			return secret, nil
		}
	}

	return "", matcherr.New(matcherr.CodeConfigInvalid, fmt.Sprintf("%s is not configured", name))
}
