package config

import (
	"fmt"
	"os"
	"strings"
)

// ResolveSecret reads a secret using the *_FILE convention: if envName+"_FILE"
// names a file, its trimmed content wins over envName itself. Returns "" when
// neither is set.
func ResolveSecret(envName string) (string, error) {
	fileEnv := envName + "_FILE"
	if filePath := os.Getenv(fileEnv); filePath != "" {
		content, err := os.ReadFile(filePath)
		if err != nil {
			return "", fmt.Errorf("failed to read secret from %s=%s: %w", fileEnv, filePath, err)
		}
		return strings.TrimSpace(string(content)), nil
	}
	return os.Getenv(envName), nil
}

// Credentials are the basic-auth accounts of the HTTP API.
type Credentials struct {
	AdminUser    string
	AdminPass    string
	OperatorUser string
	OperatorPass string
}

// Enabled returns true when admin credentials are configured.
func (c Credentials) Enabled() bool {
	return c.AdminUser != "" && c.AdminPass != ""
}

// LoadCredentials resolves SCENED_ADMIN_USER, SCENED_ADMIN_PASS,
// SCENED_OPERATOR_USER and SCENED_OPERATOR_PASS.
func LoadCredentials() (Credentials, error) {
	var c Credentials
	for _, s := range []struct {
		env string
		dst *string
	}{
		{"SCENED_ADMIN_USER", &c.AdminUser},
		{"SCENED_ADMIN_PASS", &c.AdminPass},
		{"SCENED_OPERATOR_USER", &c.OperatorUser},
		{"SCENED_OPERATOR_PASS", &c.OperatorPass},
	} {
		v, err := ResolveSecret(s.env)
		if err != nil {
			return Credentials{}, err
		}
		*s.dst = v
	}
	return c, nil
}
