package config

import (
	"strings"

	envcfg "github.com/danielCarlosRodriguez/utilesApp/config"
)

// Environment identifies the backend environment the client talks to.
type Environment = envcfg.Environment

const (
	// EnvDev marks the development environment.
	EnvDev = envcfg.EnvDev
	// EnvStaging marks the staging environment.
	EnvStaging = envcfg.EnvStaging
	// EnvProd marks the production environment.
	EnvProd = envcfg.EnvProd
)

func normalizeToken(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func normalizePath(path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return ""
	}
	if !strings.HasPrefix(trimmed, "/") {
		trimmed = "/" + trimmed
	}
	return strings.TrimRight(trimmed, "/")
}
