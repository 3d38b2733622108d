package session

import "github.com/matheus3301/optsync/internal/config"

const DefaultNamespaceName = "main"

// Resolve determines the active namespace name using precedence:
// 1. flagOverride (--namespace flag)
// 2. config.toml default_namespace
// 3. "main"
func Resolve(flagOverride string) string {
	if flagOverride != "" {
		return flagOverride
	}
	cfg, err := config.Load(ConfigPath())
	if err == nil && cfg.DefaultNamespace != "" {
		return cfg.DefaultNamespace
	}
	return DefaultNamespaceName
}
