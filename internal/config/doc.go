// Package config defines the runtime configuration for presscan.
//
// Configuration comes from three layers: built-in defaults, the optional
// .presscan YAML file (site-specific selectors, proxies, cookies), and CLI
// flags. Flags win over the file, the file wins over defaults. The merged
// result is a single flat Config passed through the application by
// dependency injection rather than global state.
package config
