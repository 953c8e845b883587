// Package config loads the daemon configuration from JSON or YAML files,
// fills defaults, applies environment overrides such as PORT and validates
// the result before the server starts.
package config
