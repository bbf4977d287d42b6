// Package config loads gateway configuration from environment variables
// and the access policy from a YAML file.
//
// Environment variables use the TENANTGATE_ prefix. The policy file (admin
// role set, self-service paths, extra system routes) is hot reloaded via
// filesystem watching so access rules change without a restart.
package config
