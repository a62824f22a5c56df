// Package config loads and validates the bridge configuration.
//
// Load runs a fixed pipeline: built-in defaults, then the YAML file,
// then STBRIDGE_* environment overrides, then Validate, which collects
// every problem into one error so a misconfigured bridge reports all
// its faults at once.
//
// The SmartThings token and the local API token are secrets: set them
// through STBRIDGE_SMARTTHINGS_TOKEN and STBRIDGE_API_AUTH_TOKEN rather
// than the file, and keep the file itself at 0600.
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil { ... }
package config
