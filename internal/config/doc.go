// Package config loads and validates notifier configuration.
//
// Configuration is a YAML file with ${VAR} environment variable expansion,
// typically configs/notifier.yaml. Optional fields get defaults via
// LoadWithDefaults; LoadAndValidate additionally enforces required fields.
package config
