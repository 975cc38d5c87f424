// Package config loads decoder and pool settings from TOML.
package config
