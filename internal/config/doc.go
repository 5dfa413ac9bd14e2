// Package config provides configuration structures and utilities for minispider.
// It defines the main configuration options for crawling, politeness behavior,
// and output generation preferences.
package config
