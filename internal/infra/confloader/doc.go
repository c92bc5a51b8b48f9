// Package confloader provides configuration loading for the snapshot engine.
//
// This package implements a flexible configuration loader that supports
// multiple sources using koanf as the underlying library.
//
// Priority (highest to lowest):
//
//  1. Environment variables (CFSM_ prefix)
//  2. Configuration file (YAML)
//  3. Default values
//
// A companion fsnotify watcher reloads the file on change, which the agent
// uses to adjust the log level without a restart.
package confloader
