// Package confloader loads configuration with koanf.
//
// Priority (highest to lowest):
//
//  1. Command-line flags (LoadMap)
//  2. Environment variables (TOKBROKER_ prefix, "__" between levels)
//  3. YAML configuration file
//  4. Values already present in the target struct
//
// Watcher reports edits to the configuration file so long-running
// processes can re-apply the settings that are safe to change live.
package confloader
