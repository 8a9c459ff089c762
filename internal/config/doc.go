// Package config defines configuration structures for the eccofetch CLI.
//
// Configuration can be provided via:
//   - Command-line flags
//   - Environment variables (ECCO_ prefix)
//   - YAML configuration file
//
// Flags win over the environment, which wins over the file.
//
// # Example
//
//	download_root: /data/ECCO_V4r4_PODAAC
//	workers: 8
//	max_avail_frac: 0.4
//	free_space: 200GB
//	snapshot_interval: monthly
//	netrc_path: /home/me/.netrc
//	log_level: debug
//	retry:
//	  attempts: 3
//	  backoff: 2s
//	  max_backoff: 20s
package config
