// Package config handles configuration loading for coven-script.
//
// # Configuration File
//
// Location (first match wins):
//
//  1. Path from the COVEN_SCRIPT_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/coven/script.yaml
//  3. ~/.config/coven/script.yaml
//
// Relative paths in the file (session, store, script, media) are resolved
// against the directory containing the file.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	transport:
//	  matrix:
//	    access_token: "${MATRIX_ACCESS_TOKEN}"
//
// Unset variables expand to the empty string. The command loads a .env file
// before reading the configuration, so secrets can live there.
//
// # Sections
//
//	transport:
//	  kind: whatsapp            # whatsapp, matrix
//	  whatsapp:
//	    session_path: whatsapp-session.db
//	    send_interval: "1s"     # minimum gap between outgoing sends
//	    send_burst: 1
//	  matrix:
//	    homeserver: "https://matrix.example.org"
//	    user_id: "@bot:example.org"
//	    access_token: "${MATRIX_ACCESS_TOKEN}"
//	    allowed_rooms: []       # empty means every joined room
//	    encryption: false       # join encrypted rooms
//	    recovery_key: "${MATRIX_RECOVERY_KEY}"
//	    data_dir: matrix-data   # crypto store
//
//	store:
//	  driver: sqlite            # sqlite, memory
//	  path: conversations.db
//
//	script:
//	  path: script.yaml         # .yaml, .yml or .toml
//
//	media:
//	  dir: media
//	  max_size: 16777216        # bytes
//
//	delays:                     # named waits usable from the script
//	  typing: "5s"
//	  recording: "8s"
//	  between_videos: "6s"
//	  between_audios: "10s"
//
//	dispatch:
//	  delivery: at_most_once    # at_most_once, at_least_once
//	  dedupe_ttl: "10m"
//
//	reconnect:
//	  max_attempts: 5
//	  base_delay: "5s"          # wait is base_delay * attempt
//
//	logging:
//	  level: info               # debug, info, warn, error
//	  format: text              # text, json
//
// Durations use time.ParseDuration syntax. Every field has a default; only
// the Matrix credentials are required when the Matrix transport is selected.
package config
