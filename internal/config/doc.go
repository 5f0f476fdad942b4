// Package config handles configuration loading for skillchat.
//
// # Overview
//
// Configuration is loaded from a YAML or TOML file with environment variable
// expansion. Missing values get defaults; Validate rejects bad ones.
//
// # Configuration File
//
// Default location:
//
//  1. Path from SKILLCHAT_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/skillchat/config.yaml (~/.config/skillchat/config.yaml)
//
// A missing file is not an error; LoadOptional returns Default().
// A path ending in .toml is decoded as TOML.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	devserver:
//	  jwt_secret: "${SKILLCHAT_JWT_SECRET}"
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	server:
//	  timeout: "30s"
//	stream:
//	  timeout: "5m"
//	  duplicate_window: "2s"
//
// # Configuration Sections
//
//	server:
//	  base_url: "http://localhost:8000"
//	  timeout: "30s"
//	  rate_limit:
//	    requests_per_second: 5
//	    burst: 10
//
//	stream:
//	  timeout: "5m"              # zero disables the stream timeout
//	  model_type: "general"      # general or vision
//	  expert: false
//	  enable_thinking: true
//	  duplicate_window: "2s"
//
//	storage:
//	  path: "~/.config/skillchat/skillchat.db"
//
//	logging:
//	  level: "info"              # debug, info, warn, error
//	  format: "text"             # text or json
//
//	theme:
//	  mode: "system"             # light, dark or system
//
//	devserver:
//	  addr: "127.0.0.1:8000"
//	  jwt_secret: "${SKILLCHAT_JWT_SECRET}"
//	  chunk_delay: "30ms"
//	  token_ttl: "24h"
package config
