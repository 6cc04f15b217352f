// Package config handles configuration loading for handoff-gateway.
//
// # Configuration File
//
// Default location (in order):
//
//  1. Path from HANDOFF_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/handoff/gateway.yaml
//  3. ~/.config/handoff/gateway.yaml
//
// Files ending in .toml are decoded as TOML; anything else is YAML. When no
// file exists the gateway runs from environment variables alone.
//
// # Environment Variables
//
// Values can reference the environment:
//
//	telegram:
//	  token: "${HANDOFF_BOT_TOKEN}"
//
// Unset fields also fall back to the plain variables older deployments used:
// BOT_TOKEN, ADMIN_IDS and OPERATOR_IDS (comma separated),
// NOTIFICATION_CHAT_ID and DATA_DIR.
//
// # Example
//
//	staff:
//	  admins: ["111111"]
//	  operators: ["222222", "333333"]
//	  announce_chat: "-1001234567890"
//
//	storage:
//	  driver: file          # or sqlite
//	  data_dir: ./data
//
//	sessions:
//	  driver: memory        # or redis
//	  ttl: 24h
//
//	telegram:
//	  enabled: true
//	  token: "${BOT_TOKEN}"
//
//	matrix:
//	  enabled: false
//	  homeserver: https://matrix.org
//	  user_id: "@handoff:matrix.org"
//	  access_token: "${MATRIX_TOKEN}"
//	  staff:
//	    operators: ["!opsroom:matrix.org"]
//
//	delivery:
//	  timeout: 10s
//
//	server:
//	  http_addr: 127.0.0.1:8080
//
//	auth:
//	  jwt_secret: "${HANDOFF_JWT_SECRET}"
//
// Duration values use time.ParseDuration syntax and must be positive.
package config
