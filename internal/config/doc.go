// Package config handles configuration loading for convsession.
//
// # Configuration File
//
// Default location (in order):
//
//  1. Path from CONVSESSION_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/convsession/config.yaml
//  3. ~/.config/convsession/config.yaml
//
// Files ending in .toml are decoded as TOML; everything else is YAML.
//
// # Environment Variable Expansion
//
// Values can reference environment variables with ${VAR_NAME}:
//
//	database:
//	  path: "${CONVSESSION_DB}"
//
// # Sections
//
//	server:
//	  http_addr: "127.0.0.1:8080"
//	  shutdown_timeout: "5s"
//
//	database:
//	  driver: "sqlite"        # sqlite (pure Go) or sqlite3 (cgo)
//	  path: "/var/lib/convsession/convsession.db"
//
//	conversation:
//	  cookie_name: "org.mael.hibernate.conversation"
//	  attribute_name: "hibernate.conversation.id"
//	  cookie_path: "/"
//	  cookie_secure: true
//	  cookie_http_only: true
//	  cookie_same_site: "lax"     # lax, strict, none
//	  filter_async_dispatch: false
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// Every field has a default, so an empty file is a valid configuration.
package config
