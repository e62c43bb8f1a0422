// Package config provides configuration management for hotpatch.
//
// Configuration is loaded from a single directory containing config.yaml.
// The default directory is ~/.config/hotpatch; commands accept --config-path
// to point elsewhere.
//
// # File Format
//
//	client:
//	  url: ws://localhost:3000/hmr
//	  resources:
//	    - path: app/page.js
//	      headers: {accept: "*/*"}
//	  reconnect:
//	    initialInterval: 500ms
//	    maxInterval: 10s
//	server:
//	  listen: localhost:3000
//	  spoolDir: /tmp/hotpatch-spool
//	  removeProcessed: true
//	  missing:
//	    - path: app/removed.js
//	logging:
//	  level: info
//	  format: text
//
// Values not present in the file keep their defaults (see GetDefaultConfig).
// A missing config.yaml is not an error. A malformed or invalid file yields a
// ConfigurationError; validation reports every problem at once through
// ValidationErrors.
package config
