// Package config loads coven-supervisor configuration.
//
// Configuration is read from YAML (or TOML when the file name ends in
// .toml). ${VAR} references are expanded from the environment before
// parsing, so secrets such as routing.llm_api_key can stay out of the file.
//
// Example:
//
//	server:
//	  http_addr: "0.0.0.0:8000"
//	database:
//	  path: "~/.local/share/coven-supervisor/supervisor.db"
//	agents:
//	  urls:
//	    - "http://localhost:8001"
//	    - "http://localhost:8002"
//	  request_timeout: "30s"
//	routing:
//	  policy: "llm"
//	  model: "gpt-4o-mini"
//	  llm_url: "http://localhost:4000/v1"
//	  llm_api_key: "${LITELLM_API_KEY}"
//	  default_agent: "general"
//	tasks:
//	  dedupe_ttl: "5m"
//
// agents.urls may also be a single comma-separated string. When it is empty
// the SUPERVISOR_AGENT_URLS environment variable is used instead.
//
// Setting tasks.dedupe_ttl to "0s" turns duplicate task-id rejection off.
package config
