// Package config loads typed configuration structs from environment
// variables, with optional .env file support for local development.
//
// Configuration structs declare their sources via `env` tags (see
// github.com/caarlos0/env); Load parses the process environment into them:
//
//	var pgCfg pg.Config
//	if err := config.Load(&pgCfg); err != nil {
//	    panic(err)
//	}
package config
