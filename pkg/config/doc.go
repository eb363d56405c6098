// Package config loads env-tagged configuration structs.
//
// Each component of the service defines its own Config struct with env tags;
// this package parses them out of the process environment, loading a .env
// file first when one exists. A struct type is parsed once per process and
// cached, so every caller sees the same values.
//
//	var cfg runner.Config
//	if err := config.Load(&cfg); err != nil {
//	    return err
//	}
//
// MustLoad panics instead of returning the error, for configuration the
// service cannot start without.
package config
