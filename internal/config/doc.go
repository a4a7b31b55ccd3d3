// Package config provides loading and environment overlay for spool
// configuration. It exposes a Default() baseline that file values and
// SPOOL_* variables are layered onto.
//
// Example:
//
//	cfg, err := config.Load("/etc/spool.yaml")
//	if err != nil {
//	    return err
//	}
//	config.FromEnv(&cfg)
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
//	rt, _ := runtime.Open(runtime.Options{Config: cfg})
//	defer rt.Close()
package config
