// Package config provides configuration parsing for the docrelay gateway.
//
// The configuration is stored in docrelay.json in the config directory.
// This package handles loading and validating configuration; missing files
// fall back to defaults.
//
// # Configuration File Structure
//
//	{
//	  "address": ":8433",
//	  "auth_token": "secret",
//	  "content_dir": "/srv/docs",
//	  "document_cleanup_delay": 60,
//	  "document_save_delay": 1,
//	  "file_poll_interval": 1,
//	  "file_id_path": "/srv/docs/.docrelay-ids.json",
//	  "storage": {
//	    "backend": "disk"
//	  }
//	}
//
// Delay fields are expressed in seconds and accept fractional values.
// A negative document_cleanup_delay disables room cleanup entirely; a
// file_poll_interval of zero disables out-of-band change polling.
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Address:", cfg.Address)
package config
