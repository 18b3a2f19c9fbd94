// Package config loads and saves the whallera configuration file.
//
// The file is YAML and lives in the platform configuration directory:
//   - Linux: $XDG_CONFIG_HOME/whallera/config.yaml or $HOME/.config/whallera/config.yaml
//   - macOS: $HOME/.config/whallera/config.yaml
//   - Windows: %LOCALAPPDATA%\whallera\config.yaml
//
// A missing file is not an error; Load returns the defaults. Command-line
// flags always take precedence over values loaded here.
//
// Unlock phrases are never written to the file.
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    return err
//	}
//	cfg.Interface = "/dev/ttyACM0"
//	if err := cfg.Save(""); err != nil {
//	    return err
//	}
package config
