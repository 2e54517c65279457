package config

import "errors"

// ErrConfiguration reports a configuration value that cannot be used:
// an incomplete flag combination, an unreadable INI file, or a value
// that fails Validate.
var ErrConfiguration = errors.New("config: configuration error")
