package config

// ConfigError reports an invalid configuration field.
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	return "config: " + e.Field + " " + e.Msg
}
