package main

// RunFlags override config file values when set on the command line.
type RunFlags struct {
	ConfigPath      string
	Command         string
	Terminator      string
	Restart         bool
	RestartThrottle int64 // ms
	BatchSize       int
	LogStderr       bool
	SinkDSN         string
	HTTPListen      string

	changed func(name string) bool
}

func (f RunFlags) set(name string) bool {
	return f.changed != nil && f.changed(name)
}
