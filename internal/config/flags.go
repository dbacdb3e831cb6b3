package config

import (
	"github.com/spf13/pflag"
)

// RegisterFlags declares the console's flags on fs, using defaults for the
// help text.
func RegisterFlags(fs *pflag.FlagSet) {
	defaults := DefaultConfig()

	fs.BoolP("verbose", "v", false, "Log debug output to stderr")
	fs.IntP("port", "p", defaults.Pod.Port, "Pod server port")
	fs.StringP("host", "h", defaults.Pod.Host, "Pod server hostname")
	fs.IntP("heartbeat-interval", "i", defaults.Heartbeat.IntervalMS, "Heartbeat interval (ms)")
	fs.StringP("config", "c", "", "Path to a YAML or TOML config file")
	fs.String("transport", defaults.Pod.Transport, "Transport to the pod: tcp or ws")
	fs.String("ws-path", defaults.Pod.Path, "WebSocket bridge path (ws transport)")
	fs.Int("timeout", defaults.Heartbeat.TimeoutMS, "Drop the connection after this long without a reply (ms)")
	fs.String("journal", "", "Record the session to this SQLite path or Postgres DSN")
	fs.String("journal-driver", defaults.Journal.Driver, "Journal database: sqlite or postgres")
	fs.Bool("no-color", false, "Disable colored output")
	fs.String("log-file", "", "Also write logs to this rotated file")
}

// ApplyFlags copies every flag the user set explicitly onto c.
func (c *Config) ApplyFlags(fs *pflag.FlagSet) error {
	var err error
	set := func(name string, apply func() error) {
		if err == nil && fs.Changed(name) {
			err = apply()
		}
	}

	set("verbose", func() error {
		verbose, e := fs.GetBool("verbose")
		if verbose {
			c.Logging.Level = "DEBUG"
		}
		return e
	})
	set("port", func() (e error) {
		c.Pod.Port, e = fs.GetInt("port")
		return
	})
	set("host", func() (e error) {
		c.Pod.Host, e = fs.GetString("host")
		return
	})
	set("heartbeat-interval", func() (e error) {
		c.Heartbeat.IntervalMS, e = fs.GetInt("heartbeat-interval")
		return
	})
	set("transport", func() (e error) {
		c.Pod.Transport, e = fs.GetString("transport")
		return
	})
	set("ws-path", func() (e error) {
		c.Pod.Path, e = fs.GetString("ws-path")
		return
	})
	set("timeout", func() (e error) {
		c.Heartbeat.TimeoutMS, e = fs.GetInt("timeout")
		return
	})
	set("journal", func() (e error) {
		c.Journal.DSN, e = fs.GetString("journal")
		return
	})
	set("journal-driver", func() (e error) {
		c.Journal.Driver, e = fs.GetString("journal-driver")
		return
	})
	set("no-color", func() error {
		noColor, e := fs.GetBool("no-color")
		if noColor {
			c.Console.Color = "never"
		}
		return e
	})
	set("log-file", func() error {
		path, e := fs.GetString("log-file")
		if path != "" {
			c.Logging.FileEnabled = true
			c.Logging.FilePath = path
		}
		return e
	})

	return err
}
