package cmd

import (
	"time"

	"github.com/urfave/cli/v2"
)

// Precedence for every export setting: an explicitly set flag, then the
// config file value, then the flag default.

func resolveString(c *cli.Context, name, configValue string) string {
	if c.IsSet(name) {
		return c.String(name)
	}
	if configValue != "" {
		return configValue
	}
	return c.String(name)
}

func resolveBool(c *cli.Context, name string, configValue bool) bool {
	if c.IsSet(name) {
		return c.Bool(name)
	}
	return configValue || c.Bool(name)
}

func resolveInt(c *cli.Context, name string, configValue *int) int {
	if c.IsSet(name) || configValue == nil {
		return c.Int(name)
	}
	return *configValue
}

func resolveDuration(c *cli.Context, name string, configValue time.Duration) time.Duration {
	if c.IsSet(name) || configValue == 0 {
		return c.Duration(name)
	}
	return configValue
}

func resolveStrings(c *cli.Context, name string, configValue []string) []string {
	if c.IsSet(name) {
		return c.StringSlice(name)
	}
	return configValue
}
