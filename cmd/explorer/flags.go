package main

import (
	"github.com/urfave/cli/v2"
)

const EnvVarPrefix = "EXPLORER"

func prefixEnvVar(name string) []string {
	return []string{EnvVarPrefix + "_" + name}
}

var (
	ConfigFlag = &cli.StringFlag{
		Name:    "config",
		EnvVars: prefixEnvVar("CONFIG"),
		Usage:   "Path to the settings file (default: <dir>/.explorer.yaml)",
	}
	DirFlag = &cli.StringFlag{
		Name:    "dir",
		Value:   ".",
		EnvVars: prefixEnvVar("DIR"),
		Usage:   "Project root to discover tests in and run the test runner from",
	}
	CommandFlag = &cli.StringFlag{
		Name:    "command",
		EnvVars: prefixEnvVar("COMMAND"),
		Usage:   "Test runner invocation the filter arguments are appended to (eg. 'vendor/bin/phpunit')",
	}
	SeparatorFlag = &cli.StringFlag{
		Name:    "separator",
		EnvVars: prefixEnvVar("SEPARATOR"),
		Usage:   "Token between the command and the filter arguments",
	}
	IncludeFlag = &cli.StringSliceFlag{
		Name:    "include",
		EnvVars: prefixEnvVar("INCLUDE"),
		Usage:   "Glob patterns a test file must match",
	}
	ExcludeFlag = &cli.StringSliceFlag{
		Name:    "exclude",
		EnvVars: prefixEnvVar("EXCLUDE"),
		Usage:   "Glob patterns or directory names to skip",
	}
	ScannerFlag = &cli.StringFlag{
		Name:    "scanner",
		EnvVars: prefixEnvVar("SCANNER"),
		Usage:   "Declaration scanner: regex or ast",
	}
	PrefixFlag = &cli.StringFlag{
		Name:    "prefix",
		EnvVars: prefixEnvVar("PREFIX"),
		Usage:   "Method name prefix marking a test",
	}
	OutputFlag = &cli.BoolFlag{
		Name:    "output",
		EnvVars: prefixEnvVar("OUTPUT"),
		Usage:   "Stream the test runner output to stderr",
	}
	LogLevelFlag = &cli.StringFlag{
		Name:    "log.level",
		Value:   "info",
		EnvVars: prefixEnvVar("LOG_LEVEL"),
		Usage:   "Log level: trace, debug, info, warn, error, crit",
	}
	LogFormatFlag = &cli.StringFlag{
		Name:    "log.format",
		Value:   "terminal",
		EnvVars: prefixEnvVar("LOG_FORMAT"),
		Usage:   "Log format: terminal, logfmt or json",
	}
	MetricsAddrFlag = &cli.StringFlag{
		Name:    "metrics.addr",
		EnvVars: prefixEnvVar("METRICS_ADDR"),
		Usage:   "Serve Prometheus metrics on this address (eg. ':7300'); disabled when empty",
	}
)

var Flags = []cli.Flag{
	ConfigFlag,
	DirFlag,
	CommandFlag,
	SeparatorFlag,
	IncludeFlag,
	ExcludeFlag,
	ScannerFlag,
	PrefixFlag,
	OutputFlag,
	LogLevelFlag,
	LogFormatFlag,
	MetricsAddrFlag,
}
