// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package main

import "flag"

var (
	flagInit, flagServer, flagGops, flagVersion, flagLogDateTime bool
	flagConfigFile, flagEnvFile, flagLogLevel                    string
)

func cliInit() {
	flag.BoolVar(&flagInit, "init", false, "Set up the workspace directory, an empty database, a default config.json and .env")
	flag.BoolVar(&flagServer, "server", false, "Start the daemon, continues listening after initialization and argument handling")
	flag.BoolVar(&flagGops, "gops", false, "Listen via github.com/google/gops/agent (for debugging)")
	flag.BoolVar(&flagVersion, "version", false, "Show version information and exit")
	flag.BoolVar(&flagLogDateTime, "logdate", false, "Set this flag to add date and time to log messages")
	flag.StringVar(&flagConfigFile, "config", "./config.json", "Specify alternative path to `config.json`")
	flag.StringVar(&flagEnvFile, "env", "./.env", "Specify alternative path to the `.env` file")
	flag.StringVar(&flagLogLevel, "loglevel", "info", "Sets the logging level: `[debug, info, warn, err, crit]`")
	flag.Parse()
}
