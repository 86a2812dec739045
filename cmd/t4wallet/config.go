// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/atlasgraph/t4wallet/chain"
	"github.com/atlasgraph/t4wallet/internal/cfgutil"
	"github.com/atlasgraph/t4wallet/netparams"
	"github.com/atlasgraph/t4wallet/wallet"
	"github.com/btcsuite/btcd/btcutil"
)

const (
	defaultNetwork     = "testnet4"
	defaultEsploraURL  = "http://127.0.0.1:3000"
	defaultLogLevel    = "info"
	defaultLogDirname  = "logs"
	defaultLogFilename = "t4wallet.log"
	defaultConfTarget  = 6
	defaultMaxRetries  = 2

	walletDbName = "wallet.db"
)

var (
	defaultAppDataDir = btcutil.AppDataDir("t4wallet", false)
	defaultLogDir     = filepath.Join(defaultAppDataDir, defaultLogDirname)
)

// config defines the global options of the command line tool. Every command
// reads the wallet it operates on from these.
type config struct {
	Esplora          *cfgutil.ExplicitString `short:"e" long:"esplora" description:"Base URL of the Esplora server (default: the network's well-known server, http://127.0.0.1:3000 on testnet4)"`
	Descriptor       string                  `short:"d" long:"descriptor" description:"Descriptor deriving receive addresses (default: built-in watch-only descriptor)"`
	ChangeDescriptor string                  `short:"c" long:"change-descriptor" description:"Descriptor deriving change addresses (default: built-in watch-only descriptor)"`
	Network          string                  `long:"network" description:"Bitcoin network the wallet belongs to"`
	FeeRate          *cfgutil.FeeRateFlag    `long:"feerate" description:"Fee rate in sat/vB, 0 asks the Esplora server for an estimate"`
	ConfTarget       uint32                  `long:"conftarget" description:"Confirmation target in blocks used for fee estimation"`
	DataDir          string                  `short:"b" long:"datadir" description:"Directory to persist wallet state in, unset keeps no state between runs"`
	LogDir           string                  `long:"logdir" description:"Directory to log output"`
	DebugLevel       string                  `long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems -- Use show to list available subsystems"`
	StopGap          uint32                  `long:"stopgap" description:"Number of consecutive unused addresses after which a keychain scan stops"`
	Parallel         int                     `long:"parallel" description:"Number of scripts queried at once during a scan"`
	Timeout          time.Duration           `long:"timeout" description:"Timeout of every request to the Esplora server"`
	MaxRetries       int                     `long:"maxretries" description:"Number of times a failed Esplora read is retried"`

	params *netparams.Params
}

// defaultConfig returns the configuration used when no options are given.
func defaultConfig() *config {
	return &config{
		Esplora:    cfgutil.NewExplicitString(defaultEsploraURL),
		Network:    defaultNetwork,
		FeeRate:    cfgutil.NewFeeRateFlag(0),
		ConfTarget: defaultConfTarget,
		LogDir:     defaultLogDir,
		DebugLevel: defaultLogLevel,
		StopGap:    chain.DefaultStopGap,
		Parallel:   chain.DefaultParallelism,
		Timeout:    chain.DefaultRequestTimeout,
		MaxRetries: defaultMaxRetries,
	}
}

// validate checks the parsed options, fills in the values that depend on the
// selected network and initializes logging.
func (cfg *config) validate() error {
	params, err := netparams.ByName(cfg.Network)
	if err != nil {
		return err
	}
	cfg.params = params

	// The server of the selected network is used unless one is given.
	if !cfg.Esplora.ExplicitlySet() {
		cfg.Esplora.Value = params.EsploraURL
	}
	if cfg.Esplora.Value == "" {
		return fmt.Errorf("no Esplora server configured for %s",
			cfg.Network)
	}

	switch {
	case cfg.Descriptor == "" && cfg.ChangeDescriptor == "":
		cfg.Descriptor = wallet.DefaultDescriptors.External
		cfg.ChangeDescriptor = wallet.DefaultDescriptors.Internal

	case cfg.Descriptor == "" || cfg.ChangeDescriptor == "":
		return fmt.Errorf("--descriptor and --change-descriptor must " +
			"be given together")
	}

	if cfg.StopGap == 0 {
		return fmt.Errorf("--stopgap must be positive")
	}
	if cfg.Parallel <= 0 {
		return fmt.Errorf("--parallel must be positive")
	}
	if cfg.Timeout <= 0 {
		return fmt.Errorf("--timeout must be positive")
	}
	if cfg.MaxRetries < 0 {
		return fmt.Errorf("--maxretries must not be negative")
	}

	cfg.DataDir = cfgutil.CleanAndExpandPath(cfg.DataDir)
	cfg.LogDir = cfgutil.CleanAndExpandPath(cfg.LogDir)

	// Special show command to list supported subsystems and exit.
	if cfg.DebugLevel == "show" {
		return fmt.Errorf("supported subsystems %v", supportedSubsystems())
	}

	// Logs are written per network.
	logFile := filepath.Join(cfg.LogDir, cfg.params.Name,
		defaultLogFilename)
	if err := initLogRotator(logFile); err != nil {
		return err
	}

	return parseAndSetDebugLevels(cfg.DebugLevel)
}

// walletDBPath returns the path of the wallet database, or an empty string
// when state is not persisted.
func (cfg *config) walletDBPath() string {
	if cfg.DataDir == "" {
		return ""
	}

	return filepath.Join(cfg.DataDir, cfg.params.Name, walletDbName)
}

// parseAndSetDebugLevels attempts to parse the specified debug level and set
// the levels accordingly. An appropriate error is returned if anything is
// invalid.
func parseAndSetDebugLevels(debugLevel string) error {
	// When the specified string doesn't have any delimiters, treat it as
	// the log level for all subsystems.
	if !strings.Contains(debugLevel, ",") &&
		!strings.Contains(debugLevel, "=") {

		// Validate debug log level.
		if !validLogLevel(debugLevel) {
			return fmt.Errorf("the specified debug level [%v] is "+
				"invalid", debugLevel)
		}

		// Change the logging level for all subsystems.
		setLogLevels(debugLevel)

		return nil
	}

	// Split the specified string into subsystem/level pairs while
	// detecting issues and update the log levels accordingly.
	for _, logLevelPair := range strings.Split(debugLevel, ",") {
		if !strings.Contains(logLevelPair, "=") {
			return fmt.Errorf("the specified debug level contains " +
				"an invalid subsystem/level pair")
		}

		// Extract the specified subsystem and log level.
		subsysID, logLevel, _ := strings.Cut(logLevelPair, "=")

		// Validate subsystem.
		if _, exists := subsystemLoggers[subsysID]; !exists {
			return fmt.Errorf("the specified subsystem [%v] is "+
				"invalid -- supported subsystems %v", subsysID,
				supportedSubsystems())
		}

		// Validate log level.
		if !validLogLevel(logLevel) {
			return fmt.Errorf("the specified debug level [%v] is "+
				"invalid", logLevel)
		}

		setLogLevel(subsysID, logLevel)
	}

	return nil
}
