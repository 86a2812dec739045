// Copyright (c) 2013-2015 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/atlasgraph/t4wallet/internal/cfgutil"
	"github.com/jessevdk/go-flags"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run parses the arguments and executes the selected command.
func run(args []string) error {
	cfg := defaultConfig()
	parser := flags.NewParser(cfg, flags.HelpFlag|flags.PassDoubleDash)

	commands := []command{
		&createDescriptorCommand{cfg: cfg},
		&createAddressCommand{cfg: cfg},
		&getBalanceCommand{cfg: cfg},
		&listTransactionsCommand{cfg: cfg},
		&payCommand{cfg: cfg, Amount: cfgutil.NewAmountFlag(0)},
		&restoreKeyCommand{cfg: cfg},
	}
	for _, c := range commands {
		if err := c.Register(parser); err != nil {
			return err
		}
	}

	defer func() {
		if logRotator != nil {
			logRotator.Close()
		}
	}()

	_, err := parser.ParseArgs(args)
	if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
		fmt.Println(e.Message)
		return nil
	}

	return err
}
