// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/atlasgraph/t4wallet/descriptor"
	"github.com/atlasgraph/t4wallet/internal/cfgutil"
	"github.com/atlasgraph/t4wallet/internal/prompt"
	"github.com/atlasgraph/t4wallet/waddrmgr"
	"github.com/atlasgraph/t4wallet/wallet"
	"github.com/jessevdk/go-flags"
)

// command is a subcommand of the tool.
type command interface {
	flags.Commander

	// Register adds the command to the parser.
	Register(parser *flags.Parser) error
}

// commandContext returns the context commands run under. It is cancelled
// on interrupt.
func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

// withWallet validates the configuration, opens and syncs the wallet and
// runs f on it.
func withWallet(cfg *config, feePolicy wallet.FeePolicy,
	f func(context.Context, *loadedWallet) error) error {

	if err := cfg.validate(); err != nil {
		return err
	}

	ctx, cancel := commandContext()
	defer cancel()

	w, err := openWallet(ctx, cfg, feePolicy)
	if err != nil {
		return err
	}
	defer w.Close()

	return f(ctx, w)
}

type createDescriptorCommand struct {
	cfg *config
}

func (x *createDescriptorCommand) Register(parser *flags.Parser) error {
	_, err := parser.AddCommand(
		"create-descriptor",
		"Generate a new pair of descriptors",
		"Generate a new random private key for each of the external "+
			"and internal keychains and print the descriptors "+
			"paying to them in private and public form",
		x,
	)
	return err
}

func (x *createDescriptorCommand) Execute(_ []string) error {
	if err := x.cfg.validate(); err != nil {
		return err
	}

	internal, err := descriptor.GenerateKeyPair(x.cfg.params.Params)
	if err != nil {
		return err
	}
	external, err := descriptor.GenerateKeyPair(x.cfg.params.Params)
	if err != nil {
		return err
	}

	fmt.Printf("Generated priv-descriptor: internal: %s\n",
		internal.Private)
	fmt.Printf("Generated priv-descriptor: external: %s\n",
		external.Private)
	fmt.Printf("Generated pub-descriptor: internal: %s\n", internal.Public)
	fmt.Printf("Generated pub-descriptor: external: %s\n", external.Public)

	return nil
}

type createAddressCommand struct {
	cfg *config
}

func (x *createAddressCommand) Register(parser *flags.Parser) error {
	_, err := parser.AddCommand(
		"create-address",
		"Reveal the next unused receive address",
		"Sync the wallet and print the first receive address no "+
			"transaction has paid to that was not handed out before",
		x,
	)
	return err
}

func (x *createAddressCommand) Execute(_ []string) error {
	return withWallet(x.cfg, wallet.FeePolicy{},
		func(_ context.Context, w *loadedWallet) error {
			addr, err := w.NextUnusedAddress(waddrmgr.External)
			if err != nil {
				return err
			}

			fmt.Printf("Generated Address: %s\n", addr)
			return nil
		},
	)
}

type getBalanceCommand struct {
	cfg *config
}

func (x *getBalanceCommand) Register(parser *flags.Parser) error {
	_, err := parser.AddCommand(
		"get-balance",
		"Print the wallet balance",
		"Sync the wallet and print its balance split by confirmation "+
			"state",
		x,
	)
	return err
}

func (x *getBalanceCommand) Execute(_ []string) error {
	return withWallet(x.cfg, wallet.FeePolicy{},
		func(_ context.Context, w *loadedWallet) error {
			balance := w.Balance()
			height, hash := w.BestBlock()

			fmt.Printf("Wallet balance at block %d (%v):\n", height,
				hash)
			fmt.Printf("  confirmed:   %v\n", balance.Confirmed)
			fmt.Printf("  unconfirmed: %v\n", balance.Unconfirmed)
			fmt.Printf("  immature:    %v\n", balance.Immature)
			fmt.Printf("  spendable:   %v\n", balance.Spendable())
			fmt.Printf("  total:       %v\n", balance.Total())
			return nil
		},
	)
}

type listTransactionsCommand struct {
	cfg *config
}

func (x *listTransactionsCommand) Register(parser *flags.Parser) error {
	_, err := parser.AddCommand(
		"list-transactions",
		"List the wallet's transactions",
		"Sync the wallet and print every transaction paying to or "+
			"spending from it, oldest first",
		x,
	)
	return err
}

func (x *listTransactionsCommand) Execute(_ []string) error {
	return withWallet(x.cfg, wallet.FeePolicy{},
		func(_ context.Context, w *loadedWallet) error {
			tip, _ := w.BestBlock()
			for _, d := range w.ListTransactions() {
				fee := "unknown"
				if d.FeeKnown {
					fee = d.Fee.String()
				}

				fmt.Printf("%v %-11v confirmations=%d net=%v "+
					"fee=%s\n", d.Hash, d.Status.State,
					d.Status.Confirmations(tip), d.Net(), fee)
			}
			return nil
		},
	)
}

type payCommand struct {
	cfg *config

	Receiver string              `short:"r" long:"receiver" description:"Address to pay" required:"true"`
	Amount   *cfgutil.AmountFlag `short:"a" long:"amount" description:"Amount to pay in satoshis, or in bitcoin with a BTC suffix" required:"true"`
}

func (x *payCommand) Register(parser *flags.Parser) error {
	_, err := parser.AddCommand(
		"pay",
		"Pay an amount to an address",
		"Sync the wallet, then build, sign and broadcast a transaction "+
			"paying the amount to the receiver; the descriptors "+
			"must hold private keys",
		x,
	)
	return err
}

// feePolicy returns the configured fee rate, or the Esplora server's
// estimate for the confirmation target when none is configured.
func (x *payCommand) feePolicy(ctx context.Context) (wallet.FeePolicy,
	error) {

	if x.cfg.FeeRate.IsSet() {
		return wallet.FeePolicy{
			FeeRatePerKb: x.cfg.FeeRate.SatPerKVByte,
		}, nil
	}

	rate, err := newEsplora(x.cfg).EstimateFeeRate(ctx, x.cfg.ConfTarget)
	if err != nil {
		return wallet.FeePolicy{}, fmt.Errorf("unable to estimate "+
			"fee rate: %w", err)
	}
	log.Infof("Using estimated fee rate of %v/kvB for a %d block target",
		rate, x.cfg.ConfTarget)

	return wallet.FeePolicy{FeeRatePerKb: rate}, nil
}

func (x *payCommand) Execute(_ []string) error {
	if err := x.cfg.validate(); err != nil {
		return err
	}

	ctx, cancel := commandContext()
	defer cancel()

	policy, err := x.feePolicy(ctx)
	if err != nil {
		return err
	}

	w, err := openWallet(ctx, x.cfg, policy)
	if err != nil {
		return err
	}
	defer w.Close()

	if total := w.Balance().Total(); total < x.Amount.Amount {
		return fmt.Errorf("insufficient balance: balance %v, amount %v",
			total, x.Amount.Amount)
	}

	tx, err := w.Pay(ctx, x.Receiver, x.Amount.Amount)
	if err != nil {
		return err
	}

	fmt.Printf("Transaction sent: %v\n", tx.TxHash())
	return nil
}

type restoreKeyCommand struct {
	cfg *config

	Mnemonic   string `long:"mnemonic" description:"BIP-39 words to restore the keys from, prompted for when not given"`
	Passphrase string `long:"passphrase" default-mask:"-" description:"Optional BIP-39 passphrase used with --mnemonic"`
}

func (x *restoreKeyCommand) Register(parser *flags.Parser) error {
	_, err := parser.AddCommand(
		"restore-key",
		"Restore descriptors from a mnemonic",
		"Derive the BIP-84 account 0 descriptors of a BIP-39 mnemonic "+
			"and print them in private and public form",
		x,
	)
	return err
}

func (x *restoreKeyCommand) Execute(_ []string) error {
	if err := x.cfg.validate(); err != nil {
		return err
	}

	mnemonic, passphrase := x.Mnemonic, x.Passphrase
	if mnemonic == "" {
		reader := bufio.NewReader(os.Stdin)

		var err error
		mnemonic, err = prompt.Mnemonic(reader)
		if err != nil {
			return err
		}
		passphrase, err = prompt.MnemonicPassphrase(reader)
		if err != nil {
			return err
		}
	}

	external, internal, err := descriptor.FromMnemonic(
		mnemonic, passphrase, x.cfg.params.Params,
	)
	if err != nil {
		return err
	}

	for _, d := range []struct {
		name string
		desc *descriptor.Descriptor
	}{
		{"external", external},
		{"internal", internal},
	} {
		private, err := d.desc.PrivateString()
		if err != nil {
			return err
		}

		fmt.Printf("Restored priv-descriptor: %s: %s\n", d.name,
			private)
		fmt.Printf("Restored pub-descriptor: %s: %s\n", d.name,
			d.desc)
	}

	return nil
}
