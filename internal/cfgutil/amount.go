// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cfgutil

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
)

// AmountFlag embeds a btcutil.Amount and implements the flags.Marshaler and
// Unmarshaler interfaces so it can be used as a config struct field. Plain
// integers are read as satoshis, values with a " BTC" suffix as bitcoin.
type AmountFlag struct {
	btcutil.Amount
}

// NewAmountFlag creates an AmountFlag with a default btcutil.Amount.
func NewAmountFlag(defaultValue btcutil.Amount) *AmountFlag {
	return &AmountFlag{defaultValue}
}

// MarshalFlag satisfies the flags.Marshaler interface.
func (a *AmountFlag) MarshalFlag() (string, error) {
	return strconv.FormatInt(int64(a.Amount), 10), nil
}

// UnmarshalFlag satisfies the flags.Unmarshaler interface.
func (a *AmountFlag) UnmarshalFlag(value string) error {
	value = strings.TrimSpace(value)
	if btc, ok := strings.CutSuffix(value, "BTC"); ok {
		valueF64, err := strconv.ParseFloat(strings.TrimSpace(btc), 64)
		if err != nil {
			return err
		}
		amount, err := btcutil.NewAmount(valueF64)
		if err != nil {
			return err
		}
		a.Amount = amount
		return nil
	}

	sats, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return err
	}
	a.Amount = btcutil.Amount(sats)
	return nil
}

// FeeRateFlag holds a fee rate in satoshis per kilo virtual byte and is set
// from a value in satoshis per virtual byte, the unit fee estimators quote.
// A zero rate means the rate is left to the chain backend's estimate.
type FeeRateFlag struct {
	SatPerKVByte btcutil.Amount
}

// NewFeeRateFlag creates a FeeRateFlag with a default rate per kvB.
func NewFeeRateFlag(defaultPerKVByte btcutil.Amount) *FeeRateFlag {
	return &FeeRateFlag{defaultPerKVByte}
}

// MarshalFlag satisfies the flags.Marshaler interface.
func (f *FeeRateFlag) MarshalFlag() (string, error) {
	return strconv.FormatFloat(float64(f.SatPerKVByte)/1000, 'f', -1, 64),
		nil
}

// UnmarshalFlag satisfies the flags.Unmarshaler interface.
func (f *FeeRateFlag) UnmarshalFlag(value string) error {
	value = strings.TrimSuffix(strings.TrimSpace(value), "sat/vB")
	satPerVByte, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return err
	}
	if satPerVByte < 0 || math.IsNaN(satPerVByte) ||
		math.IsInf(satPerVByte, 0) {

		return fmt.Errorf("invalid fee rate %q", value)
	}
	f.SatPerKVByte = btcutil.Amount(math.Round(satPerVByte * 1000))
	return nil
}

// IsSet reports whether a non-zero rate was configured.
func (f *FeeRateFlag) IsSet() bool {
	return f.SatPerKVByte > 0
}
