// Copyright (c) 2014 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"errors"
	"fmt"

	"github.com/atlasgraph/t4wallet/chain"
	"github.com/atlasgraph/t4wallet/descriptor"
	"github.com/atlasgraph/t4wallet/wallet/txauthor"
	"github.com/atlasgraph/t4wallet/wtxmgr"
)

// ErrorCode identifies a kind of error.
type ErrorCode int

// These constants are used to identify a specific Error.
const (
	// ErrInvalidDescriptor indicates a descriptor that cannot be parsed,
	// carries a wrong checksum, or does not match its counterpart.
	ErrInvalidDescriptor ErrorCode = iota

	// ErrNoPrivateKey indicates that signing key material was requested
	// from a watch-only descriptor.
	ErrNoPrivateKey

	// ErrReconciliation indicates a sync update that contradicts the
	// ledger. The ledger is left unchanged.
	ErrReconciliation

	// ErrInvalidRecipient indicates a payment to a malformed or
	// non-standard script, an address of another network, a
	// non-positive amount or an amount below the dust limit.
	ErrInvalidRecipient

	// ErrInsufficientFunds indicates that the spendable outputs cannot
	// pay for the requested amount and the fee.
	ErrInsufficientFunds

	// ErrNotFinalized indicates a transaction with inputs that could not
	// be signed.
	ErrNotFinalized

	// ErrNetwork indicates a failed request to the chain backend.
	ErrNetwork

	// ErrNetworkTimeout indicates a chain backend request that did not
	// complete in time.
	ErrNetworkTimeout

	// ErrDatabase indicates an error with the underlying database. The
	// Err field holds the database error.
	ErrDatabase
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrInvalidDescriptor: "ErrInvalidDescriptor",
	ErrNoPrivateKey:      "ErrNoPrivateKey",
	ErrReconciliation:    "ErrReconciliation",
	ErrInvalidRecipient:  "ErrInvalidRecipient",
	ErrInsufficientFunds: "ErrInsufficientFunds",
	ErrNotFinalized:      "ErrNotFinalized",
	ErrNetwork:           "ErrNetwork",
	ErrNetworkTimeout:    "ErrNetworkTimeout",
	ErrDatabase:          "ErrDatabase",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// Error provides a single type for errors returned by the wallet.
type Error struct {
	Code        ErrorCode // Describes the kind of error
	Description string    // Human readable description of the issue
	Err         error     // Underlying error, optional
}

// Error satisfies the error interface and prints human-readable errors.
func (e *Error) Error() string {
	if e.Err != nil {
		return e.Description + ": " + e.Err.Error()
	}
	return e.Description
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// walletError creates an Error given a set of arguments.
func walletError(c ErrorCode, desc string, err error) *Error {
	return &Error{Code: c, Description: desc, Err: err}
}

// IsError returns whether err is an Error with a matching error code.
func IsError(err error, code ErrorCode) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

// mapError classifies an error returned by a lower layer. Errors that are
// already classified, and those no code applies to, are returned unchanged.
func mapError(desc string, err error) error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return err
	}

	var code ErrorCode
	switch {
	case errors.Is(err, descriptor.ErrNoPrivateKey):
		code = ErrNoPrivateKey

	case errors.Is(err, descriptor.ErrInvalidDescriptor),
		errors.Is(err, descriptor.ErrInvalidIndex):

		code = ErrInvalidDescriptor

	case wtxmgr.IsError(err, wtxmgr.ErrReconciliation):
		code = ErrReconciliation

	case wtxmgr.IsError(err, wtxmgr.ErrDatabase),
		wtxmgr.IsError(err, wtxmgr.ErrData):

		code = ErrDatabase

	case errors.Is(err, txauthor.ErrInsufficientFunds):
		code = ErrInsufficientFunds

	case errors.Is(err, chain.ErrTimeout):
		code = ErrNetworkTimeout

	case errors.Is(err, chain.ErrNetwork):
		code = ErrNetwork

	default:
		return err
	}

	return walletError(code, desc, err)
}
