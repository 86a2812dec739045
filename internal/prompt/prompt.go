// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package prompt

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"github.com/tyler-smith/go-bip39"
	"golang.org/x/term"
)

// ErrInvalidMnemonic is returned when non-interactive input is not a valid
// BIP-39 mnemonic.
var ErrInvalidMnemonic = errors.New("invalid mnemonic")

// stdinIsTerminal reports whether secrets can be read without echo.
var stdinIsTerminal = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// readSecret reads one line, without echo when stdin is a terminal.
func readSecret(reader *bufio.Reader) ([]byte, error) {
	if stdinIsTerminal() {
		secret, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Print("\n")
		if err != nil {
			return nil, err
		}
		return bytes.TrimSpace(secret), nil
	}

	line, err := reader.ReadString('\n')
	// A final line without a newline is accepted.
	if err != nil && (len(line) == 0 || !errors.Is(err, io.EOF)) {
		return nil, err
	}
	return bytes.TrimSpace([]byte(line)), nil
}

// promptList prompts the user with the given prefix, list of valid responses,
// and default list entry to use.  The function will repeat the prompt to the
// user until they enter a valid response.
func promptList(reader *bufio.Reader, prefix string, validResponses []string,
	defaultEntry string) (string, error) {

	// Setup the prompt according to the parameters.
	validStrings := strings.Join(validResponses, "/")
	var prompt string
	if defaultEntry != "" {
		prompt = fmt.Sprintf("%s (%s) [%s]: ", prefix, validStrings,
			defaultEntry)
	} else {
		prompt = fmt.Sprintf("%s (%s): ", prefix, validStrings)
	}

	// Prompt the user until one of the valid responses is given.
	for {
		fmt.Print(prompt)
		reply, err := reader.ReadString('\n')
		if err != nil {
			return "", err
		}
		reply = strings.TrimSpace(strings.ToLower(reply))
		if reply == "" {
			reply = defaultEntry
		}

		for _, validResponse := range validResponses {
			if reply == validResponse {
				return reply, nil
			}
		}
	}
}

// promptListBool prompts the user for a boolean (yes/no) with the given prefix.
// The function will repeat the prompt to the user until they enter a valid
// response.
func promptListBool(reader *bufio.Reader, prefix string,
	defaultEntry string) (bool, error) {

	// Setup the valid responses.
	valid := []string{"n", "no", "y", "yes"}
	response, err := promptList(reader, prefix, valid, defaultEntry)
	if err != nil {
		return false, err
	}
	return response == "yes" || response == "y", nil
}

// PassPrompt prompts the user for a passphrase with the given prefix.  The
// prompt is repeated until a non-empty passphrase is entered.
func PassPrompt(reader *bufio.Reader, prefix string) ([]byte, error) {
	prompt := fmt.Sprintf("%s: ", prefix)
	for {
		fmt.Print(prompt)
		pass, err := readSecret(reader)
		if err != nil {
			return nil, err
		}
		if len(pass) == 0 {
			continue
		}

		return pass, nil
	}
}

// Mnemonic prompts the user for a BIP-39 mnemonic. Interactive users are
// asked again until the words form a valid mnemonic; other input must be
// valid on the first line.
func Mnemonic(reader *bufio.Reader) (string, error) {
	for {
		fmt.Print("Enter the BIP-39 mnemonic of the wallet: ")
		words, err := readSecret(reader)
		if err != nil {
			return "", err
		}

		mnemonic := strings.TrimSpace(
			collapseSpace(strings.ToLower(string(words))),
		)
		if bip39.IsMnemonicValid(mnemonic) {
			return mnemonic, nil
		}

		if !stdinIsTerminal() {
			return "", ErrInvalidMnemonic
		}
		fmt.Println("Invalid mnemonic specified.  Must be 12 to 24 " +
			"words from the BIP-39 English word list with a valid " +
			"checksum")
	}
}

// MnemonicPassphrase asks whether the mnemonic is protected by a BIP-39
// passphrase and, if so, prompts for it. An empty passphrase is returned
// otherwise.
func MnemonicPassphrase(reader *bufio.Reader) (string, error) {
	usePass, err := promptListBool(reader, "Does the mnemonic use a "+
		"passphrase?", "no")
	if err != nil {
		return "", err
	}
	if !usePass {
		return "", nil
	}

	pass, err := PassPrompt(reader, "Enter the mnemonic passphrase")
	if err != nil {
		return "", err
	}

	return string(pass), nil
}

// collapseSpace takes a string and replaces any repeated areas of whitespace
// with a single space character.
func collapseSpace(in string) string {
	whiteSpace := false
	var out strings.Builder
	for _, c := range in {
		if unicode.IsSpace(c) {
			if !whiteSpace {
				out.WriteRune(' ')
			}
			whiteSpace = true
		} else {
			out.WriteRune(c)
			whiteSpace = false
		}
	}
	return out.String()
}
