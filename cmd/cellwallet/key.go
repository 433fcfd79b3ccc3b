package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"syscall"

	"golang.org/x/term"

	"github.com/Klingon-tech/cellwallet/pkg/crypto"
)

// keyEnv names the environment variable holding a hex private key.
const keyEnv = "CELLWALLET_KEY"

var errNoKey = errors.New("no private key given")

// promptFunc reads a secret after showing prompt.
type promptFunc func(prompt string) ([]byte, error)

// readSecret returns the hex private key from keyFile, $CELLWALLET_KEY, or
// prompt, in that order. The caller must clear the returned slice.
func readSecret(keyFile string, prompt promptFunc) ([]byte, error) {
	switch {
	case keyFile != "":
		data, err := os.ReadFile(keyFile)
		if err != nil {
			return nil, fmt.Errorf("read key file: %w", err)
		}
		defer clear(data)
		return trimmed(data), nil
	case os.Getenv(keyEnv) != "":
		return trimmed([]byte(os.Getenv(keyEnv))), nil
	case prompt != nil:
		data, err := prompt("Private key: ")
		if err != nil {
			return nil, fmt.Errorf("read private key: %w", err)
		}
		defer clear(data)
		return trimmed(data), nil
	default:
		return nil, errNoKey
	}
}

// readKey parses the private key from readSecret.
func readKey(keyFile string, prompt promptFunc) (*crypto.PrivateKey, error) {
	secret, err := readSecret(keyFile, prompt)
	if err != nil {
		return nil, err
	}
	defer clear(secret)
	return crypto.ParsePrivateKeyHexBytes(secret)
}

// trimmed returns a copy of b without surrounding whitespace.
func trimmed(b []byte) []byte {
	return bytes.Clone(bytes.TrimSpace(b))
}

// terminalPrompt reads hidden input from the terminal, or nil when stdin
// is not a terminal.
func terminalPrompt() promptFunc {
	if !term.IsTerminal(int(syscall.Stdin)) {
		return nil
	}
	return readPassword
}

func readPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	secret, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr) // newline after hidden input
	if err != nil {
		return nil, err
	}
	return secret, nil
}
