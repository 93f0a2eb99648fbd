// Command genhash prints a crypt-style hash string for a
// password/algorithm/salt triple, for building test shadow-file
// fixtures without a live libc crypt() to hand.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/barrosov/crackfleet/internal/hostcrypt"
)

func parseAlgorithm(name string) (hostcrypt.Algorithm, error) {
	switch strings.ToLower(name) {
	case "md5":
		return hostcrypt.MD5, nil
	case "bcrypt":
		return hostcrypt.Bcrypt, nil
	case "sha256":
		return hostcrypt.SHA256, nil
	case "sha512":
		return hostcrypt.SHA512, nil
	case "yescrypt":
		return hostcrypt.Yescrypt, nil
	default:
		return 0, fmt.Errorf("genhash: unknown algorithm %q (want md5|bcrypt|sha256|sha512|yescrypt)", name)
	}
}

func newRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "genhash <password> <algorithm> <salt>",
		Short: "Print a crypt-style hash string for a password/algorithm/salt triple",
		Args:  cobra.ExactArgs(3),
		RunE: func(_ *cobra.Command, args []string) error {
			pw, algoName, salt := args[0], args[1], args[2]
			algo, err := parseAlgorithm(algoName)
			if err != nil {
				return err
			}
			hash, err := hostcrypt.Hash(pw, algo, salt)
			if err != nil {
				return fmt.Errorf("genhash: %w", err)
			}
			fmt.Println(hash)
			return nil
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
