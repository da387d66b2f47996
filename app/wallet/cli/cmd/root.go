// Package cmd contains wallet app
package cmd

import (
	"log"
	"os"

	"github.com/ardanlabs/byob/foundation/blockchain/keystore"
	"github.com/spf13/cobra"
)

var (
	accountName string
	accountPath string
	url         string
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&accountName, "account", "a", "private", "Name of the private key in the key folder.")
	rootCmd.PersistentFlags().StringVarP(&accountPath, "account-path", "p", "zblock/accounts/", "Path to the directory with private keys.")
}

var rootCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Your simple ledger wallet",
}

// Execute runs the wallet command line.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// openKeyStore opens the configured key folder.
func openKeyStore() *keystore.KeyStore {
	ks, err := keystore.New(accountPath)
	if err != nil {
		log.Fatal(err)
	}
	return ks
}
