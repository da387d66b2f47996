package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate new key pair",
	Run:   generateRun,
}

func init() {
	rootCmd.AddCommand(generateCmd)
}

func generateRun(cmd *cobra.Command, args []string) {
	ks := openKeyStore()

	if _, err := ks.Account(accountName); err == nil {
		log.Fatalf("a key named %q already exists", accountName)
	}

	accountID, err := ks.Generate(accountName)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(string(accountID))
}
