package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/ardanlabs/byob/foundation/blockchain/database"
	"github.com/ardanlabs/byob/foundation/blockchain/keystore"
	"github.com/spf13/cobra"
)

var (
	to     string
	amount int64
	fee    int64
)

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send transaction",
	Run:   sendRun,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVarP(&url, "url", "u", "http://localhost:8080", "Url of the node.")
	sendCmd.Flags().StringVarP(&to, "to", "t", "", "Account or key name to credit.")
	sendCmd.Flags().Int64VarP(&amount, "amount", "v", 0, "Amount to send.")
	sendCmd.Flags().Int64VarP(&fee, "fee", "f", 0, "Amount left unassigned for the miner.")
}

func sendRun(cmd *cobra.Command, args []string) {
	ks := openKeyStore()

	from, err := ks.Account(accountName)
	if err != nil {
		log.Fatal(err)
	}

	tx, err := buildTransaction(ks, from, to, amount, fee)
	if err != nil {
		log.Fatal(err)
	}

	data, err := json.Marshal(tx)
	if err != nil {
		log.Fatal(err)
	}

	resp, err := http.Post(fmt.Sprintf("%s/v1/tx/submit", url), "application/json", bytes.NewBuffer(data))
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(resp.Status)
	fmt.Println(string(body))
}

// buildTransaction debits the sender the amount plus the fee and credits
// the receiver the amount. The receiver can be an account or the name of a
// key in the key store.
func buildTransaction(ks *keystore.KeyStore, from database.AccountID, to string, amount int64, fee int64) (database.SignedTx, error) {
	if amount <= 0 {
		return database.SignedTx{}, fmt.Errorf("amount must be positive, got %d", amount)
	}
	if fee < 0 {
		return database.SignedTx{}, fmt.Errorf("fee can't be negative, got %d", fee)
	}

	toID, err := database.ToAccountID(to)
	if err != nil {
		if toID, err = ks.Account(to); err != nil {
			return database.SignedTx{}, fmt.Errorf("unknown receiver %q", to)
		}
	}

	total, err := database.AddAmount(amount, fee)
	if err != nil {
		return database.SignedTx{}, fmt.Errorf("amount plus fee: %w", err)
	}

	debit, err := database.CreateSplit(from, total)
	if err != nil {
		return database.SignedTx{}, err
	}

	credit, err := database.CreateSplit(toID, -amount)
	if err != nil {
		return database.SignedTx{}, err
	}

	signer, err := ks.Signer(from)
	if err != nil {
		return database.SignedTx{}, err
	}

	return database.CreateTransaction([]database.Split{debit, credit}, signer)
}
