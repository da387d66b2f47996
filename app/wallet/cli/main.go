// This program provides a wallet for the ledger node.
package main

import "github.com/ardanlabs/byob/app/wallet/cli/cmd"

func main() {
	cmd.Execute()
}
