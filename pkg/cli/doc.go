// Package cli implements walletctl, the operator tool for the walletd ledger.
//
// # Overview
//
// walletctl talks to the storage backend directly, using the same
// configuration as the server (WALLETD_* variables or WALLETD_CONFIG_FILE).
// Every mutation goes through the ledger and is written to the audit log
// under the --actor id.
//
// # Commands
//
//	walletctl migrate
//	walletctl org-create --name "Acme Corp" [--currency usd]
//	walletctl wallet --org <id> [--limit 10]
//	walletctl credit --org <id> --amount 5000 --reason "wire transfer 1234"
//	walletctl debit --org <id> --amount 200 --reason "manual correction" [--allow-negative]
//	walletctl rate [--set 250]
//
// Amounts and rates are in cents.
package cli
