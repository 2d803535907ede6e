package ports

// Explorer defines the methods to get info about transactions from the
// blockchain.
type Explorer interface {
	// GetTransactionConfirmations returns the number of confirmations of the
	// given transaction, 0 if still in mempool.
	GetTransactionConfirmations(txid string) (int, error)
	// GetBlockHeight returns the current height of the chain.
	GetBlockHeight() (int, error)
}
