package esplora

import (
	"encoding/json"
	"fmt"
	"net/http"
)

type txStatus struct {
	Confirmed   bool `json:"confirmed"`
	BlockHeight int  `json:"block_height"`
}

// GetTransactionConfirmations returns 0 for transactions still in mempool
// and for those the explorer doesn't know yet.
func (e *esplora) GetTransactionConfirmations(txid string) (int, error) {
	if txid == "" {
		return -1, fmt.Errorf("missing txid")
	}

	status, resp, err := e.get(fmt.Sprintf("/tx/%s/status", txid))
	if err != nil {
		return -1, err
	}
	if status == http.StatusNotFound {
		return 0, nil
	}

	var txStatus txStatus
	if err := json.Unmarshal([]byte(resp), &txStatus); err != nil {
		return -1, fmt.Errorf("failed to parse tx status: %w", err)
	}
	if !txStatus.Confirmed {
		return 0, nil
	}

	tip, err := e.GetBlockHeight()
	if err != nil {
		return -1, err
	}
	confirmations := tip - txStatus.BlockHeight + 1
	if confirmations < 1 {
		confirmations = 1
	}
	return confirmations, nil
}
