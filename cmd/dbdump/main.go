package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tdex-network/tdex-p2p/internal/config"
	"github.com/tdex-network/tdex-p2p/internal/core/domain"
	"github.com/tdex-network/tdex-p2p/internal/core/ports"
	dbbadger "github.com/tdex-network/tdex-p2p/internal/infrastructure/storage/db/badger"
)

var (
	datadirFlag    = "datadir"
	defaultDatadir = btcutil.AppDataDir("tdex-p2p", false)

	version = "dev"
	commit  = "none"
	date    = "unknown"

	datadir string
)

func main() {
	if err := newApp(os.Stdout).Execute(); err != nil {
		log.Fatal(err)
	}
}

func newApp(out io.Writer) *cobra.Command {
	app := &cobra.Command{
		Use:   "dbdump",
		Short: "dump the storage of a tdexp2pd datadir",
		Long: "this tool prints as JSON the trades, the open offers and the network " +
			"payloads stored in a tdexp2pd datadir. The daemon must not be running",
		Version:       formatVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	app.SetOutput(out)
	app.PersistentFlags().StringVarP(
		&datadir, datadirFlag, "", defaultDatadir, "the datadir of the daemon",
	)

	app.AddCommand(
		&cobra.Command{
			Use:   "trades",
			Short: "dump all trades",
			RunE:  withRepoManager(out, dumpTrades),
		},
		&cobra.Command{
			Use:   "offers",
			Short: "dump the offers created by the node",
			RunE:  withRepoManager(out, dumpOpenOffers),
		},
		&cobra.Command{
			Use:   "payloads",
			Short: "dump the shared network payloads",
			RunE:  withRepoManager(out, dumpPayloads),
		},
	)
	return app
}

type dumpFn func(ctx context.Context, repoManager ports.RepoManager) (interface{}, error)

func withRepoManager(
	out io.Writer, dump dumpFn,
) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		dbDir := filepath.Join(datadir, config.DbLocation)
		if _, err := os.Stat(dbDir); err != nil {
			return fmt.Errorf("db not found in datadir %s", datadir)
		}

		repoManager, err := dbbadger.NewRepoManager(dbDir, nil)
		if err != nil {
			return err
		}
		defer repoManager.Close()

		res, err := dump(context.Background(), repoManager)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(out)
		enc.SetIndent("", "\t")
		return enc.Encode(res)
	}
}

type tradeDump struct {
	ID             string `json:"id"`
	Role           string `json:"role"`
	OfferID        string `json:"offer_id"`
	Amount         string `json:"amount"`
	TradingPeer    string `json:"trading_peer"`
	ProcessState   string `json:"process_state"`
	PreviousState  string `json:"previous_process_state"`
	LifeCycleState string `json:"life_cycle_state"`
	DepositTxID    string `json:"deposit_txid,omitempty"`
	PayoutTxID     string `json:"payout_txid,omitempty"`
	Error          string `json:"error,omitempty"`
	CreatedAt      string `json:"created_at"`
}

func dumpTrades(ctx context.Context, repoManager ports.RepoManager) (interface{}, error) {
	trades, err := repoManager.TradeRepository().GetAllTrades(ctx)
	if err != nil {
		return nil, err
	}

	res := make([]tradeDump, 0, len(trades))
	for _, t := range trades {
		amount := ""
		if t.TradeAmount.Valid {
			amount = t.TradeAmount.Decimal.String()
		}
		res = append(res, tradeDump{
			ID:             t.ID,
			Role:           t.Role.String(),
			OfferID:        t.Offer.ID,
			Amount:         amount,
			TradingPeer:    t.TradingPeer,
			ProcessState:   t.ProcessState.String(),
			PreviousState:  t.PreviousProcessState.String(),
			LifeCycleState: t.LifeCycleState.String(),
			DepositTxID:    t.DepositTxID,
			PayoutTxID:     t.PayoutTxID,
			Error:          t.ErrorMessage,
			CreatedAt:      time.Unix(t.CreatedAt, 0).UTC().Format(time.RFC3339),
		})
	}
	return res, nil
}

type offerDump struct {
	ID        string `json:"id"`
	Direction string `json:"direction"`
	Market    string `json:"market"`
	Amount    string `json:"amount"`
	MinAmount string `json:"min_amount"`
	Price     string `json:"price"`
	Status    string `json:"status"`
	TradeID   string `json:"trade_id,omitempty"`
}

func dumpOpenOffers(ctx context.Context, repoManager ports.RepoManager) (interface{}, error) {
	openOffers, err := repoManager.OpenOfferRepository().GetAllOpenOffers(ctx)
	if err != nil {
		return nil, err
	}

	res := make([]offerDump, 0, len(openOffers))
	for _, o := range openOffers {
		res = append(res, offerDump{
			ID:        o.Offer.ID,
			Direction: o.Offer.Direction.String(),
			Market:    fmt.Sprintf("%s/%s", o.Offer.BaseAsset, o.Offer.QuoteAsset),
			Amount:    o.Offer.Amount.String(),
			MinAmount: o.Offer.MinAmount.String(),
			Price:     o.Offer.Price.String(),
			Status:    o.Status.String(),
			TradeID:   o.TradeID,
		})
	}
	return res, nil
}

type entryDump struct {
	Key            string   `json:"key"`
	Kind           string   `json:"kind"`
	Type           string   `json:"type"`
	Owner          string   `json:"owner,omitempty"`
	SequenceNumber uint32   `json:"sequence_number,omitempty"`
	Requires       []string `json:"requires,omitempty"`
	CreatedAt      string   `json:"created_at"`
	Expired        bool     `json:"expired"`
	Removed        bool     `json:"removed,omitempty"`
}

func dumpPayloads(ctx context.Context, repoManager ports.RepoManager) (interface{}, error) {
	store := repoManager.PayloadStore()
	entries, err := store.GetProtectedEntries(ctx)
	if err != nil {
		return nil, err
	}
	payloads, err := store.GetPersistablePayloads(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	res := make([]entryDump, 0, len(entries)+len(payloads))
	for _, e := range entries {
		res = append(res, entryDump{
			Key:            string(e.Key()),
			Kind:           e.Kind.String(),
			Type:           e.Payload.Type,
			Owner:          hex.EncodeToString(e.OwnerPubKey),
			SequenceNumber: e.SequenceNumber,
			Requires:       capabilityLabels(e.Requirements()),
			CreatedAt:      formatMillis(e.CreationTime),
			Expired:        e.IsExpired(now),
			Removed:        e.Removed,
		})
	}
	for _, p := range payloads {
		res = append(res, entryDump{
			Key:       string(p.Key()),
			Kind:      "PERSISTABLE",
			Type:      p.Type,
			Requires:  capabilityLabels(p.Requirements()),
			CreatedAt: formatMillis(p.CreationTime),
		})
	}
	return res, nil
}

func capabilityLabels(caps domain.Capabilities) []string {
	labels := make([]string, 0, caps.Len())
	for _, c := range caps.ToIntList() {
		labels = append(labels, domain.Capability(c).String())
	}
	return labels
}

func formatMillis(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}

func formatVersion() string {
	return fmt.Sprintf(
		"Version: %s\nCommit: %s\nDate: %s",
		version, commit, date,
	)
}
