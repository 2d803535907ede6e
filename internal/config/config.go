package config

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	ma "github.com/multiformats/go-multiaddr"
	"github.com/spf13/viper"
	"github.com/tdex-network/tdex-p2p/pkg/wire"
)

const (
	// DatadirKey is the local data directory to store the internal state of daemon
	DatadirKey = "DATADIR"
	// LogLevelKey are the different logging levels. For reference on the values https://godoc.org/github.com/sirupsen/logrus#Level
	LogLevelKey = "LOG_LEVEL"
	// DBTypeKey is used to switch database type between those supported
	DBTypeKey = "DB_TYPE"
	// P2PListeningPortKey is the port where other peers connect to
	P2PListeningPortKey = "P2P_LISTENING_PORT"
	// OperatorListeningPortKey is the port where the HTTP Operator interface will listen on
	OperatorListeningPortKey = "OPERATOR_LISTENING_PORT"
	// NodeAddressKey is the multiaddress other peers can reach this node at.
	// Defaults to the loopback address on the p2p port
	NodeAddressKey = "NODE_ADDRESS"
	// SeedNodesKey is the comma separated list of multiaddresses of the seed
	// nodes to request the initial data from
	SeedNodesKey = "SEED_NODES"
	// MaxGetDataResponseSizeKey is the max size in bytes of an encoded data
	// response, after which it gets truncated. It can't exceed the max
	// payload of a p2p message
	MaxGetDataResponseSizeKey = "MAX_GETDATA_RESPONSE_SIZE"
	// GetDataRequestTimeoutKey is the duration in seconds after which an
	// unanswered data request is considered timed out
	GetDataRequestTimeoutKey = "GETDATA_REQUEST_TIMEOUT"
	// GetDataRequestsPerSecondKey is the max number of data requests of other
	// peers served per second, 0 for no limit
	GetDataRequestsPerSecondKey = "GETDATA_REQUESTS_PER_SECOND"
	// TradeTimeoutKey is the duration in seconds a trade has to get its
	// deposit published before failing
	TradeTimeoutKey = "TRADE_TIMEOUT"
	// OfferTTLKey is the duration in seconds of the published offers, they're
	// republished every half of it
	OfferTTLKey = "OFFER_TTL"
	// ExplorerEndpointKey is the url of the esplora explorer used to watch
	// the deposit transactions
	ExplorerEndpointKey = "EXPLORER_URL"
	// ConfirmationPollIntervalKey is the interval in milliseconds between two
	// checks of the confirmations of a deposit
	ConfirmationPollIntervalKey = "CONFIRMATION_POLL_INTERVAL"
	// ExplorerRequestsPerSecondKey is the max number of requests per second
	// sent to the explorer
	ExplorerRequestsPerSecondKey = "EXPLORER_REQUESTS_PER_SECOND"
	// EnableMetricsKey serves prometheus metrics on the operator interface
	EnableMetricsKey = "ENABLE_METRICS"
	// StatsIntervalKey defines interval in seconds for printing memory
	// statistics, 0 to disable them
	StatsIntervalKey = "STATS_INTERVAL"

	DbLocation  = "db"
	NodeKeyFile = "node.key"

	DBBadger   = "badger"
	DBInmemory = "inmemory"
)

var vip *viper.Viper
var defaultDatadir = btcutil.AppDataDir("tdex-p2p", false)

func InitConfig() error {
	vip = viper.New()
	vip.SetEnvPrefix("TDEXP2P")
	vip.AutomaticEnv()

	vip.SetDefault(DatadirKey, defaultDatadir)
	vip.SetDefault(LogLevelKey, 4)
	vip.SetDefault(DBTypeKey, DBBadger)
	vip.SetDefault(P2PListeningPortKey, 9945)
	vip.SetDefault(OperatorListeningPortKey, 9000)
	vip.SetDefault(MaxGetDataResponseSizeKey, 10*1024*1024)
	vip.SetDefault(GetDataRequestTimeoutKey, 90)
	vip.SetDefault(GetDataRequestsPerSecondKey, 10)
	vip.SetDefault(TradeTimeoutKey, 600)
	vip.SetDefault(OfferTTLKey, 7200)
	vip.SetDefault(ExplorerEndpointKey, "https://blockstream.info/api")
	vip.SetDefault(ConfirmationPollIntervalKey, 5000)
	vip.SetDefault(ExplorerRequestsPerSecondKey, 10)
	vip.SetDefault(EnableMetricsKey, false)
	vip.SetDefault(StatsIntervalKey, 600)

	if !vip.IsSet(NodeAddressKey) {
		vip.SetDefault(NodeAddressKey, fmt.Sprintf(
			"/ip4/127.0.0.1/tcp/%d", vip.GetInt(P2PListeningPortKey),
		))
	}

	if err := validate(); err != nil {
		return fmt.Errorf("error while validating config: %s", err)
	}

	if err := initDatadir(); err != nil {
		return fmt.Errorf("error while creating datadir: %s", err)
	}

	return nil
}

func GetString(key string) string {
	return vip.GetString(key)
}

func GetInt(key string) int {
	return vip.GetInt(key)
}

func GetBool(key string) bool {
	return vip.GetBool(key)
}

// GetStringSlice supports comma separated values for keys set via env vars.
func GetStringSlice(key string) []string {
	values := make([]string, 0)
	for _, v := range vip.GetStringSlice(key) {
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				values = append(values, s)
			}
		}
	}
	return values
}

// GetSeconds returns the value of the key as a duration in seconds.
func GetSeconds(key string) time.Duration {
	return time.Duration(vip.GetInt(key)) * time.Second
}

// GetMilliseconds returns the value of the key as a duration in
// milliseconds.
func GetMilliseconds(key string) time.Duration {
	return time.Duration(vip.GetInt(key)) * time.Millisecond
}

func GetDatadir() string {
	return GetString(DatadirKey)
}

// GetNodeKey returns the key the node signs its offers with. The key is
// created and stored in the datadir at first start.
func GetNodeKey() (ed25519.PrivateKey, error) {
	path := filepath.Join(GetDatadir(), NodeKeyFile)

	buf, err := os.ReadFile(path)
	if err == nil {
		seed, err := hex.DecodeString(strings.TrimSpace(string(buf)))
		if err != nil || len(seed) != ed25519.SeedSize {
			return nil, fmt.Errorf("invalid node key in %s", path)
		}
		return ed25519.NewKeyFromSeed(seed), nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}

	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(
		path, []byte(hex.EncodeToString(key.Seed())), 0600,
	); err != nil {
		return nil, err
	}
	return key, nil
}

func validate() error {
	datadir := GetString(DatadirKey)
	if len(datadir) <= 0 {
		return fmt.Errorf("missing datadir")
	}

	dbType := GetString(DBTypeKey)
	if dbType != DBBadger && dbType != DBInmemory {
		return fmt.Errorf(
			"%s must be either %s or %s", DBTypeKey, DBBadger, DBInmemory,
		)
	}

	addresses := append([]string{GetString(NodeAddressKey)}, GetStringSlice(SeedNodesKey)...)
	for _, addr := range addresses {
		if _, err := ma.NewMultiaddr(addr); err != nil {
			return fmt.Errorf("invalid multiaddress %q: %s", addr, err)
		}
	}

	for _, key := range []string{
		MaxGetDataResponseSizeKey, GetDataRequestTimeoutKey, TradeTimeoutKey,
		OfferTTLKey, ConfirmationPollIntervalKey,
	} {
		if GetInt(key) <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	if size := GetInt(MaxGetDataResponseSizeKey); size > wire.MaxPayloadSize {
		return fmt.Errorf(
			"%s must not exceed %d bytes", MaxGetDataResponseSizeKey,
			wire.MaxPayloadSize,
		)
	}
	for _, key := range []string{
		GetDataRequestsPerSecondKey, ExplorerRequestsPerSecondKey,
		StatsIntervalKey,
	} {
		if GetInt(key) < 0 {
			return fmt.Errorf("%s must not be negative", key)
		}
	}

	return nil
}

func initDatadir() error {
	datadir := GetDatadir()
	return makeDirectoryIfNotExists(filepath.Join(datadir, DbLocation))
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0755)
	}
	return nil
}
