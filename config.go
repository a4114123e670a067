// Package nimbus is the top-level module: a BitTorrent client built around
// one Session of independently running Torrent coordinators.
package nimbus

import (
	"io/ioutil"
	"os"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v1"
)

// Config holds every tunable named across the coordinator, peer session,
// tracker client and disk actor. It is loaded once at startup from an
// optional YAML file; any field the file omits keeps its DefaultConfig
// value.
type Config struct {
	// PeerPort is the TCP port peers connect to us on.
	PeerPort uint16 `yaml:"peer_port"`
	// RPCAddr is where the daemon listens for UI/CLI connections.
	RPCAddr string `yaml:"rpc_addr"`
	// MetricsAddr serves /healthz and /metrics; empty disables it.
	MetricsAddr string `yaml:"metrics_addr"`

	// DataDir is the default directory torrent content is written under.
	DataDir string `yaml:"data_dir"`
	// Database is the BoltDB resume-state file path.
	Database string `yaml:"database"`

	MaxPeersPerTorrent int `yaml:"max_peers_per_torrent"`
	UnchokedPeers      int `yaml:"unchoked_peers"`
	OptimisticUnchokedPeers int `yaml:"optimistic_unchoked_peers"`

	RequestQueueLength int `yaml:"request_queue_length"`
	EndgameThreshold   int `yaml:"endgame_threshold"`

	// MinAnnounceInterval floors the interval between tracker announces.
	// Defaults to 0: no artificial floor beyond the tracker's own reported
	// interval.
	MinAnnounceInterval time.Duration `yaml:"min_announce_interval"`

	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	TrackerTimeout   time.Duration `yaml:"tracker_timeout"`

	DownloadSpeedLimit int `yaml:"download_speed_limit"`
	UploadSpeedLimit   int `yaml:"upload_speed_limit"`

	PieceCacheBytes int64 `yaml:"piece_cache_bytes"`

	UnchokeInterval           time.Duration `yaml:"unchoke_interval"`
	OptimisticUnchokeInterval time.Duration `yaml:"optimistic_unchoke_interval"`
	SpeedCounterInterval      time.Duration `yaml:"speed_counter_interval"`
	StatsWriteInterval        time.Duration `yaml:"stats_write_interval"`

	// IntegrityErrorStrikes is how many hash-mismatched pieces from one
	// peer cause that peer to be dropped.
	IntegrityErrorStrikes int `yaml:"integrity_error_strikes"`
}

// DefaultConfig holds the values a fresh install runs with before any
// config file is loaded.
var DefaultConfig = Config{
	PeerPort:    6881,
	RPCAddr:     "127.0.0.1:7246",
	MetricsAddr: "",

	DataDir:  "~/Downloads/nimbus",
	Database: "~/.config/nimbus/resume.db",

	MaxPeersPerTorrent:      200,
	UnchokedPeers:           4,
	OptimisticUnchokedPeers: 1,

	RequestQueueLength: 10,
	EndgameThreshold:   20,

	MinAnnounceInterval: 0,

	HandshakeTimeout: 10 * time.Second,
	RequestTimeout:   30 * time.Second,
	TrackerTimeout:   15 * time.Second,

	DownloadSpeedLimit: 0,
	UploadSpeedLimit:   0,

	PieceCacheBytes: 64 << 20,

	UnchokeInterval:           10 * time.Second,
	OptimisticUnchokeInterval: 30 * time.Second,
	SpeedCounterInterval:      5 * time.Second,
	StatsWriteInterval:        15 * time.Second,

	IntegrityErrorStrikes: 3,
}

// LoadConfig reads filename as YAML over DefaultConfig; a missing file is
// not an error, so a fresh install runs with defaults until one is written.
func LoadConfig(filename string) (*Config, error) {
	c := DefaultConfig
	b, err := ioutil.ReadFile(filename)
	if os.IsNotExist(err) {
		return expandPaths(&c)
	}
	if err != nil {
		return nil, err
	}
	if err = yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	return expandPaths(&c)
}

func expandPaths(c *Config) (*Config, error) {
	dataDir, err := homedir.Expand(c.DataDir)
	if err != nil {
		return nil, err
	}
	c.DataDir = dataDir

	db, err := homedir.Expand(c.Database)
	if err != nil {
		return nil, err
	}
	c.Database = db
	return c, nil
}
