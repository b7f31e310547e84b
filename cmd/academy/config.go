package main

import (
	"time"

	"github.com/rustacademy/academy/internal/duckdb"
	"github.com/rustacademy/academy/internal/ingest"
	"github.com/rustacademy/academy/internal/model"
	"github.com/rustacademy/academy/internal/otlpexport"
)

const (
	defaultTickInterval        = model.DefaultTickInterval
	defaultClockFormat         = model.DefaultClockFormat
	defaultInboxSize           = model.DefaultInboxSize
	defaultBindHost            = "127.0.0.1"
	defaultTCPPort             = 4100
	defaultMuxBufferSize       = DefaultMuxBuffer
	defaultAPIPort             = 3000
	defaultIngestMode          = ingest.ProcessorModeParse
	defaultQueryTimeout        = duckdb.DefaultQueryTimeout
	defaultInsertBatchSize     = duckdb.DefaultBatchSize
	defaultInsertFlushInterval = duckdb.DefaultFlushInterval
	defaultInsertFlushQueue    = duckdb.DefaultFlushQueueSize
	defaultRetentionDays       = duckdb.DefaultRetentionDays
	defaultBackupInterval      = 6 * time.Hour
	defaultBackupKeepLast      = 5
	defaultOTLPServiceName     = otlpexport.DefaultServiceName
)

// appConfig is internal runtime configuration.
// It is package-private to keep defaults and shape local to the CLI entrypoint.
type appConfig struct {
	TickInterval        time.Duration `mapstructure:"tick-interval"`
	ClockFormat         string        `mapstructure:"clock-format"`
	ClockEnabled        bool          `mapstructure:"clock-enabled"`
	InboxSize           int           `mapstructure:"inbox-size"`
	Verbose             bool          `mapstructure:"verbose"`
	Host                string        `mapstructure:"host"`
	IngestMode          string        `mapstructure:"ingest-mode"`
	TCPEnabled          bool          `mapstructure:"tcp-enabled"`
	TCPPort             int           `mapstructure:"tcp-port"`
	TCPAddr             string        `mapstructure:"tcp-addr"`
	StdinEnabled        bool          `mapstructure:"stdin-enabled"`
	MuxBufferSize       int           `mapstructure:"mux-buffer-size"`
	APIEnabled          bool          `mapstructure:"api-enabled"`
	APIPort             int           `mapstructure:"api-port"`
	APIAddr             string        `mapstructure:"api-addr"`
	SocketPath          string        `mapstructure:"socket-path"`
	DBEnabled           bool          `mapstructure:"db-enabled"`
	DBPath              string        `mapstructure:"db-path"`
	QueryTimeout        time.Duration `mapstructure:"query-timeout"`
	InsertBatchSize     int           `mapstructure:"insert-batch-size"`
	InsertFlushInterval time.Duration `mapstructure:"insert-flush-interval"`
	InsertFlushQueue    int           `mapstructure:"insert-flush-queue-size"`
	RetentionDays       int           `mapstructure:"db-retention-days"`
	BackupEnabled       bool          `mapstructure:"backup-enabled"`
	BackupInterval      time.Duration `mapstructure:"backup-interval"`
	BackupLocalDir      string        `mapstructure:"backup-dir"`
	BackupKeepLast      int           `mapstructure:"backup-keep-last"`
	JournalEnabled      bool          `mapstructure:"journal-enabled"`
	JournalPath         string        `mapstructure:"journal-path"`
	OTLPEndpoint        string        `mapstructure:"otlp-endpoint"`
	OTLPServiceName     string        `mapstructure:"otlp-service-name"`
	ConfigPath          string        `mapstructure:"-"` // not from config file
}
