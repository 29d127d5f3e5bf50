package config

import (
	"fmt"
	"time"

	"github.com/lightningnetwork/lnd/kvdb"

	"github.com/er-state/vrf-consumer/util"
)

const (
	defaultDBName = "ledger.db"
)

// DBConfig contains config params for the bolt backend holding the ledger
// accounts and the local keys.
type DBConfig struct {
	// DBPath is the directory path in which the database file should be
	// stored.
	DBPath string `long:"dbpath" description:"The directory path in which the database file should be stored."`

	// DBFileName is the name of the database file.
	DBFileName string `long:"dbfilename" description:"The name of the database file."`

	// NoFreelistSync, if true, prevents the database from syncing its
	// freelist to disk, resulting in improved performance at the expense of
	// increased startup time.
	NoFreelistSync bool `long:"nofreelistsync" description:"Prevents the database from syncing its freelist to disk, resulting in improved performance at the expense of increased startup time."`

	// AutoCompact specifies if a Bolt based database backend should be
	// automatically compacted on startup (if the minimum age of the
	// database file is reached).
	AutoCompact bool `long:"autocompact" description:"Specifies if a Bolt based database backend should be automatically compacted on startup (if the minimum age of the database file is reached). This will require additional disk space for the compacted copy of the database but will result in an overall lower database size after the compaction."`

	// AutoCompactMinAge specifies the minimum time that must have passed
	// since a bolt database file was last compacted for the compaction to
	// be considered again.
	AutoCompactMinAge time.Duration `long:"autocompactminage" description:"Specifies the minimum time that must have passed since a bolt database file was last compacted for the compaction to be considered again."`

	// DBTimeout specifies the timeout value to use when opening the
	// database.
	DBTimeout time.Duration `long:"dbtimeout" description:"Specifies the timeout value to use when opening the database."`
}

func DefaultDBConfig() *DBConfig {
	return DefaultDBConfigWithHomePath(DefaultVrfcdDir)
}

func DefaultDBConfigWithHomePath(homePath string) *DBConfig {
	return &DBConfig{
		DBPath:            DataDir(homePath),
		DBFileName:        defaultDBName,
		NoFreelistSync:    true,
		AutoCompact:       false,
		AutoCompactMinAge: kvdb.DefaultBoltAutoCompactMinAge,
		DBTimeout:         kvdb.DefaultDBTimeout,
	}
}

func (cfg *DBConfig) Validate() error {
	if cfg.DBPath == "" {
		return fmt.Errorf("DB path cannot be empty")
	}

	if cfg.DBFileName == "" {
		return fmt.Errorf("DB file name cannot be empty")
	}

	return nil
}

// GetDBBackend opens the bolt backend, creating the data directory first.
func (cfg *DBConfig) GetDBBackend() (kvdb.Backend, error) {
	// Create the data directory
	if err := util.MakeDirectory(cfg.DBPath); err != nil {
		return nil, err
	}

	return kvdb.GetBoltBackend(&kvdb.BoltBackendConfig{
		DBPath:            cfg.DBPath,
		DBFileName:        cfg.DBFileName,
		NoFreelistSync:    cfg.NoFreelistSync,
		AutoCompact:       cfg.AutoCompact,
		AutoCompactMinAge: cfg.AutoCompactMinAge,
		DBTimeout:         cfg.DBTimeout,
	})
}
