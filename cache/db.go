/*
Copyright © 2021, 2022, 2023 Red Hat, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package cache

// This source file contains an implementation of the cache stored in (almost
// any) SQL database like PostgreSQL or SQLite.
//
// The snapshot is stored in one table with one row per collection:
//
//	collection - name of collection (devices, services, alerts, users, notifications)
//	content    - JSON representation of the whole collection

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"

	_ "github.com/lib/pq"           // PostgreSQL database driver
	_ "github.com/mattn/go-sqlite3" // SQLite database driver

	"github.com/rs/zerolog/log"

	"github.com/RedHatInsights/serverdensity-sync/conf"
	"github.com/RedHatInsights/serverdensity-sync/types"
)

// Names of collections stored in cache table
const (
	CollectionDevices       = "devices"
	CollectionServices      = "services"
	CollectionAlerts        = "alerts"
	CollectionUsers         = "users"
	CollectionNotifications = "notifications"
)

const unableToCloseDBRowsHandle = "Unable to close the DB rows handle"

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// DBCache is an implementation of Cache interface backed by SQL table
type DBCache struct {
	connection    *sql.DB
	dbDriverType  types.DBDriver
	table         string
	logSQLQueries bool
}

// NewDBCache function creates and initializes a new SQL cache, the cache
// table is created when it does not exist
func NewDBCache(configuration conf.StorageConfiguration, table string) (*DBCache, error) {
	driverType, driverName, dataSource, err := initAndGetDriver(configuration)
	if err != nil {
		return nil, err
	}

	log.Info().Msgf(
		"Making connection to data storage, driver=%s",
		driverName,
	)

	connection, err := sql.Open(driverName, dataSource)
	if err != nil {
		log.Error().Err(err).Msg("Can not connect to data storage")
		return nil, err
	}

	cache, err := NewDBCacheFromConnection(connection, driverType, table)
	if err != nil {
		_ = connection.Close()
		return nil, err
	}
	cache.LogSQLQueries(configuration.LogSQLQueries)

	err = cache.Init()
	if err != nil {
		_ = connection.Close()
		return nil, err
	}
	return cache, nil
}

// NewDBCacheFromConnection function creates a new SQL cache from prepared
// connection
func NewDBCacheFromConnection(connection *sql.DB, dbDriverType types.DBDriver, table string) (*DBCache, error) {
	if table == "" {
		table = conf.DefaultCacheTable
	}
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid cache table name %q", table)
	}
	return &DBCache{
		connection:   connection,
		dbDriverType: dbDriverType,
		table:        table,
	}, nil
}

// initAndGetDriver checks if the configured driver is supported and returns
// driver type, driver name and data source
func initAndGetDriver(configuration conf.StorageConfiguration) (driverType types.DBDriver, driverName, dataSource string, err error) {
	driverName = configuration.Driver

	switch driverName {
	case "sqlite3":
		driverType = types.DBDriverSQLite3
		dataSource = configuration.SQLiteDataSource
	case "postgres":
		driverType = types.DBDriverPostgres
		dataSource = fmt.Sprintf(
			"postgresql://%v:%v@%v:%v/%v?%v",
			configuration.PGUsername,
			configuration.PGPassword,
			configuration.PGHost,
			configuration.PGPort,
			configuration.PGDBName,
			configuration.PGParams,
		)
	default:
		err = fmt.Errorf("driver %v is not supported", driverName)
		return
	}

	return
}

// LogSQLQueries enables or disables logging of all SQL statements
func (cache *DBCache) LogSQLQueries(enabled bool) {
	cache.logSQLQueries = enabled
}

func (cache *DBCache) logQuery(query string) {
	if cache.logSQLQueries {
		log.Info().Str("table", cache.table).Str("query", query).Msg("SQL statement")
	}
}

// placeholders returns parameter placeholders for insert statement in the
// style of the DB driver
func (cache *DBCache) placeholders() string {
	if cache.dbDriverType == types.DBDriverSQLite3 {
		return "?, ?"
	}
	return "$1, $2"
}

// Init creates the cache table when it does not exist
func (cache *DBCache) Init() error {
	statement := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			collection VARCHAR(32) NOT NULL PRIMARY KEY,
			content    TEXT NOT NULL
		)`, cache.table)

	cache.logQuery(statement)
	_, err := cache.connection.Exec(statement)
	if err != nil {
		log.Error().Err(err).Str("table", cache.table).Msg("Unable to create cache table")
	}
	return err
}

// Load reads all collections from the cache table
func (cache *DBCache) Load() (types.Snapshot, bool, error) {
	var snapshot types.Snapshot

	query := fmt.Sprintf("SELECT collection, content FROM %s", cache.table)
	cache.logQuery(query)
	rows, err := cache.connection.Query(query)
	if err != nil {
		return snapshot, false, err
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			log.Error().Err(err).Msg(unableToCloseDBRowsHandle)
		}
	}()

	found := false
	for rows.Next() {
		var (
			collection string
			content    string
		)

		if err := rows.Scan(&collection, &content); err != nil {
			return snapshot, false, err
		}

		target := collectionTarget(&snapshot, collection)
		if target == nil {
			log.Warn().Str("collection", collection).Msg("Unknown collection in cache table")
			continue
		}
		if err := json.Unmarshal([]byte(content), target); err != nil {
			return snapshot, false, err
		}
		found = true
	}

	if err := rows.Err(); err != nil {
		return snapshot, false, err
	}

	return snapshot, found, nil
}

// Save replaces content of the cache table in one transaction
func (cache *DBCache) Save(snapshot types.Snapshot, force bool) error {
	if !force {
		var count int
		query := fmt.Sprintf("SELECT COUNT(*) FROM %s", cache.table)
		cache.logQuery(query)
		err := cache.connection.QueryRow(query).Scan(&count)
		if err != nil {
			return err
		}
		if count == 0 {
			return nil
		}
	}

	tx, err := cache.connection.Begin()
	if err != nil {
		return err
	}

	err = cache.writeCollections(tx, snapshot)
	if err != nil {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			log.Error().Err(rollbackErr).Msg("Unable to rollback cache transaction")
		}
		return err
	}

	return tx.Commit()
}

func (cache *DBCache) writeCollections(tx *sql.Tx, snapshot types.Snapshot) error {
	deleteStatement := fmt.Sprintf("DELETE FROM %s", cache.table)
	cache.logQuery(deleteStatement)
	_, err := tx.Exec(deleteStatement)
	if err != nil {
		return err
	}

	insertStatement := fmt.Sprintf(
		"INSERT INTO %s (collection, content) VALUES (%s)", cache.table, cache.placeholders())
	cache.logQuery(insertStatement)

	for _, collection := range []string{
		CollectionDevices,
		CollectionServices,
		CollectionAlerts,
		CollectionUsers,
		CollectionNotifications,
	} {
		content, err := json.Marshal(collectionTarget(&snapshot, collection))
		if err != nil {
			return err
		}
		_, err = tx.Exec(insertStatement, collection, string(content))
		if err != nil {
			return err
		}
	}
	return nil
}

// Reset removes all rows from the cache table
func (cache *DBCache) Reset() error {
	statement := fmt.Sprintf("DELETE FROM %s", cache.table)
	cache.logQuery(statement)
	_, err := cache.connection.Exec(statement)
	if err != nil {
		log.Error().Err(err).Str("table", cache.table).Msg("Unable to reset cache")
	}
	return err
}

// Close method closes the connection to database
func (cache *DBCache) Close() error {
	log.Info().Msg("Closing connection to data storage")
	if cache.connection != nil {
		err := cache.connection.Close()
		if err != nil {
			log.Error().Err(err).Msg("Can not close connection to data storage")
			return err
		}
	}
	return nil
}

// collectionTarget returns pointer to snapshot attribute holding given
// collection
func collectionTarget(snapshot *types.Snapshot, collection string) interface{} {
	switch collection {
	case CollectionDevices:
		return &snapshot.Devices
	case CollectionServices:
		return &snapshot.Services
	case CollectionAlerts:
		return &snapshot.Alerts
	case CollectionUsers:
		return &snapshot.Users
	case CollectionNotifications:
		return &snapshot.Notifications
	default:
		return nil
	}
}
