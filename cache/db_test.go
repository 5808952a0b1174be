/*
Copyright © 2022, 2023 Red Hat, Inc.

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

package cache_test

import (
	"bytes"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/RedHatInsights/insights-operator-utils/tests/helpers"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"

	"github.com/RedHatInsights/serverdensity-sync/cache"
	"github.com/RedHatInsights/serverdensity-sync/conf"
	"github.com/RedHatInsights/serverdensity-sync/types"
)

// mustCreateMockConnection function tries to create a new mock connection and
// checks if the operation was finished without problems.
func mustCreateMockConnection(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	// try to initialize new mock connection
	connection, mock, err := sqlmock.New()

	// check the status
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}

	return connection, mock
}

// checkAllExpectations function checks if all database-related operations have
// been really met.
func checkAllExpectations(t *testing.T, mock sqlmock.Sqlmock) {
	// check if all expectations were met
	err := mock.ExpectationsWereMet()

	// check the error status
	if err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func mustCreateDBCache(t *testing.T, connection *sql.DB) *cache.DBCache {
	c, err := cache.NewDBCacheFromConnection(connection, types.DBDriverGeneral, "sd_cache")
	helpers.FailOnError(t, err)
	return c
}

func TestNewDBCacheUnsupportedDriver(t *testing.T) {
	_, err := cache.NewDBCache(conf.StorageConfiguration{Driver: "mysql"}, "sd_cache")
	assert.EqualError(t, err, "driver mysql is not supported")
}

func TestNewDBCacheInvalidTableName(t *testing.T) {
	connection, _ := mustCreateMockConnection(t)
	defer func() { _ = connection.Close() }()

	_, err := cache.NewDBCacheFromConnection(connection, types.DBDriverGeneral, "sd_cache; DROP TABLE users")
	assert.Error(t, err)
}

func TestDBCacheInit(t *testing.T) {
	connection, mock := mustCreateMockConnection(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS sd_cache").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectClose()

	c := mustCreateDBCache(t, connection)
	helpers.FailOnError(t, c.Init())
	helpers.FailOnError(t, c.Close())

	checkAllExpectations(t, mock)
}

func TestDBCacheLoadEmpty(t *testing.T) {
	connection, mock := mustCreateMockConnection(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT collection, content FROM sd_cache")).
		WillReturnRows(sqlmock.NewRows([]string{"collection", "content"}))
	mock.ExpectClose()

	c := mustCreateDBCache(t, connection)
	_, found, err := c.Load()
	helpers.FailOnError(t, err)
	assert.False(t, found)
	helpers.FailOnError(t, c.Close())

	checkAllExpectations(t, mock)
}

func TestDBCacheLoad(t *testing.T) {
	connection, mock := mustCreateMockConnection(t)
	rows := sqlmock.NewRows([]string{"collection", "content"}).
		AddRow("devices", `[{"_id": "d1", "hostname": "web1", "agentKey": "k1"}]`).
		AddRow("alerts", `[{"_id": "a1", "subjectType": "device", "value": 80, "recipients": []}]`).
		AddRow("something-else", `[]`)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT collection, content FROM sd_cache")).
		WillReturnRows(rows)
	mock.ExpectClose()

	c := mustCreateDBCache(t, connection)
	snapshot, found, err := c.Load()
	helpers.FailOnError(t, err)
	assert.True(t, found)
	assert.Equal(t, "k1", snapshot.Devices[0].AgentKey)
	assert.Equal(t, types.SubjectDevice, snapshot.Alerts[0].SubjectType)
	assert.Nil(t, snapshot.Services)
	helpers.FailOnError(t, c.Close())

	checkAllExpectations(t, mock)
}

func TestDBCacheLoadCorruptedContent(t *testing.T) {
	connection, mock := mustCreateMockConnection(t)
	rows := sqlmock.NewRows([]string{"collection", "content"}).
		AddRow("users", `{not json`)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT collection, content FROM sd_cache")).
		WillReturnRows(rows)

	c := mustCreateDBCache(t, connection)
	_, _, err := c.Load()
	assert.Error(t, err)

	checkAllExpectations(t, mock)
}

func TestDBCacheSaveForced(t *testing.T) {
	connection, mock := mustCreateMockConnection(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM sd_cache")).
		WillReturnResult(sqlmock.NewResult(0, 5))
	for _, collection := range []string{"devices", "services", "alerts", "users", "notifications"} {
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sd_cache (collection, content) VALUES ($1, $2)")).
			WithArgs(collection, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
	}
	mock.ExpectCommit()

	c := mustCreateDBCache(t, connection)
	helpers.FailOnError(t, c.Save(testSnapshot(), true))

	checkAllExpectations(t, mock)
}

// TestDBCacheSaveSQLite checks that SQLite style placeholders are used for
// SQLite driver
func TestDBCacheSaveSQLite(t *testing.T) {
	connection, mock := mustCreateMockConnection(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM sd_cache")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	for _, collection := range []string{"devices", "services", "alerts", "users", "notifications"} {
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sd_cache (collection, content) VALUES (?, ?)")).
			WithArgs(collection, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
	}
	mock.ExpectCommit()

	c, err := cache.NewDBCacheFromConnection(connection, types.DBDriverSQLite3, "sd_cache")
	helpers.FailOnError(t, err)
	helpers.FailOnError(t, c.Save(testSnapshot(), true))

	checkAllExpectations(t, mock)
}

func TestDBCacheLogSQLQueries(t *testing.T) {
	var buffer bytes.Buffer
	originalLogger := log.Logger
	log.Logger = zerolog.New(&buffer)
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	defer func() {
		log.Logger = originalLogger
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	}()

	connection, mock := mustCreateMockConnection(t)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM sd_cache")).
		WillReturnResult(sqlmock.NewResult(0, 5))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM sd_cache")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	c := mustCreateDBCache(t, connection)

	// disabled by default
	helpers.FailOnError(t, c.Reset())
	assert.NotContains(t, buffer.String(), "DELETE FROM sd_cache")

	c.LogSQLQueries(true)
	helpers.FailOnError(t, c.Reset())
	assert.Contains(t, buffer.String(), "DELETE FROM sd_cache")

	checkAllExpectations(t, mock)
}

func TestDBCacheSaveNotForcedWithoutCache(t *testing.T) {
	connection, mock := mustCreateMockConnection(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM sd_cache")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	c := mustCreateDBCache(t, connection)
	helpers.FailOnError(t, c.Save(testSnapshot(), false))

	checkAllExpectations(t, mock)
}

func TestDBCacheSaveRollback(t *testing.T) {
	connection, mock := mustCreateMockConnection(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM sd_cache")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM sd_cache")).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	c := mustCreateDBCache(t, connection)
	err := c.Save(testSnapshot(), false)
	assert.EqualError(t, err, "disk full")

	checkAllExpectations(t, mock)
}

func TestDBCacheReset(t *testing.T) {
	connection, mock := mustCreateMockConnection(t)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM sd_cache")).
		WillReturnResult(sqlmock.NewResult(0, 5))

	c := mustCreateDBCache(t, connection)
	helpers.FailOnError(t, c.Reset())

	checkAllExpectations(t, mock)
}

func TestDBCacheResetError(t *testing.T) {
	connection, mock := mustCreateMockConnection(t)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM sd_cache")).
		WillReturnError(errors.New("connection lost"))

	c := mustCreateDBCache(t, connection)
	assert.EqualError(t, c.Reset(), "connection lost")

	checkAllExpectations(t, mock)
}
