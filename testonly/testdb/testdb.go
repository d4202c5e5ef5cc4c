// Copyright 2026 Google LLC. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package testdb creates new, empty MySQL and PostgreSQL databases for tests.
//
// The servers are named by ENV variables rather than flags, so that a whole "go test ./..." run
// can be pointed at them without every test binary defining the flags.
package testdb

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"strings"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql" // mysql driver
	"github.com/jackc/pgx/v5/pgxpool"
	"k8s.io/klog/v2"
)

const (
	// MySQLURIEnv is the name of the ENV variable checked for the test MySQL instance URI to use.
	// The value must have a trailing slash.
	MySQLURIEnv = "TEST_MYSQL_URI"
	// PostgreSQLURIEnv is the name of the ENV variable checked for the test PostgreSQL instance
	// URI to use.
	PostgreSQLURIEnv = "TEST_POSTGRESQL_URI"

	// Note: sql.Open requires the URI to end with a slash.
	defaultTestMySQLURI      = "root@tcp(127.0.0.1)/"
	defaultTestPostgreSQLURI = "postgresql:///defaultdb?host=localhost&user=postgres&password=postgres"
)

func mysqlURI() string {
	if e := os.Getenv(MySQLURIEnv); len(e) > 0 {
		return e
	}
	return defaultTestMySQLURI
}

// postgresqlURI returns the test PostgreSQL URI, connected to database dbName if not empty.
func postgresqlURI(dbName string) string {
	uri := defaultTestPostgreSQLURI
	if e := os.Getenv(PostgreSQLURIEnv); len(e) > 0 {
		uri = e
	}
	if dbName == "" {
		return uri
	}
	// postgresql://host/olddb?params -> postgresql:///dbName?params
	if s1 := strings.SplitN(uri, "//", 2); len(s1) == 2 {
		if s2 := strings.SplitN(uri, "?", 2); len(s2) == 2 {
			return s1[0] + "///" + dbName + "?" + s2[1]
		}
	}
	return uri
}

func dbName() string {
	return fmt.Sprintf("slotquota_%v", time.Now().UnixNano())
}

// MySQLAvailable indicates whether the configured MySQL database is available.
func MySQLAvailable() bool {
	db, err := sql.Open("mysql", mysqlURI())
	if err != nil {
		log.Printf("sql.Open(): %v", err)
		return false
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Printf("db.Ping(): %v", err)
		return false
	}
	return true
}

// NewMySQLDB creates a randomly-named, empty MySQL database.
// It returns the DSN of the new database and a clean-up function that drops it.
func NewMySQLDB(ctx context.Context) (string, func(context.Context), error) {
	db, err := sql.Open("mysql", mysqlURI())
	if err != nil {
		return "", nil, err
	}
	name := dbName()
	stmt := fmt.Sprintf("CREATE DATABASE %v", name)
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		db.Close()
		return "", nil, fmt.Errorf("error running statement %q: %v", stmt, err)
	}

	done := func(ctx context.Context) {
		defer db.Close()
		if _, err := db.ExecContext(ctx, fmt.Sprintf("DROP DATABASE %v", name)); err != nil {
			klog.Warningf("Failed to drop test database %q: %v", name, err)
		}
	}
	return mysqlURI() + name, done, nil
}

// SkipIfNoMySQL is a test helper that skips tests that require a local MySQL.
func SkipIfNoMySQL(t *testing.T) {
	t.Helper()
	if !MySQLAvailable() {
		t.Skip("Skipping test as MySQL not available")
	}
	t.Logf("Test MySQL available at %q", mysqlURI())
}

// PostgreSQLAvailable indicates whether the configured PostgreSQL database is available.
func PostgreSQLAvailable() bool {
	ctx := context.TODO()
	db, err := pgxpool.New(ctx, postgresqlURI(""))
	if err != nil {
		log.Printf("pgxpool.New(): %v", err)
		return false
	}
	defer db.Close()
	if err := db.Ping(ctx); err != nil {
		log.Printf("db.Ping(): %v", err)
		return false
	}
	return true
}

// NewPostgreSQLDB creates a randomly-named, empty PostgreSQL database.
// It returns a pool connected to it and a clean-up function that closes the pool and drops the
// database.
func NewPostgreSQLDB(ctx context.Context) (*pgxpool.Pool, func(context.Context), error) {
	admin, err := pgxpool.New(ctx, postgresqlURI(""))
	if err != nil {
		return nil, nil, err
	}
	name := dbName()
	stmt := fmt.Sprintf("CREATE DATABASE %v", name)
	if _, err := admin.Exec(ctx, stmt); err != nil {
		admin.Close()
		return nil, nil, fmt.Errorf("error running statement %q: %v", stmt, err)
	}

	db, err := pgxpool.New(ctx, postgresqlURI(name))
	if err != nil {
		admin.Close()
		return nil, nil, err
	}
	done := func(ctx context.Context) {
		db.Close()
		defer admin.Close()
		if _, err := admin.Exec(ctx, fmt.Sprintf("DROP DATABASE %v", name)); err != nil {
			klog.Warningf("Failed to drop test database %q: %v", name, err)
		}
	}
	return db, done, db.Ping(ctx)
}

// SkipIfNoPostgreSQL is a test helper that skips tests that require a local PostgreSQL.
func SkipIfNoPostgreSQL(t *testing.T) {
	t.Helper()
	if !PostgreSQLAvailable() {
		t.Skip("Skipping test as PostgreSQL not available")
	}
	t.Logf("Test PostgreSQL available at %q", postgresqlURI(""))
}
