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

// Package mysqlstore contains a quota.BucketStore backed by a MySQL table.
//
// Compare-and-replace is a conditional UPDATE on the encoded bucket, so the database serializes
// concurrent writers to the same row.
package mysqlstore

import (
	"context"
	"database/sql"
	_ "embed" // schema
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/google/slotquota/quota"
	"k8s.io/klog/v2"
)

const (
	// ER_DUP_ENTRY: Error returned by driver when inserting a duplicate row.
	errNumDuplicate = 1062

	selectBucketSQL = "SELECT Bucket FROM QuotaBuckets WHERE ContextId = ? AND UserId = ?"
	insertBucketSQL = "INSERT INTO QuotaBuckets(ContextId, UserId, Bucket) VALUES(?, ?, ?)"
	updateBucketSQL = "UPDATE QuotaBuckets SET Bucket = ? WHERE ContextId = ? AND UserId = ? AND Bucket = ?"
	deleteBucketSQL = "DELETE FROM QuotaBuckets WHERE ContextId = ? AND UserId = ?"
)

// Schema holds the statements creating the QuotaBuckets table.
//
//go:embed schema/buckets.sql
var Schema string

// Store is a quota.BucketStore backed by the QuotaBuckets table.
type Store struct {
	db *sql.DB
}

var _ quota.BucketStore = &Store{}

// New returns a Store using db, which should be opened with OpenDB.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// OpenDB opens a MySQL database for use by a Store.
//
// The connection reports matched rather than changed rows, so replacing a bucket with an equal
// one still counts as a successful swap. Strict mode rejects truncated buckets.
func OpenDB(dsn string) (*sql.DB, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		// Don't log the DSN as it could contain credentials.
		klog.Warningf("Could not parse MySQL DSN, check config: %s", err)
		return nil, err
	}
	cfg.ClientFoundRows = true
	if cfg.Params == nil {
		cfg.Params = make(map[string]string)
	}
	cfg.Params["sql_mode"] = "'STRICT_ALL_TABLES'"
	conn, err := mysql.NewConnector(cfg)
	if err != nil {
		klog.Warningf("Could not open MySQL database, check config: %s", err)
		return nil, err
	}
	return sql.OpenDB(conn), nil
}

// CreateTables runs Schema against the database.
func (s *Store) CreateTables(ctx context.Context) error {
	for _, stmt := range statements(Schema) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("error running statement %q: %v", stmt, err)
		}
	}
	return nil
}

// statements splits a SQL script on semicolons, dropping comment lines.
func statements(script string) []string {
	var b strings.Builder
	for _, line := range strings.Split(script, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	var out []string
	for _, stmt := range strings.Split(b.String(), ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

// Get implements quota.BucketStore.
func (s *Store) Get(ctx context.Context, key quota.Key) (quota.Bucket, bool, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, selectBucketSQL, key.ContextID, key.UserID).Scan(&data)
	if err == sql.ErrNoRows {
		return quota.Bucket{}, false, nil
	}
	if err != nil {
		return quota.Bucket{}, false, quota.Unavailable("mysql select", err)
	}
	b, err := quota.ParseBucket(data)
	if err != nil {
		return quota.Bucket{}, false, quota.Unavailable("mysql decode "+key.Name(), err)
	}
	return b, true, nil
}

// PutIfAbsent implements quota.BucketStore.
func (s *Store) PutIfAbsent(ctx context.Context, key quota.Key, b quota.Bucket) (bool, error) {
	val, err := b.MarshalBinary()
	if err != nil {
		return false, err
	}
	if _, err := s.db.ExecContext(ctx, insertBucketSQL, key.ContextID, key.UserID, val); err != nil {
		if isDuplicateErr(err) {
			return false, nil
		}
		return false, quota.Unavailable("mysql insert", err)
	}
	return true, nil
}

// CompareAndReplace implements quota.BucketStore.
func (s *Store) CompareAndReplace(ctx context.Context, key quota.Key, old, next quota.Bucket) (bool, error) {
	oldVal, err := old.MarshalBinary()
	if err != nil {
		return false, err
	}
	nextVal, err := next.MarshalBinary()
	if err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx, updateBucketSQL, nextVal, key.ContextID, key.UserID, oldVal)
	if err != nil {
		return false, quota.Unavailable("mysql update", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, quota.Unavailable("mysql update", err)
	}
	return n == 1, nil
}

// Delete removes the bucket for key, if any.
func (s *Store) Delete(ctx context.Context, key quota.Key) error {
	if _, err := s.db.ExecContext(ctx, deleteBucketSQL, key.ContextID, key.UserID); err != nil {
		return quota.Unavailable("mysql delete", err)
	}
	return nil
}

func isDuplicateErr(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == errNumDuplicate
}
