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

// Package postgresqlstore contains a quota.BucketStore backed by a PostgreSQL table.
package postgresqlstore

import (
	"context"
	_ "embed" // schema
	"errors"
	"fmt"
	"strings"

	"github.com/google/slotquota/quota"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"k8s.io/klog/v2"
)

const (
	selectBucketSQL = "SELECT Bucket FROM QuotaBuckets WHERE ContextId = $1 AND UserId = $2"
	insertBucketSQL = "INSERT INTO QuotaBuckets(ContextId, UserId, Bucket) VALUES($1, $2, $3) ON CONFLICT DO NOTHING"
	updateBucketSQL = "UPDATE QuotaBuckets SET Bucket = $1 WHERE ContextId = $2 AND UserId = $3 AND Bucket = $4"
	deleteBucketSQL = "DELETE FROM QuotaBuckets WHERE ContextId = $1 AND UserId = $2"
)

// Schema holds the statements creating the QuotaBuckets table.
//
//go:embed schema/buckets.sql
var Schema string

// DB is the subset of *pgxpool.Pool used by Store.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is a quota.BucketStore backed by the QuotaBuckets table.
type Store struct {
	db DB
}

var _ quota.BucketStore = &Store{}

// New returns a Store using db.
func New(db DB) *Store {
	return &Store{db: db}
}

// CreateTables runs Schema against the database.
func (s *Store) CreateTables(ctx context.Context) error {
	for _, stmt := range strings.Split(Schema, ";") {
		if stmt = strings.TrimSpace(stripComments(stmt)); stmt == "" {
			continue
		}
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			// Concurrent CREATE TABLE IF NOT EXISTS can still collide in the catalog.
			if code := errCode(err); code == pgerrcode.UniqueViolation || code == pgerrcode.DuplicateTable {
				continue
			}
			return fmt.Errorf("error running statement %q: %v", stmt, err)
		}
	}
	return nil
}

func stripComments(stmt string) string {
	lines := strings.Split(stmt, "\n")
	kept := lines[:0]
	for _, l := range lines {
		if !strings.HasPrefix(strings.TrimSpace(l), "--") {
			kept = append(kept, l)
		}
	}
	return strings.Join(kept, "\n")
}

// Get implements quota.BucketStore.
func (s *Store) Get(ctx context.Context, key quota.Key) (quota.Bucket, bool, error) {
	var data []byte
	err := s.db.QueryRow(ctx, selectBucketSQL, key.ContextID, key.UserID).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return quota.Bucket{}, false, nil
	}
	if err != nil {
		return quota.Bucket{}, false, unavailable("postgresql select", err)
	}
	b, err := quota.ParseBucket(data)
	if err != nil {
		return quota.Bucket{}, false, quota.Unavailable("postgresql decode "+key.Name(), err)
	}
	return b, true, nil
}

// PutIfAbsent implements quota.BucketStore.
func (s *Store) PutIfAbsent(ctx context.Context, key quota.Key, b quota.Bucket) (bool, error) {
	val, err := b.MarshalBinary()
	if err != nil {
		return false, err
	}
	tag, err := s.db.Exec(ctx, insertBucketSQL, key.ContextID, key.UserID, val)
	if err != nil {
		return false, unavailable("postgresql insert", err)
	}
	return tag.RowsAffected() == 1, nil
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
	tag, err := s.db.Exec(ctx, updateBucketSQL, nextVal, key.ContextID, key.UserID, oldVal)
	if err != nil {
		return false, unavailable("postgresql update", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Delete removes the bucket for key, if any.
func (s *Store) Delete(ctx context.Context, key quota.Key) error {
	if _, err := s.db.Exec(ctx, deleteBucketSQL, key.ContextID, key.UserID); err != nil {
		return unavailable("postgresql delete", err)
	}
	return nil
}

// errCode returns the SQLSTATE of a server error, or "".
func errCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// unavailable wraps err, logging server errors that point at a broken deployment rather than a
// transient outage.
func unavailable(op string, err error) error {
	switch code := errCode(err); {
	case code == pgerrcode.UndefinedTable:
		klog.Errorf("%s: QuotaBuckets table missing, run with --postgresql_create_tables: %v", op, err)
	case code != "" && !pgerrcode.IsConnectionException(code) && !pgerrcode.IsOperatorIntervention(code) && !pgerrcode.IsInsufficientResources(code):
		klog.Warningf("%s: unexpected server error %s: %v", op, code, err)
	}
	return quota.Unavailable(op, err)
}
