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

package postgresqlstore

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"sync"

	"github.com/google/slotquota/quota"
	"github.com/jackc/pgx/v5/pgxpool"
	"k8s.io/klog/v2"
)

// StoreName identifies the PostgreSQL store provider.
const StoreName = "postgresql"

var (
	postgreSQLURI   = flag.String("postgresql_uri", "postgresql:///defaultdb?host=localhost&user=test", "Connection URI for PostgreSQL database")
	postgresqlTLSCA = flag.String("postgresql_tls_ca", "", "Path to the CA certificate file for PostgreSQL TLS connection")
	createTables    = flag.Bool("postgresql_create_tables", false, "Create the QuotaBuckets table if it doesn't exist")

	postgresqlMu    sync.Mutex
	postgresqlStore *Store
)

func init() {
	if err := quota.RegisterStoreProvider(StoreName, newPostgreSQLStore); err != nil {
		klog.Fatalf("Failed to register bucket store %v: %v", StoreName, err)
	}
}

func newPostgreSQLStore() (quota.BucketStore, error) {
	postgresqlMu.Lock()
	defer postgresqlMu.Unlock()
	if postgresqlStore != nil {
		return postgresqlStore, nil
	}
	uri, err := withTLSCA(*postgreSQLURI, *postgresqlTLSCA)
	if err != nil {
		return nil, err
	}
	ctx := context.Background()
	db, err := pgxpool.New(ctx, uri)
	if err != nil {
		// Don't log uri as it could contain credentials
		klog.Warningf("Could not open PostgreSQL database, check config: %s", err)
		return nil, err
	}
	s := New(db)
	if *createTables {
		if err := s.CreateTables(ctx); err != nil {
			db.Close()
			return nil, err
		}
	}
	postgresqlStore = s
	klog.Info("Using PostgreSQL BucketStore")
	return s, nil
}

// withTLSCA returns uri set up to verify the server against the CA certificate at caFile.
// uri is returned unchanged if caFile is empty.
func withTLSCA(uri, caFile string) (string, error) {
	if caFile == "" {
		return uri, nil
	}
	if _, err := os.Stat(caFile); err != nil {
		return "", fmt.Errorf("postgresql CA file error: %w", err)
	}
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("invalid postgresql URI: %w", err)
	}
	q := u.Query()
	q.Set("sslrootcert", caFile)
	if q.Get("sslmode") == "" {
		q.Set("sslmode", "verify-ca")
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
