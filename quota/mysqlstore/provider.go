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

package mysqlstore

import (
	"context"
	"database/sql"
	"flag"
	"sync"

	"github.com/google/slotquota/quota"
	"k8s.io/klog/v2"
)

// StoreName identifies the MySQL store provider.
const StoreName = "mysql"

var (
	mySQLURI     = flag.String("mysql_uri", "test:zaphod@tcp(127.0.0.1:3306)/test", "Connection URI for MySQL database")
	maxConns     = flag.Int("mysql_max_conns", 0, "Maximum connections to the database")
	maxIdle      = flag.Int("mysql_max_idle_conns", -1, "Maximum idle database connections in the connection pool")
	createTables = flag.Bool("mysql_create_tables", false, "Create the QuotaBuckets table if it doesn't exist")

	mysqlMu    sync.Mutex
	mysqlStore *Store
)

func init() {
	if err := quota.RegisterStoreProvider(StoreName, newMySQLStore); err != nil {
		klog.Fatalf("Failed to register bucket store %v: %v", StoreName, err)
	}
}

func newMySQLStore() (quota.BucketStore, error) {
	mysqlMu.Lock()
	defer mysqlMu.Unlock()
	if mysqlStore != nil {
		return mysqlStore, nil
	}
	db, err := OpenDB(*mySQLURI)
	if err != nil {
		return nil, err
	}
	configurePool(db)
	s := New(db)
	if *createTables {
		if err := s.CreateTables(context.Background()); err != nil {
			db.Close()
			return nil, err
		}
	}
	mysqlStore = s
	klog.Info("Using MySQL BucketStore")
	return s, nil
}

func configurePool(db *sql.DB) {
	if *maxConns > 0 {
		db.SetMaxOpenConns(*maxConns)
	}
	if *maxIdle >= 0 {
		db.SetMaxIdleConns(*maxIdle)
	}
}
