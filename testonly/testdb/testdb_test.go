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

package testdb

import (
	"testing"
)

func TestPostgreSQLURI(t *testing.T) {
	t.Setenv(PostgreSQLURIEnv, "postgresql://db.example.com/defaultdb?host=db&user=test")
	for _, tc := range []struct {
		dbName string
		want   string
	}{
		{dbName: "", want: "postgresql://db.example.com/defaultdb?host=db&user=test"},
		{dbName: "slotquota_1", want: "postgresql:///slotquota_1?host=db&user=test"},
	} {
		if got := postgresqlURI(tc.dbName); got != tc.want {
			t.Errorf("postgresqlURI(%q) = %q, want %q", tc.dbName, got, tc.want)
		}
	}
}

func TestMySQLURIDefault(t *testing.T) {
	t.Setenv(MySQLURIEnv, "")
	if got := mysqlURI(); got != defaultTestMySQLURI {
		t.Errorf("mysqlURI() = %q, want %q", got, defaultTestMySQLURI)
	}
}
