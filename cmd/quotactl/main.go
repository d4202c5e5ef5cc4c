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

// The quotactl binary acquires, inspects or resets the quota bucket of a single principal.
//
// Exit status is 0 on success, 2 if the principal is out of quota and 1 for any other error.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/slotquota/cmd"
	"github.com/google/slotquota/cmd/internal/provider"
	"github.com/google/slotquota/quota"
	"github.com/google/slotquota/quota/config"
	"google.golang.org/grpc/status"
	"k8s.io/klog/v2"
)

var (
	op          = flag.String("op", "acquire", "Operation to run. One of: acquire, peek, reset")
	contextID   = flag.Int64("context_id", 0, "Context (tenant) of the principal")
	userID      = flag.Int64("user_id", 0, "User ID of the principal")
	quotaStore  = flag.String("quota_store", provider.DefaultQuotaStore, fmt.Sprintf("Bucket store to use. One of: %v", quota.StoreProviders()))
	quotaConfig = flag.String("quota_config", "", "YAML file with per-context and per-user quota parameters. If unset, --quota_capacity and friends apply to every principal")
	timeout     = flag.Duration("timeout", 10*time.Second, "Deadline for the operation")
	maxAttempts = flag.Int("max_attempts", quota.DefaultMaxAttempts, "Maximum compare-and-replace attempts per operation")

	configFile = flag.String("config", "", "Config file containing flags, file contents can be overridden by command line flags")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	defer klog.Flush()

	if *configFile != "" {
		if err := cmd.ParseFlagFile(*configFile); err != nil {
			klog.Exitf("Failed to load flags from config file %q: %s", *configFile, err)
		}
	}

	os.Exit(run())
}

func run() int {
	cfg, err := configSource()
	if err != nil {
		klog.Errorf("Failed to load quota config: %v", err)
		return 1
	}
	store, err := quota.NewStore(*quotaStore)
	if err != nil {
		klog.Errorf("Failed to create bucket store: %v", err)
		return 1
	}

	opts := quota.DefaultOptions()
	opts.MaxAttempts = *maxAttempts
	l := quota.NewLimiter(store, cfg, opts)
	key := quota.Key{ContextID: *contextID, UserID: *userID}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	switch *op {
	case "acquire":
		var n int
		n, err = l.Acquire(ctx, key)
		if err == nil {
			fmt.Printf("%v: granted, %s\n", key, tokens(n))
		}
	case "peek":
		var n int
		n, err = l.Peek(ctx, key)
		if err == nil {
			fmt.Printf("%v: %s available\n", key, tokens(n))
		}
	case "reset":
		if err = l.Reset(ctx, key); err == nil {
			fmt.Printf("%v: reset\n", key)
		}
	default:
		klog.Errorf("Unknown --op %q", *op)
		return 1
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "%v: %v (%v)\n", key, err, status.Code(err))
		var qe *quota.QuotaExceededError
		if errors.As(err, &qe) {
			return 2
		}
		return 1
	}
	return 0
}

func configSource() (quota.ConfigSource, error) {
	if *quotaConfig == "" {
		return config.StaticFromFlags(), nil
	}
	return config.LoadFile(*quotaConfig)
}

func tokens(n int) string {
	if n == quota.MaxTokens {
		return "unlimited (quota disabled)"
	}
	return fmt.Sprintf("%d slot(s)", n)
}
