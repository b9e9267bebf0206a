// Copyright (C) 2024  Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

// stripedbench drives a configurable number of goroutines issuing a mix of
// Put/Get/Remove against a shared stripedmap.Map and reports throughput.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/gostriped/stripedmap"
	stripedglog "github.com/gostriped/stripedmap/glog"
	"github.com/gostriped/stripedmap/monotime"
	ssemaphore "github.com/gostriped/stripedmap/sync/semaphore"
)

func main() {
	var (
		workers     = flag.Int("workers", 8, "number of concurrent goroutines")
		keyspace    = flag.Int("keyspace", 100000, "number of distinct integer keys")
		duration    = flag.Duration("duration", 5*time.Second, "how long to run")
		concurrency = flag.Int("concurrency", 16, "map ConcurrencyLevel (segment count)")
		getRatio    = flag.Float64("get-ratio", 0.8, "fraction of operations that are Get")
		putRatio    = flag.Float64("put-ratio", 0.15, "fraction of operations that are Put")
		maxInFlight = flag.Int64("max-in-flight", 64, "weighted semaphore bound on in-flight operation batches")
		verbose     = flag.Bool("verbose", false, "log map construction via glog at debug level (segment expansions and drains are not logged)")
	)
	flag.Parse()

	var log stripedmap.Logger
	if *verbose {
		log = &stripedglog.Glog{}
	}

	m, err := stripedmap.New[int, int64](stripedmap.Config[int, int64]{
		ConcurrencyLevel: *concurrency,
		Logger:           log,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "stripedbench: building map:", err)
		os.Exit(1)
	}

	sem := ssemaphore.NewWeighted(*maxInFlight)

	var puts, gets, removes, hits, contended int64
	stop := make(chan struct{})
	time.AfterFunc(*duration, func() { close(stop) })

	start := monotime.Now()
	var wg sync.WaitGroup
	for w := 0; w < *workers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			ctx := context.Background()
			for {
				select {
				case <-stop:
					return
				default:
				}
				if err := sem.Acquire(ctx, 1); err != nil {
					return
				}
				runOp(m, rng, *keyspace, *getRatio, *putRatio, &puts, &gets, &removes, &hits, &contended)
				sem.Release(1)
			}
		}(int64(w) + 1)
	}
	wg.Wait()
	elapsed := monotime.Since(start)

	total := puts + gets + removes
	opsPerSec := float64(total) / elapsed.Seconds()
	fmt.Printf("ops=%d puts=%d gets=%d removes=%d hits=%d contended=%d size=%d elapsed=%s ops/sec=%.0f\n",
		total, puts, gets, removes, hits, contended, m.Size(), elapsed, opsPerSec)
}

func runOp(
	m *stripedmap.Map[int, int64],
	rng *rand.Rand,
	keyspace int,
	getRatio, putRatio float64,
	puts, gets, removes, hits, contended *int64,
) {
	key := rng.Intn(keyspace)
	switch r := rng.Float64(); {
	case r < getRatio:
		if _, ok := m.Get(key); ok {
			atomic.AddInt64(hits, 1)
		}
		atomic.AddInt64(gets, 1)
	case r < getRatio+putRatio:
		incrementWithBackoff(m, key, rng.Int63n(1000), contended)
		atomic.AddInt64(puts, 1)
	default:
		m.Remove(key)
		atomic.AddInt64(removes, 1)
	}
}

// incrementWithBackoff adds delta to key's current value, retrying the
// read-modify-write as a ReplaceIfEqual compare-and-swap when a concurrent
// writer wins the race, backing off exponentially between attempts the same
// way the teacher's gnmireverse client backs off between reconnect attempts
// (manual bo.NextBackOff()/time.Sleep, not backoff.Retry). contended counts
// every retry forced by a lost race, purely for reporting.
func incrementWithBackoff(m *stripedmap.Map[int, int64], key int, delta int64, contended *int64) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Microsecond
	bo.MaxInterval = 2 * time.Millisecond
	bo.MaxElapsedTime = 20 * time.Millisecond
	bo.Reset()

	for {
		current, ok := m.Get(key)
		if !ok {
			if _, existed, err := m.PutIfAbsent(key, delta); err != nil || !existed {
				return
			}
		} else if replaced, err := m.ReplaceIfEqual(key, current, current+delta); err == nil && replaced {
			return
		}
		wait := bo.NextBackOff()
		if wait == backoff.Stop {
			return
		}
		atomic.AddInt64(contended, 1)
		time.Sleep(wait)
	}
}
