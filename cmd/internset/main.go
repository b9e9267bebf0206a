// Copyright (C) 2024  Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

// internset reads newline-delimited strings from stdin into a
// stripedmap.InternSet and reports unique and duplicate counts,
// exercising the library's dummy-value mode end to end.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"

	"github.com/gostriped/stripedmap"
)

func main() {
	concurrency := flag.Int("concurrency", 4, "InternSet ConcurrencyLevel")
	flag.Parse()

	set, err := stripedmap.NewInternSet[string](stripedmap.InternSetConfig[string]{
		ConcurrencyLevel: *concurrency,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "internset: building set:", err)
		os.Exit(1)
	}

	var total, duplicates int
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		total++
		if !set.Add(scanner.Text()) {
			duplicates++
		}
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintln(os.Stderr, "internset: reading stdin:", err)
		os.Exit(1)
	}

	fmt.Printf("lines=%d unique=%d duplicates=%d\n", total, set.Len(), duplicates)
}
