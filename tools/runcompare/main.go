// Command runcompare checks two metric result files for numeric
// equivalence and prints every mismatch with its path.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"weatherbench/internal/analytics"
)

func main() {
	flag.Parse()
	if flag.NArg() != 2 {
		fmt.Fprintln(os.Stderr, "usage: runcompare <fragments-a.json> <fragments-b.json>")
		os.Exit(2)
	}

	a, err := loadFragments(flag.Arg(0))
	if err != nil {
		log.Fatalf("load %s: %v", flag.Arg(0), err)
	}
	b, err := loadFragments(flag.Arg(1))
	if err != nil {
		log.Fatalf("load %s: %v", flag.Arg(1), err)
	}

	mismatches := analytics.Compare(a, b)
	if len(mismatches) == 0 {
		fmt.Println("results are equivalent")
		return
	}
	for _, m := range mismatches {
		fmt.Println(m.String())
	}
	fmt.Printf("%d mismatches\n", len(mismatches))
	os.Exit(1)
}

func loadFragments(path string) (analytics.Fragments, error) {
	var frags analytics.Fragments
	data, err := os.ReadFile(path)
	if err != nil {
		return frags, err
	}
	if err := json.Unmarshal(data, &frags); err != nil {
		return frags, err
	}
	return frags, nil
}
