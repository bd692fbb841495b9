// Package main provides a simple tool to generate an API key for the
// check-in service.
package main

import (
	"crypto/rand"
	"encoding/base64"
	"flag"
	"fmt"
	"os"
)

func main() {
	size := flag.Int("bytes", 32, "Key size in bytes before encoding")
	flag.Parse()

	if *size < 16 {
		fmt.Fprintln(os.Stderr, "Error: key must be at least 16 bytes")
		os.Exit(1)
	}

	key := make([]byte, *size)
	if _, err := rand.Read(key); err != nil {
		fmt.Fprintf(os.Stderr, "Error generating key: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(base64.RawURLEncoding.EncodeToString(key))
}
