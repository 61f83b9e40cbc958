// Command encrypt-creds encrypts an upstream API credential triple into the
// JSON vault format that marketgate can load at startup via
// upstream.encrypted_creds_path.
//
// Credentials and the password are read from environment variables so they
// never appear in shell history:
//
//	MARKETGATE_UPSTREAM_API_KEY=... \
//	MARKETGATE_UPSTREAM_API_SECRET=... \
//	MARKETGATE_UPSTREAM_API_PASSPHRASE=... \
//	MARKETGATE_UPSTREAM_CREDS_PASSWORD=... \
//	encrypt-creds -out creds.enc.json
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/polysight/marketgate/internal/crypto"
)

func main() {
	out := flag.String("out", "creds.enc.json", "output path for the encrypted credentials file")
	flag.Parse()

	auth := crypto.HMACAuth{
		Key:        os.Getenv("MARKETGATE_UPSTREAM_API_KEY"),
		Secret:     os.Getenv("MARKETGATE_UPSTREAM_API_SECRET"),
		Passphrase: os.Getenv("MARKETGATE_UPSTREAM_API_PASSPHRASE"),
	}
	if !auth.Complete() {
		fmt.Fprintln(os.Stderr, "error: MARKETGATE_UPSTREAM_API_KEY, _API_SECRET, and _API_PASSPHRASE must all be set")
		os.Exit(1)
	}

	password := os.Getenv("MARKETGATE_UPSTREAM_CREDS_PASSWORD")
	if password == "" {
		fmt.Fprintln(os.Stderr, "error: MARKETGATE_UPSTREAM_CREDS_PASSWORD must be set")
		os.Exit(1)
	}

	data, err := crypto.EncryptCredentials(auth, password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(*out, data, 0o600); err != nil {
		fmt.Fprintf(os.Stderr, "error: writing %s: %v\n", *out, err)
		os.Exit(1)
	}

	fmt.Printf("wrote encrypted credentials to %s\n", *out)
}
