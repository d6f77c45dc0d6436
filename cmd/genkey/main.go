// genkey generates an RSA key pair for the identity service and writes the
// PEM encoded halves to files. The private key is what SIGNING_KEY_FILE
// points at; the public key can be provisioned statically to gateways.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/239fd/wmsProjectBackend-sub001/internal/keys"
)

func main() {
	var privateOut, publicOut string

	fs := pflag.NewFlagSet("genkey", pflag.ExitOnError)
	fs.StringVarP(&privateOut, "private", "p", "signing.key", "Output file for the private key PEM")
	fs.StringVarP(&publicOut, "public", "P", "signing.pub", "Output file for the public key PEM")
	_ = fs.Parse(os.Args[1:])

	manager, err := keys.Generate()
	if err != nil {
		fmt.Fprintf(os.Stderr, "can't generate key pair: %v\n", err)
		os.Exit(1)
	}

	privatePEM, err := keys.EncodePrivateKey(manager.Signer())
	if err != nil {
		fmt.Fprintf(os.Stderr, "can't encode private key: %v\n", err)
		os.Exit(1)
	}
	publicPEM, err := keys.EncodePublicKey(&manager.Signer().PublicKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "can't encode public key: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(privateOut, privatePEM, 0o600); err != nil {
		fmt.Fprintf(os.Stderr, "can't write %s: %v\n", privateOut, err)
		os.Exit(1)
	}
	if err := os.WriteFile(publicOut, publicPEM, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "can't write %s: %v\n", publicOut, err)
		os.Exit(1)
	}

	fmt.Printf("wrote %s and %s\n", privateOut, publicOut)
}
