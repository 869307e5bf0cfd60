// Package main generates a development CA and a server certificate for the
// emulator, writing them under an output directory (default "certs").
//
// Start the emulator with -tls-cert certs/server.crt -tls-key certs/server.key
// and point the client at the CA with --ca certs/ca.crt.
package main

import (
	"crypto/x509"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/atinyakov/doafavor/internal/certgen"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("certgen", flag.ContinueOnError)
	dir := fs.String("dir", "certs", "output directory")
	hosts := fs.String("hosts", "localhost,127.0.0.1,::1", "comma-separated server DNS names and IPs")
	reuse := fs.Bool("reuse-ca", false, "sign with an existing dir/ca.crt and dir/ca.key")
	validFor := fs.Duration("valid-for", 365*24*time.Hour, "server certificate lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var (
		caCert *x509.Certificate
		caKey  any
	)
	if *reuse {
		cert, key, err := certgen.LoadCACredentials(filepath.Join(*dir, "ca.crt"), filepath.Join(*dir, "ca.key"))
		if err != nil {
			return err
		}
		caCert, caKey = cert, key
	} else {
		cert, key, err := certgen.GenerateCA("doafavor development CA", 10*365*24*time.Hour)
		if err != nil {
			return err
		}
		keyPEM, err := certgen.EncodeKey(key)
		if err != nil {
			return err
		}
		if err := certgen.WritePair(*dir, "ca", certgen.EncodeCertificate(cert.Raw), keyPEM); err != nil {
			return err
		}
		caCert, caKey = cert, key
	}

	var names []string
	for _, h := range strings.Split(*hosts, ",") {
		if h = strings.TrimSpace(h); h != "" {
			names = append(names, h)
		}
	}
	certPEM, keyPEM, err := certgen.GenerateServerCertificate(names, caCert, caKey, *validFor)
	if err != nil {
		return err
	}
	if err := certgen.WritePair(*dir, "server", certPEM, keyPEM); err != nil {
		return err
	}

	fmt.Fprintf(out, "✅ Certificates generated into %s\n", *dir)
	return nil
}
