package main

import (
	"fmt"
	"os"

	"github.com/sensiblebit/x509kit/internal"
	"github.com/spf13/cobra"
)

var (
	keygenAlgorithm  string
	keygenCurve      string
	keygenOutPath    string
	keygenCN         string
	keygenSelfSigned bool
	keygenDays       int
	keygenJWK        bool
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate keys and optionally a CSR or self-signed certificate",
	Long: `Generate a new ECDSA or Ed25519 key pair and, when --cn is given, a Certificate
Signing Request or (with --self-signed) a self-signed certificate.

Output is printed to stdout by default (PEM format). Use -o to write files to a directory instead.`,
	Example: `  x509kit keygen
  x509kit keygen > key.pem
  x509kit keygen --algorithm ed25519 -o ./keys --jwk
  x509kit keygen --curve P-384 --cn example.com
  x509kit keygen --cn dev.local --self-signed --days 30 -o ./dev`,
	Args: cobra.NoArgs,
	RunE: runKeygen,
}

func init() {
	keygenCmd.Flags().StringVarP(&keygenAlgorithm, "algorithm", "a", "ecdsa", "Key algorithm: ecdsa or ed25519")
	keygenCmd.Flags().StringVar(&keygenCurve, "curve", "P-256", "ECDSA curve: P-256 or P-384")
	keygenCmd.Flags().StringVarP(&keygenOutPath, "out-path", "o", "", "Output directory (default: print to stdout)")
	keygenCmd.Flags().StringVar(&keygenCN, "cn", "", "Common Name for CSR or certificate generation")
	keygenCmd.Flags().BoolVar(&keygenSelfSigned, "self-signed", false, "Create a self-signed certificate instead of a CSR")
	keygenCmd.Flags().IntVar(&keygenDays, "days", 365, "Validity of the self-signed certificate in days")
	keygenCmd.Flags().BoolVar(&keygenJWK, "jwk", false, "Also emit the public key as a JWK")

	registerCompletion(keygenCmd, completionInput{"algorithm", algorithmCompletion})
	registerCompletion(keygenCmd, completionInput{"curve", curveCompletion})
	registerCompletion(keygenCmd, completionInput{"out-path", directoryCompletion})
}

func runKeygen(cmd *cobra.Command, args []string) error {
	result, err := internal.GenerateKeyFiles(internal.KeygenOptions{
		Algorithm:    keygenAlgorithm,
		Curve:        keygenCurve,
		OutPath:      keygenOutPath,
		CN:           keygenCN,
		SelfSigned:   keygenSelfSigned,
		ValidityDays: keygenDays,
		JWK:          keygenJWK,
	})
	if err != nil {
		return fmt.Errorf("generating key: %w", err)
	}

	if keygenOutPath == "" {
		out := cmd.OutOrStdout()
		for _, s := range []string{result.KeyPEM, result.PubPEM, result.CSRPEM, result.CertPEM, result.JWK} {
			fmt.Fprint(out, s)
		}
		return nil
	}

	fmt.Fprintf(os.Stderr, "Private key: %s\n", result.KeyFile)
	fmt.Fprintf(os.Stderr, "Public key:  %s\n", result.PubFile)
	if result.CSRFile != "" {
		fmt.Fprintf(os.Stderr, "CSR:         %s\n", result.CSRFile)
	}
	if result.CertFile != "" {
		fmt.Fprintf(os.Stderr, "Certificate: %s\n", result.CertFile)
	}
	if result.JWKFile != "" {
		fmt.Fprintf(os.Stderr, "JWK:         %s\n", result.JWKFile)
	}
	return nil
}
