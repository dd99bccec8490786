package main

import (
	"fmt"
	"os"

	"github.com/sensiblebit/x509kit/internal"
	"github.com/spf13/cobra"
)

var (
	exportFormat   string
	exportPassword string
	exportKeyPath  string
	exportOutFile  string
)

var exportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Convert a certificate container to another format",
	Long: `Read a certificate, its chain and optional key from any supported container
(PEM, DER, BER, PKCS#7, PKCS#12, JKS) and write them in another format.

PKCS#12 and JKS output need a private key, embedded in the input or given
with --key.`,
	Example: `  x509kit export store.p12 --format pem -p secret
  x509kit export fullchain.pem --key key.pem --format pkcs12 --password changeit -o bundle.p12
  x509kit export cert.pem --format der -o cert.der`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "pem", "Output format: pem, der, pkcs7, pkcs12, or jks")
	exportCmd.Flags().StringVar(&exportPassword, "password", "changeit", "Password for PKCS#12 and JKS output")
	exportCmd.Flags().StringVar(&exportKeyPath, "key", "", "Private key file to include")
	exportCmd.Flags().StringVarP(&exportOutFile, "out", "o", "", "Output file (default: stdout)")

	registerCompletion(exportCmd, completionInput{"format", fixedCompletion("pem", "der", "pkcs7", "pkcs12", "jks")})
	registerCompletion(exportCmd, completionInput{"key", fileCompletion})
}

func runExport(cmd *cobra.Command, args []string) error {
	passwords, err := loadPasswords()
	if err != nil {
		return err
	}

	contents, err := internal.LoadContainerFile(args[0], passwords)
	if err != nil {
		return err
	}
	if exportKeyPath != "" {
		contents.Key, err = internal.LoadKeyFile(exportKeyPath, passwords)
		if err != nil {
			return err
		}
	}
	if contents.Key != nil {
		defer contents.Key.Destroy()
	}

	output, err := internal.EncodeContainer(contents, exportFormat, exportPassword)
	if err != nil {
		return err
	}

	if exportOutFile == "" {
		_, err := cmd.OutOrStdout().Write(output)
		return err
	}
	perm := os.FileMode(0644)
	if contents.Key != nil && exportFormat != "der" && exportFormat != "pkcs7" {
		perm = 0600
	}
	if err := os.WriteFile(exportOutFile, output, perm); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Wrote %s (%d bytes)\n", exportOutFile, len(output))
	return nil
}
