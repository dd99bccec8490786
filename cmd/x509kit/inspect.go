package main

import (
	"fmt"

	"github.com/sensiblebit/x509kit/internal"
	"github.com/spf13/cobra"
)

var inspectFormat string

var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Display certificate, key, or CSR information",
	Long: `Show detailed information about certificates, private keys, or CSRs in a file.

The openssl format prints certificates the way "openssl x509 -text" does.`,
	Example: `  x509kit inspect cert.pem
  x509kit inspect key.pem --format json
  x509kit inspect store.p12 -p secret
  x509kit inspect cert.der --format openssl`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().StringVar(&inspectFormat, "format", "auto", "Output format: auto, text, json, or openssl")
	registerCompletion(inspectCmd, completionInput{"format", fixedCompletion("auto", "text", "json", "openssl")})
}

func runInspect(cmd *cobra.Command, args []string) error {
	passwords, err := loadPasswords()
	if err != nil {
		return err
	}

	results, err := internal.InspectFile(args[0], passwords)
	if err != nil {
		return err
	}

	output, err := internal.FormatInspectResults(results, outputFormat(inspectFormat))
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), output)
	return nil
}
