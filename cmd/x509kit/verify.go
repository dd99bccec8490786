package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sensiblebit/x509kit/internal"
	"github.com/spf13/cobra"
)

var (
	verifyKeyPath  string
	verifyChain    bool
	verifyMozilla  bool
	verifyExpiry   string
	verifyFormat   string
	verifyExtraCAs []string
)

var verifyCmd = &cobra.Command{
	Use:   "verify <file>",
	Short: "Verify certificate chain, key match, or expiry",
	Long: `Verify a certificate's validity window and, optionally, that a key matches it,
that its issuer chain verifies by signature, or that it does not expire within
a given duration.

Certificates bundled with the input (PEM, PKCS#7, PKCS#12, JKS) and any
--ca files are candidates for the chain.`,
	Example: `  x509kit verify cert.pem --key key.pem
  x509kit verify fullchain.pem --chain
  x509kit verify cert.pem --chain --ca intermediate.pem --mozilla
  x509kit verify cert.pem --expiry 30d`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().StringVar(&verifyKeyPath, "key", "", "Private key file to check against the certificate")
	verifyCmd.Flags().BoolVar(&verifyChain, "chain", false, "Verify the certificate chain by signature")
	verifyCmd.Flags().BoolVar(&verifyMozilla, "mozilla", false, "Use the embedded Mozilla roots as chain candidates")
	verifyCmd.Flags().StringSliceVar(&verifyExtraCAs, "ca", nil, "Additional issuer certificate files")
	verifyCmd.Flags().StringVarP(&verifyExpiry, "expiry", "e", "", "Check if cert expires within duration (e.g., 30d, 720h)")
	verifyCmd.Flags().StringVar(&verifyFormat, "format", "auto", "Output format: auto, text, or json")

	registerCompletion(verifyCmd, completionInput{"key", fileCompletion})
	registerCompletion(verifyCmd, completionInput{"ca", fileCompletion})
	registerCompletion(verifyCmd, completionInput{"format", formatCompletion})
}

// parseDuration extends time.ParseDuration to support a "d" suffix for days.
func parseDuration(s string) (time.Duration, error) {
	if strings.HasSuffix(s, "d") {
		trimmed := strings.TrimSuffix(s, "d")
		days, err := strconv.Atoi(trimmed)
		if err != nil {
			return 0, fmt.Errorf("invalid day duration %q: %w", s, err)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}

func runVerify(cmd *cobra.Command, args []string) error {
	var expiryDuration time.Duration
	if verifyExpiry != "" {
		var err error
		expiryDuration, err = parseDuration(verifyExpiry)
		if err != nil {
			return fmt.Errorf("invalid --expiry value: %w", err)
		}
	}

	passwords, err := loadPasswords()
	if err != nil {
		return err
	}

	contents, err := internal.LoadContainerFile(args[0], passwords)
	if err != nil {
		return err
	}

	input := &internal.VerifyInput{
		Cert:           contents.Leaf,
		Key:            contents.Key,
		ExtraCerts:     contents.ExtraCerts,
		CheckChain:     verifyChain,
		MozillaRoots:   verifyMozilla,
		ExpiryDuration: expiryDuration,
	}
	if verifyKeyPath != "" {
		input.Key, err = internal.LoadKeyFile(verifyKeyPath, passwords)
		if err != nil {
			return err
		}
	}
	input.CheckKeyMatch = input.Key != nil
	for _, path := range verifyExtraCAs {
		extra, err := internal.LoadContainerFile(path, passwords)
		if err != nil {
			return err
		}
		input.ExtraCerts = append(input.ExtraCerts, extra.Leaf)
		input.ExtraCerts = append(input.ExtraCerts, extra.ExtraCerts...)
	}

	result, err := internal.VerifyCert(input)
	if err != nil {
		return err
	}

	switch outputFormat(verifyFormat) {
	case "json":
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
	case "text":
		fmt.Fprint(cmd.OutOrStdout(), internal.FormatVerifyResult(result))
	default:
		return fmt.Errorf("unsupported output format %q (use text or json)", verifyFormat)
	}

	if len(result.Errors) > 0 {
		return errors.New("verification failed")
	}
	return nil
}
