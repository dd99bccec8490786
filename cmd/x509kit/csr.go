package main

import (
	"fmt"
	"os"

	"github.com/sensiblebit/x509kit/internal"
	"github.com/spf13/cobra"
)

var (
	csrCN          string
	csrCertPath    string
	csrFromCSR     string
	csrKeyPath     string
	csrAlgorithm   string
	csrCurve       string
	csrProfileFile string
	csrProfile     string
	csrOutPath     string
)

var csrCmd = &cobra.Command{
	Use:   "csr",
	Short: "Generate a Certificate Signing Request",
	Long: `Generate a CSR for a common name, or copy the subject of an existing
certificate or CSR.

A new key is generated unless --key is provided. The CSR is written to csr.pem
and the key (if generated) to key.pem in the output directory.`,
	Example: `  x509kit csr --cn www.example.com
  x509kit csr --cn www.example.com --profile-file profiles.yaml --profile web
  x509kit csr --cert existing.pem --algorithm ed25519
  x509kit csr --from-csr old.csr --key mykey.pem`,
	Args: cobra.NoArgs,
	RunE: runCSR,
}

func init() {
	csrCmd.Flags().StringVar(&csrCN, "cn", "", "Common Name for the request subject")
	csrCmd.Flags().StringVar(&csrCertPath, "cert", "", "Certificate whose subject the request copies")
	csrCmd.Flags().StringVar(&csrFromCSR, "from-csr", "", "CSR whose subject the request copies")
	csrCmd.Flags().StringVar(&csrKeyPath, "key", "", "Existing private key file")
	csrCmd.Flags().StringVarP(&csrAlgorithm, "algorithm", "a", "ecdsa", "Key algorithm for a generated key: ecdsa or ed25519")
	csrCmd.Flags().StringVar(&csrCurve, "curve", "P-256", "ECDSA curve: P-256 or P-384")
	csrCmd.Flags().StringVar(&csrProfileFile, "profile-file", "", "YAML file of certificate profiles")
	csrCmd.Flags().StringVar(&csrProfile, "profile", "", "Profile to apply from --profile-file")
	csrCmd.Flags().StringVarP(&csrOutPath, "out", "o", ".", "Output directory for generated files")
	csrCmd.MarkFlagsMutuallyExclusive("cn", "cert", "from-csr")

	registerCompletion(csrCmd, completionInput{"algorithm", algorithmCompletion})
	registerCompletion(csrCmd, completionInput{"curve", curveCompletion})
	registerCompletion(csrCmd, completionInput{"out", directoryCompletion})
}

func runCSR(cmd *cobra.Command, args []string) error {
	passwords, err := loadPasswords()
	if err != nil {
		return err
	}
	profile, err := loadProfile(csrProfileFile, csrProfile)
	if err != nil {
		return err
	}

	result, err := internal.GenerateCSRFiles(internal.CSROptions{
		CN:        csrCN,
		CertPath:  csrCertPath,
		CSRPath:   csrFromCSR,
		KeyPath:   csrKeyPath,
		Algorithm: csrAlgorithm,
		Curve:     csrCurve,
		Profile:   profile,
		OutPath:   csrOutPath,
		Passwords: passwords,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "CSR: %s\n", result.CSRFile)
	if result.KeyFile != "" {
		fmt.Fprintf(os.Stderr, "Private key: %s\n", result.KeyFile)
	}
	return nil
}
