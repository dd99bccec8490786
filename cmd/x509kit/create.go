package main

import (
	"fmt"
	"os"

	"github.com/sensiblebit/x509kit/internal"
	"github.com/spf13/cobra"
)

var (
	createCN          string
	createCSR         string
	createCACert      string
	createCAKey       string
	createProfileFile string
	createProfile     string
	createAlgorithm   string
	createCurve       string
	createOutPath     string
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a self-signed or CA-signed certificate",
	Long: `Create a certificate.

With only --cn, a new key is generated and the certificate is self-signed.
With --ca-cert and --ca-key, the certificate is signed by that CA, either for a
new key (--cn) or for the key and subject of a CSR (--csr). A profile sets the
subject, validity, serial, CA flag and key usages.`,
	Example: `  x509kit create --cn "Example Root CA" --profile-file profiles.yaml --profile root -o ./ca
  x509kit create --csr request.csr --ca-cert ca/cert.pem --ca-key ca/key.pem -o ./issued
  x509kit create --cn test.local --algorithm ed25519`,
	Args: cobra.NoArgs,
	RunE: runCreate,
}

func init() {
	createCmd.Flags().StringVar(&createCN, "cn", "", "Common Name for a certificate with a new key")
	createCmd.Flags().StringVar(&createCSR, "csr", "", "CSR to issue a certificate for")
	createCmd.Flags().StringVar(&createCACert, "ca-cert", "", "Issuing CA certificate")
	createCmd.Flags().StringVar(&createCAKey, "ca-key", "", "Issuing CA private key")
	createCmd.Flags().StringVar(&createProfileFile, "profile-file", "", "YAML file of certificate profiles")
	createCmd.Flags().StringVar(&createProfile, "profile", "", "Profile to apply from --profile-file")
	createCmd.Flags().StringVarP(&createAlgorithm, "algorithm", "a", "ecdsa", "Key algorithm for a generated key: ecdsa or ed25519")
	createCmd.Flags().StringVar(&createCurve, "curve", "P-256", "ECDSA curve: P-256 or P-384")
	createCmd.Flags().StringVarP(&createOutPath, "out", "o", "", "Output directory (default: print to stdout)")
	createCmd.MarkFlagsMutuallyExclusive("cn", "csr")
	createCmd.MarkFlagsRequiredTogether("ca-cert", "ca-key")

	registerCompletion(createCmd, completionInput{"algorithm", algorithmCompletion})
	registerCompletion(createCmd, completionInput{"curve", curveCompletion})
	registerCompletion(createCmd, completionInput{"out", directoryCompletion})
}

func runCreate(cmd *cobra.Command, args []string) error {
	passwords, err := loadPasswords()
	if err != nil {
		return err
	}
	profile, err := loadProfile(createProfileFile, createProfile)
	if err != nil {
		return err
	}

	result, err := internal.IssueCertificate(internal.IssueOptions{
		CN:         createCN,
		CSRPath:    createCSR,
		CACertPath: createCACert,
		CAKeyPath:  createCAKey,
		Algorithm:  createAlgorithm,
		Curve:      createCurve,
		Profile:    profile,
		OutPath:    createOutPath,
		Passwords:  passwords,
	})
	if err != nil {
		return err
	}

	if createOutPath == "" {
		fmt.Fprint(cmd.OutOrStdout(), result.CertPEM)
		fmt.Fprint(cmd.OutOrStdout(), result.KeyPEM)
		return nil
	}
	fmt.Fprintf(os.Stderr, "Certificate: %s\n", result.CertFile)
	if result.KeyFile != "" {
		fmt.Fprintf(os.Stderr, "Private key: %s\n", result.KeyFile)
	}
	return nil
}
