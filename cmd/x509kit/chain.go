package main

import (
	"fmt"
	"os"

	"github.com/sensiblebit/x509kit"
	"github.com/sensiblebit/x509kit/internal"
	"github.com/sensiblebit/x509kit/internal/certstore"
	"github.com/spf13/cobra"
)

var (
	chainMozilla  bool
	chainFull     bool
	chainRequire  bool
	chainOutFile  string
	chainKeyPath  string
	chainFormats  internal.BundleFormats
	chainOutDir   string
	chainBundleAs string
)

var chainCmd = &cobra.Command{
	Use:   "chain <file> [issuer-file...]",
	Short: "Resolve and print a certificate's issuer chain",
	Long: `Resolve the issuer chain of the first certificate in <file> by signature,
using the other certificates in <file>, any extra issuer files and, with
--mozilla, the embedded Mozilla roots.

The chain (leaf then intermediates) is printed as PEM. With --out-dir and a
private key, the full bundle set (cert.pem, chain.pem, fullchain.pem, key.pem
and the selected container formats) is written instead.`,
	Example: `  x509kit chain cert.pem intermediate.pem root.pem
  x509kit chain fullchain.pem --mozilla --full
  x509kit chain cert.pem ca.pem --key key.pem --out-dir ./bundle --p12`,
	Args: cobra.MinimumNArgs(1),
	RunE: runChain,
}

func init() {
	chainCmd.Flags().BoolVar(&chainMozilla, "mozilla", false, "Use the embedded Mozilla roots as chain candidates")
	chainCmd.Flags().BoolVar(&chainFull, "full", false, "Include the root in the printed chain")
	chainCmd.Flags().BoolVar(&chainRequire, "require-root", false, "Fail when the chain does not end at a root")
	chainCmd.Flags().StringVarP(&chainOutFile, "out", "o", "", "Output file (default: stdout)")
	chainCmd.Flags().StringVar(&chainKeyPath, "key", "", "Private key for bundle export")
	chainCmd.Flags().StringVar(&chainOutDir, "out-dir", "", "Write a bundle folder instead of printing the chain")
	chainCmd.Flags().StringVar(&chainBundleAs, "name", "", "Bundle folder name (default: leaf common name)")
	chainCmd.Flags().BoolVar(&chainFormats.PKCS7, "p7b", false, "Also write bundle.p7b")
	chainCmd.Flags().BoolVar(&chainFormats.PKCS12, "p12", false, "Also write bundle.p12")
	chainCmd.Flags().BoolVar(&chainFormats.JKS, "jks", false, "Also write bundle.jks")
	chainCmd.Flags().StringVar(&chainFormats.Password, "export-password", "changeit", "Password for PKCS#12 and JKS output")

	registerCompletion(chainCmd, completionInput{"key", fileCompletion})
	registerCompletion(chainCmd, completionInput{"out-dir", directoryCompletion})
}

func runChain(cmd *cobra.Command, args []string) error {
	passwords, err := loadPasswords()
	if err != nil {
		return err
	}

	contents, err := internal.LoadContainerFile(args[0], passwords)
	if err != nil {
		return err
	}
	candidates := contents.ExtraCerts
	for _, path := range args[1:] {
		extra, err := internal.LoadContainerFile(path, passwords)
		if err != nil {
			return err
		}
		candidates = append(candidates, extra.Leaf)
		candidates = append(candidates, extra.ExtraCerts...)
	}

	opts := x509kit.DefaultBundleOptions()
	opts.Candidates = candidates
	opts.MozillaRoots = chainMozilla
	bundle, err := x509kit.Bundle(contents.Leaf, opts)
	if err != nil {
		return fmt.Errorf("resolving chain: %w", err)
	}
	for _, w := range bundle.Warnings {
		fmt.Fprintf(os.Stderr, "WARNING: %s\n", w)
	}
	if chainRequire && bundle.Root == nil {
		return fmt.Errorf("chain for %s does not end at a root", bundle.Leaf.Subject())
	}

	if chainOutDir != "" {
		return writeChainBundle(cmd, bundle, contents.Key, passwords)
	}

	var out []byte
	for _, c := range bundle.Chain() {
		if c == bundle.Root && !chainFull {
			break
		}
		out = append(out, c.EncodePEM()...)
	}
	if chainOutFile != "" {
		if err := os.WriteFile(chainOutFile, out, 0644); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Wrote %s (%d certificates)\n", chainOutFile, len(bundle.Chain()))
		return nil
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}

func writeChainBundle(cmd *cobra.Command, bundle *x509kit.BundleResult, key *x509kit.KeyPair, passwords []string) error {
	if chainKeyPath != "" {
		var err error
		key, err = internal.LoadKeyFile(chainKeyPath, passwords)
		if err != nil {
			return err
		}
	}
	if key == nil {
		return fmt.Errorf("--out-dir needs a private key (use --key)")
	}
	defer key.Destroy()

	name := chainBundleAs
	if name == "" {
		name = certstore.FormatCN(bundle.Leaf)
	}
	dir, err := internal.WriteBundle(chainOutDir, name, bundle, key, chainFormats)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Wrote bundle to %s\n", dir)
	return nil
}
