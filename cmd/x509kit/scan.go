package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/sensiblebit/x509kit"
	"github.com/sensiblebit/x509kit/internal"
	"github.com/sensiblebit/x509kit/internal/certstore"
	"github.com/spf13/cobra"
)

var (
	scanLoadDB         string
	scanSaveDB         string
	scanExportDir      string
	scanProfileFile    string
	scanMozilla        bool
	scanIncludeExpired bool
	scanDuplicates     bool
	scanForce          bool
	scanFormat         string
	scanFormats        internal.BundleFormats
)

var scanCmd = &cobra.Command{
	Use:   "scan <path>",
	Short: "Scan and catalog certificates and keys",
	Long: `Scan a file, directory or stdin ("-") for certificates and keys, including
inside ZIP and TAR archives, PKCS#12 files and Java keystores. Prints a
summary of what was found.

The catalogue can be saved to and loaded from a SQLite database. With
--export-dir, one bundle folder is written per certificate that has a
matching key.`,
	Example: `  x509kit scan ./certs
  x509kit scan ./certs --save-db catalogue.db
  x509kit scan ./more --load-db catalogue.db --save-db catalogue.db
  x509kit scan ./certs --export-dir ./bundles --profile-file bundles.yaml --p12`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringVar(&scanLoadDB, "load-db", "", "Load a previously saved catalogue before scanning")
	scanCmd.Flags().StringVar(&scanSaveDB, "save-db", "", "Save the catalogue to a SQLite database")
	scanCmd.Flags().StringVar(&scanExportDir, "export-dir", "", "Export bundles to this directory")
	scanCmd.Flags().StringVar(&scanProfileFile, "profile-file", "", "YAML profiles mapping common names to bundle names")
	scanCmd.Flags().BoolVar(&scanMozilla, "mozilla", false, "Use the embedded Mozilla roots for chain resolution")
	scanCmd.Flags().BoolVar(&scanIncludeExpired, "include-expired", false, "Keep expired certificates")
	scanCmd.Flags().BoolVar(&scanDuplicates, "duplicates", false, "Export all certificates per bundle, not just the newest")
	scanCmd.Flags().BoolVarP(&scanForce, "force", "f", false, "Export bundles whose chain does not reach a root")
	scanCmd.Flags().StringVar(&scanFormat, "format", "auto", "Summary format: auto, text, or json")
	scanCmd.Flags().BoolVar(&scanFormats.PKCS7, "p7b", false, "Also write bundle.p7b")
	scanCmd.Flags().BoolVar(&scanFormats.PKCS12, "p12", false, "Also write bundle.p12")
	scanCmd.Flags().BoolVar(&scanFormats.JKS, "jks", false, "Also write bundle.jks")
	scanCmd.Flags().StringVar(&scanFormats.Password, "export-password", "changeit", "Password for PKCS#12 and JKS output")

	registerCompletion(scanCmd, completionInput{"export-dir", directoryCompletion})
	registerCompletion(scanCmd, completionInput{"format", formatCompletion})
}

func runScan(cmd *cobra.Command, args []string) error {
	passwords, err := loadPasswords()
	if err != nil {
		return err
	}

	store := certstore.NewMemStore()
	if scanLoadDB != "" {
		if err := certstore.LoadFromSQLite(store, scanLoadDB); err != nil {
			return err
		}
	}

	cfg := &internal.ScanConfig{
		Store:          store,
		Passwords:      passwords,
		IncludeExpired: scanIncludeExpired,
	}
	if err := internal.ScanPath(args[0], cfg); err != nil {
		return err
	}
	store.DumpDebug()

	if scanSaveDB != "" {
		if err := certstore.SaveToSQLite(store, scanSaveDB); err != nil {
			return err
		}
	}

	if scanExportDir != "" {
		var profiles []internal.Profile
		if scanProfileFile != "" {
			profiles, err = internal.LoadProfiles(scanProfileFile)
			if err != nil {
				slog.Warn("failed to load profiles", "error", err)
			}
		}
		if err := os.MkdirAll(scanExportDir, 0755); err != nil {
			return fmt.Errorf("creating output directory %s: %w", scanExportDir, err)
		}
		n, err := internal.ExportBundles(store, internal.ExportOptions{
			OutDir:       scanExportDir,
			Profiles:     profiles,
			Duplicates:   scanDuplicates,
			MozillaRoots: scanMozilla,
			RequireRoot:  !scanForce,
			Formats:      scanFormats,
		})
		if err != nil {
			return fmt.Errorf("exporting bundles: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Exported %d bundle(s) to %s\n", n, scanExportDir)
	}

	var extra []*x509kit.CapturedCertificate
	if scanMozilla {
		extra, err = x509kit.MozillaRoots()
		if err != nil {
			return err
		}
	}
	summary := store.ScanSummary(certstore.ScanSummaryInput{ExtraIssuers: extra})

	switch outputFormat(scanFormat) {
	case "json":
		data, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
	case "text":
		printScanSummary(cmd, summary)
	default:
		return fmt.Errorf("unsupported output format %q (use text or json)", scanFormat)
	}
	return nil
}

func printScanSummary(cmd *cobra.Command, summary certstore.ScanSummary) {
	out := cmd.OutOrStdout()
	total := summary.Roots + summary.Intermediates + summary.Leaves
	fmt.Fprintf(out, "\nFound %d certificate(s) and %d key(s)\n", total, summary.Keys)
	if total > 0 {
		fmt.Fprintf(out, "  Roots:          %d%s\n", summary.Roots,
			internal.CertAnnotation(summary.ExpiredRoots, 0))
		fmt.Fprintf(out, "  Intermediates:  %d%s\n", summary.Intermediates,
			internal.CertAnnotation(summary.ExpiredIntermediates, summary.UnchainedIntermediates))
		fmt.Fprintf(out, "  Leaves:         %d%s\n", summary.Leaves,
			internal.CertAnnotation(summary.ExpiredLeaves, summary.UnchainedLeaves))
	}
	if summary.Keys > 0 {
		fmt.Fprintf(out, "  Key-cert pairs: %d\n", summary.Matched)
	}
}
