package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/sensiblebit/x509kit/internal"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	logLevel     string
	logFormat    string
	passwordList []string
	passwordFile string
)

var rootCmd = &cobra.Command{
	Use:   "x509kit",
	Short: "X.509 certificate toolkit",
	Long: `Build, sign, verify and inspect X.509 certificates and requests, catalogue
certificates and keys found on disk, and export organized bundles.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		switch logFormat {
		case "text", "json":
		default:
			return fmt.Errorf("unsupported --log-format %q (use text or json)", logFormat)
		}
		internal.SetupLogger(logLevel, logFormat)
		return nil
	},
}

// normalizeFlagName lets --save_db and --save-db name the same flag.
func normalizeFlagName(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

func init() {
	rootCmd.SetGlobalNormalizationFunc(normalizeFlagName)
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format: text or json")
	rootCmd.PersistentFlags().StringSliceVarP(&passwordList, "passwords", "p", nil, "Comma-separated passwords for encrypted keys and containers")
	rootCmd.PersistentFlags().StringVar(&passwordFile, "password-file", "", "File containing passwords, one per line")

	registerCompletion(rootCmd, completionInput{"log-level", fixedCompletion("debug", "info", "warn", "error")})
	registerCompletion(rootCmd, completionInput{"log-format", fixedCompletion("text", "json")})
	registerCompletion(rootCmd, completionInput{"password-file", fileCompletion})

	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(chainCmd)
	rootCmd.AddCommand(keygenCmd)
	rootCmd.AddCommand(csrCmd)
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(exportCmd)
}

// loadPasswords merges the defaults with --passwords and --password-file.
func loadPasswords() ([]string, error) {
	passwords, err := internal.ProcessPasswords(passwordList, passwordFile)
	if err != nil {
		return nil, fmt.Errorf("loading passwords: %w", err)
	}
	return passwords, nil
}

// outputFormat resolves "auto" to text on a terminal and json otherwise.
func outputFormat(format string) string {
	if format != "auto" {
		return format
	}
	if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return "text"
	}
	return "json"
}

// loadProfile returns the named profile from path, or nil when no profile
// file was given.
func loadProfile(path, name string) (*internal.Profile, error) {
	if path == "" {
		if name != "" {
			return nil, fmt.Errorf("--profile requires --profile-file")
		}
		return nil, nil
	}
	profiles, err := internal.LoadProfiles(path)
	if err != nil {
		return nil, err
	}
	if name == "" {
		if len(profiles) == 1 {
			return &profiles[0], nil
		}
		return nil, fmt.Errorf("%s defines %d profiles; choose one with --profile", path, len(profiles))
	}
	return internal.FindProfile(profiles, name)
}
