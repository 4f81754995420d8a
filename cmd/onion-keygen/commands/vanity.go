package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cvsouth/onion-keygen/vanity"
)

func newVanityCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vanity <prefix>",
		Short: "Search for a key whose onion address starts with prefix",
		Long: `Search for a key whose onion address starts with prefix.

Each extra character multiplies the expected work by 32. The search stops
on the first match, on interrupt, or after --max-attempts keys.`,
		Args: cobra.ExactArgs(1),
		RunE: a.runVanity,
	}
	cmd.Flags().Int("workers", 0, "parallel workers (0 = one per CPU)")
	cmd.Flags().Uint64("max-attempts", 0, "give up after this many keys (0 = no limit)")
	cmd.Flags().Duration("progress", DefaultConfig().Progress, "progress log interval (0 disables)")
	cmd.Flags().String("out", "", "write Tor key files (hostname, hs_ed25519_*) into this directory")
	return cmd
}

func (a *app) runVanity(cmd *cobra.Command, args []string) error {
	prefix := strings.ToLower(args[0])
	if err := vanity.ValidatePrefix(prefix); err != nil {
		return err
	}

	res, err := vanity.Search(cmd.Context(), prefix, vanity.Options{
		Workers:          a.config.Workers,
		Logger:           a.logger,
		ProgressInterval: a.config.Progress,
		MaxAttempts:      a.config.MaxAttempts,
	})
	if err != nil {
		return fmt.Errorf("vanity search for %q: %w", prefix, err)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "attempts:   %d (%s)\n", res.Attempts, res.Elapsed.Round(time.Millisecond))
	return a.emitKeyPair(w, res.KeyPair)
}
