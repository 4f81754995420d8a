package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cvsouth/onion-keygen/hskey"
)

func newShowCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Load a Tor key directory, check it and print its address",
		Args:  cobra.NoArgs,
		RunE:  a.runShow,
	}
	cmd.Flags().String("dir", "", "HiddenServiceDir containing hs_ed25519_secret_key")
	return cmd
}

func (a *app) runShow(cmd *cobra.Command, _ []string) error {
	if a.config.Dir == "" {
		return errors.New("--dir is required")
	}

	kp, err := (&hskey.Dir{Path: a.config.Dir}).Load()
	if err != nil {
		return fmt.Errorf("load %s: %w", a.config.Dir, err)
	}
	if err := kp.CheckAddress(); err != nil {
		return err
	}
	a.logger.Debug("key directory loaded", "dir", a.config.Dir, "public_key", kp.Public.Hex())

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "address:    %s\n", kp.Address())
	fmt.Fprintf(w, "public key: %s\n", kp.Public.Hex())
	return nil
}
