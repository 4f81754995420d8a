package commands

import (
	"encoding/hex"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/cvsouth/onion-keygen/hskey"
)

func newGenerateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "generate",
		Aliases: []string{"gen"},
		Short:   "Generate a key pair, or derive one from --seed, and print its onion address",
		Args:    cobra.NoArgs,
		RunE:    a.runGenerate,
	}
	cmd.Flags().String("seed", "", "hex-encoded 32-byte Ed25519 seed (or 64-byte private key) to derive from")
	cmd.Flags().String("out", "", "write Tor key files (hostname, hs_ed25519_*) into this directory")
	return cmd
}

func (a *app) runGenerate(cmd *cobra.Command, _ []string) error {
	source := hskey.Generated()
	if a.config.Seed != "" {
		seed, err := hex.DecodeString(a.config.Seed)
		if err != nil {
			return fmt.Errorf("decode --seed: %w", err)
		}
		source = hskey.Provided(seed)
	}

	kp, err := source.Resolve(nil)
	if err != nil {
		return err
	}
	if err := kp.CheckAddress(); err != nil {
		return err
	}
	a.logger.Debug("key pair ready", "public_key", kp.Public.Hex(), "from_seed", a.config.Seed != "")

	return a.emitKeyPair(cmd.OutOrStdout(), kp)
}

// emitKeyPair prints the address and either saves the key files or prints
// the secret so the generated key is never lost.
func (a *app) emitKeyPair(w io.Writer, kp *hskey.KeyPair) error {
	fmt.Fprintf(w, "address:    %s\n", kp.Address())
	fmt.Fprintf(w, "public key: %s\n", kp.Public.Hex())

	if a.config.Out != "" {
		dir := &hskey.Dir{Path: a.config.Out}
		if err := dir.Save(kp); err != nil {
			return err
		}
		a.logger.Info("saved key files", "dir", a.config.Out)
		fmt.Fprintf(w, "saved to:   %s\n", a.config.Out)
		return nil
	}

	if kp.Seed != nil {
		fmt.Fprintf(w, "seed:       %s\n", hex.EncodeToString(kp.Seed))
	} else {
		fmt.Fprintf(w, "secret key: %s\n", hex.EncodeToString(kp.Expanded[:]))
	}
	return nil
}
