package commands

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cvsouth/onion-keygen/onion"
)

func newInspectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <address>",
		Short: "Show the public key and current blinded identity of an onion address",
		Args:  cobra.ExactArgs(1),
		RunE:  a.runInspect,
	}
}

func (a *app) runInspect(cmd *cobra.Command, args []string) error {
	pub, err := onion.DecodeAddress(args[0])
	if err != nil {
		a.logger.Debug("address rejected", "address", args[0], "reason", rejectReason(err))
		return err
	}
	if err := onion.ValidatePoint(pub); err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}

	id, err := onion.Inspect(pub, time.Now())
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "address:        %s\n", id.Address)
	fmt.Fprintf(w, "version:        %d\n", onion.Version)
	fmt.Fprintf(w, "public key:     %s\n", id.PublicKey.Hex())
	fmt.Fprintf(w, "time period:    %d (length %d min)\n", id.Period, id.PeriodLength)
	fmt.Fprintf(w, "blinded key:    %s\n", id.BlindedKey.Hex())
	fmt.Fprintf(w, "subcredential:  %s\n", hex.EncodeToString(id.Subcredential[:]))
	for i, idx := range id.ServiceIndexes {
		fmt.Fprintf(w, "hsdir index %d:  %s\n", i+1, hex.EncodeToString(idx[:]))
	}
	return nil
}
