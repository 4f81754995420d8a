package commands

import (
	"errors"
	"fmt"
	"net"

	"github.com/spf13/cobra"

	"github.com/cvsouth/onion-keygen/onion"
)

// ErrInvalidAddress is returned by verify when any argument fails.
var ErrInvalidAddress = errors.New("invalid onion address")

func newVerifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <address[:port]>...",
		Short: "Verify v3 onion addresses and print the embedded public keys",
		Args:  cobra.MinimumNArgs(1),
		RunE:  a.runVerify,
	}
}

func (a *app) runVerify(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()
	invalid := 0
	for _, arg := range args {
		addr := arg
		if onion.IsOnionAddress(arg) {
			if host, port, err := net.SplitHostPort(arg); err == nil {
				a.logger.Debug("ignoring port", "address", host, "port", port)
				addr = host
			}
		}
		pub, err := onion.DecodeAddress(addr)
		if err != nil {
			invalid++
			a.logger.Debug("address rejected", "address", addr, "reason", rejectReason(err), "error", err)
			fmt.Fprintf(w, "%s invalid\n", arg)
			continue
		}
		fmt.Fprintf(w, "%s valid %s\n", arg, pub.Hex())
	}
	if invalid > 0 {
		return fmt.Errorf("%w: %d of %d", ErrInvalidAddress, invalid, len(args))
	}
	return nil
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, onion.ErrUnsupportedVersion):
		return "unsupported_version"
	case errors.Is(err, onion.ErrMalformedAddress):
		return "malformed"
	case errors.Is(err, onion.ErrChecksumMismatch):
		return "checksum_mismatch"
	default:
		return "unknown"
	}
}
