// Package vanity searches for onion service keys whose address starts with a
// chosen prefix. Every attempt is an independent key generation, so the work
// is spread over parallel workers and stops between attempts on cancellation.
package vanity

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cvsouth/onion-keygen/hskey"
)

// MaxPrefixLen is the number of leading address characters that depend on
// the public key alone.
const MaxPrefixLen = 51

const base32Alphabet = "abcdefghijklmnopqrstuvwxyz234567"

// ErrExhausted is returned when MaxAttempts keys were tried without a match.
var ErrExhausted = errors.New("attempt limit reached")

var errFound = errors.New("match found")

// Options controls a search. The zero value uses one worker per CPU,
// crypto/rand, no logging and no attempt limit.
type Options struct {
	Workers int
	// Rand is shared by all workers and must be safe for concurrent use.
	Rand             io.Reader
	Logger           *slog.Logger
	ProgressInterval time.Duration
	MaxAttempts      uint64
}

// Result is a key pair whose address has the requested prefix.
type Result struct {
	KeyPair  *hskey.KeyPair
	Address  string
	Attempts uint64
	Elapsed  time.Duration
}

// ValidatePrefix checks that prefix can occur at the start of an address.
func ValidatePrefix(prefix string) error {
	if prefix == "" {
		return errors.New("empty prefix")
	}
	if len(prefix) > MaxPrefixLen {
		return fmt.Errorf("prefix length %d exceeds %d", len(prefix), MaxPrefixLen)
	}
	for i, c := range prefix {
		if !strings.ContainsRune(base32Alphabet, c) {
			return fmt.Errorf("prefix character %q at %d is not in the base32 alphabet (a-z, 2-7)", c, i)
		}
	}
	return nil
}

// EstimateAttempts returns the expected number of keys to try for a prefix of n characters.
func EstimateAttempts(n int) float64 {
	return math.Pow(32, float64(n))
}

// Search generates keys until one produces an address starting with prefix,
// ctx is cancelled, or MaxAttempts is reached.
func Search(ctx context.Context, prefix string, opts Options) (*Result, error) {
	prefix = strings.ToLower(prefix)
	if err := ValidatePrefix(prefix); err != nil {
		return nil, err
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	logger.Info("vanity search started",
		"prefix", prefix,
		"workers", workers,
		"expected_attempts", EstimateAttempts(len(prefix)))

	var (
		attempts atomic.Uint64
		once     sync.Once
		found    *hskey.KeyPair
	)
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)

	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for {
				if err := gctx.Err(); err != nil {
					return err
				}
				n := attempts.Add(1)
				if opts.MaxAttempts > 0 && n > opts.MaxAttempts {
					return ErrExhausted
				}

				kp, err := hskey.Generate(opts.Rand)
				if err != nil {
					return err
				}
				if !strings.HasPrefix(kp.Address(), prefix) {
					continue
				}
				if err := kp.CheckAddress(); err != nil {
					return fmt.Errorf("candidate failed self-check: %w", err)
				}
				once.Do(func() { found = kp })
				return errFound
			}
		})
	}

	if opts.ProgressInterval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(opts.ProgressInterval)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					n := attempts.Load()
					elapsed := time.Since(start)
					logger.Info("vanity search progress",
						"attempts", n,
						"rate", fmt.Sprintf("%.0f/s", float64(n)/elapsed.Seconds()),
						"elapsed", elapsed.Round(time.Second))
				}
			}
		})
	}

	err := g.Wait()
	elapsed := time.Since(start)

	if found != nil {
		n := attempts.Load()
		if opts.MaxAttempts > 0 {
			n = min(n, opts.MaxAttempts)
		}
		res := &Result{
			KeyPair:  found,
			Address:  found.Address(),
			Attempts: n,
			Elapsed:  elapsed,
		}
		logger.Info("vanity search matched", "address", res.Address, "attempts", res.Attempts, "elapsed", elapsed)
		return res, nil
	}

	switch {
	case errors.Is(err, ErrExhausted):
		logger.Warn("vanity search exhausted", "max_attempts", opts.MaxAttempts)
		return nil, fmt.Errorf("%w after %d keys", ErrExhausted, opts.MaxAttempts)
	case ctx.Err() != nil:
		logger.Info("vanity search cancelled", "attempts", attempts.Load())
		return nil, ctx.Err()
	default:
		return nil, err
	}
}
