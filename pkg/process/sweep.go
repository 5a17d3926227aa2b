package process

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	psprocess "github.com/shirou/gopsutil/v4/process"
)

// createTimeSlack absorbs the coarse start time some platforms report. Linux
// derives it from a whole-second boot time plus clock ticks, so a process may
// appear to have started more than a second before it actually did.
const createTimeSlack = 2 * time.Second

// SignatureSweeper terminates processes whose command line contains a signature.
//
// It is a best-effort workaround for runners that detach workers into their
// own session, out of reach of process group signals. Any process started
// after the cancelled run began and matching the signature is terminated,
// including one belonging to an unrelated invocation started in that window.
type SignatureSweeper struct {
	signature string
	log       log.Logger
}

var _ Sweeper = (*SignatureSweeper)(nil)

// NewSignatureSweeper creates a sweeper matching command lines containing signature.
func NewSignatureSweeper(signature string, logger log.Logger) *SignatureSweeper {
	if logger == nil {
		logger = log.Root()
	}
	return &SignatureSweeper{
		signature: signature,
		log:       logger.New("component", "sweeper"),
	}
}

// Sweep implements Sweeper. An empty signature sweeps nothing.
func (s *SignatureSweeper) Sweep(ctx context.Context, since time.Time) (int, error) {
	if s.signature == "" {
		return 0, nil
	}

	procs, err := psprocess.ProcessesWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("process: list processes: %w", err)
	}

	self := int32(os.Getpid())
	terminated := 0

	for _, p := range procs {
		if ctx.Err() != nil {
			return terminated, ctx.Err()
		}
		if p.Pid == self {
			continue
		}

		// Processes vanish between listing and inspection; skip them quietly.
		created, err := p.CreateTimeWithContext(ctx)
		if err != nil || !startedAfter(created, since) {
			continue
		}
		cmdline, err := p.CmdlineWithContext(ctx)
		if err != nil || !strings.Contains(cmdline, s.signature) {
			continue
		}

		if err := p.TerminateWithContext(ctx); err != nil {
			s.log.Debug("Failed to terminate process", "pid", p.Pid, "cmdline", cmdline, "err", err)
			continue
		}
		s.log.Debug("Terminated orphaned process", "pid", p.Pid, "cmdline", cmdline)
		terminated++
	}

	return terminated, nil
}

// startedAfter reports whether a process created at createdMillis may have been
// started at or after since, allowing for createTimeSlack.
func startedAfter(createdMillis int64, since time.Time) bool {
	return createdMillis >= since.Add(-createTimeSlack).UnixMilli()
}
