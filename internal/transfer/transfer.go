package transfer

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/opencontainers/go-digest"

	"github.com/input-output-hk/catalyst-forge-libs/blob/blobtypes"
	"github.com/input-output-hk/catalyst-forge-libs/blob/internal/blobapi"
	"github.com/input-output-hk/catalyst-forge-libs/blob/internal/retry"
)

// Config carries everything a single transfer session needs. A session is
// created per logical upload or download call and never reused.
type Config struct {
	// Service is the wire boundary
	Service blobapi.Service

	// Container and Key identify the target blob
	Container string
	Key       string

	// ChunkSize is the transfer chunk size in bytes
	ChunkSize int64

	// Concurrency bounds the number of overlapped chunk operations
	Concurrency int

	// BlockIDPrefix is the prefix block IDs are minted from
	BlockIDPrefix string

	// UseTransactionalDigest sends a per-chunk digest with each chunk write
	UseTransactionalDigest bool

	// StoreFinalDigest stores the whole-content digest on commit/finalize
	StoreFinalDigest bool

	// DisableDigestValidation skips download-side digest verification
	DisableDigestValidation bool

	// DigestOverride, when set, wins over the producer's accumulator
	DigestOverride digest.Digest

	// Properties are stored with the blob on commit
	Properties blobapi.Properties

	// Policies is the retry filter chain applied to every chunk operation
	Policies []retry.Policy

	// Budget bounds the session's total wall-clock time; zero means unbounded
	Budget time.Duration

	// LocationMode selects endpoint failover behavior for reads
	LocationMode blobtypes.LocationMode

	// Progress receives byte-count events; nil disables tracking
	Progress blobtypes.ProgressTracker

	// Logger receives debug traces; nil disables logging
	Logger *slog.Logger
}

// session is the per-transfer state shared by the orchestrators: phase,
// progress accounting, and the wall-clock anchor the execution budget is
// measured from.
type session struct {
	cfg   Config
	start time.Time
	phase atomic.Int32

	bytesAcked atomic.Int64
	total      int64
}

func newSession(cfg Config, total int64) *session {
	s := &session{
		cfg:   cfg,
		start: time.Now(),
		total: total,
	}
	s.phase.Store(int32(PhaseFilling))
	return s
}

// setPhase advances the session FSM and logs the transition.
func (s *session) setPhase(p Phase) {
	s.phase.Store(int32(p))
	if s.cfg.Logger != nil {
		s.cfg.Logger.Debug("transfer phase",
			slog.String("phase", p.String()),
			slog.String("key", s.cfg.Key))
	}
}

// advance records acked bytes and forwards cumulative progress.
func (s *session) advance(n int64) {
	acked := s.bytesAcked.Add(n)
	if s.cfg.Progress != nil {
		s.cfg.Progress.Update(acked, s.total)
	}
}

// finish produces the session's single terminal outcome on the tracker.
func (s *session) finish(err error) {
	if err != nil {
		s.setPhase(PhaseFailed)
		if s.cfg.Progress != nil {
			s.cfg.Progress.Error(err)
		}
		return
	}
	s.setPhase(PhaseDone)
	if s.cfg.Progress != nil {
		s.cfg.Progress.Complete()
	}
}

// retryOptions builds the driver options for one network call. readOnly
// selects the initial location and enables failover per the location mode.
func (s *session) retryOptions(readOnly bool) retry.Options {
	initial := retry.LocationPrimary
	if readOnly && s.cfg.LocationMode == blobtypes.LocationSecondaryOnly {
		initial = retry.LocationSecondary
	}

	policies := s.cfg.Policies
	if readOnly && s.cfg.LocationMode == blobtypes.LocationPrimaryThenSecondary {
		policies = append([]retry.Policy{retry.Failover{Enabled: true, ReadOnly: true}}, policies...)
	}

	return retry.Options{
		Policies:        policies,
		Budget:          s.cfg.Budget,
		Start:           s.start,
		InitialLocation: initial,
		Logger:          s.cfg.Logger,
	}
}

// chunkDigest computes the transactional digest for one chunk when enabled
// and the chunk is small enough to be eligible.
func (s *session) chunkDigest(data []byte) digest.Digest {
	if !s.cfg.UseTransactionalDigest {
		return ""
	}
	if int64(len(data)) > blobtypes.MaxTransactionalChunkSize {
		return ""
	}
	return digest.Canonical.FromBytes(data)
}

// finalDigest resolves the digest stored with the blob: the caller-supplied
// override always wins over the producer's accumulator.
func (s *session) finalDigest(computed digest.Digest) digest.Digest {
	if !s.cfg.StoreFinalDigest {
		return ""
	}
	if s.cfg.DigestOverride != "" {
		return s.cfg.DigestOverride
	}
	return computed
}
