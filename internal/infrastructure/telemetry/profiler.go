package telemetry

import (
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/grafana/pyroscope-go"
	"go.uber.org/zap"
)

// ProfilerConfig controls Pyroscope continuous profiling. Each Profile*
// flag opts a profile type in; mutex and block profiling additionally
// adjust the Go runtime sampling knobs.
type ProfilerConfig struct {
	Enabled           bool
	ServerAddress     string
	ApplicationName   string
	BasicAuthUser     string // Grafana Cloud
	BasicAuthPassword string

	ProfileCPU           bool
	ProfileAllocObjects  bool
	ProfileAllocSpace    bool
	ProfileInuseObjects  bool
	ProfileInuseSpace    bool
	ProfileGoroutines    bool
	ProfileMutexCount    bool
	ProfileMutexDuration bool
	ProfileBlockCount    bool
	ProfileBlockDuration bool

	MutexProfileFraction int // default 5
	BlockProfileRate     int // default 5
	DisableGCRuns        bool
}

func (cfg ProfilerConfig) profileTypes() []pyroscope.ProfileType {
	selected := []struct {
		on  bool
		typ pyroscope.ProfileType
	}{
		{cfg.ProfileCPU, pyroscope.ProfileCPU},
		{cfg.ProfileAllocObjects, pyroscope.ProfileAllocObjects},
		{cfg.ProfileAllocSpace, pyroscope.ProfileAllocSpace},
		{cfg.ProfileInuseObjects, pyroscope.ProfileInuseObjects},
		{cfg.ProfileInuseSpace, pyroscope.ProfileInuseSpace},
		{cfg.ProfileGoroutines, pyroscope.ProfileGoroutines},
		{cfg.ProfileMutexCount, pyroscope.ProfileMutexCount},
		{cfg.ProfileMutexDuration, pyroscope.ProfileMutexDuration},
		{cfg.ProfileBlockCount, pyroscope.ProfileBlockCount},
		{cfg.ProfileBlockDuration, pyroscope.ProfileBlockDuration},
	}

	types := make([]pyroscope.ProfileType, 0, len(selected))
	for _, s := range selected {
		if s.on {
			types = append(types, s.typ)
		}
	}
	return types
}

// Profiler wraps a running Pyroscope session.
type Profiler struct {
	cfg ProfilerConfig
	log *zap.Logger

	mu      sync.Mutex
	session *pyroscope.Profiler
	stopped bool
}

// NewProfiler starts a Pyroscope session. A disabled config yields an
// inert Profiler whose Stop is a no-op.
func NewProfiler(cfg ProfilerConfig, log *zap.Logger) (*Profiler, error) {
	p := &Profiler{cfg: cfg, log: log}
	if !cfg.Enabled {
		log.Info("Continuous profiling disabled")
		return p, nil
	}

	if cfg.ServerAddress == "" {
		return nil, fmt.Errorf("profiler: server address required")
	}
	if cfg.ApplicationName == "" {
		return nil, fmt.Errorf("profiler: application name required")
	}

	if cfg.ProfileMutexCount || cfg.ProfileMutexDuration {
		runtime.SetMutexProfileFraction(positiveOr(cfg.MutexProfileFraction, 5))
	}
	if cfg.ProfileBlockCount || cfg.ProfileBlockDuration {
		runtime.SetBlockProfileRate(positiveOr(cfg.BlockProfileRate, 5))
	}

	types := cfg.profileTypes()
	if len(types) == 0 {
		log.Warn("Profiler enabled with no profile types selected")
	}

	tags := map[string]string{}
	if host := os.Getenv("HOSTNAME"); host != "" {
		tags["hostname"] = host
	}
	if pod := os.Getenv("POD_NAME"); pod != "" {
		tags["pod"] = pod
	}

	session, err := pyroscope.Start(pyroscope.Config{
		ApplicationName:   cfg.ApplicationName,
		ServerAddress:     cfg.ServerAddress,
		BasicAuthUser:     cfg.BasicAuthUser,
		BasicAuthPassword: cfg.BasicAuthPassword,
		Logger:            zapPyroscopeLogger{log.Named("pyroscope").Sugar()},
		Tags:              tags,
		ProfileTypes:      types,
		DisableGCRuns:     cfg.DisableGCRuns,
	})
	if err != nil {
		return nil, fmt.Errorf("start pyroscope: %w", err)
	}
	p.session = session

	log.Info("Continuous profiling started",
		zap.String("server", cfg.ServerAddress),
		zap.String("application", cfg.ApplicationName),
		zap.Int("profile_types", len(types)),
	)
	return p, nil
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

// Stop flushes pending profiles and ends the session. Safe to call more
// than once. The pyroscope SDK does not take a context; it bounds the
// final flush internally.
func (p *Profiler) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return nil
	}
	p.stopped = true

	if p.session == nil {
		return nil
	}
	if err := p.session.Stop(); err != nil {
		return fmt.Errorf("stop profiler: %w", err)
	}
	p.log.Info("Continuous profiling stopped")
	return nil
}

// IsEnabled reports whether a session is running.
func (p *Profiler) IsEnabled() bool {
	return p.session != nil
}

// GetConfig returns the configuration the profiler was built from.
func (p *Profiler) GetConfig() ProfilerConfig {
	return p.cfg
}

// zapPyroscopeLogger adapts zap to the pyroscope.Logger interface.
type zapPyroscopeLogger struct {
	sugar *zap.SugaredLogger
}

func (l zapPyroscopeLogger) Infof(format string, args ...any)  { l.sugar.Infof(format, args...) }
func (l zapPyroscopeLogger) Debugf(format string, args ...any) { l.sugar.Debugf(format, args...) }
func (l zapPyroscopeLogger) Errorf(format string, args ...any) { l.sugar.Errorf(format, args...) }
