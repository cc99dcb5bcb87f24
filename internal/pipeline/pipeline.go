// Package pipeline implements the driver loop: drain
// sample blocks from a source, run baseband DSP, drive the pulse
// detector to exhaustion each block, dispatch packages to the protocol
// registry, annotate and deliver resulting records to sinks, and manage
// frequency hopping, duration caps, and the periodic stats interval.
//
// The loop runs under a
// cooperative single-thread-of-control model: the only concurrency here
// is the watchdog timer wrapping each blocking source read, and the
// Stop/stopAsync signal-handler boundary.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/doismellburning/ism433/internal/analyzer"
	"github.com/doismellburning/ism433/internal/baseband"
	"github.com/doismellburning/ism433/internal/config"
	"github.com/doismellburning/ism433/internal/device"
	"github.com/doismellburning/ism433/internal/dump"
	pulsepkg "github.com/doismellburning/ism433/internal/pulse"
	"github.com/doismellburning/ism433/internal/record"
	"github.com/doismellburning/ism433/internal/registry"
	"github.com/doismellburning/ism433/internal/rlog"
	"github.com/doismellburning/ism433/internal/sink"
	"github.com/doismellburning/ism433/internal/source"
	"github.com/doismellburning/ism433/internal/stats"
)

// watchdogDeadline bounds each sample-source read: a read that doesn't
// return in time aborts the process, since a stuck source has no other
// recovery path.
const watchdogDeadline = 3 * time.Second

// Pipeline owns everything the driver loop needs for one run: the
// source, baseband state, pulse detector, registry, sinks, and the
// hop/duration/stats bookkeeping. All of it is single-owner state
// exclusively touched by Run's goroutine.
type Pipeline struct {
	SessionID string

	src      source.Source
	registry *registry.Registry
	sinks    *sink.Multi
	stats    *stats.Registry

	amState  *baseband.State
	fmUseful bool

	det *pulsepkg.Detector

	cfg *config.Config

	grabber   *dump.Grabber
	grabCount int

	centerFreqHz float64
	hopIdx       int
	hopDeadline  time.Time

	startTime   time.Time
	lastStats   time.Time
	sampleIndex int64

	doExit      atomic.Bool
	doExitAsync atomic.Bool

	totalEvents int
}

// New builds a Pipeline from its already-configured collaborators. The
// registry must already have RecomputeSamples called for cfg.SampleRate.
// sessionID is generated by the caller (rather than here) so it can also
// be threaded into sinks built before the Pipeline exists, such as the
// syslog sink's PROCID field.
func New(cfg *config.Config, sessionID string, src source.Source, reg *registry.Registry, sinks *sink.Multi, statsReg *stats.Registry) *Pipeline {
	fmUseful := false
	for _, d := range reg.Descriptors() {
		if d.Modulation.IsFSK() {
			fmUseful = true
			break
		}
	}

	p := &Pipeline{
		SessionID: sessionID,
		src:       src,
		registry:  reg,
		sinks:     sinks,
		stats:     statsReg,
		amState:   baseband.NewState(),
		fmUseful:  fmUseful,
		det:       pulsepkg.NewDetector(),
		cfg:       cfg,
	}
	if len(cfg.Hop) > 0 {
		p.centerFreqHz = float64(cfg.Hop[0].FreqHz)
		p.hopDeadline = time.Now().Add(cfg.Hop[0].Dwell)
	}
	if cfg.GrabSeconds > 0 && cfg.GrabMode != "" {
		stride := sampleStride(blockFormat(src.Format()))
		p.grabber = dump.NewGrabber(int(cfg.SampleRate) * stride * cfg.GrabSeconds)
	}
	return p
}

// Stop requests a clean shutdown: the in-flight block completes, then
// Run returns.
func (p *Pipeline) Stop() { p.doExit.Store(true) }

// stopAsync requests only that the current tuning stop (a hop), leaving
// the pipeline itself running.
func (p *Pipeline) stopAsync() { p.doExitAsync.Store(true) }

// blockFormat maps source.Format to the baseband.Format that
// baseband.Envelope/FMDiscriminate need.
func blockFormat(f source.Format) baseband.Format {
	if f == source.FormatCS16 {
		return baseband.CS16
	}
	return baseband.CU8
}

// Run drives the main loop until the source is exhausted, Stop is
// called, or the duration cap elapses. blockSize matches
// source.DefaultBlockSize unless the caller overrides it for testing.
//
// A source that already hands over detected packages (PULSE_OOK files,
// a serial-attached capture front end) has no raw block for the DSP
// front end to decode, so Run drives it through runPackages instead of
// the block/envelope/detect loop below.
func (p *Pipeline) Run(ctx context.Context, blockSize int) error {
	if ps, ok := p.src.(source.PackageSource); ok {
		return p.runPackages(ctx, ps)
	}

	p.startTime = time.Now()
	p.lastStats = p.startTime

	raw := make([]byte, blockSize)
	am := make([]int16, blockSize)
	fm := make([]int16, blockSize)

	for {
		p.sinks.Poll()

		if p.doExit.Load() {
			return nil
		}

		n, err := p.readBlockWithWatchdog(ctx, raw)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("pipeline: source read: %w", err)
		}
		if n == 0 {
			return nil
		}

		if p.grabber != nil {
			p.grabber.Push(raw[:n])
		}

		var blockLen int
		switch p.src.Format() {
		case source.FormatS16AM:
			// The block already is the demodulated envelope.
			blockLen = n / 2
			decodeS16(raw[:n], am[:blockLen])
			clearInt16(fm[:blockLen])
		case source.FormatS16FM:
			// The block already is the discriminated FM stream.
			blockLen = n / 2
			decodeS16(raw[:n], fm[:blockLen])
			clearInt16(am[:blockLen])
		default:
			format := blockFormat(p.src.Format())
			blockLen = n / sampleStride(format)
			baseband.Envelope(format, raw[:n], am[:blockLen])
			p.amState.LowPass(am[:blockLen], am[:blockLen])
			if p.fmUseful {
				p.amState.FMDiscriminate(format, raw[:n], fm[:blockLen])
			}
		}

		p.drainPulses(am[:blockLen], fm[:blockLen], blockLen)

		p.sampleIndex += int64(blockLen)

		if p.cfg.DurationCap > 0 && time.Since(p.startTime) >= p.cfg.DurationCap {
			p.doExit.Store(true)
		}
		p.checkHop()
		p.checkStats()
	}
}

// runPackages drives a PackageSource directly: each NextPackage result
// is dispatched the same way a raw block's detected packages are in
// Run, minus the DSP front end those sources have already done
// upstream.
func (p *Pipeline) runPackages(ctx context.Context, ps source.PackageSource) error {
	p.startTime = time.Now()
	p.lastStats = p.startTime

	for {
		p.sinks.Poll()

		if p.doExit.Load() {
			return nil
		}

		pkg, err := ps.NextPackage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("pipeline: source read: %w", err)
		}

		p.handlePackage(pkg, false)

		if p.cfg.DurationCap > 0 && time.Since(p.startTime) >= p.cfg.DurationCap {
			p.doExit.Store(true)
		}
		p.checkHop()
		p.checkStats()
	}
}

// sampleStride returns bytes consumed per sample for a baseband.Format,
// mirroring the CU8 (2 bytes/sample) vs CS16 (4 bytes/sample) layouts
// baseband.Envelope decodes.
func sampleStride(f baseband.Format) int {
	if f == baseband.CS16 {
		return 4
	}
	return 2
}

// decodeS16 unpacks little-endian int16 samples from a raw byte block.
func decodeS16(raw []byte, out []int16) {
	for i := range out {
		out[i] = int16(uint16(raw[2*i]) | uint16(raw[2*i+1])<<8)
	}
}

func clearInt16(buf []int16) {
	for i := range buf {
		buf[i] = 0
	}
}

// readBlockWithWatchdog wraps the blocking source read in the watchdog
// deadline, aborting the process (rather than merely erroring) if the
// source never returns. There is no safe recovery from a wedged
// callback.
func (p *Pipeline) readBlockWithWatchdog(ctx context.Context, buf []byte) (int, error) {
	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)
	go func() {
		n, err := p.src.Read(ctx, buf)
		done <- result{n, err}
	}()

	select {
	case r := <-done:
		return r.n, r.err
	case <-time.After(watchdogDeadline):
		rlog.Pipeline.Error("sample source callback watchdog expired", "deadline", watchdogDeadline)
		panic("pipeline: sample source callback exceeded watchdog deadline")
	}
}

// drainPulses runs the detector loop to exhaustion for one block,
// dispatching each emitted package, matching the pseudocode's inner
// "loop: result = pulse_detect(...)" block.
func (p *Pipeline) drainPulses(am, fm []int16, blockLen int) {
	var ookPkg, fskPkg pulsepkg.Data
	for {
		result := p.det.Detect(am, fm, blockLen, 0, p.cfg.SampleRate, p.sampleIndex, &ookPkg, &fskPkg)
		switch result {
		case pulsepkg.OutOfData:
			return
		case pulsepkg.OOK:
			p.handlePackage(&ookPkg, false)
		case pulsepkg.FSK:
			p.handlePackage(&fskPkg, true)
		}
	}
}

func (p *Pipeline) handlePackage(pkg *pulsepkg.Data, isFSK bool) {
	sampleFmt := pulsepkg.CU8
	if p.src.Format() == source.FormatCS16 {
		sampleFmt = pulsepkg.CS16
	}
	pkg.SampleRate = p.cfg.SampleRate
	pkg.CalcRSSISNR(sampleFmt, p.centerFreqHz, p.cfg.SampleRate)

	matches, unknown := p.registry.Dispatch(pkg, isFSK)
	eventsThisPackage := 0
	for _, m := range matches {
		counters := p.stats.For(m.Descriptor.Name)
		if m.Events == 0 {
			counters.Fail(m.Reason)
			continue
		}
		eventsThisPackage += m.Events
		modLabel := modulationLabel(isFSK)
		for _, rec := range m.Records {
			counters.Event()
			record.Annotate(rec, p.recordMeta(pkg, modLabel, m.Descriptor))
			p.sinks.Emit(rec, func(err error) {
				rlog.Pipeline.Warn("sink emit failed", "err", err)
			})
		}
	}
	p.totalEvents += eventsThisPackage
	p.maybeGrab(eventsThisPackage)

	if unknown != nil {
		p.sinks.EmitUnknown(sink.UnknownPackage{
			Modulation: modulationLabel(isFSK),
			Pulses:     unknown.Pulses,
			SampleRate: unknown.Pulses.SampleRate,
		}, func(err error) {
			rlog.Pipeline.Warn("unknown-package sink emit failed", "err", err)
		})
	}

	if p.cfg.AnalyzePulses && eventsThisPackage == 0 {
		// Run undecoded traffic through the heuristic classifier,
		// logged rather than delivered as a record.
		rep := analyzer.Analyze(pkg)
		if rep.Guess.Matched {
			rlog.Pipeline.Info("analyzer guess", "label", rep.Guess.Label, "flex", rep.Guess.FlexString(p.cfg.SampleRate))
		} else {
			rlog.Pipeline.Info("analyzer: no modulation guess", "label", rep.Guess.Label, "pulses", pkg.NumPulses, "noise_db", pkg.NoiseDb)
		}
	}
}

// maybeGrab dumps the sample-grabber ring when the just-handled package
// matches the configured grab mode: "all" keeps everything, "unknown"
// keeps only packages nothing decoded, "known" only decoded ones.
func (p *Pipeline) maybeGrab(events int) {
	if p.grabber == nil || p.grabber.Len() == 0 {
		return
	}
	switch p.cfg.GrabMode {
	case "all":
	case "unknown":
		if events > 0 {
			return
		}
	case "known":
		if events == 0 {
			return
		}
	default:
		return
	}
	p.grabCount++
	ext := ".cu8"
	if p.src.Format() == source.FormatCS16 {
		ext = ".cs16"
	}
	name := fmt.Sprintf("g%03d_%.3fM_%dk%s", p.grabCount, p.centerFreqHz/1e6, p.cfg.SampleRate/1000, ext)
	path := filepath.Join(p.cfg.GrabPath, name)
	if err := p.grabber.WriteFile(path); err != nil {
		rlog.Pipeline.Warn("sample grab failed", "path", path, "err", err)
		return
	}
	rlog.Pipeline.Info("sample grab written", "path", path, "bytes", p.grabber.Len())
}

// TotalEvents returns the running count of decoded records across the
// whole run, letting cmd/ism433 implement a stop-after-first-event mode
// by polling it between Run calls.
func (p *Pipeline) TotalEvents() int { return p.totalEvents }

func modulationLabel(isFSK bool) string {
	if isFSK {
		return "FSK"
	}
	return "OOK"
}

func (p *Pipeline) recordMeta(pkg *pulsepkg.Data, modLabel string, d *device.Descriptor) record.Meta {
	return record.Meta{
		Time:        time.Now(),
		TimeFormat:  p.cfg.RecordTimeFormat(),
		SampleNum:   p.sampleIndex,
		Tag:         p.cfg.Tag,
		ProtocolNum: d.ProtocolNum,
		Description: d.Name,
		IncludeMeta: p.cfg.ReportProtocol,
		Modulation:  modLabel,
		Freq1Hz:     pkg.Freq1Hz,
		Freq2Hz:     pkg.Freq2Hz,
		RSSIDb:      pkg.RSSIDb,
		SNRDb:       pkg.SNRDb,
		NoiseDb:     pkg.NoiseDb,
		UnitMode:    p.cfg.UnitsMode(),
	}
}

// checkHop advances the hop schedule's slot pointer modulo its length
// once the current slot's dwell elapses. Re-tuning the real source is
// the caller's responsibility, since source control is
// out of this package's scope.
func (p *Pipeline) checkHop() {
	if len(p.cfg.Hop) == 0 || p.cfg.Hop[p.hopIdx].Dwell <= 0 {
		return
	}
	if time.Now().Before(p.hopDeadline) {
		return
	}
	p.hopIdx = (p.hopIdx + 1) % len(p.cfg.Hop)
	slot := p.cfg.Hop[p.hopIdx]
	p.centerFreqHz = float64(slot.FreqHz)
	p.hopDeadline = time.Now().Add(slot.Dwell)
	p.stopAsync()
	rlog.Pipeline.Info("frequency hop", "freq_hz", p.centerFreqHz, "slot", p.hopIdx)
}

// checkStats emits a periodic stats DataRecord once cfg.StatsInterval
// has elapsed, folding in the session id.
func (p *Pipeline) checkStats() {
	if p.cfg.StatsInterval <= 0 || time.Since(p.lastStats) < p.cfg.StatsInterval {
		return
	}
	p.lastStats = time.Now()
	rec := p.stats.ReportAll()
	rec.Prepend("session", p.SessionID)
	rec.Prepend("enabled_devices", len(p.registry.Descriptors()))
	p.sinks.Emit(rec, func(err error) {
		rlog.Pipeline.Warn("stats sink emit failed", "err", err)
	})
}

// DidAsyncStop reports and clears the do_exit_async flag, letting the
// caller re-tune the real source between Run invocations, one run per
// hop dwell. SDR control stays an external collaborator.
func (p *Pipeline) DidAsyncStop() bool {
	return p.doExitAsync.CompareAndSwap(true, false)
}
