package pipeline

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doismellburning/ism433/internal/bitbuf"
	"github.com/doismellburning/ism433/internal/config"
	"github.com/doismellburning/ism433/internal/demod"
	"github.com/doismellburning/ism433/internal/device"
	"github.com/doismellburning/ism433/internal/pulse"
	"github.com/doismellburning/ism433/internal/record"
	"github.com/doismellburning/ism433/internal/registry"
	"github.com/doismellburning/ism433/internal/sink"
	"github.com/doismellburning/ism433/internal/source"
	"github.com/doismellburning/ism433/internal/stats"
)

// stubSource satisfies source.Source just enough for handlePackage's
// Format() lookup; Run itself isn't exercised by this test.
type stubSource struct{}

func (stubSource) Format() source.Format { return source.FormatCU8 }
func (stubSource) SampleRate() uint32    { return 250000 }
func (stubSource) Read(ctx context.Context, buf []byte) (int, error) {
	return 0, context.Canceled
}
func (stubSource) Close() error { return nil }

// packageStubSource is a minimal source.PackageSource: it hands back one
// fixed package via NextPackage and io.EOF after, so Run's PackageSource
// branch can be exercised without a real PULSE_OOK file.
type packageStubSource struct {
	pkg    *pulse.Data
	served bool
}

func (s *packageStubSource) Format() source.Format { return source.FormatPulseOOK }
func (s *packageStubSource) SampleRate() uint32    { return 250000 }
func (s *packageStubSource) Close() error          { return nil }
func (s *packageStubSource) Read(ctx context.Context, buf []byte) (int, error) {
	return 0, fmt.Errorf("packageStubSource: Read should never be called")
}
func (s *packageStubSource) NextPackage(ctx context.Context) (*pulse.Data, error) {
	if s.served {
		return nil, io.EOF
	}
	s.served = true
	return s.pkg, nil
}

// ppmDecode mimics a trivial device decode callback: one record per
// decoded row, carrying the row's bit count.
func ppmDecode(bits *bitbuf.BitBuffer, dev *device.Descriptor) ([]*record.Record, int, stats.Reason) {
	var records []*record.Record
	for row := 0; row < bits.NumRows; row++ {
		if bits.NumBits(row) == 0 {
			continue
		}
		records = append(records, record.New().Append("model", "test-ppm").Append("bits", bits.NumBits(row)))
	}
	if len(records) == 0 {
		return nil, 0, stats.FailSanity
	}
	return records, len(records), stats.Other
}

func newTestPipeline(t *testing.T) (*Pipeline, *[]*record.Record) {
	t.Helper()
	desc := &device.Descriptor{
		Name:       "test-ppm",
		Modulation: device.OokPPM,
		Timing:     device.Timing{SShortWidth: 100, SLongWidth: 500, SGapLimit: 1000, SResetLimit: 2000},
		DecodeFn:   ppmDecode,
	}
	reg := registry.New(nil, []*device.Descriptor{desc})
	reg.ReportUnknown = false

	got := &[]*record.Record{}
	ext := &sink.Ext{OnRecord: func(r *record.Record) { *got = append(*got, r) }}
	sinks := sink.NewMulti(ext)

	statsReg := stats.NewRegistry(prometheus.NewRegistry())

	cfg := &config.Config{SampleRate: 250000, TimeFormat: "none", UnitMode: "none"}

	p := New(cfg, "test-session", stubSource{}, reg, sinks, statsReg)
	return p, got
}

// TestHandlePackageBarePPM: pulses
// of 50 samples with alternating 100/500-sample gaps should decode
// through the PPM demodulator and reach the registered sink.
func TestHandlePackageBarePPM(t *testing.T) {
	p, got := newTestPipeline(t)

	var pkg pulse.Data
	for i := 0; i < 8; i++ {
		pkg.Pulse[i] = 50
		if i%2 == 0 {
			pkg.Gap[i] = 100
		} else {
			pkg.Gap[i] = 500
		}
	}
	pkg.NumPulses = 8
	pkg.OOKHighEstimate = 4000
	pkg.OOKLowEstimate = 100

	p.handlePackage(&pkg, false)

	require.Len(t, *got, 1)
	model, ok := (*got)[0].Get("model")
	require.True(t, ok)
	assert.Equal(t, "test-ppm", model)
	assert.Equal(t, 1, p.TotalEvents())
}

// rejectingDecode mimics a device callback that always rejects the
// demodulated bits for a specific reason, so handlePackage has something
// other than stats.Other to classify it as.
func rejectingDecode(bits *bitbuf.BitBuffer, dev *device.Descriptor) ([]*record.Record, int, stats.Reason) {
	return nil, 0, stats.FailMIC
}

// TestHandlePackageReportsDecodeRejectReason verifies a DecodeFn
// rejection is classified by its reported stats.Reason rather than
// always falling into the catch-all "other" bucket.
func TestHandlePackageReportsDecodeRejectReason(t *testing.T) {
	desc := &device.Descriptor{
		Name:       "reject-ppm",
		Modulation: device.OokPPM,
		Timing:     device.Timing{SShortWidth: 100, SLongWidth: 500, SGapLimit: 1000, SResetLimit: 2000},
		DecodeFn:   rejectingDecode,
	}
	reg := registry.New(nil, []*device.Descriptor{desc})
	reg.ReportUnknown = false

	sinks := sink.NewMulti()
	statsReg := stats.NewRegistry(prometheus.NewRegistry())
	cfg := &config.Config{SampleRate: 250000, TimeFormat: "none", UnitMode: "none"}
	p := New(cfg, "test-session", stubSource{}, reg, sinks, statsReg)

	var pkg pulse.Data
	for i := 0; i < 8; i++ {
		pkg.Pulse[i] = 50
		if i%2 == 0 {
			pkg.Gap[i] = 100
		} else {
			pkg.Gap[i] = 500
		}
	}
	pkg.NumPulses = 8
	pkg.OOKHighEstimate = 4000
	pkg.OOKLowEstimate = 100

	p.handlePackage(&pkg, false)

	rec := statsReg.ReportAll()
	statsField, ok := rec.Get("stats")
	require.True(t, ok)
	entries, ok := statsField.([]record.Field)
	require.True(t, ok)
	entry := &record.Record{Fields: entries}

	micCount, ok := entry.Get("fail_mic")
	require.True(t, ok, "fail_mic field should be present: %+v", entries)
	assert.Equal(t, int64(1), micCount)

	_, otherPresent := entry.Get("fail_other")
	assert.False(t, otherPresent, "rejection should not be misclassified as fail_other")
}

// TestRunDrivesPackageSourceThroughNextPackage verifies Run recognizes a
// source.PackageSource and dispatches via NextPackage instead of the raw
// block/DSP loop (which the stub's Read would fail if ever called).
func TestRunDrivesPackageSourceThroughNextPackage(t *testing.T) {
	desc := &device.Descriptor{
		Name:       "test-ppm",
		Modulation: device.OokPPM,
		Timing:     device.Timing{SShortWidth: 100, SLongWidth: 500, SGapLimit: 1000, SResetLimit: 2000},
		DecodeFn:   ppmDecode,
	}
	reg := registry.New(nil, []*device.Descriptor{desc})
	reg.ReportUnknown = false

	var got []*record.Record
	ext := &sink.Ext{OnRecord: func(r *record.Record) { got = append(got, r) }}
	sinks := sink.NewMulti(ext)
	statsReg := stats.NewRegistry(prometheus.NewRegistry())
	cfg := &config.Config{SampleRate: 250000, TimeFormat: "none", UnitMode: "none"}

	var pkg pulse.Data
	for i := 0; i < 8; i++ {
		pkg.Pulse[i] = 50
		if i%2 == 0 {
			pkg.Gap[i] = 100
		} else {
			pkg.Gap[i] = 500
		}
	}
	pkg.NumPulses = 8
	pkg.OOKHighEstimate = 4000
	pkg.OOKLowEstimate = 100

	src := &packageStubSource{pkg: &pkg}
	p := New(cfg, "test-session", src, reg, sinks, statsReg)

	require.NoError(t, p.Run(context.Background(), source.DefaultBlockSize))
	require.Len(t, got, 1)
	model, ok := got[0].Get("model")
	require.True(t, ok)
	assert.Equal(t, "test-ppm", model)
}

func TestDemodPPMDirectlyMatchesExpectedBits(t *testing.T) {
	desc := &device.Descriptor{
		Timing: device.Timing{SShortWidth: 100, SLongWidth: 500, SGapLimit: 1000, SResetLimit: 2000},
	}
	var pkg pulse.Data
	for i := 0; i < 8; i++ {
		pkg.Pulse[i] = 50
		if i%2 == 0 {
			pkg.Gap[i] = 100
		} else {
			pkg.Gap[i] = 500
		}
	}
	pkg.NumPulses = 8

	var bits bitbuf.BitBuffer
	events := demod.PPM(&pkg, desc, &bits)
	require.Equal(t, 1, events)
	assert.Equal(t, 8, bits.NumBits(0))
	for i := 0; i < 8; i++ {
		want := 0
		if i%2 == 1 {
			want = 1
		}
		assert.Equal(t, want, bits.Bit(0, i))
	}
}
