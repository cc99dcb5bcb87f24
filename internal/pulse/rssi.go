package pulse

import "math"

// SampleFormat distinguishes the two input encodings baseband.Envelope
// reads; it determines which RSSI/SNR coefficient pair applies.
type SampleFormat int

const (
	CU8 SampleFormat = iota // 1 byte/sample, amplitude domain
	CS16                    // 2 bytes/sample, magnitude domain
)

// CalcRSSISNR populates the logarithmic RSSI/SNR/noise and absolute carrier
// frequency fields of d. CU8 uses a 10*log10 coefficient with an offset
// calibrated to a 16384 full-scale amplitude; CS16 uses 20*log10 calibrated
// to the same full scale in magnitude units.
func (d *Data) CalcRSSISNR(format SampleFormat, centerFreqHz float64, sampleRate uint32) {
	asnr := float64(d.OOKHighEstimate) / (float64(d.OOKLowEstimate) + 1)
	foffs1 := float64(d.FSKF1Est) / 32767.0 * float64(sampleRate) / 2.0
	foffs2 := float64(d.FSKF2Est) / 32767.0 * float64(sampleRate) / 2.0
	d.Freq1Hz = foffs1 + centerFreqHz
	d.Freq2Hz = foffs2 + centerFreqHz

	switch format {
	case CU8:
		d.RSSIDb = 10*math.Log10(float64(d.OOKHighEstimate)) - 42.1442
		d.NoiseDb = 10*math.Log10(float64(d.OOKLowEstimate)+1) - 42.1442
		d.SNRDb = 10 * math.Log10(asnr)
	case CS16:
		d.RSSIDb = 20*math.Log10(float64(d.OOKHighEstimate)) - 84.2884
		d.NoiseDb = 20*math.Log10(float64(d.OOKLowEstimate)+1) - 84.2884
		d.SNRDb = 20 * math.Log10(asnr)
	}
}
