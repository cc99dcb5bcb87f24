package source

import (
	"fmt"

	hamlib "github.com/xylo04/goHamlib"

	"github.com/doismellburning/ism433/internal/rlog"
)

// RigController covers the tuning side of the sample source contract
// (SetCenterFreq/SetTunerGain/SetFreqCorrection) for a front end tuned
// through an external Hamlib-controlled rig —
// e.g. an upconverter or a preselector sitting ahead of the SDR rather
// than the SDR's own tuner. This is an auxiliary control path, not a
// Source itself: the I/Q still arrives from a Source in the usual way.
type RigController struct {
	rig *hamlib.Rig
	vfo hamlib.VFO
}

// OpenRigController opens the given Hamlib model number on port (e.g.
// "/dev/ttyUSB0", or "localhost:4532" for rigctld).
func OpenRigController(model int, port string) (*RigController, error) {
	rig := hamlib.NewRig(hamlib.RigModel(model))
	if err := rig.SetConf("rig_pathname", port); err != nil {
		return nil, fmt.Errorf("source: hamlib set port %s: %w", port, err)
	}
	if err := rig.Open(); err != nil {
		return nil, fmt.Errorf("source: hamlib open model %d on %s: %w", model, port, err)
	}
	return &RigController{rig: rig, vfo: hamlib.VFOCurrent}, nil
}

// SetCenterFreq re-tunes the rig; failures are returned, not logged.
func (c *RigController) SetCenterFreq(hz float64) error {
	if err := c.rig.SetFreq(c.vfo, hz); err != nil {
		return fmt.Errorf("source: hamlib set freq %.0f: %w", hz, err)
	}
	return nil
}

// SetTunerGain forwards a gain spec as a Hamlib level setting, best
// effort: not every rig model exposes RF gain control.
func (c *RigController) SetTunerGain(gainDb float64) error {
	if err := c.rig.SetLevel(c.vfo, hamlib.LevelRF, gainDb); err != nil {
		rlog.Source.Warn("hamlib: rig rejected gain level", "err", err)
		return nil
	}
	return nil
}

// SetFreqCorrection is a no-op for most Hamlib rig models (PPM
// correction belongs to the SDR's own tuner, not the rig); logged rather
// than failing hard.
func (c *RigController) SetFreqCorrection(ppm int) error {
	rlog.Source.Debug("hamlib: freq correction not applicable to rig control path", "ppm", ppm)
	return nil
}

func (c *RigController) Close() error {
	return c.rig.Close()
}
