package sink

import "github.com/doismellburning/ism433/internal/record"

// Ext is the in-process function callback sink: a
// consumer embedded in the same process receives both normal records and
// the extended unknown-package side channel directly, with no
// serialization step.
type Ext struct {
	OnRecord func(r *record.Record)
	OnUnknown func(u UnknownPackage)
}

func (e *Ext) Emit(r *record.Record) error {
	if e.OnRecord != nil {
		e.OnRecord(r)
	}
	return nil
}

func (e *Ext) EmitUnknown(u UnknownPackage) error {
	if e.OnUnknown != nil {
		e.OnUnknown(u)
	}
	return nil
}

func (e *Ext) Poll()        {}
func (e *Ext) Close() error { return nil }
