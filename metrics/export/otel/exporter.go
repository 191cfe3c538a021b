package otel

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() authcore.MetricsSnapshot
	NotifyDropped() uint64
}

type counterBinding struct {
	id         authcore.MetricID
	instrument metric.Int64ObservableCounter
}

type histogramBinding struct {
	id      authcore.MetricID
	buckets [8]metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
}

// Exporter publishes engine counters through observable instruments. A single
// callback reads one snapshot per collection.
type Exporter struct {
	source        metricsSource
	registration  metric.Registration
	counters      []counterBinding
	histograms    []histogramBinding
	notifyDropped metric.Int64ObservableCounter
}

func NewExporter(meter metric.Meter, engine *authcore.Engine) (*Exporter, error) {
	return NewExporterFromSource(meter, engine)
}

func NewExporterFromSource(meter metric.Meter, source metricsSource) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &Exporter{source: source}
	var observables []metric.Observable

	for _, def := range internaldefs.CounterDefs {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", def.Name, err)
		}
		e.counters = append(e.counters, counterBinding{id: def.ID, instrument: ins})
		observables = append(observables, ins)
	}

	for _, def := range internaldefs.HistogramDefs {
		b, ins, err := bindHistogram(meter, def)
		if err != nil {
			return nil, err
		}
		e.histograms = append(e.histograms, b)
		observables = append(observables, ins...)
	}

	dropped, err := meter.Int64ObservableCounter(
		internaldefs.NotifyDroppedName,
		metric.WithDescription(internaldefs.NotifyDroppedHelp),
	)
	if err != nil {
		return nil, fmt.Errorf("counter %s: %w", internaldefs.NotifyDroppedName, err)
	}
	e.notifyDropped = dropped
	observables = append(observables, dropped)

	registration, err := meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	e.registration = registration
	return e, nil
}

func bindHistogram(meter metric.Meter, def internaldefs.HistogramDef) (histogramBinding, []metric.Observable, error) {
	b := histogramBinding{id: def.ID}
	observables := make([]metric.Observable, 0, len(b.buckets)+1)
	for i, suffix := range internaldefs.HistogramBoundSuffix {
		name := def.Name + "_bucket_le_" + suffix
		ins, err := meter.Int64ObservableGauge(name, metric.WithDescription("Cumulative bucket count for "+def.Name+"."))
		if err != nil {
			return b, nil, fmt.Errorf("gauge %s: %w", name, err)
		}
		b.buckets[i] = ins
		observables = append(observables, ins)
	}
	count, err := meter.Int64ObservableGauge(def.Name+"_count", metric.WithDescription("Sample count for "+def.Name+"."))
	if err != nil {
		return b, nil, fmt.Errorf("gauge %s_count: %w", def.Name, err)
	}
	b.count = count
	return b, append(observables, count), nil
}

func (e *Exporter) observe(_ context.Context, o metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()
	for _, c := range e.counters {
		o.ObserveInt64(c.instrument, int64(snapshot.Counters[c.id]))
	}
	for _, h := range e.histograms {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snapshot.Histograms[h.id]))
		for i := range cumulative {
			o.ObserveInt64(h.buckets[i], int64(cumulative[i]))
		}
		o.ObserveInt64(h.count, int64(cumulative[len(cumulative)-1]))
	}
	o.ObserveInt64(e.notifyDropped, int64(e.source.NotifyDropped()))
	return nil
}

// Close unregisters the callback. It is safe on a nil exporter.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
