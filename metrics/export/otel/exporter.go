package otel

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/MrEthical07/goGuard/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() goGuard.MetricsSnapshot
	AuditDropped() uint64
}

// bucketSeries is one histogram published as a cumulative gauge with an
// "le" attribute per bound, plus sample count and sum.
type bucketSeries struct {
	id      goGuard.MetricID
	buckets metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
	sum     metric.Float64ObservableGauge
}

// Exporter publishes engine counters as OTel observable instruments. Every
// collection reads a fresh snapshot; nothing is cached between callbacks.
type Exporter struct {
	source       metricsSource
	registration metric.Registration

	counters     map[goGuard.MetricID]metric.Int64ObservableCounter
	series       []bucketSeries
	auditDropped metric.Int64ObservableCounter
}

// bucketLabels holds the "le" attribute set for each engine bucket, +Inf last.
var bucketLabels = func() []metric.ObserveOption {
	out := make([]metric.ObserveOption, 0, len(internaldefs.HistogramBounds)+1)
	for _, b := range internaldefs.HistogramBounds {
		le := strconv.FormatFloat(b, 'f', -1, 64)
		out = append(out, metric.WithAttributes(attribute.String("le", le)))
	}
	return append(out, metric.WithAttributes(attribute.String("le", "+Inf")))
}()

// NewExporter registers instruments on meter backed by engine.
func NewExporter(meter metric.Meter, engine *goGuard.Engine) (*Exporter, error) {
	if engine == nil {
		return nil, ErrNilSource
	}
	return NewExporterFromSource(meter, engine)
}

// NewExporterFromSource is NewExporter for any snapshot provider.
func NewExporterFromSource(meter metric.Meter, source metricsSource) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &Exporter{
		source:   source,
		counters: make(map[goGuard.MetricID]metric.Int64ObservableCounter, len(internaldefs.CounterDefs)),
	}
	var observables []metric.Observable

	counter := func(name, help string) (metric.Int64ObservableCounter, error) {
		ins, err := meter.Int64ObservableCounter(name, metric.WithDescription(help))
		if err != nil {
			return nil, fmt.Errorf("otel counter %s: %w", name, err)
		}
		observables = append(observables, ins)
		return ins, nil
	}
	gauge := func(name, help string) (metric.Int64ObservableGauge, error) {
		ins, err := meter.Int64ObservableGauge(name, metric.WithDescription(help))
		if err != nil {
			return nil, fmt.Errorf("otel gauge %s: %w", name, err)
		}
		observables = append(observables, ins)
		return ins, nil
	}

	for _, def := range internaldefs.CounterDefs {
		ins, err := counter(def.Name, def.Help)
		if err != nil {
			return nil, err
		}
		e.counters[def.ID] = ins
	}

	for _, def := range internaldefs.HistogramDefs {
		buckets, err := gauge(def.Name+"_bucket", def.Help+" Cumulative count per upper bound.")
		if err != nil {
			return nil, err
		}
		count, err := gauge(def.Name+"_count", def.Help+" Sample count.")
		if err != nil {
			return nil, err
		}
		sum, err := meter.Float64ObservableGauge(def.Name+"_sum", metric.WithDescription(def.Help+" Sum of samples."), metric.WithUnit("s"))
		if err != nil {
			return nil, fmt.Errorf("otel gauge %s_sum: %w", def.Name, err)
		}
		observables = append(observables, sum)
		e.series = append(e.series, bucketSeries{id: def.ID, buckets: buckets, count: count, sum: sum})
	}

	dropped, err := counter("goguard_audit_dropped_total", "Audit events dropped by a full dispatcher queue.")
	if err != nil {
		return nil, err
	}
	e.auditDropped = dropped

	reg, err := meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("otel register callback: %w", err)
	}
	e.registration = reg
	return e, nil
}

func (e *Exporter) observe(_ context.Context, o metric.Observer) error {
	snap := e.source.MetricsSnapshot()
	for id, ins := range e.counters {
		o.ObserveInt64(ins, int64(snap.Counters[id]))
	}
	for _, s := range e.series {
		cum := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snap.Histograms[s.id]))
		for i, opt := range bucketLabels {
			o.ObserveInt64(s.buckets, int64(cum[i]), opt)
		}
		o.ObserveInt64(s.count, int64(cum[len(cum)-1]))
		o.ObserveFloat64(s.sum, snap.Sums[s.id])
	}
	o.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))
	return nil
}

// Close unregisters the collection callback. It is safe on a nil Exporter.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
