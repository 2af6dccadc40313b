package telemetry

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/opd-ai/go-dogfight/pkg/event"
)

const standardGravity = 9.80665

// Source provides the current snapshots of every aircraft
type Source interface {
	Snapshots() []Snapshot
}

// Exporter bundles the Prometheus metrics for the simulation. Gauges are
// refreshed from a Source after every completed tick.
type Exporter struct {
	gatherer prometheus.Gatherer
	source   Source
	subs     []*event.Subscription

	Ticks      prometheus.Counter
	TickFaults *prometheus.CounterVec
	Aircraft   prometheus.Gauge

	Throttle      *prometheus.GaugeVec
	Airspeed      *prometheus.GaugeVec
	Altitude      *prometheus.GaugeVec
	AngleOfAttack *prometheus.GaugeVec
	GLoad         *prometheus.GaugeVec
	Thrust        *prometheus.GaugeVec
	Drag          *prometheus.GaugeVec
}

// NewExporter registers the simulation metrics against reg, defaulting to
// the global Prometheus registry when nil.
func NewExporter(reg prometheus.Registerer, source Source) (*Exporter, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	perAircraft := func(name, help string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: help}, []string{"aircraft", "id"})
	}

	e := &Exporter{
		gatherer: gatherer,
		source:   source,
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dogfight_ticks_total",
			Help: "Total number of completed simulation ticks.",
		}),
		TickFaults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dogfight_tick_faults_total",
			Help: "Force generator faults, labeled by aircraft id.",
		}, []string{"id"}),
		Aircraft: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dogfight_aircraft",
			Help: "Current number of simulated aircraft.",
		}),
		Throttle:      perAircraft("dogfight_aircraft_throttle_ratio", "Smoothed throttle level in [0, 1]."),
		Airspeed:      perAircraft("dogfight_aircraft_airspeed_mps", "World frame speed in m/s."),
		Altitude:      perAircraft("dogfight_aircraft_altitude_meters", "Height above the world origin."),
		AngleOfAttack: perAircraft("dogfight_aircraft_aoa_degrees", "Pitch-plane angle of attack in degrees."),
		GLoad:         perAircraft("dogfight_aircraft_g_load", "Body frame vertical acceleration in g."),
		Thrust:        perAircraft("dogfight_aircraft_thrust_newton", "Thrust submitted during the last tick."),
		Drag:          perAircraft("dogfight_aircraft_drag_newton", "Directional drag submitted during the last tick."),
	}

	collectors := []prometheus.Collector{
		e.Ticks, e.TickFaults, e.Aircraft,
		e.Throttle, e.Airspeed, e.Altitude, e.AngleOfAttack, e.GLoad, e.Thrust, e.Drag,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register telemetry metrics: %w", err)
		}
	}

	return e, nil
}

// Observe refreshes the per-aircraft gauges from snapshots
func (e *Exporter) Observe(snapshots []Snapshot) {
	e.Aircraft.Set(float64(len(snapshots)))
	for _, s := range snapshots {
		labels := []string{s.Name, strconv.FormatUint(s.ID, 10)}
		e.Throttle.WithLabelValues(labels...).Set(s.Throttle)
		e.Airspeed.WithLabelValues(labels...).Set(s.Airspeed())
		e.Altitude.WithLabelValues(labels...).Set(s.Altitude())
		e.AngleOfAttack.WithLabelValues(labels...).Set(mgl64.RadToDeg(s.AngleOfAttack))
		e.GLoad.WithLabelValues(labels...).Set(s.GLoad(standardGravity))
		e.Thrust.WithLabelValues(labels...).Set(s.Forces.Thrust.Len())
		e.Drag.WithLabelValues(labels...).Set(s.Forces.Drag.Len())
	}
}

// Forget drops the per-aircraft series of a removed aircraft
func (e *Exporter) Forget(name string, id uint64) {
	labels := []string{name, strconv.FormatUint(id, 10)}
	for _, g := range []*prometheus.GaugeVec{e.Throttle, e.Airspeed, e.Altitude, e.AngleOfAttack, e.GLoad, e.Thrust, e.Drag} {
		g.DeleteLabelValues(labels...)
	}
	e.TickFaults.DeleteLabelValues(labels[1])
}

// Attach subscribes the exporter to simulation events
func (e *Exporter) Attach(bus *event.Bus) {
	e.subs = append(e.subs,
		bus.Subscribe(event.TickCompleted, func(event.Event) {
			e.Ticks.Inc()
			if e.source != nil {
				e.Observe(e.source.Snapshots())
			}
		}),
		bus.Subscribe(event.TickFault, func(ev event.Event) {
			if f, ok := ev.(*event.FaultEvent); ok {
				e.TickFaults.WithLabelValues(strconv.FormatUint(f.AircraftID, 10)).Inc()
			}
		}),
		bus.Subscribe(event.AircraftRemoved, func(ev event.Event) {
			if a, ok := ev.(*event.AircraftEvent); ok {
				e.Forget(a.Name, a.AircraftID)
			}
		}),
	)
}

// Detach cancels the event subscriptions made by Attach
func (e *Exporter) Detach() {
	for _, s := range e.subs {
		s.Cancel()
	}
	e.subs = nil
}

// Handler serves the registered metrics in the Prometheus text format
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.gatherer, promhttp.HandlerOpts{})
}
