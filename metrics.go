package camconfig

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels of camconfig_reconfigure_total besides Outcome.String.
const outcomePanic = "panic"

// Result labels of camconfig_open_attempts_total.
const (
	attemptSuccess         = "success"
	attemptGone            = "gone"
	attemptBusy            = "busy"
	attemptOverconstrained = "overconstrained"
	attemptError           = "error"
	attemptSkipped         = "skipped"
)

type metrics struct {
	reconfigures    *prometheus.CounterVec
	openAttempts    *prometheus.CounterVec
	watchdogRunning prometheus.Gauge
}

// newMetrics creates the collectors and registers them on reg when it is
// not nil.
func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		reconfigures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "camconfig_reconfigure_total",
			Help: "Reconfigure attempts by outcome.",
		}, []string{"outcome"}),
		openAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "camconfig_open_attempts_total",
			Help: "Stream open attempts by result.",
		}, []string{"result"}),
		watchdogRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "camconfig_watchdog_running",
			Help: "1 while the resume watchdog is retrying.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.reconfigures, m.openAttempts, m.watchdogRunning)
	}
	return m
}
