package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CaptureLaunches counts launch attempts per camera and outcome.
	CaptureLaunches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "camrec_capture_launch_total",
		Help: "Capture process launch attempts by camera and result",
	}, []string{"camera", "result"})

	// CaptureExits counts unexpected capture exits observed by the poll loop.
	CaptureExits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "camrec_capture_exit_total",
		Help: "Unexpected capture process exits by camera",
	}, []string{"camera"})

	// CapturesRunning is the size of the process registry.
	CapturesRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "camrec_captures_running",
		Help: "Capture processes currently registered with the supervisor",
	})

	// ProbeAttempts counts reachability probe outcomes.
	ProbeAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "camrec_probe_wait_total",
		Help: "Reachability waits by camera and result",
	}, []string{"camera", "result"})

	// ForcedKills counts captures that outlived the shutdown grace period.
	ForcedKills = promauto.NewCounter(prometheus.CounterOpts{
		Name: "camrec_shutdown_forced_kill_total",
		Help: "Capture processes killed after the shutdown grace period",
	})
)

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

// IncLaunch records a launch attempt outcome.
func IncLaunch(camera string, ok bool) {
	CaptureLaunches.WithLabelValues(camera, result(ok)).Inc()
}

// IncExit records an unexpected exit.
func IncExit(camera string) {
	CaptureExits.WithLabelValues(camera).Inc()
}

// IncProbe records a reachability wait outcome.
func IncProbe(camera string, ok bool) {
	ProbeAttempts.WithLabelValues(camera, result(ok)).Inc()
}

// SetRunning publishes the registry size.
func SetRunning(n int) {
	CapturesRunning.Set(float64(n))
}
