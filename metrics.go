package bgapi

import "github.com/prometheus/client_golang/prometheus"

// Metrics are package-level Prometheus counters describing engine
// traffic: frames sent and received, bytes discarded while
// resynchronizing, CRC failures, and command failures. They're
// registered lazily so importing the package never forces a
// registration against the default registry on its own.
var (
	framesSentTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "bgapi",
		Name:      "frames_sent_total",
		Help:      "Number of BGAPI command frames written to the transport.",
	})
	framesReceivedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bgapi",
		Name:      "frames_received_total",
		Help:      "Number of BGAPI frames decoded from the transport, by message type.",
	}, []string{"type"})
	staleBytesDiscardedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "bgapi",
		Name:      "stray_bytes_discarded_total",
		Help:      "Bytes discarded by the inbound loop's device-id synchronization heuristic.",
	})
	framerCRCFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "bgapi",
		Name:      "framer_crc_failures_total",
		Help:      "Frames dropped by the reliable framer due to a CRC-4 or CRC-8 mismatch.",
	})
	commandsFailedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "bgapi",
		Name:      "commands_failed_total",
		Help:      "Commands whose response carried a non-zero errorcode.",
	})
)

// RegisterMetrics registers the package's counters against reg. Call
// once at process startup; registering twice against the same registry
// returns prometheus.AlreadyRegisteredError.
func RegisterMetrics(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		framesSentTotal,
		framesReceivedTotal,
		staleBytesDiscardedTotal,
		framerCRCFailuresTotal,
		commandsFailedTotal,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
