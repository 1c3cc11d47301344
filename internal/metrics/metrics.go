// Package metrics holds the prometheus collectors of the wallet. A nil
// *Metrics is valid and records nothing.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "zwallet"

// Result labels.
const (
	ResultOK       = "ok"
	ResultError    = "error"
	ResultRejected = "rejected"
)

type Metrics struct {
	derivations *prometheus.CounterVec
	channel     *prometheus.CounterVec
	operations  *prometheus.CounterVec
	persistence *prometheus.CounterVec
	syncErrors  *prometheus.CounterVec
	snapshots   prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		derivations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "derivations_total",
			Help:      "Key derivation calls by operation and result.",
		}, []string{"op", "result"}),
		channel: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channel_messages_total",
			Help:      "Channel messages encrypted or decrypted, by result.",
		}, []string{"direction", "result"}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "send_operations_total",
			Help:      "Send and shield operations by kind and result.",
		}, []string{"kind", "result"}),
		persistence: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persistence_writes_total",
			Help:      "Wallet record writes by result.",
		}, []string{"result"}),
		syncErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "synchronizer_errors_total",
			Help:      "Errors reported by the synchronizer, by kind.",
		}, []string{"kind"}),
		snapshots: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_emitted_total",
			Help:      "Wallet snapshots emitted after throttling.",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.derivations, m.channel, m.operations, m.persistence, m.syncErrors, m.snapshots,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}

// Derivation counts one derivation call.
func (m *Metrics) Derivation(op string, err error) {
	if m == nil {
		return
	}
	m.derivations.WithLabelValues(op, result(err)).Inc()
}

// Channel counts one encrypt or decrypt.
func (m *Metrics) Channel(direction string, err error) {
	if m == nil {
		return
	}
	m.channel.WithLabelValues(direction, result(err)).Inc()
}

// Operation counts one send or shield outcome.
func (m *Metrics) Operation(kind, res string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(kind, res).Inc()
}

func (m *Metrics) Persistence(err error) {
	if m == nil {
		return
	}
	m.persistence.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) SyncError(kind string) {
	if m == nil {
		return
	}
	m.syncErrors.WithLabelValues(kind).Inc()
}

func (m *Metrics) Snapshot() {
	if m == nil {
		return
	}
	m.snapshots.Inc()
}
