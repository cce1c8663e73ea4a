// Package metrics exposes Prometheus instruments for the protocol session.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "crowd_canvas"

var (
	MessagesReceivedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_received_total",
		Help:      "Decoded controller messages by request type",
	}, []string{"type"})

	DecodeErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "decode_errors_total",
		Help:      "Framed payloads dropped because they could not be decoded",
	})

	ResponsesSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "responses_sent_total",
		Help:      "Responses written to the controller by response type",
	}, []string{"type"})

	EffectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "effects_total",
		Help:      "Effect requests by code and reported status",
	}, []string{"code", "status"})

	TimedEffectTicksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "timed_effect_ticks_total",
		Help:      "Ticks executed by timed effects",
	}, []string{"code"})

	SessionState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "session_state",
		Help:      "1 for the current session state, 0 otherwise",
	}, []string{"state"})
)

// IncMessageReceived records a decoded inbound message.
func IncMessageReceived(requestType string) {
	MessagesReceivedTotal.WithLabelValues(requestType).Inc()
}

// IncDecodeError records a dropped payload.
func IncDecodeError() {
	DecodeErrorsTotal.Inc()
}

// IncResponseSent records a response written to the socket.
func IncResponseSent(responseType string) {
	ResponsesSentTotal.WithLabelValues(responseType).Inc()
}

// IncEffect records the status reported for an effect code.
func IncEffect(code, status string) {
	if code == "" {
		code = "unknown"
	}
	EffectsTotal.WithLabelValues(code, status).Inc()
}

// IncTimedEffectTick records one tick of a timed effect.
func IncTimedEffectTick(code string) {
	TimedEffectTicksTotal.WithLabelValues(code).Inc()
}

// SetSessionState marks current as the only active state among all.
func SetSessionState(current string, all []string) {
	for _, s := range all {
		v := 0.0
		if s == current {
			v = 1
		}
		SessionState.WithLabelValues(s).Set(v)
	}
}
