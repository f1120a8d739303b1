package app

import (
	"encoding/json"
	"time"

	abcitypes "github.com/cometbft/cometbft/abci/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/calehh/hac-election/tx"
	"github.com/calehh/hac-election/types"
)

type appMetrics struct {
	commands *prometheus.CounterVec
	duration *prometheus.HistogramVec
	volume   *prometheus.CounterVec
}

func newAppMetrics(reg prometheus.Registerer) *appMetrics {
	factory := promauto.With(reg)
	return &appMetrics{
		commands: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "election",
			Subsystem: "app",
			Name:      "commands_total",
			Help:      "Executed commands by type and result code",
		}, []string{"type", "result"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "election",
			Subsystem: "app",
			Name:      "command_duration_seconds",
			Help:      "Command execution time",
			Buckets:   prometheus.DefBuckets,
		}, []string{"type"}),
		volume: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "election",
			Subsystem: "app",
			Name:      "trade_volume_microcoins_total",
			Help:      "Coins moved by bond trades",
		}, []string{"side"}),
	}
}

func (m *appMetrics) observe(t tx.CommandType, res *abcitypes.ExecTxResult, elapsed time.Duration) {
	m.commands.WithLabelValues(t.String(), types.CodeName(res.Code)).Inc()
	m.duration.WithLabelValues(t.String()).Observe(elapsed.Seconds())
	if res.Code != types.CodeOK {
		return
	}
	for _, ev := range res.Events {
		if ev.Type != types.EventTradeType {
			continue
		}
		if trade := types.DecodeEventTrade(ev); trade != nil {
			m.volume.WithLabelValues(trade.Side).Add(float64(trade.Coins))
		}
	}
}

// snapshot renders counters for the status query.
func (m *appMetrics) snapshot(reg prometheus.Gatherer) (json.RawMessage, error) {
	families, err := reg.Gather()
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64)
	for _, f := range families {
		if f.GetType().String() != "COUNTER" {
			continue
		}
		var sum float64
		for _, metric := range f.GetMetric() {
			sum += metric.GetCounter().GetValue()
		}
		out[f.GetName()] = sum
	}
	return json.Marshal(out)
}
