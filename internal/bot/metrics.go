package bot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus метрики движка
var (
	tokensDiscovered = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sniper",
		Subsystem: "discovery",
		Name:      "tokens_total",
		Help:      "Обнаруженные токены по источникам",
	}, []string{"source"})

	tokensFiltered = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sniper",
		Subsystem: "discovery",
		Name:      "filtered_total",
		Help:      "Токены отброшенные фильтром качества",
	}, []string{"source", "reason"})

	alertsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sniper",
		Subsystem: "alerts",
		Name:      "sent_total",
		Help:      "Попытки отправки алертов по типу и результату",
	}, []string{"type", "result"})

	alertsSuppressed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sniper",
		Subsystem: "alerts",
		Name:      "suppressed_total",
		Help:      "Алерты подавленные cooldown гейтом",
	})

	tradesExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sniper",
		Subsystem: "trading",
		Name:      "trades_total",
		Help:      "Исполненные сделки по стороне и результату",
	}, []string{"side", "result"})

	venueFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sniper",
		Subsystem: "trading",
		Name:      "venue_fallbacks_total",
		Help:      "Переключения на запасной маршрут",
	}, []string{"route"})

	submitRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sniper",
		Subsystem: "trading",
		Name:      "submit_retries_total",
		Help:      "Повторы отправки транзакции",
	})

	openPositions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "sniper",
		Subsystem: "positions",
		Name:      "open",
		Help:      "Текущее количество открытых позиций",
	})

	positionsClosed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sniper",
		Subsystem: "positions",
		Name:      "closed_total",
		Help:      "Закрытые позиции по причинам",
	}, []string{"reason"})

	monitorTicks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sniper",
		Subsystem: "monitor",
		Name:      "ticks_total",
		Help:      "Выполненные тики монитора позиций",
	})

	monitorSkips = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sniper",
		Subsystem: "monitor",
		Name:      "overlap_skips_total",
		Help:      "Тики пропущенные из-за незавершённого предыдущего",
	})

	snapshotWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sniper",
		Subsystem: "snapshot",
		Name:      "writes_total",
		Help:      "Записи снапшота по результату",
	}, []string{"result"})
)
