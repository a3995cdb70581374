package monitoring

import (
	"tempvoice/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type PrometheusCollector struct {
	factory promauto.Factory

	roomsCreated     *prometheus.CounterVec
	roomsDeleted     *prometheus.CounterVec
	roomLifetime     prometheus.Histogram
	cooldownDenied   *prometheus.CounterVec
	platformFailures *prometheus.CounterVec
	ownershipChanges *prometheus.CounterVec

	bridgeConnected      prometheus.Gauge
	bridgeFrames         *prometheus.CounterVec
	bridgeFramesRejected *prometheus.CounterVec
}

// NewPrometheusCollector registers the lifecycle metrics with reg, or with
// the default registry when reg is nil.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusCollector{
		factory: factory,

		roomsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tempvoice_rooms_created_total",
			Help: "Total number of temporary rooms created",
		}, []string{"guild_id"}),

		roomsDeleted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tempvoice_rooms_deleted_total",
			Help: "Total number of temporary rooms deleted",
		}, []string{"guild_id"}),

		roomLifetime: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "tempvoice_room_lifetime_seconds",
			Help:    "Lifetime of temporary rooms from creation to deletion",
			Buckets: prometheus.ExponentialBuckets(30, 2, 12),
		}),

		cooldownDenied: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tempvoice_cooldown_denied_total",
			Help: "Room creations refused by the cooldown gate",
		}, []string{"guild_id"}),

		platformFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tempvoice_platform_failures_total",
			Help: "Failed platform commands by operation",
		}, []string{"operation"}),

		ownershipChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tempvoice_ownership_changes_total",
			Help: "Room ownership changes by kind",
		}, []string{"kind"}),

		bridgeConnected: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tempvoice_bridge_connected",
			Help: "1 while a platform gateway is connected",
		}),

		bridgeFrames: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tempvoice_bridge_frames_total",
			Help: "Frames received from the platform gateway by type",
		}, []string{"type"}),

		bridgeFramesRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tempvoice_bridge_frames_rejected_total",
			Help: "Gateway frames rejected by reason",
		}, []string{"reason"}),
	}
}

// TrackActiveRooms exposes the registry size as a gauge.
func (p *PrometheusCollector) TrackActiveRooms(count func() int) {
	p.factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "tempvoice_rooms_active",
		Help: "Temporary rooms currently tracked",
	}, func() float64 { return float64(count()) })
}

func (p *PrometheusCollector) RoomCreated(guildID domain.GuildID) {
	p.roomsCreated.WithLabelValues(guildID.String()).Inc()
}

func (p *PrometheusCollector) RoomDeleted(guildID domain.GuildID, lifetime float64) {
	p.roomsDeleted.WithLabelValues(guildID.String()).Inc()
	if lifetime > 0 {
		p.roomLifetime.Observe(lifetime)
	}
}

func (p *PrometheusCollector) CooldownDenied(guildID domain.GuildID) {
	p.cooldownDenied.WithLabelValues(guildID.String()).Inc()
}

func (p *PrometheusCollector) PlatformFailure(operation string) {
	p.platformFailures.WithLabelValues(operation).Inc()
}

func (p *PrometheusCollector) OwnershipChanged(kind string) {
	p.ownershipChanges.WithLabelValues(kind).Inc()
}

func (p *PrometheusCollector) BridgeConnected(connected bool) {
	if connected {
		p.bridgeConnected.Set(1)
		return
	}
	p.bridgeConnected.Set(0)
}

func (p *PrometheusCollector) FrameReceived(frameType string) {
	p.bridgeFrames.WithLabelValues(frameType).Inc()
}

func (p *PrometheusCollector) FrameRejected(reason string) {
	p.bridgeFramesRejected.WithLabelValues(reason).Inc()
}
