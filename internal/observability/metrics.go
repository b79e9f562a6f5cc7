package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_http_requests_total",
			Help: "Total number of HTTP requests processed by the chat service.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	wsActiveConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chat_ws_active_connections",
			Help: "Number of active websocket connections.",
		},
		[]string{"kind"},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_ws_events_total",
			Help: "Total number of websocket events.",
		},
		[]string{"kind", "event"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)

	MessagesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_sent_total",
			Help: "Messages appended to conversation streams.",
		},
		[]string{"kind"},
	)
	SendFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_send_failures_total",
			Help: "Send pipeline failures by stage.",
		},
		[]string{"stage"},
	)
	FanoutWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_fanout_writes_total",
			Help: "Chat index fan-out writes by result.",
		},
		[]string{"result"},
	)
	LiveSubscriptions = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chat_live_subscriptions",
			Help: "Open live subscriptions by kind.",
		},
		[]string{"kind"},
	)
	ChatListRecompute = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chat_list_recompute_seconds",
			Help:    "Time spent merging chat list sources.",
			Buckets: prometheus.DefBuckets,
		},
	)
	AvatarResolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_avatar_resolutions_total",
			Help: "Avatar resolutions by outcome.",
		},
		[]string{"source"},
	)
	FriendRequestTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_friend_request_transitions_total",
			Help: "Friend request state transitions.",
		},
		[]string{"transition"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		wsActiveConnections,
		wsEventsTotal,
		amqpPublishErrorsTotal,
		MessagesSent,
		SendFailures,
		FanoutWrites,
		LiveSubscriptions,
		ChatListRecompute,
		AvatarResolutions,
		FriendRequestTransitions,
	)
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func IncWSActive(kind string) {
	wsActiveConnections.WithLabelValues(kind).Inc()
}

func DecWSActive(kind string) {
	wsActiveConnections.WithLabelValues(kind).Dec()
}

func IncWSEvent(kind, event string) {
	wsEventsTotal.WithLabelValues(kind, event).Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
