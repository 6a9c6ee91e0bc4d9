package tracing

// Canonical event names emitted by the reconciler and the standalone
// dorch binaries as span events.
const (
	EventReconcileBootstrap     = "reconcile.bootstrap"
	EventReconcilePodCreated    = "reconcile.pod_created"
	EventReconcilePodDeleted    = "reconcile.pod_deleted"
	EventReconcileSpecHashDrift = "reconcile.spec_hash_drift"
	EventReconcilePodReady      = "reconcile.pod_ready"

	EventSRPSessionStarted  = "srp.session.started"
	EventSRPSessionVerified = "srp.session.verified"
	EventSRPSessionExpired  = "srp.session.expired"

	EventMeshProxyPeerJoined = "meshproxy.peer.joined"
	EventMeshProxyPeerLeft   = "meshproxy.peer.left"

	EventDispatchRowClaimed  = "dispatch.row.claimed"
	EventDispatchRowEmpty    = "dispatch.row.empty"
	EventDispatchRowPublished = "dispatch.row.published"

	EventAnalysisUnitStarted   = "analysis.unit.started"
	EventAnalysisUnitCompleted = "analysis.unit.completed"
	EventAnalysisContextTruncated = "analysis.context.truncated"

	EventGatewayConnectionAuthenticated = "gateway.connection.authenticated"
	EventGatewayConnectionClosed        = "gateway.connection.closed"
	EventGatewayRateLimitDenied         = "gateway.rate_limit.denied"
)

// Log field keys used alongside the event names in structured log lines.
const (
	FieldEvent     = "event"
	FieldError     = "error"
	FieldCollector = "collector"
	FieldSpanName  = "span_name"
)
