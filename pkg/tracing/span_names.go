package tracing

// Span names, one per traced unit of work across the dorch binaries.
// Keep these in the verb-object style used across the project so
// collectors and tests can filter using stable, centralized values.
const (
	// Game reconciler spans.
	SpanReconcileGame      = "reconcile game"
	SpanReconcileCreatePod = "create game pod"
	SpanReconcileDeletePod = "delete game pod"

	// SRP authentication server spans.
	SpanSRPHandshake   = "srp handshake"
	SpanSRPVerifyProof = "srp verify proof"

	// UDP/mesh proxy spans.
	SpanMeshProxyJoinRoom  = "meshproxy join room"
	SpanMeshProxyRelay     = "meshproxy relay datagram"
	SpanMeshProxyLeaveRoom = "meshproxy leave room"

	// Work-dispatch queue spans.
	SpanDispatchPoll    = "dispatch poll"
	SpanDispatchPublish = "dispatch publish"
	SpanDispatchClaim   = "dispatch claim"

	// Analysis worker spans.
	SpanAnalysisProcessUnit = "analysis process unit"
	SpanAnalysisTruncate    = "analysis truncate context"
	SpanAnalysisInvokeModel = "analysis invoke model"

	// WebSocket gateway spans.
	SpanGatewayHandshake   = "gateway handshake"
	SpanGatewayFanOut      = "gateway fan out"
	SpanGatewayRateLimit   = "gateway rate limit check"
	SpanGatewayAcquireLock = "gateway acquire lock"
)
