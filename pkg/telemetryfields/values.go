package telemetryfields

import "strings"

// This file contains the attribute key names and enumeration values used by
// pkg/tracing and pkg/metrics. Keys are canonical dot-separated names;
// enumeration values are canonical snake_case so spanmetrics dimensions and
// Grafana queries stay stable across releases.

const (
	// Attribute (span/log field) keys.
	FieldComponent         = "dorch.component"
	FieldGameName          = "dorch.game.name"
	FieldGameNamespace     = "dorch.game.namespace"
	FieldReconcileAction   = "dorch.reconcile.action"
	FieldReconcileTrigger  = "dorch.reconcile.trigger"
	FieldReconcileRequeue  = "dorch.reconcile.requeue"
	FieldErrorType         = "dorch.error.type"
	FieldSRPResult         = "dorch.srp.result"
	FieldSRPUsername       = "dorch.srp.username"
	FieldDispatchPipeline  = "dorch.dispatch.pipeline"
	FieldAnalysisOutcome   = "dorch.analysis.outcome"
	FieldAnalysisVariant   = "dorch.analysis.variant"
	FieldWSConnectionID    = "dorch.ws.connection_id"
	FieldPartyID           = "dorch.party.id"
	FieldRateLimitKey      = "dorch.ratelimit.key"
	FieldMeshProxyRoom     = "dorch.meshproxy.room"
	FieldK8sPodName        = "k8s.pod.name"
	FieldK8sNodeName       = "k8s.node.name"
	FieldK8sNamespaceName  = "k8s.namespace.name"
	FieldServiceName       = "service.name"
	FieldServiceNamespace  = "service.namespace"

	// Error types.
	ErrorTypeAPICall          = "api_call_error"
	ErrorTypeInternal         = "internal_error"
	ErrorTypeParameter        = "parameter_error"
	ErrorTypeNotImplemented   = "not_implemented_error"
	ErrorTypeResourceNotReady = "resource_not_ready"
	ErrorTypeUnauthorized     = "unauthorized"

	// SRP handshake results.
	SRPResultSuccess    = "success"
	SRPResultBadProof   = "bad_proof"
	SRPResultUnknownUser = "unknown_user"
	SRPResultExpired    = "expired"

	// Analysis job outcomes.
	AnalysisOutcomeCompleted = "completed"
	AnalysisOutcomeFailed    = "failed"
	AnalysisOutcomeTruncated = "truncated"
)

// NormalizeErrorType maps many possible error-type string formats into a
// canonical lower_snake_case enumeration.
func NormalizeErrorType(raw string) string {
	switch raw {
	case "ApiCallError", "apiCallError", "api_call_error", "APICallError":
		return ErrorTypeAPICall
	case "InternalError", "internalError", "internal_error":
		return ErrorTypeInternal
	case "ParameterError", "parameterError", "parameter_error":
		return ErrorTypeParameter
	case "NotImplementedError", "notImplementedError", "not_implemented_error":
		return ErrorTypeNotImplemented
	case "ResourceNotReady", "resourceNotReady", "resource_not_ready":
		return ErrorTypeResourceNotReady
	case "Unauthorized", "unauthorized":
		return ErrorTypeUnauthorized
	default:
		res := normalizeDimensionValue(raw)
		res = strings.ReplaceAll(res, "-", "_")
		return res
	}
}

// normalizeDimensionValue converts human-friendly names into a lower-case
// string with whitespace collapsed to underscores.
func normalizeDimensionValue(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	lower := strings.ToLower(trimmed)
	if strings.ContainsAny(lower, " \t") {
		lower = strings.Join(strings.Fields(lower), "_")
	}
	return lower
}
