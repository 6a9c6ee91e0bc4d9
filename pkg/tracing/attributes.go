/*
Copyright 2024 The Kruise Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package tracing

import (
	"strings"

	"github.com/beebs-dev/dorch-sub000/pkg/telemetryfields"
	"go.opentelemetry.io/otel/attribute"
)

var (
	componentKey        = attribute.Key(telemetryfields.FieldComponent)
	gameNameKey         = attribute.Key(telemetryfields.FieldGameName)
	gameNamespaceKey    = attribute.Key(telemetryfields.FieldGameNamespace)
	errorTypeKey        = attribute.Key(telemetryfields.FieldErrorType)
	reconcileTriggerKey = attribute.Key(telemetryfields.FieldReconcileTrigger)
	reconcileActionKey  = attribute.Key(telemetryfields.FieldReconcileAction)
	reconcileRequeueKey = attribute.Key(telemetryfields.FieldReconcileRequeue)
	k8sNamespaceKey     = attribute.Key(telemetryfields.FieldK8sNamespaceName)
	srpResultKey        = attribute.Key(telemetryfields.FieldSRPResult)
	srpUsernameKey      = attribute.Key(telemetryfields.FieldSRPUsername)
	dispatchPipelineKey = attribute.Key(telemetryfields.FieldDispatchPipeline)
	analysisOutcomeKey  = attribute.Key(telemetryfields.FieldAnalysisOutcome)
	analysisVariantKey  = attribute.Key(telemetryfields.FieldAnalysisVariant)
	wsConnectionIDKey   = attribute.Key(telemetryfields.FieldWSConnectionID)
	partyIDKey          = attribute.Key(telemetryfields.FieldPartyID)
	rateLimitKeyKey     = attribute.Key(telemetryfields.FieldRateLimitKey)
	meshProxyRoomKey    = attribute.Key(telemetryfields.FieldMeshProxyRoom)
)

// AttrComponent returns a span attribute naming which dorch binary emits the span
// (reconciler, srpserver, meshproxy, dispatcher, worker, gateway).
func AttrComponent(component string) attribute.KeyValue {
	return componentKey.String(component)
}

// AttrGameName returns a span attribute for the Game resource name.
func AttrGameName(name string) attribute.KeyValue {
	return gameNameKey.String(name)
}

// AttrGameNamespace returns a span attribute for the Game resource namespace.
func AttrGameNamespace(namespace string) attribute.KeyValue {
	return gameNamespaceKey.String(namespace)
}

// AttrErrorType returns a span attribute for the classified error type.
func AttrErrorType(errType string) attribute.KeyValue {
	return errorTypeKey.String(telemetryfields.NormalizeErrorType(errType))
}

// AttrReconcileTrigger returns a span attribute for the reconcile trigger
// (game.updated/pod.updated/pod.deleted/resync).
func AttrReconcileTrigger(trigger string) attribute.KeyValue {
	return reconcileTriggerKey.String(trigger)
}

// AttrReconcileAction returns a span attribute for the decided reconcile
// action (create_pod/delete_pod/pending/starting/active/terminating/error).
func AttrReconcileAction(action string) attribute.KeyValue {
	return reconcileActionKey.String(action)
}

// AttrReconcileRequeue indicates whether the reconcile will requeue itself.
func AttrReconcileRequeue(requeue bool) attribute.KeyValue {
	return reconcileRequeueKey.Bool(requeue)
}

// AttrK8sNamespaceName returns a span attribute for k8s.namespace.name.
func AttrK8sNamespaceName(namespace string) attribute.KeyValue {
	return k8sNamespaceKey.String(namespace)
}

// AttrK8sPodName returns a span attribute for k8s.pod.name.
func AttrK8sPodName(podName string) attribute.KeyValue {
	return attribute.Key(telemetryfields.FieldK8sPodName).String(podName)
}

// AttrServiceName returns a span attribute for service.name.
func AttrServiceName(name string) attribute.KeyValue {
	return attribute.Key(telemetryfields.FieldServiceName).String(name)
}

// AttrServiceNamespace returns a span attribute for service.namespace.
func AttrServiceNamespace(ns string) attribute.KeyValue {
	return attribute.Key(telemetryfields.FieldServiceNamespace).String(ns)
}

// AttrSRPResult returns a span attribute for an SRP handshake outcome.
func AttrSRPResult(result string) attribute.KeyValue {
	return srpResultKey.String(result)
}

// AttrSRPUsername returns a span attribute naming the account attempting an
// SRP handshake. Usernames are opaque account identifiers, not emails, so
// this is safe to carry as a low-cardinality-ish debug dimension.
func AttrSRPUsername(username string) attribute.KeyValue {
	return srpUsernameKey.String(username)
}

// AttrDispatchPipeline returns a span attribute for the work-queue pipeline
// a dispatch/poll operation concerns.
func AttrDispatchPipeline(pipeline string) attribute.KeyValue {
	return dispatchPipelineKey.String(pipeline)
}

// AttrAnalysisOutcome returns a span attribute for an analysis job's
// terminal outcome (completed/failed/truncated).
func AttrAnalysisOutcome(outcome string) attribute.KeyValue {
	return analysisOutcomeKey.String(outcome)
}

// AttrAnalysisVariant returns a span attribute naming which analyzer variant
// processed a unit of work (wad/map/etc).
func AttrAnalysisVariant(variant string) attribute.KeyValue {
	return analysisVariantKey.String(variant)
}

// AttrWSConnectionID returns a span attribute identifying a gateway
// connection.
func AttrWSConnectionID(id string) attribute.KeyValue {
	return wsConnectionIDKey.String(id)
}

// AttrPartyID returns a span attribute identifying a party.
func AttrPartyID(id string) attribute.KeyValue {
	return partyIDKey.String(id)
}

// AttrRateLimitKey returns a span attribute naming the rate-limit bucket
// key a check was evaluated against.
func AttrRateLimitKey(key string) attribute.KeyValue {
	return rateLimitKeyKey.String(key)
}

// AttrMeshProxyRoom returns a span attribute identifying a mesh-proxy room.
func AttrMeshProxyRoom(room string) attribute.KeyValue {
	return meshProxyRoomKey.String(room)
}

// AttrsForGame returns the attribute pair naming a Game resource.
func AttrsForGame(namespace, name string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 2)
	if namespace != "" {
		attrs = append(attrs, AttrGameNamespace(namespace))
	}
	if name != "" {
		attrs = append(attrs, AttrGameName(name))
	}
	return attrs
}

// normalizeDimensionValue converts human-friendly names into a lower-case,
// underscore-joined string so metric dimensions remain stable.
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
