/*
Copyright 2022 The Kruise Authors.

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

package reconciler

import (
	"fmt"
	"time"

	corev1 "k8s.io/api/core/v1"

	gamev1alpha1 "github.com/beebs-dev/dorch-sub000/apis/v1alpha1"
	"github.com/beebs-dev/dorch-sub000/pkg/util"
)

// actionKind is the closed set of actions spec.md §4.1 names.
type actionKind int

const (
	actionNoOp actionKind = iota
	actionCreatePod
	actionDeletePod
	actionPending
	actionStarting
	actionActive
	actionTerminating
	actionError
	actionRequeue
)

// action is the single decision the read phase produces for one reconcile.
type action struct {
	kind     actionKind
	reason   string
	podName  string
	requeue  time.Duration
}

func noOp() action                      { return action{kind: actionNoOp} }
func createPod() action                 { return action{kind: actionCreatePod} }
func deletePod(reason string) action    { return action{kind: actionDeletePod, reason: reason} }
func pending(reason string) action      { return action{kind: actionPending, reason: reason} }
func starting(reason string) action     { return action{kind: actionStarting, reason: reason} }
func active(podName string) action      { return action{kind: actionActive, podName: podName} }
func terminating(reason string) action  { return action{kind: actionTerminating, reason: reason} }
func errAction(reason string) action    { return action{kind: actionError, reason: reason} }
func requeue(d time.Duration) action    { return action{kind: actionRequeue, requeue: d} }

// unrecoverableWaitingReasons are waiting{reason} values that can never
// self-heal; the pod must be recreated.
var unrecoverableWaitingReasons = map[string]bool{
	"ImagePullBackOff":           true,
	"ErrImageNeverPull":          true,
	"RegistryUnavailable":        true,
	"CreateSandboxError":         true,
	"ErrImagePull":               true,
	"InvalidImageName":           true,
	"CreateContainerConfigError": true,
	"CreateContainerError":       true,
	"RunContainerError":         true,
}

const (
	podYoungEnoughToRequeue = 10 * time.Second
	probeInterval           = 15 * time.Second
)

// decide is the read phase: a pure function from observed state to a single
// action, performing no writes. It implements spec.md §4.1's decision
// procedure in order; the first matching step wins.
func decide(game *gamev1alpha1.Game, pod *corev1.Pod, specHash string, now time.Time) action {
	// 1. Game deletion in progress: let the orchestrator finalize.
	if game.DeletionTimestamp != nil {
		return requeue(2 * time.Second)
	}

	// 2. No owned pod.
	if pod == nil {
		return createPod()
	}

	// 3. Pod terminating.
	if pod.DeletionTimestamp != nil {
		return terminating("pod is terminating")
	}

	// 4. Spec-hash drift.
	if pod.Annotations[gamev1alpha1.GameSpecHashKey] != specHash {
		return deletePod("hash mismatch")
	}

	// 5. Phase gate.
	switch pod.Status.Phase {
	case corev1.PodRunning:
		// fall through to container gate
	case corev1.PodPending:
		if unschedulable(pod) {
			return errAction("pod is unschedulable")
		}
		return pending("waiting for pod to be scheduled")
	case corev1.PodSucceeded, corev1.PodFailed:
		return deletePod("pod unexpectedly terminated")
	case corev1.PodUnknown:
		return errAction("pod phase is unknown")
	case "":
		if now.Sub(pod.CreationTimestamp.Time) < podYoungEnoughToRequeue {
			return requeue(3 * time.Second)
		}
		return errAction("pod has no phase")
	default:
		return errAction("pod phase is unknown")
	}

	// 6. Container gate: init containers, then normal containers.
	if a, ok := containerGate(pod.Status.InitContainerStatuses, true); ok {
		return a
	}
	if a, ok := containerGate(pod.Status.ContainerStatuses, false); ok {
		return a
	}

	// 7. Ready condition.
	_, readyCond := util.GetPodConditionFromList(pod.Status.Conditions, corev1.PodReady)
	if readyCond == nil {
		return starting("waiting for readiness")
	}
	if readyCond.Status != corev1.ConditionTrue {
		msg := readyCond.Message
		if msg == "" {
			msg = "not ready"
		}
		return starting(msg)
	}

	// 8. Ready=True.
	if game.Status.Phase == gamev1alpha1.GamePhaseActive && now.Sub(game.Status.LastUpdated.Time) <= probeInterval {
		return noOp()
	}
	return active(pod.Name)
}

func unschedulable(pod *corev1.Pod) bool {
	_, cond := util.GetPodConditionFromList(pod.Status.Conditions, corev1.PodScheduled)
	return cond != nil && cond.Status == corev1.ConditionFalse && cond.Reason == corev1.PodReasonUnschedulable
}

// containerGate walks a container-status list in order and returns the
// first action it produces, or ok=false if every container tolerates
// passing through to the next gate.
func containerGate(statuses []corev1.ContainerStatus, isInit bool) (action, bool) {
	for _, cs := range statuses {
		switch {
		case cs.State.Waiting == nil && cs.State.Running == nil && cs.State.Terminated == nil:
			return starting("waiting for container state"), true

		case cs.State.Terminated != nil:
			t := cs.State.Terminated
			if t.ExitCode == 0 && t.Reason == "Completed" {
				if isInit {
					continue // tolerated: init container completing is expected
				}
				return deletePod("completed normally"), true
			}
			if t.Reason == "OOMKilled" || t.Reason == "ContainerCannotRun" || t.ExitCode != 0 {
				return deletePod(fmt.Sprintf("container %s terminated: %s (exit %d)", cs.Name, t.Reason, t.ExitCode)), true
			}

		case cs.State.Waiting != nil:
			reason := cs.State.Waiting.Reason
			if reason == "CrashLoopBackOff" {
				exitCode := int32(0)
				if cs.LastTerminationState.Terminated != nil {
					exitCode = cs.LastTerminationState.Terminated.ExitCode
				}
				return deletePod(fmt.Sprintf("container %s is crash-looping: last exit code %d, restart count %d",
					cs.Name, exitCode, cs.RestartCount)), true
			}
			if unrecoverableWaitingReasons[reason] {
				return deletePod(fmt.Sprintf("container %s unrecoverable: %s", cs.Name, reason)), true
			}
			return starting(fmt.Sprintf("container %s waiting: %s", cs.Name, reason)), true

		case cs.State.Running != nil:
			if !cs.Ready {
				return starting(fmt.Sprintf("container %s running but not ready", cs.Name)), true
			}
		}
	}
	return action{}, false
}
