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

// Package reconciler implements the Game lifecycle reconciler (spec.md §4.1):
// a leader-elected control loop translating declarative Game resources into
// running pods via a read-decide/write-execute split.
package reconciler

import (
	"context"
	"time"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/tools/record"
	"k8s.io/client-go/util/workqueue"
	"k8s.io/klog/v2"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller"
	"sigs.k8s.io/controller-runtime/pkg/event"
	"sigs.k8s.io/controller-runtime/pkg/handler"
	"sigs.k8s.io/controller-runtime/pkg/manager"
	"sigs.k8s.io/controller-runtime/pkg/reconcile"
	"sigs.k8s.io/controller-runtime/pkg/source"

	gamev1alpha1 "github.com/beebs-dev/dorch-sub000/apis/v1alpha1"
	"github.com/beebs-dev/dorch-sub000/pkg/metrics"
)

var (
	controllerKind        = gamev1alpha1.GroupVersion.WithKind("Game")
	concurrentReconciles  = 5
	writeFailureRequeue   = 5 * time.Second
)

// actionKindNames labels the phase metric with each decision kind's name.
var actionKindNames = map[actionKind]string{
	actionNoOp:        "NoOp",
	actionCreatePod:   "CreatePod",
	actionDeletePod:   "DeletePod",
	actionPending:     "Pending",
	actionStarting:    "Starting",
	actionActive:      "Active",
	actionTerminating: "Terminating",
	actionError:       "Error",
	actionRequeue:     "Requeue",
}

// Add wires the Game reconciler into mgr: it watches Games directly and
// Pods owned by a Game, enqueuing the owning Game's key on either change.
func Add(mgr manager.Manager) error {
	recorder := mgr.GetEventRecorderFor("game-reconciler")
	r := &GameReconciler{
		Client:   mgr.GetClient(),
		Scheme:   mgr.GetScheme(),
		recorder: recorder,
	}

	klog.InfoS("starting controller", "controller", "game", "workers", concurrentReconciles)
	c, err := controller.New("game-controller", mgr, controller.Options{Reconciler: r, MaxConcurrentReconciles: concurrentReconciles})
	if err != nil {
		return err
	}
	if err := c.Watch(source.Kind(mgr.GetCache(),
		&gamev1alpha1.Game{},
		&handler.TypedEnqueueRequestForObject[*gamev1alpha1.Game]{})); err != nil {
		return err
	}
	return watchOwnedPods(mgr, c)
}

func watchOwnedPods(mgr manager.Manager, c controller.Controller) error {
	return c.Watch(source.Kind(mgr.GetCache(), &corev1.Pod{}, &handler.TypedFuncs[*corev1.Pod]{
		CreateFunc: func(ctx context.Context, e event.TypedCreateEvent[*corev1.Pod], q workqueue.RateLimitingInterface) {
			enqueueOwner(e.Object, q)
		},
		UpdateFunc: func(ctx context.Context, e event.TypedUpdateEvent[*corev1.Pod], q workqueue.RateLimitingInterface) {
			enqueueOwner(e.ObjectNew, q)
		},
		DeleteFunc: func(ctx context.Context, e event.TypedDeleteEvent[*corev1.Pod], q workqueue.RateLimitingInterface) {
			enqueueOwner(e.Object, q)
		},
	}))
}

func enqueueOwner(pod *corev1.Pod, q workqueue.RateLimitingInterface) {
	name, ok := pod.GetLabels()[gamev1alpha1.GameOwnerKey]
	if !ok {
		return
	}
	q.Add(reconcile.Request{NamespacedName: types.NamespacedName{
		Namespace: pod.GetNamespace(),
		Name:      name,
	}})
}

// GameReconciler reconciles a Game object.
type GameReconciler struct {
	client.Client
	Scheme   *runtime.Scheme
	recorder record.EventRecorder
}

//+kubebuilder:rbac:groups=dorch.io,resources=games,verbs=get;list;watch;create;update;patch;delete
//+kubebuilder:rbac:groups=dorch.io,resources=games/status,verbs=get;update;patch

// Reconcile runs exactly one read-decide/write-execute cycle for the Game
// named in req. The controller-runtime framework guarantees a single
// in-flight reconcile per key, so this is effectively serial per Game.
func (r *GameReconciler) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	game := &gamev1alpha1.Game{}
	if err := r.Get(ctx, req.NamespacedName, game); err != nil {
		if apierrors.IsNotFound(err) {
			return ctrl.Result{}, nil
		}
		return ctrl.Result{}, err
	}

	pod, err := r.getOwnedPod(ctx, game)
	if err != nil {
		klog.ErrorS(err, "failed to get owned pod", "game", req.NamespacedName)
		return ctrl.Result{RequeueAfter: writeFailureRequeue}, nil
	}

	specHash := contentHash(game.Spec)
	a := decide(game, pod, specHash, time.Now())

	metrics.ObserveGamePhase(actionKindNames[a.kind])

	switch a.kind {
	case actionNoOp:
		return ctrl.Result{}, nil

	case actionCreatePod:
		if err := r.createPod(ctx, game, specHash); err != nil {
			return r.setStatus(ctx, game, gamev1alpha1.GamePhaseError, err.Error(), writeFailureRequeue)
		}
		return r.setStatus(ctx, game, gamev1alpha1.GamePhasePending, "pod created", 0)

	case actionDeletePod:
		if err := r.deletePod(ctx, pod); err != nil {
			return r.setStatus(ctx, game, gamev1alpha1.GamePhaseError, err.Error(), writeFailureRequeue)
		}
		return r.setStatus(ctx, game, gamev1alpha1.GamePhasePending, a.reason, 0)

	case actionPending:
		return r.setStatus(ctx, game, gamev1alpha1.GamePhasePending, a.reason, 0)

	case actionStarting:
		return r.setStatus(ctx, game, gamev1alpha1.GamePhaseStarting, a.reason, 0)

	case actionActive:
		return r.setStatus(ctx, game, gamev1alpha1.GamePhaseActive, "pod "+a.podName+" ready", probeInterval)

	case actionTerminating:
		return r.setStatus(ctx, game, gamev1alpha1.GamePhaseTerminating, a.reason, 0)

	case actionError:
		return r.setStatus(ctx, game, gamev1alpha1.GamePhaseError, a.reason, 0)

	case actionRequeue:
		return ctrl.Result{RequeueAfter: a.requeue}, nil
	}
	return ctrl.Result{}, nil
}

func (r *GameReconciler) getOwnedPod(ctx context.Context, game *gamev1alpha1.Game) (*corev1.Pod, error) {
	pod := &corev1.Pod{}
	err := r.Get(ctx, types.NamespacedName{Namespace: game.Namespace, Name: game.Name}, pod)
	if apierrors.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return pod, nil
}

func (r *GameReconciler) deletePod(ctx context.Context, pod *corev1.Pod) error {
	if pod == nil {
		return nil
	}
	return client.IgnoreNotFound(r.Delete(ctx, pod))
}

// setStatus patches Game.status and either await-changes (no requeue) or
// requeues after d, per spec.md §4.1's write-phase rule: only Active
// re-requeues periodically, every other action awaits a watch event.
func (r *GameReconciler) setStatus(ctx context.Context, game *gamev1alpha1.Game, phase gamev1alpha1.GamePhase, message string, requeueAfter time.Duration) (ctrl.Result, error) {
	game.Status.Phase = phase
	game.Status.Message = message
	game.Status.LastUpdated = metav1.Now()
	if err := r.Status().Update(ctx, game); err != nil {
		klog.ErrorS(err, "failed to update game status", "game", game.Name)
		return ctrl.Result{RequeueAfter: writeFailureRequeue}, nil
	}
	return ctrl.Result{RequeueAfter: requeueAfter}, nil
}
