package reconciler

import (
	"time"

	"github.com/onsi/ginkgo"
	"github.com/onsi/gomega"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	gamev1alpha1 "github.com/beebs-dev/dorch-sub000/apis/v1alpha1"
)

var _ = ginkgo.Describe("decide", func() {
	var game *gamev1alpha1.Game
	var pod *corev1.Pod
	const specHash = "abc123"
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	ginkgo.BeforeEach(func() {
		game = &gamev1alpha1.Game{
			Status: gamev1alpha1.GameStatus{
				Phase:       gamev1alpha1.GamePhaseActive,
				LastUpdated: metav1.NewTime(now.Add(-time.Hour)),
			},
		}
		pod = &corev1.Pod{
			ObjectMeta: metav1.ObjectMeta{
				Annotations: map[string]string{gamev1alpha1.GameSpecHashKey: specHash},
			},
			Status: corev1.PodStatus{
				Phase: corev1.PodRunning,
				Conditions: []corev1.PodCondition{
					{Type: corev1.PodReady, Status: corev1.ConditionTrue},
				},
			},
		}
	})

	ginkgo.Context("no owned pod", func() {
		ginkgo.It("creates one", func() {
			a := decide(game, nil, specHash, now)
			gomega.Expect(a.kind).To(gomega.Equal(actionCreatePod))
		})
	})

	ginkgo.Context("spec-hash drift", func() {
		ginkgo.It("deletes the pod", func() {
			pod.Annotations[gamev1alpha1.GameSpecHashKey] = "stale"
			a := decide(game, pod, specHash, now)
			gomega.Expect(a.kind).To(gomega.Equal(actionDeletePod))
		})
	})

	ginkgo.Context("scenario S3: crash-looping container", func() {
		ginkgo.It("deletes the pod, naming the exit code and restart count", func() {
			pod.Status.ContainerStatuses = []corev1.ContainerStatus{
				{
					Name:         "game",
					RestartCount: 5,
					State: corev1.ContainerState{
						Waiting: &corev1.ContainerStateWaiting{Reason: "CrashLoopBackOff"},
					},
					LastTerminationState: corev1.ContainerState{
						Terminated: &corev1.ContainerStateTerminated{ExitCode: 137},
					},
				},
			}

			a := decide(game, pod, specHash, now)

			gomega.Expect(a.kind).To(gomega.Equal(actionDeletePod))
			gomega.Expect(a.reason).To(gomega.ContainSubstring("137"))
			gomega.Expect(a.reason).To(gomega.ContainSubstring("restart count 5"))
		})
	})

	ginkgo.Context("ready and recently probed", func() {
		ginkgo.It("no-ops", func() {
			game.Status.LastUpdated = metav1.NewTime(now.Add(-5 * time.Second))
			a := decide(game, pod, specHash, now)
			gomega.Expect(a.kind).To(gomega.Equal(actionNoOp))
		})
	})

	ginkgo.Context("ready but stale probe", func() {
		ginkgo.It("reports active", func() {
			game.Status.LastUpdated = metav1.NewTime(now.Add(-time.Hour))
			game.Status.Phase = gamev1alpha1.GamePhasePending
			a := decide(game, pod, specHash, now)
			gomega.Expect(a.kind).To(gomega.Equal(actionActive))
		})
	})

	ginkgo.Context("game deletion in progress", func() {
		ginkgo.It("requeues for the orchestrator to finalize", func() {
			t := metav1.NewTime(now)
			game.DeletionTimestamp = &t
			a := decide(game, pod, specHash, now)
			gomega.Expect(a.kind).To(gomega.Equal(actionRequeue))
		})
	})
})
