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
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"

	gamev1alpha1 "github.com/beebs-dev/dorch-sub000/apis/v1alpha1"
	"github.com/beebs-dev/dorch-sub000/pkg/util"
)

// doom1SharewareAsset is the hardcoded default asset referenced when a
// Game opts into UseDoom1Assets.
const doom1SharewareAsset = "doom1.wad"

// contentHash returns a deterministic content hash of a Game's desired
// state, stored as the pod's dorch.io/spec-hash annotation. Any drift
// between this and the pod's current annotation means the pod is stale.
func contentHash(spec gamev1alpha1.GameSpec) string {
	b, _ := json.Marshal(spec)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])[:16]
}

// assetList composes the init-container's download list per spec.md §4.1:
// [iwad, ...extra_files], with the hardcoded default asset appended when
// use_doom1_assets is set.
func assetList(spec gamev1alpha1.GameSpec) []string {
	assets := append([]string{spec.IWAD}, spec.ExtraFiles...)
	if spec.UseDoom1Assets {
		assets = append(assets, doom1SharewareAsset)
	}
	return assets
}

func (r *GameReconciler) createPod(ctx context.Context, game *gamev1alpha1.Game, specHash string) error {
	pod := buildPodTemplate(game, specHash)
	if err := controllerutil.SetControllerReference(game, pod, r.Scheme); err != nil {
		return err
	}
	return r.Create(ctx, pod)
}

// buildPodTemplate assembles the three sibling containers (game server,
// spectator/recorder, mesh proxy) plus one init container (asset
// downloader), per spec.md §4.1 "Pod template". Secrets are referenced by
// key, never inlined.
func buildPodTemplate(game *gamev1alpha1.Game, specHash string) *corev1.Pod {
	assets := assetList(game.Spec)
	assetsJSON, _ := json.Marshal(assets)

	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      game.Name,
			Namespace: game.Namespace,
			Labels: util.MergeMapString(map[string]string{
				"app.kubernetes.io/managed-by": "dorch-reconciler",
			}, map[string]string{
				gamev1alpha1.GameOwnerKey: game.Name,
			}),
			Annotations: map[string]string{
				gamev1alpha1.GameSpecHashKey: specHash,
			},
		},
		Spec: corev1.PodSpec{
			InitContainers: []corev1.Container{
				{
					Name:  "asset-downloader",
					Image: game.Spec.AssetDownloaderImage,
					Env: []corev1.EnvVar{
						{Name: "DORCH_ASSETS", Value: string(assetsJSON)},
						{Name: "DORCH_CONTENT_IDS", Value: joinedContentIDs(game.Spec.ContentIDs)},
					},
					EnvFrom: []corev1.EnvFromSource{
						{SecretRef: &corev1.SecretEnvSource{LocalObjectReference: corev1.LocalObjectReference{Name: "dorch-content-store"}}},
					},
				},
			},
			Containers: []corev1.Container{
				{
					Name:  "game-server",
					Image: game.Spec.ServerImage,
					Env: []corev1.EnvVar{
						{Name: "DORCH_SPAWN_MAP", Value: game.Spec.SpawnMap},
						{Name: "DORCH_SKILL", Value: intToString(game.Spec.Skill)},
						{Name: "DORCH_PLAYER_CAP", Value: intToString(game.Spec.PlayerCap)},
						{Name: "DORCH_DEBUG", Value: boolToString(game.Spec.Debug)},
					},
				},
				{
					Name:  "spectator",
					Image: game.Spec.SpectatorImage,
				},
				{
					Name:  "mesh-proxy",
					Image: game.Spec.ProxyImage,
					Env: []corev1.EnvVar{
						{Name: "DORCH_GAME_ID", Value: game.Name},
					},
				},
			},
			RestartPolicy: corev1.RestartPolicyNever,
		},
	}
}

func joinedContentIDs(ids []string) string {
	b, _ := json.Marshal(ids)
	return string(b)
}

func intToString(v int32) string {
	return strconv.FormatInt(int64(v), 10)
}

func boolToString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
