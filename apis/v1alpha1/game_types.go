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

package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

const (
	// GameSpecHashKey is the pod annotation holding the content-hash of the
	// Game spec that produced it. A mismatch means the pod is stale and must
	// be recreated.
	GameSpecHashKey = "dorch.io/spec-hash"
	// GameOwnerKey labels the owned pod with the name of its Game.
	GameOwnerKey = "dorch.io/game"
)

// GamePhase is the coarse lifecycle phase of a Game, mutated only by the
// reconciler.
type GamePhase string

const (
	GamePhasePending     GamePhase = "Pending"
	GamePhaseStarting    GamePhase = "Starting"
	GamePhaseActive      GamePhase = "Active"
	GamePhaseError       GamePhase = "Error"
	GamePhaseTerminating GamePhase = "Terminating"
)

// GameSpec is immutable per revision: it describes the desired session.
type GameSpec struct {
	// ContentIDs are the wad/content identifiers that make up this session.
	ContentIDs []string `json:"contentIds"`
	// Skill is the difficulty/skill level passed to the game server.
	Skill int32 `json:"skill,omitempty"`
	// SpawnMap is the starting map name.
	SpawnMap string `json:"spawnMap"`
	// Private marks the session as invite-only.
	Private bool `json:"private,omitempty"`
	// ServerImage, SpectatorImage, and ProxyImage reference the three
	// sibling containers of the pod template.
	ServerImage    string `json:"serverImage"`
	SpectatorImage string `json:"spectatorImage"`
	ProxyImage     string `json:"proxyImage"`
	// AssetDownloaderImage references the init container.
	AssetDownloaderImage string `json:"assetDownloaderImage"`
	// IWAD is the primary asset; ExtraFiles are additional assets layered
	// on top of it.
	IWAD       string   `json:"iwad"`
	ExtraFiles []string `json:"extraFiles,omitempty"`
	// UseDoom1Assets adds the hardcoded default shareware asset to the
	// download list.
	UseDoom1Assets bool `json:"useDoom1Assets,omitempty"`
	// PlayerCap bounds concurrent participants.
	PlayerCap int32 `json:"playerCap,omitempty"`
	// Debug enables verbose game-server logging.
	Debug bool `json:"debug,omitempty"`
	// Revision is bumped by the owning orchestrator on every spec edit; it
	// feeds the content-hash alongside the rest of the spec so a pure
	// metadata bump also forces a recreate.
	Revision int64 `json:"revision,omitempty"`
}

// GameStatus is mutated only by the reconciler.
type GameStatus struct {
	Phase       GamePhase   `json:"phase,omitempty"`
	Message     string      `json:"message,omitempty"`
	LastUpdated metav1.Time `json:"lastUpdated,omitempty"`
}

//+kubebuilder:object:root=true
//+kubebuilder:subresource:status
//+kubebuilder:printcolumn:name="PHASE",type="string",JSONPath=".status.phase",description="The current phase of the Game"
//+kubebuilder:printcolumn:name="MESSAGE",type="string",JSONPath=".status.message",description="The last reconcile message"
//+kubebuilder:printcolumn:name="AGE",type="date",JSONPath=".metadata.creationTimestamp"
//+kubebuilder:resource:shortName=game

// Game is the Schema for the games API: a declarative record of a
// multiplayer session that the reconciler translates into a running pod.
type Game struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   GameSpec   `json:"spec,omitempty"`
	Status GameStatus `json:"status,omitempty"`
}

//+kubebuilder:object:root=true

// GameList contains a list of Game.
type GameList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []Game `json:"items"`
}

func init() {
	SchemeBuilder.Register(&Game{}, &GameList{})
}
