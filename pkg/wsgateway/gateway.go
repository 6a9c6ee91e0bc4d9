package wsgateway

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/beebs-dev/dorch-sub000/pkg/ratelimit"
)

// upgrader follows codewire's CORS-at-middleware convention: origin
// checking is left to a layer above this handler, which spec.md §1
// treats as out of scope ("thin HTTP routing layers").
var upgrader = websocket.Upgrader{
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// Config bundles the gateway's runtime dependencies.
type Config struct {
	Handshake *HandshakeStore
	JWKS      *JWKSCache
	Broker    Broker
	Limiter   *ratelimit.Limiter
	Issuer    string
	Audience  string
	Log       *zap.Logger
}

// AuthHandler implements POST /ws/auth of spec.md §6: an authenticated
// HTTP endpoint (authentication itself is an external collaborator —
// the caller is expected to have resolved userID before calling this
// handler, e.g. from a bearer-token auth middleware).
func AuthHandler(cfg Config, resolveUserID func(*http.Request) (string, bool)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := resolveUserID(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req BeginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		connID, err := cfg.Handshake.Begin(r.Context(), userID, req)
		if err != nil {
			cfg.Log.Warn("wsgateway: handshake begin failed", zap.Error(err))
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte(connID))
	}
}

// UpgradeHandler implements GET /ws of spec.md §6: consumes the
// single-use handshake, validates the access token, and runs the
// session until it ends.
func UpgradeHandler(cfg Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connID := r.URL.Query().Get("c")
		ciphertext := r.URL.Query().Get("p")
		if connID == "" || ciphertext == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		handshakeUserID, accessToken, err := cfg.Handshake.Consume(r.Context(), connID, ciphertext)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		claims, err := cfg.JWKS.Validate(r.Context(), accessToken, cfg.Issuer, cfg.Audience)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if claims.Subject != handshakeUserID {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			cfg.Log.Warn("wsgateway: upgrade failed", zap.Error(err))
			return
		}

		session := NewSession(handshakeUserID, "", conn, cfg.Broker, cfg.Limiter, cfg.Log)
		if err := session.Run(r.Context()); err != nil {
			cfg.Log.Warn("wsgateway: session ended with error", zap.String("conn_id", session.ConnID), zap.Error(err))
		}
	}
}
