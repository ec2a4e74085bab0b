// Package httpapi exposes the engine services as a REST API plus a websocket
// event feed. Routing stays on the standard mux with explicit path splitting;
// service errors carry their own HTTP status.
package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	app "github.com/familygrove/engine/internal/app"
	"github.com/familygrove/engine/internal/app/domain/feature"
	"github.com/familygrove/engine/internal/app/domain/tree"
	apperr "github.com/familygrove/engine/internal/errors"
	"github.com/familygrove/engine/pkg/logger"
)

// Config tunes the optional handler middleware. The zero value disables rate
// limiting and file-backed audit persistence.
type Config struct {
	RateLimitPerSecond int
	RateLimitBurst     int
	AuditLimit         int
	AuditFile          string
}

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app   *app.Application
	audit *auditLog
	log   *logger.Logger
}

// NewHandler returns a handler exposing the core REST API.
func NewHandler(application *app.Application, cfg Config, log *logger.Logger) http.Handler {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}

	var sink auditSink
	if cfg.AuditFile != "" {
		fileSink, err := newFileAuditSink(cfg.AuditFile)
		if err != nil {
			log.WithError(err).Warn("audit file unavailable; keeping audit in memory only")
		} else {
			sink = fileSink
		}
	}

	h := &handler{
		app:   application,
		audit: newAuditLog(cfg.AuditLimit, sink),
		log:   log,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.health)
	mux.HandleFunc("/members", h.members)
	mux.HandleFunc("/members/", h.memberResources)
	mux.HandleFunc("/tasks", h.tasks)
	mux.HandleFunc("/tasks/", h.taskResources)
	mux.HandleFunc("/rewards", h.rewards)
	mux.HandleFunc("/rewards/", h.rewardResources)
	mux.HandleFunc("/redemptions/", h.redemptionResources)
	mux.HandleFunc("/families/", h.familyResources)
	mux.HandleFunc("/requests/", h.requestResources)
	mux.HandleFunc("/events", h.events)
	mux.HandleFunc("/audit", h.auditEntries)

	var out http.Handler = h.withAudit(mux)
	if cfg.RateLimitPerSecond > 0 {
		burst := cfg.RateLimitBurst
		if burst <= 0 {
			burst = cfg.RateLimitPerSecond
		}
		out = newRateLimiter(cfg.RateLimitPerSecond, burst, log).wrap(out)
	}
	return out
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) members(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var payload struct {
			FamilyID string `json:"family_id"`
			Name     string `json:"name"`
			Role     string `json:"role"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, apperr.Validation("%v", err))
			return
		}
		m, err := h.app.Members.Create(r.Context(), payload.FamilyID, payload.Name, payload.Role)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, m)

	case http.MethodGet:
		members, err := h.app.Members.List(r.Context(), r.URL.Query().Get("family_id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, members)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) memberResources(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path, "/members")
	if len(parts) == 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	memberID := parts[0]

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			m, err := h.app.Members.Get(r.Context(), memberID)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, m)
		case http.MethodPatch:
			var payload struct {
				Name string `json:"name"`
			}
			if err := decodeJSON(r.Body, &payload); err != nil {
				writeError(w, apperr.Validation("%v", err))
				return
			}
			m, err := h.app.Members.Rename(r.Context(), memberID, payload.Name)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, m)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	switch parts[1] {
	case "balance":
		h.memberBalance(w, r, memberID)
	case "transactions":
		h.memberTransactions(w, r, memberID)
	case "earn", "bonus", "spend", "adjust":
		h.memberLedgerOp(w, r, memberID, parts[1])
	case "gift":
		h.memberGift(w, r, memberID)
	case "recompute":
		h.memberRecompute(w, r, memberID)
	case "tasks":
		h.memberTasks(w, r, memberID)
	case "redemptions":
		h.memberRedemptions(w, r, memberID)
	case "tree":
		h.memberTree(w, r, memberID, parts[2:])
	case "collection":
		h.memberCollection(w, r, memberID)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *handler) memberBalance(w http.ResponseWriter, r *http.Request, memberID string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	balance, err := h.app.Ledger.BalanceOf(r.Context(), memberID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"balance": balance})
}

func (h *handler) memberTransactions(w http.ResponseWriter, r *http.Request, memberID string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	history, err := h.app.Ledger.History(r.Context(), memberID, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (h *handler) memberLedgerOp(w http.ResponseWriter, r *http.Request, memberID, op string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		Amount int64  `json:"amount"`
		Reason string `json:"reason"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, apperr.Validation("%v", err))
		return
	}

	var err error
	var tx interface{}
	switch op {
	case "earn":
		tx, err = h.app.Ledger.Earn(r.Context(), memberID, payload.Amount, payload.Reason, "")
	case "bonus":
		tx, err = h.app.Ledger.Bonus(r.Context(), memberID, payload.Amount, payload.Reason)
	case "spend":
		tx, err = h.app.Ledger.Spend(r.Context(), memberID, payload.Amount, payload.Reason, "")
	case "adjust":
		tx, err = h.app.Ledger.Adjust(r.Context(), memberID, payload.Amount, payload.Reason)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func (h *handler) memberGift(w http.ResponseWriter, r *http.Request, memberID string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		To     string `json:"to"`
		Amount int64  `json:"amount"`
		Reason string `json:"reason"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, apperr.Validation("%v", err))
		return
	}
	sent, received, err := h.app.Ledger.Gift(r.Context(), memberID, payload.To, payload.Amount, payload.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"sent": sent, "received": received})
}

func (h *handler) memberRecompute(w http.ResponseWriter, r *http.Request, memberID string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	balance, fixed, err := h.app.Ledger.Recompute(r.Context(), memberID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"balance": balance, "repaired": int64(fixed)})
}

func (h *handler) memberTasks(w http.ResponseWriter, r *http.Request, memberID string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	tasks, err := h.app.Tasks.ListForMember(r.Context(), memberID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *handler) memberRedemptions(w http.ResponseWriter, r *http.Request, memberID string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	redemptions, err := h.app.Rewards.ListRedemptions(r.Context(), memberID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, redemptions)
}

func (h *handler) memberTree(w http.ResponseWriter, r *http.Request, memberID string, rest []string) {
	if len(rest) == 0 {
		switch r.Method {
		case http.MethodGet:
			t, err := h.app.Growth.ActiveTree(r.Context(), memberID)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, treeView(t))
		case http.MethodPost:
			var payload struct {
				Type string `json:"type"`
			}
			if err := decodeJSON(r.Body, &payload); err != nil {
				writeError(w, apperr.Validation("%v", err))
				return
			}
			t, err := h.app.Growth.Plant(r.Context(), memberID, tree.Type(payload.Type))
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, treeView(t))
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	switch rest[0] {
	case "water":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var payload struct {
			Points int64 `json:"points"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, apperr.Validation("%v", err))
			return
		}
		result, err := h.app.Growth.Water(r.Context(), memberID, payload.Points)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	case "types":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		types, err := h.app.Growth.AvailableTypes(r.Context(), memberID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, types)
	case "history":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		trees, err := h.app.Growth.History(r.Context(), memberID)
		if err != nil {
			writeError(w, err)
			return
		}
		views := make([]map[string]interface{}, len(trees))
		for i, t := range trees {
			views[i] = treeView(t)
		}
		writeJSON(w, http.StatusOK, views)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *handler) memberCollection(w http.ResponseWriter, r *http.Request, memberID string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	collection, err := h.app.Growth.Collection(r.Context(), memberID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, collection)
}

// treeView decorates a tree with its derived stage for API consumers.
func treeView(t tree.Tree) map[string]interface{} {
	return map[string]interface{}{
		"id":            t.ID,
		"owner_id":      t.OwnerID,
		"type":          t.Type,
		"current_water": t.CurrentWater,
		"stage":         t.Stage(),
		"fully_grown":   t.FullyGrown,
		"planted_at":    t.PlantedAt,
		"updated_at":    t.UpdatedAt,
	}
}

func (h *handler) tasks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var payload struct {
			FamilyID      string `json:"family_id"`
			Title         string `json:"title"`
			PointValue    int64  `json:"point_value"`
			AssigneeID    string `json:"assignee_id"`
			Frequency     string `json:"frequency"`
			DueDate       string `json:"due_date"`
			RequiresProof bool   `json:"requires_proof"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, apperr.Validation("%v", err))
			return
		}
		due, err := parseTime(payload.DueDate)
		if err != nil {
			writeError(w, err)
			return
		}
		t, err := h.app.Tasks.Create(r.Context(), payload.FamilyID, payload.Title, payload.PointValue,
			payload.AssigneeID, payload.Frequency, due, payload.RequiresProof)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, t)

	case http.MethodGet:
		tasks, err := h.app.Tasks.List(r.Context(), r.URL.Query().Get("family_id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, tasks)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) taskResources(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path, "/tasks")
	if len(parts) == 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	taskID := parts[0]

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		t, err := h.app.Tasks.Get(r.Context(), taskID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, t)
		return
	}

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		MemberID string `json:"member_id"`
		Proof    string `json:"proof"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, apperr.Validation("%v", err))
		return
	}

	var t interface{}
	var err error
	switch parts[1] {
	case "claim":
		t, err = h.app.Tasks.Claim(r.Context(), taskID, payload.MemberID)
	case "unclaim":
		t, err = h.app.Tasks.Unclaim(r.Context(), taskID, payload.MemberID)
	case "complete":
		t, err = h.app.Tasks.Complete(r.Context(), taskID, payload.MemberID, payload.Proof)
	case "approve":
		t, err = h.app.Tasks.Approve(r.Context(), taskID, payload.MemberID)
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *handler) rewards(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var payload struct {
			FamilyID     string `json:"family_id"`
			Title        string `json:"title"`
			Category     string `json:"category"`
			PointCost    int64  `json:"point_cost"`
			ValidityDays int    `json:"validity_days"`
			MaxPerWeek   int    `json:"max_per_week"`
			ExpiresAt    string `json:"expires_at"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, apperr.Validation("%v", err))
			return
		}
		expires, err := parseTime(payload.ExpiresAt)
		if err != nil {
			writeError(w, err)
			return
		}
		created, err := h.app.Rewards.CreateReward(r.Context(), payload.FamilyID, payload.Title,
			payload.Category, payload.PointCost, payload.ValidityDays, payload.MaxPerWeek, expires)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)

	case http.MethodGet:
		rewards, err := h.app.Rewards.ListRewards(r.Context(), r.URL.Query().Get("family_id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rewards)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) rewardResources(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path, "/rewards")
	if len(parts) == 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	rewardID := parts[0]

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			reward, err := h.app.Rewards.GetReward(r.Context(), rewardID)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, reward)
		case http.MethodPatch:
			var payload struct {
				Active *bool `json:"active"`
			}
			if err := decodeJSON(r.Body, &payload); err != nil {
				writeError(w, apperr.Validation("%v", err))
				return
			}
			if payload.Active == nil {
				writeError(w, apperr.Validation("active is required"))
				return
			}
			reward, err := h.app.Rewards.SetActive(r.Context(), rewardID, *payload.Active)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, reward)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	if parts[1] != "redeem" || r.Method != http.MethodPost {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	var payload struct {
		MemberID string `json:"member_id"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, apperr.Validation("%v", err))
		return
	}
	redemption, err := h.app.Rewards.Redeem(r.Context(), rewardID, payload.MemberID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, redemption)
}

func (h *handler) redemptionResources(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path, "/redemptions")
	if len(parts) != 2 || parts[1] != "use" || r.Method != http.MethodPost {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	redemption, err := h.app.Rewards.MarkUsed(r.Context(), parts[0])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, redemption)
}

func (h *handler) familyResources(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path, "/families")
	if len(parts) < 2 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	familyID := parts[0]

	switch parts[1] {
	case "features":
		h.familyFeatures(w, r, familyID, parts[2:])
	case "subscription":
		h.familySubscription(w, r, familyID, parts[2:])
	case "requests":
		h.familyRequests(w, r, familyID)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *handler) familyFeatures(w http.ResponseWriter, r *http.Request, familyID string, rest []string) {
	if len(rest) == 0 {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		enabled, err := h.app.Entitlements.EnabledFeatures(r.Context(), familyID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, enabled)
		return
	}

	switch rest[0] {
	case "toggle":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var payload struct {
			Feature string `json:"feature"`
			Enabled bool   `json:"enabled"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, apperr.Validation("%v", err))
			return
		}
		settings, err := h.app.Entitlements.Toggle(r.Context(), familyID, feature.Feature(payload.Feature), payload.Enabled)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, settingsView(settings))
	case "preset":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var payload struct {
			Name string `json:"name"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, apperr.Validation("%v", err))
			return
		}
		settings, err := h.app.Entitlements.ApplyPreset(r.Context(), familyID, payload.Name)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, settingsView(settings))
	default:
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		available, err := h.app.Entitlements.IsAvailable(r.Context(), familyID, feature.Feature(rest[0]))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"available": available})
	}
}

// settingsView flattens the enabled set into a stable list for JSON output.
func settingsView(s feature.Settings) map[string]interface{} {
	return map[string]interface{}{
		"family_id":  s.FamilyID,
		"enabled":    s.Enabled.List(),
		"preset":     s.Preset,
		"updated_at": s.UpdatedAt,
	}
}

func (h *handler) familySubscription(w http.ResponseWriter, r *http.Request, familyID string, rest []string) {
	if len(rest) == 0 || r.Method != http.MethodPost {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch rest[0] {
	case "grants":
		var payload struct {
			Feature   string `json:"feature"`
			ExpiresAt string `json:"expires_at"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, apperr.Validation("%v", err))
			return
		}
		expires, err := parseTime(payload.ExpiresAt)
		if err != nil {
			writeError(w, err)
			return
		}
		sub, err := h.app.Entitlements.GrantSubscription(r.Context(), familyID, feature.Feature(payload.Feature), expires)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sub)
	case "testmode":
		var payload struct {
			Enabled bool `json:"enabled"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, apperr.Validation("%v", err))
			return
		}
		sub, err := h.app.Entitlements.SetTestMode(r.Context(), familyID, payload.Enabled)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sub)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *handler) familyRequests(w http.ResponseWriter, r *http.Request, familyID string) {
	switch r.Method {
	case http.MethodGet:
		pending, err := h.app.Entitlements.PendingRequests(r.Context(), familyID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, pending)
	case http.MethodPost:
		var payload struct {
			MemberID string `json:"member_id"`
			Feature  string `json:"feature"`
			Reason   string `json:"reason"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, apperr.Validation("%v", err))
			return
		}
		req, err := h.app.Entitlements.RequestFeature(r.Context(), familyID, payload.MemberID,
			feature.Feature(payload.Feature), payload.Reason)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, req)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) requestResources(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path, "/requests")
	if len(parts) != 2 || r.Method != http.MethodPost {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	requestID := parts[0]

	var payload struct {
		ApproverID string `json:"approver_id"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, apperr.Validation("%v", err))
		return
	}

	var req interface{}
	var err error
	switch parts[1] {
	case "approve":
		req, err = h.app.Entitlements.ApproveRequest(r.Context(), requestID, payload.ApproverID)
	case "deny":
		req, err = h.app.Entitlements.DenyRequest(r.Context(), requestID, payload.ApproverID)
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (h *handler) auditEntries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	writeJSON(w, http.StatusOK, h.audit.listLimit(limit))
}

func splitPath(path, prefix string) []string {
	trimmed := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func parseTime(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, nil
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, apperr.Validation("invalid timestamp %q: use RFC 3339", raw)
	}
	return ts, nil
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	status := apperr.HTTPStatus(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
