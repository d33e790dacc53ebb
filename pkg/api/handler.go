package api

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"geosql/pkg/codec"
	"geosql/pkg/dialect"
	"geosql/pkg/geom"
	"geosql/pkg/predicate"
	"geosql/pkg/spatialdb"
	"io"
	"log"
	"net/http"
	"strings"
)

const maxBodyBytes = 8 << 20

// APIHandler handles REST API requests for geometry encoding, decoding and
// predicate rendering.
type APIHandler struct {
	store *spatialdb.Store
}

// NewAPIHandler creates a new APIHandler. store may be nil; when set, its
// version-gated rule is used for requests targeting the same dialect.
func NewAPIHandler(store *spatialdb.Store) *APIHandler {
	return &APIHandler{
		store: store,
	}
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

type EncodeRequest struct {
	Geometry json.RawMessage `json:"geometry"`
	Dialect  string          `json:"dialect,omitempty"`
}

type EncodeResponse struct {
	WKT string `json:"wkt"`
	// WriteValue is the literal bound into the dialect's geometry call.
	WriteValue string `json:"write_value,omitempty"`
}

type DecodeRequest struct {
	Dialect    string `json:"dialect"`
	PayloadHex string `json:"payload_hex"`
}

type DecodeResponse struct {
	WKT      string          `json:"wkt"`
	Geometry json.RawMessage `json:"geometry"`
}

type PredicateRequest struct {
	Dialect     string          `json:"dialect"`
	Column      string          `json:"column"`
	Geometry    json.RawMessage `json:"geometry"`
	Operation   string          `json:"operation"` // distance, distance_value or relation
	Distance    float64         `json:"distance"`
	Sphere      bool            `json:"sphere"`
	ExcludeSelf bool            `json:"exclude_self"`
	Relation    string          `json:"relation"`
}

type PredicateResponse struct {
	Dialect   string               `json:"dialect"`
	Fragments []predicate.Fragment `json:"fragments"`
}

// EncodeHandler converts a GeoJSON geometry to WKT.
func (h *APIHandler) EncodeHandler(w http.ResponseWriter, r *http.Request) {
	var req EncodeRequest
	if !h.readJSON(w, r, &req) {
		return
	}

	g, err := geom.UnmarshalGeoJSON(req.Geometry)
	if err != nil {
		h.sendError(w, http.StatusBadRequest, fmt.Sprintf("invalid geometry: %v", err))
		return
	}

	text, err := codec.Encode(g)
	if err != nil {
		h.sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := EncodeResponse{WKT: text}
	if req.Dialect != "" {
		rule, err := h.rule(req.Dialect)
		if err != nil {
			h.sendError(w, http.StatusBadRequest, err.Error())
			return
		}
		if resp.WriteValue, err = codec.EncodeForWrite(g, rule); err != nil {
			h.sendError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	h.sendJSON(w, resp)
}

// DecodeHandler decodes a driver payload given as hex. For dialects whose
// driver already returns hex text, the text is the payload itself.
func (h *APIHandler) DecodeHandler(w http.ResponseWriter, r *http.Request) {
	var req DecodeRequest
	if !h.readJSON(w, r, &req) {
		return
	}

	rule, err := h.rule(req.Dialect)
	if err != nil {
		h.sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	payload := []byte(strings.TrimSpace(req.PayloadHex))
	if rule.BinaryEncoding == dialect.Raw {
		payload, err = hex.DecodeString(string(payload))
		if err != nil {
			h.sendError(w, http.StatusBadRequest, fmt.Sprintf("payload_hex is not hex: %v", err))
			return
		}
	}

	g, err := codec.Decode(payload, rule)
	if err != nil {
		h.sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	text, err := codec.Encode(g)
	if err != nil {
		h.sendError(w, http.StatusInternalServerError, err.Error())
		return
	}

	raw, err := geom.MarshalGeoJSON(g)
	if err != nil {
		h.sendError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.sendJSON(w, DecodeResponse{WKT: text, Geometry: raw})
}

// PredicateHandler renders spatial predicate fragments.
func (h *APIHandler) PredicateHandler(w http.ResponseWriter, r *http.Request) {
	var req PredicateRequest
	if !h.readJSON(w, r, &req) {
		return
	}

	rule, err := h.rule(req.Dialect)
	if err != nil {
		h.sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	g, err := geom.UnmarshalGeoJSON(req.Geometry)
	if err != nil {
		h.sendError(w, http.StatusBadRequest, fmt.Sprintf("invalid geometry: %v", err))
		return
	}

	var fragments []predicate.Fragment
	switch req.Operation {
	case "distance":
		fragments, err = predicate.Distance(req.Column, g, req.Distance, rule, req.Sphere, req.ExcludeSelf)

	case "distance_value":
		var f predicate.Fragment
		f, err = predicate.DistanceValue(req.Column, g, rule, req.Sphere)
		fragments = []predicate.Fragment{f}

	case "relation":
		var rel predicate.Relation
		rel, err = predicate.ParseRelation(req.Relation)
		if err == nil {
			var f predicate.Fragment
			f, err = predicate.Topological(req.Column, g, rel, rule)
			fragments = []predicate.Fragment{f}
		}

	default:
		h.sendError(w, http.StatusBadRequest, fmt.Sprintf("unknown operation %q", req.Operation))
		return
	}

	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, dialect.ErrFunctionUnsupported) {
			status = http.StatusUnprocessableEntity
		}
		h.sendError(w, status, err.Error())
		return
	}

	h.sendJSON(w, PredicateResponse{Dialect: rule.Name, Fragments: fragments})
}

// rule resolves the dialect of a request, preferring the connected store's
// version-gated rule.
func (h *APIHandler) rule(name string) (dialect.Rule, error) {
	if name == "" {
		if h.store != nil {
			return h.store.Rule(), nil
		}
		return dialect.Rule{}, fmt.Errorf("dialect is required")
	}

	rule, err := dialect.ForDialect(name)
	if err != nil {
		return dialect.Rule{}, err
	}
	if h.store != nil && h.store.Rule().Name == rule.Name {
		return h.store.Rule(), nil
	}
	return rule, nil
}

func (h *APIHandler) readJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Method != http.MethodPost {
		h.sendError(w, http.StatusMethodNotAllowed, "only POST method is allowed")
		return false
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		h.sendError(w, http.StatusBadRequest, fmt.Sprintf("failed to read request body: %v", err))
		return false
	}
	defer r.Body.Close()

	if err := json.Unmarshal(body, dst); err != nil {
		h.sendError(w, http.StatusBadRequest, fmt.Sprintf("failed to parse JSON: %v", err))
		return false
	}
	return true
}

func (h *APIHandler) sendJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to write response: %v", err)
	}
}

// sendError sends an error response as JSON
func (h *APIHandler) sendError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}
