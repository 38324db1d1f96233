package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sells-group/zoomtier/internal/decimate"
	"github.com/sells-group/zoomtier/internal/metrics"
	"github.com/sells-group/zoomtier/internal/model"
	"github.com/sells-group/zoomtier/internal/pointio"
	"github.com/sells-group/zoomtier/internal/store"
)

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		zap.L().Warn("health check failed", zap.Error(err))
		respondWithJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  err.Error(),
		})
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listLayers(w http.ResponseWriter, r *http.Request) {
	layers, err := s.store.ListLayers(r.Context())
	if err != nil {
		s.storeError(w, err, "list layers")
		return
	}
	if layers == nil {
		layers = []model.Layer{}
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"layers": layers})
}

func (s *Server) getLayer(w http.ResponseWriter, r *http.Request) {
	layer, err := s.store.GetLayer(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.storeError(w, err, "get layer")
		return
	}
	respondWithJSON(w, http.StatusOK, layer)
}

func (s *Server) deleteLayer(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.store.DeleteLayer(r.Context(), name); err != nil {
		s.storeError(w, err, "delete layer")
		return
	}
	s.cache.Invalidate(name)
	w.WriteHeader(http.StatusNoContent)
}

// layerPoints serves the points of a layer visible at ?zoom as a GeoJSON
// FeatureCollection, optionally clipped to ?bbox=minx,miny,maxx,maxy.
func (s *Server) layerPoints(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	zoomStr := r.URL.Query().Get("zoom")
	if zoomStr == "" {
		respondWithError(w, http.StatusBadRequest, "zoom is required")
		return
	}
	zoom, err := strconv.Atoi(zoomStr)
	if err != nil || zoom < 0 {
		respondWithError(w, http.StatusBadRequest, "zoom must be a non-negative integer")
		return
	}

	bboxStr := r.URL.Query().Get("bbox")
	var bbox *store.BBox
	if bboxStr != "" {
		bbox, err = store.ParseBBox(bboxStr)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	key := pointsKey(name, zoom, bboxStr)
	if cached := s.cache.Get(key); cached != nil {
		w.Header().Set("Content-Type", "application/geo+json")
		w.Header().Set("X-Cache", "hit")
		_, _ = w.Write(cached)
		return
	}

	pts, err := s.store.QueryPoints(r.Context(), name, zoom, bbox)
	if err != nil {
		s.storeError(w, err, "query points")
		return
	}

	body, err := json.Marshal(pointFeatures(pts))
	if err != nil {
		zap.L().Error("encode points", zap.String("layer", name), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "failed to encode points")
		return
	}
	s.cache.Put(key, body)

	w.Header().Set("Content-Type", "application/geo+json")
	w.Header().Set("X-Cache", "miss")
	_, _ = w.Write(body)
}

func pointFeatures(pts []model.LayerPoint) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, len(pts))}
	for i, p := range pts {
		props := make(map[string]any, len(p.Properties)+2)
		for k, v := range p.Properties {
			props[k] = v
		}
		props["seq"] = p.Seq
		props["zoom"] = p.Zoom
		fc.Features[i] = &geojson.Feature{
			ID:         strconv.Itoa(p.Seq),
			Geometry:   geom.NewPointFlat(geom.XY, []float64{p.X, p.Y}),
			Properties: props,
		}
	}
	return fc
}

type decimateRequest struct {
	Points [][]float64     `json:"points"`
	Tiers  []decimate.Tier `json:"tiers"`
	Carry  string          `json:"carry"`
}

type decimateResponse struct {
	Labels  []int                `json:"labels"`
	Points  []decimate.Labeled   `json:"points,omitempty"`
	Tiers   []decimate.TierStats `json:"tiers"`
	MaxZoom int                  `json:"max_zoom"`
}

// decimatePoints labels an ad-hoc point list without storing it. The format
// query parameter selects the response: labels (default), points, or geojson.
func (s *Server) decimatePoints(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	switch format {
	case "", "labels", "points", "geojson":
	default:
		respondWithError(w, http.StatusBadRequest, "format must be labels, points or geojson")
		return
	}

	if s.cfg.MaxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBody)
	}

	var req decimateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondWithError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	points := make([]decimate.Point, len(req.Points))
	for i, p := range req.Points {
		if len(p) != 2 {
			respondWithError(w, http.StatusBadRequest, "point "+strconv.Itoa(i)+": want [x, y]")
			return
		}
		points[i] = decimate.Point{X: p[0], Y: p[1]}
	}

	tiers := req.Tiers
	if tiers == nil {
		tiers = s.tiers
	}
	opts := s.opts
	if req.Carry != "" {
		carry, err := decimate.ParseCarryPolicy(req.Carry)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		opts = append(opts[:len(opts):len(opts)], decimate.WithCarry(carry))
	}

	a, err := decimate.NewAssigner(tiers, opts...)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	ps, err := decimate.Load(points)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	start := time.Now()
	res := a.Assign(ps)
	metrics.ObserveResult(res, time.Since(start))

	switch format {
	case "geojson":
		body, err := labeledGeoJSON(points, res.Labels)
		if err != nil {
			zap.L().Error("encode decimated points", zap.Error(err))
			respondWithError(w, http.StatusInternalServerError, "failed to encode points")
			return
		}
		w.Header().Set("Content-Type", "application/geo+json")
		_, _ = w.Write(body)
		return
	case "points":
		labeled, err := decimate.Emit(ps, res.Labels)
		if err != nil {
			zap.L().Error("emit points", zap.Error(err))
			respondWithError(w, http.StatusInternalServerError, "failed to encode points")
			return
		}
		respondWithJSON(w, http.StatusOK, decimateResponse{
			Labels:  res.Labels,
			Points:  labeled,
			Tiers:   res.Tiers,
			MaxZoom: res.MaxZoom,
		})
		return
	}

	respondWithJSON(w, http.StatusOK, decimateResponse{
		Labels:  res.Labels,
		Tiers:   res.Tiers,
		MaxZoom: res.MaxZoom,
	})
}

// labeledGeoJSON encodes points as a FeatureCollection with a zoom property.
func labeledGeoJSON(points []decimate.Point, labels []int) ([]byte, error) {
	cols := pointio.Columns{X: "x", Y: "y"}
	table, err := pointio.FromPoints(cols, points).WithLabels("zoom", labels)
	if err != nil {
		return nil, err
	}
	fc, err := pointio.FeatureCollection(table, cols, "zoom")
	if err != nil {
		return nil, err
	}
	return json.Marshal(fc)
}

func (s *Server) storeError(w http.ResponseWriter, err error, action string) {
	if errors.Is(err, store.ErrNotFound) {
		respondWithError(w, http.StatusNotFound, "layer not found")
		return
	}
	zap.L().Error(action, zap.Error(err))
	respondWithError(w, http.StatusInternalServerError, "internal error")
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"failed to marshal response"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(body)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}
