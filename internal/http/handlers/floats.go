package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/floatchat/floatchat-backend/internal/http/response"
	"github.com/floatchat/floatchat-backend/internal/repos"
)

// Indian Ocean bounds served by the dedicated endpoint.
const (
	indianOceanLatMin = -40.0
	indianOceanLatMax = 30.0
	indianOceanLonMin = 20.0
	indianOceanLonMax = 120.0
)

// FloatsHandler exposes the read-only spatial/profile API over the dev
// snapshot.
type FloatsHandler struct {
	locations    repos.FloatLocationRepo
	defaultLimit int
}

func NewFloatsHandler(locations repos.FloatLocationRepo, defaultLimit int) *FloatsHandler {
	if defaultLimit <= 0 {
		defaultLimit = 100
	}
	return &FloatsHandler{locations: locations, defaultLimit: defaultLimit}
}

// Radius handles GET /floats/radius?lat&lon&radius&limit.
func (h *FloatsHandler) Radius(c *gin.Context) {
	lat, lon, ok := h.parseCenter(c)
	if !ok {
		return
	}
	radius, ok := h.parsePositiveFloat(c, "radius", 100)
	if !ok {
		return
	}
	limit := h.parseLimit(c)

	floats, err := h.locations.FloatsInRadius(c.Request.Context(), lat, lon, radius, limit)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "radius_query_failed", err)
		return
	}
	response.RespondOK(c, gin.H{
		"status": "success",
		"count":  len(floats),
		"floats": floats,
	})
}

// IndianOcean handles GET /floats/indian-ocean?limit.
func (h *FloatsHandler) IndianOcean(c *gin.Context) {
	limit := h.parseLimit(c)
	floats, err := h.locations.FloatsInBBox(c.Request.Context(),
		indianOceanLatMin, indianOceanLatMax, indianOceanLonMin, indianOceanLonMax, limit)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "bbox_query_failed", err)
		return
	}
	response.RespondOK(c, gin.H{
		"status": "success",
		"count":  len(floats),
		"floats": floats,
	})
}

// All handles GET /floats/all?limit.
func (h *FloatsHandler) All(c *gin.Context) {
	limit := h.parseLimit(c)
	floats, err := h.locations.AllFloats(c.Request.Context(), limit)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "floats_query_failed", err)
		return
	}
	response.RespondOK(c, gin.H{
		"status": "success",
		"count":  len(floats),
		"floats": floats,
	})
}

// Trajectories handles GET /floats/trajectories/radius?lat&lon&radius&limit.
// The response is a flat point array; clients group by floatId, and each
// float's points arrive chronologically ordered.
func (h *FloatsHandler) Trajectories(c *gin.Context) {
	lat, lon, ok := h.parseCenter(c)
	if !ok {
		return
	}
	radius, ok := h.parsePositiveFloat(c, "radius", 100)
	if !ok {
		return
	}
	limit := h.parseLimit(c)

	points, err := h.locations.TrajectoriesInRadius(c.Request.Context(), lat, lon, radius, limit)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "trajectory_query_failed", err)
		return
	}
	response.RespondOK(c, gin.H{
		"status":       "success",
		"count":        len(points),
		"trajectories": points,
	})
}

// Detail handles GET /floats/:float_id?min_depth&max_depth.
func (h *FloatsHandler) Detail(c *gin.Context) {
	floatID := strings.TrimSpace(c.Param("float_id"))
	if floatID == "" {
		response.RespondError(c, http.StatusUnprocessableEntity, "missing_float_id", errors.New("float_id is required"))
		return
	}

	var minDepth, maxDepth *float64
	minRaw := strings.TrimSpace(c.Query("min_depth"))
	maxRaw := strings.TrimSpace(c.Query("max_depth"))
	if (minRaw == "") != (maxRaw == "") {
		response.RespondError(c, http.StatusUnprocessableEntity, "invalid_depth_window",
			errors.New("min_depth and max_depth must be provided together"))
		return
	}
	if minRaw != "" {
		lo, errLo := strconv.ParseFloat(minRaw, 64)
		hi, errHi := strconv.ParseFloat(maxRaw, 64)
		if errLo != nil || errHi != nil || lo < 0 || hi < lo {
			response.RespondError(c, http.StatusUnprocessableEntity, "invalid_depth_window",
				errors.New("depth window must satisfy 0 <= min_depth <= max_depth"))
			return
		}
		minDepth, maxDepth = &lo, &hi
	}

	detail, err := h.locations.FloatWithMeasurements(c.Request.Context(), floatID, minDepth, maxDepth)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "float_query_failed", err)
		return
	}
	if detail == nil {
		response.RespondError(c, http.StatusNotFound, "float_not_found",
			fmt.Errorf("no profiles found for float %s", floatID))
		return
	}
	response.RespondOK(c, gin.H{
		"status":       "success",
		"float_id":     floatID,
		"profile":      detail.Profile,
		"measurements": detail.Measurements,
	})
}

func (h *FloatsHandler) parseCenter(c *gin.Context) (float64, float64, bool) {
	lat, err := strconv.ParseFloat(strings.TrimSpace(c.Query("lat")), 64)
	if err != nil || lat < -90 || lat > 90 {
		response.RespondError(c, http.StatusUnprocessableEntity, "invalid_lat",
			errors.New("lat must be a number in [-90, 90]"))
		return 0, 0, false
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(c.Query("lon")), 64)
	if err != nil || lon < -180 || lon > 180 {
		response.RespondError(c, http.StatusUnprocessableEntity, "invalid_lon",
			errors.New("lon must be a number in [-180, 180]"))
		return 0, 0, false
	}
	return lat, lon, true
}

func (h *FloatsHandler) parsePositiveFloat(c *gin.Context, name string, def float64) (float64, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return def, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= 0 {
		response.RespondError(c, http.StatusUnprocessableEntity, "invalid_"+name,
			fmt.Errorf("%s must be a positive number", name))
		return 0, false
	}
	return v, true
}

func (h *FloatsHandler) parseLimit(c *gin.Context) int {
	raw := strings.TrimSpace(c.Query("limit"))
	if raw == "" {
		return h.defaultLimit
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return h.defaultLimit
	}
	if v > 1000 {
		v = 1000
	}
	return v
}
