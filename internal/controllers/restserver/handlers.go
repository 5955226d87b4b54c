package restserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/safeascent/safeascent/internal/cache"
	"github.com/safeascent/safeascent/internal/constants"
	"github.com/safeascent/safeascent/internal/faults"
	"github.com/safeascent/safeascent/internal/scoring"
	"github.com/safeascent/safeascent/internal/types"
	"github.com/safeascent/safeascent/pkg/responseformat"
	"go.uber.org/zap"
)

// Predictor is the scoring engine surface the HTTP layer depends on.
type Predictor interface {
	Predict(ctx context.Context, q types.RouteQuery) (*types.Prediction, error)
	Aggregator() scoring.AggregatorType
}

// Pinger reports whether the accident store is reachable; the status
// endpoint surfaces it.
type Pinger interface {
	Ping() error
}

// Handlers contains all HTTP handlers for the REST server
type Handlers struct {
	engine         Predictor
	cache          *cache.Cache
	db             Pinger
	logger         *zap.SugaredLogger
	validate       *validator.Validate
	formatter      *responseformat.Formatter
	requestTimeout time.Duration
	started        time.Time
}

// NewHandlers creates a new handlers instance
func NewHandlers(engine Predictor, c *cache.Cache, db Pinger, requestTimeout time.Duration, logger *zap.SugaredLogger) *Handlers {
	v := validator.New()
	// Report field errors under their wire names, not Go struct names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Handlers{
		engine:         engine,
		cache:          c,
		db:             db,
		logger:         logger,
		validate:       v,
		formatter:      responseformat.NewFormatter(),
		requestTimeout: requestTimeout,
		started:        time.Now(),
	}
}

// Predict handles POST /api/v1/predict: decode, validate, score, render.
func (h *Handlers) Predict(w http.ResponseWriter, req *http.Request) {
	var body predictRequest
	dec := json.NewDecoder(req.Body)
	if err := dec.Decode(&body); err != nil {
		h.writeError(w, req, http.StatusBadRequest, errorResponse{Error: "malformed JSON body"})
		return
	}

	if fields := h.validateRequest(&body); len(fields) > 0 {
		h.writeError(w, req, http.StatusUnprocessableEntity, errorResponse{Error: "invalid request", Fields: fields})
		return
	}

	targetDate, err := time.ParseInLocation("2006-01-02", body.TargetDate, time.UTC)
	if err != nil {
		h.writeError(w, req, http.StatusUnprocessableEntity, errorResponse{
			Error:  "invalid request",
			Fields: []faults.FieldError{{Field: "target_date", Message: "must be an ISO 8601 date (YYYY-MM-DD)"}},
		})
		return
	}

	routeType, ok := types.ParseRouteType(body.RouteType)
	if !ok {
		h.writeError(w, req, http.StatusUnprocessableEntity, errorResponse{
			Error:  "invalid request",
			Fields: []faults.FieldError{{Field: "route_type", Message: "unrecognized route type"}},
		})
		return
	}

	q := types.RouteQuery{
		Latitude:        *body.Latitude,
		Longitude:       *body.Longitude,
		ElevationMeters: body.ElevationMeters,
		RouteType:       routeType,
		TargetDate:      targetDate,
	}
	if body.SearchRadiusKm != nil {
		q.SearchRadiusKm = *body.SearchRadiusKm
	}

	ctx, cancel := context.WithTimeout(req.Context(), h.requestTimeout)
	defer cancel()

	prediction, err := h.engine.Predict(ctx, q)
	if err != nil {
		h.writePredictError(w, req, err)
		return
	}

	h.write(w, req, http.StatusOK, toPredictResponse(prediction))
}

// Health handles GET /healthz: liveness only, no dependency checks.
func (h *Handlers) Health(w http.ResponseWriter, req *http.Request) {
	h.write(w, req, http.StatusOK, healthResponse{Status: "ok"})
}

// Status handles GET /api/status with operator-facing detail.
func (h *Handlers) Status(w http.ResponseWriter, req *http.Request) {
	h.write(w, req, http.StatusOK, statusResponse{
		Version:       constants.Version,
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
		Aggregator:    string(h.engine.Aggregator()),
		Cache:         h.cache.Stats(),
		Storage:       h.storageStatus(),
	})
}

func (h *Handlers) storageStatus() string {
	if h.db == nil {
		return "not configured"
	}
	if err := h.db.Ping(); err != nil {
		h.logger.Warnf("storage ping failed: %v", err)
		return "unreachable"
	}
	return "ok"
}

// validateRequest runs the struct-tag validation and maps violations onto
// field errors.
func (h *Handlers) validateRequest(body *predictRequest) []faults.FieldError {
	err := h.validate.Struct(body)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []faults.FieldError{{Field: "body", Message: "failed validation"}}
	}

	fields := make([]faults.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, faults.FieldError{
			Field:   fe.Field(),
			Message: validationMessage(fe),
		})
	}
	return fields
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	default:
		return "failed validation"
	}
}

// writePredictError maps an engine failure onto an HTTP status.
func (h *Handlers) writePredictError(w http.ResponseWriter, req *http.Request, err error) {
	if errors.Is(err, context.Canceled) {
		// Client went away; nothing useful to write.
		h.logger.Debugf("request canceled: %s %s", req.Method, req.URL.Path)
		return
	}

	switch faults.KindOf(err) {
	case faults.KindInvalidInput:
		h.writeError(w, req, http.StatusUnprocessableEntity, errorResponse{Error: "invalid request", Fields: faults.FieldsOf(err)})
	case faults.KindUpstreamUnavailable, faults.KindResourceUnavailable:
		h.logger.Warnf("prediction unavailable: %v", err)
		h.writeError(w, req, http.StatusServiceUnavailable, errorResponse{Error: "service temporarily unavailable"})
	case faults.KindTimeout:
		h.logger.Warnf("prediction timed out: %v", err)
		h.writeError(w, req, http.StatusGatewayTimeout, errorResponse{Error: "prediction timed out"})
	default:
		h.logger.Errorf("prediction failed: %v", err)
		h.writeError(w, req, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func (h *Handlers) write(w http.ResponseWriter, req *http.Request, status int, v any) {
	if err := h.formatter.WriteResponse(w, req, status, v); err != nil {
		h.logger.Errorf("failed to encode response: %v", err)
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, req *http.Request, status int, body errorResponse) {
	h.write(w, req, status, body)
}
