package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/cors"
	"github.com/zenazn/goji/web"
	"github.com/zenazn/goji/web/middleware"

	"github.com/openseis/seisvol/datatype/seismic"
	"github.com/openseis/seisvol/seisvol"
	"github.com/openseis/seisvol/storage"
)

const (
	// WebAPIPath is the path prefix for all HTTP API calls.
	WebAPIPath = "/api/"

	// WebHelp is the URL of the API help text.
	WebHelp = WebAPIPath + "help"
)

const WebHelpMessage = `
seisvol Server HTTP API
=======================

GET  <api URL>/help

	Returns this help message.

GET  <api URL>/server/info

	Returns JSON for server properties: version, store engine, file job limit
	and geometry cache statistics.

GET  <api URL>/server/mutations

	Returns the mutation journal as a JSON array.  Each record has an "action"
	("import", "delete-volume", "create-survey", "delete-survey"), a unique
	"mutation_id", an "order" number and the affected names.

When authorization is configured, POST and DELETE requests need a JWT in an
"Authorization: Bearer <token>" header.
`

var (
	webMux   http.Handler
	webMuxMu sync.Mutex
)

// handler returns the HTTP handler for the API, building it on first use.
func handler() http.Handler {
	webMuxMu.Lock()
	defer webMuxMu.Unlock()
	if webMux == nil {
		webMux = initRoutes()
	}
	return webMux
}

// resetRoutes forces the handler to be rebuilt, e.g., after a config change.
func resetRoutes() {
	webMuxMu.Lock()
	webMux = nil
	webMuxMu.Unlock()
}

func initRoutes() http.Handler {
	mux := web.New()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.Recoverer)
	mux.Use(blockMiddleware)
	mux.Use(activityLogger)
	mux.Use(isAuthorized)

	mux.Get(WebHelp, helpHandler)
	mux.Get(WebAPIPath+"server/info", serverInfoHandler)
	mux.Get(WebAPIPath+"server/mutations", mutationsHandler)

	seis := WebAPIPath + "seismic/"
	mux.Get(seis+"segy-headers", headersHandler)
	mux.Post(seis+"import", importHandler)
	mux.Get(seis+"volumes", volumesHandler)
	mux.Get(seis+"volumes/:id", volumeHandler)
	mux.Delete(seis+"volumes/:id", deleteVolumeHandler)
	mux.Get(seis+"section", sectionHandler)
	mux.Get(seis+"survey-outline", outlineHandler)
	mux.Get(seis+"surveys", surveysHandler)
	mux.Post(seis+"surveys/create", createSurveyHandler)
	mux.Post(seis+"surveys/from-volume", surveyFromVolumeHandler)
	mux.Get(seis+"surveys/:name/locate", locateHandler)
	mux.Get(seis+"surveys/:name", surveyHandler)
	mux.Delete(seis+"surveys/:name", deleteSurveyHandler)

	mux.NotFound(notFoundHandler)

	if len(tc.Server.AllowedOrigins) == 0 {
		return mux
	}
	seisvol.Infof("CORS enabled for origins %v\n", tc.Server.AllowedOrigins)
	return cors.New(cors.Options{
		AllowedOrigins: tc.Server.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodHead},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}).Handler(mux)
}

// ServeSingleHTTP fulfills one request using the API handler.
func ServeSingleHTTP(w http.ResponseWriter, r *http.Request) {
	handler().ServeHTTP(w, r)
}

// activityLogger times each request and sends the result to the kafka
// activity topic when one is configured.
func activityLogger(c *web.C, h http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h.ServeHTTP(rec, r)
		elapsed := time.Since(start)
		seisvol.Debugf("%s %s -> %d [%s]\n", r.Method, r.URL.Path, rec.status, elapsed)
		if !KafkaAvailable() {
			return
		}
		activity := map[string]interface{}{
			"time":     start.Unix(),
			"duration": elapsed.Seconds() * 1000.0,
			"method":   r.Method,
			"uri":      r.URL.String(),
			"status":   rec.status,
			"remote":   r.RemoteAddr,
		}
		if id, ok := c.Env[middleware.RequestIDKey].(string); ok {
			activity["request_id"] = id
		}
		if user, ok := c.Env["user"].(string); ok {
			activity["user"] = user
		}
		storage.LogActivityToKafka(activity)
	}
	return http.HandlerFunc(fn)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

func httpError(w http.ResponseWriter, r *http.Request, status int, format interface{}, args ...interface{}) {
	var message string
	switch v := format.(type) {
	case string:
		message = fmt.Sprintf(v, args...)
	case error:
		message = v.Error()
	default:
		message = fmt.Sprintf("%v", v)
	}
	errorMsg := fmt.Sprintf("%s (%s).", message, r.URL.Path)
	if status >= http.StatusInternalServerError {
		seisvol.Errorf("%s\n", errorMsg)
	} else {
		seisvol.Infof("%d: %s\n", status, errorMsg)
	}
	http.Error(w, errorMsg, status)
}

// BadRequest writes an error message with status 400 and logs it.
func BadRequest(w http.ResponseWriter, r *http.Request, format interface{}, args ...interface{}) {
	httpError(w, r, http.StatusBadRequest, format, args...)
}

// Unauthorized writes an error message with status 401 and logs it.
func Unauthorized(w http.ResponseWriter, r *http.Request, format interface{}, args ...interface{}) {
	httpError(w, r, http.StatusUnauthorized, format, args...)
}

// NotFound writes an error message with status 404 and logs it.
func NotFound(w http.ResponseWriter, r *http.Request, format interface{}, args ...interface{}) {
	httpError(w, r, http.StatusNotFound, format, args...)
}

// errorStatus maps the error kinds to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, seisvol.ErrFileNotFound),
		errors.Is(err, seisvol.ErrVolumeNotFound),
		errors.Is(err, seisvol.ErrSurveyNotFound):
		return http.StatusNotFound
	case errors.Is(err, seisvol.ErrBadRequest),
		errors.Is(err, seisvol.ErrGeometryUnavailable),
		errors.Is(err, seisvol.ErrLineNotFound),
		errors.Is(err, seisvol.ErrIrregularGeometry):
		return http.StatusBadRequest
	case errors.Is(err, seisvol.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, seisvol.ErrCorruptOrEmptyVolume):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	httpError(w, r, errorStatus(err), err)
}

func writeJSON(w http.ResponseWriter, r *http.Request, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		seisvol.Errorf("unable to write JSON response to %s: %v\n", r.URL.Path, err)
	}
}

// service returns the seismic service or writes a 503 if the server has
// not been initialized.
func service(w http.ResponseWriter, r *http.Request) *seismic.Service {
	svc := currentService()
	if svc == nil {
		httpError(w, r, http.StatusServiceUnavailable, "seismic service not initialized")
	}
	return svc
}

func queryInt(r *http.Request, key string, defaultValue int) (int, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultValue, nil
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("bad %q parameter %q: %w", key, s, seisvol.ErrBadRequest)
	}
	return i, nil
}

func queryFloat(r *http.Request, key string) (float64, bool, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return 0, false, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, fmt.Errorf("bad %q parameter %q: %w", key, s, seisvol.ErrBadRequest)
	}
	return f, true, nil
}

func parseVolumeID(s string) (uint64, error) {
	if s == "" {
		return 0, fmt.Errorf("volume id required: %w", seisvol.ErrBadRequest)
	}
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad volume id %q: %w", s, seisvol.ErrBadRequest)
	}
	return id, nil
}

func notFoundHandler(w http.ResponseWriter, r *http.Request) {
	NotFound(w, r, "no API endpoint for %s %s", r.Method, r.URL.Path)
}

func helpHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprint(w, WebHelpMessage)
	fmt.Fprint(w, strings.Replace(seismic.HelpMessage, "<api URL>", WebAPIPath[:len(WebAPIPath)-1], -1))
}

func serverInfoHandler(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"Version":       seisvol.Version,
		"Host":          Host(),
		"Note":          Note(),
		"Cores":         runtime.NumCPU(),
		"Max File Jobs": MaxFileJobs(),
		"Store Engine":  StoreConfig().Engine,
		"Auth":          authEnabled(),
	}
	if svc := currentService(); svc != nil {
		attempts, hits := svc.Cache().Stats()
		info["Geometry Cache"] = map[string]uint64{"attempts": attempts, "hits": hits}
	}
	writeJSON(w, r, info)
}

func mutationsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := ReadMutations(w); err != nil {
		seisvol.Errorf("error reading mutations: %v\n", err)
	}
}

func headersHandler(w http.ResponseWriter, r *http.Request) {
	svc := service(w, r)
	if svc == nil {
		return
	}
	summary, err := svc.Headers(r.Context(), r.URL.Query().Get("file_path"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, summary)
}

func importHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	svc := service(w, r)
	if svc == nil {
		return
	}
	var req seismic.ImportRequest
	if err := decodeValidated(r.Body, importSchema, &req); err != nil {
		writeError(w, r, err)
		return
	}
	timedLog := seisvol.NewTimeLog()
	result, err := svc.Import(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	timedLog.Infof("HTTP %s: imported %q as volume %d (user %v)", r.Method, req.FilePath, result.Volume.ID, c.Env["user"])
	writeJSON(w, r, result)
}

func volumesHandler(w http.ResponseWriter, r *http.Request) {
	svc := service(w, r)
	if svc == nil {
		return
	}
	volumes, err := svc.Volumes()
	if err != nil {
		writeError(w, r, err)
		return
	}
	if volumes == nil {
		volumes = []*storage.Volume{}
	}
	writeJSON(w, r, volumes)
}

func volumeHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	svc := service(w, r)
	if svc == nil {
		return
	}
	id, err := parseVolumeID(c.URLParams["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	v, err := svc.Volume(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, v)
}

func deleteVolumeHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	svc := service(w, r)
	if svc == nil {
		return
	}
	id, err := parseVolumeID(c.URLParams["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := svc.DeleteVolume(id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, map[string]interface{}{"deleted": id})
}

func sectionHandler(w http.ResponseWriter, r *http.Request) {
	svc := service(w, r)
	if svc == nil {
		return
	}
	query := r.URL.Query()
	id, err := parseVolumeID(query.Get("volume_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if query.Get("index") == "" {
		BadRequest(w, r, "section requires an index")
		return
	}
	index, err := queryInt(r, "index", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	downsample, err := queryInt(r, "downsample", 1)
	if err != nil {
		writeError(w, r, err)
		return
	}
	direction := query.Get("direction")
	if direction == "" {
		direction = string(seismic.AlongInline)
	}
	section, err := svc.Section(r.Context(), id, direction, index, downsample)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, section)
}

func outlineHandler(w http.ResponseWriter, r *http.Request) {
	svc := service(w, r)
	if svc == nil {
		return
	}
	id, err := parseVolumeID(r.URL.Query().Get("volume_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	corners, err := svc.Outline(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, corners)
}

func surveysHandler(w http.ResponseWriter, r *http.Request) {
	svc := service(w, r)
	if svc == nil {
		return
	}
	surveys, err := svc.Surveys()
	if err != nil {
		writeError(w, r, err)
		return
	}
	if surveys == nil {
		surveys = []*storage.Survey{}
	}
	writeJSON(w, r, surveys)
}

func surveyHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	svc := service(w, r)
	if svc == nil {
		return
	}
	sv, err := svc.Survey(c.URLParams["name"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, sv)
}

func createSurveyHandler(w http.ResponseWriter, r *http.Request) {
	svc := service(w, r)
	if svc == nil {
		return
	}
	var req seismic.SurveyRequest
	if err := decodeValidated(r.Body, surveySchema, &req); err != nil {
		writeError(w, r, err)
		return
	}
	sv, err := svc.CreateSurvey(req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, sv)
}

func surveyFromVolumeHandler(w http.ResponseWriter, r *http.Request) {
	svc := service(w, r)
	if svc == nil {
		return
	}
	query := r.URL.Query()
	id, err := parseVolumeID(query.Get("volume_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	sv, err := svc.SurveyFromVolume(r.Context(), id, query.Get("survey_name"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, sv)
}

func deleteSurveyHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	svc := service(w, r)
	if svc == nil {
		return
	}
	name := c.URLParams["name"]
	if err := svc.DeleteSurvey(name); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, map[string]interface{}{"deleted": name})
}

func locateHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	svc := service(w, r)
	if svc == nil {
		return
	}
	name := c.URLParams["name"]
	il, haveIl, err1 := queryFloat(r, "inline")
	xl, haveXl, err2 := queryFloat(r, "crossline")
	x, haveX, err3 := queryFloat(r, "x")
	y, haveY, err4 := queryFloat(r, "y")
	for _, err := range []error{err1, err2, err3, err4} {
		if err != nil {
			writeError(w, r, err)
			return
		}
	}
	var loc *seismic.Location
	var err error
	switch {
	case haveIl && haveXl:
		loc, err = svc.LocateLine(name, il, xl)
	case haveX && haveY:
		loc, err = svc.LocatePoint(name, x, y)
	default:
		BadRequest(w, r, "locate requires inline and crossline, or x and y")
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, loc)
}
