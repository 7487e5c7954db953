package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	appscans "github.com/bryanwahyu/cloud-screener/internal/application/scans"
	"github.com/bryanwahyu/cloud-screener/internal/catalog"
	domain "github.com/bryanwahyu/cloud-screener/internal/domain/scans"
	ssodomain "github.com/bryanwahyu/cloud-screener/internal/domain/sso"
	"github.com/bryanwahyu/cloud-screener/internal/middleware"
)

// heartbeatInterval is the fallback cadence for live-progress streams when
// no state change arrives.
const heartbeatInterval = 15 * time.Second

type Router struct {
	scansSvc *appscans.Service
	auth     ssodomain.Authenticator
	vendor   ssodomain.CredentialVendor
	log      *zap.SugaredLogger

	reportRoot      string
	credentialsPath string
}

func NewRouter(scansSvc *appscans.Service, auth ssodomain.Authenticator, vendor ssodomain.CredentialVendor,
	reportRoot, credentialsPath string, metrics *middleware.Metrics, log *zap.SugaredLogger) http.Handler {

	rt := &Router{
		scansSvc:        scansSvc,
		auth:            auth,
		vendor:          vendor,
		log:             log,
		reportRoot:      reportRoot,
		credentialsPath: credentialsPath,
	}

	mux := chi.NewRouter()
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:3000", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))
	mux.Use(middleware.RequestLogger(log))
	mux.Use(metrics.Middleware)

	mux.Route("/api", func(r chi.Router) {
		r.Get("/health", rt.handleHealth)
		r.Get("/metrics", metrics.Handler())

		r.Get("/services", rt.wrap(rt.handleServices))
		r.Get("/regions", rt.wrap(rt.handleRegions))
		r.Get("/frameworks", rt.wrap(rt.handleFrameworks))
		r.Get("/aws-profiles", rt.wrap(rt.handleProfiles))

		r.Route("/sso", func(r chi.Router) {
			r.Get("/status", rt.wrap(rt.handleSSOStatus))
			r.Post("/start", rt.wrap(rt.handleSSOStart))
			r.Post("/poll", rt.wrap(rt.handleSSOPoll))
			r.Post("/reset", rt.wrap(rt.handleSSOReset))
			r.Get("/accounts", rt.wrap(rt.handleSSOAccounts))
			r.Get("/accounts/{accountID}/roles", rt.wrap(rt.handleSSORoles))
			r.Post("/credentials", rt.wrap(rt.handleSSOCredentials))
		})

		r.Post("/scan", rt.wrap(rt.handleSubmitScan))
		r.Get("/scans", rt.wrap(rt.handleListScans))
		r.Get("/scan/{jobID}", rt.wrap(rt.handleGetScan))
		r.Delete("/scan/{jobID}", rt.wrap(rt.handleCancelScan))
		r.Get("/scan/{jobID}/events", rt.wrap(rt.handleScanEvents))

		r.Get("/reports", rt.wrap(rt.handleListReports))
	})

	mux.Get("/reports/{accountID}/*", rt.handleServeReport)

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// wrap maps domain errors onto HTTP statuses so handlers just return them.
func (rt *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		switch {
		case errors.Is(err, domain.ErrNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, domain.ErrValidation):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, ssodomain.ErrUnauthenticated):
			http.Error(w, err.Error(), http.StatusUnauthorized)
		default:
			rt.log.Errorw("request failed", "path", req.URL.Path, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
	}
}

func writeJSON(w http.ResponseWriter, v any) error {
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(v)
}

// GET /api/health
func (rt *Router) handleHealth(w http.ResponseWriter, _ *http.Request) {
	_ = writeJSON(w, map[string]string{"status": "healthy"})
}

// GET /api/services
func (rt *Router) handleServices(w http.ResponseWriter, _ *http.Request) error {
	return writeJSON(w, map[string]any{"services": catalog.Services()})
}

// GET /api/regions
func (rt *Router) handleRegions(w http.ResponseWriter, _ *http.Request) error {
	return writeJSON(w, map[string]any{"regions": catalog.Regions()})
}

// GET /api/frameworks
func (rt *Router) handleFrameworks(w http.ResponseWriter, _ *http.Request) error {
	return writeJSON(w, map[string]any{"frameworks": catalog.Frameworks()})
}

// GET /api/aws-profiles
func (rt *Router) handleProfiles(w http.ResponseWriter, _ *http.Request) error {
	return writeJSON(w, map[string]any{"profiles": catalog.Profiles(rt.credentialsPath)})
}

// GET /api/sso/status
func (rt *Router) handleSSOStatus(w http.ResponseWriter, _ *http.Request) error {
	resp := map[string]any{"authenticated": rt.auth.IsAuthenticated()}
	if expiry, ok := rt.auth.TokenExpiry(); ok {
		resp["expires_at"] = expiry.Format(time.RFC3339)
	} else {
		resp["expires_at"] = nil
	}
	return writeJSON(w, resp)
}

// POST /api/sso/start
func (rt *Router) handleSSOStart(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		StartURL string `json:"start_url"`
		Region   string `json:"region"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return domain.ValidationError(err.Error())
	}
	if err := middleware.ValidateStartURL(body.StartURL); err != nil {
		return domain.ValidationError(err.Error())
	}
	if body.Region != "" && !catalog.KnownRegion(body.Region) {
		return domain.ValidationError(fmt.Sprintf("unknown region: %s", body.Region))
	}

	auth, err := rt.auth.StartAuthorization(req.Context(), body.StartURL, body.Region)
	if err != nil {
		return err
	}
	return writeJSON(w, map[string]any{
		"status":                    "started",
		"user_code":                 auth.UserCode,
		"verification_uri":          auth.VerificationURI,
		"verification_uri_complete": auth.VerificationURIComplete,
		"expires_in":                auth.ExpiresIn,
		"region":                    auth.Region,
		"message":                   fmt.Sprintf("Please visit %s to complete login", auth.VerificationURIComplete),
	})
}

// POST /api/sso/poll
func (rt *Router) handleSSOPoll(w http.ResponseWriter, req *http.Request) error {
	result, err := rt.auth.Poll(req.Context())
	if errors.Is(err, ssodomain.ErrNoSession) {
		// Not an HTTP failure: the UI polls blindly and renders the outcome.
		return writeJSON(w, ssodomain.PollResult{
			Outcome: ssodomain.OutcomeError,
			Message: "No SSO login in progress. Please start SSO login first.",
		})
	}
	if err != nil {
		return err
	}
	return writeJSON(w, result)
}

// POST /api/sso/reset
func (rt *Router) handleSSOReset(w http.ResponseWriter, _ *http.Request) error {
	rt.auth.Reset()
	return writeJSON(w, map[string]string{"status": "reset"})
}

// GET /api/sso/accounts
func (rt *Router) handleSSOAccounts(w http.ResponseWriter, req *http.Request) error {
	accounts, err := rt.vendor.ListAccounts(req.Context())
	if err != nil {
		return err
	}
	return writeJSON(w, map[string]any{"accounts": accounts})
}

// GET /api/sso/accounts/{accountID}/roles
func (rt *Router) handleSSORoles(w http.ResponseWriter, req *http.Request) error {
	accountID := chi.URLParam(req, "accountID")
	roles, err := rt.vendor.ListAccountRoles(req.Context(), accountID)
	if err != nil {
		return err
	}
	return writeJSON(w, map[string]any{"roles": roles})
}

// POST /api/sso/credentials
func (rt *Router) handleSSOCredentials(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		AccountID string `json:"account_id"`
		RoleName  string `json:"role_name"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return domain.ValidationError(err.Error())
	}
	if body.AccountID == "" || body.RoleName == "" {
		return domain.ValidationError("account_id and role_name are required")
	}
	creds, err := rt.vendor.GetRoleCredentials(req.Context(), body.AccountID, body.RoleName)
	if err != nil {
		return err
	}
	return writeJSON(w, creds)
}

// POST /api/scan
func (rt *Router) handleSubmitScan(w http.ResponseWriter, req *http.Request) error {
	var scanReq domain.ScanRequest
	if err := json.NewDecoder(req.Body).Decode(&scanReq); err != nil {
		return domain.ValidationError(err.Error())
	}
	for _, r := range scanReq.Regions {
		if err := middleware.ValidateRegionID(r); err != nil {
			return domain.ValidationError(err.Error())
		}
	}
	for _, s := range scanReq.Services {
		if err := middleware.ValidateServiceID(s); err != nil {
			return domain.ValidationError(err.Error())
		}
	}

	job, err := rt.scansSvc.Submit(scanReq)
	if err != nil {
		return err
	}
	return writeJSON(w, job)
}

// GET /api/scans
func (rt *Router) handleListScans(w http.ResponseWriter, _ *http.Request) error {
	jobs := rt.scansSvc.List()
	// most recent first at the service boundary
	for i, j := 0, len(jobs)-1; i < j; i, j = i+1, j-1 {
		jobs[i], jobs[j] = jobs[j], jobs[i]
	}
	return writeJSON(w, map[string]any{"scans": jobs})
}

// GET /api/scan/{jobID}
func (rt *Router) handleGetScan(w http.ResponseWriter, req *http.Request) error {
	job, err := rt.scansSvc.Get(domain.JobID(chi.URLParam(req, "jobID")))
	if err != nil {
		return err
	}
	return writeJSON(w, job)
}

// DELETE /api/scan/{jobID}
func (rt *Router) handleCancelScan(w http.ResponseWriter, req *http.Request) error {
	id := domain.JobID(chi.URLParam(req, "jobID"))
	if err := rt.scansSvc.Cancel(id); err != nil {
		return err
	}
	return writeJSON(w, map[string]string{"status": "cancelling"})
}

// GET /api/scan/{jobID}/events streams job snapshots until terminal.
func (rt *Router) handleScanEvents(w http.ResponseWriter, req *http.Request) error {
	id := domain.JobID(chi.URLParam(req, "jobID"))
	ch, cancel, err := rt.scansSvc.Subscribe(id)
	if err != nil {
		return err
	}
	defer cancel()

	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("streaming unsupported by connection")
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	lastProgress := -1
	sentTerminal := false
	send := func(job *domain.ScanJob) bool {
		// keep the observed progress sequence non-decreasing even when the
		// heartbeat and the subscription race
		if !job.Status.Terminal() && job.Progress < lastProgress {
			return false
		}
		data, err := json.Marshal(job)
		if err != nil {
			return false
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
		lastProgress = job.Progress
		sentTerminal = job.Status.Terminal()
		return sentTerminal
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case job, open := <-ch:
			if !open {
				// topic closed on terminal transition; make sure the final
				// snapshot went out
				if !sentTerminal {
					if job, err := rt.scansSvc.Get(id); err == nil {
						send(job)
					}
				}
				return nil
			}
			if send(job) {
				return nil
			}
		case <-heartbeat.C:
			job, err := rt.scansSvc.Get(id)
			if err != nil {
				return nil
			}
			if send(job) {
				return nil
			}
		case <-req.Context().Done():
			return nil
		}
	}
}

// GET /api/reports
func (rt *Router) handleListReports(w http.ResponseWriter, _ *http.Request) error {
	type report struct {
		AccountID string `json:"account_id"`
		Path      string `json:"path"`
		CreatedAt string `json:"created_at"`
	}
	reports := []report{}

	entries, err := os.ReadDir(rt.reportRoot)
	if err == nil {
		for _, e := range entries {
			if !e.IsDir() || !isAccountDir(e.Name()) {
				continue
			}
			index := filepath.Join(rt.reportRoot, e.Name(), "index.html")
			info, err := os.Stat(index)
			if err != nil {
				continue
			}
			reports = append(reports, report{
				AccountID: e.Name(),
				Path:      fmt.Sprintf("/reports/%s/index.html", e.Name()),
				CreatedAt: info.ModTime().Format(time.RFC3339),
			})
		}
	}
	sort.Slice(reports, func(i, j int) bool { return reports[i].CreatedAt > reports[j].CreatedAt })
	return writeJSON(w, map[string]any{"reports": reports})
}

// GET /reports/{accountID}/* serves generated report files.
func (rt *Router) handleServeReport(w http.ResponseWriter, req *http.Request) {
	accountID := chi.URLParam(req, "accountID")
	rest := chi.URLParam(req, "*")
	if !isAccountDir(accountID) || strings.Contains(rest, "..") {
		http.Error(w, "report not found", http.StatusNotFound)
		return
	}
	path := filepath.Join(rt.reportRoot, accountID, filepath.Clean("/"+rest))
	if _, err := os.Stat(path); err != nil {
		http.Error(w, "report not found", http.StatusNotFound)
		return
	}
	http.ServeFile(w, req, path)
}

func isAccountDir(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
