package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/GOSC-CNIC/probewatch/config"
	"github.com/GOSC-CNIC/probewatch/lib"
	"github.com/GOSC-CNIC/probewatch/lib/errs"
	"github.com/GOSC-CNIC/probewatch/lib/models"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func NewAPI(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, svc *lib.Service) *http.Server {
	addr := fmt.Sprintf(":%d", cfg.ServerPort)
	srv := &http.Server{Addr: addr, Handler: router(cfg, log, svc)}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go srv.ListenAndServe()
			return nil
		},
		OnStop: srv.Shutdown,
	})

	return srv
}

func router(cfg *config.Config, log *zap.Logger, svc *lib.Service) http.Handler {
	ctrl := &controller{log, svc}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		// Poller surface: no auth, throttled at the boundary instead.
		r.Group(func(r chi.Router) {
			r.Use(middleware.ThrottleBacklog(100, 200, time.Second))
			r.Get("/tasks", ctrl.listTasks)
			r.Get("/tasks/version", ctrl.taskVersion)
		})

		r.Group(func(r chi.Router) {
			if creds := cfg.GetCreds(); len(creds) > 0 {
				r.Use(middleware.BasicAuth("probewatch", creds))
			} else {
				log.Sugar().Info("Auth is disabled since no credentials are defined")
			}

			r.Route("/subscriptions", func(r chi.Router) {
				r.Post("/", ctrl.createSubscription)
				r.Get("/", ctrl.listSubscriptions)
				r.Put("/{subscription_id}", ctrl.editSubscription)
				r.Delete("/{subscription_id}", ctrl.deleteSubscription)
				r.Post("/{subscription_id}/attention", ctrl.markAttention)
			})
		})
	})

	return r
}

type controller struct {
	log *zap.Logger
	svc *lib.Service
}

func (ctrl *controller) reject(w http.ResponseWriter, err error) {
	code := errs.CodeOf(err)
	var message string
	var coded *errs.Error
	if errors.As(err, &coded) {
		message = coded.Message
	} else {
		ctrl.log.Sugar().Errorw("Request failed", "err", err)
		message = "unexpected error"
	}

	body, _ := json.Marshal(map[string]string{"code": string(code), "message": message})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(errs.HTTPStatus(code))
	w.Write(body)
}

func (ctrl *controller) resolve(w http.ResponseWriter, status int, body any) {
	if body == nil {
		w.WriteHeader(status)
		return
	}
	b, err := json.Marshal(body)
	if err != nil {
		ctrl.reject(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(b)
}

// owner derives the subscription owner from the authenticated principal.
func (ctrl *controller) owner(r *http.Request) models.Owner {
	user, _, _ := r.BasicAuth()
	return models.Owner{UserID: user}
}

type subscriptionPayload struct {
	Scheme            string `json:"scheme"`
	Hostname          string `json:"hostname"`
	URI               string `json:"uri"`
	IsTamperResistant bool   `json:"is_tamper_resistant"`
	Name              string `json:"name"`
	Remark            string `json:"remark"`
}

func (ctrl *controller) createSubscription(w http.ResponseWriter, r *http.Request) {
	var payload subscriptionPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		ctrl.reject(w, errs.New(errs.CodeInvalidArgument, "malformed request body"))
		return
	}

	sub, err := ctrl.svc.Subscribe(
		r.Context(), ctrl.owner(r),
		payload.Scheme, payload.Hostname, payload.URI,
		payload.IsTamperResistant, payload.Name, payload.Remark,
	)
	if err != nil {
		ctrl.reject(w, err)
		return
	}
	ctrl.resolve(w, http.StatusCreated, SubscriptionView{}.From(sub))
}

func (ctrl *controller) listSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := ctrl.svc.ListSubscriptions(r.Context(), ctrl.owner(r))
	if err != nil {
		ctrl.reject(w, err)
		return
	}

	views := make([]SubscriptionView, len(subs))
	for i := range subs {
		views[i] = SubscriptionView{}.From(&subs[i])
	}
	ctrl.resolve(w, http.StatusOK, map[string]any{"results": views})
}

func (ctrl *controller) editSubscription(w http.ResponseWriter, r *http.Request) {
	subID := chi.URLParam(r, "subscription_id")

	var payload subscriptionPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		ctrl.reject(w, errs.New(errs.CodeInvalidArgument, "malformed request body"))
		return
	}

	sub, err := ctrl.svc.Edit(
		r.Context(), subID, ctrl.owner(r),
		payload.Scheme, payload.Hostname, payload.URI,
		payload.IsTamperResistant, payload.Name, payload.Remark,
	)
	if err != nil {
		ctrl.reject(w, err)
		return
	}
	ctrl.resolve(w, http.StatusOK, SubscriptionView{}.From(sub))
}

func (ctrl *controller) deleteSubscription(w http.ResponseWriter, r *http.Request) {
	subID := chi.URLParam(r, "subscription_id")

	if err := ctrl.svc.Unsubscribe(r.Context(), subID, ctrl.owner(r)); err != nil {
		ctrl.reject(w, err)
		return
	}
	ctrl.resolve(w, http.StatusNoContent, nil)
}

func (ctrl *controller) markAttention(w http.ResponseWriter, r *http.Request) {
	subID := chi.URLParam(r, "subscription_id")

	var payload struct {
		Attention bool `json:"attention"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		ctrl.reject(w, errs.New(errs.CodeInvalidArgument, "malformed request body"))
		return
	}

	sub, err := ctrl.svc.SetAttention(r.Context(), subID, ctrl.owner(r), payload.Attention)
	if err != nil {
		ctrl.reject(w, err)
		return
	}
	ctrl.resolve(w, http.StatusOK, SubscriptionView{}.From(sub))
}

func (ctrl *controller) listTasks(w http.ResponseWriter, r *http.Request) {
	marker := r.URL.Query().Get("marker")
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))

	page, err := ctrl.svc.ListProbeTasks(r.Context(), marker, pageSize)
	if err != nil {
		ctrl.reject(w, err)
		return
	}
	ctrl.resolve(w, http.StatusOK, TaskPageView{}.From(page))
}

func (ctrl *controller) taskVersion(w http.ResponseWriter, r *http.Request) {
	version, err := ctrl.svc.CurrentVersion(r.Context())
	if err != nil {
		ctrl.reject(w, err)
		return
	}
	ctrl.resolve(w, http.StatusOK, map[string]int64{"version": version})
}
