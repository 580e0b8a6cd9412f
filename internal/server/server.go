package server

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"gigline/internal/domain"
	"gigline/internal/engine"
	"gigline/internal/engine/auth"
	"gigline/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"invalid_transition"`
	Message string         `json:"message" example:"order: cannot go from completed to in_progress"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true" example:"{\"from\":\"completed\"}"`
}

type requestKey struct{}
type bodyBytesKey struct{}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Gigline API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the envelope above.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request validation errors should be 400 bad_request
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			ctx := context.WithValue(r.Context(), requestKey{}, r)
			ctx = context.WithValue(ctx, bodyBytesKey{}, bodyBytes)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine.Repo))
	hcfg := huma.DefaultConfig("Gigline API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerStatus(group, cfg.Engine)
	registerProjects(group, cfg.Engine)
	registerProposals(group, cfg.Engine)
	registerOrders(group, cfg.Engine)
	registerMilestones(group, cfg.Engine)
	registerReviews(group, cfg.Engine)
	registerDisputes(group, cfg.Engine)
	registerSow(group, cfg.Engine)
	registerServices(group, cfg.Engine)
	registerMessages(group, cfg.Engine)
	registerPortfolio(group, cfg.Engine)
	registerEvents(group, cfg.Engine)
	registerRBAC(group, cfg.Engine)
	registerAPIKeys(group, cfg.Engine)
	registerMarketplaceConfig(group, cfg.Engine)
	registerMe(group, cfg.Engine)
	registerDevAuth(group, cfg.Auth)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var se huma.StatusError
	if errors.As(err, &se) {
		return se
	}
	var fe auth.ForbiddenError
	if errors.As(err, &fe) {
		return newAPIError(http.StatusForbidden, "forbidden", err.Error(), map[string]any{"permission": fe.Permission})
	}
	var nfe engine.NotFoundError
	if errors.As(err, &nfe) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), map[string]any{"kind": nfe.Kind, "id": nfe.ID})
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	var ve engine.ValidationError
	if errors.As(err, &ve) {
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), map[string]any{"field": ve.Field})
	}
	var ise engine.InvalidStateError
	if errors.As(err, &ise) {
		return newAPIError(http.StatusConflict, "invalid_state", err.Error(), map[string]any{"kind": ise.Kind, "status": ise.Status})
	}
	var ite engine.InvalidTransitionError
	if errors.As(err, &ite) {
		return newAPIError(http.StatusConflict, "invalid_transition", err.Error(), map[string]any{"from": ite.From, "to": ite.To})
	}
	var ce engine.ConflictError
	if errors.As(err, &ce) {
		return newAPIError(http.StatusConflict, "conflict", err.Error(), map[string]any{"kind": ce.Kind, "id": ce.ID})
	}
	var ge engine.GenerationError
	if errors.As(err, &ge) {
		return newAPIError(http.StatusBadGateway, "generation_failed", err.Error(), map[string]any{"provider": ge.Provider})
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusBadGateway:
		return "generation_failed"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func hasPermission(perms []string, perm string) bool {
	for _, p := range perms {
		if p == perm {
			return true
		}
	}
	return false
}

func requirePermission(ctx context.Context, e engine.Engine, perm string) error {
	principal, authErr := principalFromRequest(ctx)
	if authErr != nil {
		return authErr
	}
	// Dev principals exist only when no jwt secret is configured.
	if principal.Source == "dev" {
		return nil
	}
	if hasPermission(principal.Permissions, perm) {
		return nil
	}
	marketplaceID := ""
	if e.Config != nil {
		marketplaceID = e.Config.Marketplace.ID
	}
	svc := auth.Service{DB: e.DB}
	ok, err := svc.ActorHasPermission(ctx, marketplaceID, principal.ActorID, perm)
	if err != nil {
		return err
	}
	if !ok {
		return auth.ForbiddenError{Permission: perm}
	}
	return nil
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"},
					},
				},
			}
		}
	}
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	oas.Components.SecuritySchemes["apiKeyAuth"] = &huma.SecurityScheme{
		Type: "apiKey",
		In:   "header",
		Name: "X-Api-Key",
	}
	security := []map[string][]string{
		{"bearerAuth": {}},
		{"apiKeyAuth": {}},
	}
	oas.Security = security
	healthPath := path.Join(basePath, "health")
	devLoginPath := path.Join(basePath, "auth/dev/login")
	if !strings.HasPrefix(healthPath, "/") {
		healthPath = "/" + healthPath
	}
	if !strings.HasPrefix(devLoginPath, "/") {
		devLoginPath = "/" + devLoginPath
	}
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if route == healthPath || route == devLoginPath {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Gigline API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt; or X-Api-Key.
    </p>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerStatus(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "status",
		Method:      http.MethodGet,
		Path:        "/status",
		Summary:     "Marketplace status",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]any `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, "project.read"); err != nil {
			return nil, handleError(err)
		}
		marketplaceID := ""
		name := ""
		if e.Config != nil {
			marketplaceID = e.Config.Marketplace.ID
			name = e.Config.Marketplace.Name
		}
		lastEvent, err := e.Repo.LatestEventID(ctx, marketplaceID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]any `json:"body"`
		}{Body: map[string]any{
			"marketplace_id": marketplaceID,
			"name":           name,
			"last_event_id":  lastEvent,
		}}, nil
	})
}

func registerProjects(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-project",
		Method:        http.MethodPost,
		Path:          "/projects",
		Summary:       "Post a project",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusConflict,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateProjectRequest `json:"body"`
	}) (*struct {
		Body ProjectResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if err := requirePermission(ctx, e, "project.create"); err != nil {
			return nil, handleError(err)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.CreateProject(ctx, engine.ProjectCreateOptions{
			ID:          strPtrValue(input.Body.ID),
			BuyerID:     input.Body.BuyerID,
			Title:       input.Body.Title,
			Description: strPtrValue(input.Body.Description),
			Category:    strPtrValue(input.Body.Category),
			BudgetMin:   int64PtrValue(input.Body.BudgetMin),
			BudgetMax:   int64PtrValue(input.Body.BudgetMax),
			Deadline:    strPtrValue(input.Body.Deadline),
			ActorID:     actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProjectResponse `json:"body"`
		}{Body: projectResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-projects",
		Method:      http.MethodGet,
		Path:        "/projects",
		Summary:     "List projects",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		BuyerID  string `query:"buyer_id"`
		Category string `query:"category"`
		Status   string `query:"status" enum:"open,closed"`
		Limit    int    `query:"limit" default:"50"`
	}) (*struct {
		Body []ProjectResponse `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, "project.read"); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListProjects(ctx, repo.ProjectFilters{
			BuyerID:  input.BuyerID,
			Category: input.Category,
			Status:   input.Status,
			Limit:    normalizeLimit(input.Limit),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []ProjectResponse `json:"body"`
		}{Body: mapProjects(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-project",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}",
		Summary:     "Get project",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body ProjectResponse `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, "project.read"); err != nil {
			return nil, handleError(err)
		}
		p, err := e.Repo.GetProject(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProjectResponse `json:"body"`
		}{Body: projectResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "close-project",
		Method:      http.MethodPost,
		Path:        "/projects/{project_id}/close",
		Summary:     "Close project to new proposals",
		Errors: []int{
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body ProjectResponse `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, "project.create"); err != nil {
			return nil, handleError(err)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.CloseProject(ctx, input.ProjectID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProjectResponse `json:"body"`
		}{Body: projectResponse(p)}, nil
	})
}

func registerProposals(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "submit-proposal",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/proposals",
		Summary:       "Submit proposal",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		ProjectID string                `path:"project_id"`
		Body      SubmitProposalRequest `json:"body"`
	}) (*struct {
		Body ProposalResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if err := requirePermission(ctx, e, "proposal.submit"); err != nil {
			return nil, handleError(err)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.SubmitProposal(ctx, engine.ProposalSubmitOptions{
			ID:            strPtrValue(input.Body.ID),
			ProjectID:     input.ProjectID,
			CreatorID:     input.Body.CreatorID,
			ServiceID:     strPtrValue(input.Body.ServiceID),
			DeliveryDays:  input.Body.DeliveryDays,
			MilestonePlan: strPtrValue(input.Body.MilestonePlan),
			RevisionScope: strPtrValue(input.Body.RevisionScope),
			Price:         input.Body.Price,
			ActorID:       actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProposalResponse `json:"body"`
		}{Body: proposalResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-proposals",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/proposals",
		Summary:     "List proposals for a project",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body []ProposalResponse `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, "project.read"); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListProposalsByProject(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []ProposalResponse `json:"body"`
		}{Body: mapProposals(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-proposal",
		Method:      http.MethodGet,
		Path:        "/proposals/{proposal_id}",
		Summary:     "Get proposal",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProposalID string `path:"proposal_id"`
	}) (*struct {
		Body ProposalResponse `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, "project.read"); err != nil {
			return nil, handleError(err)
		}
		p, err := e.Repo.GetProposal(ctx, input.ProposalID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProposalResponse `json:"body"`
		}{Body: proposalResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "decide-proposal",
		Method:      http.MethodPost,
		Path:        "/proposals/{proposal_id}/decision",
		Summary:     "Accept or reject a proposal",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		ProposalID string                `path:"proposal_id"`
		Body       DecideProposalRequest `json:"body"`
	}) (*struct {
		Body DecisionResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if err := requirePermission(ctx, e, "proposal.decide"); err != nil {
			return nil, handleError(err)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, order, err := e.DecideProposal(ctx, input.ProposalID, input.Body.Decision, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		resp := DecisionResponse{Proposal: proposalResponse(p)}
		if order != nil {
			o := orderResponse(*order)
			resp.Order = &o
		}
		return &struct {
			Body DecisionResponse `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-proposal",
		Method:      http.MethodPatch,
		Path:        "/proposals/{proposal_id}",
		Summary:     "Update pending proposal terms",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ProposalID string                `path:"proposal_id"`
		Body       UpdateProposalRequest `json:"body"`
	}) (*struct {
		Body ProposalResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if err := requirePermission(ctx, e, "proposal.update"); err != nil {
			return nil, handleError(err)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.UpdateProposalTerms(ctx, input.ProposalID, engine.ProposalTermsOptions{
			DeliveryDays:  input.Body.DeliveryDays,
			MilestonePlan: input.Body.MilestonePlan,
			RevisionScope: input.Body.RevisionScope,
			Price:         input.Body.Price,
			ActorID:       actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProposalResponse `json:"body"`
		}{Body: proposalResponse(p)}, nil
	})
}

func registerOrders(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-orders",
		Method:      http.MethodGet,
		Path:        "/orders",
		Summary:     "List orders",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		BuyerID   string `query:"buyer_id"`
		CreatorID string `query:"creator_id"`
		ServiceID string `query:"service_id"`
		ProjectID string `query:"project_id"`
		Status    string `query:"status" enum:"created,in_progress,completed,cancelled"`
		Limit     int    `query:"limit" default:"50"`
	}) (*struct {
		Body []OrderResponse `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, "order.read"); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListOrders(ctx, repo.OrderFilters{
			BuyerID:   input.BuyerID,
			CreatorID: input.CreatorID,
			ServiceID: input.ServiceID,
			ProjectID: input.ProjectID,
			Status:    input.Status,
			Limit:     normalizeLimit(input.Limit),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []OrderResponse `json:"body"`
		}{Body: mapOrders(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-order",
		Method:      http.MethodGet,
		Path:        "/orders/{order_id}",
		Summary:     "Get order",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		OrderID string `path:"order_id"`
	}) (*struct {
		Body OrderResponse `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, "order.read"); err != nil {
			return nil, handleError(err)
		}
		o, err := e.Repo.GetOrder(ctx, input.OrderID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body OrderResponse `json:"body"`
		}{Body: orderResponse(o)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-order-status",
		Method:      http.MethodPost,
		Path:        "/orders/{order_id}/status",
		Summary:     "Advance order status",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		OrderID string                `path:"order_id"`
		Body    SetOrderStatusRequest `json:"body"`
	}) (*struct {
		Body OrderResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if err := requirePermission(ctx, e, "order.update"); err != nil {
			return nil, handleError(err)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		o, err := e.UpdateOrderStatus(ctx, input.OrderID, input.Body.Status, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body OrderResponse `json:"body"`
		}{Body: orderResponse(o)}, nil
	})
}

func registerMilestones(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-milestone",
		Method:        http.MethodPost,
		Path:          "/orders/{order_id}/milestones",
		Summary:       "Create milestone",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		OrderID string                 `path:"order_id"`
		Body    CreateMilestoneRequest `json:"body"`
	}) (*struct {
		Body MilestoneResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if err := requirePermission(ctx, e, "milestone.manage"); err != nil {
			return nil, handleError(err)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		m, err := e.CreateMilestone(ctx, engine.MilestoneCreateOptions{
			ID:          strPtrValue(input.Body.ID),
			OrderID:     input.OrderID,
			Title:       input.Body.Title,
			Description: strPtrValue(input.Body.Description),
			DueDate:     strPtrValue(input.Body.DueDate),
			ActorID:     actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body MilestoneResponse `json:"body"`
		}{Body: milestoneResponse(m)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-milestones",
		Method:      http.MethodGet,
		Path:        "/orders/{order_id}/milestones",
		Summary:     "List milestones for an order",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		OrderID string `path:"order_id"`
	}) (*struct {
		Body []MilestoneResponse `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, "order.read"); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListMilestonesByOrder(ctx, input.OrderID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []MilestoneResponse `json:"body"`
		}{Body: mapMilestones(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-milestone",
		Method:      http.MethodPatch,
		Path:        "/milestones/{milestone_id}",
		Summary:     "Update milestone",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		MilestoneID string                 `path:"milestone_id"`
		Body        UpdateMilestoneRequest `json:"body"`
	}) (*struct {
		Body MilestoneResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if err := requirePermission(ctx, e, "milestone.manage"); err != nil {
			return nil, handleError(err)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		m, err := e.UpdateMilestone(ctx, input.MilestoneID, engine.MilestoneUpdateOptions{
			Title:       input.Body.Title,
			Description: input.Body.Description,
			DueDate:     input.Body.DueDate,
			ClearDue:    input.Body.ClearDue,
			State:       input.Body.State,
			ActorID:     actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body MilestoneResponse `json:"body"`
		}{Body: milestoneResponse(m)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "submit-delivery",
		Method:        http.MethodPost,
		Path:          "/milestones/{milestone_id}/deliveries",
		Summary:       "Submit delivery",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		MilestoneID string                `path:"milestone_id"`
		Body        SubmitDeliveryRequest `json:"body"`
	}) (*struct {
		Body DeliveryResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if err := requirePermission(ctx, e, "delivery.submit"); err != nil {
			return nil, handleError(err)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		d, err := e.SubmitDelivery(ctx, engine.DeliverySubmitOptions{
			ID:          strPtrValue(input.Body.ID),
			MilestoneID: input.MilestoneID,
			CreatorID:   input.Body.CreatorID,
			Note:        strPtrValue(input.Body.Note),
			FileURL:     strPtrValue(input.Body.FileURL),
			ActorID:     actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DeliveryResponse `json:"body"`
		}{Body: deliveryResponse(d)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-deliveries",
		Method:      http.MethodGet,
		Path:        "/milestones/{milestone_id}/deliveries",
		Summary:     "List deliveries, oldest first",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		MilestoneID string `path:"milestone_id"`
	}) (*struct {
		Body []DeliveryResponse `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, "order.read"); err != nil {
			return nil, handleError(err)
		}
		items, err := e.ListDeliveries(ctx, input.MilestoneID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []DeliveryResponse `json:"body"`
		}{Body: mapDeliveries(items)}, nil
	})
}

func registerReviews(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-review",
		Method:        http.MethodPost,
		Path:          "/orders/{order_id}/reviews",
		Summary:       "Leave review",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		OrderID string              `path:"order_id"`
		Body    CreateReviewRequest `json:"body"`
	}) (*struct {
		Body ReviewResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if err := requirePermission(ctx, e, "review.create"); err != nil {
			return nil, handleError(err)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		rv, err := e.CreateReview(ctx, engine.ReviewCreateOptions{
			ID:         strPtrValue(input.Body.ID),
			OrderID:    input.OrderID,
			ReviewerID: input.Body.ReviewerID,
			RevieweeID: input.Body.RevieweeID,
			Rating:     input.Body.Rating,
			Comment:    strPtrValue(input.Body.Comment),
			ActorID:    actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ReviewResponse `json:"body"`
		}{Body: reviewResponse(rv)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-project-reviews",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/reviews",
		Summary:     "List reviews for a project",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body []ReviewResponse `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, "project.read"); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListReviewsByProject(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []ReviewResponse `json:"body"`
		}{Body: mapReviews(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-actor-reviews",
		Method:      http.MethodGet,
		Path:        "/actors/{actor_id}/reviews",
		Summary:     "List reviews received by an actor",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		ActorID string `path:"actor_id"`
	}) (*struct {
		Body []ReviewResponse `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, "project.read"); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListReviewsByReviewee(ctx, input.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []ReviewResponse `json:"body"`
		}{Body: mapReviews(items)}, nil
	})
}

func registerDisputes(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "raise-dispute",
		Method:        http.MethodPost,
		Path:          "/orders/{order_id}/disputes",
		Summary:       "Raise dispute",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		OrderID string              `path:"order_id"`
		Body    RaiseDisputeRequest `json:"body"`
	}) (*struct {
		Body DisputeResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if err := requirePermission(ctx, e, "dispute.raise"); err != nil {
			return nil, handleError(err)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		d, err := e.RaiseDispute(ctx, engine.DisputeRaiseOptions{
			ID:       strPtrValue(input.Body.ID),
			OrderID:  input.OrderID,
			RaisedBy: input.Body.RaisedBy,
			Reason:   input.Body.Reason,
			Evidence: input.Body.Evidence,
			ActorID:  actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DisputeResponse `json:"body"`
		}{Body: disputeResponse(d)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-dispute",
		Method:      http.MethodGet,
		Path:        "/disputes/{dispute_id}",
		Summary:     "Get dispute",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		DisputeID string `path:"dispute_id"`
	}) (*struct {
		Body DisputeResponse `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, "order.read"); err != nil {
			return nil, handleError(err)
		}
		d, err := e.Repo.GetDispute(ctx, input.DisputeID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DisputeResponse `json:"body"`
		}{Body: disputeResponse(d)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-dispute-status",
		Method:      http.MethodPost,
		Path:        "/disputes/{dispute_id}/status",
		Summary:     "Advance dispute status",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		DisputeID string                  `path:"dispute_id"`
		Body      SetDisputeStatusRequest `json:"body"`
	}) (*struct {
		Body DisputeResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if err := requirePermission(ctx, e, "dispute.advance"); err != nil {
			return nil, handleError(err)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		d, err := e.AdvanceDisputeStatus(ctx, input.DisputeID, input.Body.Status, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DisputeResponse `json:"body"`
		}{Body: disputeResponse(d)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-project-disputes",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/disputes",
		Summary:     "List disputes for a project",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body []DisputeResponse `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, "project.read"); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListDisputesByProject(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []DisputeResponse `json:"body"`
		}{Body: mapDisputes(items)}, nil
	})
}

func registerSow(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "generate-sow",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/sow",
		Summary:       "Generate statement of work",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusBadGateway,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		ProjectID string             `path:"project_id"`
		Body      GenerateSowRequest `json:"body,omitempty"`
	}) (*struct {
		Body SowResponse `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, "sow.generate"); err != nil {
			return nil, handleError(err)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		s, err := e.GenerateSOW(ctx, input.ProjectID, engine.SowGenerateOptions{
			VideoDurationSeconds: input.Body.VideoDurationSeconds,
			VideoStyle:           input.Body.VideoStyle,
			VideoReferences:      input.Body.VideoReferences,
			ActorID:              actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SowResponse `json:"body"`
		}{Body: sowResponse(s)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-latest-sow",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/sow",
		Summary:     "Get latest statement of work",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body SowResponse `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, "project.read"); err != nil {
			return nil, handleError(err)
		}
		s, err := e.Repo.GetLatestSOW(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SowResponse `json:"body"`
		}{Body: sowResponse(s)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-sow-versions",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/sow/versions",
		Summary:     "List statement of work versions",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body []SowResponse `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, "project.read"); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListSOWVersions(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		res := make([]SowResponse, 0, len(items))
		for _, s := range items {
			res = append(res, sowResponse(s))
		}
		return &struct {
			Body []SowResponse `json:"body"`
		}{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-sow-version",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/sow/versions/{version}",
		Summary:     "Get statement of work version",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
		Version   string `path:"version"`
	}) (*struct {
		Body SowResponse `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, "project.read"); err != nil {
			return nil, handleError(err)
		}
		version, err := strconv.Atoi(input.Version)
		if err != nil || version < 1 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid version", map[string]any{"version": input.Version})
		}
		s, err := e.Repo.GetSOW(ctx, input.ProjectID, version)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SowResponse `json:"body"`
		}{Body: sowResponse(s)}, nil
	})
}

func registerServices(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-service",
		Method:        http.MethodPost,
		Path:          "/services",
		Summary:       "Publish service listing",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateServiceRequest `json:"body"`
	}) (*struct {
		Body ServiceResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if err := requirePermission(ctx, e, "service.create"); err != nil {
			return nil, handleError(err)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		s, err := e.CreateService(ctx, engine.ServiceCreateOptions{
			ID:          strPtrValue(input.Body.ID),
			CreatorID:   input.Body.CreatorID,
			Title:       input.Body.Title,
			Description: strPtrValue(input.Body.Description),
			Category:    strPtrValue(input.Body.Category),
			Price:       input.Body.Price,
			ActorID:     actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ServiceResponse `json:"body"`
		}{Body: serviceResponse(s)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-services",
		Method:      http.MethodGet,
		Path:        "/services",
		Summary:     "List services",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		CreatorID string `query:"creator_id"`
		Category  string `query:"category"`
		Featured  string `query:"featured"`
		Limit     int    `query:"limit" default:"50"`
	}) (*struct {
		Body []ServiceResponse `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, "project.read"); err != nil {
			return nil, handleError(err)
		}
		var featured *bool
		if input.Featured != "" {
			v, err := strconv.ParseBool(input.Featured)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "featured must be true or false", nil)
			}
			featured = &v
		}
		items, err := e.Repo.ListServices(ctx, repo.ServiceFilters{
			CreatorID: input.CreatorID,
			Category:  input.Category,
			Featured:  featured,
			Limit:     normalizeLimit(input.Limit),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []ServiceResponse `json:"body"`
		}{Body: mapServices(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-service",
		Method:      http.MethodGet,
		Path:        "/services/{service_id}",
		Summary:     "Get service",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ServiceID string `path:"service_id"`
	}) (*struct {
		Body ServiceResponse `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, "project.read"); err != nil {
			return nil, handleError(err)
		}
		s, err := e.Repo.GetService(ctx, input.ServiceID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ServiceResponse `json:"body"`
		}{Body: serviceResponse(s)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "feature-service",
		Method:      http.MethodPost,
		Path:        "/services/{service_id}/feature",
		Summary:     "Feature or unfeature a service",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ServiceID string                `path:"service_id"`
		Body      FeatureServiceRequest `json:"body"`
	}) (*struct {
		Body ServiceResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if err := requirePermission(ctx, e, "service.feature"); err != nil {
			return nil, handleError(err)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		s, err := e.SetServiceFeatured(ctx, input.ServiceID, input.Body.Featured, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ServiceResponse `json:"body"`
		}{Body: serviceResponse(s)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-categories",
		Method:      http.MethodGet,
		Path:        "/categories",
		Summary:     "List service categories",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []CategoryResponse `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, "project.read"); err != nil {
			return nil, handleError(err)
		}
		if e.Config == nil {
			return &struct {
				Body []CategoryResponse `json:"body"`
			}{Body: []CategoryResponse{}}, nil
		}
		return &struct {
			Body []CategoryResponse `json:"body"`
		}{Body: configResponse(e.Config).Categories}, nil
	})
}

func registerMessages(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "post-message",
		Method:        http.MethodPost,
		Path:          "/orders/{order_id}/messages",
		Summary:       "Post order message",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		OrderID string             `path:"order_id"`
		Body    PostMessageRequest `json:"body"`
	}) (*struct {
		Body MessageResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if err := requirePermission(ctx, e, "message.post"); err != nil {
			return nil, handleError(err)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		m, err := e.PostMessage(ctx, engine.MessagePostOptions{
			ID:       strPtrValue(input.Body.ID),
			OrderID:  input.OrderID,
			SenderID: input.Body.SenderID,
			Body:     input.Body.Body,
			ActorID:  actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body MessageResponse `json:"body"`
		}{Body: messageResponse(m)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-messages",
		Method:      http.MethodGet,
		Path:        "/orders/{order_id}/messages",
		Summary:     "List order messages, oldest first",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		OrderID string `path:"order_id"`
	}) (*struct {
		Body []MessageResponse `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, "order.read"); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListMessagesByOrder(ctx, input.OrderID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []MessageResponse `json:"body"`
		}{Body: mapMessages(items)}, nil
	})
}

func registerPortfolio(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "add-portfolio-item",
		Method:        http.MethodPost,
		Path:          "/portfolio",
		Summary:       "Add portfolio item",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body AddPortfolioItemRequest `json:"body"`
	}) (*struct {
		Body PortfolioItemResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if err := requirePermission(ctx, e, "portfolio.manage"); err != nil {
			return nil, handleError(err)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		item, err := e.AddPortfolioItem(ctx, engine.PortfolioAddOptions{
			ID:          strPtrValue(input.Body.ID),
			CreatorID:   input.Body.CreatorID,
			Title:       input.Body.Title,
			Description: strPtrValue(input.Body.Description),
			URL:         strPtrValue(input.Body.URL),
			ActorID:     actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body PortfolioItemResponse `json:"body"`
		}{Body: portfolioItemResponse(item)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-portfolio",
		Method:      http.MethodGet,
		Path:        "/actors/{actor_id}/portfolio",
		Summary:     "List portfolio items for a creator",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		ActorID string `path:"actor_id"`
	}) (*struct {
		Body []PortfolioItemResponse `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, "project.read"); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListPortfolioByCreator(ctx, input.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		res := make([]PortfolioItemResponse, 0, len(items))
		for _, item := range items {
			res = append(res, portfolioItemResponse(item))
		}
		return &struct {
			Body []PortfolioItemResponse `json:"body"`
		}{Body: res}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List recent events",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind" enum:"project,proposal,order,milestone,delivery,review,dispute,sow,service,message,portfolio,rbac"`
		EntityID   string `query:"entity_id"`
		Limit      int    `query:"limit" default:"50"`
		Cursor     string `query:"cursor"`
	}) (*struct {
		Body paginatedEvents `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, "project.read"); err != nil {
			return nil, handleError(err)
		}
		limit := normalizeLimit(input.Limit)
		var cursorID int64
		if input.Cursor != "" {
			parsed, err := strconv.ParseInt(input.Cursor, 10, 64)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
			}
			cursorID = parsed
		}
		marketplaceID := ""
		if e.Config != nil {
			marketplaceID = e.Config.Marketplace.ID
		}
		items, err := e.Repo.LatestEventsFrom(ctx, limit+1, cursorID, marketplaceID, input.Type, input.EntityKind, input.EntityID)
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedEvents{Items: []EventResponse{}}
		if len(items) > limit {
			resp.NextCursor = fmt.Sprintf("%d", items[limit].ID)
			items = items[:limit]
		}
		for _, evt := range items {
			resp.Items = append(resp.Items, eventResponse(evt))
		}
		return &struct {
			Body paginatedEvents `json:"body"`
		}{Body: resp}, nil
	})
}

func registerRBAC(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "grant-role",
		Method:      http.MethodPost,
		Path:        "/rbac/roles/grant",
		Summary:     "Grant role",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body RoleChangeRequest `json:"body"`
	}) (*struct{}, error) {
		if err := requirePermission(ctx, e, "rbac.manage"); err != nil {
			return nil, handleError(err)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.AssignRole(ctx, input.Body.ActorID, input.Body.RoleID, actorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "revoke-role",
		Method:      http.MethodPost,
		Path:        "/rbac/roles/revoke",
		Summary:     "Revoke role",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body RoleChangeRequest `json:"body"`
	}) (*struct{}, error) {
		if err := requirePermission(ctx, e, "rbac.manage"); err != nil {
			return nil, handleError(err)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.RevokeRole(ctx, input.Body.ActorID, input.Body.RoleID, actorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerAPIKeys(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-apikey",
		Method:        http.MethodPost,
		Path:          "/apikeys",
		Summary:       "Mint API key",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateAPIKeyRequest `json:"body"`
	}) (*struct {
		Body APIKeyCreatedResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if input.Body.ActorID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "actor_id is required", nil)
		}
		if err := requirePermission(ctx, e, "rbac.manage"); err != nil {
			return nil, handleError(err)
		}
		plaintext, err := mintAPIKey()
		if err != nil {
			return nil, handleError(err)
		}
		key := domain.APIKey{
			ID:        uuid.NewString(),
			ActorID:   input.Body.ActorID,
			Name:      input.Body.Name,
			KeyHash:   repo.HashAPIKey(plaintext),
			CreatedAt: e.Now().UTC().Format("2006-01-02T15:04:05Z07:00"),
		}
		if err := e.Repo.InsertAPIKey(ctx, nil, key); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body APIKeyCreatedResponse `json:"body"`
		}{Body: APIKeyCreatedResponse{
			APIKeyResponse: apiKeyResponse(key),
			Key:            plaintext,
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-apikeys",
		Method:      http.MethodGet,
		Path:        "/apikeys",
		Summary:     "List API keys",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		ActorID string `query:"actor_id"`
	}) (*struct {
		Body []APIKeyResponse `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, "rbac.manage"); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListAPIKeys(ctx, input.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		res := make([]APIKeyResponse, 0, len(items))
		for _, k := range items {
			res = append(res, apiKeyResponse(k))
		}
		return &struct {
			Body []APIKeyResponse `json:"body"`
		}{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-apikey",
		Method:      http.MethodDelete,
		Path:        "/apikeys/{key_id}",
		Summary:     "Delete API key",
		Errors: []int{
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		KeyID string `path:"key_id"`
	}) (*struct{}, error) {
		if err := requirePermission(ctx, e, "rbac.manage"); err != nil {
			return nil, handleError(err)
		}
		if err := e.Repo.DeleteAPIKey(ctx, input.KeyID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerMarketplaceConfig(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-config",
		Method:      http.MethodGet,
		Path:        "/config",
		Summary:     "Marketplace configuration",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body MarketplaceConfigResponse `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, "project.read"); err != nil {
			return nil, handleError(err)
		}
		if e.Config == nil {
			return nil, newAPIError(http.StatusNotFound, "not_found", "marketplace config not loaded", nil)
		}
		return &struct {
			Body MarketplaceConfigResponse `json:"body"`
		}{Body: configResponse(e.Config)}, nil
	})
}

func registerMe(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Current principal",
		Errors: []int{
			http.StatusUnauthorized,
		},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body WhoAmIResponse `json:"body"`
	}, error) {
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		roles := principal.Roles
		perms := principal.Permissions
		if len(perms) == 0 && e.Config != nil {
			svc := auth.Service{DB: e.DB}
			if dbRoles, err := svc.ActorRoles(ctx, e.Config.Marketplace.ID, principal.ActorID); err == nil && len(roles) == 0 {
				roles = dbRoles
			}
			if dbPerms, err := svc.ActorPermissions(ctx, e.Config.Marketplace.ID, principal.ActorID); err == nil {
				perms = dbPerms
			}
		}
		return &struct {
			Body WhoAmIResponse `json:"body"`
		}{Body: WhoAmIResponse{
			ActorID:     principal.ActorID,
			Roles:       nonNilSlice(roles),
			Permissions: nonNilSlice(perms),
			Source:      principal.Source,
		}}, nil
	})
}

func registerDevAuth(api huma.API, authCfg AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID: "dev-login",
		Method:      http.MethodPost,
		Path:        "/auth/dev/login",
		Summary:     "DEV ONLY: mint a JWT for local testing",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body DevLoginRequest `json:"body"`
	}) (*struct {
		Body DevLoginResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actor := strings.TrimSpace(input.Body.ActorID)
		if actor == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "actor_id is required", nil)
		}
		token, err := signDevToken(authCfg.JWTSecret, actor, input.Body.Roles, input.Body.Scopes)
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, "internal_error", err.Error(), nil)
		}
		return &struct {
			Body DevLoginResponse `json:"body"`
		}{Body: DevLoginResponse{Token: token}}, nil
	})
}

func mintAPIKey() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return "gig_" + hex.EncodeToString(raw), nil
}

func bodyBytes(ctx context.Context) []byte {
	if buf, ok := ctx.Value(bodyBytesKey{}).([]byte); ok {
		return buf
	}
	req, ok := ctx.Value(requestKey{}).(*http.Request)
	if !ok || req == nil {
		return nil
	}
	data, _ := io.ReadAll(req.Body)
	return data
}

func normalizeLimit(in int) int {
	if in <= 0 {
		return 50
	}
	if in > 200 {
		return 200
	}
	return in
}

func mapProjects(items []domain.Project) []ProjectResponse {
	res := make([]ProjectResponse, 0, len(items))
	for _, p := range items {
		res = append(res, projectResponse(p))
	}
	return res
}

func mapProposals(items []domain.Proposal) []ProposalResponse {
	res := make([]ProposalResponse, 0, len(items))
	for _, p := range items {
		res = append(res, proposalResponse(p))
	}
	return res
}

func mapOrders(items []domain.Order) []OrderResponse {
	res := make([]OrderResponse, 0, len(items))
	for _, o := range items {
		res = append(res, orderResponse(o))
	}
	return res
}

func mapMilestones(items []domain.Milestone) []MilestoneResponse {
	res := make([]MilestoneResponse, 0, len(items))
	for _, m := range items {
		res = append(res, milestoneResponse(m))
	}
	return res
}

func mapDeliveries(items []domain.Delivery) []DeliveryResponse {
	res := make([]DeliveryResponse, 0, len(items))
	for _, d := range items {
		res = append(res, deliveryResponse(d))
	}
	return res
}

func mapReviews(items []domain.Review) []ReviewResponse {
	res := make([]ReviewResponse, 0, len(items))
	for _, rv := range items {
		res = append(res, reviewResponse(rv))
	}
	return res
}

func mapDisputes(items []domain.Dispute) []DisputeResponse {
	res := make([]DisputeResponse, 0, len(items))
	for _, d := range items {
		res = append(res, disputeResponse(d))
	}
	return res
}

func mapServices(items []domain.Service) []ServiceResponse {
	res := make([]ServiceResponse, 0, len(items))
	for _, s := range items {
		res = append(res, serviceResponse(s))
	}
	return res
}

func mapMessages(items []domain.Message) []MessageResponse {
	res := make([]MessageResponse, 0, len(items))
	for _, m := range items {
		res = append(res, messageResponse(m))
	}
	return res
}
