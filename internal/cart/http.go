package cart

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"AwesomeShop/internal/catalog"
	"AwesomeShop/pkg/kit"
)

var validate = validator.New()

type Server struct {
	Catalog  catalog.Store
	Store    Store
	Sessions *Sessions
	Log      *zap.Logger
}

type addItemRequest struct {
	ProductID int `json:"product_id" validate:"required,gt=0"`
}

type View struct {
	Items []catalog.Product `json:"items"`
	Count int               `json:"count"`
	Total decimal.Decimal   `json:"total"`
}

type AddResponse struct {
	Message string          `json:"message"`
	Item    catalog.Product `json:"item"`
	View
}

// Routes serves the cart API; mount it at /api/cart.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(noStore)
	r.Get("/", s.get)
	r.Post("/items", s.add)

	return r
}

// noStore keeps per-session responses out of shared caches.
func noStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "private, no-store")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	session := s.Sessions.ID(w, r)

	items, err := s.Store.Items(r.Context(), session)
	if err != nil {
		s.serverError(w, r, "list cart failed", err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, newView(items))
}

func (s *Server) add(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := kit.DecodeJSON(w, r, &req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			details := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				details[fe.Field()] = fe.Tag()
			}
			kit.WriteError(w, r, http.StatusBadRequest, "validation failed", details)
			return
		}
		kit.WriteError(w, r, http.StatusBadRequest, "validation failed", nil)
		return
	}

	p, ok, err := s.Catalog.Get(r.Context(), req.ProductID)
	if err != nil {
		s.serverError(w, r, "lookup product failed", err)
		return
	}
	if !ok {
		kit.WriteError(w, r, http.StatusNotFound, "product not found", map[string]any{"product_id": req.ProductID})
		return
	}

	session := s.Sessions.ID(w, r)
	items, err := s.Store.Add(r.Context(), session, p)
	if err != nil {
		s.serverError(w, r, "add to cart failed", err)
		return
	}

	kit.WriteJSON(w, http.StatusCreated, AddResponse{
		Message: fmt.Sprintf("%s added to cart!", p.Name),
		Item:    p,
		View:    newView(items),
	})
}

func (s *Server) serverError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	if s.Log != nil {
		s.Log.Error(msg, zap.Error(err))
	}
	kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
}

func newView(items []catalog.Product) View {
	if items == nil {
		items = []catalog.Product{}
	}
	total := decimal.Zero
	for _, p := range items {
		total = total.Add(p.Price)
	}
	return View{Items: items, Count: len(items), Total: total}
}
