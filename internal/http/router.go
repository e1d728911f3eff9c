package http

import (
	"net/http"

	"stockledger/internal/access"
	"stockledger/internal/domain"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type documentRoute struct {
	path    string
	kind    domain.DocumentKind
	feature access.Feature
}

var documentRoutes = []documentRoute{
	{"/purchase-bills", domain.KindPurchaseBill, access.FeaturePurchaseBills},
	{"/sales-invoices", domain.KindSalesInvoice, access.FeatureSalesInvoices},
	{"/sales-returns", domain.KindSalesReturn, access.FeatureSalesReturns},
	{"/purchase-orders", domain.KindPurchaseOrder, access.FeaturePurchaseOrders},
	{"/sales-orders", domain.KindSalesOrder, access.FeatureSalesOrders},
}

func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(Logger(handler.logger))
	r.Use(Recoverer(handler.logger))
	r.Use(Timeout)
	r.Use(CORS)

	r.Get("/healthz", handler.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(Actor)

		r.Route("/items", func(r chi.Router) {
			r.With(Require(access.FeatureItems, access.ActionRead)).Get("/", handler.ListItems)
			r.With(Require(access.FeatureItems, access.ActionRead)).Get("/low-stock", handler.LowStock)
			r.With(Require(access.FeatureItems, access.ActionWrite)).Post("/", handler.CreateItem)
			r.With(Require(access.FeatureItems, access.ActionWrite)).Post("/import-excel", handler.ImportItemsExcel)
			r.With(Require(access.FeatureItems, access.ActionRead)).Get("/{id}", handler.GetItem)
			r.With(Require(access.FeatureItems, access.ActionWrite)).Patch("/{id}", handler.PatchItem)
			r.With(Require(access.FeatureItems, access.ActionDelete)).Delete("/{id}", handler.DeactivateItem)
			r.With(Require(access.FeatureMovements, access.ActionWrite)).Post("/{id}/adjust-stock", handler.AdjustStock)
		})

		r.Route("/stock-movements", func(r chi.Router) {
			r.Use(Require(access.FeatureMovements, access.ActionRead))
			r.Get("/", handler.ListMovements)
			r.Get("/export", handler.ExportMovements)
		})

		r.Route("/alerts", func(r chi.Router) {
			r.With(Require(access.FeatureAlerts, access.ActionRead)).Get("/", handler.ListAlerts)
			r.With(Require(access.FeatureAlerts, access.ActionRead)).Get("/unresolved-count", handler.UnresolvedAlertCount)
			r.With(Require(access.FeatureAlerts, access.ActionRead)).Get("/{id}", handler.GetAlert)
			r.With(Require(access.FeatureAlerts, access.ActionResolve)).Patch("/{id}/resolve", handler.ResolveAlert)
			r.With(Require(access.FeatureAlerts, access.ActionDelete)).Delete("/{id}", handler.DeleteAlert)
		})

		for _, route := range documentRoutes {
			r.Route(route.path, func(r chi.Router) {
				mountDocuments(r, handler, route)
			})
		}
	})

	return r
}

func mountDocuments(r chi.Router, handler *Handler, route documentRoute) {
	d := documentHandlers{h: handler, kind: route.kind}
	read := Require(route.feature, access.ActionRead)
	write := Require(route.feature, access.ActionWrite)

	r.With(read).Get("/", d.list)
	r.With(write).Post("/", d.create)
	r.With(read).Get("/{id}", d.get)
	r.With(write).Put("/{id}", d.update)
	r.With(Require(route.feature, access.ActionDelete)).Delete("/{id}", d.delete)

	if route.kind.AffectsStock() {
		r.With(write).Patch("/{id}/complete", d.complete)
	}
	if route.kind.Payable() {
		r.With(write).Post("/{id}/payments", d.recordPayment)
		r.With(read).Get("/{id}/payments", d.paymentSummary)
	}
	if route.kind.IsOrder() {
		r.With(Require(route.feature, access.ActionStatus)).Patch("/{id}/status", d.setStatus)
	}
}
