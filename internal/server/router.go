package server

import (
	"context"
	"net/http"

	"nutrilab/internal/handlers"
	applog "nutrilab/internal/log"
)

type route struct {
	pattern string
	handler http.HandlerFunc
}

var routes = []route{
	{"GET /healthz", handlers.Health},
	{"GET /api/products", handlers.ListProducts},
	{"POST /api/products", handlers.CreateProduct},
	{"POST /api/products/draft", handlers.SaveDraft},
	{"POST /api/products/import/{barcode}", handlers.ImportProduct},
	{"GET /api/products/{barcode}", handlers.GetProduct},
	{"PUT /api/products/{barcode}", handlers.UpdateProduct},
	{"DELETE /api/products/{barcode}", handlers.DeleteProduct},
	{"GET /api/off/{barcode}", handlers.OpenFoodFactsProduct},
	{"GET /api/macronutrients", handlers.Macronutrients},
	{"GET /api/macronutrients/form-data", handlers.MacronutrientFormData},
}

func newRouter() http.Handler {
	mux := http.NewServeMux()
	applog.Debug(context.Background(), "registering http routes")
	for _, rt := range routes {
		mux.HandleFunc(rt.pattern, rt.handler)
		applog.Debug(context.Background(), "route registered", "pattern", rt.pattern)
	}
	return mux
}
