package router

import (
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger/v2"

	"gocontagem/config"
	"gocontagem/internal/api/count"
	"gocontagem/internal/api/inventory"
	"gocontagem/internal/api/operator"
	"gocontagem/internal/api/product"
	"gocontagem/internal/api/sector"
	"gocontagem/internal/api/stream"
	"gocontagem/internal/domain"
	"gocontagem/internal/pkg/cache"
	"gocontagem/internal/pkg/middleware"
)

// NewRouter configura e retorna o roteador HTTP principal.
// Recebe os Handlers já inicializados por injeção de dependências.
func NewRouter(
	operatorHandler *operator.Handler,
	countHandler *count.Handler,
	sectorHandler *sector.Handler,
	inventoryHandler *inventory.Handler,
	productHandler *product.Handler,
	streamHandler *stream.Handler,
	tokenSvc middleware.TokenService,
	cacheClient cache.Client,
	cfg *config.Config,
) http.Handler {

	// Usamos o ServeMux padrão do net/http para roteamento.
	// Os patterns com método e wildcard (Go 1.22+) dispensam um mux de terceiros.
	mux := http.NewServeMux()

	// Middlewares por rota
	auth := middleware.NewAuthMiddleware(tokenSvc)
	adminOnly := middleware.PermissionMiddleware(domain.RoleAdmin)
	rateLimit := middleware.RateLimiter(cacheClient, cfg.RateLimitMaxRequests, cfg.RateLimitPeriod)

	// limited aplica o rate limiter do Redis em cima de um handler já autenticado.
	limited := func(h http.HandlerFunc) http.Handler {
		return rateLimit(h)
	}

	// --- 1. Health Check e Documentação ---
	mux.HandleFunc("GET /ping", PingHandler)
	mux.Handle("GET /swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	// --- 2. Autenticação ---
	mux.Handle("POST /v1/login", limited(operatorHandler.LoginHandler))

	// --- 3. Contagens ---
	// O commit de contagem é a rota mais quente da API: cada bip do coletor
	// que não foi absorvido pelo debounce chega aqui.
	mux.Handle("POST /v1/contagens", limited(auth(countHandler.CommitCountHandler)))

	// --- 4. Setores (fechamento e reabertura) ---
	mux.Handle("POST /v1/setores/{id}/fechar", limited(auth(sectorHandler.CloseSectorHandler)))
	mux.Handle("POST /v1/setores/{id}/reabrir", limited(auth(sectorHandler.ReopenSectorHandler)))

	// --- 5. Inventários ---
	mux.HandleFunc("GET /v1/inventarios/{id}/impedimentos", auth(inventoryHandler.GetBlockersHandler))
	mux.HandleFunc("GET /v1/inventarios/{id}/metricas", auth(inventoryHandler.GetMetricsHandler))
	mux.Handle("POST /v1/inventarios/{id}/fechar", limited(auth(inventoryHandler.CloseInventoryHandler)))
	// Reabertura é um ato administrativo: o inventário fechado é um marco
	// contábil e só um admin pode desfazê-lo.
	mux.Handle("POST /v1/inventarios/{id}/reabrir", limited(auth(adminOnly(inventoryHandler.ReopenInventoryHandler))))

	// --- 6. Stream de monitoramento (SSE) ---
	// Sem rate limit: é uma conexão de longa duração, não uma rajada de requests.
	mux.HandleFunc("GET /v1/inventarios/{id}/stream", auth(streamHandler.SubscribeHandler))

	// --- 7. Produtos ---
	mux.HandleFunc("GET /v1/produtos/busca", auth(productHandler.SearchProductHandler))

	return mux
}

// PingHandler é uma função utilitária para o health check.
func PingHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("pong"))
}
