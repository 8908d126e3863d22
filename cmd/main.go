package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	// Nossos pacotes de infraestrutura e utilitários
	"gocontagem/config"
	"gocontagem/internal/pkg/cache"
	"gocontagem/internal/pkg/database"
	"gocontagem/internal/pkg/logger"
	"gocontagem/internal/pkg/token"

	// Camadas da API para Injeção de Dependências
	"gocontagem/internal/api/count"
	"gocontagem/internal/api/inventory"
	"gocontagem/internal/api/operator"
	"gocontagem/internal/api/product"
	"gocontagem/internal/api/router"
	"gocontagem/internal/api/sector"
	"gocontagem/internal/api/stream"

	// Acesso a Dados
	"gocontagem/internal/repository/countrepo"
	"gocontagem/internal/repository/inventoryrepo"
	"gocontagem/internal/repository/operatorrepo"
	"gocontagem/internal/repository/productrepo"
	"gocontagem/internal/repository/sectorrepo"

	// Lógica de Negócio
	"gocontagem/internal/service/countservice"
	"gocontagem/internal/service/inventoryservice"
	"gocontagem/internal/service/metricsservice"
	"gocontagem/internal/service/operatorservice"
	"gocontagem/internal/service/sectorservice"
	"gocontagem/internal/service/streamservice"
)

func main() {
	// 1. Configuração e Inicialização
	log.Println("⚡ Inicializando serviço GoContagem...")

	// 0. CARREGAR VARIÁVEIS DE AMBIENTE (.env)
	// O godotenv.Load() procura por um arquivo chamado .env na raiz.
	if err := godotenv.Load(); err != nil {
		// Se o arquivo .env não for encontrado, avisamos, mas continuamos,
		// pois as variáveis essenciais podem estar no ambiente do sistema (ex: Docker).
		log.Println("⚠️ Aviso: Arquivo .env não encontrado ou erro de leitura. Carregando configs apenas do ambiente do sistema.")
	}

	cfg := config.LoadConfig() // Carrega as configurações (URLs, Timeouts, etc.)
	log := logger.NewLogger(cfg.LogLevel)
	log.Info("Configurações carregadas.", nil)

	// 2. Conexão com Recursos de Infraestrutura

	// A. Banco de Dados (PostgreSQL)
	db, err := database.NewPostgresDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Falha ao conectar ao banco de dados.", err)
	}
	defer db.Close() // Fecha a conexão de DB ao sair
	log.Info("Conexão PostgreSQL estabelecida.", nil)

	// B. Cache (Redis)
	cacheClient := cache.NewRedisClient(cfg.RedisAddr)
	log.Info("Conexão Redis estabelecida.", nil)

	// C. Serviço de Tokens (JWT)
	tokenSvc := token.NewService(cfg.JWTSecretKey, cfg.TokenExpiry)
	log.Debug("Serviço de Tokens JWT inicializado.", nil)

	// 3. INJEÇÃO DE DEPENDÊNCIAS (Montagem da Clean Architecture)
	// Ordem: Repository -> Service -> Handler

	// A. Repositórios (Camada de Acesso a Dados)
	productRepo := productrepo.NewProductRepository(db, cacheClient, cfg.DBTimeout, log)
	sectorRepo := sectorrepo.NewSectorRepository(db, cfg.DBTimeout, log)
	countRepo := countrepo.NewCountRepository(db, cfg.DBTimeout, log)
	inventoryRepo := inventoryrepo.NewInventoryRepository(db, cfg.DBTimeout, log)
	operatorRepo := operatorrepo.NewOperatorRepository(db, cfg.DBTimeout, log)
	log.Debug("Repositórios inicializados.", nil)

	// B. Hub do stream de monitoramento
	// O snapshot inicial de cada assinante é montado direto dos agregados SQL.
	snapshotBuilder := streamservice.NewSnapshotBuilder(countRepo, log)
	hub := streamservice.NewHub(snapshotBuilder, cfg.StreamBufferSize, cfg.HeartbeatPeriod, log)
	log.Debug("Hub de stream inicializado.", nil)

	// C. Serviços (Camada de Lógica de Negócio)
	countSvc := countservice.NewService(productRepo, countRepo, operatorRepo, hub, log)
	sectorSvc := sectorservice.NewService(sectorRepo, inventoryRepo, countRepo, log)
	inventorySvc := inventoryservice.NewService(inventoryRepo, sectorRepo, countRepo, log)
	metricsSvc := metricsservice.NewService(productRepo, countRepo, cacheClient, cfg.FetchPageSize, cfg.CriticalCostThreshold, cfg.MetricsTTL, log)
	operatorSvc := operatorservice.NewService(operatorRepo, tokenSvc, log)
	log.Debug("Serviços inicializados.", nil)

	// D. Handlers (Camada de Apresentação)
	countHandler := count.NewHandler(countSvc, log)
	sectorHandler := sector.NewHandler(sectorSvc, log)
	inventoryHandler := inventory.NewHandler(inventorySvc, metricsSvc, log)
	operatorHandler := operator.NewHandler(operatorSvc, log)
	productHandler := product.NewHandler(productRepo, log)
	streamHandler := stream.NewHandler(hub, log)
	log.Debug("Handlers inicializados.", nil)

	// 4. Configuração e Início do Roteador/Servidor
	r := router.NewRouter(operatorHandler, countHandler, sectorHandler, inventoryHandler, productHandler, streamHandler, tokenSvc, cacheClient, cfg)

	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     r, // O roteador final
		ReadTimeout: 10 * time.Second,
		// WriteTimeout zero: o endpoint de stream mantém a resposta aberta
		// indefinidamente e um write timeout derrubaria todos os assinantes.
		IdleTimeout: 60 * time.Second,
	}

	// 5. Execução e Graceful Shutdown
	go func() {
		log.Info("Servidor GoContagem ouvindo na porta", map[string]interface{}{"port": cfg.Port})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Servidor falhou: %v", err)
		}
	}()

	// Lógica do Graceful Shutdown (captura de sinal)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	log.Info("Sinal de encerramento recebido. Desligando servidor...", nil)

	// Encerra o hub primeiro: fecha os canais dos assinantes e faz os
	// handlers de stream retornarem, liberando o Shutdown abaixo.
	hub.Close()

	// Timeout para desligamento (usa o contexto)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("Desligamento do servidor forçado.", err)
	}

	log.Info("Servidor encerrado com sucesso.", nil)
}
