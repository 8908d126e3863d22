package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config armazena todas as configurações do aplicativo GoContagem.
// Cobre infraestrutura (DB, Cache, Segurança) e os parâmetros do pipeline
// de contagem ao vivo (stream, liveness, debounce do coletor).
type Config struct {
	// Geral
	Port        string
	Environment string
	LogLevel    string

	// Banco de Dados (PostgreSQL)
	DatabaseURL string
	DBTimeout   time.Duration

	// Cache (Redis)
	RedisAddr    string
	CacheTimeout time.Duration
	MetricsTTL   time.Duration // TTL do cache do payload de métricas de divergência

	// Segurança (JWT)
	JWTSecretKey string
	TokenExpiry  time.Duration

	// Rate Limiting
	RateLimitMaxRequests int
	RateLimitPeriod      time.Duration

	// Stream de monitoramento
	HeartbeatPeriod    time.Duration // Período fixo do heartbeat do servidor
	LivenessTimeout    time.Duration // Silêncio máximo tolerado pelo consumidor (heartbeat + folga)
	ReconnectBaseDelay time.Duration // Backoff inicial de reconexão
	ReconnectMaxDelay  time.Duration // Teto do backoff de reconexão
	StreamBufferSize   int           // Buffer por assinante (estouro = evento descartado)

	// Coletor (debounce por canal de entrada)
	SectorDebounce  time.Duration // Intervalo mínimo entre leituras de código de setor
	ProductDebounce time.Duration // Intervalo mínimo entre leituras de código de produto
	SoftErrorTTL    time.Duration // Tempo de exibição dos erros transitórios do coletor

	// Classificador de divergências
	FetchPageSize         int     // Tamanho de página do fetch-all paginado
	CriticalCostThreshold float64 // Custo unitário acima do qual uma ruptura vira impacto crítico
}

// LoadConfig carrega as configurações a partir das variáveis de ambiente.
func LoadConfig() *Config {
	cfg := &Config{
		// 1. Geral
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		// 2. Banco de Dados (PostgreSQL)
		// mustGetEnv garante que a aplicação não inicie se não houver credenciais de DB
		DatabaseURL: mustGetEnv("DATABASE_URL"),
		DBTimeout:   getDurationEnv("DB_TIMEOUT_SEC", 5) * time.Second,

		// 3. Cache (Redis)
		RedisAddr:    getEnv("REDIS_ADDR", "localhost:6379"),
		CacheTimeout: getDurationEnv("CACHE_TIMEOUT_SEC", 10) * time.Second,
		MetricsTTL:   getDurationEnv("METRICS_CACHE_TTL_SEC", 30) * time.Second,

		// 4. Segurança (JWT)
		JWTSecretKey: mustGetEnv("JWT_SECRET_KEY"),
		TokenExpiry:  getDurationEnv("JWT_EXPIRY_MIN", 60) * time.Minute,

		// 5. Rate Limiting
		RateLimitMaxRequests: getIntEnv("RATE_LIMIT_MAX_REQUESTS", 100),
		RateLimitPeriod:      getDurationEnv("RATE_LIMIT_PERIOD_MIN", 1) * time.Minute,

		// 6. Stream de monitoramento
		// O timeout de liveness deve ser maior que o período do heartbeat:
		// 45s = 30s de heartbeat + 15s de folga.
		HeartbeatPeriod:    getDurationEnv("STREAM_HEARTBEAT_SEC", 30) * time.Second,
		LivenessTimeout:    getDurationEnv("STREAM_LIVENESS_SEC", 45) * time.Second,
		ReconnectBaseDelay: getDurationEnv("STREAM_RECONNECT_BASE_SEC", 1) * time.Second,
		ReconnectMaxDelay:  getDurationEnv("STREAM_RECONNECT_MAX_SEC", 30) * time.Second,
		StreamBufferSize:   getIntEnv("STREAM_BUFFER_SIZE", 64),

		// 7. Coletor
		// Leituras de código de barras chegam em taxa bem maior que códigos
		// de setor, por isso o debounce de produto é mais curto.
		SectorDebounce:  getDurationEnv("SCAN_SECTOR_DEBOUNCE_MS", 350) * time.Millisecond,
		ProductDebounce: getDurationEnv("SCAN_PRODUCT_DEBOUNCE_MS", 100) * time.Millisecond,
		SoftErrorTTL:    getDurationEnv("SCAN_SOFT_ERROR_TTL_SEC", 3) * time.Second,

		// 8. Classificador
		FetchPageSize:         getIntEnv("METRICS_FETCH_PAGE_SIZE", 500),
		CriticalCostThreshold: getFloatEnv("METRICS_CRITICAL_COST", 200),
	}

	return cfg
}

// Funções Helpers (Auxiliares)

// getEnv lê a variável de ambiente ou retorna um valor padrão.
func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// mustGetEnv lê a variável de ambiente, fatal se não estiver presente.
func mustGetEnv(key string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	log.Fatalf("❌ Erro de Configuração: A variável de ambiente %s deve ser definida.", key)
	return ""
}

// getDurationEnv lê uma variável de ambiente numérica e retorna-a como time.Duration.
func getDurationEnv(key string, defaultValue int) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return time.Duration(defaultValue)
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("⚠️ Aviso: Valor de %s ('%s') não é um número inteiro válido. Usando padrão (%d).", key, valueStr, defaultValue)
		return time.Duration(defaultValue)
	}
	return time.Duration(value)
}

// getIntEnv lê uma variável de ambiente numérica e retorna-a como int.
func getIntEnv(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("⚠️ Aviso: Valor de %s ('%s') não é um número inteiro válido. Usando padrão (%d).", key, valueStr, defaultValue)
		return defaultValue
	}
	return value
}

// getFloatEnv lê uma variável de ambiente numérica e retorna-a como float64.
func getFloatEnv(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("⚠️ Aviso: Valor de %s ('%s') não é um número válido. Usando padrão (%v).", key, valueStr, defaultValue)
		return defaultValue
	}
	return value
}
