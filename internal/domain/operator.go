package domain

import "time"

// Operator representa um usuário alocado a um inventário (quem conta ou
// quem monitora). O "setor atual" do operador não é persistido: é derivado
// do setor da sua contagem mais recente.
type Operator struct {
	ID           string       `json:"id"`
	InventoryID  string       `json:"inventory_id"`
	Name         string       `json:"name"`
	Email        string       `json:"email"`
	PasswordHash string       `json:"-"` // Oculta o hash da senha no JSON de resposta
	Role         OperatorRole `json:"role"`
	AvatarURL    string       `json:"avatar_url,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// OperatorRole é um tipo string para representar o papel do operador.
type OperatorRole string

const (
	RoleAdmin    OperatorRole = "admin"
	RoleCounter  OperatorRole = "contador"
	RoleObserver OperatorRole = "observador"
)

// LoginRequest representa o payload de entrada para o login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
