package models

import (
	"math"
	"time"
)

// User is a registered account holder. Saldo is the cached credits
// balance in centavos; it must always equal the running sum of the
// user's transactions.
type User struct {
	ID           string    `json:"id"`
	NomeCompleto string    `json:"nomeCompleto"`
	Email        string    `json:"email"`
	CPF          string    `json:"cpf"`
	CodigoUnico  string    `json:"codigoUnico"`
	Saldo        int64     `json:"-"`
	SenhaHash    string    `json:"-"`
	DataCadastro time.Time `json:"dataCadastro"`
}

// Creditos reports the cached balance in reais for client views.
func (u *User) Creditos() float64 {
	return Reais(u.Saldo)
}

type CreateUser struct {
	NomeCompleto string `json:"nomeCompleto"`
	Email        string `json:"email"`
	CPF          string `json:"cpf"`
	Senha        string `json:"senha"`
}

type Login struct {
	Email string `json:"email"`
	Senha string `json:"senha"`
}

// TransactionKind tags ledger entries. Valor is signed: credits are
// positive, card payments negative. Taxa tracks the purchase surcharge
// separately and never touches the balance.
type TransactionKind string

const (
	KindCompraCreditos  TransactionKind = "compra_creditos"
	KindPagamentoCartao TransactionKind = "pagamento_cartao"
	KindEstorno         TransactionKind = "estorno"
)

type Transaction struct {
	ID        string          `json:"id"`
	UserID    string          `json:"usuarioId"`
	CardID    string          `json:"cartaoId,omitempty"`
	Tipo      TransactionKind `json:"tipo"`
	Valor     int64           `json:"-"`
	Taxa      int64           `json:"-"`
	Metodo    string          `json:"metodo,omitempty"`
	CriadoEm  time.Time       `json:"criadoEm"`
}

type AddCredits struct {
	Valor         float64 `json:"valor"`
	PaymentMethod string  `json:"paymentMethod"`
}

// Centavos converts a reais amount from a JSON boundary into integer
// centavos. Rounds half away from zero at two decimals, so 40.90
// survives float representation as 4090.
func Centavos(reais float64) int64 {
	return int64(math.Round(reais * 100))
}

// Reais converts centavos back to a reais number for client views.
func Reais(centavos int64) float64 {
	return float64(centavos) / 100
}
