package models

import "time"

type CardStatus string

const (
	StatusPendente CardStatus = "pendente" // collecting acceptances
	StatusAtivo    CardStatus = "ativo"    // roster full, collecting payments
	StatusValidado CardStatus = "validado" // fully paid, credentials released
)

type InviteStatus string

const (
	ConvitePendente InviteStatus = "pendente"
	ConviteAceito   InviteStatus = "aceito"
	ConviteRecusado InviteStatus = "recusado"
)

// Participant is a (card, user) membership slot. The creator occupies
// one slot and starts aceito; invitees start pendente. A recusado row
// is kept for audit but stops counting against capacity.
type Participant struct {
	UserID             string       `json:"id"`
	Nome               string       `json:"nome"`
	Email              string       `json:"email"`
	CodigoUnico        string       `json:"codigoUnico"`
	Convite            InviteStatus `json:"status"`
	PagamentoRealizado bool         `json:"pagamentoRealizado"`
	ValorPago          int64        `json:"-"`
	Criador            bool         `json:"criador"`
}

// CardData holds the materialized card credentials. Present only once
// the card is validado; written once and never regenerated. Validade
// is kept in the YYMM storage form; the API presents the MM/YY face.
type CardData struct {
	Numero   string
	CVV      string
	Validade string
	Nome     string
}

// Card is the shared prepaid card aggregate. Valor is in centavos.
// NumeroParticipantes is fixed at creation and never changes.
type Card struct {
	ID                  string
	Nome                string
	Valor               int64
	Descricao           string
	CriadorID           string
	CriadorNome         string
	NumeroParticipantes int
	Status              CardStatus
	DataCriacao         time.Time
	Participantes       []*Participant
	Dados               *CardData
}

type CreateCard struct {
	Nome              string   `json:"nome"`
	Valor             float64  `json:"valor"`
	Descricao         string   `json:"descricao"`
	CriadorID         string   `json:"criadorId"`
	CodigosConvidados []string `json:"codigosConvidados"`
}

// Convite is the pending-invitation read model projected from a
// participant row with status pendente.
type Convite struct {
	CardID      string     `json:"cartaoId"`
	CardNome    string     `json:"cartaoNome"`
	Valor       float64    `json:"valor"`
	CriadorNome string     `json:"criadorNome"`
	Status      CardStatus `json:"statusCartao"`
}

func (c *Card) Participant(userID string) *Participant {
	for _, p := range c.Participantes {
		if p.UserID == userID {
			return p
		}
	}
	return nil
}

// AcceptedCount counts participants with convite aceito, the creator
// included. Never exceeds NumeroParticipantes.
func (c *Card) AcceptedCount() int {
	n := 0
	for _, p := range c.Participantes {
		if p.Convite == ConviteAceito {
			n++
		}
	}
	return n
}

// PaidCount counts participants that completed their payment.
func (c *Card) PaidCount() int {
	n := 0
	for _, p := range c.Participantes {
		if p.PagamentoRealizado {
			n++
		}
	}
	return n
}

// occupiedSlots counts rows that hold a seat: pendente or aceito.
func (c *Card) occupiedSlots() int {
	n := 0
	for _, p := range c.Participantes {
		if p.Convite != ConviteRecusado {
			n++
		}
	}
	return n
}

// Invite adds a pending slot for the given user. A previously recusado
// row is flipped back to pendente so the seat can be refilled.
func (c *Card) Invite(u *User) error {
	if c.Status != StatusPendente {
		if c.AcceptedCount() >= c.NumeroParticipantes {
			return ErrRosterFull
		}
		return ErrWrongStatus
	}
	if u.ID == c.CriadorID {
		return ErrSelfInvite
	}
	if p := c.Participant(u.ID); p != nil {
		if p.Convite != ConviteRecusado {
			return ErrAlreadyInvited
		}
		p.Convite = ConvitePendente
		return nil
	}
	if c.occupiedSlots() >= c.NumeroParticipantes {
		return ErrRosterFull
	}
	c.Participantes = append(c.Participantes, &Participant{
		UserID:      u.ID,
		Nome:        u.NomeCompleto,
		Email:       u.Email,
		CodigoUnico: u.CodigoUnico,
		Convite:     ConvitePendente,
	})
	return nil
}

// Accept marks the user's pending invitation aceito. When the roster
// fills it transitions the card pendente -> ativo and reports true.
func (c *Card) Accept(userID string) (bool, error) {
	if c.Status != StatusPendente {
		return false, ErrWrongStatus
	}
	p := c.Participant(userID)
	if p == nil || p.Convite != ConvitePendente {
		return false, ErrNoSuchInvitation
	}
	p.Convite = ConviteAceito
	if c.AcceptedCount() == c.NumeroParticipantes {
		c.Status = StatusAtivo
		return true, nil
	}
	return false, nil
}

// Reject marks the user's pending invitation recusado. The card stays
// pendente and the freed seat may be re-invited.
func (c *Card) Reject(userID string) error {
	if c.Status != StatusPendente {
		return ErrWrongStatus
	}
	p := c.Participant(userID)
	if p == nil || p.Convite != ConvitePendente {
		return ErrNoSuchInvitation
	}
	p.Convite = ConviteRecusado
	return nil
}

// RegisterPayment records an accepted participant's share payment.
// When the last of the N participants pays it transitions the card
// ativo -> validado and reports true; the caller materializes the
// credentials inside the same atomic unit.
func (c *Card) RegisterPayment(userID string, amount int64) (bool, error) {
	if c.Status != StatusAtivo {
		return false, ErrWrongStatus
	}
	p := c.Participant(userID)
	if p == nil || p.Convite != ConviteAceito {
		return false, ErrNoSuchInvitation
	}
	if p.PagamentoRealizado {
		return false, ErrAlreadyPaid
	}
	p.ValorPago = amount
	p.PagamentoRealizado = true
	if c.PaidCount() == c.NumeroParticipantes {
		c.Status = StatusValidado
		return true, nil
	}
	return false, nil
}
