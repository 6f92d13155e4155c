package racha

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rachaapp/racha-backend/internal/cardgen"
	"github.com/rachaapp/racha-backend/internal/expiry"
	"github.com/rachaapp/racha-backend/internal/security"
	"github.com/rachaapp/racha-backend/internal/split"
	"github.com/rachaapp/racha-backend/racha/models"
	"golang.org/x/crypto/bcrypt"
)

// Card value bounds enforced at creation, in centavos.
const (
	minCardValor = 100     // R$ 1,00
	maxCardValor = 1000000 // R$ 10.000,00
)

const codigoUnicoLen = 8

// Service implements the shared-card lifecycle: registration, the
// credits ledger, card creation, the invitation workflow and the
// settlement engine.
type Service struct {
	repo *Repository
	cfg  *Config
}

func NewService(repo *Repository, cfg *Config) *Service {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Service{repo: repo, cfg: cfg}
}

// ---- users ----

// Register creates a user with a bcrypt-hashed senha and a freshly
// generated codigo unico.
func (s *Service) Register(req models.CreateUser) (*models.User, error) {
	nome := strings.TrimSpace(req.NomeCompleto)
	email := strings.TrimSpace(req.Email)
	cpf := onlyDigits(req.CPF)
	if len(nome) < 3 {
		return nil, fmt.Errorf("nome completo must have at least 3 characters: %w", models.ErrInvalidCardParams)
	}
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("invalid email: %w", models.ErrInvalidCardParams)
	}
	if len(cpf) != 11 {
		return nil, fmt.Errorf("cpf must have 11 digits: %w", models.ErrInvalidCardParams)
	}
	if len(req.Senha) < 6 {
		return nil, fmt.Errorf("senha must have at least 6 characters: %w", models.ErrInvalidCardParams)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Senha), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing senha: %w", err)
	}
	// retry on codigo collisions, same shape as unique PAN creation
	for attempt := 0; attempt < 5; attempt++ {
		code, err := cardgen.RandomCode(codigoUnicoLen)
		if err != nil {
			return nil, fmt.Errorf("generating codigo unico: %w", err)
		}
		user := &models.User{
			ID:           uuid.New().String(),
			NomeCompleto: nome,
			Email:        strings.ToLower(email),
			CPF:          cpf,
			CodigoUnico:  code,
			SenhaHash:    string(hash),
			DataCadastro: time.Now(),
		}
		err = s.repo.CreateUser(user)
		if err == nil {
			return user, nil
		}
		if errors.Is(err, ErrConflict) {
			// duplicate email/cpf is a caller error; only a codigo
			// collision is worth retrying
			if _, lookupErr := s.repo.FindUserByEmail(user.Email); lookupErr == nil {
				return nil, ErrConflict
			}
			continue
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return nil, ErrConflict
}

// Login checks the senha against the stored hash. It never reveals
// which of the two factors failed.
func (s *Service) Login(req models.Login) (*models.User, error) {
	user, err := s.repo.FindUserByEmail(strings.TrimSpace(req.Email))
	if err != nil {
		return nil, models.ErrUserNotFound
	}
	if bcrypt.CompareHashAndPassword([]byte(user.SenhaHash), []byte(req.Senha)) != nil {
		return nil, models.ErrUserNotFound
	}
	return user, nil
}

func (s *Service) GetUser(userID string) (*models.User, error) {
	user, err := s.repo.GetUser(userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, models.ErrUserNotFound
		}
		return nil, fmt.Errorf("finding user: %w", err)
	}
	return user, nil
}

// ---- ledger ----

// AddCredits purchases credits. The surcharge (TaxaBasisPoints, round
// half up) is recorded on the ledger entry but not added to the
// credited amount. Returns the new cached balance in centavos and the
// taxa charged.
func (s *Service) AddCredits(ctx context.Context, userID string, req models.AddCredits) (int64, int64, error) {
	amount := models.Centavos(req.Valor)
	if amount <= 0 {
		return 0, 0, models.ErrInvalidAmount
	}
	taxa := (amount*int64(s.cfg.TaxaBasisPoints) + 5000) / 10000
	entry := &models.Transaction{
		ID:       uuid.New().String(),
		UserID:   userID,
		Tipo:     models.KindCompraCreditos,
		Valor:    amount,
		Taxa:     taxa,
		Metodo:   strings.TrimSpace(req.PaymentMethod),
		CriadoEm: time.Now(),
	}
	saldo, err := s.repo.Credit(ctx, entry)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, 0, models.ErrUserNotFound
		}
		return 0, 0, fmt.Errorf("crediting user: %w", err)
	}
	return saldo, taxa, nil
}

// Refund credits an estorno back to the user. Dev-only surface.
func (s *Service) Refund(ctx context.Context, userID string, valor float64) (int64, error) {
	amount := models.Centavos(valor)
	if amount <= 0 {
		return 0, models.ErrInvalidAmount
	}
	entry := &models.Transaction{
		ID:       uuid.New().String(),
		UserID:   userID,
		Tipo:     models.KindEstorno,
		Valor:    amount,
		CriadoEm: time.Now(),
	}
	saldo, err := s.repo.Credit(ctx, entry)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, models.ErrUserNotFound
		}
		return 0, err
	}
	return saldo, nil
}

func (s *Service) ListTransactions(userID string) ([]*models.Transaction, error) {
	transactions, err := s.repo.ListTransactions(userID)
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	return transactions, nil
}

// ---- cards ----

// CreateCard opens a shared card: the creator takes the first seat
// already aceito, every resolved convidado gets a pendente seat, and
// the card starts pendente.
func (s *Service) CreateCard(req models.CreateCard) (*models.Card, error) {
	nome := strings.TrimSpace(req.Nome)
	valor := models.Centavos(req.Valor)
	if len(nome) < 3 {
		return nil, fmt.Errorf("nome must have at least 3 characters: %w", models.ErrInvalidCardParams)
	}
	if valor < minCardValor || valor > maxCardValor {
		return nil, fmt.Errorf("valor must be between R$1,00 and R$10.000,00: %w", models.ErrInvalidCardParams)
	}
	n := len(req.CodigosConvidados) + 1
	if n < 2 || n > 10 {
		return nil, fmt.Errorf("between 1 and 9 convidados required: %w", models.ErrInvalidCardParams)
	}
	creator, err := s.repo.GetUser(req.CriadorID)
	if err != nil {
		return nil, models.ErrUserNotFound
	}

	card := &models.Card{
		ID:                  uuid.New().String(),
		Nome:                nome,
		Valor:               valor,
		Descricao:           strings.TrimSpace(req.Descricao),
		CriadorID:           creator.ID,
		CriadorNome:         creator.NomeCompleto,
		NumeroParticipantes: n,
		Status:              models.StatusPendente,
		DataCriacao:         time.Now(),
		Participantes: []*models.Participant{{
			UserID:      creator.ID,
			Nome:        creator.NomeCompleto,
			Email:       creator.Email,
			CodigoUnico: creator.CodigoUnico,
			Convite:     models.ConviteAceito,
			Criador:     true,
		}},
	}
	seen := map[string]struct{}{creator.ID: {}}
	for _, code := range req.CodigosConvidados {
		invitee, err := s.repo.FindUserByCodeOrEmail(code)
		if err != nil {
			return nil, fmt.Errorf("convidado %s: %w", code, models.ErrUserNotFound)
		}
		if invitee.ID == creator.ID {
			return nil, models.ErrSelfInvite
		}
		if _, dup := seen[invitee.ID]; dup {
			return nil, models.ErrAlreadyInvited
		}
		seen[invitee.ID] = struct{}{}
		card.Participantes = append(card.Participantes, &models.Participant{
			UserID:      invitee.ID,
			Nome:        invitee.NomeCompleto,
			Email:       invitee.Email,
			CodigoUnico: invitee.CodigoUnico,
			Convite:     models.ConvitePendente,
		})
	}
	if err := s.repo.CreateCard(card); err != nil {
		return nil, fmt.Errorf("creating card: %w", err)
	}
	return card, nil
}

func (s *Service) GetCard(cardID string) (*models.Card, error) {
	card, err := s.repo.GetCard(cardID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, models.ErrCardNotFound
		}
		return nil, fmt.Errorf("finding card: %w", err)
	}
	return card, nil
}

func (s *Service) ListCardsForUser(userID string) ([]*models.Card, error) {
	cards, err := s.repo.ListCardsForUser(userID)
	if err != nil {
		return nil, fmt.Errorf("listing cards: %w", err)
	}
	return cards, nil
}

func (s *Service) ListPendingInvites(userID string) ([]*models.Convite, error) {
	convites, err := s.repo.ListPendingInvites(userID)
	if err != nil {
		return nil, fmt.Errorf("listing convites: %w", err)
	}
	return convites, nil
}

// Invite resolves the identifier (codigo unico, email fallback) and
// adds a pendente seat. Creator-only; capacity and status checks live
// in the aggregate.
func (s *Service) Invite(ctx context.Context, cardID, inviterID, identifier string) (*models.Card, error) {
	invitee, err := s.repo.FindUserByCodeOrEmail(identifier)
	if err != nil {
		return nil, models.ErrUserNotFound
	}
	card, err := s.repo.MutateCard(ctx, cardID, func(c *models.Card) error {
		if c.CriadorID != inviterID {
			return models.ErrNotCreator
		}
		return c.Invite(invitee)
	})
	if errors.Is(err, ErrNotFound) {
		return nil, models.ErrCardNotFound
	}
	return card, err
}

// Accept marks the caller's invitation aceito; a full roster flips the
// card to ativo.
func (s *Service) Accept(ctx context.Context, cardID, userID string) (*models.Card, error) {
	card, err := s.repo.MutateCard(ctx, cardID, func(c *models.Card) error {
		_, err := c.Accept(userID)
		return err
	})
	if errors.Is(err, ErrNotFound) {
		return nil, models.ErrCardNotFound
	}
	return card, err
}

// Reject releases the caller's seat; the card stays pendente and the
// seat can be re-invited.
func (s *Service) Reject(ctx context.Context, cardID, userID string) (*models.Card, error) {
	card, err := s.repo.MutateCard(ctx, cardID, func(c *models.Card) error {
		return c.Reject(userID)
	})
	if errors.Is(err, ErrNotFound) {
		return nil, models.ErrCardNotFound
	}
	return card, err
}

// Pay charges the caller's share against the credits ledger. The share
// is computed by the settlement engine: the rounded share for
// invitees, the remainder-absorbing amount for the creator. The final
// payment settles the card and materializes its credentials in the
// same atomic unit.
func (s *Service) Pay(ctx context.Context, cardID, userID string) (*models.Card, error) {
	card, err := s.GetCard(cardID)
	if err != nil {
		return nil, err
	}
	var amount int64
	if userID == card.CriadorID {
		amount = split.CreatorShare(card.Valor, card.NumeroParticipantes)
	} else {
		amount = split.Share(card.Valor, card.NumeroParticipantes)
	}
	updated, err := s.repo.PayShare(ctx, cardID, userID, amount, s.materializeCredentials)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, models.ErrCardNotFound
		}
		return nil, err
	}
	return updated, nil
}

// materializeCredentials builds the card data released on settlement:
// a unique Luhn-valid PAN under the configured BIN, a derived CVV, the
// validity in YYMM storage form, and the creator's name as imprint.
// exists comes from the repository backend that holds the card.
func (s *Service) materializeCredentials(card *models.Card, exists func(string) (bool, error)) (*models.CardData, error) {
	bin := s.cfg.BINPrefix
	if cardgen.ValidateBIN(bin) != nil {
		bin = DefaultConfig().BINPrefix
	}
	pan, err := cardgen.GenerateUniquePAN(bin, 16, 10, exists)
	if err != nil {
		return nil, fmt.Errorf("generate unique pan: %w", err)
	}
	yymm := expiry.YYMM(time.Now(), s.cfg.ValidadeAnos)
	cvv, err := security.StaticCVV(pan, yymm, security.Key())
	if err != nil {
		return nil, fmt.Errorf("derive cvv: %w", err)
	}
	return &models.CardData{
		Numero:   pan,
		CVV:      cvv,
		Validade: yymm,
		Nome:     HolderName(card.CriadorNome),
	}, nil
}

// HolderName normalizes a name for the card face imprint: collapsed
// whitespace, upper case, at most 26 characters.
func HolderName(name string) string {
	normalized := strings.Join(strings.Fields(strings.TrimSpace(name)), " ")
	up := strings.ToUpper(normalized)
	if len(up) > 26 {
		return up[:26]
	}
	return up
}

func onlyDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if r < '0' || r > '9' {
			return -1
		}
		return r
	}, s)
}
