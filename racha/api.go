package racha

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rachaapp/racha-backend/internal/expiry"
	"github.com/rachaapp/racha-backend/racha/models"
)

// API is the HTTP surface of the racha service.
type API struct {
	racha *Service
}

func NewAPI(racha *Service) *API {
	return &API{racha: racha}
}

func (a *API) AppendRoutes(r chi.Router) {
	r.Route("/usuarios", func(r chi.Router) {
		r.Post("/", a.register)
		r.Post("/login", a.login)
		r.Route("/{usuarioID}", func(r chi.Router) {
			r.Get("/", a.getUser)
			r.Post("/adicionar-creditos", a.addCredits)
			r.Get("/transacoes", a.listTransactions)
			r.Get("/cartoes", a.listCards)
			r.Get("/convites", a.listConvites)
		})
	})
	r.Route("/cartoes", func(r chi.Router) {
		r.Post("/", a.createCard)
		r.Route("/{cartaoID}", func(r chi.Router) {
			r.Get("/", a.getCard)
			r.Post("/convidar", a.invite)
			r.Post("/aceitar", a.accept)
			r.Post("/rejeitar", a.reject)
			r.Post("/pagar", a.pay)
		})
	})
}

// ---- read models ----

type usuarioView struct {
	ID           string    `json:"id"`
	NomeCompleto string    `json:"nomeCompleto"`
	Email        string    `json:"email"`
	CPF          string    `json:"cpf"`
	CodigoUnico  string    `json:"codigoUnico"`
	Creditos     float64   `json:"creditos"`
	DataCadastro time.Time `json:"dataCadastro"`
}

func userView(u *models.User) usuarioView {
	return usuarioView{
		ID:           u.ID,
		NomeCompleto: u.NomeCompleto,
		Email:        u.Email,
		CPF:          u.CPF,
		CodigoUnico:  u.CodigoUnico,
		Creditos:     u.Creditos(),
		DataCadastro: u.DataCadastro,
	}
}

type participanteView struct {
	ID                 string              `json:"id"`
	Nome               string              `json:"nome"`
	Email              string              `json:"email"`
	CodigoUnico        string              `json:"codigoUnico"`
	Status             models.InviteStatus `json:"status"`
	ValorPago          float64             `json:"valorPago"`
	PagamentoRealizado bool                `json:"pagamentoRealizado"`
	Criador            bool                `json:"criador"`
}

type dadosView struct {
	Numero   string `json:"numero"`
	CVV      string `json:"cvv"`
	Validade string `json:"validade"`
	Nome     string `json:"nome"`
}

type cartaoView struct {
	ID                   string             `json:"id"`
	Nome                 string             `json:"nome"`
	Valor                float64            `json:"valor"`
	Descricao            string             `json:"descricao,omitempty"`
	CriadorID            string             `json:"criadorId"`
	CriadorNome          string             `json:"criadorNome"`
	NumeroParticipantes  int                `json:"numeroParticipantes"`
	Status               models.CardStatus  `json:"status"`
	DataCriacao          time.Time          `json:"dataCriacao"`
	ParticipantesAceitos int                `json:"participantesAceitos"`
	PagamentosRealizados int                `json:"pagamentosRealizados"`
	Participantes        []participanteView `json:"participantes"`
	Dados                *dadosView         `json:"dados,omitempty"`
}

func cardView(c *models.Card) cartaoView {
	view := cartaoView{
		ID:                   c.ID,
		Nome:                 c.Nome,
		Valor:                models.Reais(c.Valor),
		Descricao:            c.Descricao,
		CriadorID:            c.CriadorID,
		CriadorNome:          c.CriadorNome,
		NumeroParticipantes:  c.NumeroParticipantes,
		Status:               c.Status,
		DataCriacao:          c.DataCriacao,
		ParticipantesAceitos: c.AcceptedCount(),
		PagamentosRealizados: c.PaidCount(),
	}
	for _, p := range c.Participantes {
		if p.Convite == models.ConviteRecusado {
			continue
		}
		view.Participantes = append(view.Participantes, participanteView{
			ID:                 p.UserID,
			Nome:               p.Nome,
			Email:              p.Email,
			CodigoUnico:        p.CodigoUnico,
			Status:             p.Convite,
			ValorPago:          models.Reais(p.ValorPago),
			PagamentoRealizado: p.PagamentoRealizado,
			Criador:            p.Criador,
		})
	}
	if c.Dados != nil {
		face, err := expiry.FaceFromYYMM(c.Dados.Validade)
		if err != nil {
			face = c.Dados.Validade
		}
		view.Dados = &dadosView{
			Numero:   c.Dados.Numero,
			CVV:      c.Dados.CVV,
			Validade: face,
			Nome:     c.Dados.Nome,
		}
	}
	return view
}

type transacaoView struct {
	ID       string                 `json:"id"`
	CartaoID string                 `json:"cartaoId,omitempty"`
	Tipo     models.TransactionKind `json:"tipo"`
	Valor    float64                `json:"valor"`
	Taxa     float64                `json:"taxa"`
	Metodo   string                 `json:"metodo,omitempty"`
	CriadoEm time.Time              `json:"criadoEm"`
}

// ---- handlers ----

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	var create models.CreateUser
	if err := json.NewDecoder(r.Body).Decode(&create); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	user, err := a.racha.Register(create)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, userView(user))
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var login models.Login
	if err := json.NewDecoder(r.Body).Decode(&login); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	user, err := a.racha.Login(login)
	if err != nil {
		// same status for unknown email and wrong senha
		writeError(w, http.StatusUnauthorized, errors.New("credenciais inválidas"))
		return
	}
	writeJSON(w, http.StatusOK, userView(user))
}

func (a *API) getUser(w http.ResponseWriter, r *http.Request) {
	user, err := a.racha.GetUser(chi.URLParam(r, "usuarioID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, userView(user))
}

func (a *API) addCredits(w http.ResponseWriter, r *http.Request) {
	var req models.AddCredits
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	saldo, taxa, err := a.racha.AddCredits(r.Context(), chi.URLParam(r, "usuarioID"), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{
		"creditosAtualizados": models.Reais(saldo),
		"taxa":                models.Reais(taxa),
	})
}

func (a *API) listTransactions(w http.ResponseWriter, r *http.Request) {
	transactions, err := a.racha.ListTransactions(chi.URLParam(r, "usuarioID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	views := make([]transacaoView, 0, len(transactions))
	for _, t := range transactions {
		views = append(views, transacaoView{
			ID:       t.ID,
			CartaoID: t.CardID,
			Tipo:     t.Tipo,
			Valor:    models.Reais(t.Valor),
			Taxa:     models.Reais(t.Taxa),
			Metodo:   t.Metodo,
			CriadoEm: t.CriadoEm,
		})
	}
	writeJSON(w, http.StatusOK, views)
}

func (a *API) listCards(w http.ResponseWriter, r *http.Request) {
	cards, err := a.racha.ListCardsForUser(chi.URLParam(r, "usuarioID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	views := make([]cartaoView, 0, len(cards))
	for _, c := range cards {
		views = append(views, cardView(c))
	}
	writeJSON(w, http.StatusOK, views)
}

func (a *API) listConvites(w http.ResponseWriter, r *http.Request) {
	convites, err := a.racha.ListPendingInvites(chi.URLParam(r, "usuarioID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, convites)
}

func (a *API) createCard(w http.ResponseWriter, r *http.Request) {
	var create models.CreateCard
	if err := json.NewDecoder(r.Body).Decode(&create); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	card, err := a.racha.CreateCard(create)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, cardView(card))
}

func (a *API) getCard(w http.ResponseWriter, r *http.Request) {
	card, err := a.racha.GetCard(chi.URLParam(r, "cartaoID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cardView(card))
}

func (a *API) invite(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UsuarioID   string `json:"usuarioId"`
		CodigoUnico string `json:"codigoUnico"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if body.CodigoUnico == "" {
		writeError(w, http.StatusBadRequest, errors.New("codigoUnico is required"))
		return
	}
	card, err := a.racha.Invite(r.Context(), chi.URLParam(r, "cartaoID"), body.UsuarioID, body.CodigoUnico)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cardView(card))
}

func (a *API) accept(w http.ResponseWriter, r *http.Request) {
	a.respond(w, r, a.racha.Accept)
}

func (a *API) reject(w http.ResponseWriter, r *http.Request) {
	a.respond(w, r, a.racha.Reject)
}

func (a *API) pay(w http.ResponseWriter, r *http.Request) {
	a.respond(w, r, a.racha.Pay)
}

// respond handles the shared {usuarioId} command shape of aceitar,
// rejeitar and pagar.
func (a *API) respond(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, cardID, userID string) (*models.Card, error)) {
	var body struct {
		UsuarioID string `json:"usuarioId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if body.UsuarioID == "" {
		writeError(w, http.StatusBadRequest, errors.New("usuarioId is required"))
		return
	}
	card, err := op(r.Context(), chi.URLParam(r, "cartaoID"), body.UsuarioID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cardView(card))
}

// ---- response helpers ----

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// writeDomainError maps the error taxonomy onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrUserNotFound),
		errors.Is(err, models.ErrCardNotFound),
		errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, models.ErrInsufficientFunds):
		writeError(w, http.StatusPaymentRequired, err)
	case errors.Is(err, models.ErrAlreadyInvited),
		errors.Is(err, models.ErrAlreadyPaid),
		errors.Is(err, models.ErrRosterFull),
		errors.Is(err, models.ErrConcurrencyConflict),
		errors.Is(err, ErrConflict):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, models.ErrWrongStatus),
		errors.Is(err, models.ErrSelfInvite),
		errors.Is(err, models.ErrNoSuchInvitation),
		errors.Is(err, models.ErrNotCreator):
		writeError(w, http.StatusUnprocessableEntity, err)
	case errors.Is(err, models.ErrInvalidCardParams),
		errors.Is(err, models.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}
