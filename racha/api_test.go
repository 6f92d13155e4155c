package racha_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rachaapp/racha-backend/racha"
	"github.com/stretchr/testify/require"
)

func newTestRouter() chi.Router {
	router := chi.NewRouter()
	api := racha.NewAPI(racha.NewService(racha.NewRepository(), racha.DefaultConfig()))
	api.AppendRoutes(router)
	return router
}

func do(t *testing.T, router chi.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, &buf)
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, into any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), into))
}

type usuarioResp struct {
	ID          string  `json:"id"`
	CodigoUnico string  `json:"codigoUnico"`
	Creditos    float64 `json:"creditos"`
}

type cartaoResp struct {
	ID                   string  `json:"id"`
	Valor                float64 `json:"valor"`
	Status               string  `json:"status"`
	ParticipantesAceitos int     `json:"participantesAceitos"`
	PagamentosRealizados int     `json:"pagamentosRealizados"`
	Participantes        []struct {
		ID        string  `json:"id"`
		Status    string  `json:"status"`
		ValorPago float64 `json:"valorPago"`
		Criador   bool    `json:"criador"`
	} `json:"participantes"`
	Dados *struct {
		Numero   string `json:"numero"`
		CVV      string `json:"cvv"`
		Validade string `json:"validade"`
		Nome     string `json:"nome"`
	} `json:"dados"`
}

func registerViaAPI(t *testing.T, router chi.Router, i int) usuarioResp {
	t.Helper()
	w := do(t, router, http.MethodPost, "/usuarios/", map[string]string{
		"nomeCompleto": fmt.Sprintf("Usuario Teste %d", i),
		"email":        fmt.Sprintf("usuario%d@example.com", i),
		"cpf":          fmt.Sprintf("123456789%02d", i),
		"senha":        "segredo123",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var u usuarioResp
	decode(t, w, &u)
	require.NotEmpty(t, u.ID)
	return u
}

func fundViaAPI(t *testing.T, router chi.Router, userID string, reais float64) {
	t.Helper()
	w := do(t, router, http.MethodPost, "/usuarios/"+userID+"/adicionar-creditos", map[string]any{
		"valor":         reais,
		"paymentMethod": "pix",
	})
	require.Equal(t, http.StatusOK, w.Code)
}

func TestAPI_Login(t *testing.T) {
	router := newTestRouter()
	u := registerViaAPI(t, router, 1)

	w := do(t, router, http.MethodPost, "/usuarios/login", map[string]string{
		"email": "usuario1@example.com",
		"senha": "segredo123",
	})
	require.Equal(t, http.StatusOK, w.Code)
	var logged usuarioResp
	decode(t, w, &logged)
	require.Equal(t, u.ID, logged.ID)

	w = do(t, router, http.MethodPost, "/usuarios/login", map[string]string{
		"email": "usuario1@example.com",
		"senha": "errada123",
	})
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAPI_AddCredits(t *testing.T) {
	router := newTestRouter()
	u := registerViaAPI(t, router, 1)

	w := do(t, router, http.MethodPost, "/usuarios/"+u.ID+"/adicionar-creditos", map[string]any{
		"valor":         100.00,
		"paymentMethod": "pix",
	})
	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]float64
	decode(t, w, &resp)
	require.Equal(t, 100.00, resp["creditosAtualizados"])
	require.Equal(t, 2.00, resp["taxa"])

	w = do(t, router, http.MethodGet, "/usuarios/"+u.ID+"/transacoes", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var transacoes []struct {
		Tipo  string  `json:"tipo"`
		Valor float64 `json:"valor"`
		Taxa  float64 `json:"taxa"`
	}
	decode(t, w, &transacoes)
	require.Len(t, transacoes, 1)
	require.Equal(t, "compra_creditos", transacoes[0].Tipo)
	require.Equal(t, 100.00, transacoes[0].Valor)
	require.Equal(t, 2.00, transacoes[0].Taxa)

	w = do(t, router, http.MethodPost, "/usuarios/missing/adicionar-creditos", map[string]any{"valor": 10.0})
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestAPI_CardLifecycle(t *testing.T) {
	router := newTestRouter()

	criador := registerViaAPI(t, router, 1)
	convidados := []usuarioResp{}
	codigos := []string{}
	for i := 2; i <= 4; i++ {
		u := registerViaAPI(t, router, i)
		convidados = append(convidados, u)
		codigos = append(codigos, u.CodigoUnico)
	}

	w := do(t, router, http.MethodPost, "/cartoes/", map[string]any{
		"nome":              "Presente da Firma",
		"valor":             40.90,
		"descricao":         "vaquinha de despedida",
		"criadorId":         criador.ID,
		"codigosConvidados": codigos,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var card cartaoResp
	decode(t, w, &card)
	require.Equal(t, "pendente", card.Status)
	require.Equal(t, 40.90, card.Valor)
	require.Equal(t, 1, card.ParticipantesAceitos)
	require.Len(t, card.Participantes, 4)

	// paying before activation is refused
	fundViaAPI(t, router, criador.ID, 50)
	w = do(t, router, http.MethodPost, "/cartoes/"+card.ID+"/pagar", map[string]string{"usuarioId": criador.ID})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	// invitees see the pending convite
	w = do(t, router, http.MethodGet, "/usuarios/"+convidados[0].ID+"/convites", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var convites []struct {
		CartaoID string `json:"cartaoId"`
	}
	decode(t, w, &convites)
	require.Len(t, convites, 1)
	require.Equal(t, card.ID, convites[0].CartaoID)

	// everyone accepts; the card activates on the last acceptance
	for i, u := range convidados {
		w = do(t, router, http.MethodPost, "/cartoes/"+card.ID+"/aceitar", map[string]string{"usuarioId": u.ID})
		require.Equal(t, http.StatusOK, w.Code)
		decode(t, w, &card)
		require.Equal(t, i+2, card.ParticipantesAceitos)
	}
	require.Equal(t, "ativo", card.Status)

	// paying without credits is refused
	w = do(t, router, http.MethodPost, "/cartoes/"+card.ID+"/pagar", map[string]string{"usuarioId": convidados[0].ID})
	require.Equal(t, http.StatusPaymentRequired, w.Code)

	for _, u := range convidados {
		fundViaAPI(t, router, u.ID, 50)
	}

	// all shares paid settles the card and releases the credentials
	w = do(t, router, http.MethodPost, "/cartoes/"+card.ID+"/pagar", map[string]string{"usuarioId": criador.ID})
	require.Equal(t, http.StatusOK, w.Code)
	for _, u := range convidados {
		w = do(t, router, http.MethodPost, "/cartoes/"+card.ID+"/pagar", map[string]string{"usuarioId": u.ID})
		require.Equal(t, http.StatusOK, w.Code)
	}
	decode(t, w, &card)
	require.Equal(t, "validado", card.Status)
	require.Equal(t, 4, card.PagamentosRealizados)
	require.NotNil(t, card.Dados)
	require.Len(t, card.Dados.Numero, 16)
	require.Len(t, card.Dados.CVV, 3)
	require.Regexp(t, `^\d{2}/\d{2}$`, card.Dados.Validade)
	require.Equal(t, "USUARIO TESTE 1", card.Dados.Nome)

	// creator absorbed the remainder: 10.21 against three times 10.23
	for _, p := range card.Participantes {
		if p.Criador {
			require.Equal(t, 10.21, p.ValorPago)
		} else {
			require.Equal(t, 10.23, p.ValorPago)
		}
	}

	// double payment conflicts
	w = do(t, router, http.MethodPost, "/cartoes/"+card.ID+"/pagar", map[string]string{"usuarioId": criador.ID})
	require.Equal(t, http.StatusConflict, w.Code)

	// debit landed on the ledger
	w = do(t, router, http.MethodGet, "/usuarios/"+criador.ID+"/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var refreshed usuarioResp
	decode(t, w, &refreshed)
	require.Equal(t, 39.79, refreshed.Creditos)
}

func TestAPI_InviteRejectRefill(t *testing.T) {
	router := newTestRouter()
	criador := registerViaAPI(t, router, 1)
	amigo := registerViaAPI(t, router, 2)
	reserva := registerViaAPI(t, router, 3)

	w := do(t, router, http.MethodPost, "/cartoes/", map[string]any{
		"nome":              "Churrasco",
		"valor":             40.90,
		"criadorId":         criador.ID,
		"codigosConvidados": []string{amigo.CodigoUnico},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var card cartaoResp
	decode(t, w, &card)

	// only the creator may invite
	w = do(t, router, http.MethodPost, "/cartoes/"+card.ID+"/convidar", map[string]string{
		"usuarioId":   amigo.ID,
		"codigoUnico": reserva.CodigoUnico,
	})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	// roster is full while the invite is pending
	w = do(t, router, http.MethodPost, "/cartoes/"+card.ID+"/convidar", map[string]string{
		"usuarioId":   criador.ID,
		"codigoUnico": reserva.CodigoUnico,
	})
	require.Equal(t, http.StatusConflict, w.Code)

	// declined seat frees up and is refilled
	w = do(t, router, http.MethodPost, "/cartoes/"+card.ID+"/rejeitar", map[string]string{"usuarioId": amigo.ID})
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, router, http.MethodPost, "/cartoes/"+card.ID+"/convidar", map[string]string{
		"usuarioId":   criador.ID,
		"codigoUnico": reserva.CodigoUnico,
	})
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &card)
	require.Len(t, card.Participantes, 2) // recusado row hidden from the view

	// the declined user no longer lists the card
	w = do(t, router, http.MethodGet, "/usuarios/"+amigo.ID+"/cartoes", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var cards []cartaoResp
	decode(t, w, &cards)
	require.Empty(t, cards)
}

func TestAPI_NotFoundAndBadInput(t *testing.T) {
	router := newTestRouter()

	w := do(t, router, http.MethodGet, "/usuarios/missing/", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, router, http.MethodGet, "/cartoes/missing/", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, router, http.MethodPost, "/cartoes/missing/aceitar", map[string]string{"usuarioId": "u"})
	require.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, router, http.MethodPost, "/cartoes/missing/aceitar", map[string]string{})
	require.Equal(t, http.StatusBadRequest, w.Code)

	u := registerViaAPI(t, router, 1)
	w = do(t, router, http.MethodPost, "/cartoes/", map[string]any{
		"nome":      "Churrasco",
		"valor":     40.90,
		"criadorId": u.ID,
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
}
