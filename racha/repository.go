package racha

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/lib/pq"
	"github.com/rachaapp/racha-backend/internal/cardgen"
	"github.com/rachaapp/racha-backend/racha/models"
)

var (
	ErrNotFound = fmt.Errorf("not found")
	ErrConflict = fmt.Errorf("conflict")
)

// Repository persists users, cards and the ledger. Two backends share
// the type: an in-memory one for tests (db == nil, guarded by mu) and
// a Postgres one for runtime. Every card mutation and ledger movement
// is serialized — by the mutex in memory, by row-level locks in
// Postgres.
type Repository struct {
	Users        []*models.User
	Cards        []*models.Card
	Transactions []*models.Transaction

	mu       sync.RWMutex
	panIndex map[string]struct{}
	db       *sql.DB
	hashKey  []byte
}

func NewRepository() *Repository {
	return &Repository{
		Users:        make([]*models.User, 0),
		Cards:        make([]*models.Card, 0),
		Transactions: make([]*models.Transaction, 0),
		panIndex:     make(map[string]struct{}),
	}
}

// NewPGRepository constructs a db-backed repository. hashKey peppers
// the PAN uniqueness index.
func NewPGRepository(db *sql.DB, hashKey []byte) *Repository {
	return &Repository{db: db, hashKey: hashKey}
}

// Migrate creates the schema idempotently.
func (r *Repository) Migrate(ctx context.Context) error {
	if r.db == nil {
		return nil
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS usuarios (
			usuario_id    UUID PRIMARY KEY,
			nome_completo TEXT NOT NULL,
			email         TEXT NOT NULL UNIQUE,
			cpf           TEXT NOT NULL UNIQUE,
			codigo_unico  TEXT NOT NULL UNIQUE,
			senha_hash    TEXT NOT NULL,
			saldo         BIGINT NOT NULL DEFAULT 0 CHECK (saldo >= 0),
			criado_em     TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS cartoes (
			cartao_id            UUID PRIMARY KEY,
			nome                 TEXT NOT NULL,
			valor                BIGINT NOT NULL CHECK (valor > 0),
			descricao            TEXT NOT NULL DEFAULT '',
			criador_id           UUID NOT NULL REFERENCES usuarios(usuario_id),
			numero_participantes INT NOT NULL CHECK (numero_participantes BETWEEN 2 AND 10),
			status               TEXT NOT NULL DEFAULT 'pendente',
			criado_em            TIMESTAMPTZ NOT NULL DEFAULT now(),
			dados_numero         TEXT,
			dados_cvv            TEXT,
			dados_validade_yymm  TEXT,
			dados_nome           TEXT,
			pan_hash             BYTEA UNIQUE
		)`,
		`CREATE TABLE IF NOT EXISTS participantes (
			cartao_id           UUID NOT NULL REFERENCES cartoes(cartao_id),
			usuario_id          UUID NOT NULL REFERENCES usuarios(usuario_id),
			convite_status      TEXT NOT NULL DEFAULT 'pendente',
			pagamento_realizado BOOLEAN NOT NULL DEFAULT FALSE,
			valor_pago          BIGINT NOT NULL DEFAULT 0,
			criador             BOOLEAN NOT NULL DEFAULT FALSE,
			PRIMARY KEY (cartao_id, usuario_id)
		)`,
		`CREATE TABLE IF NOT EXISTS transacoes (
			transacao_id UUID PRIMARY KEY,
			usuario_id   UUID NOT NULL REFERENCES usuarios(usuario_id),
			cartao_id    UUID REFERENCES cartoes(cartao_id),
			tipo         TEXT NOT NULL,
			valor        BIGINT NOT NULL,
			taxa         BIGINT NOT NULL DEFAULT 0,
			metodo       TEXT NOT NULL DEFAULT '',
			criado_em    TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transacoes_usuario ON transacoes (usuario_id, criado_em DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_participantes_usuario ON participantes (usuario_id)`,
	}
	for _, s := range stmts {
		if _, err := r.db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Ping reports DB readiness.
func (r *Repository) Ping(ctx context.Context) error {
	if r.db == nil {
		return nil
	}
	return r.db.PingContext(ctx)
}

// ---- users ----

func (r *Repository) CreateUser(u *models.User) error {
	if r.db == nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		for _, existing := range r.Users {
			if strings.EqualFold(existing.Email, u.Email) || existing.CPF == u.CPF || existing.CodigoUnico == u.CodigoUnico {
				return ErrConflict
			}
		}
		r.Users = append(r.Users, u)
		return nil
	}
	_, err := r.db.ExecContext(context.Background(), `
		INSERT INTO usuarios(usuario_id, nome_completo, email, cpf, codigo_unico, senha_hash, saldo, criado_em)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, u.ID, u.NomeCompleto, strings.ToLower(u.Email), u.CPF, u.CodigoUnico, u.SenhaHash, u.Saldo, u.DataCadastro)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (r *Repository) GetUser(userID string) (*models.User, error) {
	if r.db == nil {
		r.mu.RLock()
		defer r.mu.RUnlock()
		for _, u := range r.Users {
			if u.ID == userID {
				return u, nil
			}
		}
		return nil, ErrNotFound
	}
	return r.scanUser(r.db.QueryRowContext(context.Background(), `
		SELECT usuario_id, nome_completo, email, cpf, codigo_unico, senha_hash, saldo, criado_em
		  FROM usuarios WHERE usuario_id=$1
	`, userID))
}

func (r *Repository) FindUserByEmail(email string) (*models.User, error) {
	if r.db == nil {
		r.mu.RLock()
		defer r.mu.RUnlock()
		for _, u := range r.Users {
			if strings.EqualFold(u.Email, email) {
				return u, nil
			}
		}
		return nil, ErrNotFound
	}
	return r.scanUser(r.db.QueryRowContext(context.Background(), `
		SELECT usuario_id, nome_completo, email, cpf, codigo_unico, senha_hash, saldo, criado_em
		  FROM usuarios WHERE email=$1
	`, strings.ToLower(email)))
}

// FindUserByCodeOrEmail resolves an invite identifier: codigo unico
// first, email as fallback.
func (r *Repository) FindUserByCodeOrEmail(identifier string) (*models.User, error) {
	code := strings.ToUpper(strings.TrimSpace(identifier))
	if r.db == nil {
		r.mu.RLock()
		for _, u := range r.Users {
			if u.CodigoUnico == code {
				r.mu.RUnlock()
				return u, nil
			}
		}
		r.mu.RUnlock()
		return r.FindUserByEmail(identifier)
	}
	u, err := r.scanUser(r.db.QueryRowContext(context.Background(), `
		SELECT usuario_id, nome_completo, email, cpf, codigo_unico, senha_hash, saldo, criado_em
		  FROM usuarios WHERE codigo_unico=$1
	`, code))
	if errors.Is(err, ErrNotFound) {
		return r.FindUserByEmail(identifier)
	}
	return u, err
}

func (r *Repository) scanUser(row *sql.Row) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(&u.ID, &u.NomeCompleto, &u.Email, &u.CPF, &u.CodigoUnico, &u.SenhaHash, &u.Saldo, &u.DataCadastro)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// ---- ledger ----

// Credit appends a positive ledger entry and raises the cached saldo
// in one atomic unit.
func (r *Repository) Credit(ctx context.Context, entry *models.Transaction) (int64, error) {
	if entry.Valor <= 0 {
		return 0, models.ErrInvalidAmount
	}
	if r.db == nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		u := r.findUserLocked(entry.UserID)
		if u == nil {
			return 0, ErrNotFound
		}
		u.Saldo += entry.Valor
		r.Transactions = append(r.Transactions, entry)
		return u.Saldo, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `set local statement_timeout = '3s'`); err != nil {
		return 0, err
	}
	var saldo int64
	err = tx.QueryRowContext(ctx, `SELECT saldo FROM usuarios WHERE usuario_id=$1 FOR UPDATE`, entry.UserID).Scan(&saldo)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, mapLockError(err)
	}
	saldo += entry.Valor
	if _, err := tx.ExecContext(ctx, `UPDATE usuarios SET saldo=$2 WHERE usuario_id=$1`, entry.UserID, saldo); err != nil {
		return 0, err
	}
	if err := insertTransaction(ctx, tx, entry); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, mapLockError(err)
	}
	return saldo, nil
}

func insertTransaction(ctx context.Context, tx *sql.Tx, entry *models.Transaction) error {
	var cardID any
	if entry.CardID != "" {
		cardID = entry.CardID
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO transacoes(transacao_id, usuario_id, cartao_id, tipo, valor, taxa, metodo, criado_em)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.UserID, cardID, string(entry.Tipo), entry.Valor, entry.Taxa, entry.Metodo, entry.CriadoEm)
	return err
}

// ListTransactions returns a user's ledger entries, newest first.
func (r *Repository) ListTransactions(userID string) ([]*models.Transaction, error) {
	if r.db == nil {
		r.mu.RLock()
		defer r.mu.RUnlock()
		var out []*models.Transaction
		for i := len(r.Transactions) - 1; i >= 0; i-- {
			if r.Transactions[i].UserID == userID {
				out = append(out, r.Transactions[i])
			}
		}
		return out, nil
	}
	rows, err := r.db.QueryContext(context.Background(), `
		SELECT transacao_id, usuario_id, COALESCE(cartao_id::text, ''), tipo, valor, taxa, metodo, criado_em
		  FROM transacoes WHERE usuario_id=$1 ORDER BY criado_em DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Transaction
	for rows.Next() {
		t := &models.Transaction{}
		var tipo string
		if err := rows.Scan(&t.ID, &t.UserID, &t.CardID, &tipo, &t.Valor, &t.Taxa, &t.Metodo, &t.CriadoEm); err != nil {
			return nil, err
		}
		t.Tipo = models.TransactionKind(tipo)
		out = append(out, t)
	}
	return out, rows.Err()
}

// ---- cards ----

func (r *Repository) CreateCard(card *models.Card) error {
	if r.db == nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.Cards = append(r.Cards, card)
		return nil
	}
	ctx := context.Background()
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO cartoes(cartao_id, nome, valor, descricao, criador_id, numero_participantes, status, criado_em)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, card.ID, card.Nome, card.Valor, card.Descricao, card.CriadorID, card.NumeroParticipantes, string(card.Status), card.DataCriacao)
	if err != nil {
		return err
	}
	if err := upsertParticipants(ctx, tx, card); err != nil {
		return err
	}
	return tx.Commit()
}

func upsertParticipants(ctx context.Context, tx *sql.Tx, card *models.Card) error {
	for _, p := range card.Participantes {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO participantes(cartao_id, usuario_id, convite_status, pagamento_realizado, valor_pago, criador)
			VALUES ($1,$2,$3,$4,$5,$6)
			ON CONFLICT (cartao_id, usuario_id) DO UPDATE
			  SET convite_status      = EXCLUDED.convite_status,
			      pagamento_realizado = EXCLUDED.pagamento_realizado,
			      valor_pago          = EXCLUDED.valor_pago
		`, card.ID, p.UserID, string(p.Convite), p.PagamentoRealizado, p.ValorPago, p.Criador)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) GetCard(cardID string) (*models.Card, error) {
	if r.db == nil {
		r.mu.RLock()
		defer r.mu.RUnlock()
		return r.findCardLocked(cardID)
	}
	ctx := context.Background()
	return r.loadCard(ctx, r.db, cardID, false)
}

// ListCardsForUser returns the cards a user holds a seat on (creator,
// pending or accepted), newest first.
func (r *Repository) ListCardsForUser(userID string) ([]*models.Card, error) {
	if r.db == nil {
		r.mu.RLock()
		defer r.mu.RUnlock()
		var out []*models.Card
		for i := len(r.Cards) - 1; i >= 0; i-- {
			c := r.Cards[i]
			if p := c.Participant(userID); p != nil && p.Convite != models.ConviteRecusado {
				out = append(out, c)
			}
		}
		return out, nil
	}
	ctx := context.Background()
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.cartao_id
		  FROM cartoes c
		  JOIN participantes p ON p.cartao_id = c.cartao_id
		 WHERE p.usuario_id = $1 AND p.convite_status <> 'recusado'
		 ORDER BY c.criado_em DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	out := make([]*models.Card, 0, len(ids))
	for _, id := range ids {
		c, err := r.loadCard(ctx, r.db, id, false)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// ListPendingInvites projects the user's pendente participant rows.
func (r *Repository) ListPendingInvites(userID string) ([]*models.Convite, error) {
	if r.db == nil {
		r.mu.RLock()
		defer r.mu.RUnlock()
		var out []*models.Convite
		for i := len(r.Cards) - 1; i >= 0; i-- {
			c := r.Cards[i]
			if p := c.Participant(userID); p != nil && p.Convite == models.ConvitePendente {
				out = append(out, conviteView(c))
			}
		}
		return out, nil
	}
	rows, err := r.db.QueryContext(context.Background(), `
		SELECT c.cartao_id, c.nome, c.valor, c.status, u.nome_completo
		  FROM cartoes c
		  JOIN participantes p ON p.cartao_id = c.cartao_id
		  JOIN usuarios u ON u.usuario_id = c.criador_id
		 WHERE p.usuario_id = $1 AND p.convite_status = 'pendente'
		 ORDER BY c.criado_em DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Convite
	for rows.Next() {
		cv := &models.Convite{}
		var status string
		var valor int64
		if err := rows.Scan(&cv.CardID, &cv.CardNome, &valor, &status, &cv.CriadorNome); err != nil {
			return nil, err
		}
		cv.Valor = models.Reais(valor)
		cv.Status = models.CardStatus(status)
		out = append(out, cv)
	}
	return out, rows.Err()
}

func conviteView(c *models.Card) *models.Convite {
	return &models.Convite{
		CardID:      c.ID,
		CardNome:    c.Nome,
		Valor:       models.Reais(c.Valor),
		CriadorNome: c.CriadorNome,
		Status:      c.Status,
	}
}

// MutateCard applies fn to the card aggregate under the per-card
// serialization point. fn must validate before mutating; its error
// aborts without visible effects.
func (r *Repository) MutateCard(ctx context.Context, cardID string, fn func(*models.Card) error) (*models.Card, error) {
	if r.db == nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		card, err := r.findCardLocked(cardID)
		if err != nil {
			return nil, err
		}
		if err := fn(card); err != nil {
			return nil, err
		}
		return card, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `set local statement_timeout = '3s'`); err != nil {
		return nil, err
	}
	card, err := r.loadCardForUpdate(ctx, tx, cardID)
	if err != nil {
		return nil, err
	}
	if err := fn(card); err != nil {
		return nil, err
	}
	if err := r.storeCardState(ctx, tx, card); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, mapLockError(err)
	}
	return card, nil
}

// PayShare debits the payer and records the payment on the card in one
// atomic unit. materialize runs only when this payment settles the
// card; its credentials are stored in the same transaction. The exists
// check handed to materialize is backend-specific: the mem one reads
// panIndex directly because the repository lock is already held here.
// Lock order is card row first, payer row second, on both backends.
func (r *Repository) PayShare(ctx context.Context, cardID, userID string, amount int64, materialize func(*models.Card, func(string) (bool, error)) (*models.CardData, error)) (*models.Card, error) {
	if amount <= 0 {
		return nil, models.ErrInvalidAmount
	}
	if r.db == nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		card, err := r.findCardLocked(cardID)
		if err != nil {
			return nil, err
		}
		payer := r.findUserLocked(userID)
		if payer == nil {
			return nil, ErrNotFound
		}
		// validate the aggregate transition before touching the saldo
		if card.Status != models.StatusAtivo {
			return nil, models.ErrWrongStatus
		}
		p := card.Participant(userID)
		if p == nil || p.Convite != models.ConviteAceito {
			return nil, models.ErrNoSuchInvitation
		}
		if p.PagamentoRealizado {
			return nil, models.ErrAlreadyPaid
		}
		if payer.Saldo < amount {
			return nil, models.ErrInsufficientFunds
		}
		settled, err := card.RegisterPayment(userID, amount)
		if err != nil {
			return nil, err
		}
		payer.Saldo -= amount
		r.Transactions = append(r.Transactions, &models.Transaction{
			ID:       uuid.New().String(),
			UserID:   userID,
			CardID:   cardID,
			Tipo:     models.KindPagamentoCartao,
			Valor:    -amount,
			CriadoEm: time.Now(),
		})
		if settled && card.Dados == nil {
			existsLocked := func(pan string) (bool, error) {
				_, ok := r.panIndex[pan]
				return ok, nil
			}
			dados, err := materialize(card, existsLocked)
			if err != nil {
				// roll the mem mutation back by hand
				p.PagamentoRealizado = false
				p.ValorPago = 0
				payer.Saldo += amount
				r.Transactions = r.Transactions[:len(r.Transactions)-1]
				card.Status = models.StatusAtivo
				return nil, err
			}
			card.Dados = dados
			r.panIndex[dados.Numero] = struct{}{}
		}
		return card, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `set local statement_timeout = '3s'`); err != nil {
		return nil, err
	}
	card, err := r.loadCardForUpdate(ctx, tx, cardID)
	if err != nil {
		return nil, err
	}
	var saldo int64
	err = tx.QueryRowContext(ctx, `SELECT saldo FROM usuarios WHERE usuario_id=$1 FOR UPDATE`, userID).Scan(&saldo)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, mapLockError(err)
	}
	if card.Status != models.StatusAtivo {
		return nil, models.ErrWrongStatus
	}
	if p := card.Participant(userID); p == nil || p.Convite != models.ConviteAceito {
		return nil, models.ErrNoSuchInvitation
	} else if p.PagamentoRealizado {
		return nil, models.ErrAlreadyPaid
	}
	if saldo < amount {
		return nil, models.ErrInsufficientFunds
	}
	settled, err := card.RegisterPayment(userID, amount)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE usuarios SET saldo = saldo - $2 WHERE usuario_id=$1`, userID, amount); err != nil {
		return nil, err
	}
	entry := &models.Transaction{
		ID:       uuid.New().String(),
		UserID:   userID,
		CardID:   cardID,
		Tipo:     models.KindPagamentoCartao,
		Valor:    -amount,
		CriadoEm: time.Now(),
	}
	if err := insertTransaction(ctx, tx, entry); err != nil {
		return nil, err
	}
	if settled && card.Dados == nil {
		dados, err := materialize(card, r.ExistsCardNumber)
		if err != nil {
			return nil, err
		}
		card.Dados = dados
	}
	if err := r.storeCardState(ctx, tx, card); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, mapLockError(err)
	}
	return card, nil
}

// ExistsCardNumber reports whether a PAN is already materialized.
func (r *Repository) ExistsCardNumber(pan string) (bool, error) {
	if r.db == nil {
		r.mu.RLock()
		defer r.mu.RUnlock()
		_, ok := r.panIndex[pan]
		return ok, nil
	}
	hash := cardgen.HashPANHMAC(cardgen.NormalizePAN(pan), r.hashKey)
	var one int
	err := r.db.QueryRowContext(context.Background(), `SELECT 1 FROM cartoes WHERE pan_hash=$1`, hash).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ---- pg aggregate load/store ----

func (r *Repository) loadCardForUpdate(ctx context.Context, tx *sql.Tx, cardID string) (*models.Card, error) {
	return r.loadCard(ctx, tx, cardID, true)
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *Repository) loadCard(ctx context.Context, q queryer, cardID string, forUpdate bool) (*models.Card, error) {
	lock := ""
	if forUpdate {
		lock = " FOR UPDATE OF c"
	}
	row := q.QueryRowContext(ctx, `
		SELECT c.cartao_id, c.nome, c.valor, c.descricao, c.criador_id, u.nome_completo,
		       c.numero_participantes, c.status, c.criado_em,
		       COALESCE(c.dados_numero, ''), COALESCE(c.dados_cvv, ''),
		       COALESCE(c.dados_validade_yymm, ''), COALESCE(c.dados_nome, '')
		  FROM cartoes c
		  JOIN usuarios u ON u.usuario_id = c.criador_id
		 WHERE c.cartao_id=$1`+lock, cardID)
	card := &models.Card{}
	var status, numero, cvv, validade, nome string
	err := row.Scan(&card.ID, &card.Nome, &card.Valor, &card.Descricao, &card.CriadorID, &card.CriadorNome,
		&card.NumeroParticipantes, &status, &card.DataCriacao, &numero, &cvv, &validade, &nome)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, mapLockError(err)
	}
	card.Status = models.CardStatus(status)
	if numero != "" {
		card.Dados = &models.CardData{Numero: numero, CVV: cvv, Validade: validade, Nome: nome}
	}
	rows, err := q.QueryContext(ctx, `
		SELECT p.usuario_id, u.nome_completo, u.email, u.codigo_unico,
		       p.convite_status, p.pagamento_realizado, p.valor_pago, p.criador
		  FROM participantes p
		  JOIN usuarios u ON u.usuario_id = p.usuario_id
		 WHERE p.cartao_id=$1
		 ORDER BY p.criador DESC, u.nome_completo
	`, cardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		p := &models.Participant{}
		var convite string
		if err := rows.Scan(&p.UserID, &p.Nome, &p.Email, &p.CodigoUnico, &convite, &p.PagamentoRealizado, &p.ValorPago, &p.Criador); err != nil {
			return nil, err
		}
		p.Convite = models.InviteStatus(convite)
		card.Participantes = append(card.Participantes, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return card, nil
}

func (r *Repository) storeCardState(ctx context.Context, tx *sql.Tx, card *models.Card) error {
	var numero, cvv, validade, nome any
	var panHash any
	if card.Dados != nil {
		numero, cvv, validade, nome = card.Dados.Numero, card.Dados.CVV, card.Dados.Validade, card.Dados.Nome
		panHash = cardgen.HashPANHMAC(card.Dados.Numero, r.hashKey)
	}
	_, err := tx.ExecContext(ctx, `
		UPDATE cartoes
		   SET status=$2,
		       dados_numero=COALESCE(dados_numero, $3),
		       dados_cvv=COALESCE(dados_cvv, $4),
		       dados_validade_yymm=COALESCE(dados_validade_yymm, $5),
		       dados_nome=COALESCE(dados_nome, $6),
		       pan_hash=COALESCE(pan_hash, $7)
		 WHERE cartao_id=$1
	`, card.ID, string(card.Status), numero, cvv, validade, nome, panHash)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return err
	}
	return upsertParticipants(ctx, tx, card)
}

// ---- mem helpers ----

func (r *Repository) findCardLocked(cardID string) (*models.Card, error) {
	for _, c := range r.Cards {
		if c.ID == cardID {
			return c, nil
		}
	}
	return nil, ErrNotFound
}

func (r *Repository) findUserLocked(userID string) *models.User {
	for _, u := range r.Users {
		if u.ID == userID {
			return u
		}
	}
	return nil
}

// ---- error mapping ----

func isUniqueViolation(err error) bool {
	var pe *pq.Error
	if errors.As(err, &pe) && pe.Code == "23505" {
		return true
	}
	var pgerr *pgconn.PgError
	if errors.As(err, &pgerr) && pgerr.Code == "23505" {
		return true
	}
	return false
}

// mapLockError converts serialization/deadlock failures into the
// retryable domain kind; everything else passes through.
func mapLockError(err error) error {
	if err == nil {
		return nil
	}
	var pe *pq.Error
	if errors.As(err, &pe) && (pe.Code == "40001" || pe.Code == "40P01" || pe.Code == "55P03") {
		return models.ErrConcurrencyConflict
	}
	var pgerr *pgconn.PgError
	if errors.As(err, &pgerr) && (pgerr.Code == "40001" || pgerr.Code == "40P01" || pgerr.Code == "55P03") {
		return models.ErrConcurrencyConflict
	}
	return err
}
