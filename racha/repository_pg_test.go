package racha

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/lib/pq"
	"github.com/rachaapp/racha-backend/internal/cardgen"
	"github.com/rachaapp/racha-backend/racha/models"
	"github.com/stretchr/testify/require"
)

// Runs the full lifecycle against a real database. Skipped unless
// DB_DSN points at a disposable postgres instance.
func TestRepositoryPG_Lifecycle(t *testing.T) {
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		t.Skip("DB_DSN not set; skipping postgres integration test")
	}

	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	repo := NewPGRepository(db, []byte("test-pepper"))
	require.NoError(t, repo.Migrate(ctx))

	s := NewService(repo, DefaultConfig())

	register := func(nome string) *models.User {
		cpf, err := cardgen.RandomNumeric(11)
		require.NoError(t, err)
		u, err := s.Register(models.CreateUser{
			NomeCompleto: nome,
			Email:        nome + "-" + cpf + "@example.com",
			CPF:          cpf,
			Senha:        "segredo123",
		})
		require.NoError(t, err)
		return u
	}
	creator := register("criador")
	friend := register("convidado")
	fund(t, s, creator.ID, 50)
	fund(t, s, friend.ID, 50)

	card, err := s.CreateCard(models.CreateCard{
		Nome:              "Integracao",
		Valor:             40.90,
		CriadorID:         creator.ID,
		CodigosConvidados: []string{friend.CodigoUnico},
	})
	require.NoError(t, err)

	card, err = s.Accept(ctx, card.ID, friend.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusAtivo, card.Status)

	_, err = s.Pay(ctx, card.ID, friend.ID)
	require.NoError(t, err)
	card, err = s.Pay(ctx, card.ID, creator.ID)
	require.NoError(t, err)

	require.Equal(t, models.StatusValidado, card.Status)
	require.NotNil(t, card.Dados)

	// credentials survive a cold read and are never regenerated
	reread, err := s.GetCard(card.ID)
	require.NoError(t, err)
	require.Equal(t, card.Dados.Numero, reread.Dados.Numero)
	require.Equal(t, card.Dados.CVV, reread.Dados.CVV)

	got, err := s.GetUser(friend.ID)
	require.NoError(t, err)
	require.Equal(t, int64(5000-2045), got.Saldo)
	require.Equal(t, got.Saldo, saldoFromLedger(t, s, friend.ID))
}
