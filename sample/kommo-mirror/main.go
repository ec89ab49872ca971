package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xavierca1/ligue-crm/internal/config"
	"github.com/xavierca1/ligue-crm/internal/entity"
	"github.com/xavierca1/ligue-crm/internal/infra/integration/kommo"
)

// Espelha um deal ganho fictício no Kommo para conferir token e status id.
func main() {
	cfg := config.Load()
	if cfg.KommoAPIToken == "" {
		log.Fatal("KOMMO_API_TOKEN deve estar configurado no .env")
	}

	client := kommo.NewClient(cfg.KommoAPIToken, cfg.KommoBaseURL, cfg.KommoWonStatusID)

	change := entity.StageChange{
		RecordID:   "sample-deal",
		RecordType: entity.RecordTypeDeal,
		FromStage:  "proposal",
		ToStage:    "won",
		IsWon:      true,
		Name:       "Joao Teste da Silva",
		Phone:      "+556199767638",
		Email:      "joao.teste@email.com",
		Amount:     decimal.NewNullDecimal(decimal.NewFromInt(1990)),
		ChangedAt:  time.Now(),
	}

	fmt.Printf("Espelhando deal ganho: %s (%s) R$ %s\n", change.Name, change.Phone, change.Amount.Decimal.StringFixed(2))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	leadID, err := client.MirrorWonDeal(ctx, change)
	if err != nil {
		log.Fatalf("Erro ao espelhar deal no Kommo: %v", err)
	}

	accountID := os.Getenv("KOMMO_ACCOUNT_ID")
	if accountID == "" {
		accountID = "liguemedicina"
	}
	fmt.Printf("Lead #%d criado: https://%s.kommo.com/leads/detail/%d\n", leadID, accountID, leadID)
}
