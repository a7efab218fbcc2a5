// Usage: SITECRAFT_DEBUG_CONFIG_PATH=${PWD}/etc/debug-config.yaml go run hack/export_payments.go
package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/sitecraft/sitecraft/dao/model"
	"github.com/sitecraft/sitecraft/dao/query"
)

func main() {
	db := query.GetDB()

	// Every payment with its project and both parties, refunds included
	var payments []model.Payment
	if err := db.Preload("Project.Client").Preload("Project.Developer").
		Unscoped().Order("id DESC").Find(&payments).Error; err != nil {
		panic(fmt.Errorf("failed to fetch payments: %w", err))
	}

	file, err := os.Create("payments_export.csv")
	if err != nil {
		panic(fmt.Errorf("failed to create CSV file: %w", err))
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	headers := []string{
		"ID", "Reference", "ProjectID", "ProjectTitle", "ProjectStatus",
		"ClientID", "ClientName", "DeveloperID", "DeveloperName",
		"PaymentType", "Status", "BaseAmount", "Amount", "Currency",
		"CreatedAt", "PaidAt", "EscrowedAt", "ReleasedAt", "RefundedAt",
	}
	if err := writer.Write(headers); err != nil {
		panic(fmt.Errorf("failed to write CSV header: %w", err))
	}

	for i := range payments {
		if err := writer.Write(paymentToCSVRecord(&payments[i])); err != nil {
			panic(fmt.Errorf("failed to write CSV record: %w", err))
		}
	}

	fmt.Printf("Successfully exported %d payments to payments_export.csv\n", len(payments))
}

func paymentToCSVRecord(p *model.Payment) []string {
	formatTime := func(t *time.Time) string {
		if t == nil || t.IsZero() {
			return ""
		}
		return t.Format(time.RFC3339)
	}
	formatMoney := func(f float64) string {
		return strconv.FormatFloat(f, 'f', 2, 64)
	}

	developerID, developerName := "", ""
	if dev := p.Project.Developer; dev != nil {
		developerID = strconv.FormatUint(uint64(dev.ID), 10)
		developerName = dev.Name
	}

	return []string{
		strconv.FormatUint(uint64(p.ID), 10),
		p.Reference,
		strconv.FormatUint(uint64(p.ProjectID), 10),
		p.Project.Title,
		string(p.Project.Status),
		strconv.FormatUint(uint64(p.Project.ClientID), 10),
		p.Project.Client.Name,
		developerID,
		developerName,
		string(p.PaymentType),
		string(p.Status),
		formatMoney(p.BaseAmount),
		formatMoney(p.Amount),
		p.Currency,
		formatTime(&p.CreatedAt),
		formatTime(p.PaidAt),
		formatTime(p.EscrowedAt),
		formatTime(p.ReleasedAt),
		formatTime(p.RefundedAt),
	}
}
