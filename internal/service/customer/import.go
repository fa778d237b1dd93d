package customer

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/retainly/retention-api/internal/model"
)

// ImportCSV ingests a customer CSV. The first row is a header naming any
// subset of the known columns; unknown columns are ignored. Malformed
// numeric cells coerce to zero rather than failing the row, and a row that
// does fail (missing email) is recorded in the summary without aborting the
// file. Each imported row is scored immediately.
func (s *Service) ImportCSV(ctx context.Context, ownerID uuid.UUID, r io.Reader) (*model.ImportSummary, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := columns["email"]; !ok {
		return nil, fmt.Errorf("CSV header must include an email column")
	}

	summary := &model.ImportSummary{}
	rowNum := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		rowNum++
		if err != nil {
			summary.Skipped++
			summary.RowErrors = append(summary.RowErrors, fmt.Sprintf("row %d: %v", rowNum, err))
			continue
		}

		customer := s.customerFromRow(ownerID, columns, record)
		if customer.Email == "" {
			summary.Skipped++
			summary.RowErrors = append(summary.RowErrors, fmt.Sprintf("row %d: missing email", rowNum))
			continue
		}

		if err := s.repo.UpsertByEmail(ctx, customer); err != nil {
			summary.Skipped++
			summary.RowErrors = append(summary.RowErrors, fmt.Sprintf("row %d: %v", rowNum, err))
			continue
		}
		if err := s.scoreAndPersist(ctx, customer); err != nil {
			s.logger.Error(err, "failed to score imported customer", "email", customer.Email)
		}
		summary.Imported++
	}

	return summary, nil
}

func (s *Service) customerFromRow(ownerID uuid.UUID, columns map[string]int, record []string) *model.Customer {
	cell := func(name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	now := s.now()
	signupAt := parseTime(cell("signup_at"), now)

	customer := &model.Customer{
		ID:               uuid.New(),
		OwnerID:          ownerID,
		Email:            cell("email"),
		Name:             cell("name"),
		Plan:             cell("plan"),
		UserStage:        cell("user_stage"),
		MonthlyRevenue:   parseFloat(cell("monthly_revenue")),
		PaymentStatus:    parsePaymentStatus(cell("payment_status")),
		SignupAt:         signupAt,
		LoginsLast30Days: parseInt(cell("logins_last_30d")),
		ActiveFeatures:   parseInt(cell("active_features")),
		TicketsOpened:    parseInt(cell("tickets_opened")),
		UsageMinutes:     parseInt(cell("usage_minutes")),
	}

	if raw := cell("last_login_at"); raw != "" {
		t := parseTime(raw, now)
		customer.LastLoginAt = &t
	}
	if raw := cell("nps_score"); raw != "" {
		if nps, err := strconv.Atoi(raw); err == nil {
			customer.NPSScore = &nps
		}
	}
	return customer
}

func parseFloat(raw string) float64 {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return v
}

func parseInt(raw string) int {
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return v
}

func parsePaymentStatus(raw string) model.PaymentStatus {
	switch model.PaymentStatus(strings.ToLower(raw)) {
	case model.PaymentStatusOverdue:
		return model.PaymentStatusOverdue
	case model.PaymentStatusFailed:
		return model.PaymentStatusFailed
	default:
		return model.PaymentStatusCurrent
	}
}

func parseTime(raw string, fallback time.Time) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return fallback
}
