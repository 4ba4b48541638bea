package billing

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/William-Pardo/tudojang-sub002/core"
)

// AggregateDebt lists what a student owes, most recent first.
//
// Store purchases & event registrations that were approved but not paid yet are tracked charges.
// Whatever part of the balance they do not explain is presented as a Subscription charge dated now,
// so that the items always add up to the balance.
func (svc *Service) AggregateDebt(ctx context.Context, tenantID, studentID string) (Debt, error) {
	std, err := svc.students.GetStudent(ctx, tenantID, studentID)
	if err != nil {
		return Debt{}, errors.Wrap(err, "getting student")
	}

	storeReqs, err := svc.repo.QueryUnpaidStoreRequests(ctx, tenantID, studentID)
	if err != nil {
		return Debt{}, core.NewExternalServiceError("store requests", err)
	}
	regs, err := svc.repo.QueryUnpaidEventRegistrations(ctx, tenantID, studentID)
	if err != nil {
		return Debt{}, core.NewExternalServiceError("event registrations", err)
	}

	items := make([]PendingCharge, 0, len(storeReqs)+len(regs)+1)
	for _, req := range storeReqs {
		if !req.Payable() {
			continue
		}
		desc := req.ItemName
		if req.Quantity > 1 {
			desc = fmt.Sprintf("%s x%d", req.ItemName, req.Quantity)
		}
		items = append(items, PendingCharge{
			ID:          req.ID,
			Kind:        KindStore,
			Amount:      req.Amount,
			Description: desc,
			OriginID:    req.ID,
			GeneratedAt: generatedAt(req.ApprovedAt, req.CreatedAt),
		})
	}

	events, err := svc.eventsOf(ctx, tenantID, regs)
	if err != nil {
		return Debt{}, err
	}
	for _, reg := range regs {
		if !reg.Payable() {
			continue
		}
		ev, ok := events[reg.EventID]
		if !ok {
			svc.logger.Warn(fmt.Sprintf("registration %s references missing event %s", reg.ID, reg.EventID))
			continue
		}
		items = append(items, PendingCharge{
			ID:          reg.ID,
			Kind:        KindEvent,
			Amount:      ev.Price,
			Description: ev.Name,
			OriginID:    reg.ID,
			GeneratedAt: generatedAt(reg.ApprovedAt, reg.CreatedAt),
		})
	}

	tracked := decimal.Zero
	for _, it := range items {
		tracked = tracked.Add(it.Amount)
	}

	if remainder := core.NonNegative(std.Balance.Sub(tracked)); remainder.IsPositive() {
		items = append(items, PendingCharge{
			ID:          "mensualidad-" + std.ID,
			Kind:        KindSubscription,
			Amount:      remainder,
			Description: KindSubscription.Label(),
			OriginID:    std.ID,
			GeneratedAt: svc.now(),
			Synthetic:   true,
		})
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].GeneratedAt.After(items[j].GeneratedAt) })

	debt := Debt{
		StudentID:   std.ID,
		Balance:     std.Balance,
		Total:       decimal.Zero,
		Items:       items,
		Discrepancy: core.NonNegative(tracked.Sub(std.Balance)),
	}
	for _, it := range items {
		debt.Total = debt.Total.Add(it.Amount)
	}
	if debt.Discrepancy.IsPositive() {
		svc.logger.Warn(fmt.Sprintf(
			"student %s: tracked charges (%s) exceed the balance (%s)", std.ID, tracked, std.Balance,
		), map[string]interface{}{"tenant": tenantID, "student": std.ID})
	}
	return debt, nil
}

// eventsOf resolves the events referenced by `regs`, fetching each distinct event once in a single batch.
func (svc *Service) eventsOf(ctx context.Context, tenantID string, regs []EventRegistration) (map[string]Event, error) {
	seen := make(map[string]struct{}, len(regs))
	ids := make([]string, 0, len(regs))
	for _, reg := range regs {
		if _, ok := seen[reg.EventID]; ok {
			continue
		}
		seen[reg.EventID] = struct{}{}
		ids = append(ids, reg.EventID)
	}

	byID := make(map[string]Event, len(ids))
	if len(ids) == 0 {
		return byID, nil
	}
	evs, err := svc.repo.GetEventsByID(ctx, tenantID, ids...)
	if err != nil {
		return nil, core.NewExternalServiceError("events", err)
	}
	for _, ev := range evs {
		byID[ev.ID] = ev
	}
	return byID, nil
}

func generatedAt(approvedAt *time.Time, createdAt time.Time) time.Time {
	if approvedAt != nil && !approvedAt.IsZero() {
		return *approvedAt
	}
	return createdAt
}
