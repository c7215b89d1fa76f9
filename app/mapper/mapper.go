package mapper

import (
	"time"

	"github.com/vibast-solutions/ms-go-club-dues/app/entity"
	"github.com/vibast-solutions/ms-go-club-dues/app/scheduler"
	"github.com/vibast-solutions/ms-go-club-dues/app/service"
	"github.com/vibast-solutions/ms-go-club-dues/app/types"
)

const dateLayout = "2006-01-02"

func MemberToResponse(item *entity.Member) *types.Member {
	if item == nil {
		return nil
	}

	return &types.Member{
		Id:               item.ID,
		FirstName:        item.FirstName,
		LastName:         item.LastName,
		DocumentNumber:   item.DocumentNumber,
		Email:            item.Email,
		Phone:            derefString(item.Phone),
		Activity:         item.Activity.String(),
		MembershipStatus: item.MembershipStatus.String(),
		CreatedAt:        formatTime(item.CreatedAt),
		UpdatedAt:        formatTime(item.UpdatedAt),
	}
}

func MembersToResponse(items []*entity.Member) []*types.Member {
	result := make([]*types.Member, 0, len(items))
	for _, item := range items {
		result = append(result, MemberToResponse(item))
	}
	return result
}

func DuesToResponse(item *entity.Dues) *types.Dues {
	if item == nil {
		return nil
	}

	out := &types.Dues{
		Id:                   item.ID,
		MemberId:             item.MemberID,
		Period:               item.Period,
		Amount:               item.Amount.StringFixed(2),
		DueDate:              item.DueDate.UTC().Format(dateLayout),
		Status:               item.Status.String(),
		ReceiptNumber:        derefString(item.ReceiptNumber),
		ReminderCount:        item.ReminderCount,
		PaymentLinkUrl:       derefString(item.PaymentLinkURL),
		GatewayTransactionId: derefString(item.GatewayTransactionID),
		CreatedAt:            formatTime(item.CreatedAt),
		UpdatedAt:            formatTime(item.UpdatedAt),
	}
	if item.PaidDate != nil {
		out.PaidDate = item.PaidDate.UTC().Format(dateLayout)
	}
	if item.PaymentMethod.Valid() {
		out.PaymentMethod = item.PaymentMethod.String()
	}
	if item.ReminderSentAt != nil {
		out.ReminderSentAt = formatTime(*item.ReminderSentAt)
	}
	return out
}

func DuesListToResponse(items []*entity.Dues) []*types.Dues {
	result := make([]*types.Dues, 0, len(items))
	for _, item := range items {
		result = append(result, DuesToResponse(item))
	}
	return result
}

func DuesStatusToResponse(view *service.DuesStatusView) *types.DuesStatusResponse {
	if view == nil {
		return nil
	}
	return &types.DuesStatusResponse{
		Dues:        DuesToResponse(view.Dues),
		AsOf:        view.AsOf.Format(time.RFC3339),
		Overdue:     view.Overdue,
		DaysOverdue: view.DaysOverdue,
	}
}

func DuesEventsToResponse(items []*entity.DuesEvent) []*types.DuesEvent {
	result := make([]*types.DuesEvent, 0, len(items))
	for _, item := range items {
		event := &types.DuesEvent{
			Id:        item.ID,
			EventType: item.EventType,
			NewStatus: item.NewStatus.String(),
			Payload:   derefString(item.PayloadJSON),
			CreatedAt: formatTime(item.CreatedAt),
		}
		if item.OldStatus != nil {
			event.OldStatus = item.OldStatus.String()
		}
		result = append(result, event)
	}
	return result
}

func GatewayNotificationsToResponse(items []*entity.GatewayNotification) []*types.GatewayNotification {
	result := make([]*types.GatewayNotification, 0, len(items))
	for _, item := range items {
		out := &types.GatewayNotification{
			Id:            item.ID,
			Provider:      item.Provider,
			EventType:     item.EventType,
			TransactionId: item.TransactionID,
			RequestId:     item.RequestID,
			Outcome:       item.Outcome,
			Error:         derefString(item.Error),
			CreatedAt:     formatTime(item.CreatedAt),
		}
		if item.DuesID != nil {
			out.DuesId = *item.DuesID
		}
		result = append(result, out)
	}
	return result
}

func TasksToResponse(items []scheduler.TaskInfo) []*types.Task {
	result := make([]*types.Task, 0, len(items))
	for _, item := range items {
		out := &types.Task{
			Name:      item.Name,
			Spec:      item.Spec,
			Enabled:   item.Enabled,
			Running:   item.Running,
			LastError: item.LastError,
		}
		if !item.Next.IsZero() {
			out.Next = item.Next.Format(time.RFC3339)
		}
		if !item.LastRun.IsZero() {
			out.LastRun = formatTime(item.LastRun)
		}
		result = append(result, out)
	}
	return result
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
