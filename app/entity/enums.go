package entity

import (
	"errors"
	"strings"
)

var (
	ErrUnknownDuesStatus       = errors.New("unknown dues status")
	ErrUnknownPaymentMethod    = errors.New("unknown payment method")
	ErrUnknownActivity         = errors.New("unknown activity")
	ErrUnknownMembershipStatus = errors.New("unknown membership status")
)

type DuesStatus int32

const (
	DuesStatusUnspecified DuesStatus = 0
	DuesStatusPending     DuesStatus = 1
	DuesStatusPaid        DuesStatus = 10
	DuesStatusOverdue     DuesStatus = 20
	DuesStatusCancelled   DuesStatus = 30
)

func (s DuesStatus) String() string {
	switch s {
	case DuesStatusPending:
		return "pending"
	case DuesStatusPaid:
		return "paid"
	case DuesStatusOverdue:
		return "overdue"
	case DuesStatusCancelled:
		return "cancelled"
	default:
		return "unspecified"
	}
}

func (s DuesStatus) Valid() bool {
	switch s {
	case DuesStatusPending, DuesStatusPaid, DuesStatusOverdue, DuesStatusCancelled:
		return true
	default:
		return false
	}
}

// Outstanding reports whether the member still owes this record.
func (s DuesStatus) Outstanding() bool {
	return s == DuesStatusPending || s == DuesStatusOverdue
}

func ParseDuesStatus(raw string) (DuesStatus, error) {
	switch normalizeEnum(raw) {
	case "pending":
		return DuesStatusPending, nil
	case "paid":
		return DuesStatusPaid, nil
	case "overdue":
		return DuesStatusOverdue, nil
	case "cancelled", "canceled":
		return DuesStatusCancelled, nil
	default:
		return DuesStatusUnspecified, ErrUnknownDuesStatus
	}
}

type PaymentMethod int32

const (
	PaymentMethodUnspecified    PaymentMethod = 0
	PaymentMethodCash           PaymentMethod = 1
	PaymentMethodBankTransfer   PaymentMethod = 2
	PaymentMethodGatewayPayment PaymentMethod = 3
	PaymentMethodCard           PaymentMethod = 4
)

func (m PaymentMethod) String() string {
	switch m {
	case PaymentMethodCash:
		return "cash"
	case PaymentMethodBankTransfer:
		return "bank_transfer"
	case PaymentMethodGatewayPayment:
		return "gateway_payment"
	case PaymentMethodCard:
		return "card"
	default:
		return "unspecified"
	}
}

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodBankTransfer, PaymentMethodGatewayPayment, PaymentMethodCard:
		return true
	default:
		return false
	}
}

func ParsePaymentMethod(raw string) (PaymentMethod, error) {
	switch normalizeEnum(raw) {
	case "cash":
		return PaymentMethodCash, nil
	case "bank_transfer", "transfer":
		return PaymentMethodBankTransfer, nil
	case "gateway_payment", "gateway":
		return PaymentMethodGatewayPayment, nil
	case "card":
		return PaymentMethodCard, nil
	default:
		return PaymentMethodUnspecified, ErrUnknownPaymentMethod
	}
}

type Activity int32

const (
	ActivityUnspecified    Activity = 0
	ActivityBaseMembership Activity = 1
	ActivityFootball       Activity = 2
	ActivityHockey         Activity = 3
	ActivityTennis         Activity = 4
	ActivitySwimming       Activity = 5
	ActivityBasketball     Activity = 6
	ActivityVolleyball     Activity = 7
	ActivitySkating        Activity = 8
)

var activityNames = map[Activity]string{
	ActivityBaseMembership: "base_membership",
	ActivityFootball:       "football",
	ActivityHockey:         "hockey",
	ActivityTennis:         "tennis",
	ActivitySwimming:       "swimming",
	ActivityBasketball:     "basketball",
	ActivityVolleyball:     "volleyball",
	ActivitySkating:        "skating",
}

func (a Activity) String() string {
	if name, ok := activityNames[a]; ok {
		return name
	}
	return "unspecified"
}

func (a Activity) Valid() bool {
	_, ok := activityNames[a]
	return ok
}

func ParseActivity(raw string) (Activity, error) {
	normalized := normalizeEnum(raw)
	for activity, name := range activityNames {
		if name == normalized {
			return activity, nil
		}
	}
	return ActivityUnspecified, ErrUnknownActivity
}

// Activities lists the closed set in declaration order.
func Activities() []Activity {
	return []Activity{
		ActivityBaseMembership,
		ActivityFootball,
		ActivityHockey,
		ActivityTennis,
		ActivitySwimming,
		ActivityBasketball,
		ActivityVolleyball,
		ActivitySkating,
	}
}

type MembershipStatus int32

const (
	MembershipStatusUnspecified MembershipStatus = 0
	MembershipStatusActive      MembershipStatus = 1
	MembershipStatusInactive    MembershipStatus = 2
	MembershipStatusSuspended   MembershipStatus = 3
)

func (s MembershipStatus) String() string {
	switch s {
	case MembershipStatusActive:
		return "active"
	case MembershipStatusInactive:
		return "inactive"
	case MembershipStatusSuspended:
		return "suspended"
	default:
		return "unspecified"
	}
}

func (s MembershipStatus) Valid() bool {
	switch s {
	case MembershipStatusActive, MembershipStatusInactive, MembershipStatusSuspended:
		return true
	default:
		return false
	}
}

func ParseMembershipStatus(raw string) (MembershipStatus, error) {
	switch normalizeEnum(raw) {
	case "active":
		return MembershipStatusActive, nil
	case "inactive":
		return MembershipStatusInactive, nil
	case "suspended":
		return MembershipStatusSuspended, nil
	default:
		return MembershipStatusUnspecified, ErrUnknownMembershipStatus
	}
}

func normalizeEnum(raw string) string {
	value := strings.ToLower(strings.TrimSpace(raw))
	return strings.ReplaceAll(value, "-", "_")
}
