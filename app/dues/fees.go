package dues

import (
	"errors"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-club-dues/app/entity"
	"gopkg.in/yaml.v3"
)

var ErrInvalidFeeTable = errors.New("invalid fee table")

// FeeTable maps each activity to its monthly amount.
type FeeTable map[entity.Activity]decimal.Decimal

func DefaultFeeTable() FeeTable {
	return FeeTable{
		entity.ActivityBaseMembership: decimal.NewFromInt(10000),
		entity.ActivityFootball:       decimal.NewFromInt(15000),
		entity.ActivityHockey:         decimal.NewFromInt(15000),
		entity.ActivityTennis:         decimal.NewFromInt(18000),
		entity.ActivitySwimming:       decimal.NewFromInt(16000),
		entity.ActivityBasketball:     decimal.NewFromInt(14000),
		entity.ActivityVolleyball:     decimal.NewFromInt(13000),
		entity.ActivitySkating:        decimal.NewFromInt(12000),
	}
}

// AmountFor falls back to the base membership amount for activities the
// table does not know.
func (t FeeTable) AmountFor(activity entity.Activity) decimal.Decimal {
	if amount, ok := t[activity]; ok {
		return amount
	}
	if amount, ok := t[entity.ActivityBaseMembership]; ok {
		return amount
	}
	return DefaultFeeTable()[entity.ActivityBaseMembership]
}

// ParseFeeTable reads a YAML mapping of activity name to amount and merges it
// over the defaults.
func ParseFeeTable(data []byte) (FeeTable, error) {
	raw := map[string]interface{}{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFeeTable, err)
	}

	table := DefaultFeeTable()
	for name, value := range raw {
		activity, err := entity.ParseActivity(name)
		if err != nil {
			return nil, fmt.Errorf("%w: unknown activity %q", ErrInvalidFeeTable, name)
		}
		amount, err := decimal.NewFromString(fmt.Sprint(value))
		if err != nil {
			return nil, fmt.Errorf("%w: amount for %s: %v", ErrInvalidFeeTable, name, err)
		}
		if !amount.IsPositive() {
			return nil, fmt.Errorf("%w: amount for %s must be > 0", ErrInvalidFeeTable, name)
		}
		table[activity] = amount
	}
	return table, nil
}

// LoadFeeTable returns the defaults when path is empty.
func LoadFeeTable(path string) (FeeTable, error) {
	if path == "" {
		return DefaultFeeTable(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseFeeTable(data)
}
