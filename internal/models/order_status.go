package models

import (
	"strings"

	"github.com/ninerxsolution/trading-market/internal/pkg/apperror"
)

type OrderStatus string

const (
	OrderStatusReserved              OrderStatus = "RESERVED"
	OrderStatusAwaitingSellerConfirm OrderStatus = "AWAITING_SELLER_CONFIRM"
	OrderStatusAwaitingBuyerConfirm  OrderStatus = "AWAITING_BUYER_CONFIRM"
	OrderStatusCompleted             OrderStatus = "COMPLETED"
	OrderStatusCancelled             OrderStatus = "CANCELLED"
	OrderStatusDispute               OrderStatus = "DISPUTE"
)

// ActiveOrderStatuses блокируют объявление и имеют срок истечения.
var ActiveOrderStatuses = []OrderStatus{
	OrderStatusReserved,
	OrderStatusAwaitingSellerConfirm,
	OrderStatusAwaitingBuyerConfirm,
}

func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusReserved, OrderStatusAwaitingSellerConfirm, OrderStatusAwaitingBuyerConfirm,
		OrderStatusCompleted, OrderStatusCancelled, OrderStatusDispute:
		return true
	}
	return false
}

func (s OrderStatus) IsActive() bool {
	switch s {
	case OrderStatusReserved, OrderStatusAwaitingSellerConfirm, OrderStatusAwaitingBuyerConfirm:
		return true
	}
	return false
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// ParseOrderStatus принимает статус без учёта регистра.
func ParseOrderStatus(raw string) (OrderStatus, error) {
	s := OrderStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "некорректный статус заказа")
	}
	return s, nil
}

// Actor - роль участника относительно конкретного заказа.
type Actor string

const (
	ActorBuyer  Actor = "BUYER"
	ActorSeller Actor = "SELLER"
	ActorAdmin  Actor = "ADMIN"
)

type transitionRule struct {
	from   []OrderStatus
	to     OrderStatus
	actors []Actor
}

// transitionTable - единственный источник допустимых переходов.
// ADMIN может выполнить любой переход из таблицы.
var transitionTable = []transitionRule{
	{
		from:   []OrderStatus{OrderStatusReserved},
		to:     OrderStatusAwaitingSellerConfirm,
		actors: []Actor{ActorSeller},
	},
	{
		from:   []OrderStatus{OrderStatusReserved, OrderStatusAwaitingSellerConfirm},
		to:     OrderStatusAwaitingBuyerConfirm,
		actors: []Actor{ActorSeller},
	},
	{
		from:   ActiveOrderStatuses,
		to:     OrderStatusCompleted,
		actors: []Actor{ActorBuyer},
	},
	{
		from:   ActiveOrderStatuses,
		to:     OrderStatusCancelled,
		actors: []Actor{ActorBuyer, ActorSeller},
	},
	{
		from:   ActiveOrderStatuses,
		to:     OrderStatusDispute,
		actors: []Actor{ActorBuyer, ActorSeller},
	},
	{
		from:   []OrderStatus{OrderStatusDispute},
		to:     OrderStatusCompleted,
		actors: []Actor{ActorAdmin},
	},
	{
		from:   []OrderStatus{OrderStatusDispute},
		to:     OrderStatusCancelled,
		actors: []Actor{ActorAdmin},
	},
}

func findRule(from, to OrderStatus) (transitionRule, bool) {
	for _, rule := range transitionTable {
		if rule.to != to {
			continue
		}
		for _, f := range rule.from {
			if f == from {
				return rule, true
			}
		}
	}
	return transitionRule{}, false
}

// CheckTransition проверяет переход from -> to для actor.
// Пара вне таблицы даёт INVALID_TRANSITION, чужая роль даёт FORBIDDEN.
func CheckTransition(from, to OrderStatus, actor Actor) error {
	rule, ok := findRule(from, to)
	if !ok {
		return apperror.ErrInvalidTransition
	}
	if actor == ActorAdmin {
		return nil
	}
	for _, a := range rule.actors {
		if a == actor {
			return nil
		}
	}
	return apperror.ErrForbidden
}

// AllowedTransitions возвращает статусы, в которые actor может перевести заказ из from.
func AllowedTransitions(from OrderStatus, actor Actor) []OrderStatus {
	var out []OrderStatus
	for _, rule := range transitionTable {
		if CheckTransition(from, rule.to, actor) == nil && !containsStatus(out, rule.to) {
			out = append(out, rule.to)
		}
	}
	return out
}

func containsStatus(list []OrderStatus, s OrderStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
