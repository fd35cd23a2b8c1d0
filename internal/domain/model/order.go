package model

import (
	"fmt"
	"strings"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// 注文者情報（請求画面の入力）
type CustomerInfo struct {
	Name    string
	Phone   string
	Address string
	Note    string
}

// 必須チェック
func (c CustomerInfo) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return NewValidationError("customer name is required")
	}
	if strings.TrimSpace(c.Phone) == "" {
		return NewValidationError("customer phone is required")
	}
	if strings.TrimSpace(c.Address) == "" {
		return NewValidationError("delivery address is required")
	}
	return nil
}

// サーバーの notes 欄に入れる文字列
func (c CustomerInfo) Notes() string {
	notes := fmt.Sprintf("Order from app - %s - %s - %s",
		strings.TrimSpace(c.Name), strings.TrimSpace(c.Phone), strings.TrimSpace(c.Address))
	if n := strings.TrimSpace(c.Note); n != "" {
		notes += " - " + n
	}
	return notes
}

// カートから注文を作るリクエスト
type OrderRequest struct {
	CartID         string
	ProductIDs     []string
	Notes          string
	IdempotencyKey string
}

type OrderReceipt struct {
	OrderID string      `json:"order_id"`
	Status  OrderStatus `json:"status"`
}
