package model

import "github.com/shopspring/decimal"

// カタログから取る商品情報
type Product struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	ImagePath string          `json:"image_path"`
}
