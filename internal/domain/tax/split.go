package tax

import "github.com/shopspring/decimal"

// GSTSplit is the statutory breakdown of a tax amount.
type GSTSplit struct {
	CGST       decimal.Decimal `json:"cgst"`
	SGST       decimal.Decimal `json:"sgst"`
	IGST       decimal.Decimal `json:"igst"`
	InterState bool            `json:"interState"`
}

// SplitGST divides taxAmount into central and state halves for intra-state
// supply, or charges it entirely as integrated tax when supplierState and
// placeOfSupply differ. An unknown place of supply is treated as intra-state.
func SplitGST(taxAmount decimal.Decimal, supplierState, placeOfSupply string) GSTSplit {
	if placeOfSupply != "" && supplierState != placeOfSupply {
		return GSTSplit{IGST: taxAmount, InterState: true}
	}
	half := taxAmount.Shift(-1).Mul(decimal.NewFromInt(5))
	return GSTSplit{
		CGST: half,
		SGST: taxAmount.Sub(half),
	}
}
