package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/davidleathers/gstbooks/internal/domain/document"
	"github.com/davidleathers/gstbooks/internal/domain/tax"
	"github.com/davidleathers/gstbooks/internal/service/documents"
)

type totalsOptions struct {
	file          string
	discountBase  string
	supplierState string
	placeOfSupply string
}

func newTotalsCmd() *cobra.Command {
	opts := &totalsOptions{}
	cmd := &cobra.Command{
		Use:   "totals",
		Short: "Recompute the line amounts and totals of a document",
		Long: `Reads a document in the API's JSON shape and prints it with every derived
amount recomputed. Nothing is sent to the backend.`,
		Example: `  # Preview an invoice with the intra-state GST split
  gstctl totals --file invoice.json --supplier-state 29 --place-of-supply 29

  # Read from stdin
  cat bill.json | gstctl totals --file -`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTotals(cmd, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "Document JSON file, - for stdin")
	cmd.Flags().StringVar(&opts.discountBase, "discount-base", "", "Discount base when the document has none: line_totals or taxable")
	cmd.Flags().StringVar(&opts.supplierState, "supplier-state", "", "Supplier state code, enables the CGST/SGST/IGST split")
	cmd.Flags().StringVar(&opts.placeOfSupply, "place-of-supply", "", "Place of supply state code")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func runTotals(cmd *cobra.Command, opts *totalsOptions) error {
	var in io.Reader = cmd.InOrStdin()
	if opts.file != "-" {
		f, err := os.Open(opts.file)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	var doc document.Document
	if err := json.NewDecoder(in).Decode(&doc); err != nil {
		return fmt.Errorf("reading document: %w", err)
	}
	if doc.Kind == "" {
		doc.Kind = document.KindInvoice
	}
	if _, err := document.ParseKind(string(doc.Kind)); err != nil {
		return err
	}
	if doc.DiscountBase == "" {
		base, err := tax.ParseDiscountBase(opts.discountBase)
		if err != nil {
			return err
		}
		doc.DiscountBase = base
	}

	// Preview never touches the gateway.
	result, err := documents.NewService(nil, nil, nil).Preview(cmd.Context(), documents.PreviewRequest{
		Document:      &doc,
		SupplierState: opts.supplierState,
		PlaceOfSupply: opts.placeOfSupply,
	})
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), result)
}
