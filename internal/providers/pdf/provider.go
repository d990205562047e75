// Package pdf renders invoice documents.
package pdf

import (
	"context"
	"io"

	"github.com/mk070/zenlance-sub002/internal/invoice/domain"
)

type Provider interface {
	GenerateInvoice(ctx context.Context, invoice domain.Invoice) (io.Reader, error)
}
