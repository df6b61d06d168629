package registration

import "context"

// Source reads the raw registration sheet. Rows come back in sheet order,
// header first, each as a slice of string cells.
type Source interface {
	FetchRows(ctx context.Context) ([][]string, error)
}
