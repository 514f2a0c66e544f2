// internal/github/pagination.go
package github

import "context"

// Page is one page of a listing. NextPage is zero on the last page.
type Page[T any] struct {
	Items    []T
	NextPage int
}

// Paginate fetches pages in order and hands every item to each before the
// next page is requested. It stops after the last page or at an empty page.
func Paginate[T any](ctx context.Context, fetch func(ctx context.Context, page int) (*Page[T], error), each func(T) error) error {
	for page := 1; page != 0; {
		p, err := fetch(ctx, page)
		if err != nil {
			return err
		}
		if len(p.Items) == 0 {
			return nil
		}
		for _, item := range p.Items {
			if err := each(item); err != nil {
				return err
			}
		}
		page = p.NextPage
	}
	return nil
}
