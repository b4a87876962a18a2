package utils

// Page is a 1-indexed page request.
type Page struct {
	Number int
	Size   int
}

// NewPage validates page and size.
func NewPage(number, size int) (Page, error) {
	if err := ValidatePagination(number, size); err != nil {
		return Page{}, err
	}
	return Page{Number: number, Size: size}, nil
}

// Offset returns the number of rows before the page.
func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// TotalPages calculates how many pages total rows fill
func (p Page) TotalPages(total int) int {
	if p.Size <= 0 || total <= 0 {
		return 0
	}
	return (total + p.Size - 1) / p.Size
}
