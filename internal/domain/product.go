package domain

// Product is the catalog view the engine consumes. The catalog owns these records.
type Product struct {
	ID       string
	Name     string
	Category string
	Image    string
	Price    Money
	Stock    int
}
