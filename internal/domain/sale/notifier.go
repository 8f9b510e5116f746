// internal/domain/sale/notifier.go
package sale

// Notifier receives best-effort notifications after a sale commits or is
// reversed. Failures are logged by the engine and never affect the sale.
type Notifier interface {
	SaleCompleted(s *Sale) error
	SaleReversed(s *Sale, r *SaleReversal) error
}
