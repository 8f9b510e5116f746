// internal/pkg/notify/log.go
package notify

import (
	"github.com/sirupsen/logrus"

	"github.com/your-org/pos-backoffice/internal/domain/sale"
)

// LogNotifier delivers sale notifications to the structured log. It is the
// default delivery channel; external channels can replace it behind the
// same interface.
type LogNotifier struct {
	logger *logrus.Logger
}

// NewLogNotifier creates a log-backed notifier
func NewLogNotifier(logger *logrus.Logger) *LogNotifier {
	if logger == nil {
		logger = logrus.New()
	}
	return &LogNotifier{logger: logger}
}

// SaleCompleted logs a committed sale
func (n *LogNotifier) SaleCompleted(s *sale.Sale) error {
	n.logger.WithFields(logrus.Fields{
		"sale_number":  s.SaleNumber,
		"seller_id":    s.SellerID,
		"total_amount": s.TotalAmount,
		"is_credit":    s.IsCredit,
		"items":        len(s.Items),
	}).Info("sale completed")
	return nil
}

// SaleReversed logs a reversed sale
func (n *LogNotifier) SaleReversed(s *sale.Sale, r *sale.SaleReversal) error {
	n.logger.WithFields(logrus.Fields{
		"sale_number":     s.SaleNumber,
		"reversed_by":     r.ReversedBy,
		"items_processed": r.ItemsProcessed,
		"amount_reversed": r.TotalAmountReversed,
	}).Info("sale reversed")
	return nil
}
