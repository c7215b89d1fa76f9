package dues

import (
	"fmt"
	"regexp"
	"time"
)

var receiptPattern = regexp.MustCompile(`^[A-Z0-9]+-\d{8}-\d+-\d{3}$`)

// NewReceiptNumber formats {clubCode}-{YYYYMMDD}-{memberId}-{NNN} using the
// calendar date of paidAt in its own location.
func (m *Machine) NewReceiptNumber(memberID uint64, paidAt time.Time) string {
	return fmt.Sprintf("%s-%s-%d-%03d", m.clubCode, paidAt.Format("20060102"), memberID, m.intn(1000))
}

func ValidReceiptNumber(receipt string) bool {
	return receiptPattern.MatchString(receipt)
}
