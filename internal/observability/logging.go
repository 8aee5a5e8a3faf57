package observability

// MaskPhone masks a phone number for logging, keeping the dial code and the
// last two digits.
func MaskPhone(phone string) string {
	if len(phone) < 6 {
		return "***"
	}
	return phone[:3] + "*****" + phone[len(phone)-2:]
}
