// Package validate holds input validators shared by services and handlers.
package validate

// CPF reports whether the given string is a valid Brazilian CPF. Accepts
// formatted ("000.000.000-00") or bare digit input.
func CPF(s string) bool {
	digits := make([]int, 0, 11)
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits = append(digits, int(r-'0'))
		case r == '.' || r == '-' || r == ' ':
		default:
			return false
		}
	}
	if len(digits) != 11 {
		return false
	}

	// All-same sequences (000..., 111...) pass the checksum but are invalid.
	allSame := true
	for _, d := range digits[1:] {
		if d != digits[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return false
	}

	return digits[9] == cpfCheckDigit(digits, 9) && digits[10] == cpfCheckDigit(digits, 10)
}

func cpfCheckDigit(digits []int, n int) int {
	sum := 0
	for i := 0; i < n; i++ {
		sum += digits[i] * (n + 1 - i)
	}
	rest := (sum * 10) % 11
	if rest == 10 {
		return 0
	}
	return rest
}
