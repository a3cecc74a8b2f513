// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package recognize

import "net/netip"

// weakRRN scales numbers that fail the checksum. Numbers issued since
// October 2020 carry a random final digit, so a failed checksum lowers
// confidence instead of dropping the match.
const weakRRN = 0.6

func digits(s string) []int {
	out := make([]int, 0, len(s))
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= '0' && c <= '9' {
			out = append(out, int(c-'0'))
		}
	}
	return out
}

// luhnCheck keeps card numbers whose Luhn sum is a multiple of ten.
func luhnCheck(s string) float64 {
	d := digits(s)
	if len(d) < 13 {
		return 0
	}
	sum := 0
	for i := len(d) - 1; i >= 0; i-- {
		v := d[i]
		if (len(d)-1-i)%2 == 1 {
			v *= 2
			if v > 9 {
				v -= 9
			}
		}
		sum += v
	}
	if sum%10 != 0 {
		return 0
	}
	return 1
}

var rrnWeights = [12]int{2, 3, 4, 5, 6, 7, 8, 9, 2, 3, 4, 5}

// rrnCheck validates a resident registration number: thirteen digits
// whose last digit is (11 - weighted sum mod 11) mod 10.
func rrnCheck(s string) float64 {
	d := digits(s)
	if len(d) != 13 {
		return 0
	}
	sum := 0
	for i, w := range rrnWeights {
		sum += d[i] * w
	}
	if (11-sum%11)%10 == d[12] {
		return 1
	}
	return weakRRN
}

// ipCheck keeps dotted quads that parse as IPv4 addresses.
func ipCheck(s string) float64 {
	a, err := netip.ParseAddr(s)
	if err != nil || !a.Is4() {
		return 0
	}
	return 1
}
