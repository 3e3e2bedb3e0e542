package util

import "strings"

func IsNumber(b byte) bool {
	return b >= '0' && b <= '9'
}

func IsUnderScore(b byte) bool {
	return b == '_'
}

func IsLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func IsLetterOrUnderscore(b byte) bool {
	return IsLetter(b) || IsUnderScore(b)
}

func IsLetterOrUnderscoreOrNumber(b byte) bool {
	return IsLetter(b) || IsUnderScore(b) || IsNumber(b)
}

// IsDigitOfBase reports whether b is a valid digit for base 2, 8, 10 or 16.
func IsDigitOfBase(b byte, base int) bool {
	switch base {
	case 2:
		return b == '0' || b == '1'
	case 8:
		return b >= '0' && b <= '7'
	case 16:
		return IsNumber(b) || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
	default:
		return IsNumber(b)
	}
}

// SplitFields splits an URCL instruction line into its mnemonic and operands.
func SplitFields(line string) []string {
	return strings.Fields(line)
}
