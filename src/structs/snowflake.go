package structs

// Snowflake is Discord's 64-bit resource id in its wire (string) form. The
// timestamp codec lives outside this library; here it is only validated.
type Snowflake string

// IsValid reports whether the id is a non-empty string of ASCII digits.
func (s Snowflake) IsValid() bool {
	if len(s) == 0 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
